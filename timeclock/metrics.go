/*
metrics.go - Interval metrics engine

PURPOSE:
  Derives a day's regular, deduct, overtime and worked minutes from an
  AttendanceRecord under a Schedule. Pure: no I/O, no mutation, no errors.
  Missing or malformed slot values count as absent and contribute zero, so
  reporting always gets a value.

ALGORITHM:
  1. Parse each present slot against the date.
  2. Worked intervals: [am_in, am_out] and [pm_in, pm_out] when both ends are
     present and ordered. With StitchSpanningShift, a day holding only am_in
     and pm_out becomes the single interval [am_in, pm_out].
  3. Regular = sum of overlaps between worked intervals and the AM/PM
     schedule windows, capped at StandardMins.
  4. Deduct = StandardMins - Regular, floored at zero, but only when the day
     has at least one punch. A blank day carries no penalty.
  5. Overtime per Schedule.OvertimeMode (see schedule.go).
  6. Worked = Regular.
  7. Each output is rounded to the nearest RoundTo and floored at zero.

EXAMPLE:
  Schedule 07:00-11:00 / 13:00-17:00, punches 06:55, 11:10, 13:05, 17:00:
    AM overlap 240 + PM overlap 235 = 475 regular, 5 deduct.
*/
package timeclock

import "time"

// Engine computes day metrics under a fixed schedule.
type Engine struct {
	schedule Schedule
}

func NewEngine(schedule Schedule) *Engine {
	return &Engine{schedule: schedule}
}

func (e *Engine) Schedule() Schedule { return e.schedule }

// ComputeDay derives the metrics for record on date. A nil record is an
// unpunched day.
func (e *Engine) ComputeDay(date Date, record *AttendanceRecord) DayMetrics {
	if record == nil {
		return DayMetrics{}
	}
	s := e.schedule
	loc := s.location()

	at := func(v *string) *time.Time {
		if v == nil {
			return nil
		}
		tod, err := ParseTimeOfDay(*v)
		if err != nil {
			return nil
		}
		t := date.At(tod, loc)
		return &t
	}
	amIn, amOut := at(record.AMIn), at(record.AMOut)
	pmIn, pmOut := at(record.PMIn), at(record.PMOut)
	otIn, otOut := at(record.OTIn), at(record.OTOut)

	worked := workedIntervals(s, amIn, amOut, pmIn, pmOut)
	windows := s.Resolve(date)

	var amMins, pmMins int
	for _, iv := range worked {
		amMins += OverlapMinutes(iv, windows.AM)
		pmMins += OverlapMinutes(iv, windows.PM)
	}
	uncapped := amMins + pmMins
	regular := min(uncapped, s.StandardMins)

	var deduct int
	if record.HasAnyPunch() {
		if s.FullSessionAbsencePenalty {
			deduct = sessionShortfall(windows.AM, amMins, record.AMIn != nil || record.AMOut != nil) +
				sessionShortfall(windows.PM, pmMins, record.PMIn != nil || record.PMOut != nil)
		} else {
			deduct = max(0, s.StandardMins-regular)
		}
	}

	var ot int
	if record.OTAllowed {
		switch s.OvertimeMode {
		case OvertimeImplicitBeyondStandard:
			ceiling := date.At(s.HardCap(SlotOTOut), loc)
			raw := 0
			for _, iv := range worked {
				if iv.End.After(ceiling) {
					iv.End = ceiling
				}
				raw += iv.Minutes()
			}
			ot = max(0, raw-s.StandardMins)
		default:
			if otIn != nil && otOut != nil && otOut.After(*otIn) {
				ot = Interval{Start: *otIn, End: *otOut}.Minutes()
			} else if uncapped > s.StandardMins {
				ot = uncapped - s.StandardMins
			}
		}
	}

	step := s.roundTo()
	regular = min(roundMinutes(regular, step), s.StandardMins)
	return DayMetrics{
		Regular: regular,
		Deduct:  roundMinutes(deduct, step),
		OT:      roundMinutes(ot, step),
		Worked:  regular,
	}
}

func workedIntervals(s Schedule, amIn, amOut, pmIn, pmOut *time.Time) []Interval {
	if s.StitchSpanningShift && amIn != nil && pmOut != nil && amOut == nil && pmIn == nil {
		if pmOut.After(*amIn) {
			return []Interval{{Start: *amIn, End: *pmOut}}
		}
		return nil
	}
	var out []Interval
	if amIn != nil && amOut != nil && amOut.After(*amIn) {
		out = append(out, Interval{Start: *amIn, End: *amOut})
	}
	if pmIn != nil && pmOut != nil && pmOut.After(*pmIn) {
		out = append(out, Interval{Start: *pmIn, End: *pmOut})
	}
	return out
}

// sessionShortfall charges an unpunched session its whole window.
func sessionShortfall(window Interval, overlap int, punched bool) int {
	if !punched {
		return window.Minutes()
	}
	return max(0, window.Minutes()-overlap)
}

func roundMinutes(v, step int) int {
	if v <= 0 {
		return 0
	}
	if step <= 1 {
		return v
	}
	return ((v + step/2) / step) * step
}
