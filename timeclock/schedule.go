package timeclock

import (
	"fmt"
	"time"
)

// =============================================================================
// SCHEDULE - Daily time-window configuration
// =============================================================================

// OvertimeMode selects how overtime minutes are derived. Deployments disagree
// on the intended behavior, so it is chosen explicitly.
type OvertimeMode string

const (
	// OvertimeExplicitWindow counts the dedicated [ot_in, ot_out] punches and
	// falls back to uncapped regular time beyond the standard day.
	OvertimeExplicitWindow OvertimeMode = "explicit_window"

	// OvertimeImplicitBeyondStandard counts raw worked time beyond the
	// standard day, outs capped at the ot_out hard cap.
	OvertimeImplicitBeyondStandard OvertimeMode = "implicit_beyond_standard"
)

// Punch window defaults. Each window end doubles as the slot's hard cap.
var (
	AMInOpens  = Clock(6, 0, 0)
	AMInCloses = Clock(11, 0, 0)
	AMOutCap   = Clock(12, 0, 0)
	PMInOpens  = Clock(12, 0, 0)
	PMInCloses = Clock(17, 0, 0)
	PMOutCap   = Clock(18, 0, 0)
	OTOpens    = Clock(18, 0, 0)
	OTCap      = Clock(22, 0, 0)
)

const (
	DefaultStandardMins = 480
	DefaultRoundTo      = 1
)

// Schedule is immutable per computation. Construct with DefaultSchedule or
// factory.ScheduleFactory and pass it to NewEngine / NewPunchMachine.
type Schedule struct {
	AMIn  string
	AMOut string
	PMIn  string
	PMOut string

	StandardMins int
	RoundTo      int

	// GraceMins is reserved for a late-arrival grace policy. It is carried
	// through configuration and has no effect on any computation.
	GraceMins int

	OvertimeMode OvertimeMode

	// FullSessionAbsencePenalty charges a session with no punches its whole
	// window length when the day has other punches.
	FullSessionAbsencePenalty bool

	// StitchSpanningShift treats a day with only am_in and pm_out as one
	// interval [am_in, pm_out].
	StitchSpanningShift bool

	// HardCaps overrides the default window end per slot.
	HardCaps map[Slot]TimeOfDay

	Location *time.Location
}

func DefaultSchedule() Schedule {
	return Schedule{
		AMIn:         "08:00",
		AMOut:        "12:00",
		PMIn:         "13:00",
		PMOut:        "17:00",
		StandardMins: DefaultStandardMins,
		RoundTo:      DefaultRoundTo,
		OvertimeMode: OvertimeExplicitWindow,
		Location:     time.UTC,
	}
}

// Validate checks the four time strings and the numeric knobs.
func (s Schedule) Validate() error {
	times := map[string]string{"am_in": s.AMIn, "am_out": s.AMOut, "pm_in": s.PMIn, "pm_out": s.PMOut}
	parsed := make(map[string]TimeOfDay, len(times))
	for name, v := range times {
		tod, err := ParseTimeOfDay(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, name, err)
		}
		parsed[name] = tod
	}
	if parsed["am_out"] <= parsed["am_in"] {
		return fmt.Errorf("%w: am_out %s must follow am_in %s", ErrInvalidSchedule, s.AMOut, s.AMIn)
	}
	if parsed["pm_out"] <= parsed["pm_in"] {
		return fmt.Errorf("%w: pm_out %s must follow pm_in %s", ErrInvalidSchedule, s.PMOut, s.PMIn)
	}
	if s.StandardMins <= 0 {
		return fmt.Errorf("%w: standard minutes must be positive, got %d", ErrInvalidSchedule, s.StandardMins)
	}
	if s.RoundTo < 1 {
		return fmt.Errorf("%w: round_to must be at least 1, got %d", ErrInvalidSchedule, s.RoundTo)
	}
	if s.GraceMins < 0 {
		return fmt.Errorf("%w: grace minutes must not be negative", ErrInvalidSchedule)
	}
	switch s.OvertimeMode {
	case OvertimeExplicitWindow, OvertimeImplicitBeyondStandard:
	default:
		return fmt.Errorf("%w: unknown overtime mode %q", ErrInvalidSchedule, s.OvertimeMode)
	}
	for slot := range s.HardCaps {
		if !slot.Valid() {
			return fmt.Errorf("%w: hard cap for unknown slot %q", ErrInvalidSchedule, slot)
		}
	}
	return nil
}

func (s Schedule) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Schedule) roundTo() int {
	if s.RoundTo < 1 {
		return 1
	}
	return s.RoundTo
}

// =============================================================================
// DAY WINDOWS - Schedule resolved against a date
// =============================================================================

type DayWindows struct {
	AM Interval
	PM Interval
}

// Resolve returns the absolute AM and PM windows for date. An unparseable
// time leaves its window undefined, which contributes zero overlap.
func (s Schedule) Resolve(date Date) DayWindows {
	return DayWindows{
		AM: s.window(date, s.AMIn, s.AMOut),
		PM: s.window(date, s.PMIn, s.PMOut),
	}
}

func (s Schedule) window(date Date, from, to string) Interval {
	start, err := ParseTimeOfDay(from)
	if err != nil {
		return Interval{}
	}
	end, err := ParseTimeOfDay(to)
	if err != nil {
		return Interval{}
	}
	loc := s.location()
	return Interval{Start: date.At(start, loc), End: date.At(end, loc)}
}

// =============================================================================
// PUNCH WINDOWS - Time-of-day gate per slot
// =============================================================================

// Window is the allowed wall-clock range for a slot. Punches after End are
// rejected unless Clamp is set, in which case they are stored at End.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
	Clamp bool
}

// HardCap returns the ceiling for slot, honoring HardCaps overrides.
func (s Schedule) HardCap(slot Slot) TimeOfDay {
	if c, ok := s.HardCaps[slot]; ok {
		return c
	}
	switch slot {
	case SlotAMIn:
		return AMInCloses
	case SlotAMOut:
		return AMOutCap
	case SlotPMIn:
		return PMInCloses
	case SlotPMOut:
		return PMOutCap
	}
	return OTCap
}

// PunchWindow returns the window table entry for slot. The out windows open
// at the scheduled session start.
func (s Schedule) PunchWindow(slot Slot) (Window, bool) {
	var start TimeOfDay
	switch slot {
	case SlotAMIn:
		start = AMInOpens
	case SlotAMOut:
		tod, err := ParseTimeOfDay(s.AMIn)
		if err != nil {
			return Window{}, false
		}
		start = tod
	case SlotPMIn:
		start = PMInOpens
	case SlotPMOut:
		tod, err := ParseTimeOfDay(s.PMIn)
		if err != nil {
			return Window{}, false
		}
		start = tod
	case SlotOTIn, SlotOTOut:
		start = OTOpens
	default:
		return Window{}, false
	}
	return Window{Start: start, End: s.HardCap(slot), Clamp: slot.IsOut()}, true
}

// Stamp returns the value a punch at now would store in slot for date, or
// false when now is outside the slot's window.
func (s Schedule) Stamp(date Date, slot Slot, now time.Time) (TimeOfDay, bool) {
	w, ok := s.PunchWindow(slot)
	if !ok {
		return 0, false
	}
	now = now.In(s.location())
	if DateOf(now) != date {
		return 0, false
	}
	tod := TimeOfDayOf(now)
	if tod < w.Start {
		return 0, false
	}
	if tod > w.End {
		if !w.Clamp {
			return 0, false
		}
		tod = w.End
	}
	return tod, true
}
