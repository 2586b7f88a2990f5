package timeclock

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar day, independent of time zone
// =============================================================================

// Date is a calendar day. The zero value is not a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) midnight() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

// At returns the absolute instant of tod on d in loc.
func (d Date) At(tod TimeOfDay, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, int(tod), 0, loc)
}

func (d Date) AddDays(n int) Date   { return DateOf(d.midnight().AddDate(0, 0, n)) }
func (d Date) Before(o Date) bool   { return d.midnight().Before(o.midnight()) }
func (d Date) After(o Date) bool    { return d.midnight().After(o.midnight()) }
func (d Date) IsZero() bool         { return d == Date{} }
func (d Date) Weekday() time.Weekday { return d.midnight().Weekday() }
func (d Date) String() string       { return d.midnight().Format(dateLayout) }

// =============================================================================
// TIME OF DAY - Seconds since midnight
// =============================================================================

type TimeOfDay int

const (
	second TimeOfDay = 1
	minute           = 60 * second
	hour             = 60 * minute
)

// Clock builds a TimeOfDay from its parts.
func Clock(h, m, s int) TimeOfDay {
	return TimeOfDay(h)*hour + TimeOfDay(m)*minute + TimeOfDay(s)*second
}

// ParseTimeOfDay accepts HH:MM:SS or HH:MM.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock(t.Hour(), t.Minute(), t.Second()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// TimeOfDayOf returns the wall-clock time of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return Clock(t.Hour(), t.Minute(), t.Second())
}

// String formats as HH:MM:SS, the stored slot format.
func (t TimeOfDay) String() string {
	s := int(t)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// =============================================================================
// INTERVAL - Half-open span between two instants
// =============================================================================

type Interval struct {
	Start time.Time
	End   time.Time
}

// Defined reports whether both ends are set.
func (i Interval) Defined() bool { return !i.Start.IsZero() && !i.End.IsZero() }

// Minutes is the whole-minute length, zero for undefined or inverted intervals.
func (i Interval) Minutes() int {
	if !i.Defined() || !i.End.After(i.Start) {
		return 0
	}
	return int(i.End.Sub(i.Start) / time.Minute)
}

// OverlapMinutes returns the whole minutes a and b share.
func OverlapMinutes(a, b Interval) int {
	if !a.Defined() || !b.Defined() {
		return 0
	}
	start := a.Start
	if b.Start.After(start) {
		start = b.Start
	}
	end := a.End
	if b.End.Before(end) {
		end = b.End
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / time.Minute)
}

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

type Period struct {
	Start Date
	End   Date
}

func (p Period) Contains(d Date) bool { return !d.Before(p.Start) && !d.After(p.End) }

// Days returns every date in the period.
func (p Period) Days() []Date {
	var days []Date
	for d := p.Start; !d.After(p.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

func (p Period) String() string { return p.Start.String() + ".." + p.End.String() }
