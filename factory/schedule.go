/*
Package factory converts schedule configuration files into timeclock.Schedule.

PURPOSE:
  The schedule lives in an external settings store. This package turns its
  JSON or TOML representation into a validated Schedule so the engine and
  the punch machine receive it explicitly and never look it up globally.

JSON SCHEMA:
  {
    "am_in": "08:00",
    "am_out": "12:00",
    "pm_in": "13:00",
    "pm_out": "17:00",
    "standard_mins": 480,
    "round_to": 15,
    "grace_mins": 0,
    "overtime_mode": "explicit_window",
    "full_session_absence_penalty": false,
    "stitch_spanning_shift": false,
    "hard_caps": {"pm_out": "18:00"},
    "timezone": "Asia/Manila"
  }

  TOML uses the same keys at the top level.

DEFAULTS:
  Missing fields fall back to timeclock.DefaultSchedule().

USAGE:
  f := factory.NewScheduleFactory()
  schedule, err := f.ParseJSON(data)
  schedule, err := f.LoadFile("schedule.toml")

SEE ALSO:
  - timeclock/schedule.go: Schedule type and window table
*/
package factory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/warp/timeclock/timeclock"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// ScheduleJSON is the file representation of a schedule. Pointers mark
// fields that were left out and should take defaults.
type ScheduleJSON struct {
	AMIn                      string            `json:"am_in,omitempty" toml:"am_in"`
	AMOut                     string            `json:"am_out,omitempty" toml:"am_out"`
	PMIn                      string            `json:"pm_in,omitempty" toml:"pm_in"`
	PMOut                     string            `json:"pm_out,omitempty" toml:"pm_out"`
	StandardMins              *int              `json:"standard_mins,omitempty" toml:"standard_mins"`
	RoundTo                   *int              `json:"round_to,omitempty" toml:"round_to"`
	GraceMins                 *int              `json:"grace_mins,omitempty" toml:"grace_mins"`
	OvertimeMode              string            `json:"overtime_mode,omitempty" toml:"overtime_mode"`
	FullSessionAbsencePenalty bool              `json:"full_session_absence_penalty,omitempty" toml:"full_session_absence_penalty"`
	StitchSpanningShift       bool              `json:"stitch_spanning_shift,omitempty" toml:"stitch_spanning_shift"`
	HardCaps                  map[string]string `json:"hard_caps,omitempty" toml:"hard_caps"`
	Timezone                  string            `json:"timezone,omitempty" toml:"timezone"`
}

// =============================================================================
// SCHEDULE FACTORY
// =============================================================================

type ScheduleFactory struct{}

func NewScheduleFactory() *ScheduleFactory {
	return &ScheduleFactory{}
}

// ParseJSON parses and validates a JSON schedule.
func (f *ScheduleFactory) ParseJSON(data string) (timeclock.Schedule, error) {
	var sj ScheduleJSON
	if err := json.Unmarshal([]byte(data), &sj); err != nil {
		return timeclock.Schedule{}, fmt.Errorf("invalid schedule JSON: %w", err)
	}
	return f.Build(sj)
}

// ParseTOML parses and validates a TOML schedule.
func (f *ScheduleFactory) ParseTOML(data string) (timeclock.Schedule, error) {
	var sj ScheduleJSON
	if _, err := toml.Decode(data, &sj); err != nil {
		return timeclock.Schedule{}, fmt.Errorf("invalid schedule TOML: %w", err)
	}
	return f.Build(sj)
}

// LoadFile picks the format from the extension: .toml or .json.
func (f *ScheduleFactory) LoadFile(path string) (timeclock.Schedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timeclock.Schedule{}, fmt.Errorf("failed to read schedule: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return f.ParseTOML(string(data))
	case ".json":
		return f.ParseJSON(string(data))
	}
	return timeclock.Schedule{}, fmt.Errorf("unsupported schedule file %q (use .toml or .json)", path)
}

// Build fills defaults and validates.
func (f *ScheduleFactory) Build(sj ScheduleJSON) (timeclock.Schedule, error) {
	s := timeclock.DefaultSchedule()

	if sj.AMIn != "" {
		s.AMIn = sj.AMIn
	}
	if sj.AMOut != "" {
		s.AMOut = sj.AMOut
	}
	if sj.PMIn != "" {
		s.PMIn = sj.PMIn
	}
	if sj.PMOut != "" {
		s.PMOut = sj.PMOut
	}
	if sj.StandardMins != nil {
		s.StandardMins = *sj.StandardMins
	}
	if sj.RoundTo != nil {
		s.RoundTo = *sj.RoundTo
	}
	if sj.GraceMins != nil {
		s.GraceMins = *sj.GraceMins
	}
	if sj.OvertimeMode != "" {
		s.OvertimeMode = timeclock.OvertimeMode(sj.OvertimeMode)
	}
	s.FullSessionAbsencePenalty = sj.FullSessionAbsencePenalty
	s.StitchSpanningShift = sj.StitchSpanningShift

	if len(sj.HardCaps) > 0 {
		s.HardCaps = make(map[timeclock.Slot]timeclock.TimeOfDay, len(sj.HardCaps))
		for name, v := range sj.HardCaps {
			slot, err := timeclock.ParseSlot(name)
			if err != nil {
				return timeclock.Schedule{}, fmt.Errorf("%w: hard_caps: %v", timeclock.ErrInvalidSchedule, err)
			}
			tod, err := timeclock.ParseTimeOfDay(v)
			if err != nil {
				return timeclock.Schedule{}, fmt.Errorf("%w: hard_caps.%s: %v", timeclock.ErrInvalidSchedule, name, err)
			}
			s.HardCaps[slot] = tod
		}
	}

	if sj.Timezone != "" {
		loc, err := time.LoadLocation(sj.Timezone)
		if err != nil {
			return timeclock.Schedule{}, fmt.Errorf("%w: timezone: %v", timeclock.ErrInvalidSchedule, err)
		}
		s.Location = loc
	}

	if err := s.Validate(); err != nil {
		return timeclock.Schedule{}, err
	}
	return s, nil
}

// ToJSON is the inverse of Build, used to report the active schedule.
func (f *ScheduleFactory) ToJSON(s timeclock.Schedule) ScheduleJSON {
	std, round, grace := s.StandardMins, s.RoundTo, s.GraceMins
	sj := ScheduleJSON{
		AMIn:                      s.AMIn,
		AMOut:                     s.AMOut,
		PMIn:                      s.PMIn,
		PMOut:                     s.PMOut,
		StandardMins:              &std,
		RoundTo:                   &round,
		GraceMins:                 &grace,
		OvertimeMode:              string(s.OvertimeMode),
		FullSessionAbsencePenalty: s.FullSessionAbsencePenalty,
		StitchSpanningShift:       s.StitchSpanningShift,
	}
	if s.Location != nil {
		sj.Timezone = s.Location.String()
	}
	if len(s.HardCaps) > 0 {
		sj.HardCaps = make(map[string]string, len(s.HardCaps))
		for slot, tod := range s.HardCaps {
			sj.HardCaps[string(slot)] = tod.String()
		}
	}
	return sj
}
