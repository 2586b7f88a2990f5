package factory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timeclock/timeclock"
)

func TestParseJSON_FullSchedule(t *testing.T) {
	// GIVEN: A JSON schedule setting every field
	// WHEN: Parsed
	// THEN: Every field lands on the Schedule
	f := NewScheduleFactory()

	s, err := f.ParseJSON(`{
		"am_in": "07:00",
		"am_out": "11:00",
		"pm_in": "13:00",
		"pm_out": "17:00",
		"standard_mins": 450,
		"round_to": 15,
		"grace_mins": 5,
		"overtime_mode": "implicit_beyond_standard",
		"full_session_absence_penalty": true,
		"stitch_spanning_shift": true,
		"hard_caps": {"pm_out": "18:30"},
		"timezone": "UTC"
	}`)
	require.NoError(t, err)

	assert.Equal(t, "07:00", s.AMIn)
	assert.Equal(t, "11:00", s.AMOut)
	assert.Equal(t, 450, s.StandardMins)
	assert.Equal(t, 15, s.RoundTo)
	assert.Equal(t, 5, s.GraceMins)
	assert.Equal(t, timeclock.OvertimeImplicitBeyondStandard, s.OvertimeMode)
	assert.True(t, s.FullSessionAbsencePenalty)
	assert.True(t, s.StitchSpanningShift)
	assert.Equal(t, timeclock.Clock(18, 30, 0), s.HardCap(timeclock.SlotPMOut))
	assert.Equal(t, timeclock.Clock(12, 0, 0), s.HardCap(timeclock.SlotAMOut))
}

func TestParseJSON_EmptyUsesDefaults(t *testing.T) {
	s, err := NewScheduleFactory().ParseJSON(`{}`)
	require.NoError(t, err)

	def := timeclock.DefaultSchedule()
	assert.Equal(t, def.AMIn, s.AMIn)
	assert.Equal(t, def.PMOut, s.PMOut)
	assert.Equal(t, timeclock.DefaultStandardMins, s.StandardMins)
	assert.Equal(t, timeclock.DefaultRoundTo, s.RoundTo)
	assert.Equal(t, timeclock.OvertimeExplicitWindow, s.OvertimeMode)
}

func TestParseJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"am_in":`},
		{"bad time", `{"am_in": "eight"}`},
		{"unknown mode", `{"overtime_mode": "sometimes"}`},
		{"zero standard", `{"standard_mins": 0}`},
		{"unknown cap slot", `{"hard_caps": {"lunch": "13:00"}}`},
		{"bad cap time", `{"hard_caps": {"pm_out": "6pm"}}`},
		{"unknown timezone", `{"timezone": "Mars/Olympus"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduleFactory().ParseJSON(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestParseJSON_ValidationErrorsAreTyped(t *testing.T) {
	_, err := NewScheduleFactory().ParseJSON(`{"round_to": 0}`)
	assert.ErrorIs(t, err, timeclock.ErrInvalidSchedule)
}

func TestParseTOML(t *testing.T) {
	s, err := NewScheduleFactory().ParseTOML(`
am_in = "07:30"
am_out = "11:30"
standard_mins = 420
overtime_mode = "explicit_window"

[hard_caps]
ot_out = "21:00"
`)
	require.NoError(t, err)

	assert.Equal(t, "07:30", s.AMIn)
	assert.Equal(t, "11:30", s.AMOut)
	assert.Equal(t, "13:00", s.PMIn, "default kept")
	assert.Equal(t, 420, s.StandardMins)
	assert.Equal(t, timeclock.Clock(21, 0, 0), s.HardCap(timeclock.SlotOTOut))
}

func TestParseTOML_Malformed(t *testing.T) {
	_, err := NewScheduleFactory().ParseTOML(`am_in = `)
	assert.Error(t, err)
}

func TestLoadFile_ByExtension(t *testing.T) {
	dir := t.TempDir()
	f := NewScheduleFactory()

	tomlPath := filepath.Join(dir, "schedule.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(`standard_mins = 400`), 0o644))
	s, err := f.LoadFile(tomlPath)
	require.NoError(t, err)
	assert.Equal(t, 400, s.StandardMins)

	jsonPath := filepath.Join(dir, "schedule.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"round_to": 30}`), 0o644))
	s, err = f.LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 30, s.RoundTo)

	yamlPath := filepath.Join(dir, "schedule.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`round_to: 30`), 0o644))
	_, err = f.LoadFile(yamlPath)
	assert.Error(t, err)

	_, err = f.LoadFile(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestToJSON_RoundTrips(t *testing.T) {
	f := NewScheduleFactory()
	in := timeclock.DefaultSchedule()
	in.RoundTo = 15
	in.HardCaps = map[timeclock.Slot]timeclock.TimeOfDay{timeclock.SlotPMOut: timeclock.Clock(18, 30, 0)}

	out, err := f.Build(f.ToJSON(in))
	require.NoError(t, err)

	assert.Equal(t, in.RoundTo, out.RoundTo)
	assert.Equal(t, in.StandardMins, out.StandardMins)
	assert.Equal(t, in.HardCaps, out.HardCaps)
	assert.Equal(t, "UTC", out.Location.String())
}
