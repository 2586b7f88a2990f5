package timeclock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/timeclock/timeclock"
	"github.com/warp/timeclock/timeclock/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) at(h, m int) { c.now = time.Date(2025, time.March, 10, h, m, 0, 0, time.UTC) }

func newTestMachine(t *testing.T) (*timeclock.PunchMachine, *store.Memory, *fakeClock) {
	t.Helper()
	mem := store.NewMemory()
	clock := &fakeClock{}
	clock.at(7, 55)
	logger, _ := test.NewNullLogger()
	m := timeclock.NewPunchMachine(mem, timeclock.DefaultSchedule(),
		timeclock.WithClock(clock),
		timeclock.WithAuditLog(mem),
		timeclock.WithLogger(logger),
	)
	return m, mem, clock
}

func punchAt(t *testing.T, m *timeclock.PunchMachine, clock *fakeClock, h, min int, slot timeclock.Slot) {
	t.Helper()
	clock.at(h, min)
	require.NoError(t, m.Punch(context.Background(), "emp-1", monday, slot, "emp-1", "kiosk-1"))
}

func getDay(t *testing.T, m *timeclock.PunchMachine) *timeclock.AttendanceRecord {
	t.Helper()
	rec, err := m.GetDay(context.Background(), "emp-1", monday)
	require.NoError(t, err)
	return rec
}

// =============================================================================
// PUNCH
// =============================================================================

func TestPunch_CreatesRecordAndStampsClock(t *testing.T) {
	// GIVEN: No record for the day
	// WHEN: am_in is punched at 07:55
	// THEN: The record exists with am_in 07:55:00
	m, _, clock := newTestMachine(t)

	punchAt(t, m, clock, 7, 55, timeclock.SlotAMIn)

	rec := getDay(t, m)
	require.NotNil(t, rec)
	require.NotNil(t, rec.AMIn)
	assert.Equal(t, "07:55:00", *rec.AMIn)
	assert.False(t, rec.Paid)
	assert.False(t, rec.OTAllowed)
}

func TestPunch_SlotAlreadySet_Rejected(t *testing.T) {
	m, _, clock := newTestMachine(t)
	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)

	clock.at(8, 5)
	err := m.Punch(context.Background(), "emp-1", monday, timeclock.SlotAMIn, "emp-1", "kiosk-1")

	assert.ErrorIs(t, err, timeclock.ErrAlreadyRecorded)
	assert.Equal(t, "08:00:00", *getDay(t, m).AMIn, "first write wins")
}

func TestPunch_InvalidSlot_Rejected(t *testing.T) {
	m, _, _ := newTestMachine(t)

	err := m.Punch(context.Background(), "emp-1", monday, timeclock.Slot("lunch_in"), "emp-1", "")

	assert.ErrorIs(t, err, timeclock.ErrInvalidSlot)
	var pe *timeclock.PunchError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "emp-1", pe.EmployeeID)
	assert.Equal(t, monday, pe.Date)
}

func TestPunch_OutWithoutIn_MissingPrerequisite(t *testing.T) {
	m, _, clock := newTestMachine(t)
	clock.at(12, 0)

	err := m.Punch(context.Background(), "emp-1", monday, timeclock.SlotAMOut, "emp-1", "")

	assert.ErrorIs(t, err, timeclock.ErrMissingPrerequisite)
	assert.Nil(t, getDay(t, m), "rejected punch creates no record")
}

func TestPunch_OvertimeNotAllowed_MissingPrerequisite(t *testing.T) {
	m, _, clock := newTestMachine(t)
	clock.at(18, 30)

	err := m.Punch(context.Background(), "emp-1", monday, timeclock.SlotOTIn, "emp-1", "")

	assert.ErrorIs(t, err, timeclock.ErrMissingPrerequisite)
}

func TestPunch_Windows(t *testing.T) {
	tests := []struct {
		name    string
		h, m    int
		slot    timeclock.Slot
		wantErr error
	}{
		{"am_in before opening", 5, 59, timeclock.SlotAMIn, timeclock.ErrOutsideWindow},
		{"am_in at opening", 6, 0, timeclock.SlotAMIn, nil},
		{"am_in at close", 11, 0, timeclock.SlotAMIn, nil},
		{"am_in after close", 11, 1, timeclock.SlotAMIn, timeclock.ErrOutsideWindow},
		{"pm_in before noon", 11, 59, timeclock.SlotPMIn, timeclock.ErrOutsideWindow},
		{"pm_in in window", 13, 0, timeclock.SlotPMIn, nil},
		{"pm_in after close", 17, 30, timeclock.SlotPMIn, timeclock.ErrOutsideWindow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, clock := newTestMachine(t)
			clock.at(tt.h, tt.m)

			err := m.Punch(context.Background(), "emp-1", monday, tt.slot, "emp-1", "")

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestPunch_OutAfterCap_Clamped(t *testing.T) {
	// GIVEN: am_in at 08:00
	// WHEN: am_out is punched at 14:00
	// THEN: The stored value is the 12:00 cap
	m, _, clock := newTestMachine(t)
	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)

	punchAt(t, m, clock, 14, 0, timeclock.SlotAMOut)

	assert.Equal(t, "12:00:00", *getDay(t, m).AMOut)
}

func TestPunch_PMOutAfterCap_ClampedAtSix(t *testing.T) {
	m, _, clock := newTestMachine(t)
	punchAt(t, m, clock, 13, 0, timeclock.SlotPMIn)

	punchAt(t, m, clock, 19, 45, timeclock.SlotPMOut)

	assert.Equal(t, "18:00:00", *getDay(t, m).PMOut)
}

func TestPunch_HardCapOverride(t *testing.T) {
	mem := store.NewMemory()
	clock := &fakeClock{}
	s := timeclock.DefaultSchedule()
	s.HardCaps = map[timeclock.Slot]timeclock.TimeOfDay{timeclock.SlotPMOut: timeclock.Clock(17, 30, 0)}
	logger, _ := test.NewNullLogger()
	m := timeclock.NewPunchMachine(mem, s, timeclock.WithClock(clock), timeclock.WithLogger(logger))

	punchAt(t, m, clock, 13, 0, timeclock.SlotPMIn)
	punchAt(t, m, clock, 18, 0, timeclock.SlotPMOut)

	assert.Equal(t, "17:30:00", *getDay(t, m).PMOut)
}

func TestPunch_OutBeforeIn_OutsideWindow(t *testing.T) {
	// GIVEN: am_in at 10:00
	// WHEN: The clock is moved back and am_out is punched at 09:00
	// THEN: The out would precede the in and is rejected
	m, _, clock := newTestMachine(t)
	punchAt(t, m, clock, 10, 0, timeclock.SlotAMIn)

	clock.at(9, 0)
	err := m.Punch(context.Background(), "emp-1", monday, timeclock.SlotAMOut, "emp-1", "")

	assert.ErrorIs(t, err, timeclock.ErrOutsideWindow)
}

func TestPunch_OtherDate_OutsideWindow(t *testing.T) {
	m, _, clock := newTestMachine(t)
	clock.at(8, 0)

	err := m.Punch(context.Background(), "emp-1", monday.AddDays(1), timeclock.SlotAMIn, "emp-1", "")

	assert.ErrorIs(t, err, timeclock.ErrOutsideWindow)
}

func TestPunch_OvertimeBeforeSix_OutsideWindow(t *testing.T) {
	// GIVEN: Overtime approved
	// WHEN: ot_in is punched at 17:30
	// THEN: The OT window has not opened
	m, _, clock := newTestMachine(t)
	ctx := context.Background()
	require.NoError(t, m.AllowOvertime(ctx, "emp-1", monday, true, "sup-1"))

	clock.at(17, 30)
	err := m.Punch(ctx, "emp-1", monday, timeclock.SlotOTIn, "emp-1", "")

	assert.ErrorIs(t, err, timeclock.ErrOutsideWindow)
	assert.True(t, timeclock.IsClientError(err))
	assert.False(t, timeclock.IsRetryable(err))
}

func TestPunch_OvertimeFlow(t *testing.T) {
	m, _, clock := newTestMachine(t)
	require.NoError(t, m.AllowOvertime(context.Background(), "emp-1", monday, true, "sup-1"))

	punchAt(t, m, clock, 18, 5, timeclock.SlotOTIn)
	punchAt(t, m, clock, 20, 35, timeclock.SlotOTOut)

	rec := getDay(t, m)
	assert.Equal(t, "18:05:00", *rec.OTIn)
	assert.Equal(t, "20:35:00", *rec.OTOut)
	assert.Equal(t, 150, timeclock.NewEngine(m.Schedule()).ComputeDay(monday, rec).OT)
}

func TestPunch_FullDay_Sequence(t *testing.T) {
	m, _, clock := newTestMachine(t)

	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)
	punchAt(t, m, clock, 12, 0, timeclock.SlotAMOut)
	punchAt(t, m, clock, 13, 0, timeclock.SlotPMIn)
	punchAt(t, m, clock, 16, 55, timeclock.SlotPMOut)

	rec := getDay(t, m)
	metrics := timeclock.NewEngine(m.Schedule()).ComputeDay(monday, rec)
	assert.Equal(t, 475, metrics.Regular)
	assert.Equal(t, 5, metrics.Deduct)

	_, ok := timeclock.NextSlot(rec)
	assert.False(t, ok, "no slots left without overtime")
}

// =============================================================================
// PAID LOCK
// =============================================================================

func TestPunch_PaidDay_Locked(t *testing.T) {
	// GIVEN: A day marked paid
	// WHEN: Any punch or undo is attempted
	// THEN: DayLocked, and the record is unchanged
	m, _, clock := newTestMachine(t)
	ctx := context.Background()
	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)

	n, err := m.MarkPaid(ctx, "emp-1", monday, monday, "payroll")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	clock.at(12, 0)
	assert.ErrorIs(t, m.Punch(ctx, "emp-1", monday, timeclock.SlotAMOut, "emp-1", ""), timeclock.ErrDayLocked)
	assert.ErrorIs(t, m.Punch(ctx, "emp-1", monday, timeclock.Slot("bogus"), "emp-1", ""), timeclock.ErrDayLocked,
		"paid is checked before slot validity")
	assert.ErrorIs(t, m.UndoLast(ctx, "emp-1", monday, "sup-1"), timeclock.ErrDayLocked)
	assert.ErrorIs(t, m.AllowOvertime(ctx, "emp-1", monday, true, "sup-1"), timeclock.ErrDayLocked)

	rec := getDay(t, m)
	assert.True(t, rec.Paid)
	assert.Nil(t, rec.AMOut)
	assert.NotNil(t, rec.AMIn)
}

func TestMarkPaid_CountsOnlyNewlyLocked(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()
	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)

	n, err := m.MarkPaid(ctx, "emp-1", monday.AddDays(-7), monday.AddDays(7), "payroll")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = m.MarkPaid(ctx, "emp-1", monday.AddDays(-7), monday.AddDays(7), "payroll")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMarkPaid_InvertedRange_Rejected(t *testing.T) {
	m, _, _ := newTestMachine(t)

	_, err := m.MarkPaid(context.Background(), "emp-1", monday, monday.AddDays(-1), "payroll")

	assert.ErrorIs(t, err, timeclock.ErrInvalidPeriod)
}

// =============================================================================
// UNDO
// =============================================================================

func TestUndoLast_ClearsHighestSetSlot(t *testing.T) {
	// GIVEN: am_in, am_out, pm_in set
	// WHEN: UndoLast
	// THEN: pm_in is cleared and the AM pair stays
	m, _, clock := newTestMachine(t)
	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)
	punchAt(t, m, clock, 12, 0, timeclock.SlotAMOut)
	punchAt(t, m, clock, 13, 0, timeclock.SlotPMIn)

	require.NoError(t, m.UndoLast(context.Background(), "emp-1", monday, "sup-1"))

	rec := getDay(t, m)
	assert.Nil(t, rec.PMIn)
	assert.Equal(t, "08:00:00", *rec.AMIn)
	assert.Equal(t, "12:00:00", *rec.AMOut)
}

func TestUndoLast_RepeatedUntilEmpty(t *testing.T) {
	m, _, clock := newTestMachine(t)
	ctx := context.Background()
	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)
	punchAt(t, m, clock, 12, 0, timeclock.SlotAMOut)

	require.NoError(t, m.UndoLast(ctx, "emp-1", monday, "sup-1"))
	require.NoError(t, m.UndoLast(ctx, "emp-1", monday, "sup-1"))
	require.NoError(t, m.UndoLast(ctx, "emp-1", monday, "sup-1"), "empty record is a no-op")

	rec := getDay(t, m)
	require.NotNil(t, rec)
	assert.False(t, rec.HasAnyPunch())
}

func TestUndoLast_NoRecord_NoOp(t *testing.T) {
	m, _, _ := newTestMachine(t)

	assert.NoError(t, m.UndoLast(context.Background(), "emp-1", monday, "sup-1"))
	assert.Nil(t, getDay(t, m))
}

func TestUndoLast_LeavesOvertimeSlots(t *testing.T) {
	m, _, clock := newTestMachine(t)
	require.NoError(t, m.AllowOvertime(context.Background(), "emp-1", monday, true, "sup-1"))
	punchAt(t, m, clock, 18, 30, timeclock.SlotOTIn)

	require.NoError(t, m.UndoLast(context.Background(), "emp-1", monday, "sup-1"))

	assert.Equal(t, "18:30:00", *getDay(t, m).OTIn)
}

// =============================================================================
// RACES
// =============================================================================

// racingStore lets another writer land a value just before the machine's
// conditional write goes out.
type racingStore struct {
	*store.Memory
	raced bool
}

func (s *racingStore) SetSlot(ctx context.Context, w timeclock.SlotWrite) (bool, error) {
	if !s.raced {
		s.raced = true
		competing := w
		competing.Value = "07:59:00"
		if _, err := s.Memory.SetSlot(ctx, competing); err != nil {
			return false, err
		}
	}
	return s.Memory.SetSlot(ctx, w)
}

func TestPunch_LostConditionalWrite_ReportsFailingPrecondition(t *testing.T) {
	// GIVEN: Two kiosks punch am_in at the same time
	// WHEN: The other kiosk's write lands between read and write
	// THEN: This punch fails AlreadyRecorded and the first value stands
	rs := &racingStore{Memory: store.NewMemory()}
	clock := &fakeClock{}
	logger, _ := test.NewNullLogger()
	m := timeclock.NewPunchMachine(rs, timeclock.DefaultSchedule(), timeclock.WithClock(clock), timeclock.WithLogger(logger))
	ctx := context.Background()

	clock.at(8, 0)
	err := m.Punch(ctx, "emp-1", monday, timeclock.SlotAMIn, "emp-1", "kiosk-2")

	assert.ErrorIs(t, err, timeclock.ErrAlreadyRecorded)
	rec, err := rs.GetDay(ctx, "emp-1", monday)
	require.NoError(t, err)
	assert.Equal(t, "07:59:00", *rec.AMIn)
}

// =============================================================================
// CAN PUNCH NOW
// =============================================================================

func TestCanPunchNow(t *testing.T) {
	m, _, clock := newTestMachine(t)

	clock.at(7, 55)
	assert.True(t, m.CanPunchNow(monday, timeclock.SlotAMIn))
	assert.False(t, m.CanPunchNow(monday, timeclock.SlotPMIn))
	assert.False(t, m.CanPunchNow(monday, timeclock.Slot("nope")))
	assert.False(t, m.CanPunchNow(monday.AddDays(1), timeclock.SlotAMIn))

	clock.at(19, 0)
	assert.True(t, m.CanPunchNow(monday, timeclock.SlotOTIn))
	assert.True(t, m.CanPunchNow(monday, timeclock.SlotPMOut), "out slots clamp")
	assert.False(t, m.CanPunchNow(monday, timeclock.SlotAMIn))
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAudit_RecordsEveryMutation(t *testing.T) {
	m, mem, clock := newTestMachine(t)
	ctx := context.Background()

	punchAt(t, m, clock, 8, 0, timeclock.SlotAMIn)
	require.NoError(t, m.UndoLast(ctx, "emp-1", monday, "sup-1"))
	require.NoError(t, m.AllowOvertime(ctx, "emp-1", monday, true, "sup-1"))
	_, err := m.MarkPaid(ctx, "emp-1", monday, monday, "payroll")
	require.NoError(t, err)

	entries, err := mem.Query(ctx, timeclock.AuditFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, timeclock.AuditPunch, entries[0].Action)
	assert.Equal(t, "kiosk-1", entries[0].Source)
	assert.Equal(t, "08:00:00", entries[0].Value)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, timeclock.AuditUndo, entries[1].Action)
	assert.Equal(t, "sup-1", entries[1].ActorID)
	assert.Equal(t, timeclock.AuditOvertimeAllowed, entries[2].Action)
	assert.Equal(t, timeclock.AuditPaid, entries[3].Action)

	rejected := m.Punch(ctx, "emp-1", monday, timeclock.SlotAMIn, "emp-1", "")
	require.Error(t, rejected)
	entries, err = mem.Query(ctx, timeclock.AuditFilter{EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Len(t, entries, 4, "rejections are not audited")
}
