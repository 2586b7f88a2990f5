/*
punch.go - Punch state machine

PURPOSE:
  Validates and applies a single punch or undo against a day's record.
  Wraps a Store with the ordering, window, hard-cap and paid-lock rules.

STATES:
  Per slot: NoRecord -> Created -> {slot}Set. Record-level terminal state
  Paid blocks every transition.

PUNCH PRECONDITIONS (checked in this order, each a distinct error):
  1. Record not paid                          ErrDayLocked
  2. Slot is one of the six names             ErrInvalidSlot
  3. Slot currently empty                     ErrAlreadyRecorded
  4. *_out has its *_in; ot_in has OTAllowed  ErrMissingPrerequisite
  5. Wall clock inside the slot's window      ErrOutsideWindow

  Out slots punched after their hard cap are stored at the cap.

RACES:
  The checks above run against a read of the row, then the write goes out
  as a conditional update carrying the same preconditions. If it matches
  no row, the record is re-read and the failing precondition reported.

EXAMPLE:
  machine := timeclock.NewPunchMachine(store, schedule,
      timeclock.WithAuditLog(store))
  err := machine.Punch(ctx, "emp-1", timeclock.NewDate(2025, 3, 10),
      timeclock.SlotAMIn, "emp-1", "kiosk-3")
*/
package timeclock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// WallClock supplies the current instant.
type WallClock interface {
	Now() time.Time
}

type WallClockFunc func() time.Time

func (f WallClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// =============================================================================
// PUNCH MACHINE
// =============================================================================

type PunchMachine struct {
	store    Store
	audit    AuditLog
	schedule Schedule
	clock    WallClock
	log      logrus.FieldLogger
}

type Option func(*PunchMachine)

func WithClock(c WallClock) Option { return func(m *PunchMachine) { m.clock = c } }

// WithAuditLog records every accepted mutation. Without it nothing is audited.
func WithAuditLog(a AuditLog) Option { return func(m *PunchMachine) { m.audit = a } }

func WithLogger(l logrus.FieldLogger) Option { return func(m *PunchMachine) { m.log = l } }

func NewPunchMachine(store Store, schedule Schedule, opts ...Option) *PunchMachine {
	m := &PunchMachine{
		store:    store,
		schedule: schedule,
		clock:    systemClock{},
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *PunchMachine) Schedule() Schedule { return m.schedule }

func (m *PunchMachine) now() time.Time { return m.clock.Now().In(m.schedule.location()) }

// Today is the current date in the schedule's location.
func (m *PunchMachine) Today() Date { return DateOf(m.now()) }

// =============================================================================
// PUNCH
// =============================================================================

// Punch stamps the current time into slot on the employee's record for date.
// actorID and source are recorded in the audit log only.
func (m *PunchMachine) Punch(ctx context.Context, employeeID string, date Date, slot Slot, actorID, source string) error {
	logger := m.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"work_date":   date.String(),
		"slot":        string(slot),
		"actor_id":    actorID,
		"source":      source,
	})

	rec, err := m.store.GetDay(ctx, employeeID, date)
	if err != nil {
		return fmt.Errorf("load day: %w", err)
	}
	if err := checkPunch(employeeID, date, slot, rec); err != nil {
		logger.WithError(err).Info("punch rejected")
		return err
	}

	now := m.now()
	stamp, ok := m.schedule.Stamp(date, slot, now)
	if !ok {
		w, _ := m.schedule.PunchWindow(slot)
		err := rejectf(ErrOutsideWindow, employeeID, date, slot,
			"%s is allowed %s-%s on %s, now is %s", slot, w.Start, w.End, date, now.Format("2006-01-02 15:04:05"))
		logger.WithError(err).Info("punch rejected")
		return err
	}
	if prereq, ok := slot.Prerequisite(); ok {
		if in, err := ParseTimeOfDay(*rec.Get(prereq)); err == nil && stamp < in {
			err := rejectf(ErrOutsideWindow, employeeID, date, slot,
				"%s %s would precede %s %s", slot, stamp, prereq, in)
			logger.WithError(err).Info("punch rejected")
			return err
		}
	}

	if rec == nil {
		if err := m.store.EnsureDay(ctx, employeeID, date, now); err != nil {
			return fmt.Errorf("create day: %w", err)
		}
	}

	value := stamp.String()
	applied, err := m.store.SetSlot(ctx, SlotWrite{
		EmployeeID: employeeID,
		Date:       date,
		Slot:       slot,
		Value:      value,
		At:         now,
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	if !applied {
		err := m.classifyLostWrite(ctx, employeeID, date, slot)
		logger.WithError(err).Warn("punch lost conditional write")
		return err
	}

	m.record(ctx, logger, AuditEntry{
		ActorID:    actorID,
		Source:     source,
		Action:     AuditPunch,
		EmployeeID: employeeID,
		WorkDate:   date,
		Slot:       slot,
		Value:      value,
	})
	logger.WithField("value", value).Info("punch recorded")
	return nil
}

// checkPunch applies the record-level preconditions to a read of the record.
func checkPunch(employeeID string, date Date, slot Slot, rec *AttendanceRecord) error {
	if rec != nil && rec.Paid {
		return rejectf(ErrDayLocked, employeeID, date, slot, "record is paid")
	}
	if !slot.Valid() {
		return rejectf(ErrInvalidSlot, employeeID, date, slot, "unknown slot %q", string(slot))
	}
	if v := rec.Get(slot); v != nil {
		return rejectf(ErrAlreadyRecorded, employeeID, date, slot, "already set to %s", *v)
	}
	if prereq, ok := slot.Prerequisite(); ok && rec.Get(prereq) == nil {
		return rejectf(ErrMissingPrerequisite, employeeID, date, slot, "%s requires %s", slot, prereq)
	}
	if slot.RequiresOvertimeApproval() && (rec == nil || !rec.OTAllowed) {
		return rejectf(ErrMissingPrerequisite, employeeID, date, slot, "overtime not allowed")
	}
	return nil
}

func (m *PunchMachine) classifyLostWrite(ctx context.Context, employeeID string, date Date, slot Slot) error {
	rec, err := m.store.GetDay(ctx, employeeID, date)
	if err != nil {
		return fmt.Errorf("reload day: %w", err)
	}
	if err := checkPunch(employeeID, date, slot, rec); err != nil {
		return err
	}
	return rejectf(ErrConcurrentModification, employeeID, date, slot, "record changed during punch")
}

// CanPunchNow reports whether slot is inside its window for date right now.
// It reads the clock and nothing else.
func (m *PunchMachine) CanPunchNow(date Date, slot Slot) bool {
	if !slot.Valid() {
		return false
	}
	_, ok := m.schedule.Stamp(date, slot, m.now())
	return ok
}

// =============================================================================
// UNDO
// =============================================================================

// UndoLast clears the highest-priority set slot among pm_out, pm_in, am_out,
// am_in. A missing or empty record is a no-op.
func (m *PunchMachine) UndoLast(ctx context.Context, employeeID string, date Date, actorID string) error {
	logger := m.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"work_date":   date.String(),
		"actor_id":    actorID,
	})

	rec, err := m.store.GetDay(ctx, employeeID, date)
	if err != nil {
		return fmt.Errorf("load day: %w", err)
	}
	if rec == nil {
		return nil
	}
	if rec.Paid {
		err := rejectf(ErrDayLocked, employeeID, date, "", "record is paid")
		logger.WithError(err).Info("undo rejected")
		return err
	}

	for _, slot := range undoOrder {
		v := rec.Get(slot)
		if v == nil {
			continue
		}
		cleared, err := m.store.ClearSlot(ctx, SlotClear{
			EmployeeID: employeeID,
			Date:       date,
			Slot:       slot,
			Expected:   *v,
			At:         m.now(),
		})
		if err != nil {
			return fmt.Errorf("clear %s: %w", slot, err)
		}
		if !cleared {
			fresh, err := m.store.GetDay(ctx, employeeID, date)
			if err != nil {
				return fmt.Errorf("reload day: %w", err)
			}
			if fresh != nil && fresh.Paid {
				return rejectf(ErrDayLocked, employeeID, date, slot, "record is paid")
			}
			return rejectf(ErrConcurrentModification, employeeID, date, slot, "record changed during undo")
		}
		m.record(ctx, logger, AuditEntry{
			ActorID:    actorID,
			Action:     AuditUndo,
			EmployeeID: employeeID,
			WorkDate:   date,
			Slot:       slot,
			Value:      *v,
		})
		logger.WithField("slot", string(slot)).Info("punch undone")
		return nil
	}
	return nil
}

// =============================================================================
// SUPERVISOR AND PAYROLL HOOKS
// =============================================================================

// AllowOvertime sets the day's overtime approval, creating the record if needed.
func (m *PunchMachine) AllowOvertime(ctx context.Context, employeeID string, date Date, allowed bool, actorID string) error {
	now := m.now()
	if err := m.store.EnsureDay(ctx, employeeID, date, now); err != nil {
		return fmt.Errorf("create day: %w", err)
	}
	applied, err := m.store.SetOvertimeAllowed(ctx, employeeID, date, allowed, now)
	if err != nil {
		return fmt.Errorf("set overtime: %w", err)
	}
	if !applied {
		return rejectf(ErrDayLocked, employeeID, date, "", "record is paid")
	}
	m.record(ctx, m.log, AuditEntry{
		ActorID:    actorID,
		Action:     AuditOvertimeAllowed,
		EmployeeID: employeeID,
		WorkDate:   date,
		Value:      fmt.Sprintf("%t", allowed),
	})
	return nil
}

// MarkPaid applies the paid lock to every record in the period. Already paid
// records are left alone and not counted.
func (m *PunchMachine) MarkPaid(ctx context.Context, employeeID string, from, to Date, actorID string) (int, error) {
	period := Period{Start: from, End: to}
	if err := period.Validate(); err != nil {
		return 0, err
	}
	n, err := m.store.MarkPaid(ctx, employeeID, period.Start, period.End, m.now())
	if err != nil {
		return 0, fmt.Errorf("mark paid: %w", err)
	}
	m.record(ctx, m.log, AuditEntry{
		ActorID:    actorID,
		Action:     AuditPaid,
		EmployeeID: employeeID,
		WorkDate:   period.Start,
		Value:      period.String(),
	})
	m.log.WithFields(logrus.Fields{
		"employee_id": employeeID,
		"period":      period.String(),
		"locked":      n,
	}).Info("days marked paid")
	return n, nil
}

// =============================================================================
// READS
// =============================================================================

// GetDay returns the record for date, or nil when the day was never punched.
func (m *PunchMachine) GetDay(ctx context.Context, employeeID string, date Date) (*AttendanceRecord, error) {
	return m.store.GetDay(ctx, employeeID, date)
}

// ListRange returns the records in [from, to], ascending by date.
func (m *PunchMachine) ListRange(ctx context.Context, employeeID string, from, to Date) ([]AttendanceRecord, error) {
	if err := (Period{Start: from, End: to}).Validate(); err != nil {
		return nil, err
	}
	return m.store.ListRange(ctx, employeeID, from, to)
}

// record appends to the audit log. The mutation has already landed, so a
// failed append is logged rather than returned.
func (m *PunchMachine) record(ctx context.Context, logger logrus.FieldLogger, entry AuditEntry) {
	if m.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = m.now()
	if err := m.audit.Append(ctx, entry); err != nil {
		logger.WithError(err).Warn("audit append failed")
	}
}
