/*
store.go - Persistence contract for attendance records

PURPOSE:
  Defines the interface between the punch machine and the database. The
  store owns one row per (employee_id, work_date) and exposes only the
  narrow writes the state machine needs.

CONDITIONAL WRITES:
  A punch must not read the row, validate, and then write blindly: two
  concurrent punches on the same slot could both pass validation. Every
  mutating method therefore carries its preconditions into the write itself
  and reports whether a row matched:

    UPDATE attendance_records SET <slot> = ?
    WHERE employee_id = ? AND work_date = ?
      AND <slot> IS NULL AND paid = 0
      [AND <prerequisite> IS NOT NULL] [AND ot_allowed = 1]

  A false result means some precondition failed between the read and the
  write. The machine re-reads the row to report which one.

PAID LOCK:
  Every mutating method includes paid = 0 in its condition. A paid row can
  never change through this interface.

IMPLEMENTATIONS:
  - store/sqlite: SQLite
  - store/postgres: PostgreSQL via pgx
  - timeclock/store: in-memory for tests
*/
package timeclock

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Row storage for attendance records
// =============================================================================

type Store interface {
	// GetDay returns the record, or nil without error when none exists.
	GetDay(ctx context.Context, employeeID string, date Date) (*AttendanceRecord, error)

	// ListRange returns records in [from, to], ascending by date.
	ListRange(ctx context.Context, employeeID string, from, to Date) ([]AttendanceRecord, error)

	// EnsureDay inserts an empty record if none exists.
	EnsureDay(ctx context.Context, employeeID string, date Date, at time.Time) error

	// SetSlot writes w.Value into an empty slot. See CONDITIONAL WRITES.
	SetSlot(ctx context.Context, w SlotWrite) (bool, error)

	// ClearSlot nulls a slot if it still holds c.Expected and the record is unpaid.
	ClearSlot(ctx context.Context, c SlotClear) (bool, error)

	// SetOvertimeAllowed updates the approval flag on an unpaid record.
	SetOvertimeAllowed(ctx context.Context, employeeID string, date Date, allowed bool, at time.Time) (bool, error)

	// MarkPaid locks every unpaid record in [from, to] and returns how many
	// were locked.
	MarkPaid(ctx context.Context, employeeID string, from, to Date, at time.Time) (int, error)
}

// UnpaidSpan names an employee with unpaid records and the oldest of them.
type UnpaidSpan struct {
	EmployeeID string
	Earliest   Date
}

// PayrollLister is implemented by stores that can enumerate unpaid records
// across employees. The payroll lock scheduler needs it; the punch path does
// not.
type PayrollLister interface {
	// UnpaidThrough returns one span per employee with an unpaid record dated
	// on or before through, ordered by employee ID.
	UnpaidThrough(ctx context.Context, through Date) ([]UnpaidSpan, error)
}

type SlotWrite struct {
	EmployeeID string
	Date       Date
	Slot       Slot
	Value      string
	At         time.Time
}

type SlotClear struct {
	EmployeeID string
	Date       Date
	Slot       Slot
	Expected   string
	At         time.Time
}

// =============================================================================
// AUDIT LOG - Who punched what, from where
// =============================================================================

type AuditAction string

const (
	AuditPunch           AuditAction = "punch"
	AuditUndo            AuditAction = "undo"
	AuditOvertimeAllowed AuditAction = "overtime_allowed"
	AuditPaid            AuditAction = "paid"
)

type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Source     string
	Action     AuditAction
	EmployeeID string
	WorkDate   Date
	Slot       Slot
	Value      string
}

// AuditLog is append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows Query. Zero fields match everything; results are
// ordered oldest first.
type AuditFilter struct {
	EmployeeID string
	ActorID    string
	From       *Date
	To         *Date
	Limit      int
}

// Matches applies the filter to one entry. Stores without a query language
// use it directly.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.From != nil && e.WorkDate.Before(*f.From) {
		return false
	}
	if f.To != nil && e.WorkDate.After(*f.To) {
		return false
	}
	return true
}
