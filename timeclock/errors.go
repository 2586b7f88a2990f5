/*
errors.go - Error taxonomy for punch operations

PURPOSE:
  Every precondition a punch or undo can violate has its own sentinel, so
  callers match on kind with errors.Is and never on message text.

ERROR CATEGORIES:
  1. Punch errors - InvalidSlot, AlreadyRecorded, MissingPrerequisite,
     OutsideWindow, DayLocked. All recoverable and user-facing.
  2. Concurrency errors - a conditional write lost a race.
  3. Configuration errors - an invalid Schedule or Period.

USAGE:
  err := machine.Punch(ctx, "emp-1", day, timeclock.SlotAMIn, "emp-1", "kiosk")
  switch {
  case errors.Is(err, timeclock.ErrOutsideWindow):
      // show the allowed window, let the user retry later
  case errors.Is(err, timeclock.ErrDayLocked):
      // payroll already finalized this day
  }

  Storage failures are wrapped with %w and carry none of these sentinels.
*/
package timeclock

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSlot is returned for an unknown slot name.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrAlreadyRecorded is returned when the slot already holds a punch.
	ErrAlreadyRecorded = errors.New("slot already recorded")

	// ErrMissingPrerequisite is returned for an out punch before its in punch,
	// or an ot_in punch on a day without overtime approval.
	ErrMissingPrerequisite = errors.New("missing prerequisite punch")

	// ErrOutsideWindow is returned when the wall clock is outside the slot's
	// allowed range for the date.
	ErrOutsideWindow = errors.New("outside punch window")

	// ErrDayLocked is returned for any mutation of a paid record.
	ErrDayLocked = errors.New("day is locked for payroll")

	// ErrConcurrentModification is returned when a conditional write matched
	// no row and re-reading the record shows no other precondition failure.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrInvalidPeriod   = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PunchError describes a rejected punch or undo.
type PunchError struct {
	Kind       error
	EmployeeID string
	Date       Date
	Slot       Slot
	Msg        string
}

func (e *PunchError) Error() string {
	if e == nil {
		return ""
	}
	var where string
	if e.EmployeeID != "" {
		where = fmt.Sprintf(" (employee %s, %s", e.EmployeeID, e.Date)
		if e.Slot != "" {
			where += ", " + string(e.Slot)
		}
		where += ")"
	}
	if e.Msg == "" {
		return e.Kind.Error() + where
	}
	return fmt.Sprintf("%s: %s%s", e.Kind.Error(), e.Msg, where)
}

func (e *PunchError) Unwrap() error { return e.Kind }

func rejectf(kind error, employeeID string, date Date, slot Slot, format string, args ...any) error {
	return &PunchError{
		Kind:       kind,
		EmployeeID: employeeID,
		Date:       date,
		Slot:       slot,
		Msg:        fmt.Sprintf(format, args...),
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is a punch precondition failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSlot) ||
		errors.Is(err, ErrAlreadyRecorded) ||
		errors.Is(err, ErrMissingPrerequisite) ||
		errors.Is(err, ErrOutsideWindow) ||
		errors.Is(err, ErrDayLocked)
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
