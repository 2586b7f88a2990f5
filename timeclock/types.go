/*
Package timeclock provides the punch engine: it turns raw daily time punches
into payroll minute metrics and guards the punch state machine.

PURPOSE:
  One AttendanceRecord exists per employee per calendar date. Employees punch
  into named slots (am_in, am_out, pm_in, pm_out, ot_in, ot_out). The
  PunchMachine validates and applies a single punch or undo against that
  record. The Engine derives regular, deduct, overtime and worked minutes from
  the record under a Schedule. The two never overlap: the machine never
  computes metrics, the engine never mutates state.

KEY CONCEPTS IN THIS FILE (types.go):
  - Slot: one of the six named punch fields
  - AttendanceRecord: the per-employee-per-day row
  - DayMetrics: the engine output

INVARIANTS:
  1. A set slot is never overwritten by a punch. Only UndoLast clears it.
  2. An out slot never precedes its in slot.
  3. Once Paid, the record is immutable.

SEE ALSO:
  - schedule.go: Schedule and the punch window table
  - metrics.go: Engine (interval overlap arithmetic)
  - punch.go: PunchMachine (state transitions)
  - store.go: persistence contract
*/
package timeclock

import (
	"fmt"
	"time"
)

// =============================================================================
// SLOT - Named punch field
// =============================================================================

type Slot string

const (
	SlotAMIn  Slot = "am_in"
	SlotAMOut Slot = "am_out"
	SlotPMIn  Slot = "pm_in"
	SlotPMOut Slot = "pm_out"
	SlotOTIn  Slot = "ot_in"
	SlotOTOut Slot = "ot_out"
)

// AllSlots lists every slot in punch order.
var AllSlots = []Slot{SlotAMIn, SlotAMOut, SlotPMIn, SlotPMOut, SlotOTIn, SlotOTOut}

// undoOrder is the fixed priority UndoLast walks. Overtime slots are not part of it.
var undoOrder = []Slot{SlotPMOut, SlotPMIn, SlotAMOut, SlotAMIn}

// ParseSlot validates a slot name.
func ParseSlot(s string) (Slot, error) {
	slot := Slot(s)
	if !slot.Valid() {
		return "", &PunchError{Kind: ErrInvalidSlot, Slot: slot, Msg: fmt.Sprintf("unknown slot %q", s)}
	}
	return slot, nil
}

func (s Slot) Valid() bool {
	switch s {
	case SlotAMIn, SlotAMOut, SlotPMIn, SlotPMOut, SlotOTIn, SlotOTOut:
		return true
	}
	return false
}

// IsOut reports whether the slot closes an interval.
func (s Slot) IsOut() bool {
	return s == SlotAMOut || s == SlotPMOut || s == SlotOTOut
}

// Prerequisite returns the in slot an out slot depends on.
func (s Slot) Prerequisite() (Slot, bool) {
	switch s {
	case SlotAMOut:
		return SlotAMIn, true
	case SlotPMOut:
		return SlotPMIn, true
	case SlotOTOut:
		return SlotOTIn, true
	}
	return "", false
}

// RequiresOvertimeApproval reports whether the record must have OTAllowed set.
// ot_in does not depend on pm_out.
func (s Slot) RequiresOvertimeApproval() bool {
	return s == SlotOTIn
}

func (s Slot) String() string { return string(s) }

// =============================================================================
// ATTENDANCE RECORD - One row per employee per date
// =============================================================================

// AttendanceRecord holds a day's punches as HH:MM:SS strings. A nil slot has
// not been punched.
type AttendanceRecord struct {
	EmployeeID string
	WorkDate   Date

	AMIn  *string
	AMOut *string
	PMIn  *string
	PMOut *string
	OTIn  *string
	OTOut *string

	OTAllowed bool
	Paid      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Get returns the value held in slot, or nil.
func (r *AttendanceRecord) Get(slot Slot) *string {
	if r == nil {
		return nil
	}
	switch slot {
	case SlotAMIn:
		return r.AMIn
	case SlotAMOut:
		return r.AMOut
	case SlotPMIn:
		return r.PMIn
	case SlotPMOut:
		return r.PMOut
	case SlotOTIn:
		return r.OTIn
	case SlotOTOut:
		return r.OTOut
	}
	return nil
}

// Set replaces the value of slot. Stores use it to build records; callers
// mutate through the PunchMachine.
func (r *AttendanceRecord) Set(slot Slot, value *string) {
	switch slot {
	case SlotAMIn:
		r.AMIn = value
	case SlotAMOut:
		r.AMOut = value
	case SlotPMIn:
		r.PMIn = value
	case SlotPMOut:
		r.PMOut = value
	case SlotOTIn:
		r.OTIn = value
	case SlotOTOut:
		r.OTOut = value
	}
}

// HasAnyPunch reports whether any of the six slots is set.
func (r *AttendanceRecord) HasAnyPunch() bool {
	for _, s := range AllSlots {
		if r.Get(s) != nil {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot alias store state.
func (r AttendanceRecord) Clone() AttendanceRecord {
	out := r
	for _, s := range AllSlots {
		if v := r.Get(s); v != nil {
			c := *v
			out.Set(s, &c)
		}
	}
	return out
}

// NextSlot returns the first unset slot in punch order, skipping the overtime
// slots unless overtime is allowed. Used to drive UI affordances.
func NextSlot(r *AttendanceRecord) (Slot, bool) {
	for _, s := range AllSlots {
		if (s == SlotOTIn || s == SlotOTOut) && (r == nil || !r.OTAllowed) {
			continue
		}
		if r.Get(s) == nil {
			return s, true
		}
	}
	return "", false
}

// =============================================================================
// DAY METRICS - Engine output, all non-negative minutes
// =============================================================================

type DayMetrics struct {
	Regular int
	Deduct  int
	OT      int
	Worked  int
}

func (m DayMetrics) Add(o DayMetrics) DayMetrics {
	return DayMetrics{
		Regular: m.Regular + o.Regular,
		Deduct:  m.Deduct + o.Deduct,
		OT:      m.OT + o.OT,
		Worked:  m.Worked + o.Worked,
	}
}

func strPtr(s string) *string { return &s }
