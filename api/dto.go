/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Composite responses

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
*/
package api

import (
	"time"

	"github.com/warp/timeclock/timeclock"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type PunchRequest struct {
	Slot    string `json:"slot"`
	ActorID string `json:"actor_id"`
	Source  string `json:"source"`
}

type UndoRequest struct {
	ActorID string `json:"actor_id"`
}

type OvertimeRequest struct {
	Allowed bool   `json:"allowed"`
	ActorID string `json:"actor_id"`
}

type MarkPaidRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID string `json:"actor_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// RecordDTO is an attendance record. Unset slots are null.
type RecordDTO struct {
	EmployeeID string  `json:"employee_id"`
	WorkDate   string  `json:"work_date"`
	AMIn       *string `json:"am_in"`
	AMOut      *string `json:"am_out"`
	PMIn       *string `json:"pm_in"`
	PMOut      *string `json:"pm_out"`
	OTIn       *string `json:"ot_in"`
	OTOut      *string `json:"ot_out"`
	OTAllowed  bool    `json:"ot_allowed"`
	Paid       bool    `json:"paid"`
	CreatedAt  string  `json:"created_at,omitempty"`
	UpdatedAt  string  `json:"updated_at,omitempty"`
}

type MetricsDTO struct {
	Regular int `json:"regular"`
	Deduct  int `json:"deduct"`
	OT      int `json:"ot"`
	Worked  int `json:"worked"`
}

// DayResponse carries the record, its metrics, and which slots the UI may
// offer right now.
type DayResponse struct {
	Record   *RecordDTO `json:"record"`
	Metrics  MetricsDTO `json:"metrics"`
	CanPunch []string   `json:"can_punch"`
	NextSlot string     `json:"next_slot,omitempty"`
}

type RangeResponse struct {
	EmployeeID   string         `json:"employee_id"`
	From         string         `json:"from"`
	To           string         `json:"to"`
	Days         []DayMetricDTO `json:"days"`
	Totals       MetricsDTO     `json:"totals"`
	RegularHours string         `json:"regular_hours"`
	DeductHours  string         `json:"deduct_hours"`
	OTHours      string         `json:"ot_hours"`
	DaysPunched  int            `json:"days_punched"`
	DaysPaid     int            `json:"days_paid"`
}

type DayMetricDTO struct {
	Record  RecordDTO  `json:"record"`
	Metrics MetricsDTO `json:"metrics"`
}

type MarkPaidResponse struct {
	Locked int `json:"locked"`
}

type AuditEntryDTO struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	ActorID    string `json:"actor_id"`
	Source     string `json:"source,omitempty"`
	Action     string `json:"action"`
	EmployeeID string `json:"employee_id"`
	WorkDate   string `json:"work_date"`
	Slot       string `json:"slot,omitempty"`
	Value      string `json:"value,omitempty"`
}

// ErrorResponse is returned for every failed request. Kind is the stable
// machine-readable error name.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toRecordDTO(r timeclock.AttendanceRecord) RecordDTO {
	dto := RecordDTO{
		EmployeeID: r.EmployeeID,
		WorkDate:   r.WorkDate.String(),
		AMIn:       r.AMIn,
		AMOut:      r.AMOut,
		PMIn:       r.PMIn,
		PMOut:      r.PMOut,
		OTIn:       r.OTIn,
		OTOut:      r.OTOut,
		OTAllowed:  r.OTAllowed,
		Paid:       r.Paid,
	}
	if !r.CreatedAt.IsZero() {
		dto.CreatedAt = r.CreatedAt.Format(time.RFC3339)
	}
	if !r.UpdatedAt.IsZero() {
		dto.UpdatedAt = r.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toMetricsDTO(m timeclock.DayMetrics) MetricsDTO {
	return MetricsDTO{Regular: m.Regular, Deduct: m.Deduct, OT: m.OT, Worked: m.Worked}
}

func toAuditDTO(e timeclock.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:         e.ID,
		Timestamp:  e.Timestamp.Format(time.RFC3339),
		ActorID:    e.ActorID,
		Source:     e.Source,
		Action:     string(e.Action),
		EmployeeID: e.EmployeeID,
		WorkDate:   e.WorkDate.String(),
		Slot:       string(e.Slot),
		Value:      e.Value,
	}
}
