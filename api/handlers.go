/*
handlers.go - HTTP API handlers for the punch engine

PURPOSE:
  Exposes the punch machine and metrics engine as a JSON API. Handles HTTP
  request/response and delegates to the timeclock package.

ENDPOINTS:
  Days:
    GET    /api/employees/{id}/days/{date}           Record, metrics, punchable slots
    POST   /api/employees/{id}/days/{date}/punch     Punch a slot
    POST   /api/employees/{id}/days/{date}/undo      Undo the last punch
    POST   /api/employees/{id}/days/{date}/overtime  Set overtime approval
    GET    /api/employees/{id}/days?from=&to=        Records + metrics for a range

  Payroll:
    POST   /api/employees/{id}/paid                  Lock a date range

  Config:
    GET    /api/schedule                             Active schedule

  Audit:
    GET    /api/audit?employee_id=&from=&to=         Audit entries

ERROR HANDLING:
  Punch errors map to HTTP statuses by kind:
  - 400: invalid slot, malformed input
  - 409: already recorded, missing prerequisite, concurrent modification
  - 422: outside punch window
  - 423: day locked (paid)
  - 500: storage failures
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/warp/timeclock/factory"
	"github.com/warp/timeclock/timeclock"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Machine *timeclock.PunchMachine
	Engine  *timeclock.Engine
	Audit   timeclock.AuditLog
	Log     logrus.FieldLogger
}

// NewHandler wires a handler around a machine. The engine shares the
// machine's schedule.
func NewHandler(machine *timeclock.PunchMachine, audit timeclock.AuditLog, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		Machine: machine,
		Engine:  timeclock.NewEngine(machine.Schedule()),
		Audit:   audit,
		Log:     log,
	}
}

// =============================================================================
// DAY HANDLERS
// =============================================================================

// GetDay returns a day's record with metrics.
// GET /api/employees/{id}/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	rec, err := h.Machine.GetDay(r.Context(), employeeID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get day", err)
		return
	}
	writeJSON(w, http.StatusOK, h.dayResponse(date, rec))
}

// Punch stamps the current time into a slot.
// POST /api/employees/{id}/days/{date}/punch
func (h *Handler) Punch(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	var req PunchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		req.ActorID = employeeID
	}

	err := h.Machine.Punch(r.Context(), employeeID, date, timeclock.Slot(req.Slot), req.ActorID, req.Source)
	if err != nil {
		writePunchError(w, err)
		return
	}
	h.respondWithDay(w, r, employeeID, date)
}

// Undo clears the last punch of the day.
// POST /api/employees/{id}/days/{date}/undo
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	var req UndoRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	if req.ActorID == "" {
		req.ActorID = employeeID
	}

	if err := h.Machine.UndoLast(r.Context(), employeeID, date, req.ActorID); err != nil {
		writePunchError(w, err)
		return
	}
	h.respondWithDay(w, r, employeeID, date)
}

// SetOvertime records the supervisor's overtime approval.
// POST /api/employees/{id}/days/{date}/overtime
func (h *Handler) SetOvertime(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	date, ok := dateParam(w, r)
	if !ok {
		return
	}

	var req OvertimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	if err := h.Machine.AllowOvertime(r.Context(), employeeID, date, req.Allowed, req.ActorID); err != nil {
		writePunchError(w, err)
		return
	}
	h.respondWithDay(w, r, employeeID, date)
}

// ListDays returns records and metrics in a date range.
// GET /api/employees/{id}/days?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) ListDays(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")
	from, err := timeclock.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := timeclock.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	records, err := h.Machine.ListRange(r.Context(), employeeID, from, to)
	if errors.Is(err, timeclock.ErrInvalidPeriod) {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list days", err)
		return
	}

	sum := h.Engine.Summarize(employeeID, timeclock.Period{Start: from, End: to}, records)
	resp := RangeResponse{
		EmployeeID:   employeeID,
		From:         from.String(),
		To:           to.String(),
		Days:         make([]DayMetricDTO, 0, len(sum.Days)),
		Totals:       toMetricsDTO(sum.Totals),
		RegularHours: sum.RegularHours().StringFixed(2),
		DeductHours:  sum.DeductHours().StringFixed(2),
		OTHours:      sum.OTHours().StringFixed(2),
		DaysPunched:  sum.DaysPunched,
		DaysPaid:     sum.DaysPaid,
	}
	for _, d := range sum.Days {
		resp.Days = append(resp.Days, DayMetricDTO{Record: toRecordDTO(d.Record), Metrics: toMetricsDTO(d.Metrics)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// MarkPaid locks every record in a range.
// POST /api/employees/{id}/paid
func (h *Handler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var req MarkPaidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	from, err := timeclock.ParseDate(req.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := timeclock.ParseDate(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}
	if req.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	n, err := h.Machine.MarkPaid(r.Context(), employeeID, from, to, req.ActorID)
	if errors.Is(err, timeclock.ErrInvalidPeriod) {
		writeError(w, http.StatusBadRequest, "Invalid range", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to mark paid", err)
		return
	}
	writeJSON(w, http.StatusOK, MarkPaidResponse{Locked: n})
}

// =============================================================================
// CONFIG AND AUDIT
// =============================================================================

// GetSchedule returns the active schedule.
// GET /api/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.NewScheduleFactory().ToJSON(h.Machine.Schedule()))
}

// ListAudit returns audit entries.
// GET /api/audit?employee_id=&from=&to=&limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []AuditEntryDTO{})
		return
	}
	q := r.URL.Query()
	filter := timeclock.AuditFilter{EmployeeID: q.Get("employee_id"), ActorID: q.Get("actor_id")}
	if v := q.Get("from"); v != "" {
		d, err := timeclock.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date", err)
			return
		}
		filter.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := timeclock.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date", err)
			return
		}
		filter.To = &d
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) respondWithDay(w http.ResponseWriter, r *http.Request, employeeID string, date timeclock.Date) {
	rec, err := h.Machine.GetDay(r.Context(), employeeID, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload day", err)
		return
	}
	writeJSON(w, http.StatusOK, h.dayResponse(date, rec))
}

func (h *Handler) dayResponse(date timeclock.Date, rec *timeclock.AttendanceRecord) DayResponse {
	resp := DayResponse{
		Metrics:  toMetricsDTO(h.Engine.ComputeDay(date, rec)),
		CanPunch: []string{},
	}
	if rec != nil {
		dto := toRecordDTO(*rec)
		resp.Record = &dto
	}
	if rec == nil || !rec.Paid {
		for _, slot := range timeclock.AllSlots {
			if rec.Get(slot) == nil && h.Machine.CanPunchNow(date, slot) {
				resp.CanPunch = append(resp.CanPunch, string(slot))
			}
		}
		if next, ok := timeclock.NextSlot(rec); ok {
			resp.NextSlot = string(next)
		}
	}
	return resp
}

func dateParam(w http.ResponseWriter, r *http.Request) (timeclock.Date, bool) {
	date, err := timeclock.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return timeclock.Date{}, false
	}
	return date, true
}

// punchStatus maps error kinds to HTTP statuses.
func punchStatus(err error) (int, string) {
	switch {
	case errors.Is(err, timeclock.ErrInvalidSlot):
		return http.StatusBadRequest, "invalid_slot"
	case errors.Is(err, timeclock.ErrAlreadyRecorded):
		return http.StatusConflict, "already_recorded"
	case errors.Is(err, timeclock.ErrMissingPrerequisite):
		return http.StatusConflict, "missing_prerequisite"
	case errors.Is(err, timeclock.ErrOutsideWindow):
		return http.StatusUnprocessableEntity, "outside_window"
	case errors.Is(err, timeclock.ErrDayLocked):
		return http.StatusLocked, "day_locked"
	case errors.Is(err, timeclock.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	}
	return http.StatusInternalServerError, ""
}

func writePunchError(w http.ResponseWriter, err error) {
	status, kind := punchStatus(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind}
	if status == http.StatusInternalServerError {
		resp = ErrorResponse{Error: "Internal error", Details: err.Error()}
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
