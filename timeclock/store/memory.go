// Package store provides in-memory Store and AuditLog implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/timeclock/timeclock"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[key]*timeclock.AttendanceRecord
	audit   []timeclock.AuditEntry
}

type key struct {
	EmployeeID string
	Date       timeclock.Date
}

func NewMemory() *Memory {
	return &Memory{records: make(map[key]*timeclock.AttendanceRecord)}
}

func (m *Memory) GetDay(_ context.Context, employeeID string, date timeclock.Date) (*timeclock.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key{employeeID, date}]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (m *Memory) ListRange(_ context.Context, employeeID string, from, to timeclock.Date) ([]timeclock.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	period := timeclock.Period{Start: from, End: to}
	var result []timeclock.AttendanceRecord
	for k, rec := range m.records {
		if k.EmployeeID == employeeID && period.Contains(k.Date) {
			result = append(result, rec.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WorkDate.Before(result[j].WorkDate)
	})
	return result, nil
}

func (m *Memory) EnsureDay(_ context.Context, employeeID string, date timeclock.Date, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{employeeID, date}
	if _, ok := m.records[k]; !ok {
		m.records[k] = &timeclock.AttendanceRecord{
			EmployeeID: employeeID,
			WorkDate:   date,
			CreatedAt:  at,
			UpdatedAt:  at,
		}
	}
	return nil
}

// SetSlot checks the same preconditions the SQL stores put in their WHERE
// clause, under the write lock.
func (m *Memory) SetSlot(_ context.Context, w timeclock.SlotWrite) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key{w.EmployeeID, w.Date}]
	if !ok || rec.Paid || rec.Get(w.Slot) != nil {
		return false, nil
	}
	if prereq, ok := w.Slot.Prerequisite(); ok && rec.Get(prereq) == nil {
		return false, nil
	}
	if w.Slot.RequiresOvertimeApproval() && !rec.OTAllowed {
		return false, nil
	}
	v := w.Value
	rec.Set(w.Slot, &v)
	rec.UpdatedAt = w.At
	return true, nil
}

func (m *Memory) ClearSlot(_ context.Context, c timeclock.SlotClear) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key{c.EmployeeID, c.Date}]
	if !ok || rec.Paid {
		return false, nil
	}
	if cur := rec.Get(c.Slot); cur == nil || *cur != c.Expected {
		return false, nil
	}
	rec.Set(c.Slot, nil)
	rec.UpdatedAt = c.At
	return true, nil
}

func (m *Memory) SetOvertimeAllowed(_ context.Context, employeeID string, date timeclock.Date, allowed bool, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key{employeeID, date}]
	if !ok || rec.Paid {
		return false, nil
	}
	rec.OTAllowed = allowed
	rec.UpdatedAt = at
	return true, nil
}

func (m *Memory) MarkPaid(_ context.Context, employeeID string, from, to timeclock.Date, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	period := timeclock.Period{Start: from, End: to}
	n := 0
	for k, rec := range m.records {
		if k.EmployeeID == employeeID && period.Contains(k.Date) && !rec.Paid {
			rec.Paid = true
			rec.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

func (m *Memory) UnpaidThrough(_ context.Context, through timeclock.Date) ([]timeclock.UnpaidSpan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	earliest := make(map[string]timeclock.Date)
	for k, rec := range m.records {
		if rec.Paid || k.Date.After(through) {
			continue
		}
		if cur, ok := earliest[k.EmployeeID]; !ok || k.Date.Before(cur) {
			earliest[k.EmployeeID] = k.Date
		}
	}

	result := make([]timeclock.UnpaidSpan, 0, len(earliest))
	for emp, d := range earliest {
		result = append(result, timeclock.UnpaidSpan{EmployeeID: emp, Earliest: d})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EmployeeID < result[j].EmployeeID })
	return result, nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (m *Memory) Append(_ context.Context, entry timeclock.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *Memory) Query(_ context.Context, filter timeclock.AuditFilter) ([]timeclock.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []timeclock.AuditEntry
	for _, e := range m.audit {
		if !filter.Matches(e) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

var (
	_ timeclock.Store         = (*Memory)(nil)
	_ timeclock.AuditLog      = (*Memory)(nil)
	_ timeclock.PayrollLister = (*Memory)(nil)
)
