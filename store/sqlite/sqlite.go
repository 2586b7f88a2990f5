/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements timeclock.Store and timeclock.AuditLog using SQLite. The
  PostgreSQL store in store/postgres runs the same statements with a
  different placeholder syntax.

KEY TABLES:
  attendance_records: One row per (employee_id, work_date)
  punch_audit:        Append-only log of accepted mutations

CONDITIONAL WRITES:
  Slot writes are single UPDATE statements whose WHERE clause repeats the
  punch preconditions (slot empty, record unpaid, prerequisite present,
  overtime approved). RowsAffected tells the caller whether the write
  landed. There is no read-then-write window inside the store.

CONCURRENCY:
  Uses sync.RWMutex around database access, as SQLite allows one writer.
  The conditional UPDATE is what guarantees correctness; the mutex only
  avoids SQLITE_BUSY churn.

USAGE:
  store, err := sqlite.New("./data/timeclock.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  machine := timeclock.NewPunchMachine(store, schedule, timeclock.WithAuditLog(store))

SEE ALSO:
  - timeclock/store.go: Interface definitions
  - timeclock/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/timeclock/timeclock"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attendance_records (
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		am_in TEXT,
		am_out TEXT,
		pm_in TEXT,
		pm_out TEXT,
		ot_in TEXT,
		ot_out TEXT,
		ot_allowed BOOLEAN NOT NULL DEFAULT 0,
		paid BOOLEAN NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, work_date)
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_paid
		ON attendance_records(employee_id, paid);

	CREATE TABLE IF NOT EXISTS punch_audit (
		id TEXT PRIMARY KEY,
		recorded_at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		action TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		work_date TEXT NOT NULL,
		slot TEXT NOT NULL DEFAULT '',
		value TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_punch_audit_employee_date
		ON punch_audit(employee_id, work_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RECORD STORE (timeclock.Store interface)
// =============================================================================

const recordColumns = `employee_id, work_date, am_in, am_out, pm_in, pm_out, ot_in, ot_out,
	ot_allowed, paid, created_at, updated_at`

// GetDay returns the record for (employee, date), or nil if there is none.
func (s *Store) GetDay(ctx context.Context, employeeID string, date timeclock.Date) (*timeclock.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE employee_id = ? AND work_date = ?`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, employeeID, date.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day: %w", err)
	}
	return rec, nil
}

// ListRange returns records in [from, to] ordered by date.
func (s *Store) ListRange(ctx context.Context, employeeID string, from, to timeclock.Date) ([]timeclock.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + recordColumns + ` FROM attendance_records
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ?
		ORDER BY work_date ASC`

	rows, err := s.db.QueryContext(ctx, query, employeeID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list range: %w", err)
	}
	defer rows.Close()

	var records []timeclock.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// EnsureDay inserts an empty record unless one exists.
func (s *Store) EnsureDay(ctx context.Context, employeeID string, date timeclock.Date, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := at.UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance_records (employee_id, work_date, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(employee_id, work_date) DO NOTHING
	`, employeeID, date.String(), ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create day: %w", err)
	}
	return nil
}

// SetSlot writes a punch only if every precondition still holds.
func (s *Store) SetSlot(ctx context.Context, w timeclock.SlotWrite) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := SetSlotQuery(w)
	if err != nil {
		return false, err
	}
	return s.execAffected(ctx, query, args...)
}

// ClearSlot nulls a slot if it still holds the expected value.
func (s *Store) ClearSlot(ctx context.Context, c timeclock.SlotClear) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !c.Slot.Valid() {
		return false, fmt.Errorf("%w: %q", timeclock.ErrInvalidSlot, c.Slot)
	}
	col := string(c.Slot)
	query := `UPDATE attendance_records SET ` + col + ` = NULL, updated_at = ?
		WHERE employee_id = ? AND work_date = ? AND paid = 0 AND ` + col + ` = ?`
	return s.execAffected(ctx, query, c.At.UTC().Format(time.RFC3339), c.EmployeeID, c.Date.String(), c.Expected)
}

func (s *Store) SetOvertimeAllowed(ctx context.Context, employeeID string, date timeclock.Date, allowed bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.execAffected(ctx, `
		UPDATE attendance_records SET ot_allowed = ?, updated_at = ?
		WHERE employee_id = ? AND work_date = ? AND paid = 0
	`, allowed, at.UTC().Format(time.RFC3339), employeeID, date.String())
}

func (s *Store) MarkPaid(ctx context.Context, employeeID string, from, to timeclock.Date, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE attendance_records SET paid = 1, updated_at = ?
		WHERE employee_id = ? AND work_date >= ? AND work_date <= ? AND paid = 0
	`, at.UTC().Format(time.RFC3339), employeeID, from.String(), to.String())
	if err != nil {
		return 0, fmt.Errorf("failed to mark paid: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// UnpaidThrough lists employees holding unpaid records dated on or before through.
func (s *Store) UnpaidThrough(ctx context.Context, through timeclock.Date) ([]timeclock.UnpaidSpan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT employee_id, MIN(work_date) FROM attendance_records
		WHERE paid = 0 AND work_date <= ?
		GROUP BY employee_id
		ORDER BY employee_id ASC
	`, through.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list unpaid: %w", err)
	}
	defer rows.Close()

	var spans []timeclock.UnpaidSpan
	for rows.Next() {
		var emp, earliest string
		if err := rows.Scan(&emp, &earliest); err != nil {
			return nil, err
		}
		d, err := timeclock.ParseDate(earliest)
		if err != nil {
			return nil, fmt.Errorf("bad work_date %q: %w", earliest, err)
		}
		spans = append(spans, timeclock.UnpaidSpan{EmployeeID: emp, Earliest: d})
	}
	return spans, rows.Err()
}

func (s *Store) execAffected(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update day: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetSlotQuery builds the conditional UPDATE for a punch with ? placeholders.
// The slot name is validated before it is used as a column.
func SetSlotQuery(w timeclock.SlotWrite) (string, []any, error) {
	if !w.Slot.Valid() {
		return "", nil, fmt.Errorf("%w: %q", timeclock.ErrInvalidSlot, w.Slot)
	}
	col := string(w.Slot)
	conds := []string{"employee_id = ?", "work_date = ?", "paid = 0", col + " IS NULL"}
	if prereq, ok := w.Slot.Prerequisite(); ok {
		conds = append(conds, string(prereq)+" IS NOT NULL")
	}
	if w.Slot.RequiresOvertimeApproval() {
		conds = append(conds, "ot_allowed = 1")
	}
	query := `UPDATE attendance_records SET ` + col + ` = ?, updated_at = ? WHERE ` + strings.Join(conds, " AND ")
	args := []any{w.Value, w.At.UTC().Format(time.RFC3339), w.EmployeeID, w.Date.String()}
	return query, args, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*timeclock.AttendanceRecord, error) {
	var (
		rec                          timeclock.AttendanceRecord
		workDate, createdAt, updated string
		slots                        [6]sql.NullString
	)
	err := row.Scan(&rec.EmployeeID, &workDate,
		&slots[0], &slots[1], &slots[2], &slots[3], &slots[4], &slots[5],
		&rec.OTAllowed, &rec.Paid, &createdAt, &updated)
	if err != nil {
		return nil, err
	}

	d, err := time.Parse(dateLayout, workDate)
	if err != nil {
		return nil, fmt.Errorf("bad work_date %q: %w", workDate, err)
	}
	rec.WorkDate = timeclock.DateOf(d)
	for i, slot := range timeclock.AllSlots {
		if slots[i].Valid {
			v := slots[i].String
			rec.Set(slot, &v)
		}
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &rec, nil
}

// =============================================================================
// AUDIT LOG (timeclock.AuditLog interface)
// =============================================================================

func (s *Store) Append(ctx context.Context, e timeclock.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO punch_audit (id, recorded_at, actor_id, source, action, employee_id, work_date, slot, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.ActorID, e.Source, string(e.Action),
		e.EmployeeID, e.WorkDate.String(), string(e.Slot), e.Value)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, f timeclock.AuditFilter) ([]timeclock.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, recorded_at, actor_id, source, action, employee_id, work_date, slot, value
		FROM punch_audit WHERE 1 = 1`
	var args []any
	if f.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, f.EmployeeID)
	}
	if f.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, f.ActorID)
	}
	if f.From != nil {
		query += ` AND work_date >= ?`
		args = append(args, f.From.String())
	}
	if f.To != nil {
		query += ` AND work_date <= ?`
		args = append(args, f.To.String())
	}
	query += ` ORDER BY rowid ASC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit: %w", err)
	}
	defer rows.Close()

	var entries []timeclock.AuditEntry
	for rows.Next() {
		var (
			e                   timeclock.AuditEntry
			recordedAt, workDay string
			action, slot        string
		)
		if err := rows.Scan(&e.ID, &recordedAt, &e.ActorID, &e.Source, &action,
			&e.EmployeeID, &workDay, &slot, &e.Value); err != nil {
			return nil, err
		}
		e.Action = timeclock.AuditAction(action)
		e.Slot = timeclock.Slot(slot)
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, recordedAt)
		if d, err := time.Parse(dateLayout, workDay); err == nil {
			e.WorkDate = timeclock.DateOf(d)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var (
	_ timeclock.Store         = (*Store)(nil)
	_ timeclock.AuditLog      = (*Store)(nil)
	_ timeclock.PayrollLister = (*Store)(nil)
)
