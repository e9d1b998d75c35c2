/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.Store (employees, leave requests, accrual-run
  reports) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

OPTIMISTIC CONCURRENCY:
  Employee and request saves are conditional on the version column:

    UPDATE employees SET ... , version = version + 1
    WHERE id = ? AND version = ?

  Zero rows affected means a concurrent writer won; the save fails with
  leave.ErrConflict and the caller re-reads. On employees this
  serializes the accrual-job/approval race without locks; on requests
  it lets the lifecycle service claim a status transition exactly once.

KEY TABLES:
  employees:      Balance records with version column
  leave_requests: Requests with decision, deduction plan, version column
  accrual_runs:   Bulk accrual run reports (audit/UI)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

const dateLayout = "2006-01-02"

// Store implements leave.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ leave.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
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
	-- Employees (balance records, version column for optimistic concurrency)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		joining_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		paid_balance TEXT NOT NULL,
		half_day_balance TEXT NOT NULL,
		unpaid_balance TEXT NOT NULL,
		used_paid TEXT NOT NULL,
		last_accrual TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_status
		ON employees(status);

	-- Leave requests (never deleted by the engine)
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		reason TEXT,
		decision TEXT NOT NULL,
		plan_paid TEXT,
		plan_half_day TEXT,
		decided_by TEXT,
		decided_at TEXT,
		version INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON leave_requests(employee_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON leave_requests(status);

	-- Accrual runs (bulk-run reports for audit and UI)
	CREATE TABLE IF NOT EXISTS accrual_runs (
		id TEXT PRIMARY KEY,
		as_of TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		failures_json TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accrual_runs_started
		ON accrual_runs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// EMPLOYEE STORE (leave.EmployeeStore interface)
// =============================================================================

// GetEmployee loads an employee by id.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, joining_date, status, paid_balance, half_day_balance,
		       unpaid_balance, used_paid, last_accrual, version, created_at, updated_at
		FROM employees WHERE id = ?
	`, string(id))

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// SaveEmployee writes an employee conditionally on its version.
// Version 0 inserts; otherwise the update matches on version and a
// zero-row result surfaces as a conflict.
func (s *Store) SaveEmployee(ctx context.Context, emp *leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()

	if emp.Version == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO employees (id, name, email, joining_date, status, paid_balance,
				half_day_balance, unpaid_balance, used_paid, last_accrual, version,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`,
			string(emp.ID), emp.Name, emp.Email, emp.JoiningDate.Format(dateLayout),
			string(emp.Status), emp.PaidBalance.String(), emp.HalfDayBalance.String(),
			emp.UnpaidBalance.String(), emp.UsedPaid.String(), nullableTime(emp.LastAccrual),
			now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return &leave.ConflictError{EmployeeID: emp.ID, Version: emp.Version}
			}
			return fmt.Errorf("failed to insert employee: %w", err)
		}
		emp.Version = 1
		emp.CreatedAt = now
		emp.UpdatedAt = now
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE employees
		SET name = ?, email = ?, joining_date = ?, status = ?, paid_balance = ?,
		    half_day_balance = ?, unpaid_balance = ?, used_paid = ?, last_accrual = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		emp.Name, emp.Email, emp.JoiningDate.Format(dateLayout), string(emp.Status),
		emp.PaidBalance.String(), emp.HalfDayBalance.String(), emp.UnpaidBalance.String(),
		emp.UsedPaid.String(), nullableTime(emp.LastAccrual), now.Format(time.RFC3339),
		string(emp.ID), emp.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update employee: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &leave.ConflictError{EmployeeID: emp.ID, Version: emp.Version}
	}
	emp.Version++
	emp.UpdatedAt = now
	return nil
}

// ListEmployees returns all employees ordered by id.
func (s *Store) ListEmployees(ctx context.Context) ([]*leave.Employee, error) {
	return s.queryEmployees(ctx, `
		SELECT id, name, email, joining_date, status, paid_balance, half_day_balance,
		       unpaid_balance, used_paid, last_accrual, version, created_at, updated_at
		FROM employees ORDER BY id ASC
	`)
}

// ListActiveEmployees returns active employees, consumed by bulk accrual.
func (s *Store) ListActiveEmployees(ctx context.Context) ([]*leave.Employee, error) {
	return s.queryEmployees(ctx, `
		SELECT id, name, email, joining_date, status, paid_balance, half_day_balance,
		       unpaid_balance, used_paid, last_accrual, version, created_at, updated_at
		FROM employees WHERE status = 'active' ORDER BY id ASC
	`)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var employees []*leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*leave.Employee, error) {
	var (
		emp         leave.Employee
		id          string
		email       sql.NullString
		joining     string
		status      string
		paid        string
		halfDay     string
		unpaid      string
		usedPaid    string
		lastAccrual sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(&id, &emp.Name, &email, &joining, &status, &paid, &halfDay,
		&unpaid, &usedPaid, &lastAccrual, &emp.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	emp.ID = leave.EmployeeID(id)
	emp.Email = email.String
	emp.Status = leave.EmployeeStatus(status)
	emp.JoiningDate, _ = time.Parse(dateLayout, joining)
	emp.PaidBalance = parseDecimal(paid)
	emp.HalfDayBalance = parseDecimal(halfDay)
	emp.UnpaidBalance = parseDecimal(unpaid)
	emp.UsedPaid = parseDecimal(usedPaid)
	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	emp.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if lastAccrual.Valid && lastAccrual.String != "" {
		t, err := time.Parse(time.RFC3339, lastAccrual.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse last_accrual: %w", err)
		}
		emp.LastAccrual = &t
	}

	return &emp, nil
}

// =============================================================================
// REQUEST STORE (leave.RequestStore interface)
// =============================================================================

// GetRequest loads a leave request by id.
func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, start_date, end_date, leave_type, status, reason,
		       decision, plan_paid, plan_half_day, decided_by, decided_at,
		       version, created_at, updated_at
		FROM leave_requests WHERE id = ?
	`, string(id))

	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// SaveRequest writes a leave request conditionally on its version.
// Version 0 inserts; otherwise the update matches on version and a
// zero-row result surfaces as a conflict. The date range and type are
// fixed at submission and never updated.
func (s *Store) SaveRequest(ctx context.Context, req *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var planPaid, planHalfDay any
	if req.Plan != nil {
		planPaid = req.Plan.FromPaid.String()
		planHalfDay = req.Plan.FromHalfDay.String()
	}

	if req.Version == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO leave_requests (id, employee_id, start_date, end_date,
				leave_type, status, reason, decision, plan_paid, plan_half_day,
				decided_by, decided_at, version, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`,
			string(req.ID), string(req.EmployeeID),
			req.StartDate.Format(dateLayout), req.EndDate.Format(dateLayout),
			string(req.Type), string(req.Status), req.Reason, string(req.Decision),
			planPaid, planHalfDay,
			nullableString(req.DecidedBy), nullableTime(req.DecidedAt),
			req.CreatedAt.Format(time.RFC3339), req.UpdatedAt.Format(time.RFC3339),
		)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return &leave.RequestConflictError{RequestID: req.ID, Version: req.Version}
			}
			return fmt.Errorf("failed to insert request: %w", err)
		}
		req.Version = 1
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE leave_requests
		SET status = ?, reason = ?, decision = ?, plan_paid = ?, plan_half_day = ?,
		    decided_by = ?, decided_at = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`,
		string(req.Status), req.Reason, string(req.Decision), planPaid, planHalfDay,
		nullableString(req.DecidedBy), nullableTime(req.DecidedAt),
		req.UpdatedAt.Format(time.RFC3339),
		string(req.ID), req.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &leave.RequestConflictError{RequestID: req.ID, Version: req.Version}
	}
	req.Version++
	return nil
}

// ListRequestsByEmployee returns an employee's requests, newest first.
func (s *Store) ListRequestsByEmployee(ctx context.Context, id leave.EmployeeID) ([]*leave.Request, error) {
	return s.queryRequests(ctx, `
		SELECT id, employee_id, start_date, end_date, leave_type, status, reason,
		       decision, plan_paid, plan_half_day, decided_by, decided_at,
		       version, created_at, updated_at
		FROM leave_requests WHERE employee_id = ? ORDER BY created_at DESC
	`, string(id))
}

// ListPendingRequests returns all requests awaiting a decision.
func (s *Store) ListPendingRequests(ctx context.Context) ([]*leave.Request, error) {
	return s.queryRequests(ctx, `
		SELECT id, employee_id, start_date, end_date, leave_type, status, reason,
		       decision, plan_paid, plan_half_day, decided_by, decided_at,
		       version, created_at, updated_at
		FROM leave_requests WHERE status = 'pending' ORDER BY created_at ASC
	`)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*leave.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(row rowScanner) (*leave.Request, error) {
	var (
		req         leave.Request
		id          string
		employeeID  string
		startDate   string
		endDate     string
		leaveType   string
		status      string
		reason      sql.NullString
		decision    string
		planPaid    sql.NullString
		planHalfDay sql.NullString
		decidedBy   sql.NullString
		decidedAt   sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(&id, &employeeID, &startDate, &endDate, &leaveType, &status,
		&reason, &decision, &planPaid, &planHalfDay, &decidedBy, &decidedAt,
		&req.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	req.ID = leave.RequestID(id)
	req.EmployeeID = leave.EmployeeID(employeeID)
	req.StartDate, _ = time.Parse(dateLayout, startDate)
	req.EndDate, _ = time.Parse(dateLayout, endDate)
	req.Type = leave.LeaveType(leaveType)
	req.Status = leave.RequestStatus(status)
	req.Reason = reason.String
	req.Decision = leave.Decision(decision)
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if planPaid.Valid {
		req.Plan = &leave.DeductionPlan{
			FromPaid:    parseDecimal(planPaid.String),
			FromHalfDay: parseDecimal(planHalfDay.String),
		}
	}
	if decidedBy.Valid {
		by := decidedBy.String
		req.DecidedBy = &by
	}
	if decidedAt.Valid && decidedAt.String != "" {
		t, err := time.Parse(time.RFC3339, decidedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse decided_at: %w", err)
		}
		req.DecidedAt = &t
	}

	return &req, nil
}

// =============================================================================
// RUN STORE (leave.RunStore interface)
// =============================================================================

// SaveAccrualRun inserts or replaces a bulk accrual run report.
func (s *Store) SaveAccrualRun(ctx context.Context, run leave.AccrualRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failuresJSON any
	if len(run.Failures) > 0 {
		b, err := json.Marshal(run.Failures)
		if err != nil {
			return fmt.Errorf("failed to marshal run failures: %w", err)
		}
		failuresJSON = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accrual_runs (id, as_of, processed, skipped, failed,
			failures_json, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID, run.AsOf.Format(time.RFC3339), run.Processed, run.Skipped, run.Failed,
		failuresJSON, run.StartedAt.Format(time.RFC3339), run.FinishedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save accrual run: %w", err)
	}
	return nil
}

// ListAccrualRuns returns run reports, newest first.
func (s *Store) ListAccrualRuns(ctx context.Context, limit int) ([]leave.AccrualRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, as_of, processed, skipped, failed, failures_json, started_at, finished_at
		FROM accrual_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query accrual runs: %w", err)
	}
	defer rows.Close()

	var runs []leave.AccrualRun
	for rows.Next() {
		var (
			run       leave.AccrualRun
			asOf      string
			failures  sql.NullString
			startedAt string
			finished  string
		)
		if err := rows.Scan(&run.ID, &asOf, &run.Processed, &run.Skipped, &run.Failed,
			&failures, &startedAt, &finished); err != nil {
			return nil, err
		}
		run.AsOf, _ = time.Parse(time.RFC3339, asOf)
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		if failures.Valid && failures.String != "" {
			if err := json.Unmarshal([]byte(failures.String), &run.Failures); err != nil {
				return nil, fmt.Errorf("failed to unmarshal run failures: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
