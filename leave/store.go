/*
store.go - Persistence interfaces for employees, requests, and run reports

PURPOSE:
  Defines the interface between the engine and the record store.
  Different implementations can use SQLite or in-memory storage.

OPTIMISTIC CONCURRENCY:
  SaveEmployee and SaveRequest are conditional writes on the record's
  Version. A save with a stale version fails with ErrConflict and
  changes nothing. On the employee side this makes the ledger's
  read-modify-write of balances safe against the accrual-job/approval
  race; on the request side it lets the lifecycle service claim a
  status transition exactly once when two admins race.

  Version 0 means "never saved": the store inserts and sets Version to 1.
  Any other version must match the stored row exactly; on success the
  store increments it.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - leave/store/memory.go:  In-memory for testing

SEE ALSO:
  - ledger.go: The only writer of employee balances
  - request.go: Reads and writes requests
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// EmployeeStore persists employee records.
type EmployeeStore interface {
	// GetEmployee loads an employee. Returns ErrNotFound for unknown ids.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// SaveEmployee writes an employee conditionally on its Version.
	// Inserts when Version is 0. Returns ErrConflict when the stored
	// version differs; on success the employee's Version is incremented
	// in place.
	SaveEmployee(ctx context.Context, emp *Employee) error

	// ListEmployees returns all employees.
	ListEmployees(ctx context.Context) ([]*Employee, error)

	// ListActiveEmployees returns employees with active status, consumed
	// by bulk accrual runs.
	ListActiveEmployees(ctx context.Context) ([]*Employee, error)
}

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists leave requests.
type RequestStore interface {
	// GetRequest loads a request. Returns ErrNotFound for unknown ids.
	GetRequest(ctx context.Context, id RequestID) (*Request, error)

	// SaveRequest writes a request conditionally on its Version. Inserts
	// when Version is 0. Returns ErrConflict when the stored version
	// differs; on success the request's Version is incremented in place.
	SaveRequest(ctx context.Context, req *Request) error

	// ListRequestsByEmployee returns an employee's requests, newest first.
	ListRequestsByEmployee(ctx context.Context, id EmployeeID) ([]*Request, error)

	// ListPendingRequests returns all requests awaiting a decision.
	ListPendingRequests(ctx context.Context) ([]*Request, error)
}

// =============================================================================
// ACCRUAL RUN STORE - Bulk-run reports for audit and UI display
// =============================================================================

// AccrualRun records one bulk accrual pass over the active employees.
// Failures are per-employee and never abort the run; they are collected
// into Failures instead.
type AccrualRun struct {
	ID         string
	AsOf       time.Time
	Processed  int // employees granted an accrual
	Skipped    int // employees with nothing due
	Failed     int
	Failures   []RunFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunFailure is one employee's isolated failure within a bulk run.
type RunFailure struct {
	EmployeeID EmployeeID
	Err        string
}

// RunStore persists bulk accrual run reports.
type RunStore interface {
	SaveAccrualRun(ctx context.Context, run AccrualRun) error
	ListAccrualRuns(ctx context.Context, limit int) ([]AccrualRun, error)
}

// Store bundles the persistence interfaces the engine and its HTTP layer
// need. Concrete stores implement all of them.
type Store interface {
	EmployeeStore
	RequestStore
	RunStore
}
