// Package store provides in-memory implementations of the persistence
// interfaces (for testing/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	employees map[leave.EmployeeID]leave.Employee
	requests  map[leave.RequestID]leave.Request
	runs      []leave.AccrualRun
}

func NewMemory() *Memory {
	return &Memory{
		employees: make(map[leave.EmployeeID]leave.Employee),
		requests:  make(map[leave.RequestID]leave.Request),
	}
}

// Compile-time check that Memory implements the full store surface.
var _ leave.Store = (*Memory)(nil)

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id leave.EmployeeID) (*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	cp := cloneEmployee(emp)
	return &cp, nil
}

// SaveEmployee writes conditionally on Version. Version 0 inserts; any
// other version must match the stored record or the save fails with
// ErrConflict.
func (m *Memory) SaveEmployee(_ context.Context, emp *leave.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.employees[emp.ID]
	switch {
	case emp.Version == 0:
		if exists {
			return &leave.ConflictError{EmployeeID: emp.ID, Version: emp.Version}
		}
	case !exists || stored.Version != emp.Version:
		return &leave.ConflictError{EmployeeID: emp.ID, Version: emp.Version}
	}

	now := time.Now().UTC()
	if emp.Version == 0 {
		emp.CreatedAt = now
	}
	emp.UpdatedAt = now
	emp.Version++
	m.employees[emp.ID] = cloneEmployee(*emp)
	return nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(leave.Employee) bool { return true }), nil
}

func (m *Memory) ListActiveEmployees(_ context.Context) ([]*leave.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(e leave.Employee) bool { return e.Status == leave.StatusActive }), nil
}

func (m *Memory) listLocked(keep func(leave.Employee) bool) []*leave.Employee {
	var result []*leave.Employee
	for _, emp := range m.employees {
		if keep(emp) {
			cp := cloneEmployee(emp)
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// =============================================================================
// REQUEST STORE
// =============================================================================

func (m *Memory) GetRequest(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	cp := cloneRequest(req)
	return &cp, nil
}

// SaveRequest writes conditionally on Version, the same discipline as
// SaveEmployee. The lifecycle service relies on this to claim a status
// transition exactly once.
func (m *Memory) SaveRequest(_ context.Context, req *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.requests[req.ID]
	switch {
	case req.Version == 0:
		if exists {
			return &leave.RequestConflictError{RequestID: req.ID, Version: req.Version}
		}
	case !exists || stored.Version != req.Version:
		return &leave.RequestConflictError{RequestID: req.ID, Version: req.Version}
	}

	req.Version++
	m.requests[req.ID] = cloneRequest(*req)
	return nil
}

func (m *Memory) ListRequestsByEmployee(_ context.Context, id leave.EmployeeID) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(func(r leave.Request) bool { return r.EmployeeID == id }), nil
}

func (m *Memory) ListPendingRequests(_ context.Context) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRequestsLocked(func(r leave.Request) bool { return r.Status == leave.RequestPending }), nil
}

func (m *Memory) listRequestsLocked(keep func(leave.Request) bool) []*leave.Request {
	var result []*leave.Request
	for _, req := range m.requests {
		if keep(req) {
			cp := cloneRequest(req)
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// =============================================================================
// COPY HELPERS - Pointer fields must not alias between store and caller
// =============================================================================

func cloneEmployee(e leave.Employee) leave.Employee {
	if e.LastAccrual != nil {
		t := *e.LastAccrual
		e.LastAccrual = &t
	}
	return e
}

func cloneRequest(r leave.Request) leave.Request {
	if r.Plan != nil {
		p := *r.Plan
		r.Plan = &p
	}
	if r.DecidedBy != nil {
		s := *r.DecidedBy
		r.DecidedBy = &s
	}
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		r.DecidedAt = &t
	}
	return r
}

// =============================================================================
// RUN STORE
// =============================================================================

func (m *Memory) SaveAccrualRun(_ context.Context, run leave.AccrualRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.runs {
		if existing.ID == run.ID {
			m.runs[i] = run
			return nil
		}
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *Memory) ListAccrualRuns(_ context.Context, limit int) ([]leave.AccrualRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]leave.AccrualRun, len(m.runs))
	copy(runs, m.runs)
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
