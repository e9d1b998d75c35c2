package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleEmployee(id string) *leave.Employee {
	return leave.NewEmployee(leave.EmployeeID(id), "Test "+id, id+"@corp.test",
		time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC))
}

func TestEmployeeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	emp := sampleEmployee("emp-1")
	emp.PaidBalance = leave.Days(4.5)
	emp.HalfDayBalance = leave.HalfDayUnits(3)
	last := time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)
	emp.LastAccrual = &last

	require.NoError(t, s.SaveEmployee(ctx, emp))
	assert.Equal(t, int64(1), emp.Version)

	got, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, emp.Name, got.Name)
	assert.Equal(t, "4.5", got.PaidBalance.String())
	assert.Equal(t, "3", got.HalfDayBalance.String())
	assert.Equal(t, leave.DefaultUnpaidAllotment.String(), got.UnpaidBalance.String())
	require.NotNil(t, got.LastAccrual)
	assert.True(t, got.LastAccrual.Equal(last))
	assert.Equal(t, int64(1), got.Version)
}

func TestSaveEmployee_DuplicateInsertConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveEmployee(ctx, sampleEmployee("emp-1")))

	err := s.SaveEmployee(ctx, sampleEmployee("emp-1"))
	assert.ErrorIs(t, err, leave.ErrConflict)
}

func TestSaveEmployee_StaleVersionConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveEmployee(ctx, sampleEmployee("emp-1")))

	first, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	second, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)

	first.PaidBalance = leave.Days(3)
	require.NoError(t, s.SaveEmployee(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.PaidBalance = leave.Days(99)
	err = s.SaveEmployee(ctx, second)
	assert.True(t, leave.IsRetryable(err))

	stored, err := s.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "3", stored.PaidBalance.String())
}

func TestGetEmployee_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetEmployee(context.Background(), "ghost")
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestListActiveEmployees(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	blocked := sampleEmployee("emp-2")
	blocked.Status = leave.StatusBlocked
	require.NoError(t, s.SaveEmployee(ctx, sampleEmployee("emp-1")))
	require.NoError(t, s.SaveEmployee(ctx, blocked))
	require.NoError(t, s.SaveEmployee(ctx, sampleEmployee("emp-3")))

	active, err := s.ListActiveEmployees(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, leave.EmployeeID("emp-1"), active[0].ID)
	assert.Equal(t, leave.EmployeeID("emp-3"), active[1].ID)

	all, err := s.ListEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRequestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	actor := "hr-admin"

	req := &leave.Request{
		ID:         "req-1",
		EmployeeID: "emp-1",
		StartDate:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		Type:       leave.LeavePaid,
		Status:     leave.RequestApproved,
		Reason:     "trip",
		Decision:   leave.DecisionApproved,
		Plan: &leave.DeductionPlan{
			FromPaid:    leave.Days(2),
			FromHalfDay: leave.HalfDayUnits(2),
		},
		DecidedBy: &actor,
		DecidedAt: &now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.SaveRequest(ctx, req))
	assert.Equal(t, int64(1), req.Version)

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, leave.RequestApproved, got.Status)
	assert.Equal(t, leave.DecisionApproved, got.Decision)
	require.NotNil(t, got.Plan)
	assert.Equal(t, "2", got.Plan.FromPaid.String())
	assert.Equal(t, "2", got.Plan.FromHalfDay.String())
	require.NotNil(t, got.DecidedBy)
	assert.Equal(t, actor, *got.DecidedBy)
	require.NotNil(t, got.DecidedAt)
	assert.True(t, got.DecidedAt.Equal(now))
	assert.Equal(t, "3", got.DaysRequested().String())
}

func TestRequest_NilPlanStaysNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	req := &leave.Request{
		ID:         "req-1",
		EmployeeID: "emp-1",
		StartDate:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.March, 6, 0, 0, 0, 0, time.UTC),
		Type:       leave.LeavePaid,
		Status:     leave.RequestPending,
		Decision:   leave.DecisionPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.SaveRequest(ctx, req))

	got, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Nil(t, got.Plan)
	assert.Nil(t, got.DecidedBy)
	assert.Nil(t, got.DecidedAt)
}

func TestSaveRequest_StaleVersionConflicts(t *testing.T) {
	// GIVEN: two readers hold the same version of a pending request
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	req := &leave.Request{
		ID:         "req-1",
		EmployeeID: "emp-1",
		StartDate:  time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC),
		Type:       leave.LeavePaid,
		Status:     leave.RequestPending,
		Decision:   leave.DecisionApproved,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, s.SaveRequest(ctx, req))

	first, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	second, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)

	// WHEN: the first writer transitions the request
	first.Status = leave.RequestApproved
	require.NoError(t, s.SaveRequest(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	// THEN: the stale write is rejected and the transition survives
	second.Status = leave.RequestRejected
	err = s.SaveRequest(ctx, second)
	assert.True(t, leave.IsRetryable(err))

	stored, err := s.GetRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestApproved, stored.Status)

	// Duplicate insert of an existing id conflicts too.
	err = s.SaveRequest(ctx, &leave.Request{
		ID: "req-1", EmployeeID: "emp-1",
		StartDate: now, EndDate: now, Type: leave.LeavePaid,
		Status: leave.RequestPending, Decision: leave.DecisionPending,
		CreatedAt: now, UpdatedAt: now,
	})
	assert.ErrorIs(t, err, leave.ErrConflict)
}

func TestListPendingRequests(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	save := func(id string, status leave.RequestStatus, createdAt time.Time) {
		require.NoError(t, s.SaveRequest(ctx, &leave.Request{
			ID:         leave.RequestID(id),
			EmployeeID: "emp-1",
			StartDate:  now,
			EndDate:    now,
			Type:       leave.LeavePaid,
			Status:     status,
			Decision:   leave.DecisionPending,
			CreatedAt:  createdAt,
			UpdatedAt:  createdAt,
		}))
	}
	save("req-1", leave.RequestPending, now)
	save("req-2", leave.RequestApproved, now.Add(time.Second))
	save("req-3", leave.RequestPending, now.Add(2*time.Second))

	pending, err := s.ListPendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, leave.RequestID("req-1"), pending[0].ID, "oldest pending first")

	byEmployee, err := s.ListRequestsByEmployee(ctx, "emp-1")
	require.NoError(t, err)
	require.Len(t, byEmployee, 3)
	assert.Equal(t, leave.RequestID("req-3"), byEmployee[0].ID, "newest first")
}

func TestAccrualRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	run := leave.AccrualRun{
		ID:        "run-1",
		AsOf:      now,
		Processed: 4,
		Skipped:   2,
		Failed:    1,
		Failures: []leave.RunFailure{
			{EmployeeID: "emp-9", Err: "concurrent modification detected"},
		},
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
	}
	require.NoError(t, s.SaveAccrualRun(ctx, run))

	// Second run, and an upsert of the first.
	run2 := leave.AccrualRun{ID: "run-2", AsOf: now, StartedAt: now.Add(time.Minute), FinishedAt: now.Add(time.Minute)}
	require.NoError(t, s.SaveAccrualRun(ctx, run2))
	run.Processed = 5
	require.NoError(t, s.SaveAccrualRun(ctx, run))

	runs, err := s.ListAccrualRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 5, runs[1].Processed)
	require.Len(t, runs[1].Failures, 1)
	assert.Equal(t, leave.EmployeeID("emp-9"), runs[1].Failures[0].EmployeeID)
}
