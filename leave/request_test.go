package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

func newTestService(t *testing.T) (*leave.RequestService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ledger := leave.NewLedger(mem)
	return leave.NewRequestService(mem, mem, ledger), mem
}

// =============================================================================
// PLANNING
// =============================================================================

func TestPlanDeduction_PaidCoversFully(t *testing.T) {
	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)

	decision, plan := leave.PlanDeduction(emp, leave.Days(3))
	assert.Equal(t, leave.DecisionApproved, decision)
	require.NotNil(t, plan)
	assert.Equal(t, "3", plan.FromPaid.String())
	assert.True(t, plan.FromHalfDay.IsZero())
}

func TestPlanDeduction_PaidPlusHalfDayRemainder(t *testing.T) {
	// 3 days against paid=2, half=4 units: 3 <= 2 + 4*0.5, so the paid
	// balance is exhausted and the 1-day remainder becomes 2 half-day units.
	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(2)
	emp.HalfDayBalance = leave.HalfDayUnits(4)

	decision, plan := leave.PlanDeduction(emp, leave.Days(3))
	assert.Equal(t, leave.DecisionApproved, decision)
	require.NotNil(t, plan)
	assert.Equal(t, "2", plan.FromPaid.String())
	assert.Equal(t, "2", plan.FromHalfDay.String())
}

func TestPlanDeduction_InsufficientEntitlement(t *testing.T) {
	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(1)

	decision, plan := leave.PlanDeduction(emp, leave.Days(5))
	assert.Equal(t, leave.DecisionPending, decision)
	assert.Nil(t, plan)
}

func TestPlanDeduction_NonActiveEmployee(t *testing.T) {
	emp := activeEmployee(date(2024, time.January, 1))
	emp.Status = leave.StatusBlocked
	emp.PaidBalance = leave.Days(10)

	decision, plan := leave.PlanDeduction(emp, leave.Days(1))
	assert.Equal(t, leave.DecisionRejected, decision)
	assert.Nil(t, plan)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_InvalidRange(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	seedEmployee(t, mem, emp)

	_, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 10), date(2026, time.March, 8), leave.LeavePaid, "trip")
	assert.ErrorIs(t, err, leave.ErrInvalidRange)
}

func TestSubmit_UnknownEmployee(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Submit(context.Background(), "nobody",
		date(2026, time.March, 8), date(2026, time.March, 10), leave.LeavePaid, "")
	assert.True(t, leave.IsNotFound(err))
}

func TestSubmit_AutoApproveDeductsViaStatusPath(t *testing.T) {
	// GIVEN: paid balance 5, a 3-day request (inclusive range)
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	// WHEN: submitted with auto-approve on (default)
	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "trip")
	require.NoError(t, err)

	// THEN: approved through the status pathway, balance 5 - 3 = 2
	assert.Equal(t, leave.RequestApproved, req.Status)
	assert.Equal(t, leave.DecisionApproved, req.Decision)
	require.NotNil(t, req.DecidedBy)
	assert.Equal(t, leave.SystemActor, *req.DecidedBy)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.PaidBalance.String())
	assert.Equal(t, "3", stored.UsedPaid.String())
}

func TestSubmit_ManualApprovalHoldsDeduction(t *testing.T) {
	// GIVEN: auto-approve off
	svc, mem := newTestService(t)
	svc.AutoApprove = false
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)

	// Decision recorded, plan cached, but the ledger is untouched.
	assert.Equal(t, leave.RequestPending, req.Status)
	assert.Equal(t, leave.DecisionApproved, req.Decision)
	require.NotNil(t, req.Plan)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", stored.PaidBalance.String())

	// An administrator approving triggers the one deduction.
	_, err = svc.SetStatus(ctx, req.ID, leave.RequestApproved, "hr-admin")
	require.NoError(t, err)

	stored, err = mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.PaidBalance.String())
}

func TestSubmit_SplitAcrossPaidAndHalfDay(t *testing.T) {
	// paid=2, half=4 units, 3-day request: plan consumes 2 paid + 2 units,
	// leaving paid=0 and half=2.
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(2)
	emp.HalfDayBalance = leave.HalfDayUnits(4)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestApproved, req.Status)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.True(t, stored.PaidBalance.IsZero())
	assert.Equal(t, "2", stored.HalfDayBalance.String())
}

func TestSubmit_InsufficientEntitlementStaysPending(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(1)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 6), leave.LeavePaid, "")
	require.NoError(t, err)

	assert.Equal(t, leave.RequestPending, req.Status)
	assert.Equal(t, leave.DecisionPending, req.Decision)
	assert.Nil(t, req.Plan)

	// No balance mutation at submission.
	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.PaidBalance.String())
}

func TestSubmit_BlockedEmployeeRejectedWithoutMutation(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.Status = leave.StatusBlocked
	emp.PaidBalance = leave.Days(10)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)

	assert.Equal(t, leave.RequestRejected, req.Status)
	assert.Equal(t, leave.DecisionRejected, req.Decision)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", stored.PaidBalance.String())
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

func TestSetStatus_RejectMutatesNothing(t *testing.T) {
	svc, mem := newTestService(t)
	svc.AutoApprove = false
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)

	rejected, err := svc.SetStatus(ctx, req.ID, leave.RequestRejected, "hr-admin")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestRejected, rejected.Status)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", stored.PaidBalance.String())
}

func TestSetStatus_ReapplySameStatusIsNoop(t *testing.T) {
	// Double transition to approved must not double-deduct.
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)
	require.Equal(t, leave.RequestApproved, req.Status)

	again, err := svc.SetStatus(ctx, req.ID, leave.RequestApproved, "hr-admin")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestApproved, again.Status)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.PaidBalance.String(), "no additional deduction")
}

func TestSetStatus_TerminalStatusAdmitsNoTransition(t *testing.T) {
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)
	require.Equal(t, leave.RequestApproved, req.Status)

	_, err = svc.SetStatus(ctx, req.ID, leave.RequestRejected, "hr-admin")
	assert.ErrorIs(t, err, leave.ErrTerminalStatus)
}

func TestSetStatus_BalanceChangedSinceSubmission(t *testing.T) {
	// GIVEN: a pending-approval request whose plan the balance no longer covers
	svc, mem := newTestService(t)
	svc.AutoApprove = false
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)

	// A competing request drains the balance first.
	drained, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	drained.PaidBalance = leave.Days(1)
	require.NoError(t, mem.SaveEmployee(ctx, drained))

	// WHEN/THEN: approval fails closed, request stays pending
	_, err = svc.SetStatus(ctx, req.ID, leave.RequestApproved, "hr-admin")
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	stored, err := mem.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestPending, stored.Status)
}

func TestSetStatus_RecomputesMissingPlan(t *testing.T) {
	// A request that sat pending (insufficient at submission) can be
	// approved later once accrual catches the balance up.
	svc, mem := newTestService(t)
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(1)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 6), leave.LeavePaid, "")
	require.NoError(t, err)
	require.Equal(t, leave.RequestPending, req.Status)
	require.Nil(t, req.Plan)

	// Balance catches up.
	topped, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	topped.PaidBalance = leave.Days(6)
	require.NoError(t, mem.SaveEmployee(ctx, topped))

	approved, err := svc.SetStatus(ctx, req.ID, leave.RequestApproved, "hr-admin")
	require.NoError(t, err)
	assert.Equal(t, leave.RequestApproved, approved.Status)
	require.NotNil(t, approved.Plan)
	assert.Equal(t, "5", approved.Plan.FromPaid.String())

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.PaidBalance.String())
}

// staleRequests serves one administrator a read taken before another
// administrator's transition landed.
type staleRequests struct {
	leave.RequestStore
	stale *leave.Request
}

func (s *staleRequests) GetRequest(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	if s.stale != nil && s.stale.ID == id {
		cp := *s.stale
		return &cp, nil
	}
	return s.RequestStore.GetRequest(ctx, id)
}

func TestSetStatus_RacingApprovalsDeductOnce(t *testing.T) {
	// GIVEN: a pending request read by two administrators
	svc, mem := newTestService(t)
	svc.AutoApprove = false
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(10)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)
	staleCopy := *req

	// WHEN: the first approval lands, then the second acts on its
	// earlier read of the still-pending request
	_, err = svc.SetStatus(ctx, req.ID, leave.RequestApproved, "admin-a")
	require.NoError(t, err)

	racing := leave.NewRequestService(mem, &staleRequests{RequestStore: mem, stale: &staleCopy}, svc.Ledger)
	_, err = racing.SetStatus(ctx, req.ID, leave.RequestApproved, "admin-b")

	// THEN: the second transition loses the version race before any
	// deduction, and the plan is charged exactly once
	assert.True(t, leave.IsRetryable(err))

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", stored.PaidBalance.String())
	assert.Equal(t, "3", stored.UsedPaid.String())
}

func TestSetStatus_BlockedBeforeApprovalCannotDeduct(t *testing.T) {
	// GIVEN: a request with a cached plan, then the employee is blocked
	svc, mem := newTestService(t)
	svc.AutoApprove = false
	ctx := context.Background()

	emp := activeEmployee(date(2024, time.January, 1))
	emp.PaidBalance = leave.Days(5)
	seedEmployee(t, mem, emp)

	req, err := svc.Submit(ctx, emp.ID,
		date(2026, time.March, 2), date(2026, time.March, 4), leave.LeavePaid, "")
	require.NoError(t, err)
	require.NotNil(t, req.Plan)

	blocked, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	blocked.Status = leave.StatusBlocked
	require.NoError(t, mem.SaveEmployee(ctx, blocked))

	// WHEN/THEN: approval fails, nothing is charged, request stays pending
	_, err = svc.SetStatus(ctx, req.ID, leave.RequestApproved, "hr-admin")
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	stored, err := mem.GetEmployee(ctx, emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "5", stored.PaidBalance.String())
	assert.True(t, stored.UsedPaid.IsZero())

	after, err := mem.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.RequestPending, after.Status)
	assert.Nil(t, after.DecidedBy)
}

func TestSetStatus_UnknownRequest(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SetStatus(context.Background(), "nope", leave.RequestApproved, "hr-admin")
	assert.True(t, leave.IsNotFound(err))
}

// =============================================================================
// DAY COUNTING
// =============================================================================

func TestInclusiveDays(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		want  string
	}{
		{"single day", date(2026, time.March, 2), date(2026, time.March, 2), "1"},
		{"three days", date(2026, time.March, 2), date(2026, time.March, 4), "3"},
		{"across month boundary", date(2026, time.February, 27), date(2026, time.March, 2), "4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, leave.InclusiveDays(tt.start, tt.end).String())
		})
	}
}
