/*
request.go - Leave request lifecycle

PURPOSE:
  Handles the full lifecycle of a leave request:
  1. Submission: validate the range, decide, compute the deduction plan
  2. Pending: awaiting an administrator when entitlement is short
  3. Approval: apply the deduction plan via the Balance Ledger
  4. Rejection: terminal, no balance mutation

STATE MACHINE:
  pending -> approved   (applies the deduction plan, exactly once)
  pending -> rejected   (no mutation)
  approved, rejected    terminal; re-applying the same status is a no-op

DECIDE AT SUBMISSION, MUTATE AT APPROVAL:
  Submit records the decision and plan on the request but never touches
  the ledger. The ledger mutation happens only in the status-transition
  pathway — the same code path whether an administrator approves
  manually or the service auto-approves at submission. One path, one
  deduction per request.

  At approval time balances are rechecked: if they changed since
  submission and no longer cover the plan, the transition fails with
  InsufficientBalance and the request stays pending.

CONCURRENCY:
  The transition is claimed with a conditional save on the request's
  version before the ledger is touched. Of two admins racing to approve
  the same request, one loses with ErrConflict and never reaches the
  deduction.

SEE ALSO:
  - ledger.go: ApplyDeduction, the only balance decrease
  - types.go: Request, DeductionPlan, Decision
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SystemActor is recorded as the decider for auto-applied decisions.
const SystemActor = "system"

// =============================================================================
// REQUEST SERVICE
// =============================================================================

// RequestService orchestrates the request lifecycle.
type RequestService struct {
	Employees EmployeeStore
	Requests  RequestStore
	Ledger    *Ledger

	// AutoApprove routes submission-time approved decisions straight
	// through the status-transition pathway. When false, every request
	// waits for an administrator even if entitlement covers it.
	AutoApprove bool
}

func NewRequestService(employees EmployeeStore, requests RequestStore, ledger *Ledger) *RequestService {
	return &RequestService{
		Employees:   employees,
		Requests:    requests,
		Ledger:      ledger,
		AutoApprove: true,
	}
}

// =============================================================================
// SUBMISSION
// =============================================================================

// PlanDeduction decides a request for the given day count against the
// employee's current balances and, when approvable, plans the charge:
// paid balance first, then the remainder as half-day units at half a
// day each.
func PlanDeduction(emp *Employee, days decimal.Decimal) (Decision, *DeductionPlan) {
	if !emp.IsActive() {
		return DecisionRejected, nil
	}

	paid := RemainingPaid(emp)
	if days.LessThanOrEqual(paid) {
		return DecisionApproved, &DeductionPlan{FromPaid: days, FromHalfDay: decimal.Zero}
	}

	if days.LessThanOrEqual(Entitlement(emp)) {
		remainder := days.Sub(paid)
		return DecisionApproved, &DeductionPlan{
			FromPaid:    paid,
			FromHalfDay: remainder.Mul(two), // day remainder -> half-day units
		}
	}

	return DecisionPending, nil
}

// Submit creates a leave request for an inclusive date range, records
// the decision, and — when the decision is already settled — routes it
// through the same status-transition pathway an administrator would use.
func (rs *RequestService) Submit(
	ctx context.Context,
	employeeID EmployeeID,
	startDate, endDate time.Time,
	leaveType LeaveType,
	reason string,
) (*Request, error) {
	if dateOnly(endDate).Before(dateOnly(startDate)) {
		return nil, fmt.Errorf("submit for %s: %w", employeeID, ErrInvalidRange)
	}

	emp, err := rs.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	days := InclusiveDays(startDate, endDate)
	decision, plan := PlanDeduction(emp, days)

	now := time.Now().UTC()
	req := &Request{
		ID:         RequestID(uuid.NewString()),
		EmployeeID: employeeID,
		StartDate:  dateOnly(startDate),
		EndDate:    dateOnly(endDate),
		Type:       leaveType,
		Status:     RequestPending,
		Reason:     reason,
		Decision:   decision,
		Plan:       plan,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := rs.Requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save request: %w", err)
	}

	// Settled decisions go through the single mutation path immediately.
	switch {
	case decision == DecisionRejected:
		return rs.SetStatus(ctx, req.ID, RequestRejected, SystemActor)
	case decision == DecisionApproved && rs.AutoApprove:
		return rs.SetStatus(ctx, req.ID, RequestApproved, SystemActor)
	}

	return req, nil
}

// =============================================================================
// STATUS TRANSITIONS
// =============================================================================

// SetStatus transitions a request. Approving applies the deduction plan
// against the ledger (recomputing it if absent); rejecting mutates no
// balance. Re-applying the current status is a no-op, and approved or
// rejected requests admit no other transition.
//
// The transition is claimed with a conditional save before the ledger
// is touched, so a racing transition loses with ErrConflict instead of
// deducting a second time.
func (rs *RequestService) SetStatus(ctx context.Context, id RequestID, newStatus RequestStatus, actor string) (*Request, error) {
	req, err := rs.Requests.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Status == newStatus {
		return req, nil // no-op, never double-deducts
	}
	if req.Status.Terminal() || (newStatus != RequestApproved && newStatus != RequestRejected) {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: newStatus}
	}

	plan := req.Plan
	if newStatus == RequestApproved && plan == nil {
		plan, err = rs.recomputePlan(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	prev := *req
	now := time.Now().UTC()
	req.Status = newStatus
	req.Plan = plan
	req.DecidedBy = &actor
	req.DecidedAt = &now
	req.UpdatedAt = now

	if err := rs.Requests.SaveRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("save request %s: %w", id, err)
	}

	if newStatus == RequestApproved {
		if err := rs.Ledger.ApplyDeduction(ctx, req.EmployeeID, *plan); err != nil {
			if rerr := rs.revert(ctx, req, &prev); rerr != nil {
				return nil, fmt.Errorf("revert request %s after failed deduction: %v: %w", id, rerr, err)
			}
			return nil, err // request stays pending
		}
	}
	return req, nil
}

// revert restores a claimed transition whose deduction failed. The
// caller holds the latest version, so the save cannot lose a race.
func (rs *RequestService) revert(ctx context.Context, req *Request, prev *Request) error {
	req.Status = prev.Status
	req.Plan = prev.Plan
	req.DecidedBy = prev.DecidedBy
	req.DecidedAt = prev.DecidedAt
	req.UpdatedAt = time.Now().UTC()
	return rs.Requests.SaveRequest(ctx, req)
}

// recomputePlan rebuilds a deduction plan at approval time for requests
// submitted without one (pending decisions an administrator overrides).
func (rs *RequestService) recomputePlan(ctx context.Context, req *Request) (*DeductionPlan, error) {
	emp, err := rs.Employees.GetEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	days := req.DaysRequested()
	decision, plan := PlanDeduction(emp, days)
	if decision != DecisionApproved {
		return nil, &InsufficientBalanceError{
			EmployeeID: req.EmployeeID,
			Available:  Entitlement(emp),
			Requested:  days,
		}
	}
	return plan, nil
}
