/*
ledger.go - The balance ledger: authoritative reads and gated mutations

PURPOSE:
  The Ledger is the single owner of employee leave balances. Nothing
  else writes PaidBalance, HalfDayBalance, or LastAccrual. The two
  permitted mutations are:
    - ApplyAccrual:   increase, driven by the Calculator
    - ApplyDeduction: decrease, driven by request approval

CANONICAL BALANCE RULE:
  PaidBalance is the net running balance; UsedPaid is a cumulative audit
  counter. "Remaining paid leave" is PaidBalance, full stop. UsedPaid is
  never subtracted a second time when reporting.

READ-TIME OVERRIDE:
  Blocked and terminated employees report zero remaining leave across
  all balances. The override is applied at read time only; the stored
  balances are left intact for when the record is reinstated.

CONCURRENCY:
  Every mutation is load -> mutate -> conditional save on the record
  version (see store.go). A lost race surfaces as ErrConflict and leaves
  the record unchanged. Deductions are never retried here; the caller
  decides. Accrual callers may retry freely because the month math is
  idempotent.

SEE ALSO:
  - accrual.go: Produces the deltas ApplyAccrual applies
  - request.go: Calls ApplyDeduction from the approval pathway
*/
package leave

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER
// =============================================================================

// Ledger mediates all reads and writes of employee leave balances.
type Ledger struct {
	Employees EmployeeStore
}

func NewLedger(employees EmployeeStore) *Ledger {
	return &Ledger{Employees: employees}
}

// =============================================================================
// READS
// =============================================================================

// RemainingPaid returns the employee's remaining paid leave in days.
// Zero for blocked/terminated employees regardless of stored balance.
func RemainingPaid(emp *Employee) decimal.Decimal {
	if !emp.IsActive() {
		return decimal.Zero
	}
	return emp.PaidBalance
}

// RemainingHalfDay returns remaining half-day units, with the same
// non-active override.
func RemainingHalfDay(emp *Employee) decimal.Decimal {
	if !emp.IsActive() {
		return decimal.Zero
	}
	return emp.HalfDayBalance
}

// RemainingUnpaid returns remaining unpaid allotment, with the same
// non-active override.
func RemainingUnpaid(emp *Employee) decimal.Decimal {
	if !emp.IsActive() {
		return decimal.Zero
	}
	return emp.UnpaidBalance
}

// Entitlement returns the total day-equivalent an active employee can
// have approved: paid days plus half-day units at half a day each.
func Entitlement(emp *Employee) decimal.Decimal {
	return RemainingPaid(emp).Add(DayEquivalent(RemainingHalfDay(emp)))
}

// BalanceView is the reported balance state for an employee.
type BalanceView struct {
	EmployeeID       EmployeeID
	Status           EmployeeStatus
	RemainingPaid    decimal.Decimal
	RemainingHalfDay decimal.Decimal // units
	RemainingUnpaid  decimal.Decimal
	UsedPaid         decimal.Decimal
	Eligible         bool
	EligibleFrom     *time.Time // nil when joining date is unknown
	LastAccrual      *time.Time
	AsOf             time.Time
}

// Balance loads an employee and derives the reported view as of a date.
func (l *Ledger) Balance(ctx context.Context, id EmployeeID, asOf time.Time) (*BalanceView, error) {
	emp, err := l.Employees.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &BalanceView{
		EmployeeID:       emp.ID,
		Status:           emp.Status,
		RemainingPaid:    RemainingPaid(emp),
		RemainingHalfDay: RemainingHalfDay(emp),
		RemainingUnpaid:  RemainingUnpaid(emp),
		UsedPaid:         emp.UsedPaid,
		Eligible:         IsEligible(emp.JoiningDate, asOf),
		LastAccrual:      emp.LastAccrual,
		AsOf:             asOf,
	}
	if from, ok := EligibilityDate(emp.JoiningDate); ok {
		view.EligibleFrom = &from
	}
	return view, nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// ApplyAccrual runs the calculator for one employee and persists the
// result. The bool is false when nothing was due. A conflicting
// concurrent write surfaces as ErrConflict with the record unchanged;
// retrying is safe.
func (l *Ledger) ApplyAccrual(ctx context.Context, calc *Calculator, id EmployeeID, asOf time.Time) (AccrualResult, bool, error) {
	emp, err := l.Employees.GetEmployee(ctx, id)
	if err != nil {
		return AccrualResult{}, false, err
	}

	result, due := calc.Accrue(emp, asOf)
	if !due {
		return AccrualResult{}, false, nil
	}

	emp.PaidBalance = emp.PaidBalance.Add(result.PaidDelta)
	emp.HalfDayBalance = emp.HalfDayBalance.Add(result.HalfDayDelta)
	last := result.NewLastAccrual
	emp.LastAccrual = &last

	if err := l.Employees.SaveEmployee(ctx, emp); err != nil {
		return AccrualResult{}, false, fmt.Errorf("apply accrual for %s: %w", id, err)
	}
	return result, true, nil
}

// ApplyDeduction charges a deduction plan against the employee's
// balances. The recheck at this moment goes through the same read-time
// rules the views use: a blocked or terminated employee has zero
// remaining leave, so a plan cached before the status change can no
// longer be applied. If the balances no longer cover the plan, the
// deduction fails with InsufficientBalanceError and nothing is
// written. Balances never go negative.
func (l *Ledger) ApplyDeduction(ctx context.Context, id EmployeeID, plan DeductionPlan) error {
	emp, err := l.Employees.GetEmployee(ctx, id)
	if err != nil {
		return err
	}

	if RemainingPaid(emp).LessThan(plan.FromPaid) || RemainingHalfDay(emp).LessThan(plan.FromHalfDay) {
		return &InsufficientBalanceError{
			EmployeeID: id,
			Available:  Entitlement(emp),
			Requested:  plan.TotalDays(),
		}
	}

	emp.PaidBalance = emp.PaidBalance.Sub(plan.FromPaid)
	emp.HalfDayBalance = emp.HalfDayBalance.Sub(plan.FromHalfDay)
	emp.UsedPaid = emp.UsedPaid.Add(plan.FromPaid)

	if err := l.Employees.SaveEmployee(ctx, emp); err != nil {
		return fmt.Errorf("apply deduction for %s: %w", id, err)
	}
	return nil
}
