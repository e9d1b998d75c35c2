/*
accrual.go - Monthly accrual calculation

PURPOSE:
  Determines whether a monthly accrual is due for an employee and by how
  much. The calculation is pure: it reads the employee record and
  produces a delta plus the new last-accrual watermark. Applying the
  result to the stored record is the Ledger's job (ledger.go), so a
  persistence failure can never leave a partial accrual behind.

RULES:
  1. No accrual before the program start date. The scheme did not exist
     before the configured cutoff, regardless of tenure.
  2. No accrual for non-active or not-yet-eligible employees.
  3. The accrual clock begins at max(eligibilityDate, programStart). An
     unset watermark is initialized there; no backdated bulk grant beyond
     what whole-month math yields from that point.
  4. Grants are whole-month increments of the month index. A gap of N
     months collapses into a single catch-up grant of N * rate, and the
     watermark jumps to asOf.
  5. Idempotent within a calendar month: once the watermark lands in the
     current month the elapsed-month count is zero.

SEE ALSO:
  - eligibility.go: Tenure threshold feeding rule 2
  - ledger.go: Applies AccrualResult to the stored record
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCRUAL CALCULATOR
// =============================================================================

// Calculator computes monthly accrual deltas.
type Calculator struct {
	// ProgramStart is the fixed cutoff before which no accrual exists.
	ProgramStart time.Time

	// MonthlyPaidDays is the paid-leave grant per accrued month.
	MonthlyPaidDays decimal.Decimal

	// MonthlyHalfDayUnits is the half-day grant (in units) accrued
	// alongside the paid grant each month.
	MonthlyHalfDayUnits decimal.Decimal
}

// NewCalculator returns a Calculator with the standard rates:
// 1.5 paid days and 1 half-day unit per accrued month.
func NewCalculator(programStart time.Time) *Calculator {
	return &Calculator{
		ProgramStart:        programStart,
		MonthlyPaidDays:     decimal.NewFromFloat(1.5),
		MonthlyHalfDayUnits: decimal.NewFromInt(1),
	}
}

// AccrualResult is the outcome of a due accrual.
type AccrualResult struct {
	MonthsElapsed  int
	PaidDelta      decimal.Decimal // days to add to PaidBalance
	HalfDayDelta   decimal.Decimal // units to add to HalfDayBalance
	NewLastAccrual time.Time       // watermark after applying
}

// Accrue determines whether an accrual is due for the employee as of the
// given date. The second return is false when nothing is due. The
// employee record is not modified.
func (c *Calculator) Accrue(emp *Employee, asOf time.Time) (AccrualResult, bool) {
	if asOf.Before(c.ProgramStart) {
		return AccrualResult{}, false
	}
	if !emp.IsActive() {
		return AccrualResult{}, false
	}
	if !IsEligible(emp.JoiningDate, asOf) {
		return AccrualResult{}, false
	}

	last := c.effectiveLastAccrual(emp)
	months := MonthIndex(asOf) - MonthIndex(last)
	if months <= 0 {
		return AccrualResult{}, false
	}

	n := decimal.NewFromInt(int64(months))
	return AccrualResult{
		MonthsElapsed:  months,
		PaidDelta:      c.MonthlyPaidDays.Mul(n),
		HalfDayDelta:   c.MonthlyHalfDayUnits.Mul(n),
		NewLastAccrual: asOf,
	}, true
}

// effectiveLastAccrual returns the stored watermark, or the accrual
// clock's start when the employee has never accrued.
func (c *Calculator) effectiveLastAccrual(emp *Employee) time.Time {
	if emp.LastAccrual != nil {
		return *emp.LastAccrual
	}
	start := c.ProgramStart
	if eligible, ok := EligibilityDate(emp.JoiningDate); ok && eligible.After(start) {
		start = eligible
	}
	return start
}
