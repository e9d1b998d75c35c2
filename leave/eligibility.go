package leave

import "time"

// =============================================================================
// ELIGIBILITY EVALUATOR - Tenure-based qualification for paid accrual
// =============================================================================

// EligibilityMonths is the minimum whole-month tenure before an employee
// starts accruing paid leave.
const EligibilityMonths = 6

// MonthsOfTenure returns tenure in whole calendar months between joining
// and asOf, ignoring day-of-month. A zero or future joining date yields a
// non-positive count.
func MonthsOfTenure(joining, asOf time.Time) int {
	if joining.IsZero() {
		return 0
	}
	return MonthIndex(asOf) - MonthIndex(joining)
}

// IsEligible reports whether the employee has crossed the tenure
// threshold for paid leave as of the given date. A missing joining date
// is treated as not eligible.
func IsEligible(joining, asOf time.Time) bool {
	if joining.IsZero() {
		return false
	}
	return MonthsOfTenure(joining, asOf) >= EligibilityMonths
}

// EligibilityDate returns the date the employee becomes eligible
// (joining + 6 calendar months). ok is false when the joining date is
// missing, in which case callers should report the date as unknown.
func EligibilityDate(joining time.Time) (time.Time, bool) {
	if joining.IsZero() {
		return time.Time{}, false
	}
	return joining.AddDate(0, EligibilityMonths, 0), true
}
