/*
Package leave implements the leave accrual and entitlement engine.

PURPOSE:
  This package contains the domain types and algorithms for managing
  employee leave entitlements: tenure-based eligibility, monthly accrual
  of paid and half-day balances, the balance ledger that is the single
  source of truth for those balances, and the request lifecycle that
  consumes them on approval.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: The persisted balance record (joining date, status,
    paid/half-day/unpaid balances, last-accrual watermark)
  - Request: A leave request with its decision and deduction plan
  - DeductionPlan: How an approved request is charged against balances
  - Days/HalfDayUnits helpers built on decimal.Decimal

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
     (monthly accrual of 1.5 days must sum exactly)
  2. Single writer: Balances are mutated only by the Ledger (ledger.go)
  3. Optimistic concurrency: Every Employee carries a Version; saves are
     conditional on it

SEE ALSO:
  - eligibility.go: Tenure-based eligibility evaluation
  - accrual.go: Monthly accrual calculation
  - ledger.go: Balance reads and gated mutations
  - request.go: Request lifecycle state machine
*/
package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT HELPERS - All balances are decimal day counts
// =============================================================================

// Days builds a decimal day count from a float literal.
func Days(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// HalfDayUnits builds a decimal half-day unit count. One unit is worth
// half a day when converted to day-equivalents.
func HalfDayUnits(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

var (
	// HalfDayWorth converts half-day units to day-equivalents.
	HalfDayWorth = decimal.NewFromFloat(0.5)

	two = decimal.NewFromInt(2)
)

// DayEquivalent returns the day value of a half-day unit count.
func DayEquivalent(halfDayUnits decimal.Decimal) decimal.Decimal {
	return halfDayUnits.Mul(HalfDayWorth)
}

// =============================================================================
// EMPLOYEE - The persisted balance record
// =============================================================================

type EmployeeID string

// EmployeeStatus gates both accrual and request submission.
// Only active employees accrue leave or may take it.
type EmployeeStatus string

const (
	StatusActive     EmployeeStatus = "active"
	StatusBlocked    EmployeeStatus = "blocked"
	StatusTerminated EmployeeStatus = "terminated"
)

// DefaultUnpaidAllotment is the fixed unpaid-leave allotment granted at
// employee creation. It is independent of accrual.
var DefaultUnpaidAllotment = Days(6)

// Employee is the balance record the engine reads and mutates.
//
// PaidBalance is the NET running balance: accrual adds to it, approved
// deductions subtract from it. UsedPaid is a cumulative audit counter of
// days consumed; it is never subtracted from PaidBalance when reporting
// remaining leave.
type Employee struct {
	ID          EmployeeID
	Name        string
	Email       string
	JoiningDate time.Time
	Status      EmployeeStatus

	PaidBalance    decimal.Decimal
	HalfDayBalance decimal.Decimal // in half-day units
	UnpaidBalance  decimal.Decimal
	UsedPaid       decimal.Decimal // audit counter, not a balance input

	// LastAccrual is the watermark of the last month accrual was applied
	// for. Nil until the first accrual.
	LastAccrual *time.Time

	// Version implements optimistic concurrency. Zero means the record
	// has never been saved; stores increment it on every successful save.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewEmployee creates an active employee with zeroed accrual balances and
// the default unpaid allotment.
func NewEmployee(id EmployeeID, name, email string, joining time.Time) *Employee {
	return &Employee{
		ID:             id,
		Name:           name,
		Email:          email,
		JoiningDate:    joining,
		Status:         StatusActive,
		PaidBalance:    decimal.Zero,
		HalfDayBalance: decimal.Zero,
		UnpaidBalance:  DefaultUnpaidAllotment,
		UsedPaid:       decimal.Zero,
	}
}

// IsActive reports whether the employee accrues leave and may submit
// requests.
func (e *Employee) IsActive() bool { return e.Status == StatusActive }

// =============================================================================
// LEAVE REQUEST - Created at submission, mutated only by status transition
// =============================================================================

type RequestID string

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether a status permits no further transition.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// LeaveType is informational on top of the approval-driven deduction
// logic; the plan decides which balances are charged.
type LeaveType string

const (
	LeavePaid   LeaveType = "paid"
	LeaveUnpaid LeaveType = "unpaid"
	LeaveHalf   LeaveType = "half_day"
)

// Decision is the submission-time verdict. It is recorded on the request;
// the ledger is mutated only via the status-transition pathway.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionPending  Decision = "pending"
)

// DeductionPlan describes how an approved request is charged.
// FromPaid is in days; FromHalfDay is in half-day units.
type DeductionPlan struct {
	FromPaid    decimal.Decimal
	FromHalfDay decimal.Decimal
}

// IsZero reports whether the plan charges nothing.
func (p DeductionPlan) IsZero() bool {
	return p.FromPaid.IsZero() && p.FromHalfDay.IsZero()
}

// TotalDays returns the day-equivalent total the plan consumes.
func (p DeductionPlan) TotalDays() decimal.Decimal {
	return p.FromPaid.Add(DayEquivalent(p.FromHalfDay))
}

// Request is a leave request. StartDate/EndDate are an inclusive date
// range. The engine never deletes requests.
type Request struct {
	ID         RequestID
	EmployeeID EmployeeID
	StartDate  time.Time
	EndDate    time.Time
	Type       LeaveType
	Status     RequestStatus
	Reason     string

	// Submission-time verdict and plan (plan only set when the decision
	// is approved). The plan is applied to the ledger at approval time,
	// recomputed if missing.
	Decision Decision
	Plan     *DeductionPlan

	// Approval tracking
	DecidedBy *string
	DecidedAt *time.Time

	// Version implements optimistic concurrency on status transitions.
	// Zero means the record has never been saved; stores increment it on
	// every successful save.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DaysRequested returns the inclusive day count of the range.
// Callers must have validated EndDate >= StartDate.
func (r *Request) DaysRequested() decimal.Decimal {
	return InclusiveDays(r.StartDate, r.EndDate)
}

// InclusiveDays counts calendar days in [start, end], both ends included.
func InclusiveDays(start, end time.Time) decimal.Decimal {
	s := dateOnly(start)
	e := dateOnly(end)
	days := int64(e.Sub(s).Hours()/24) + 1
	return decimal.NewFromInt(days)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthIndex collapses a date to a whole-month index (year*12 + month).
// All tenure and accrual month math uses this, never elapsed-days/30,
// so the count cannot drift across months of different lengths.
func MonthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month())
}
