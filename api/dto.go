/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Decimal
  balances are rendered as float64 at the edge only; all arithmetic
  happens on decimals inside the leave package.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model behind them
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	JoiningDate string `json:"joining_date"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
type CreateEmployeeRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	JoiningDate string `json:"joining_date"`
}

// BalanceDTO reports an employee's remaining entitlements.
type BalanceDTO struct {
	EmployeeID       string  `json:"employee_id"`
	Status           string  `json:"status"`
	RemainingPaid    float64 `json:"remaining_paid"`
	RemainingHalfDay float64 `json:"remaining_half_day"` // half-day units
	RemainingUnpaid  float64 `json:"remaining_unpaid"`
	UsedPaid         float64 `json:"used_paid"`
	Eligible         bool    `json:"eligible"`
	EligibleFrom     string  `json:"eligible_from,omitempty"` // empty when joining date unknown
	LastAccrual      string  `json:"last_accrual,omitempty"`
	AsOf             string  `json:"as_of"`
}

// SubmitRequestDTO is the body for submitting a leave request.
type SubmitRequestDTO struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
	Type      string `json:"type,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID         string            `json:"id"`
	EmployeeID string            `json:"employee_id"`
	StartDate  string            `json:"start_date"`
	EndDate    string            `json:"end_date"`
	Days       float64           `json:"days"`
	Type       string            `json:"type"`
	Status     string            `json:"status"`
	Decision   string            `json:"decision"`
	Reason     string            `json:"reason,omitempty"`
	Plan       *DeductionPlanDTO `json:"plan,omitempty"`
	DecidedBy  string            `json:"decided_by,omitempty"`
	DecidedAt  string            `json:"decided_at,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
}

// DeductionPlanDTO describes how an approved request is charged.
type DeductionPlanDTO struct {
	FromPaid    float64 `json:"from_paid"`     // days
	FromHalfDay float64 `json:"from_half_day"` // half-day units
}

// AccrualResultDTO is the response to a manual accrual trigger.
type AccrualResultDTO struct {
	EmployeeID    string  `json:"employee_id"`
	Applied       bool    `json:"applied"`
	MonthsElapsed int     `json:"months_elapsed,omitempty"`
	PaidDelta     float64 `json:"paid_delta,omitempty"`
	HalfDayDelta  float64 `json:"half_day_delta,omitempty"`
	LastAccrual   string  `json:"last_accrual,omitempty"`
}

// AccrualRunDTO reports one bulk accrual run.
type AccrualRunDTO struct {
	ID         string          `json:"id"`
	AsOf       string          `json:"as_of"`
	Processed  int             `json:"processed"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
	Failures   []RunFailureDTO `json:"failures,omitempty"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at"`
}

// RunFailureDTO is one employee's isolated failure within a run.
type RunFailureDTO struct {
	EmployeeID string `json:"employee_id"`
	Error      string `json:"error"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func f64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toEmployeeDTO(emp *leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:          string(emp.ID),
		Name:        emp.Name,
		Email:       emp.Email,
		JoiningDate: emp.JoiningDate.Format("2006-01-02"),
		Status:      string(emp.Status),
		CreatedAt:   emp.CreatedAt.Format(time.RFC3339),
	}
}

func toBalanceDTO(view *leave.BalanceView) BalanceDTO {
	dto := BalanceDTO{
		EmployeeID:       string(view.EmployeeID),
		Status:           string(view.Status),
		RemainingPaid:    f64(view.RemainingPaid),
		RemainingHalfDay: f64(view.RemainingHalfDay),
		RemainingUnpaid:  f64(view.RemainingUnpaid),
		UsedPaid:         f64(view.UsedPaid),
		Eligible:         view.Eligible,
		AsOf:             view.AsOf.Format("2006-01-02"),
	}
	if view.EligibleFrom != nil {
		dto.EligibleFrom = view.EligibleFrom.Format("2006-01-02")
	}
	if view.LastAccrual != nil {
		dto.LastAccrual = view.LastAccrual.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTO(req *leave.Request) LeaveRequestDTO {
	dto := LeaveRequestDTO{
		ID:         string(req.ID),
		EmployeeID: string(req.EmployeeID),
		StartDate:  req.StartDate.Format("2006-01-02"),
		EndDate:    req.EndDate.Format("2006-01-02"),
		Days:       f64(req.DaysRequested()),
		Type:       string(req.Type),
		Status:     string(req.Status),
		Decision:   string(req.Decision),
		Reason:     req.Reason,
		CreatedAt:  req.CreatedAt.Format(time.RFC3339),
	}
	if req.Plan != nil {
		dto.Plan = &DeductionPlanDTO{
			FromPaid:    f64(req.Plan.FromPaid),
			FromHalfDay: f64(req.Plan.FromHalfDay),
		}
	}
	if req.DecidedBy != nil {
		dto.DecidedBy = *req.DecidedBy
	}
	if req.DecidedAt != nil {
		dto.DecidedAt = req.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toLeaveRequestDTOs(reqs []*leave.Request) []LeaveRequestDTO {
	dtos := make([]LeaveRequestDTO, len(reqs))
	for i, req := range reqs {
		dtos[i] = toLeaveRequestDTO(req)
	}
	return dtos
}

func toAccrualRunDTO(run leave.AccrualRun) AccrualRunDTO {
	dto := AccrualRunDTO{
		ID:         run.ID,
		AsOf:       run.AsOf.Format(time.RFC3339),
		Processed:  run.Processed,
		Skipped:    run.Skipped,
		Failed:     run.Failed,
		StartedAt:  run.StartedAt.Format(time.RFC3339),
		FinishedAt: run.FinishedAt.Format(time.RFC3339),
	}
	for _, f := range run.Failures {
		dto.Failures = append(dto.Failures, RunFailureDTO{
			EmployeeID: string(f.EmployeeID),
			Error:      f.Err,
		})
	}
	return dto
}
