/*
handlers.go - HTTP handlers for the leave engine

PURPOSE:
  Thin caller layer over the leave package. Handlers parse input, invoke
  the engine's contracts (ledger reads, accrual, request lifecycle), and
  map engine errors to HTTP status codes. No balance math lives here.

ERROR MAPPING:
  leave.ErrNotFound            -> 404
  leave.ErrInvalidRange        -> 400
  leave.ErrInsufficientBalance -> 409
  leave.ErrConflict            -> 409 (caller re-reads and retries)
  leave.ErrTerminalStatus      -> 409
  anything else                -> 500

SEE ALSO:
  - server.go: Route wiring
  - dto.go: JSON shapes
  - scheduler.go: Bulk accrual runner behind the admin endpoints
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      leave.Store
	Ledger     *leave.Ledger
	Requests   *leave.RequestService
	Calculator *leave.Calculator
	Runner     *AccrualRunner
	Logger     *zap.Logger
}

// NewHandler wires the engine services over the given store.
func NewHandler(store leave.Store, calc *leave.Calculator, logger *zap.Logger) *Handler {
	ledger := leave.NewLedger(store)
	h := &Handler{
		Store:      store,
		Ledger:     ledger,
		Requests:   leave.NewRequestService(store, store, ledger),
		Calculator: calc,
		Logger:     logger,
	}
	h.Runner = NewAccrualRunner(store, ledger, calc, logger)
	return h
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, emp := range employees {
		dtos[i] = toEmployeeDTO(emp)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Store.GetEmployee(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to get employee", err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates a new active employee with the default
// allotments.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeStatusError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	joining, err := time.Parse("2006-01-02", req.JoiningDate)
	if err != nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid joining_date format (use YYYY-MM-DD)", err)
		return
	}

	emp := leave.NewEmployee(leave.EmployeeID(req.ID), req.Name, req.Email, joining)
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		h.writeError(w, "Failed to create employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// GetBalance reports the employee's remaining entitlements as of today
// (or an explicit ?as_of=YYYY-MM-DD).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	view, err := h.Ledger.Balance(r.Context(), id, asOf)
	if err != nil {
		h.writeError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(view))
}

// Accrue triggers a single-employee accrual as of today (or ?as_of=).
func (h *Handler) Accrue(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	result, applied, err := h.Ledger.ApplyAccrual(r.Context(), h.Calculator, id, asOf)
	if err != nil {
		h.writeError(w, "Failed to apply accrual", err)
		return
	}

	dto := AccrualResultDTO{EmployeeID: string(id), Applied: applied}
	if applied {
		dto.MonthsElapsed = result.MonthsElapsed
		dto.PaidDelta = f64(result.PaidDelta)
		dto.HalfDayDelta = f64(result.HalfDayDelta)
		dto.LastAccrual = result.NewLastAccrual.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// LEAVE REQUEST HANDLERS
// =============================================================================

// SubmitRequest submits a leave request for an employee.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	var body SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse("2006-01-02", body.StartDate)
	if err != nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := time.Parse("2006-01-02", body.EndDate)
	if err != nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	leaveType := leave.LeaveType(body.Type)
	if leaveType == "" {
		leaveType = leave.LeavePaid
	}

	req, err := h.Requests.Submit(r.Context(), id, start, end, leaveType, body.Reason)
	if err != nil {
		h.writeError(w, "Failed to submit request", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(req))
}

// ListEmployeeRequests returns an employee's requests, newest first.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	id := leave.EmployeeID(chi.URLParam(r, "id"))

	reqs, err := h.Store.ListRequestsByEmployee(r.Context(), id)
	if err != nil {
		h.writeError(w, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ListPendingRequests returns all requests awaiting a decision.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Store.ListPendingRequests(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTOs(reqs))
}

// ApproveRequest transitions a request to approved, applying its
// deduction plan.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, leave.RequestApproved)
}

// RejectRequest transitions a request to rejected. No balance mutation.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, leave.RequestRejected)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status leave.RequestStatus) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "admin"
	}

	req, err := h.Requests.SetStatus(r.Context(), id, status, actor)
	if err != nil {
		h.writeError(w, "Failed to update request status", err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunAccrual triggers an immediate bulk accrual run.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	asOf, ok := parseAsOf(w, r)
	if !ok {
		return
	}

	run, err := h.Runner.RunOnce(r.Context(), asOf)
	if err != nil {
		h.writeError(w, "Failed to run accrual", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccrualRunDTO(run))
}

// ListAccrualRuns returns recent bulk accrual run reports.
func (h *Handler) ListAccrualRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.Store.ListAccrualRuns(r.Context(), limit)
	if err != nil {
		h.writeError(w, "Failed to list accrual runs", err)
		return
	}

	dtos := make([]AccrualRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toAccrualRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func parseAsOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	v := r.URL.Query().Get("as_of")
	if v == "" {
		return time.Now().UTC(), true
	}
	asOf, err := time.Parse("2006-01-02", v)
	if err != nil {
		writeStatusError(w, http.StatusBadRequest, "Invalid as_of format (use YYYY-MM-DD)", err)
		return time.Time{}, false
	}
	return asOf, true
}

// writeError maps engine errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := http.StatusInternalServerError
	code := "internal"

	switch {
	case leave.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, leave.ErrInvalidRange):
		status, code = http.StatusBadRequest, "invalid_range"
	case errors.Is(err, leave.ErrInsufficientBalance):
		status, code = http.StatusConflict, "insufficient_balance"
	case leave.IsRetryable(err):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, leave.ErrTerminalStatus):
		status, code = http.StatusConflict, "terminal_status"
	}

	if status == http.StatusInternalServerError && h.Logger != nil {
		h.Logger.Error(message, zap.Error(err))
	}

	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeStatusError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
