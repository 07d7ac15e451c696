/**
 * @description
 * HTTP handlers for the ledger service. Every response uses the
 * {success, data, message, error} envelope.
 */
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/NirmalNagaraj/chits-backend/internal/app"
	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

// LedgerService is the subset of the application service used by the handlers.
type LedgerService interface {
	ApplyChitPayment(ctx context.Context, req app.ChitPaymentRequest) (*app.ChitPaymentResult, error)
	ApplyLoanPayment(ctx context.Context, req app.LoanPaymentRequest) (*app.LoanPaymentResult, error)
	ApplyForLoan(ctx context.Context, req app.LoanApplication) (*app.LoanApplicationResult, error)
	RunWeeklyCycle(ctx context.Context) (*app.WeeklyCycleResult, error)
	DeactivateChit(ctx context.Context, chitID string, reason *string) (*app.DeactivationResult, error)
	DeactivateLoan(ctx context.Context, loanID string, reason *string) (*app.DeactivationResult, error)
	OnboardUser(ctx context.Context, req app.OnboardRequest) (*app.OnboardResult, error)
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	GetUserDetails(ctx context.Context, userID string) (*domain.UserDetails, error)
	SearchUsers(ctx context.Context, query string) (*app.UserSearchResult, error)
	ListUnpaidChits(ctx context.Context) (*app.UnpaidChitsResult, error)
	GetAnalytics(ctx context.Context) (*domain.Analytics, error)
}

// Handler holds the application service that handlers will interact with.
type Handler struct {
	service     LedgerService
	environment string
	version     string
	startedAt   time.Time
	now         func() time.Time
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service LedgerService, environment, version string) *Handler {
	return &Handler{
		service:     service,
		environment: environment,
		version:     version,
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type healthStatus struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"`
	Environment string    `json:"environment"`
	Version     string    `json:"version"`
}

// flexibleString accepts either a JSON string or a bare JSON number.
type flexibleString string

func (f *flexibleString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexibleString(n.String())
	return nil
}

type loanApplicationRequest struct {
	UserID         string         `json:"user_id"`
	InterestRate   flexibleString `json:"interest_rate"`
	InterestType   string         `json:"interest_type"`
	BorrowedAmount int64          `json:"borrowed_amount"`
}

type deactivateChitRequest struct {
	ChitID string  `json:"chit_id"`
	Reason *string `json:"reason"`
}

type deactivateLoanRequest struct {
	LoanID string  `json:"loan_id"`
	Reason *string `json:"reason"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	respondWithJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "Service is healthy",
		Data: healthStatus{
			Status:      "ok",
			Timestamp:   now.UTC(),
			Uptime:      now.Sub(h.startedAt).Seconds(),
			Environment: h.environment,
			Version:     h.version,
		},
	})
}

func (h *Handler) handleOnboard(w http.ResponseWriter, r *http.Request) {
	var req app.OnboardRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.OnboardUser(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, "onboarding user", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, apiResponse{Success: true, Message: "User onboarded successfully", Data: result})
}

func (h *Handler) handleChitPayment(w http.ResponseWriter, r *http.Request) {
	var req app.ChitPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.ApplyChitPayment(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, "processing chit payment", err)
		return
	}

	message := "Partial payment processed successfully."
	if result.IsPaid {
		message = "Payment completed successfully. Chit is now fully paid."
	}
	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Message: message, Data: result})
}

func (h *Handler) handleLoanApply(w http.ResponseWriter, r *http.Request) {
	var req loanApplicationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.ApplyForLoan(r.Context(), app.LoanApplication{
		UserID:         req.UserID,
		InterestRate:   string(req.InterestRate),
		InterestType:   req.InterestType,
		BorrowedAmount: req.BorrowedAmount,
	})
	if err != nil {
		respondWithServiceError(w, "creating loan application", err)
		return
	}

	respondWithJSON(w, http.StatusCreated, apiResponse{Success: true, Message: "Loan application created successfully", Data: result})
}

func (h *Handler) handleLoanPayment(w http.ResponseWriter, r *http.Request) {
	var req app.LoanPaymentRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.ApplyLoanPayment(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, "processing loan payment", err)
		return
	}

	message := "Loan payment processed successfully"
	if result.IsPaid {
		message = "Loan fully paid and closed"
	}
	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Message: message, Data: result})
}

func (h *Handler) handleWeeklyCycle(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunWeeklyCycle(r.Context())
	if err != nil {
		respondWithServiceError(w, "running weekly cycle", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Message: result.Message, Data: result})
}

func (h *Handler) handleDeactivateChit(w http.ResponseWriter, r *http.Request) {
	var req deactivateChitRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.DeactivateChit(r.Context(), req.ChitID, req.Reason)
	if err != nil {
		respondWithServiceError(w, "deactivating chit", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Chit deactivated successfully", Data: result})
}

func (h *Handler) handleDeactivateLoan(w http.ResponseWriter, r *http.Request) {
	var req deactivateLoanRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.service.DeactivateLoan(r.Context(), req.LoanID, req.Reason)
	if err != nil {
		respondWithServiceError(w, "deactivating loan", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Loan deactivated successfully", Data: result})
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		respondWithServiceError(w, "listing users", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Data: users})
}

func (h *Handler) handleGetUserDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetUserDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, "fetching user details", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Data: details})
}

func (h *Handler) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SearchUsers(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		respondWithServiceError(w, "searching users", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Message: "Users found successfully", Data: result})
}

func (h *Handler) handleUnpaidChits(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ListUnpaidChits(r.Context())
	if err != nil {
		respondWithServiceError(w, "listing unpaid chits", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Data: result})
}

func (h *Handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	analytics, err := h.service.GetAnalytics(r.Context())
	if err != nil {
		respondWithServiceError(w, "fetching analytics", err)
		return
	}

	respondWithJSON(w, http.StatusOK, apiResponse{Success: true, Data: analytics})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusForError maps an application error kind to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrValidation), errors.Is(err, app.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, app.ErrAlreadyInactive),
		errors.Is(err, app.ErrConflict),
		errors.Is(err, app.ErrCycleInProgress):
		return http.StatusConflict
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondWithServiceError(w http.ResponseWriter, action string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("Error %s: %v", action, err)
	}

	var le *app.LedgerError
	if errors.As(err, &le) && le.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(le.RetryAfter))
	}

	respondWithError(w, status, app.Message(err))
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, apiResponse{Success: false, Error: message})
}

// respondWithJSON writes JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
