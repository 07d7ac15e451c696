package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/NirmalNagaraj/chits-backend/internal/app"
	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

type ledgerServiceStub struct {
	LedgerService

	chitResult *app.ChitPaymentResult
	loanResult *app.LoanPaymentResult
	cycle      *app.WeeklyCycleResult
	err        error

	gotChitReq    app.ChitPaymentRequest
	gotLoanApp    app.LoanApplication
	gotReason     *string
	gotUserID     string
	gotQuery      string
	cycleRunCount int
}

func (s *ledgerServiceStub) ApplyChitPayment(ctx context.Context, req app.ChitPaymentRequest) (*app.ChitPaymentResult, error) {
	s.gotChitReq = req
	return s.chitResult, s.err
}

func (s *ledgerServiceStub) ApplyLoanPayment(ctx context.Context, req app.LoanPaymentRequest) (*app.LoanPaymentResult, error) {
	return s.loanResult, s.err
}

func (s *ledgerServiceStub) ApplyForLoan(ctx context.Context, req app.LoanApplication) (*app.LoanApplicationResult, error) {
	s.gotLoanApp = req
	if s.err != nil {
		return nil, s.err
	}
	return &app.LoanApplicationResult{LoanID: "l-1", UserID: req.UserID, InterestRate: req.InterestRate}, nil
}

func (s *ledgerServiceStub) RunWeeklyCycle(ctx context.Context) (*app.WeeklyCycleResult, error) {
	s.cycleRunCount++
	return s.cycle, s.err
}

func (s *ledgerServiceStub) DeactivateChit(ctx context.Context, chitID string, reason *string) (*app.DeactivationResult, error) {
	s.gotReason = reason
	if s.err != nil {
		return nil, s.err
	}
	return &app.DeactivationResult{ChitID: chitID, UserID: "u-1", DeactivatedAt: "06/05/2024, 14:45:00", Reason: reason}, nil
}

func (s *ledgerServiceStub) GetUserDetails(ctx context.Context, userID string) (*domain.UserDetails, error) {
	s.gotUserID = userID
	if s.err != nil {
		return nil, s.err
	}
	return &domain.UserDetails{UserID: userID}, nil
}

func (s *ledgerServiceStub) SearchUsers(ctx context.Context, query string) (*app.UserSearchResult, error) {
	s.gotQuery = query
	return &app.UserSearchResult{Users: []domain.UserSummary{}, SearchQuery: query}, s.err
}

type envelopeResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func serve(t *testing.T, router http.Handler, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelopeResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelopeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("response is not a JSON envelope: %v (%q)", err, rec.Body.String())
	}
	return rec, env
}

func newTestRouter(svc LedgerService, auth AuthOptions) http.Handler {
	return NewRouter(NewHandler(svc, "test", "1.2.3"), auth)
}

func TestHealth(t *testing.T) {
	h := NewHandler(&ledgerServiceStub{}, "test", "1.2.3")
	h.startedAt = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return time.Date(2024, 5, 6, 9, 0, 30, 0, time.UTC) }

	rec, env := serve(t, NewRouter(h, AuthOptions{}), http.MethodGet, "/health", "", nil)

	if rec.Code != http.StatusOK || !env.Success || env.Message != "Service is healthy" {
		t.Fatalf("unexpected health response: %d %+v", rec.Code, env)
	}
	var status healthStatus
	if err := json.Unmarshal(env.Data, &status); err != nil {
		t.Fatalf("failed to decode health data: %v", err)
	}
	if status.Status != "ok" || status.Uptime != 30 || status.Environment != "test" || status.Version != "1.2.3" {
		t.Fatalf("unexpected health data: %+v", status)
	}
}

func TestChitPayment_MessageDependsOnCompletion(t *testing.T) {
	tests := []struct {
		name   string
		isPaid bool
		want   string
	}{
		{name: "partial", isPaid: false, want: "Partial payment processed successfully."},
		{name: "complete", isPaid: true, want: "Payment completed successfully. Chit is now fully paid."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ledgerServiceStub{chitResult: &app.ChitPaymentResult{IsPaid: tt.isPaid}}
			rec, env := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/pay/chit-funds",
				`{"user_id":"u-1","chit_id":"c-1","amount":250,"payment_mode":"cash"}`, nil)

			if rec.Code != http.StatusOK || env.Message != tt.want {
				t.Fatalf("expected 200 %q, got %d %q", tt.want, rec.Code, env.Message)
			}
			if svc.gotChitReq.Amount != 250 || svc.gotChitReq.ChitID != "c-1" {
				t.Fatalf("request not forwarded: %+v", svc.gotChitReq)
			}
		})
	}
}

func TestChitPayment_RejectsNonIntegerAmount(t *testing.T) {
	svc := &ledgerServiceStub{}
	rec, env := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/pay/chit-funds",
		`{"user_id":"u-1","chit_id":"c-1","amount":12.5,"payment_mode":"cash"}`, nil)

	if rec.Code != http.StatusBadRequest || env.Success {
		t.Fatalf("expected 400 failure envelope, got %d %+v", rec.Code, env)
	}
}

func TestLoanPayment_ClosedMessage(t *testing.T) {
	svc := &ledgerServiceStub{loanResult: &app.LoanPaymentResult{IsPaid: true}}
	rec, env := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/loan/pay",
		`{"user_id":"u-1","loan_id":"l-1","amount":100,"payment_mode":"cash"}`, nil)

	if rec.Code != http.StatusOK || env.Message != "Loan fully paid and closed" {
		t.Fatalf("unexpected response: %d %q", rec.Code, env.Message)
	}
}

func TestLoanApply_AcceptsNumericInterestRate(t *testing.T) {
	svc := &ledgerServiceStub{}
	rec, env := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/loan/apply",
		`{"user_id":"u-1","interest_rate":2.5,"interest_type":"monthly","borrowed_amount":10000}`, nil)

	if rec.Code != http.StatusCreated || env.Message != "Loan application created successfully" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
	if svc.gotLoanApp.InterestRate != "2.5" {
		t.Fatalf("expected interest rate to be forwarded as text, got %q", svc.gotLoanApp.InterestRate)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: &app.LedgerError{Kind: app.ErrNotFound, Message: "No pending payment found for this user and chit"}, want: http.StatusNotFound},
		{name: "validation", err: &app.LedgerError{Kind: app.ErrValidation, Message: "Amount must be greater than 0"}, want: http.StatusBadRequest},
		{name: "invalid amount", err: &app.LedgerError{Kind: app.ErrInvalidAmount, Message: "too much"}, want: http.StatusBadRequest},
		{name: "conflict", err: &app.LedgerError{Kind: app.ErrConflict, Message: "retry"}, want: http.StatusConflict},
		{name: "integrity", err: &app.LedgerError{Kind: app.ErrDataIntegrity, Message: "Multiple active loans found - data integrity issue"}, want: http.StatusInternalServerError},
		{name: "persistence", err: &app.LedgerError{Kind: app.ErrPersistence, Message: "failed to update chit payment", Err: fmt.Errorf("boom")}, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &ledgerServiceStub{err: tt.err}
			rec, env := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/pay/chit-funds",
				`{"user_id":"u-1","chit_id":"c-1","amount":1,"payment_mode":"cash"}`, nil)

			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
			if env.Success || env.Error != app.Message(tt.err) {
				t.Fatalf("expected failure envelope with %q, got %+v", app.Message(tt.err), env)
			}
		})
	}
}

func TestRateLimitedSetsRetryAfter(t *testing.T) {
	svc := &ledgerServiceStub{err: &app.LedgerError{Kind: app.ErrRateLimited, Message: "Too many payment requests, please retry later", RetryAfter: 17}}
	rec, _ := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/loan/pay",
		`{"user_id":"u-1","loan_id":"l-1","amount":1,"payment_mode":"cash"}`, nil)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "17" {
		t.Fatalf("expected Retry-After 17, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestWeeklyCycle_RequiresInternalKey(t *testing.T) {
	svc := &ledgerServiceStub{cycle: &app.WeeklyCycleResult{Message: "No active chits found", CurrentWeek: 3, Records: []domain.ChitPayment{}}}
	router := newTestRouter(svc, AuthOptions{InternalAPIKey: "secret"})

	rec, _ := serve(t, router, http.MethodPost, "/update/weekly-chits", "{}", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", rec.Code)
	}
	if svc.cycleRunCount != 0 {
		t.Fatal("expected weekly cycle not to run without a key")
	}

	rec, env := serve(t, router, http.MethodPost, "/update/weekly-chits", "{}", map[string]string{"X-Internal-API-Key": "secret"})
	if rec.Code != http.StatusOK || env.Message != "No active chits found" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
}

func TestDeactivateChit_EchoesReason(t *testing.T) {
	svc := &ledgerServiceStub{}
	rec, env := serve(t, newTestRouter(svc, AuthOptions{}), http.MethodPost, "/chits/deactive",
		`{"chit_id":"c-1","reason":"closed by member"}`, nil)

	if rec.Code != http.StatusOK || env.Message != "Chit deactivated successfully" {
		t.Fatalf("unexpected response: %d %+v", rec.Code, env)
	}
	if svc.gotReason == nil || *svc.gotReason != "closed by member" {
		t.Fatalf("expected reason to be forwarded, got %v", svc.gotReason)
	}
}

func TestUserRoutes(t *testing.T) {
	svc := &ledgerServiceStub{}
	router := newTestRouter(svc, AuthOptions{})

	rec, _ := serve(t, router, http.MethodGet, "/users/details/u-42", "", nil)
	if rec.Code != http.StatusOK || svc.gotUserID != "u-42" {
		t.Fatalf("expected user id from path, got %d %q", rec.Code, svc.gotUserID)
	}

	rec, env := serve(t, router, http.MethodGet, "/users/search?query=ravi", "", nil)
	if rec.Code != http.StatusOK || svc.gotQuery != "ravi" || env.Message != "Users found successfully" {
		t.Fatalf("unexpected search response: %d %q %+v", rec.Code, svc.gotQuery, env)
	}
}
