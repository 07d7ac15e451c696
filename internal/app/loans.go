package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

// LoanPaymentRequest is the input of ApplyLoanPayment.
type LoanPaymentRequest struct {
	UserID      string `json:"user_id"`
	LoanID      string `json:"loan_id"`
	Amount      int64  `json:"amount"`
	PaymentMode string `json:"payment_mode"`
}

// LoanPaymentResult is the loan state after a payment.
type LoanPaymentResult struct {
	LoanID             string                    `json:"loan_id"`
	UserID             string                    `json:"user_id"`
	BorrowedAmount     int64                     `json:"borrowed_amount"`
	Balance            int64                     `json:"balance"`
	AmountPaid         int64                     `json:"amount_paid"`
	IsActive           bool                      `json:"is_active"`
	IsPaid             bool                      `json:"is_paid"`
	PaymentMode        string                    `json:"payment_mode"`
	TransactionHistory []domain.TransactionEntry `json:"transaction_history"`
}

// LoanApplication is the input of ApplyForLoan.
type LoanApplication struct {
	UserID         string `json:"user_id"`
	InterestRate   string `json:"interest_rate"`
	InterestType   string `json:"interest_type"`
	BorrowedAmount int64  `json:"borrowed_amount"`
}

// LoanApplicationResult describes a newly created loan.
type LoanApplicationResult struct {
	LoanID         string    `json:"loan_id"`
	UserID         string    `json:"user_id"`
	InterestRate   string    `json:"interest_rate"`
	InterestType   string    `json:"interest_type"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	BorrowedAmount int64     `json:"borrowed_amount"`
	Balance        int64     `json:"balance"`
}

// ApplyLoanPayment records a repayment against a user's active loan.
func (s *Service) ApplyLoanPayment(ctx context.Context, req LoanPaymentRequest) (*LoanPaymentResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.LoanID = strings.TrimSpace(req.LoanID)
	req.PaymentMode = strings.TrimSpace(req.PaymentMode)
	if req.UserID == "" || req.LoanID == "" || req.PaymentMode == "" {
		return nil, newError(ErrValidation, "validate loan payment", "Missing required fields: user_id, loan_id, amount, and payment_mode are required")
	}
	if req.Amount <= 0 {
		return nil, newError(ErrValidation, "validate loan payment", "Amount must be greater than 0")
	}
	if err := s.consumePaymentQuota(ctx, "loan_payment", req.UserID); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		loans, err := s.repo.FindActiveLoans(ctx, req.UserID, req.LoanID)
		if err != nil {
			return nil, persistenceError("load active loan", err)
		}
		switch {
		case len(loans) == 0:
			return nil, newError(ErrNotFound, "load active loan", "No active loan found for this user and loan ID")
		case len(loans) > 1:
			s.logger.Error("multiple active loans matched", "user_id", req.UserID, "loan_id", req.LoanID, "count", len(loans))
			return nil, newError(ErrDataIntegrity, "load active loan", "Multiple active loans found - data integrity issue")
		}

		loan := loans[0]
		if err := applyLoanPaymentState(&loan, req.Amount, req.PaymentMode, s.now()); err != nil {
			return nil, err
		}

		if err := s.repo.UpdateLoanPayment(ctx, &loan); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				s.logger.Warn("loan row changed concurrently, retrying", "loan_id", loan.LoanID, "attempt", attempt)
				continue
			}
			return nil, persistenceError("update loan", err)
		}

		result := &LoanPaymentResult{
			LoanID:             loan.LoanID,
			UserID:             loan.UserID,
			BorrowedAmount:     loan.BorrowedAmount,
			Balance:            loan.Balance,
			AmountPaid:         loan.AmountPaid,
			IsActive:           loan.IsActive,
			IsPaid:             loan.IsPaid,
			PaymentMode:        req.PaymentMode,
			TransactionHistory: loan.TransactionHistory,
		}
		s.publishEvent(ctx, "loan.payment.applied", result)
		if result.IsPaid {
			s.publishEvent(ctx, "loan.closed", result)
		}
		return result, nil
	}

	return nil, newError(ErrConflict, "update loan", "Payment could not be applied because the loan was updated concurrently, please retry")
}

// ApplyForLoan creates a new active loan for an existing user.
func (s *Service) ApplyForLoan(ctx context.Context, req LoanApplication) (*LoanApplicationResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.InterestRate = strings.TrimSpace(req.InterestRate)
	req.InterestType = strings.ToLower(strings.TrimSpace(req.InterestType))
	if req.UserID == "" || req.InterestRate == "" || req.InterestType == "" || req.BorrowedAmount == 0 {
		return nil, newError(ErrValidation, "validate loan application",
			"Missing required fields: user_id, interest_rate, interest_type, and borrowed_amount are required")
	}
	if req.BorrowedAmount < 0 {
		return nil, newError(ErrValidation, "validate loan application", "borrowed_amount must be greater than 0")
	}
	if !domain.ValidInterestType(req.InterestType) {
		return nil, newError(ErrValidation, "validate loan application", "interest_type must be one of monthly, yearly, daily")
	}
	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil || rate.IsNegative() {
		return nil, newError(ErrValidation, "validate loan application", "interest_rate must be a non-negative number")
	}

	if _, err := s.repo.FindUserByUserID(ctx, req.UserID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newError(ErrNotFound, "load user", "User not found")
		}
		return nil, persistenceError("load user", err)
	}

	loan, err := s.repo.CreateLoan(ctx, domain.Loan{
		LoanID:             uuid.NewString(),
		UserID:             req.UserID,
		InterestRate:       rate.String(),
		InterestType:       req.InterestType,
		BorrowedAmount:     req.BorrowedAmount,
		Balance:            req.BorrowedAmount,
		AmountPaid:         0,
		IsActive:           true,
		IsPaid:             false,
		TransactionHistory: []domain.TransactionEntry{},
	})
	if err != nil {
		return nil, persistenceError("create loan", err)
	}

	result := &LoanApplicationResult{
		LoanID:         loan.LoanID,
		UserID:         loan.UserID,
		InterestRate:   loan.InterestRate,
		InterestType:   loan.InterestType,
		IsActive:       loan.IsActive,
		CreatedAt:      loan.CreatedAt,
		BorrowedAmount: loan.BorrowedAmount,
		Balance:        loan.Balance,
	}
	s.publishEvent(ctx, "loan.created", result)
	return result, nil
}
