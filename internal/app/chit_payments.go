package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

// ChitPaymentRequest is the input of ApplyChitPayment.
type ChitPaymentRequest struct {
	UserID      string `json:"user_id"`
	ChitID      string `json:"chit_id"`
	Amount      int64  `json:"amount"`
	PaymentMode string `json:"payment_mode"`
}

// ChitPaymentResult is the updated chit payment row.
type ChitPaymentResult struct {
	PaymentID          int64                     `json:"payment_id"`
	UserID             string                    `json:"user_id"`
	ChitID             string                    `json:"chit_id"`
	DueAmount          int64                     `json:"due_amount"`
	AmountPaid         int64                     `json:"amount_paid"`
	Balance            *int64                    `json:"balance"`
	IsPaid             bool                      `json:"is_paid"`
	PaidOn             *time.Time                `json:"paid_on"`
	PaymentMode        string                    `json:"payment_mode"`
	WeeklyInstallment  int                       `json:"weekly_installment"`
	TransactionHistory []domain.TransactionEntry `json:"transaction_history"`
}

// ApplyChitPayment records a payment against the newest unpaid installment of a user's chit.
func (s *Service) ApplyChitPayment(ctx context.Context, req ChitPaymentRequest) (*ChitPaymentResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ChitID = strings.TrimSpace(req.ChitID)
	req.PaymentMode = strings.TrimSpace(req.PaymentMode)
	if req.UserID == "" || req.ChitID == "" || req.PaymentMode == "" {
		return nil, newError(ErrValidation, "validate chit payment", "Missing required fields: user_id, chit_id, amount, and payment_mode are required")
	}
	if req.Amount <= 0 {
		return nil, newError(ErrValidation, "validate chit payment", "Amount must be greater than 0")
	}
	if err := s.consumePaymentQuota(ctx, "chit_payment", req.UserID); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		payment, err := s.repo.FindLatestUnpaidChitPayment(ctx, req.UserID, req.ChitID)
		if err != nil {
			if errors.Is(err, store.ErrNoPendingChitPayment) {
				return nil, newError(ErrNotFound, "load pending chit payment", "No pending payment found for this user and chit")
			}
			return nil, persistenceError("load pending chit payment", err)
		}

		applyChitPaymentState(payment, req.Amount, req.PaymentMode, s.now())

		if err := s.repo.UpdateChitPayment(ctx, payment); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				s.logger.Warn("chit payment row changed concurrently, retrying",
					"payment_id", payment.ID, "attempt", attempt)
				continue
			}
			return nil, persistenceError("update chit payment", err)
		}

		result := chitPaymentResult(payment)
		s.publishEvent(ctx, "chit.payment.applied", result)
		if result.IsPaid {
			s.publishEvent(ctx, "chit.payment.completed", result)
		}
		return result, nil
	}

	return nil, newError(ErrConflict, "update chit payment", "Payment could not be applied because the record was updated concurrently, please retry")
}

func chitPaymentResult(p *domain.ChitPayment) *ChitPaymentResult {
	mode := ""
	if p.PaymentMode != nil {
		mode = *p.PaymentMode
	}
	return &ChitPaymentResult{
		PaymentID:          p.ID,
		UserID:             p.UserID,
		ChitID:             p.ChitID,
		DueAmount:          p.DueAmount,
		AmountPaid:         p.AmountPaid,
		Balance:            p.Balance,
		IsPaid:             p.IsPaid,
		PaidOn:             p.PaidOn,
		PaymentMode:        mode,
		WeeklyInstallment:  p.WeeklyInstallment,
		TransactionHistory: p.TransactionHistory,
	}
}
