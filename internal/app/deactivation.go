package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

// deactivatedAtLayout renders dd/mm/yyyy, HH:MM:SS on a 24 hour clock.
const deactivatedAtLayout = "02/01/2006, 15:04:05"

// DeactivationResult reports a force-closed chit or loan. Reason is echoed back, not stored.
type DeactivationResult struct {
	ChitID        string  `json:"chit_id,omitempty"`
	LoanID        string  `json:"loan_id,omitempty"`
	UserID        string  `json:"user_id"`
	IsActive      bool    `json:"is_active"`
	DeactivatedAt string  `json:"deactivated_at"`
	Reason        *string `json:"reason,omitempty"`
}

// DeactivateChit force-closes an active chit regardless of outstanding payments.
func (s *Service) DeactivateChit(ctx context.Context, chitID string, reason *string) (*DeactivationResult, error) {
	chitID = strings.TrimSpace(chitID)
	if chitID == "" {
		return nil, newError(ErrValidation, "validate chit deactivation", "chit_id is required")
	}

	existing, err := s.repo.FindChitByChitID(ctx, chitID)
	if err != nil {
		if errors.Is(err, store.ErrChitNotFound) {
			return nil, newError(ErrNotFound, "load chit", "Chit not found")
		}
		return nil, persistenceError("load chit", err)
	}
	if !existing.IsActive {
		return nil, newError(ErrAlreadyInactive, "deactivate chit", "Chit is already inactive")
	}

	chit, err := s.repo.DeactivateChit(ctx, chitID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyInactive) {
			return nil, newError(ErrAlreadyInactive, "deactivate chit", "Chit is already inactive")
		}
		return nil, persistenceError("deactivate chit", err)
	}

	result := &DeactivationResult{
		ChitID:        chit.ChitID,
		UserID:        chit.UserID,
		IsActive:      chit.IsActive,
		DeactivatedAt: s.formatLocal(chit.UpdatedAt),
		Reason:        reason,
	}
	s.publishEvent(ctx, "chit.deactivated", result)
	return result, nil
}

// DeactivateLoan force-closes an active loan without changing its balance.
func (s *Service) DeactivateLoan(ctx context.Context, loanID string, reason *string) (*DeactivationResult, error) {
	loanID = strings.TrimSpace(loanID)
	if loanID == "" {
		return nil, newError(ErrValidation, "validate loan deactivation", "loan_id is required")
	}

	existing, err := s.repo.FindLoanByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, store.ErrLoanNotFound) {
			return nil, newError(ErrNotFound, "load loan", "Loan not found")
		}
		return nil, persistenceError("load loan", err)
	}
	if !existing.IsActive {
		return nil, newError(ErrAlreadyInactive, "deactivate loan", "Loan is already inactive")
	}

	loan, err := s.repo.DeactivateLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyInactive) {
			return nil, newError(ErrAlreadyInactive, "deactivate loan", "Loan is already inactive")
		}
		return nil, persistenceError("deactivate loan", err)
	}

	result := &DeactivationResult{
		LoanID:        loan.LoanID,
		UserID:        loan.UserID,
		IsActive:      loan.IsActive,
		DeactivatedAt: s.formatLocal(loan.UpdatedAt),
		Reason:        reason,
	}
	s.publishEvent(ctx, "loan.deactivated", result)
	return result, nil
}

func (s *Service) formatLocal(t time.Time) string {
	return t.In(s.loc).Format(deactivatedAtLayout)
}
