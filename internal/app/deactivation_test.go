package app

import (
	"context"
	"errors"
	"testing"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

func TestDeactivateChit(t *testing.T) {
	repo := &ledgerRepoStub{chit: &domain.Chit{ChitID: "c-1", UserID: "u-1", TotalChits: 2, IsActive: true}}
	publisher := &publisherStub{}
	svc := newTestService(repo, publisher)
	reason := "member exited"

	result, err := svc.DeactivateChit(context.Background(), "c-1", &reason)
	if err != nil {
		t.Fatalf("DeactivateChit returned error: %v", err)
	}
	if result.IsActive {
		t.Fatal("expected chit to be inactive")
	}
	if result.DeactivatedAt != "06/05/2024, 14:45:00" {
		t.Fatalf("unexpected deactivated_at %q", result.DeactivatedAt)
	}
	if result.Reason == nil || *result.Reason != reason {
		t.Fatalf("expected reason to be echoed, got %v", result.Reason)
	}
	if !publisher.published("chit.deactivated") {
		t.Fatal("expected chit.deactivated event")
	}

	_, err = svc.DeactivateChit(context.Background(), "c-1", nil)
	if !errors.Is(err, ErrAlreadyInactive) {
		t.Fatalf("expected already inactive on second call, got %v", err)
	}
	if repo.deactivateCall != 1 {
		t.Fatalf("expected a single deactivation write, got %d", repo.deactivateCall)
	}
}

func TestDeactivateChit_Errors(t *testing.T) {
	svc := newTestService(&ledgerRepoStub{}, nil)

	if _, err := svc.DeactivateChit(context.Background(), "  ", nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.DeactivateChit(context.Background(), "missing", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeactivateChit_LostRace(t *testing.T) {
	repo := &ledgerRepoStub{
		chit:          &domain.Chit{ChitID: "c-1", UserID: "u-1", IsActive: true},
		deactivateErr: store.ErrAlreadyInactive,
	}
	svc := newTestService(repo, nil)

	_, err := svc.DeactivateChit(context.Background(), "c-1", nil)
	if !errors.Is(err, ErrAlreadyInactive) {
		t.Fatalf("expected already inactive, got %v", err)
	}
}

func TestDeactivateLoan(t *testing.T) {
	repo := &ledgerRepoStub{loan: &domain.Loan{LoanID: "l-1", UserID: "u-1", Balance: 700, IsActive: true}}
	svc := newTestService(repo, nil)

	result, err := svc.DeactivateLoan(context.Background(), "l-1", nil)
	if err != nil {
		t.Fatalf("DeactivateLoan returned error: %v", err)
	}
	if result.LoanID != "l-1" || result.IsActive || result.Reason != nil {
		t.Fatalf("unexpected result: %+v", result)
	}
	if repo.loan.Balance != 700 {
		t.Fatalf("expected balance to be left at 700, got %d", repo.loan.Balance)
	}
}

func TestDeactivateLoan_AlreadyInactive(t *testing.T) {
	repo := &ledgerRepoStub{loan: &domain.Loan{LoanID: "l-1", UserID: "u-1", IsActive: false}}
	svc := newTestService(repo, nil)

	_, err := svc.DeactivateLoan(context.Background(), "l-1", nil)
	if !errors.Is(err, ErrAlreadyInactive) {
		t.Fatalf("expected already inactive, got %v", err)
	}
	if repo.deactivateCall != 0 {
		t.Fatal("expected no write for an inactive loan")
	}
	if Message(err) != "Loan is already inactive" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}
