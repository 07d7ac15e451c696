package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

const loanColumns = `id, loan_id, user_id, interest_rate, interest_type, borrowed_amount, balance,
		       amount_paid, is_active, is_paid, transaction_history, version, created_at, updated_at`

func scanLoan(row pgx.Row) (*domain.Loan, error) {
	var (
		loan    domain.Loan
		history []byte
	)
	if err := row.Scan(
		&loan.ID,
		&loan.LoanID,
		&loan.UserID,
		&loan.InterestRate,
		&loan.InterestType,
		&loan.BorrowedAmount,
		&loan.Balance,
		&loan.AmountPaid,
		&loan.IsActive,
		&loan.IsPaid,
		&history,
		&loan.Version,
		&loan.CreatedAt,
		&loan.UpdatedAt,
	); err != nil {
		return nil, err
	}
	entries, err := decodeHistory(history)
	if err != nil {
		return nil, fmt.Errorf("decode loan %s history: %w", loan.LoanID, err)
	}
	loan.TransactionHistory = entries
	return &loan, nil
}

func collectLoans(rows pgx.Rows) ([]domain.Loan, error) {
	defer rows.Close()

	loans := []domain.Loan{}
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

// CreateLoan inserts a new loan and returns the stored row.
func (r *Repository) CreateLoan(ctx context.Context, loan domain.Loan) (*domain.Loan, error) {
	history, err := encodeHistory(loan.TransactionHistory)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO loans (loan_id, user_id, interest_rate, interest_type, borrowed_amount, balance,
		                   amount_paid, is_active, is_paid, transaction_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::jsonb)
		RETURNING ` + loanColumns
	created, err := scanLoan(r.db.QueryRow(ctx, query,
		loan.LoanID,
		loan.UserID,
		loan.InterestRate,
		loan.InterestType,
		loan.BorrowedAmount,
		loan.Balance,
		loan.AmountPaid,
		loan.IsActive,
		loan.IsPaid,
		history,
	))
	if err != nil {
		return nil, err
	}
	return created, nil
}

// FindActiveLoans returns every active loan row matching the user and loan id.
// More than one row means the data violates the one-active-loan rule; callers decide how to react.
func (r *Repository) FindActiveLoans(ctx context.Context, userID, loanID string) ([]domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE user_id = $1 AND loan_id = $2 AND is_active = TRUE
	`
	rows, err := r.db.Query(ctx, query, userID, loanID)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

// UpdateLoanPayment persists the ledger fields of a loan if its version is unchanged.
func (r *Repository) UpdateLoanPayment(ctx context.Context, loan *domain.Loan) error {
	history, err := encodeHistory(loan.TransactionHistory)
	if err != nil {
		return err
	}

	query := `
		UPDATE loans
		SET balance = $1,
		    amount_paid = $2,
		    is_active = $3,
		    is_paid = $4,
		    transaction_history = $5::jsonb,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $6 AND version = $7
	`
	tag, err := r.db.Exec(ctx, query,
		loan.Balance,
		loan.AmountPaid,
		loan.IsActive,
		loan.IsPaid,
		history,
		loan.ID,
		loan.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	loan.Version++
	return nil
}

// FindLoanByLoanID looks up a loan by its business identifier regardless of state.
func (r *Repository) FindLoanByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE loan_id = $1`
	loan, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return loan, nil
}

// DeactivateLoan force-closes an active loan without touching its balance.
func (r *Repository) DeactivateLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	query := `
		UPDATE loans
		SET is_active = FALSE, updated_at = NOW()
		WHERE loan_id = $1 AND is_active = TRUE
		RETURNING ` + loanColumns
	loan, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAlreadyInactive
		}
		return nil, err
	}
	return loan, nil
}

// ListLoansByUser returns all loans for a user, newest first.
func (r *Repository) ListLoansByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}
