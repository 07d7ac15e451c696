package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

const chitColumns = `id, chit_id, user_id, total_chits, is_active, created_at, updated_at`

const chitPaymentColumns = `id, user_id, chit_id, due_amount, amount_paid, balance, weekly_installment,
		       is_paid, paid_on, payment_mode, transaction_history, version, created_at`

func scanChit(row pgx.Row) (*domain.Chit, error) {
	var chit domain.Chit
	if err := row.Scan(
		&chit.ID,
		&chit.ChitID,
		&chit.UserID,
		&chit.TotalChits,
		&chit.IsActive,
		&chit.CreatedAt,
		&chit.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &chit, nil
}

func scanChitPayment(row pgx.Row) (*domain.ChitPayment, error) {
	var (
		payment domain.ChitPayment
		history []byte
	)
	if err := row.Scan(
		&payment.ID,
		&payment.UserID,
		&payment.ChitID,
		&payment.DueAmount,
		&payment.AmountPaid,
		&payment.Balance,
		&payment.WeeklyInstallment,
		&payment.IsPaid,
		&payment.PaidOn,
		&payment.PaymentMode,
		&history,
		&payment.Version,
		&payment.CreatedAt,
	); err != nil {
		return nil, err
	}
	entries, err := decodeHistory(history)
	if err != nil {
		return nil, fmt.Errorf("decode chit payment %d history: %w", payment.ID, err)
	}
	payment.TransactionHistory = entries
	return &payment, nil
}

// FindLatestUnpaidChitPayment returns the most recently created unpaid payment row for a user's chit.
func (r *Repository) FindLatestUnpaidChitPayment(ctx context.Context, userID, chitID string) (*domain.ChitPayment, error) {
	query := `
		SELECT ` + chitPaymentColumns + `
		FROM chit_payments
		WHERE user_id = $1 AND chit_id = $2 AND is_paid = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	payment, err := scanChitPayment(r.db.QueryRow(ctx, query, userID, chitID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNoPendingChitPayment
		}
		return nil, err
	}
	return payment, nil
}

// UpdateChitPayment persists the ledger fields of a payment row if its version is unchanged.
// On success the in-memory version is advanced to match the stored row.
func (r *Repository) UpdateChitPayment(ctx context.Context, payment *domain.ChitPayment) error {
	history, err := encodeHistory(payment.TransactionHistory)
	if err != nil {
		return err
	}

	query := `
		UPDATE chit_payments
		SET amount_paid = $1,
		    balance = $2,
		    is_paid = $3,
		    paid_on = $4,
		    payment_mode = $5,
		    transaction_history = $6::jsonb,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $7 AND version = $8
	`
	tag, err := r.db.Exec(ctx, query,
		payment.AmountPaid,
		payment.Balance,
		payment.IsPaid,
		payment.PaidOn,
		payment.PaymentMode,
		history,
		payment.ID,
		payment.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	payment.Version++
	return nil
}

// ListChitPaymentsByUser returns all chit payments for a user, newest first.
func (r *Repository) ListChitPaymentsByUser(ctx context.Context, userID string) ([]domain.ChitPayment, error) {
	query := `
		SELECT ` + chitPaymentColumns + `
		FROM chit_payments
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []domain.ChitPayment{}
	for rows.Next() {
		payment, err := scanChitPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// FindChitByChitID looks up a chit by its business identifier.
func (r *Repository) FindChitByChitID(ctx context.Context, chitID string) (*domain.Chit, error) {
	query := `SELECT ` + chitColumns + ` FROM chits WHERE chit_id = $1`
	chit, err := scanChit(r.db.QueryRow(ctx, query, chitID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrChitNotFound
		}
		return nil, err
	}
	return chit, nil
}

// ListActiveChits returns every chit that still takes part in the weekly cycle.
func (r *Repository) ListActiveChits(ctx context.Context) ([]domain.Chit, error) {
	query := `SELECT ` + chitColumns + ` FROM chits WHERE is_active = TRUE ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chits := []domain.Chit{}
	for rows.Next() {
		chit, err := scanChit(rows)
		if err != nil {
			return nil, err
		}
		chits = append(chits, *chit)
	}
	return chits, rows.Err()
}

// DeactivateChit flips an active chit to inactive and returns the updated row.
func (r *Repository) DeactivateChit(ctx context.Context, chitID string) (*domain.Chit, error) {
	query := `
		UPDATE chits
		SET is_active = FALSE, updated_at = NOW()
		WHERE chit_id = $1 AND is_active = TRUE
		RETURNING ` + chitColumns
	chit, err := scanChit(r.db.QueryRow(ctx, query, chitID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAlreadyInactive
		}
		return nil, err
	}
	return chit, nil
}

// ListUnpaidChitsByUser groups unpaid chit payments per user, largest outstanding amount first.
func (r *Repository) ListUnpaidChitsByUser(ctx context.Context) ([]domain.UnpaidChitEntry, error) {
	query := `
		SELECT cp.user_id, u.name, u.mobile, COALESCE(SUM(cp.balance), 0), COUNT(*)
		FROM chit_payments cp
		INNER JOIN users u ON u.user_id = cp.user_id
		WHERE cp.is_paid = FALSE
		GROUP BY cp.user_id, u.name, u.mobile
		ORDER BY 4 DESC, cp.user_id ASC
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.UnpaidChitEntry{}
	for rows.Next() {
		var entry domain.UnpaidChitEntry
		if err := rows.Scan(
			&entry.UserID,
			&entry.Name,
			&entry.Mobile,
			&entry.TotalAmountToBePaid,
			&entry.UnpaidChitsCount,
		); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
