package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

// GetConfigValue reads a raw config attribute.
func (r *Repository) GetConfigValue(ctx context.Context, attribute string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx, `SELECT value FROM config WHERE attribute = $1`, attribute).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", ErrConfigNotFound
		}
		return "", err
	}
	return value, nil
}

// InsertInstallmentsAndAdvanceWeek inserts a week's payment rows and moves the
// week counter from currentWeek to nextWeek in one transaction. If the counter no
// longer holds currentWeek nothing is written and ErrWeekCounterConflict is returned.
func (r *Repository) InsertInstallmentsAndAdvanceWeek(ctx context.Context, payments []domain.ChitPayment, currentWeek, nextWeek string) ([]domain.ChitPayment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, payment := range payments {
		history, err := encodeHistory(payment.TransactionHistory)
		if err != nil {
			return nil, err
		}
		batch.Queue(`
			INSERT INTO chit_payments (user_id, chit_id, due_amount, amount_paid, balance,
			                           weekly_installment, is_paid, transaction_history)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
			RETURNING `+chitPaymentColumns,
			payment.UserID,
			payment.ChitID,
			payment.DueAmount,
			payment.AmountPaid,
			payment.Balance,
			payment.WeeklyInstallment,
			payment.IsPaid,
			history,
		)
	}

	results := tx.SendBatch(ctx, batch)
	inserted := make([]domain.ChitPayment, 0, len(payments))
	for range payments {
		payment, err := scanChitPayment(results.QueryRow())
		if err != nil {
			results.Close()
			return nil, fmt.Errorf("failed to insert chit payment: %w", err)
		}
		inserted = append(inserted, *payment)
	}
	if err := results.Close(); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE config
		SET value = $1, updated_at = NOW()
		WHERE attribute = $2 AND value = $3
	`, nextWeek, domain.WeekCounterAttribute, currentWeek)
	if err != nil {
		return nil, fmt.Errorf("failed to advance week counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrWeekCounterConflict
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inserted, nil
}
