package store

import (
	"context"
	"fmt"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

// GetAnalytics computes the reporting figures. Each figure is an independent
// query, so the result is not a consistent snapshot under concurrent writes.
func (r *Repository) GetAnalytics(ctx context.Context) (*domain.Analytics, error) {
	var a domain.Analytics
	figures := []struct {
		name  string
		query string
		dest  *int64
	}{
		{"chit users", `SELECT COUNT(DISTINCT user_id) FROM chits`, &a.TotalPersonsAppliedForChits},
		{"loan users", `SELECT COUNT(DISTINCT user_id) FROM loans`, &a.TotalPersonsAppliedForLoans},
		{"active chits", `SELECT COUNT(*) FROM chits WHERE is_active = TRUE`, &a.TotalNumberOfActiveChits},
		{"pending loans", `SELECT COUNT(*) FROM loans WHERE is_active = TRUE`, &a.TotalPendingLoans},
		{"pending chits", `SELECT COUNT(*) FROM chit_payments WHERE is_paid = FALSE`, &a.TotalPendingChits},
		{"amount in chits", `SELECT COALESCE(SUM(amount_paid), 0) FROM chit_payments`, &a.AmountInChits},
		{"amount pending in chits", `SELECT COALESCE(SUM(balance), 0) FROM chit_payments WHERE is_paid = FALSE`, &a.AmountPendingToBePaidChits},
		{"amount lent", `SELECT COALESCE(SUM(borrowed_amount), 0) FROM loans`, &a.AmountProvidedForLoans},
		{"amount repaid", `SELECT COALESCE(SUM(amount_paid), 0) FROM loans`, &a.AmountPaidForLoans},
		{"unpaid chits", `SELECT COUNT(*) FROM chit_payments WHERE is_paid = FALSE`, &a.CountOfUnpaidChits},
		{"unpaid loans", `SELECT COUNT(*) FROM loans WHERE is_paid = FALSE`, &a.CountOfUnpaidLoans},
	}

	for _, f := range figures {
		if err := r.db.QueryRow(ctx, f.query).Scan(f.dest); err != nil {
			return nil, fmt.Errorf("failed to compute %s: %w", f.name, err)
		}
	}
	return &a, nil
}
