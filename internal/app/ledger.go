package app

import (
	"fmt"
	"time"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

// applyChitPaymentState adds amount to a chit payment row. Overpayment is
// accepted and leaves a negative balance. paid_on is stamped only on the
// call that moves the row to paid.
func applyChitPaymentState(p *domain.ChitPayment, amount int64, mode string, now time.Time) {
	wasPaid := p.IsPaid

	p.AmountPaid += amount
	balance := p.DueAmount - p.AmountPaid
	p.Balance = &balance
	p.IsPaid = p.AmountPaid >= p.DueAmount

	history := make([]domain.TransactionEntry, 0, len(p.TransactionHistory)+1)
	history = append(history, p.TransactionHistory...)
	p.TransactionHistory = append(history, domain.TransactionEntry{
		Timestamp: formatTimestamp(now),
		Amount:    amount,
		Mode:      mode,
	})

	if p.IsPaid && !wasPaid {
		paidOn := now.UTC()
		p.PaidOn = &paidOn
	}
	p.PaymentMode = &mode
}

// applyLoanPaymentState subtracts amount from a loan balance. A payment larger
// than the balance is rejected and leaves the loan untouched. A loan paid down
// to zero closes itself.
func applyLoanPaymentState(l *domain.Loan, amount int64, mode string, now time.Time) error {
	if amount > l.Balance {
		return newError(ErrInvalidAmount, "validate loan payment",
			fmt.Sprintf("Payment amount (%d) cannot exceed remaining balance (%d)", amount, l.Balance))
	}

	l.Balance -= amount
	l.AmountPaid += amount
	fullyPaid := l.Balance == 0
	l.IsActive = !fullyPaid
	l.IsPaid = fullyPaid

	// Loan history stores the UTC+05:30 wall clock in the timestamp itself.
	history := make([]domain.TransactionEntry, 0, len(l.TransactionHistory)+1)
	history = append(history, l.TransactionHistory...)
	l.TransactionHistory = append(history, domain.TransactionEntry{
		Timestamp: formatTimestamp(now.Add(domain.ISTOffset)),
		Amount:    amount,
		Mode:      mode,
	})
	return nil
}

// buildWeeklyInstallments creates one unpaid payment row per chit for week.
func buildWeeklyInstallments(chits []domain.Chit, week int) []domain.ChitPayment {
	payments := make([]domain.ChitPayment, 0, len(chits))
	for _, chit := range chits {
		due := int64(chit.TotalChits) * domain.InstallmentUnit
		balance := due
		payments = append(payments, domain.ChitPayment{
			UserID:             chit.UserID,
			ChitID:             chit.ChitID,
			DueAmount:          due,
			AmountPaid:         0,
			Balance:            &balance,
			WeeklyInstallment:  week,
			IsPaid:             false,
			TransactionHistory: []domain.TransactionEntry{},
		})
	}
	return payments
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(domain.TimestampLayout)
}

// shiftHistoryForDisplay returns a copy of history with every timestamp moved
// forward by the UTC+05:30 offset. Unparseable timestamps are kept as-is.
func shiftHistoryForDisplay(history []domain.TransactionEntry) []domain.TransactionEntry {
	if history == nil {
		return nil
	}
	shifted := make([]domain.TransactionEntry, len(history))
	for i, entry := range history {
		shifted[i] = entry
		ts, err := time.Parse(time.RFC3339Nano, entry.Timestamp)
		if err != nil {
			continue
		}
		shifted[i].Timestamp = formatTimestamp(ts.Add(domain.ISTOffset))
	}
	return shifted
}
