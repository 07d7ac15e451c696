/**
 * @description
 * User and reporting models.
 */
package domain

import "time"

// User is a chit-fund member.
type User struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Mobile     int64     `json:"mobile"`
	TotalChits int       `json:"total_chits"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserSummary is the basic listing view of a user.
type UserSummary struct {
	UserID     string `json:"user_id"`
	Name       string `json:"name"`
	Mobile     int64  `json:"mobile"`
	TotalChits int    `json:"total_chits"`
}

// UserDetails bundles a user with their chit payment and loan history.
type UserDetails struct {
	UserID             string        `json:"user_id"`
	Name               string        `json:"name"`
	Mobile             int64         `json:"mobile"`
	TotalChits         int           `json:"total_chits"`
	ChitPaymentHistory []ChitPayment `json:"chit_payment_history"`
	LoanDetails        []Loan        `json:"loan_details"`
}

// UnpaidChitEntry aggregates a user's unpaid chit payments.
type UnpaidChitEntry struct {
	UserID              string `json:"user_id"`
	Name                string `json:"name"`
	Mobile              int64  `json:"mobile"`
	TotalAmountToBePaid int64  `json:"total_amount_to_be_paid"`
	UnpaidChitsCount    int    `json:"unpaid_chits_count"`
}

// Analytics is the reporting roll-up. Figures are read independently and
// are not a consistent snapshot.
type Analytics struct {
	TotalPersonsAppliedForChits int64 `json:"total_persons_applied_for_chits"`
	TotalPersonsAppliedForLoans int64 `json:"total_persons_applied_for_loans"`
	TotalNumberOfActiveChits    int64 `json:"total_number_of_active_chits"`
	TotalPendingLoans           int64 `json:"total_pending_loans"`
	TotalPendingChits           int64 `json:"total_pending_chits"`
	AmountInChits               int64 `json:"amount_in_chits"`
	AmountPendingToBePaidChits  int64 `json:"amount_pending_to_be_paid_chits"`
	AmountProvidedForLoans      int64 `json:"amount_provided_for_loans"`
	AmountPaidForLoans          int64 `json:"amount_paid_for_loans"`
	CountOfUnpaidChits          int64 `json:"count_of_unpaid_chits"`
	CountOfUnpaidLoans          int64 `json:"count_of_unpaid_loans"`
}
