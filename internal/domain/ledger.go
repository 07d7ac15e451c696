/**
 * @description
 * Domain models for the chit-fund and loan ledger.
 */
package domain

import "time"

// InstallmentUnit is the weekly amount owed per subscribed chit unit.
const InstallmentUnit int64 = 100

// WeekCounterAttribute is the config attribute holding the global week counter.
const WeekCounterAttribute = "chits_installment"

// TimestampLayout matches the ISO-8601 millisecond form stored in transaction histories.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ISTOffset is the fixed UTC+5:30 offset applied to loan history and display timestamps.
const ISTOffset = 5*time.Hour + 30*time.Minute

// TransactionEntry is one element of a chit payment or loan transaction history.
type TransactionEntry struct {
	Timestamp string `json:"timestamp"`
	Amount    int64  `json:"amount"`
	Mode      string `json:"mode"`
}

// Chit is one subscription to the group-savings scheme.
type Chit struct {
	ID         int64     `json:"id"`
	ChitID     string    `json:"chit_id"`
	UserID     string    `json:"user_id"`
	TotalChits int       `json:"total_chits"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ChitPayment is the payment-due record of one chit for one installment week.
type ChitPayment struct {
	ID                 int64              `json:"payment_id"`
	UserID             string             `json:"user_id"`
	ChitID             string             `json:"chit_id"`
	DueAmount          int64              `json:"due_amount"`
	AmountPaid         int64              `json:"amount_paid"`
	Balance            *int64             `json:"balance"`
	WeeklyInstallment  int                `json:"weekly_installment"`
	IsPaid             bool               `json:"is_paid"`
	PaidOn             *time.Time         `json:"paid_on"`
	PaymentMode        *string            `json:"payment_mode"`
	TransactionHistory []TransactionEntry `json:"transaction_history"`
	Version            int                `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
}

// Loan is a personal loan tracked against a user.
type Loan struct {
	ID                 int64              `json:"id"`
	LoanID             string             `json:"loan_id"`
	UserID             string             `json:"user_id"`
	InterestRate       string             `json:"interest_rate"`
	InterestType       string             `json:"interest_type"`
	BorrowedAmount     int64              `json:"borrowed_amount"`
	Balance            int64              `json:"balance"`
	AmountPaid         int64              `json:"amount_paid"`
	IsActive           bool               `json:"is_active"`
	IsPaid             bool               `json:"is_paid"`
	TransactionHistory []TransactionEntry `json:"transaction_history"`
	Version            int                `json:"-"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Supported loan interest types.
const (
	InterestMonthly = "monthly"
	InterestYearly  = "yearly"
	InterestDaily   = "daily"
)

// ValidInterestType reports whether t is a supported interest type.
func ValidInterestType(t string) bool {
	switch t {
	case InterestMonthly, InterestYearly, InterestDaily:
		return true
	}
	return false
}
