/**
 * @description
 * Data access layer for the chit-fund ledger service.
 * All reads and writes go through a pgx connection pool.
 */
package store

import (
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrChitNotFound         = errors.New("chit not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrNoPendingChitPayment = errors.New("no pending chit payment")
	ErrConfigNotFound       = errors.New("config attribute not found")
	ErrDuplicateMobile      = errors.New("mobile number already registered")
	ErrAlreadyInactive      = errors.New("record already inactive")
	ErrVersionConflict      = errors.New("row version changed concurrently")
	ErrWeekCounterConflict  = errors.New("week counter advanced concurrently")
)

// Repository handles database operations for users, chits, payments and loans.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// isUniqueViolation reports a 23505 error, optionally restricted to one constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

func encodeHistory(history []domain.TransactionEntry) (string, error) {
	if history == nil {
		history = []domain.TransactionEntry{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeHistory(raw []byte) ([]domain.TransactionEntry, error) {
	history := []domain.TransactionEntry{}
	if len(raw) == 0 {
		return history, nil
	}
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, err
	}
	return history, nil
}
