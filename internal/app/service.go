/**
 * @description
 * Core business logic for the chit-fund and loan ledger.
 * Each operation reads row state through the Repository, computes the new
 * state, writes it back and returns a result value.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
)

// Repository defines the database operations the service needs.
type Repository interface {
	FindLatestUnpaidChitPayment(ctx context.Context, userID, chitID string) (*domain.ChitPayment, error)
	UpdateChitPayment(ctx context.Context, payment *domain.ChitPayment) error
	ListChitPaymentsByUser(ctx context.Context, userID string) ([]domain.ChitPayment, error)
	FindChitByChitID(ctx context.Context, chitID string) (*domain.Chit, error)
	ListActiveChits(ctx context.Context) ([]domain.Chit, error)
	DeactivateChit(ctx context.Context, chitID string) (*domain.Chit, error)
	ListUnpaidChitsByUser(ctx context.Context) ([]domain.UnpaidChitEntry, error)

	CreateLoan(ctx context.Context, loan domain.Loan) (*domain.Loan, error)
	FindActiveLoans(ctx context.Context, userID, loanID string) ([]domain.Loan, error)
	UpdateLoanPayment(ctx context.Context, loan *domain.Loan) error
	FindLoanByLoanID(ctx context.Context, loanID string) (*domain.Loan, error)
	DeactivateLoan(ctx context.Context, loanID string) (*domain.Loan, error)
	ListLoansByUser(ctx context.Context, userID string) ([]domain.Loan, error)

	CreateUserWithChit(ctx context.Context, user domain.User, chit domain.Chit) (*domain.User, *domain.Chit, error)
	MobileExists(ctx context.Context, mobile int64) (bool, error)
	FindUserByUserID(ctx context.Context, userID string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.UserSummary, error)
	SearchUsersByMobile(ctx context.Context, mobile int64) ([]domain.UserSummary, error)
	SearchUsersByName(ctx context.Context, fragment string) ([]domain.UserSummary, error)

	GetConfigValue(ctx context.Context, attribute string) (string, error)
	InsertInstallmentsAndAdvanceWeek(ctx context.Context, payments []domain.ChitPayment, currentWeek, nextWeek string) ([]domain.ChitPayment, error)

	GetAnalytics(ctx context.Context) (*domain.Analytics, error)
}

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// RateLimiter counts calls per scope and subject inside a rolling window.
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// CycleLock serialises weekly cycle runs across service instances.
type CycleLock interface {
	Acquire(ctx context.Context) (release func(), acquired bool, err error)
}

// Options tunes service behaviour. Zero values fall back to defaults.
type Options struct {
	Exchange                  string
	MaxRetries                int
	DisplayTimezone           string
	PaymentRateLimitPerMinute int
}

// Service provides the business logic for the ledger.
type Service struct {
	repo      Repository
	publisher EventPublisher
	logger    *slog.Logger
	exchange  string
	retries   int
	loc       *time.Location
	now       func() time.Time

	limiter      RateLimiter
	paymentLimit int
	cycleLock    CycleLock
}

// NewService creates a new ledger service.
func NewService(repo Repository, publisher EventPublisher, logger *slog.Logger, opts Options) *Service {
	if opts.Exchange == "" {
		opts.Exchange = "chitfund.events"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.DisplayTimezone == "" {
		opts.DisplayTimezone = "Asia/Kolkata"
	}

	loc, err := time.LoadLocation(opts.DisplayTimezone)
	if err != nil {
		logger.Warn("invalid display timezone, defaulting to fixed UTC+05:30", "timezone", opts.DisplayTimezone, "error", err)
		loc = time.FixedZone("IST", int(domain.ISTOffset.Seconds()))
	}

	return &Service{
		repo:         repo,
		publisher:    publisher,
		logger:       logger,
		exchange:     opts.Exchange,
		retries:      opts.MaxRetries,
		loc:          loc,
		now:          time.Now,
		paymentLimit: opts.PaymentRateLimitPerMinute,
	}
}

// SetRateLimiter enables distributed rate limiting of payment operations.
func (s *Service) SetRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

// SetCycleLock enables cross-instance serialisation of the weekly cycle.
func (s *Service) SetCycleLock(lock CycleLock) {
	s.cycleLock = lock
}

func (s *Service) consumePaymentQuota(ctx context.Context, scope, userID string) error {
	if s.limiter == nil || s.paymentLimit <= 0 {
		return nil
	}

	count, retryAfter, err := s.limiter.ConsumeRateLimit(ctx, scope, userID, s.paymentLimit, time.Minute)
	if err != nil {
		s.logger.Warn("payment rate limiter unavailable, allowing request", "scope", scope, "user_id", userID, "error", err)
		return nil
	}
	if count > s.paymentLimit {
		return &LedgerError{
			Kind:       ErrRateLimited,
			Op:         scope,
			Message:    "Too many payment requests, please retry later",
			RetryAfter: retryAfter,
		}
	}
	return nil
}

func (s *Service) publishEvent(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, s.exchange, routingKey, payload); err != nil {
		s.logger.Error("failed to publish ledger event", "routing_key", routingKey, "error", err)
	}
}
