package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

var fixedNow = time.Date(2024, time.May, 6, 9, 15, 0, 0, time.UTC)

type ledgerRepoStub struct {
	Repository

	chitPayment     *domain.ChitPayment
	chitFindErr     error
	chitUpdateErr   error
	chitConflicts   int
	chitUpdateCalls int

	activeLoans     []domain.Loan
	loanFindErr     error
	loanConflicts   int
	loanUpdateCalls int
	updatedLoan     *domain.Loan

	weekValue    string
	weekErr      error
	activeChits  []domain.Chit
	insertErr    error
	insertCalls  int
	insertedRows []domain.ChitPayment
	advancedFrom string
	advancedTo   string

	chit           *domain.Chit
	loan           *domain.Loan
	deactivateErr  error
	deactivateCall int

	user          *domain.User
	mobileExists  bool
	createUserErr error
	createdUser   *domain.User
	createdChit   *domain.Chit
	createdLoan   *domain.Loan
	searchedBy    string
}

func (s *ledgerRepoStub) FindLatestUnpaidChitPayment(ctx context.Context, userID, chitID string) (*domain.ChitPayment, error) {
	if s.chitFindErr != nil {
		return nil, s.chitFindErr
	}
	if s.chitPayment == nil || s.chitPayment.IsPaid {
		return nil, store.ErrNoPendingChitPayment
	}
	cp := *s.chitPayment
	return &cp, nil
}

func (s *ledgerRepoStub) UpdateChitPayment(ctx context.Context, payment *domain.ChitPayment) error {
	s.chitUpdateCalls++
	if s.chitConflicts > 0 {
		s.chitConflicts--
		return store.ErrVersionConflict
	}
	if s.chitUpdateErr != nil {
		return s.chitUpdateErr
	}
	payment.Version++
	stored := *payment
	s.chitPayment = &stored
	return nil
}

func (s *ledgerRepoStub) FindActiveLoans(ctx context.Context, userID, loanID string) ([]domain.Loan, error) {
	if s.loanFindErr != nil {
		return nil, s.loanFindErr
	}
	var out []domain.Loan
	for _, l := range s.activeLoans {
		if l.IsActive && l.UserID == userID && l.LoanID == loanID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *ledgerRepoStub) UpdateLoanPayment(ctx context.Context, loan *domain.Loan) error {
	s.loanUpdateCalls++
	if s.loanConflicts > 0 {
		s.loanConflicts--
		return store.ErrVersionConflict
	}
	loan.Version++
	for i := range s.activeLoans {
		if s.activeLoans[i].ID == loan.ID {
			s.activeLoans[i] = *loan
		}
	}
	stored := *loan
	s.updatedLoan = &stored
	return nil
}

func (s *ledgerRepoStub) GetConfigValue(ctx context.Context, attribute string) (string, error) {
	if s.weekErr != nil {
		return "", s.weekErr
	}
	return s.weekValue, nil
}

func (s *ledgerRepoStub) ListActiveChits(ctx context.Context) ([]domain.Chit, error) {
	return s.activeChits, nil
}

func (s *ledgerRepoStub) InsertInstallmentsAndAdvanceWeek(ctx context.Context, payments []domain.ChitPayment, currentWeek, nextWeek string) ([]domain.ChitPayment, error) {
	s.insertCalls++
	if s.insertErr != nil {
		return nil, s.insertErr
	}
	for i := range payments {
		payments[i].ID = int64(i + 1)
	}
	s.insertedRows = payments
	s.advancedFrom = currentWeek
	s.advancedTo = nextWeek
	s.weekValue = nextWeek
	return payments, nil
}

func (s *ledgerRepoStub) FindChitByChitID(ctx context.Context, chitID string) (*domain.Chit, error) {
	if s.chit == nil || s.chit.ChitID != chitID {
		return nil, store.ErrChitNotFound
	}
	cp := *s.chit
	return &cp, nil
}

func (s *ledgerRepoStub) DeactivateChit(ctx context.Context, chitID string) (*domain.Chit, error) {
	s.deactivateCall++
	if s.deactivateErr != nil {
		return nil, s.deactivateErr
	}
	s.chit.IsActive = false
	s.chit.UpdatedAt = fixedNow
	cp := *s.chit
	return &cp, nil
}

func (s *ledgerRepoStub) FindLoanByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if s.loan == nil || s.loan.LoanID != loanID {
		return nil, store.ErrLoanNotFound
	}
	cp := *s.loan
	return &cp, nil
}

func (s *ledgerRepoStub) DeactivateLoan(ctx context.Context, loanID string) (*domain.Loan, error) {
	s.deactivateCall++
	if s.deactivateErr != nil {
		return nil, s.deactivateErr
	}
	s.loan.IsActive = false
	s.loan.UpdatedAt = fixedNow
	cp := *s.loan
	return &cp, nil
}

func (s *ledgerRepoStub) FindUserByUserID(ctx context.Context, userID string) (*domain.User, error) {
	if s.user == nil || s.user.UserID != userID {
		return nil, store.ErrUserNotFound
	}
	cp := *s.user
	return &cp, nil
}

func (s *ledgerRepoStub) CreateLoan(ctx context.Context, loan domain.Loan) (*domain.Loan, error) {
	loan.ID = 1
	loan.CreatedAt = fixedNow
	s.createdLoan = &loan
	return &loan, nil
}

func (s *ledgerRepoStub) MobileExists(ctx context.Context, mobile int64) (bool, error) {
	return s.mobileExists, nil
}

func (s *ledgerRepoStub) CreateUserWithChit(ctx context.Context, user domain.User, chit domain.Chit) (*domain.User, *domain.Chit, error) {
	if s.createUserErr != nil {
		return nil, nil, s.createUserErr
	}
	chit.UserID = user.UserID
	s.createdUser = &user
	s.createdChit = &chit
	return &user, &chit, nil
}

func (s *ledgerRepoStub) SearchUsersByMobile(ctx context.Context, mobile int64) ([]domain.UserSummary, error) {
	s.searchedBy = "mobile"
	return []domain.UserSummary{{UserID: "u-1", Name: "Ravi", Mobile: mobile, TotalChits: 2}}, nil
}

func (s *ledgerRepoStub) SearchUsersByName(ctx context.Context, fragment string) ([]domain.UserSummary, error) {
	s.searchedBy = "name"
	return []domain.UserSummary{}, nil
}

func (s *ledgerRepoStub) ListChitPaymentsByUser(ctx context.Context, userID string) ([]domain.ChitPayment, error) {
	if s.chitPayment == nil {
		return []domain.ChitPayment{}, nil
	}
	return []domain.ChitPayment{*s.chitPayment}, nil
}

func (s *ledgerRepoStub) ListLoansByUser(ctx context.Context, userID string) ([]domain.Loan, error) {
	return s.activeLoans, nil
}

func (s *ledgerRepoStub) ListUnpaidChitsByUser(ctx context.Context) ([]domain.UnpaidChitEntry, error) {
	return []domain.UnpaidChitEntry{
		{UserID: "u-2", Name: "Meena", Mobile: 9876543210, TotalAmountToBePaid: 900, UnpaidChitsCount: 3},
		{UserID: "u-1", Name: "Ravi", Mobile: 9123456780, TotalAmountToBePaid: 200, UnpaidChitsCount: 1},
	}, nil
}

type publisherStub struct {
	routingKeys []string
	err         error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	return p.err
}

func (p *publisherStub) published(key string) bool {
	for _, k := range p.routingKeys {
		if k == key {
			return true
		}
	}
	return false
}

type rateLimiterStub struct {
	count int
	err   error
}

func (r *rateLimiterStub) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return r.count, 42, r.err
}

type cycleLockStub struct {
	acquired bool
	err      error
	released bool
}

func (l *cycleLockStub) Acquire(ctx context.Context) (func(), bool, error) {
	if l.err != nil || !l.acquired {
		return nil, false, l.err
	}
	return func() { l.released = true }, true, nil
}

func newTestService(repo Repository, publisher EventPublisher) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(repo, publisher, logger, Options{PaymentRateLimitPerMinute: 5})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func ptrInt64(v int64) *int64 { return &v }
