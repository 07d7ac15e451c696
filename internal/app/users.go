package app

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

// OnboardRequest is the input of OnboardUser.
type OnboardRequest struct {
	Name       string `json:"name"`
	TotalChits int    `json:"total_chits"`
	Mobile     int64  `json:"mobile"`
}

// OnboardResult holds the created user and chit.
type OnboardResult struct {
	User domain.User `json:"user"`
	Chit domain.Chit `json:"chit"`
}

// UserSearchResult is the outcome of SearchUsers.
type UserSearchResult struct {
	Users        []domain.UserSummary `json:"users"`
	TotalResults int                  `json:"total_results"`
	SearchQuery  string               `json:"search_query"`
}

// UnpaidChitsResult groups outstanding chit balances per user.
type UnpaidChitsResult struct {
	UnpaidChits               []domain.UnpaidChitEntry `json:"unpaid_chits"`
	TotalUsersWithUnpaidChits int                      `json:"total_users_with_unpaid_chits"`
	TotalUnpaidAmount         int64                    `json:"total_unpaid_amount"`
}

// OnboardUser registers a user together with a first active chit.
func (s *Service) OnboardUser(ctx context.Context, req OnboardRequest) (*OnboardResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.TotalChits == 0 || req.Mobile == 0 {
		return nil, newError(ErrValidation, "validate onboarding", "Name, total_chits, and mobile are required")
	}
	if req.TotalChits < 0 {
		return nil, newError(ErrValidation, "validate onboarding", "Total chits must be a positive number")
	}
	if len(strconv.FormatInt(req.Mobile, 10)) != 10 {
		return nil, newError(ErrValidation, "validate onboarding", "Mobile number must be a valid 10-digit number")
	}

	exists, err := s.repo.MobileExists(ctx, req.Mobile)
	if err != nil {
		return nil, persistenceError("check mobile", err)
	}
	if exists {
		return nil, newError(ErrConflict, "check mobile", "A user with this mobile number already exists")
	}

	user, chit, err := s.repo.CreateUserWithChit(ctx,
		domain.User{
			UserID:     uuid.NewString(),
			Name:       req.Name,
			Mobile:     req.Mobile,
			TotalChits: req.TotalChits,
		},
		domain.Chit{
			ChitID:     uuid.NewString(),
			TotalChits: req.TotalChits,
			IsActive:   true,
		},
	)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateMobile) {
			return nil, newError(ErrConflict, "create user", "A user with this mobile number already exists")
		}
		return nil, persistenceError("create user and chit", err)
	}

	result := &OnboardResult{User: *user, Chit: *chit}
	s.publishEvent(ctx, "user.onboarded", result)
	return result, nil
}

// ListUsers returns every user, newest first.
func (s *Service) ListUsers(ctx context.Context) ([]domain.UserSummary, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, persistenceError("fetch users details", err)
	}
	return users, nil
}

// GetUserDetails returns a user with their chit payment and loan histories.
// History timestamps are shifted to UTC+05:30 for display.
func (s *Service) GetUserDetails(ctx context.Context, userID string) (*domain.UserDetails, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, newError(ErrValidation, "validate user details", "User ID is required")
	}

	user, err := s.repo.FindUserByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, newError(ErrNotFound, "load user", "User not found")
		}
		return nil, persistenceError("fetch user details", err)
	}

	payments, err := s.repo.ListChitPaymentsByUser(ctx, userID)
	if err != nil {
		return nil, persistenceError("fetch chit payment history", err)
	}
	loans, err := s.repo.ListLoansByUser(ctx, userID)
	if err != nil {
		return nil, persistenceError("fetch loan details", err)
	}

	for i := range payments {
		payments[i].TransactionHistory = shiftHistoryForDisplay(payments[i].TransactionHistory)
	}
	for i := range loans {
		loans[i].TransactionHistory = shiftHistoryForDisplay(loans[i].TransactionHistory)
	}

	return &domain.UserDetails{
		UserID:             user.UserID,
		Name:               user.Name,
		Mobile:             user.Mobile,
		TotalChits:         user.TotalChits,
		ChitPaymentHistory: payments,
		LoanDetails:        loans,
	}, nil
}

// SearchUsers matches an all-digit query against mobile numbers and anything
// else against names, case-insensitively.
func (s *Service) SearchUsers(ctx context.Context, query string) (*UserSearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, newError(ErrValidation, "validate user search", "Search query is required")
	}

	var (
		users []domain.UserSummary
		err   error
	)
	if isAllDigits(query) {
		mobile, parseErr := strconv.ParseInt(query, 10, 64)
		if parseErr != nil {
			users = []domain.UserSummary{}
		} else {
			users, err = s.repo.SearchUsersByMobile(ctx, mobile)
		}
	} else {
		users, err = s.repo.SearchUsersByName(ctx, query)
	}
	if err != nil {
		return nil, persistenceError("search users", err)
	}

	return &UserSearchResult{Users: users, TotalResults: len(users), SearchQuery: query}, nil
}

// ListUnpaidChits aggregates unpaid chit balances per user, largest first.
func (s *Service) ListUnpaidChits(ctx context.Context) (*UnpaidChitsResult, error) {
	entries, err := s.repo.ListUnpaidChitsByUser(ctx)
	if err != nil {
		return nil, persistenceError("retrieve unpaid chits", err)
	}

	var total int64
	for _, entry := range entries {
		total += entry.TotalAmountToBePaid
	}
	return &UnpaidChitsResult{
		UnpaidChits:               entries,
		TotalUsersWithUnpaidChits: len(entries),
		TotalUnpaidAmount:         total,
	}, nil
}

// GetAnalytics returns the reporting roll-up.
func (s *Service) GetAnalytics(ctx context.Context) (*domain.Analytics, error) {
	analytics, err := s.repo.GetAnalytics(ctx)
	if err != nil {
		return nil, persistenceError("fetch analytics", err)
	}
	return analytics, nil
}

func isAllDigits(v string) bool {
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return v != ""
}
