package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/NirmalNagaraj/chits-backend/internal/domain"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
)

// WeeklyCycleResult summarises one weekly installment run.
type WeeklyCycleResult struct {
	Message         string               `json:"message"`
	CurrentWeek     int                  `json:"current_week"`
	PaymentsCreated int                  `json:"payments_created"`
	Records         []domain.ChitPayment `json:"records"`
}

// RunWeeklyCycle creates one payment-due row per active chit for the current
// week and then advances the week counter. Rows and counter commit together.
// With no active chits nothing is written and the counter stays put.
func (s *Service) RunWeeklyCycle(ctx context.Context) (*WeeklyCycleResult, error) {
	if s.cycleLock != nil {
		release, acquired, err := s.cycleLock.Acquire(ctx)
		if err != nil {
			s.logger.Warn("weekly cycle lock unavailable, continuing without it", "error", err)
		} else if !acquired {
			return nil, newError(ErrCycleInProgress, "acquire weekly cycle lock", "A weekly cycle run is already in progress")
		} else {
			defer release()
		}
	}

	raw, err := s.repo.GetConfigValue(ctx, domain.WeekCounterAttribute)
	if err != nil {
		if errors.Is(err, store.ErrConfigNotFound) {
			return nil, newError(ErrConfig, "read week counter", "Chits installment configuration not found")
		}
		return nil, persistenceError("fetch current week", err)
	}
	week, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return nil, &LedgerError{
			Kind:    ErrConfig,
			Op:      "parse week counter",
			Message: fmt.Sprintf("Invalid chits installment value %q", raw),
			Err:     err,
		}
	}

	chits, err := s.repo.ListActiveChits(ctx)
	if err != nil {
		return nil, persistenceError("fetch active chits", err)
	}
	if len(chits) == 0 {
		s.logger.Info("weekly cycle skipped, no active chits", "week", week)
		return &WeeklyCycleResult{
			Message:         "No active chits found",
			CurrentWeek:     week,
			PaymentsCreated: 0,
			Records:         []domain.ChitPayment{},
		}, nil
	}

	payments := buildWeeklyInstallments(chits, week)
	inserted, err := s.repo.InsertInstallmentsAndAdvanceWeek(ctx, payments, raw, strconv.Itoa(week+1))
	if err != nil {
		if errors.Is(err, store.ErrWeekCounterConflict) {
			return nil, newError(ErrConflict, "advance week counter",
				"Week counter changed during the weekly cycle; no payment records were created")
		}
		return nil, persistenceError("create payment records", err)
	}

	result := &WeeklyCycleResult{
		Message:         fmt.Sprintf("Successfully created %d payment records for week %d", len(inserted), week),
		CurrentWeek:     week,
		PaymentsCreated: len(inserted),
		Records:         inserted,
	}
	s.logger.Info("weekly cycle completed", "week", week, "payments_created", len(inserted))
	s.publishEvent(ctx, "weekly_cycle.completed", map[string]interface{}{
		"week":             week,
		"next_week":        week + 1,
		"payments_created": len(inserted),
	})
	return result, nil
}
