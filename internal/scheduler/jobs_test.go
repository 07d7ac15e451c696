package scheduler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/NirmalNagaraj/chits-backend/internal/config"
	"github.com/NirmalNagaraj/chits-backend/pkg/ledgerclient"
)

type ledgerClientStub struct {
	calls   int
	summary *ledgerclient.WeeklyCycleSummary
	err     error
}

func (s *ledgerClientStub) RunWeeklyCycle(ctx context.Context) (*ledgerclient.WeeklyCycleSummary, error) {
	s.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("expected a deadline on the job context")
	}
	return s.summary, s.err
}

func TestRunWeeklyCycle_LogsSummary(t *testing.T) {
	var buf bytes.Buffer
	client := &ledgerClientStub{summary: &ledgerclient.WeeklyCycleSummary{CurrentWeek: 4, PaymentsCreated: 12}}
	jobs := NewJobs(client, slog.New(slog.NewTextHandler(&buf, nil)))

	jobs.RunWeeklyCycle()

	if client.calls != 1 {
		t.Fatalf("expected one ledger call, got %d", client.calls)
	}
	if !strings.Contains(buf.String(), "weekly cycle job finished") || !strings.Contains(buf.String(), "payments_created=12") {
		t.Fatalf("expected completion log with counts, got %q", buf.String())
	}
}

func TestRunWeeklyCycle_DoesNotRetryOnFailure(t *testing.T) {
	var buf bytes.Buffer
	client := &ledgerClientStub{err: errors.New("ledger service returned status 500")}
	jobs := NewJobs(client, slog.New(slog.NewTextHandler(&buf, nil)))

	jobs.RunWeeklyCycle()

	if client.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", client.calls)
	}
	if !strings.Contains(buf.String(), "failed to run weekly cycle") {
		t.Fatalf("expected failure to be logged, got %q", buf.String())
	}
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := NewJobs(&ledgerClientStub{}, logger)
	s := NewScheduler(jobs, logger, config.SchedulerConfig{WeeklyCycleSchedule: "not a cron spec"})

	if err := s.Start(); err == nil {
		t.Fatal("expected invalid schedule to be rejected")
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobs := NewJobs(&ledgerClientStub{}, logger)
	s := NewScheduler(jobs, logger, config.SchedulerConfig{WeeklyCycleSchedule: "0 1 * * 1"})

	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	<-s.Stop().Done()
}
