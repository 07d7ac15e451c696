/**
 * @description
 * Scheduled job implementations for the weekly-cycle scheduler.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/NirmalNagaraj/chits-backend/pkg/ledgerclient"
)

// LedgerClient defines the interface for communicating with the ledger service.
type LedgerClient interface {
	RunWeeklyCycle(ctx context.Context) (*ledgerclient.WeeklyCycleSummary, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	ledger  LedgerClient
	logger  *slog.Logger
	timeout time.Duration
}

// NewJobs creates a new Jobs runner.
func NewJobs(ledger LedgerClient, logger *slog.Logger) *Jobs {
	return &Jobs{
		ledger:  ledger,
		logger:  logger,
		timeout: 2 * time.Minute,
	}
}

// RunWeeklyCycle asks the ledger service to create this week's installments.
// A failed run is logged and not retried; the next run happens on schedule.
func (j *Jobs) RunWeeklyCycle() {
	j.logger.Info("starting weekly cycle job")
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	summary, err := j.ledger.RunWeeklyCycle(ctx)
	if err != nil {
		j.logger.Error("failed to run weekly cycle", "error", err)
		return
	}

	j.logger.Info("weekly cycle job finished",
		"week", summary.CurrentWeek,
		"payments_created", summary.PaymentsCreated,
		"message", summary.Message,
	)
}
