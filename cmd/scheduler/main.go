/**
 * @description
 * Entry point for the weekly-cycle scheduler.
 * This is a non-HTTP, long-running process that triggers the ledger service's
 * weekly installment cycle on a cron schedule.
 */
package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/NirmalNagaraj/chits-backend/internal/config"
	"github.com/NirmalNagaraj/chits-backend/internal/scheduler"
	"github.com/NirmalNagaraj/chits-backend/pkg/ledgerclient"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadSchedulerConfig()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	client := ledgerclient.NewClient(cfg.LedgerServiceURL, cfg.InternalAPIKey)
	jobs := scheduler.NewJobs(client, logger)
	cronScheduler := scheduler.NewScheduler(jobs, logger, *cfg)

	if err := cronScheduler.Start(); err != nil {
		os.Exit(1)
	}
	logger.Info("scheduler started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping scheduler")
	stopCtx := cronScheduler.Stop()
	<-stopCtx.Done()
	logger.Info("scheduler stopped gracefully")
}
