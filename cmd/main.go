/**
 * @description
 * Entry point for the chit-fund and loan ledger service.
 * It wires configuration, the Postgres pool, optional RabbitMQ event
 * publishing and optional Redis rate limiting / cycle locking, then serves
 * the HTTP API until SIGINT or SIGTERM.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 */
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/NirmalNagaraj/chits-backend/internal/api"
	"github.com/NirmalNagaraj/chits-backend/internal/app"
	"github.com/NirmalNagaraj/chits-backend/internal/config"
	"github.com/NirmalNagaraj/chits-backend/internal/store"
	"github.com/NirmalNagaraj/chits-backend/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.InternalAPIKey == "" && cfg.InternalAPIKeyHash == "" {
		log.Println("level=warn component=bootstrap msg=\"internal api key not configured; admin routes are unauthenticated\" env=INTERNAL_API_KEY")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}
	pgConfig.MaxConns = 100
	pgConfig.MinConns = 20
	pgConfig.MaxConnLifetime = 30 * time.Minute
	pgConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	pgConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, pgConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	logger.Info("database connection established")

	repository := store.NewRepository(dbpool)

	if cfg.RunMigrations {
		applied, err := repository.ApplyMigrations(ctx, cfg.MigrationsDir)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"migrations failed\" dir=%s err=%v", cfg.MigrationsDir, err)
		}
		logger.Info("migrations applied", "dir", cfg.MigrationsDir, "count", len(applied), "files", applied)
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{}
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; using fallback publisher\" env=RABBITMQ_URL")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
	} else {
		publisher = producer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}
	defer publisher.Close()

	service := app.NewService(repository, publisher, logger, app.Options{
		Exchange:                  cfg.EventsExchange,
		MaxRetries:                cfg.LedgerMaxRetries,
		DisplayTimezone:           cfg.DisplayTimezone,
		PaymentRateLimitPerMinute: cfg.PaymentRateLimitPerMinute,
	})

	if redisClient := connectRedis(cfg.RedisURL); redisClient != nil {
		defer redisClient.Close()
		service.SetRateLimiter(app.NewRedisRateLimiter(redisClient, cfg.RedisKeyPrefix))
		service.SetCycleLock(app.NewRedisCycleLock(
			redisClient,
			cfg.RedisKeyPrefix,
			time.Duration(cfg.WeeklyCycleLockTTLSeconds)*time.Second,
			logger,
		))
	}

	handler := api.NewHandler(service, cfg.AppEnv, cfg.AppVersion)
	router := api.NewRouter(handler, api.AuthOptions{
		InternalAPIKey:     cfg.InternalAPIKey,
		InternalAPIKeyHash: cfg.InternalAPIKeyHash,
		AdminJWKSURL:       cfg.AdminJWKSURL,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.ServerPort, "environment", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received, gracefully shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}

// connectRedis returns nil when redis is not configured or unreachable; the
// service then runs without rate limiting or the cycle lock.
func connectRedis(redisURL string) *redis.Client {
	if strings.TrimSpace(redisURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; payment rate limiting and weekly cycle lock disabled\" env=REDIS_URL")
		return nil
	}

	redisOptions, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; payment rate limiting and weekly cycle lock disabled\" err=%v", err)
		return nil
	}

	client := redis.NewClient(redisOptions)
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"redis ping failed; payment rate limiting and weekly cycle lock disabled\" err=%v", err)
		client.Close()
		return nil
	}

	log.Println("level=info component=bootstrap msg=\"redis connected\"")
	return client
}
