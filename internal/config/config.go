/**
 * @description
 * Configuration management for the ledger service and the weekly-cycle
 * scheduler. Values come from environment variables, optionally seeded from a
 * .env file, through Viper.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */
package config

import (
	"errors"
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger service.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	DatabaseURL               string `mapstructure:"DATABASE_URL"`
	AppEnv                    string `mapstructure:"APP_ENV"`
	AppVersion                string `mapstructure:"APP_VERSION"`
	InternalAPIKey            string `mapstructure:"INTERNAL_API_KEY"`
	InternalAPIKeyHash        string `mapstructure:"INTERNAL_API_KEY_HASH"`
	AdminJWKSURL              string `mapstructure:"ADMIN_JWKS_URL"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	EventsExchange            string `mapstructure:"EVENTS_EXCHANGE"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisKeyPrefix            string `mapstructure:"REDIS_KEY_PREFIX"`
	PaymentRateLimitPerMinute int    `mapstructure:"PAYMENT_RATE_LIMIT_PER_MINUTE"`
	WeeklyCycleLockTTLSeconds int    `mapstructure:"WEEKLY_CYCLE_LOCK_TTL_SECONDS"`
	LedgerMaxRetries          int    `mapstructure:"LEDGER_MAX_RETRIES"`
	DisplayTimezone           string `mapstructure:"DISPLAY_TIMEZONE"`
	RunMigrations             bool   `mapstructure:"RUN_MIGRATIONS"`
	MigrationsDir             string `mapstructure:"MIGRATIONS_DIR"`
}

// SchedulerConfig holds configuration for the weekly-cycle scheduler process.
type SchedulerConfig struct {
	LedgerServiceURL    string `mapstructure:"LEDGER_SERVICE_URL"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`
	WeeklyCycleSchedule string `mapstructure:"WEEKLY_CYCLE_SCHEDULE"`
}

// LoadConfig reads the service configuration from the environment and an
// optional .env file under path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_VERSION", "1.0.0")
	viper.SetDefault("EVENTS_EXCHANGE", "chitfund.events")
	viper.SetDefault("REDIS_KEY_PREFIX", "chitfund")
	viper.SetDefault("PAYMENT_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("WEEKLY_CYCLE_LOCK_TTL_SECONDS", 300)
	viper.SetDefault("LEDGER_MAX_RETRIES", 3)
	viper.SetDefault("DISPLAY_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("RUN_MIGRATIONS", false)
	viper.SetDefault("MIGRATIONS_DIR", "db/migrations")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("APP_ENV")
	_ = viper.BindEnv("APP_VERSION")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("INTERNAL_API_KEY_HASH")
	_ = viper.BindEnv("ADMIN_JWKS_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("EVENTS_EXCHANGE")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_KEY_PREFIX")
	_ = viper.BindEnv("PAYMENT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("WEEKLY_CYCLE_LOCK_TTL_SECONDS")
	_ = viper.BindEnv("LEDGER_MAX_RETRIES")
	_ = viper.BindEnv("DISPLAY_TIMEZONE")
	_ = viper.BindEnv("RUN_MIGRATIONS")
	_ = viper.BindEnv("MIGRATIONS_DIR")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	if config.DatabaseURL == "" {
		err = errors.New("DATABASE_URL is required")
		return
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.InternalAPIKeyHash = strings.TrimSpace(config.InternalAPIKeyHash)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisKeyPrefix = strings.TrimSpace(config.RedisKeyPrefix)
	if config.RedisKeyPrefix == "" {
		config.RedisKeyPrefix = "chitfund"
	}

	if config.PaymentRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative payment rate limit configured; disabling\" value=%d", config.PaymentRateLimitPerMinute)
		config.PaymentRateLimitPerMinute = 0
	}
	if config.WeeklyCycleLockTTLSeconds <= 0 {
		config.WeeklyCycleLockTTLSeconds = 300
	}
	if config.LedgerMaxRetries <= 0 {
		config.LedgerMaxRetries = 3
	}

	return
}

// LoadSchedulerConfig reads the scheduler configuration from the environment.
func LoadSchedulerConfig() (*SchedulerConfig, error) {
	viper.SetDefault("WEEKLY_CYCLE_SCHEDULE", "0 1 * * 1") // At 01:00 every Monday.
	viper.AutomaticEnv()

	_ = viper.BindEnv("LEDGER_SERVICE_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("WEEKLY_CYCLE_SCHEDULE")

	var config SchedulerConfig
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.LedgerServiceURL = strings.TrimRight(strings.TrimSpace(config.LedgerServiceURL), "/")
	if config.LedgerServiceURL == "" {
		return nil, errors.New("LEDGER_SERVICE_URL is required")
	}
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	if config.InternalAPIKey == "" {
		log.Printf("level=warn component=config msg=\"INTERNAL_API_KEY not set; weekly cycle calls will be unauthenticated\"")
	}

	return &config, nil
}
