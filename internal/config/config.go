package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port string
	Mode string

	// Database configuration
	DatabaseURL string

	// Redis configuration (optional; replay guard and rate limiting fall back
	// to in-process behaviour when empty)
	RedisURL string

	// Payment gateway configuration
	PaystackSecretKey   string
	PaystackBaseURL     string
	PaystackCallbackURL string

	// Operator authentication
	OperatorJWTSecret string

	// Brevo email configuration
	BrevoAPIKey    string
	BrevoFromEmail string
	BrevoFromName  string

	// Outbound fulfillment webhook
	FulfillmentWebhookURL    string
	FulfillmentWebhookSecret string

	// Confirmation and reconciliation
	ConfirmTimeoutSeconds int
	InitRateLimitSeconds  int
	ReplayTTLHours        int
	SweepIntervalMinutes  int
	SweepConcurrency      int

	ServiceName string
}

var AppConfig *Config

func InitConfig() error {
	// Load .env file; a missing file is fine
	_ = godotenv.Load()

	AppConfig = &Config{
		Port:                     getEnv("PORT", "8080"),
		Mode:                     getEnv("GIN_MODE", "debug"),
		DatabaseURL:              getEnv("DATABASE_URL", ""),
		RedisURL:                 getEnv("REDIS_URL", ""),
		PaystackSecretKey:        getEnv("PAYSTACK_SECRET_KEY", ""),
		PaystackBaseURL:          getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		PaystackCallbackURL:      getEnv("PAYSTACK_CALLBACK_URL", ""),
		OperatorJWTSecret:        getEnv("OPERATOR_JWT_SECRET", ""),
		BrevoAPIKey:              getEnv("BREVO_API_KEY", ""),
		BrevoFromEmail:           getEnv("BREVO_FROM_EMAIL", ""),
		BrevoFromName:            getEnv("BREVO_FROM_NAME", "Campaign Payments"),
		FulfillmentWebhookURL:    getEnv("FULFILLMENT_WEBHOOK_URL", ""),
		FulfillmentWebhookSecret: getEnv("FULFILLMENT_WEBHOOK_SECRET", ""),
		ConfirmTimeoutSeconds:    getEnvInt("CONFIRM_TIMEOUT_SECONDS", 20),
		InitRateLimitSeconds:     getEnvInt("INIT_RATE_LIMIT_SECONDS", 3),
		ReplayTTLHours:           getEnvInt("REPLAY_TTL_HOURS", 24),
		SweepIntervalMinutes:     getEnvInt("SWEEP_INTERVAL_MINUTES", 0),
		SweepConcurrency:         getEnvInt("SWEEP_CONCURRENCY", 4),
		ServiceName:              getEnv("SERVICE_NAME", "Campaign Payments"),
	}

	return AppConfig.Validate()
}

// IsRelease reports whether the server runs in gin release mode.
func (c *Config) IsRelease() bool {
	return c.Mode == "release"
}

// Validate checks required settings. Secrets are only mandatory in release
// mode so local development can run against a stub gateway.
func (c *Config) Validate() error {
	var missing []string

	if c.Port == "" {
		missing = append(missing, "PORT")
	}
	if c.ConfirmTimeoutSeconds <= 0 {
		return errors.New("CONFIRM_TIMEOUT_SECONDS must be positive")
	}
	if c.SweepConcurrency <= 0 {
		return errors.New("SWEEP_CONCURRENCY must be positive")
	}

	if c.IsRelease() {
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
		if c.PaystackSecretKey == "" {
			missing = append(missing, "PAYSTACK_SECRET_KEY")
		}
		if c.OperatorJWTSecret == "" {
			missing = append(missing, "OPERATOR_JWT_SECRET")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
