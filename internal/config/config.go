// Package config loads gateway configuration from the environment: its
// env contract (DATABASE_URL, SESSION_STORAGE_PATH, FRONTEND_URL,
// LOG_LEVEL, PORT, WEBHOOK_SECRET).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Fleet     FleetConfig
	Reconnect ReconnectConfig
	Queue     QueueConfig
	Webhook   WebhookConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port               string
	Env                string
	Debug              bool
	SessionStoragePath string
}

type DatabaseConfig struct {
	URL             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// FleetConfig governs the Session Supervisor / Session Fleet Manager.
type FleetConfig struct {
	QRTimeout time.Duration
}

// ReconnectConfig governs the Reconnection Controller (§4.D).
type ReconnectConfig struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	RateLimitDelay  time.Duration
}

// QueueConfig governs the Outbound Queue (§4.E).
type QueueConfig struct {
	MessagesPerMinute   int
	DelayBetweenSends   time.Duration
	MaxAttempts         int
	RetryDelay          time.Duration
	BucketExhaustedWait time.Duration
}

// WebhookConfig governs the Webhook Dispatcher (§4.F).
type WebhookConfig struct {
	Secret            string
	Timeout           time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	ResyncInterval    time.Duration
	ResyncBatchSize   int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables, falling back to a
// .env file when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			Env:                getEnv("APP_ENV", "development"),
			Debug:              getEnvBool("APP_DEBUG", false),
			SessionStoragePath: getEnv("SESSION_STORAGE_PATH", "./data/sessions"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvDurationSeconds("DB_CONN_MAX_LIFETIME", 3600),
			ConnMaxIdleTime: getEnvDurationSeconds("DB_CONN_MAX_IDLE_TIME", 300),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			Issuer:   getEnv("JWT_ISSUER", "wa-gateway"),
			Audience: getEnv("JWT_AUDIENCE", "wa-gateway-clients"),
		},
		Fleet: FleetConfig{
			QRTimeout: getEnvDurationSeconds("WA_QR_TIMEOUT", 30),
		},
		Reconnect: ReconnectConfig{
			MaxAttempts:    getEnvInt("RECONNECT_MAX_ATTEMPTS", 5),
			BaseDelay:      getEnvDurationSeconds("RECONNECT_BASE_DELAY", 5),
			MaxDelay:       getEnvDurationSeconds("RECONNECT_MAX_DELAY", 300),
			RateLimitDelay: getEnvDurationSeconds("RECONNECT_RATE_LIMIT_DELAY", 900),
		},
		Queue: QueueConfig{
			MessagesPerMinute:   getEnvInt("QUEUE_MESSAGES_PER_MINUTE", 20),
			DelayBetweenSends:   getEnvDurationSeconds("QUEUE_DELAY_BETWEEN_MESSAGES", 3),
			MaxAttempts:         getEnvInt("QUEUE_MAX_ATTEMPTS", 3),
			RetryDelay:          getEnvDurationSeconds("QUEUE_RETRY_DELAY", 5),
			BucketExhaustedWait: getEnvDurationSeconds("QUEUE_BUCKET_EXHAUSTED_WAIT", 60),
		},
		Webhook: WebhookConfig{
			Secret:          getEnv("WEBHOOK_SECRET", ""),
			Timeout:         getEnvDurationSeconds("WEBHOOK_TIMEOUT", 10),
			MaxRetries:      getEnvInt("WEBHOOK_MAX_RETRIES", 3),
			RetryBaseDelay:  getEnvDurationSeconds("WEBHOOK_RETRY_BASE_DELAY", 2),
			ResyncInterval:  getEnvDurationSeconds("WEBHOOK_RESYNC_INTERVAL", 300),
			ResyncBatchSize: getEnvInt("WEBHOOK_RESYNC_BATCH_SIZE", 100),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("FRONTEND_URL", []string{"*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the fields the gateway cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("RECONNECT_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

func (c *Config) ServerAddress() string {
	return ":" + c.Server.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDurationSeconds(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
