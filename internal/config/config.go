package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// JWT configuration
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Redis configuration (notification + payment queues, offer registry)
	Redis RedisConfig

	// Push gateway configuration
	Push PushConfig

	// Payment collaborator configuration
	Payment PaymentConfig

	// Dispatch engine policy
	Dispatch DispatchConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	Timezone    string // IANA zone used to resolve shift dates against availability
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	RunMigrations      bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret      string
	TokenExpiry time.Duration // lifetime of tokens minted by dispatchctl
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	OfferTTL time.Duration // how long an urgent offer stays claimable
}

// PushConfig holds push gateway configuration
type PushConfig struct {
	Mode       string // "dev" logs pushes, "production" calls the gateway
	GatewayURL string
	APIKey     string
	MaxRetries int
}

// PaymentConfig holds the payment collaborator webhook configuration
type PaymentConfig struct {
	WebhookURL string // receives shift-completed events
	MaxRetries int
}

// DispatchConfig holds the engine's tunables
type DispatchConfig struct {
	PolicyFile         string        // optional YAML overriding Policy defaults
	SweepSchedule      string        // cron spec (with seconds) for the at-risk sweep
	WelfareCheckTTL    time.Duration // how long a sent welfare check is remembered
	SweepBatchSize     int
	ReplacementTimeout time.Duration // budget for the async replacement search
	Policy             Policy
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			Timezone:    getEnv("TIMEZONE", "UTC"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			RunMigrations:      getEnvAsBool("DATABASE_RUN_MIGRATIONS", true),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", ""),
			TokenExpiry: time.Duration(getEnvAsInt("JWT_TOKEN_EXPIRY_MINUTES", 60)) * time.Minute,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			OfferTTL: time.Duration(getEnvAsInt("URGENT_OFFER_TTL_MINUTES", 60)) * time.Minute,
		},
		Push: PushConfig{
			Mode:       getEnv("PUSH_MODE", "dev"),
			GatewayURL: getEnv("PUSH_GATEWAY_URL", ""),
			APIKey:     getEnv("PUSH_GATEWAY_API_KEY", ""),
			MaxRetries: getEnvAsInt("PUSH_MAX_RETRIES", 3),
		},
		Payment: PaymentConfig{
			WebhookURL: getEnv("PAYMENT_WEBHOOK_URL", ""),
			MaxRetries: getEnvAsInt("PAYMENT_MAX_RETRIES", 5),
		},
		Dispatch: DispatchConfig{
			PolicyFile:         getEnv("DISPATCH_POLICY_FILE", ""),
			SweepSchedule:      getEnv("DISPATCH_SWEEP_SCHEDULE", "0 * * * * *"),
			WelfareCheckTTL:    time.Duration(getEnvAsInt("DISPATCH_WELFARE_TTL_MINUTES", 120)) * time.Minute,
			SweepBatchSize:     getEnvAsInt("DISPATCH_SWEEP_BATCH_SIZE", 200),
			ReplacementTimeout: time.Duration(getEnvAsInt("DISPATCH_REPLACEMENT_TIMEOUT_SECONDS", 30)) * time.Second,
			Policy:             DefaultPolicy(),
		},
	}

	if config.Dispatch.PolicyFile != "" {
		policy, err := LoadPolicy(config.Dispatch.PolicyFile)
		if err != nil {
			return nil, err
		}
		config.Dispatch.Policy = policy
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if _, err := time.LoadLocation(c.Server.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Server.Timezone, err)
	}

	if c.Push.Mode == "production" && c.Push.GatewayURL == "" {
		return fmt.Errorf("PUSH_GATEWAY_URL is required when PUSH_MODE=production")
	}

	if c.Push.Mode != "dev" && c.Push.Mode != "production" {
		return fmt.Errorf("invalid PUSH_MODE: %s (must be 'dev' or 'production')", c.Push.Mode)
	}

	return c.Dispatch.Policy.Validate()
}

// Location returns the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
