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

	// JWT configuration (tokens are issued by the auth service)
	JWT JWTConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Payment PaymentConfig

	// Ticket artifact configuration
	Ticket TicketConfig

	// Outbound notification configuration
	Notification NotificationConfig

	// Redis-backed rate limiting configuration
	Redis RedisConfig

	// Background job configuration
	Jobs JobsConfig

	// Security configuration
	Security SecurityConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	Timezone    string // IANA zone used for journey dates and departure times
}

// Location resolves the configured time zone, falling back to UTC
func (s ServerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		log.Printf("Unknown SERVER_TIMEZONE %q, using UTC", s.Timezone)
		return time.UTC
	}
	return loc
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
	AutoMigrate        bool
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	Mode      string // "sandbox" or "razorpay"
	KeyID     string // public key id handed to the checkout client
	KeySecret string // SECRET - signs checkout callbacks, never expose to client
	APIURL    string
	Currency  string
}

// TicketConfig holds ticket artifact configuration
type TicketConfig struct {
	VerifyBaseURL string // e.g. https://api.example.com/api/v1
}

// NotificationConfig holds outbound email configuration
type NotificationConfig struct {
	Mode         string // "log", "smtp" or "kafka"
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromAddress  string
	FromName     string
	KafkaBrokers []string
	KafkaTopic   string
}

// RedisConfig holds rate limiter configuration. An empty URL disables limiting.
type RedisConfig struct {
	URL              string
	HoldRequestLimit int
	HoldWindow       time.Duration
}

// JobsConfig holds cron schedules
type JobsConfig struct {
	AbandonedOrderSchedule string // cron spec with seconds
	AbandonedOrderGrace    time.Duration
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	EnableRequestLog bool
	EnableAuditLog   bool
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
			Timezone:    getEnv("SERVER_TIMEZONE", "Asia/Kolkata"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
			AutoMigrate:        getEnvAsBool("DATABASE_AUTO_MIGRATE", true),
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Payment: PaymentConfig{
			Mode:      getEnv("PAYMENT_MODE", "sandbox"),
			KeyID:     getEnv("RAZORPAY_KEY_ID", ""),
			KeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),
			APIURL:    getEnv("RAZORPAY_API_URL", "https://api.razorpay.com/v1"),
			Currency:  getEnv("PAYMENT_CURRENCY", "INR"),
		},
		Ticket: TicketConfig{
			VerifyBaseURL: getEnv("TICKET_VERIFY_BASE_URL", "http://localhost:8080/api/v1"),
		},
		Notification: NotificationConfig{
			Mode:         getEnv("NOTIFY_MODE", "log"),
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			FromAddress:  getEnv("SMTP_FROM_ADDRESS", "no-reply@travels.local"),
			FromName:     getEnv("SMTP_FROM_NAME", "Travels"),
			KafkaBrokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("KAFKA_NOTIFY_TOPIC", "booking-notifications"),
		},
		Redis: RedisConfig{
			URL:              getEnv("REDIS_URL", ""),
			HoldRequestLimit: getEnvAsInt("HOLD_RATE_LIMIT", 10),
			HoldWindow:       time.Duration(getEnvAsInt("HOLD_RATE_WINDOW_SECONDS", 60)) * time.Second,
		},
		Jobs: JobsConfig{
			AbandonedOrderSchedule: getEnv("ABANDONED_ORDER_SWEEP_SCHEDULE", "0 */5 * * * *"),
			AbandonedOrderGrace:    time.Duration(getEnvAsInt("ABANDONED_ORDER_GRACE_MINUTES", 30)) * time.Minute,
		},
		Security: SecurityConfig{
			EnableRequestLog: getEnvAsBool("ENABLE_REQUEST_LOGGING", true),
			EnableAuditLog:   getEnvAsBool("ENABLE_AUDIT_LOGGING", true),
		},
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

	switch c.Payment.Mode {
	case "sandbox":
	case "razorpay":
		if c.Payment.KeyID == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID is required in razorpay mode")
		}
		if c.Payment.KeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_SECRET is required in razorpay mode")
		}
	default:
		return fmt.Errorf("invalid PAYMENT_MODE: %s (must be 'sandbox' or 'razorpay')", c.Payment.Mode)
	}

	if len(c.Payment.Currency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter ISO code")
	}

	switch c.Notification.Mode {
	case "log":
	case "smtp":
		if c.Notification.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required in smtp notification mode")
		}
	case "kafka":
		if len(c.Notification.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required in kafka notification mode")
		}
	default:
		return fmt.Errorf("invalid NOTIFY_MODE: %s (must be 'log', 'smtp' or 'kafka')", c.Notification.Mode)
	}

	return nil
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
