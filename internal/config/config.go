// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the storefront gateway
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Security SecurityConfig
	Commerce CommerceConfig
	Payment  PaymentConfig
	Checkout CheckoutConfig
	Catalog  CatalogConfig
	Alert    AlertConfig
	Logging  LoggingConfig
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

// RedisConfig contains Redis configuration
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// SessionConfig controls the signed session cookie and the per-session store
type SessionConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Secure     bool
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	MaxRequestBytes    int64
}

// CommerceConfig describes the remote commerce API (products, orders, payments, auth)
type CommerceConfig struct {
	BaseURL      string
	Timeout      time.Duration
	ServiceToken string
	Breaker      BreakerConfig
}

// BreakerConfig tunes the circuit breaker in front of the commerce API
type BreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	OpenTimeout         time.Duration
	ConsecutiveFailures uint32
}

// PaymentConfig contains payment processor configuration
type PaymentConfig struct {
	BaseURL        string
	PublishableKey string
	Currency       string
	Timeout        time.Duration
}

// CheckoutConfig contains checkout orchestration policy
type CheckoutConfig struct {
	LockTTL              time.Duration
	FinalizeAttempts     int
	FinalizeBackoff      time.Duration
	FinalizeTimeout      time.Duration
	RetryInterval        time.Duration
	RetryBatchSize       int
	RetryMaxAttempts     int
	RetryBackoff         time.Duration
	ReturnPath           string
	LoginPath            string
	ShippingAddressCache bool
}

// CatalogConfig controls display-time product enrichment
type CatalogConfig struct {
	CacheTTL time.Duration
}

// AlertConfig contains ops alert delivery configuration
type AlertConfig struct {
	Provider  string
	To        []string
	FromEmail string
	FromName  string
	APIKey    string
	APIURL    string
	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	config := &Config{
		App: AppConfig{
			Name:        getEnv("APP_NAME", "Storefront Gateway"),
			Version:     getEnv("APP_VERSION", "1.0.0"),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvAsBool("APP_DEBUG", true),
		},
		Server: ServerConfig{
			Port:           getEnv("APP_PORT", "8081"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			RequestTimeout: getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Name:         getEnv("DB_NAME", "storefront_db"),
			User:         getEnv("DB_USER", "storefront_user"),
			Password:     getEnv("DB_PASSWORD", "storefront_password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 300*time.Second),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Session: SessionConfig{
			Secret:     getEnv("SESSION_SECRET", "change-this-session-secret-in-production!"),
			CookieName: getEnv("SESSION_COOKIE_NAME", "storefront_session"),
			TTL:        getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
			Secure:     getEnvAsBool("SESSION_COOKIE_SECURE", false),
		},
		Security: SecurityConfig{
			RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
			CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			CORSAllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			CORSAllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
			MaxRequestBytes:    getEnvAsInt64("MAX_REQUEST_BYTES", 1<<20),
		},
		Commerce: CommerceConfig{
			BaseURL:      getEnv("COMMERCE_API_URL", "http://localhost:8080/api"),
			Timeout:      getEnvAsDuration("COMMERCE_API_TIMEOUT", 15*time.Second),
			ServiceToken: getEnv("COMMERCE_SERVICE_TOKEN", ""),
			Breaker: BreakerConfig{
				MaxRequests:         uint32(getEnvAsInt("COMMERCE_BREAKER_MAX_REQUESTS", 3)),
				Interval:            getEnvAsDuration("COMMERCE_BREAKER_INTERVAL", time.Minute),
				OpenTimeout:         getEnvAsDuration("COMMERCE_BREAKER_OPEN_TIMEOUT", 30*time.Second),
				ConsecutiveFailures: uint32(getEnvAsInt("COMMERCE_BREAKER_FAILURES", 5)),
			},
		},
		Payment: PaymentConfig{
			BaseURL:        getEnv("PAYMENT_API_URL", "https://api.stripe.com"),
			PublishableKey: getEnv("STRIPE_PUBLISHABLE_KEY", ""),
			Currency:       strings.ToLower(getEnv("PAYMENT_CURRENCY", "usd")),
			Timeout:        getEnvAsDuration("PAYMENT_API_TIMEOUT", 30*time.Second),
		},
		Checkout: CheckoutConfig{
			LockTTL:              getEnvAsDuration("CHECKOUT_LOCK_TTL", 2*time.Minute),
			FinalizeAttempts:     getEnvAsInt("CHECKOUT_FINALIZE_ATTEMPTS", 3),
			FinalizeBackoff:      getEnvAsDuration("CHECKOUT_FINALIZE_BACKOFF", 250*time.Millisecond),
			FinalizeTimeout:      getEnvAsDuration("CHECKOUT_FINALIZE_TIMEOUT", 30*time.Second),
			RetryInterval:        getEnvAsDuration("CHECKOUT_RETRY_INTERVAL", 15*time.Second),
			RetryBatchSize:       getEnvAsInt("CHECKOUT_RETRY_BATCH", 50),
			RetryMaxAttempts:     getEnvAsInt("CHECKOUT_RETRY_MAX_ATTEMPTS", 20),
			RetryBackoff:         getEnvAsDuration("CHECKOUT_RETRY_BACKOFF", 30*time.Second),
			ReturnPath:           getEnv("CHECKOUT_RETURN_PATH", "/checkout"),
			LoginPath:            getEnv("LOGIN_PATH", "/login"),
			ShippingAddressCache: getEnvAsBool("CHECKOUT_CACHE_SHIPPING_ADDRESS", true),
		},
		Catalog: CatalogConfig{
			CacheTTL: getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		},
		Alert: AlertConfig{
			Provider:  getEnv("ALERT_PROVIDER", "none"),
			To:        getEnvAsSlice("ALERT_TO", []string{}),
			FromEmail: getEnv("ALERT_FROM_EMAIL", "alerts@example.com"),
			FromName:  getEnv("ALERT_FROM_NAME", "Storefront Gateway"),
			APIKey:    getEnv("RESEND_API_KEY", ""),
			APIURL:    getEnv("RESEND_API_URL", "https://api.resend.com/emails"),
			SMTPHost:  getEnv("SMTP_HOST", ""),
			SMTPPort:  getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:  getEnv("SMTP_USER", ""),
			SMTPPass:  getEnv("SMTP_PASS", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Session.Secret) < 32 {
		return fmt.Errorf("SESSION_SECRET must be at least 32 characters long")
	}

	if c.Commerce.BaseURL == "" {
		return fmt.Errorf("COMMERCE_API_URL is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}

	if c.Server.Port == "" {
		return fmt.Errorf("APP_PORT is required")
	}

	if len(c.Payment.Currency) != 3 {
		return fmt.Errorf("PAYMENT_CURRENCY must be a 3-letter ISO code, got %q", c.Payment.Currency)
	}

	if c.Checkout.FinalizeAttempts < 1 {
		return fmt.Errorf("CHECKOUT_FINALIZE_ATTEMPTS must be at least 1")
	}

	// a submission holds the lock for the request and then the detached finalization
	if held := c.Server.RequestTimeout + c.Checkout.FinalizeTimeout; c.Checkout.LockTTL <= held {
		return fmt.Errorf("CHECKOUT_LOCK_TTL (%s) must exceed SERVER_REQUEST_TIMEOUT + CHECKOUT_FINALIZE_TIMEOUT (%s)", c.Checkout.LockTTL, held)
	}

	switch c.Alert.Provider {
	case "none", "smtp", "resend":
	default:
		return fmt.Errorf("unsupported ALERT_PROVIDER: %s", c.Alert.Provider)
	}

	return nil
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
