package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Email     EmailConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
	Webinar   WebinarConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/webinar?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds signing settings for the admin API token.
type JWTConfig struct {
	Secret      string
	ExpireHours int
	AdminAPIKey string // presented to POST /auth/token in exchange for a JWT
}

// EmailConfig holds delivery provider settings. Provider "ses" uses AWS SES;
// anything else falls back to a no-op sender that only logs.
type EmailConfig struct {
	Provider        string
	FromAddress     string
	FromName        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// RateLimitConfig holds fixed-window throttle settings per action.
type RateLimitConfig struct {
	Window      time.Duration // window size shared by all actions
	RegisterMax int           // max registration requests per window per client
	ReadMax     int           // max read requests per window per client
}

// MetricsConfig holds the external registration-count source settings.
type MetricsConfig struct {
	BaseURL string // empty disables the backend source; reads always serve the fallback
	Timeout time.Duration
}

// WebinarConfig holds defaults applied when a webinar is first referenced.
type WebinarConfig struct {
	DefaultTopic    string
	DefaultCapacity int // 0 = unlimited
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/webinar?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "webinar"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
			AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
		},
		Email: EmailConfig{
			Provider:        getEnv("EMAIL_PROVIDER", "noop"),
			FromAddress:     getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:        getEnv("EMAIL_FROM_NAME", "Aura Webinar"),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			Window:      time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SEC", 60)) * time.Second,
			RegisterMax: getEnvInt("RATE_LIMIT_REGISTER_MAX", 10),
			ReadMax:     getEnvInt("RATE_LIMIT_READ_MAX", 100),
		},
		Metrics: MetricsConfig{
			BaseURL: getEnv("METRICS_BASE_URL", ""),
			Timeout: time.Duration(getEnvInt("METRICS_TIMEOUT_SEC", 5)) * time.Second,
		},
		Webinar: WebinarConfig{
			DefaultTopic:    getEnv("WEBINAR_DEFAULT_TOPIC", "Webinar"),
			DefaultCapacity: getEnvInt("WEBINAR_DEFAULT_CAPACITY", 0),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
