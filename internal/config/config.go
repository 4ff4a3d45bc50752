package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	AdminBootstrap AdminBootstrapConfig
	Logging        LoggingConfig
	Tracing        TracingConfig
	Email          EmailConfig
	Jobs           JobsConfig
	Environment    string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	Driver         string
	URL            string
	SQLitePath     string
	MaxConnections int
	AutoMigrate    bool
}

type AuthConfig struct {
	JWTSecret     string
	JWTIssuer     string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
}

type RateLimitConfig struct {
	PublicPerMinute        int
	AuthenticatedPerMinute int
	AdminPerMinute         int
	LoginPer15Minutes      int
	TrustedProxyCIDRs      []string
}

type CORSConfig struct {
	AllowAllOrigins bool
	AllowedOrigins  []string
}

type AdminBootstrapConfig struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type LoggingConfig struct {
	Level  string
	Format string
}

type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

type EmailConfig struct {
	Enabled      bool
	From         string
	ResendAPIKey string
}

type JobsConfig struct {
	Enabled              bool
	SyncInterval         time.Duration
	TokenCleanupInterval time.Duration
}

func Load() (Config, error) {
	env := getEnv("ENVIRONMENT", "development")

	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			Driver:         strings.ToLower(getEnv("STORAGE_DRIVER", DriverPostgres)),
			URL:            getEnv("DATABASE_URL", ""),
			SQLitePath:     getEnv("SQLITE_PATH", "unisphere.db"),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			AutoMigrate:    getEnvBool("DATABASE_AUTO_MIGRATE", true),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET_KEY", getEnv("JWT_SECRET", "")),
			JWTIssuer:     getEnv("JWT_ISSUER", "unisphere"),
			AccessExpiry:  time.Duration(getEnvInt("ACCESS_TOKEN_EXPIRE_MINUTES", 300)) * time.Minute,
			RefreshExpiry: time.Duration(getEnvInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			PublicPerMinute:        getEnvInt("RATE_LIMIT_PUBLIC", 60),
			AuthenticatedPerMinute: getEnvInt("RATE_LIMIT_AUTHENTICATED", 300),
			AdminPerMinute:         getEnvInt("RATE_LIMIT_ADMIN", 0),
			LoginPer15Minutes:      getEnvInt("RATE_LIMIT_LOGIN_PER_15_MINUTES", 5),
			TrustedProxyCIDRs:      splitList(getEnv("TRUSTED_PROXY_CIDRS", "")),
		},
		CORS: CORSConfig{
			AllowAllOrigins: env == "development" || env == "test",
			AllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),
		},
		AdminBootstrap: AdminBootstrapConfig{
			Email:     getEnv("ADMIN_EMAIL", ""),
			Password:  getEnv("ADMIN_PASSWORD", ""),
			FirstName: getEnv("ADMIN_FIRST_NAME", "Campus"),
			LastName:  getEnv("ADMIN_LAST_NAME", "Admin"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "unisphere-server"),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			From:         getEnv("EMAIL_FROM", "UniSphere <noreply@unisphere.local>"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Jobs: JobsConfig{
			Enabled:              getEnvBool("JOBS_ENABLED", true),
			SyncInterval:         time.Duration(getEnvInt("JOBS_SYNC_INTERVAL_MINUTES", 60)) * time.Minute,
			TokenCleanupInterval: time.Duration(getEnvInt("JOBS_TOKEN_CLEANUP_INTERVAL_MINUTES", 360)) * time.Minute,
		},
		Environment: env,
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (must be postgres or sqlite)", c.Database.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.Environment == "production" {
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes in production")
		}
		if len(c.CORS.AllowedOrigins) == 0 {
			return fmt.Errorf("CORS_ALLOWED_ORIGINS is required in production")
		}
	}
	if c.Email.Enabled && c.Email.ResendAPIKey == "" {
		return fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED=true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
