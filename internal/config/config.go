package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Email       EmailConfig
	Realtime    RealtimeConfig
	RateLimit   RateLimitConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MaxIdle        int
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	JWTSecret    string
	AccessExpiry time.Duration
	RefreshTTL   time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	FromAddress  string
}

type RealtimeConfig struct {
	HeartbeatWindow time.Duration
	Channel         string
	OriginPatterns  []string
}

type RateLimitConfig struct {
	AuthPerMinute int
	APIPerMinute  int
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

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 8080),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 25),
			MaxIdle:        getEnvInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			AccessExpiry: time.Duration(getEnvInt("JWT_EXPIRY_MINUTES", 15)) * time.Minute,
			RefreshTTL:   time.Duration(getEnvInt("REFRESH_TTL_DAYS", 30)) * 24 * time.Hour,
		},
		Email: EmailConfig{
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
			FromAddress:  getEnv("EMAIL_FROM", "Relayworks <noreply@relayworks.dev>"),
		},
		Realtime: RealtimeConfig{
			HeartbeatWindow: time.Duration(getEnvInt("REALTIME_HEARTBEAT_SECONDS", 60)) * time.Second,
			Channel:         getEnv("REALTIME_CHANNEL", "relayworks:realtime"),
			OriginPatterns:  splitEnv("REALTIME_ALLOWED_ORIGINS"),
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: getEnvInt("RATE_LIMIT_AUTH", 20),
			APIPerMinute:  getEnvInt("RATE_LIMIT_API", 300),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnv("TRACING_ENABLED", "") == "true",
			Exporter:     getEnv("TRACING_EXPORTER", "none"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "relayworks-server"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	return cfg, nil
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

func splitEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
