package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort  string
	GinMode     string
	LogLevel    string
	LogFormat   string
	DatabaseURL string
	MaxDBConns  int32
	RedisURL    string
	// RedisPoolSize of 0 keeps the go-redis default.
	RedisPoolSize int
	JWTSecret     string
	JWTExpiry     time.Duration
	BcryptCost    int
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	// Proctoring
	NotificationTTL      time.Duration
	FlushTimeout         time.Duration
	IngestRatePerMinute  int
	FrameQueueSize       int
	MaxActivityLogsBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
// DATABASE_URL has no default; callers treat an empty value as fatal.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "pretty"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MaxDBConns:     int32(getEnvInt("MAX_DB_CONNS", 16)),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RedisPoolSize:  getEnvInt("REDIS_POOL_SIZE", 0),
		JWTSecret:      getEnv("JWT_SECRET", "change-this-to-a-secure-random-string"),
		JWTExpiry:      time.Duration(getEnvInt("JWT_EXPIRY_HOURS", 24)) * time.Hour,
		BcryptCost:     getEnvInt("BCRYPT_COST", 10),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "")),

		NotificationTTL:      time.Duration(getEnvInt("NOTIFICATION_TTL_MS", 3000)) * time.Millisecond,
		FlushTimeout:         time.Duration(getEnvInt("FLUSH_TIMEOUT_SECONDS", 10)) * time.Second,
		IngestRatePerMinute:  getEnvInt("INGEST_RATE_PER_MINUTE", 60),
		FrameQueueSize:       getEnvInt("FRAME_QUEUE_SIZE", 8),
		MaxActivityLogsBytes: int64(getEnvInt("MAX_ACTIVITY_LOGS_MB", 5)) * 1024 * 1024,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
