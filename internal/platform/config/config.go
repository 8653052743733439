package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration pulled from the environment.
type Server struct {
	Addr     string
	LogLevel string

	// EncryptionKey is the process-wide passphrase for the field codec.
	// Required: write paths cannot operate without it.
	EncryptionKey string

	// DatabaseURL selects the postgres stores when set; empty runs on the
	// in-memory stores (dev and tests).
	DatabaseURL string

	// RedisURL enables the cross-instance archival run lease when set.
	RedisURL string

	ArchivalInterval time.Duration
	HealthInterval   time.Duration
	LeaseTTL         time.Duration

	// NotifySendDelay is the fixed pause between per-record notification
	// sends so the sweep does not overwhelm the transport.
	NotifySendDelay time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A missing encryption key is a fatal configuration error, not a default.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:             envOr("VERIKEEP_ADDR", ":8080"),
		LogLevel:         envOr("VERIKEEP_LOG_LEVEL", "info"),
		EncryptionKey:    os.Getenv("VERIKEEP_ENCRYPTION_KEY"),
		DatabaseURL:      os.Getenv("VERIKEEP_DATABASE_URL"),
		RedisURL:         os.Getenv("VERIKEEP_REDIS_URL"),
		ArchivalInterval: envDuration("VERIKEEP_ARCHIVAL_INTERVAL", 24*time.Hour),
		HealthInterval:   envDuration("VERIKEEP_HEALTH_INTERVAL", time.Hour),
		LeaseTTL:         envDuration("VERIKEEP_LEASE_TTL", 30*time.Minute),
		NotifySendDelay:  envDuration("VERIKEEP_NOTIFY_SEND_DELAY", 200*time.Millisecond),
	}

	if cfg.EncryptionKey == "" {
		return Server{}, fmt.Errorf("VERIKEEP_ENCRYPTION_KEY is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// Bare integers are read as seconds for deploy-manifest convenience.
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
