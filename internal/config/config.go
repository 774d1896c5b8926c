// Package config loads service configuration from the environment.
//
// The Anthropic API key is intentionally not part of Config: the SDK
// reads ANTHROPIC_API_KEY itself and the key is never stored or
// defaulted anywhere in this codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Receipt image uploads
	UploadDir string

	// Model
	Model       string
	MaxTokens   int64
	MaxTurns    int
	CallTimeout time.Duration

	// Single-tenant default account (the app has no authentication)
	DefaultUsername string
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finagent.db"),
		UploadDir:    getEnv("UPLOAD_DIR", "./static/uploads"),

		Model:       getEnv("FIN_MODEL", ""),
		MaxTokens:   int64(getEnvInt("FIN_MAX_TOKENS", 4000)),
		MaxTurns:    getEnvInt("FIN_MAX_TURNS", 8),
		CallTimeout: getEnvDuration("FIN_CALL_TIMEOUT", 60*time.Second),

		DefaultUsername: getEnv("FIN_DEFAULT_USER", "default"),
	}
}

// Validate checks the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("invalid port '%s': must be a number", c.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d: must be between 1 and 65535", port)
	}
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLITE_DB_PATH must not be empty")
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("FIN_MAX_TOKENS must be positive, got %d", c.MaxTokens)
	}
	if c.MaxTurns <= 0 {
		return fmt.Errorf("FIN_MAX_TURNS must be positive, got %d", c.MaxTurns)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("FIN_CALL_TIMEOUT must be positive, got %s", c.CallTimeout)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
