package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendPebble   = "pebble"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	NodeEnv  string
	Port     string
	LogLevel string
	Feed     FeedConfig
	Store    StoreConfig
	Database DatabaseConfig
	Journal  JournalConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// StoreConfig selects the persistent cache backend.
type StoreConfig struct {
	Backend string
	Dir     string
}

// JournalConfig holds the edit journal sinks. Both are optional.
type JournalConfig struct {
	File         string
	KafkaBrokers []string
	KafkaTopic   string
}

// IsDevelopment reports whether NODE_ENV selects development mode.
func (c *Config) IsDevelopment() bool {
	return c.NodeEnv == "development"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	feed, err := loadFeedConfig()
	if err != nil {
		return nil, err
	}

	backend := strings.ToLower(getEnv("STORE_BACKEND", BackendPebble))
	switch backend {
	case BackendPebble, BackendPostgres, BackendMemory:
	default:
		return nil, fmt.Errorf("STORE_BACKEND: unknown backend %q", backend)
	}

	return &Config{
		NodeEnv:  getEnv("NODE_ENV", "production"),
		Port:     getEnv("PORT", "3210"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Feed:     feed,
		Store: StoreConfig{
			Backend: backend,
			Dir:     getEnv("STORE_DIR", "./f8_data"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "f8tracker"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Journal: JournalConfig{
			File:         os.Getenv("JOURNAL_FILE"),
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getEnv("KAFKA_EDIT_TOPIC", "f8.order-edits"),
		},
	}, nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv parses a positive integer, falling back to defaultValue when unset.
func getIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive integer, got %q", key, value)
	}
	return n, nil
}

func getDurationEnv(key string, defaultValue int, unit time.Duration) (time.Duration, error) {
	n, err := getIntEnv(key, defaultValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * unit, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
