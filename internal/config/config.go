// Package config handles configuration loading for the qrshare server.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"qrshare/internal/db"
)

// Config holds all configuration for the server.
type Config struct {
	Host              string
	Port              string
	Workers           int
	DBPath            string
	DBBusyTimeout     time.Duration
	DBWALCheckpoint   int
	MaxContentBytes   int
	LogLevel          slog.Level
	ShutdownTimeout   time.Duration
	ReadHeaderTimeout time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first if present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Host:              getEnv("HOST", "0.0.0.0"),
		Port:              getEnv("PORT", "8000"),
		Workers:           getInt("WORKERS", 20),
		DBPath:            getEnv("DB_PATH", "./data/db.db"),
		DBBusyTimeout:     parseDuration(getEnv("DB_BUSY_TIMEOUT", "30s"), 30*time.Second),
		DBWALCheckpoint:   getInt("DB_WAL_AUTOCHECKPOINT", 1000),
		MaxContentBytes:   getInt("MAX_CONTENT_BYTES", 64<<10),
		ShutdownTimeout:   parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.DBWALCheckpoint < 1 {
		return nil, fmt.Errorf("DB_WAL_AUTOCHECKPOINT must be positive, got %d", cfg.DBWALCheckpoint)
	}
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return c.Host + ":" + c.Port
}

// DBOptions returns the engine options for the database file at path. Every
// process opening the shared file uses these, so they agree on busy waits and
// checkpoint cadence.
func (c *Config) DBOptions(path string) db.Options {
	opts := db.DefaultOptions(path)
	opts.MaxOpenConns = c.Workers
	opts.BusyTimeout = c.DBBusyTimeout
	opts.WALCheckpoint = c.DBWALCheckpoint
	return opts
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return n
}

func parseDuration(value string, defaultValue time.Duration) time.Duration {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
