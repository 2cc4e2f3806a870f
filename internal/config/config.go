package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	APIPort        string
	DBPath         string
	LogLevel       slog.Level
	LogFormat      string
	UploadBaseURL  string
	UploadAPIKey   string
	CaptionBaseURL string
	CaptionAPIKey  string
	CaptionModel   string
}

// CaptionEnabled reports whether the caption-generation capability is
// configured. An empty API key disables the feature entirely; this is a
// normal configuration, not an error.
func (c *Config) CaptionEnabled() bool {
	return c.CaptionAPIKey != ""
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	cfg := &Config{
		APIPort:        getEnv("API_PORT", "9000"),
		DBPath:         getEnv("DB_PATH", "./data/stationlog.db"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		UploadBaseURL:  getEnv("UPLOAD_BASE_URL", ""),
		UploadAPIKey:   getEnv("UPLOAD_API_KEY", ""),
		CaptionBaseURL: getEnv("CAPTION_BASE_URL", "http://localhost:8080"),
		CaptionAPIKey:  getEnv("CAPTION_API_KEY", ""),
		CaptionModel:   getEnv("CAPTION_MODEL", "gpt-4o-mini"),
	}

	level, err := parseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", cfg.LogFormat)
	}

	// Validate required fields
	if cfg.UploadBaseURL == "" {
		return nil, fmt.Errorf("UPLOAD_BASE_URL is required")
	}

	// CAPTION_API_KEY is deliberately not validated: an empty key disables
	// the caption feature instead of failing startup.

	// Create ./data directory if it doesn't exist (for the DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// parseLogLevel converts a level name to a slog.Level.
func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error; got %q", raw)
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
