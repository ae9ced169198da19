// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"semsql/internal/domain"
)

// Config holds the configuration shared by the CLI and the HTTP server.
type Config struct {
	LayerFile   string                // semantic layer YAML (SEMSQL_LAYER_FILE)
	FiltersFile string                // row filter YAML (SEMSQL_FILTERS_FILE, optional)
	Mode        domain.ValidationMode // strict or flexible (default flexible)
	VerifySQL   bool                  // verify prepared SQL with DuckDB
	ListenAddr  string                // HTTP listen address (default ":8080")
	LogLevel    string                // log level: debug, info, warn, error (default "info")
	Env         string                // environment: "development" (default) or "production"

	// BatchConcurrency bounds concurrent validations per batch request.
	BatchConcurrency int

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables. Malformed
// numeric values fall back to their defaults with a warning.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		LayerFile:   os.Getenv("SEMSQL_LAYER_FILE"),
		FiltersFile: os.Getenv("SEMSQL_FILTERS_FILE"),
		ListenAddr:  os.Getenv("LISTEN_ADDR"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		Env:         os.Getenv("ENV"),
		VerifySQL:   parseBoolEnvDefault("SEMSQL_VERIFY_SQL", false),
	}

	cfg.Mode = domain.ModeFlexible
	if v := os.Getenv("SEMSQL_MODE"); v != "" {
		mode, err := domain.ParseValidationMode(v)
		if err != nil {
			return nil, fmt.Errorf("SEMSQL_MODE: %w", err)
		}
		cfg.Mode = mode
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_RPS %q", v))
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid RATE_LIMIT_BURST %q", v))
		}
	}
	if v := os.Getenv("SEMSQL_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BatchConcurrency = n
		} else {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("ignoring invalid SEMSQL_BATCH_CONCURRENCY %q", v))
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if cfg.BatchConcurrency == 0 {
		cfg.BatchConcurrency = 8
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	if cfg.LayerFile == "" {
		cfg.Warnings = append(cfg.Warnings, "SEMSQL_LAYER_FILE is not set; commands need --layer")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
		if cfg.LayerFile == "" {
			return nil, fmt.Errorf("SEMSQL_LAYER_FILE must be set in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
