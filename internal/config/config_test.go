package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsql/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SEMSQL_LAYER_FILE", "SEMSQL_FILTERS_FILE", "SEMSQL_MODE", "SEMSQL_VERIFY_SQL",
		"SEMSQL_BATCH_CONCURRENCY", "LISTEN_ADDR", "LOG_LEVEL", "ENV",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, domain.ModeFlexible, cfg.Mode)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, 8, cfg.BatchConcurrency)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.VerifySQL)
	assert.Len(t, cfg.Warnings, 1)
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEMSQL_LAYER_FILE", "/etc/semsql/layer.yaml")
	t.Setenv("SEMSQL_FILTERS_FILE", "/etc/semsql/filters.yaml")
	t.Setenv("SEMSQL_MODE", "STRICT")
	t.Setenv("SEMSQL_VERIFY_SQL", "yes")
	t.Setenv("SEMSQL_BATCH_CONCURRENCY", "3")
	t.Setenv("LISTEN_ADDR", ":9090")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/etc/semsql/layer.yaml", cfg.LayerFile)
	assert.Equal(t, "/etc/semsql/filters.yaml", cfg.FiltersFile)
	assert.Equal(t, domain.ModeStrict, cfg.Mode)
	assert.True(t, cfg.VerifySQL)
	assert.Equal(t, 3, cfg.BatchConcurrency)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 5, cfg.RateLimitBurst)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEMSQL_LAYER_FILE", "layer.yaml")
	t.Setenv("RATE_LIMIT_RPS", "fast")
	t.Setenv("RATE_LIMIT_BURST", "big")
	t.Setenv("SEMSQL_BATCH_CONCURRENCY", "-1")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, cfg.RateLimitRPS, 0.001)
	assert.Equal(t, 200, cfg.RateLimitBurst)
	assert.Equal(t, 8, cfg.BatchConcurrency)
	assert.Len(t, cfg.Warnings, 3)
}

func TestLoadFromEnv_BadMode(t *testing.T) {
	clearEnv(t)
	t.Setenv("SEMSQL_MODE", "lenient")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SEMSQL_MODE")
}

func TestLoadFromEnv_Production(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"cors_wildcard", map[string]string{"SEMSQL_LAYER_FILE": "l.yaml"}, "CORS wildcard"},
		{"no_layer", map[string]string{"CORS_ALLOWED_ORIGINS": "https://a.example"}, "SEMSQL_LAYER_FILE"},
		{"ok", map[string]string{"SEMSQL_LAYER_FILE": "l.yaml", "CORS_ALLOWED_ORIGINS": "https://a.example"}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("ENV", "production")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := LoadFromEnv()
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, cfg.IsProduction())
		})
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tc.level}
			assert.Equal(t, tc.want, cfg.SlogLevel())
		})
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	assert.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	t.Setenv("SEMSQL_TEST_KEY", "")
	t.Setenv("SEMSQL_TEST_QUOTED", "")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("# comment\n\nSEMSQL_TEST_KEY=test_value\nSEMSQL_TEST_QUOTED=\"quoted value\"\nnot a pair\n"), 0o644))

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "test_value", os.Getenv("SEMSQL_TEST_KEY"))
	assert.Equal(t, "quoted value", os.Getenv("SEMSQL_TEST_QUOTED"))
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("SEMSQL_TEST_PRECEDENCE", "from_env")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SEMSQL_TEST_PRECEDENCE=from_file\n"), 0o644))

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("SEMSQL_TEST_PRECEDENCE"))
}
