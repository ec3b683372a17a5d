package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PostsScanner/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg := config.Load()

	require.Equal(t, "0.0.0.0:8080", cfg.HTTP.BindAddr)
	require.Equal(t, 30*time.Minute, cfg.Scheduler.Interval())
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, 10*time.Minute, cfg.Lock.TTL())
	require.Equal(t, 60, cfg.Limits.HTTP.Max)
	require.Equal(t, time.Minute, cfg.Limits.HTTP.Window())
	require.Equal(t, 500, cfg.Limits.AIQuota.Max)
	require.Equal(t, 24*time.Hour, cfg.Limits.AIQuota.Window())
	require.Equal(t, 70, cfg.Rating.MinConfidence)
	require.Equal(t, "https://www.facebook.com", cfg.Identity.BaseURL)
	require.Contains(t, cfg.Limits.AllowList, "127.0.0.1")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	raw := `
http:
  bindAddr: "127.0.0.1:9999"
classify:
  batchSize: 5
limits:
  http:
    windowMs: 30000
    max: 10
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	t.Setenv("POSTS_SCANNER_CONFIG", path)
	t.Setenv("DATABASE_DSN", "postgres://env-dsn")
	t.Setenv("COMPLETION_API_KEY", "env-key")

	cfg := config.Load()

	require.Equal(t, "127.0.0.1:9999", cfg.HTTP.BindAddr)
	require.Equal(t, 5, cfg.Classify.BatchSize)
	require.Equal(t, 10, cfg.Limits.HTTP.Max)
	require.Equal(t, 30*time.Second, cfg.Limits.HTTP.Window())
	require.Equal(t, "postgres://env-dsn", cfg.Database.DSN)
	require.Equal(t, "env-key", cfg.Completion.APIKey)

	// untouched sections keep their defaults
	require.Equal(t, 500, cfg.Limits.AIQuota.Max)
	require.Equal(t, 10, cfg.Rating.BatchSize)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	t.Setenv("POSTS_SCANNER_CONFIG", "/nonexistent/config.yaml")

	cfg := config.Load()
	require.Equal(t, "0.0.0.0:8080", cfg.HTTP.BindAddr)
}
