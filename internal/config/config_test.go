package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
backend:
  base_url: http://backend.local
storage:
  path: `+filepath.Join(dir, "nested", "shopvisit.db")+`
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "shopvisit", cfg.Redis.Prefix)
	assert.Equal(t, 10*time.Second, cfg.BackendTimeout())
	assert.Equal(t, time.Minute, cfg.CacheTTL())
	assert.Equal(t, 4, cfg.MergeParallelism())
	rate, burst := cfg.RateLimit()
	assert.Equal(t, 20.0, rate)
	assert.Equal(t, 5, burst)
	assert.False(t, cfg.UseRedis())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	assert.DirExists(t, filepath.Join(dir, "nested"))
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_BACKEND_URL", "https://api.example.test")
	t.Setenv("TEST_API_KEY", "secret")
	path := writeConfig(t, `
backend:
  base_url: ${TEST_BACKEND_URL}
  api_key: ${TEST_API_KEY}
  timeout_seconds: 3
storage:
  driver: redis
redis:
  address: localhost:6379
schedule:
  timezone: Europe/Berlin
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.test", cfg.Backend.BaseURL)
	assert.Equal(t, "secret", cfg.Backend.APIKey)
	assert.Equal(t, 3*time.Second, cfg.BackendTimeout())
	assert.True(t, cfg.UseRedis())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing base url", "storage:\n  driver: sqlite\n"},
		{"unknown driver", "backend:\n  base_url: http://x\nstorage:\n  driver: bolt\n"},
		{"redis without address", "backend:\n  base_url: http://x\nstorage:\n  driver: redis\n"},
		{"bad timezone", "backend:\n  base_url: http://x\nschedule:\n  timezone: Mars/Olympus\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPathFromEnv(t *testing.T) {
	t.Setenv(PathEnv, "")
	assert.Equal(t, DefaultPath, PathFromEnv())
	t.Setenv(PathEnv, "/etc/shopvisit.yaml")
	assert.Equal(t, "/etc/shopvisit.yaml", PathFromEnv())
}
