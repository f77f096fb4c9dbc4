package connector

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Konsultn-Engineering/dbpool/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
host: db.internal
port: 6432
database: orders
username: app
password: from-file
ssl_mode: require
connect_timeout: 3s
query_timeout: 15s
pool:
  max_connections: 20
  min_connections: 4
  idle_timeout: 1m
  acquire_timeout: 2s
retry:
  max_retries: 3
  base_delay: 100ms
  max_delay: 1s
  backoff: 2
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dbpool.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Host)
	assert.Equal(t, 6432, cfg.Port)
	assert.Equal(t, "from-file", cfg.Password)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 15*time.Second, cfg.QueryTimeout)

	assert.Equal(t, 20, cfg.Pool.MaxConnections)
	assert.Equal(t, 4, cfg.Pool.MinConnections)
	assert.Equal(t, time.Minute, cfg.Pool.IdleTimeout)
	assert.Equal(t, 2*time.Second, cfg.Pool.AcquireTimeout)
	// Unset keys keep their defaults.
	assert.Equal(t, pool.DefaultReapInterval, cfg.Pool.ReapInterval)

	require.NotNil(t, cfg.Retry)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.BaseDelay)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvHost, "override.internal")
	t.Setenv(EnvPassword, "from-env")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	assert.Equal(t, "override.internal", cfg.Host)
	assert.Equal(t, "from-env", cfg.Password)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "host: [unterminated"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "host: localhost\npool:\n  max_connections: 2\n  min_connections: 5\n"))
	assert.ErrorIs(t, err, pool.ErrInvalidConfig)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{name: "Valid", config: Config{Host: "localhost", Port: 5432}},
		{name: "MissingHost", config: Config{Port: 5432}, expectError: true},
		{name: "BadPort", config: Config{Host: "localhost", Port: 70000}, expectError: true},
		{name: "NegativeTimeout", config: Config{Host: "localhost", Port: 5432, QueryTimeout: -time.Second}, expectError: true},
		{name: "NegativeRetries", config: Config{Host: "localhost", Port: 5432, Retry: &RetryConfig{MaxRetries: -1}}, expectError: true},
		{name: "ShrinkingBackoff", config: Config{Host: "localhost", Port: 5432, Retry: &RetryConfig{Backoff: 0.5}}, expectError: true},
		{name: "BadPool", config: Config{Host: "localhost", Port: 5432, Pool: pool.Config{MinConnections: 50}}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
