// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	configPathEnvVar,
	"NATS_URL",
	"NATS_EMBEDDED",
	"NATS_STORE_DIR",
	"NATS_CREATE_BUCKETS",
	"NATS_BUCKET_HISTORY",
	"NATS_MAX_RECONNECTS",
	"NATS_RECONNECT_WAIT",
	"PORT",
	"CORS_ALLOWED_ORIGINS",
	"RATE_LIMIT_PER_MINUTE",
	"SHUTDOWN_TIMEOUT",
	"DELETE_WORKERS",
	"FETCH_WORKERS",
}

// isolateConfig clears the environment and runs from an empty directory so
// that no config file is picked up.
func isolateConfig(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoadConfig_Defaults(t *testing.T) {
	isolateConfig(t)

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfig_Environment(t *testing.T) {
	isolateConfig(t)
	t.Setenv("NATS_URL", "nats://nats.attendance:4222")
	t.Setenv("NATS_RECONNECT_WAIT", "5s")
	t.Setenv("NATS_BUCKET_HISTORY", "5")
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.example.org, https://admin.example.org")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "120")
	t.Setenv("DELETE_WORKERS", "1")
	t.Setenv("UNRELATED_SETTING", "ignored")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, "nats://nats.attendance:4222", cfg.NATS.URL)
	assert.Equal(t, 5*time.Second, cfg.NATS.ReconnectWait)
	assert.Equal(t, 5, cfg.NATS.BucketHistory)
	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, []string{"https://app.example.org", "https://admin.example.org"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 120, cfg.HTTP.RateLimitPerMinute)
	assert.Equal(t, 1, cfg.Service.DeleteWorkers)
	assert.Equal(t, 3, cfg.Service.FetchWorkers)
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	isolateConfig(t)

	path := filepath.Join(t.TempDir(), "attendance.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
nats:
  embedded: true
  store_dir: /var/lib/attendance
http:
  port: "7070"
  cors_allowed_origins:
    - https://church.example.org
service:
  fetch_workers: 6
`), 0o600))
	t.Setenv(configPathEnvVar, path)
	t.Setenv("FETCH_WORKERS", "2")

	cfg, err := loadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.NATS.Embedded)
	assert.Equal(t, "/var/lib/attendance", cfg.NATS.StoreDir)
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, []string{"https://church.example.org"}, cfg.HTTP.CORSAllowedOrigins)
	assert.Equal(t, 2, cfg.Service.FetchWorkers, "environment wins over the file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*config) {},
		},
		{
			name: "embedded server needs no url",
			mutate: func(c *config) {
				c.NATS.URL = ""
				c.NATS.Embedded = true
			},
		},
		{
			name:    "url required",
			mutate:  func(c *config) { c.NATS.URL = "" },
			wantErr: "nats.url",
		},
		{
			name:    "bucket history bounded",
			mutate:  func(c *config) { c.NATS.BucketHistory = 65 },
			wantErr: "nats.bucket_history",
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *config) { c.HTTP.RateLimitPerMinute = -1 },
			wantErr: "rate_limit_per_minute",
		},
		{
			name:    "no delete workers",
			mutate:  func(c *config) { c.Service.DeleteWorkers = 0 },
			wantErr: "delete_workers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvTransform(t *testing.T) {
	assert.Equal(t, "nats.url", envTransform("NATS_URL"))
	assert.Equal(t, "service.delete_workers", envTransform("DELETE_WORKERS"))
	assert.Empty(t, envTransform("HOME"))
}
