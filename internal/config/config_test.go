package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresBaseURL(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: 0.0.0.0:9000\n"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestLoad_MissingFileWithoutEnvFails(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestLoad_FileAndDefaults(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "base_url: http://10.0.0.5:8080/\ntimezone: Asia/Manila\nrequest_timeout: 3s\nweek_start: friday\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080", cfg.BaseURL)
	assert.Equal(t, "Asia/Manila", cfg.Timezone)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "monday", cfg.WeekStart)
	assert.Equal(t, "*/5 * * * *", cfg.RefreshCron)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvBaseURL, "https://booking.example.com")
	t.Setenv(EnvListen, ":9090")
	t.Setenv(EnvLogLevel, "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://booking.example.com", cfg.BaseURL)
	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"ok", func(c *Config) {}, false},
		{"path not allowed", func(c *Config) { c.BaseURL = "http://host/api" }, true},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://host" }, true},
		{"no host", func(c *Config) { c.BaseURL = "http://" }, true},
		{"query", func(c *Config) { c.BaseURL = "http://host?x=1" }, true},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }, true},
		{"bad cron", func(c *Config) { c.RefreshCron = "every minute" }, true},
		{"half basic auth", func(c *Config) { c.BasicAuth = &BasicAuthConfig{Username: "u"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.BaseURL = "http://192.168.1.10:8080"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSave_RoundTripAndPerms(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	t.Setenv(EnvListen, "")
	t.Setenv(EnvLogLevel, "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.BaseURL = "http://localhost:8080"
	cfg.BasicAuth = &BasicAuthConfig{Username: "desk", Password: "secret"}
	require.NoError(t, Save(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, loaded.BaseURL)
	assert.Equal(t, cfg.RequestTimeout, loaded.RequestTimeout)
	require.NotNil(t, loaded.BasicAuth)
	assert.Equal(t, "desk", loaded.BasicAuth.Username)
}
