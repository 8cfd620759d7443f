package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the YAML file.
const (
	EnvBaseURL  = "APPTBOARD_BASE_URL"
	EnvListen   = "APPTBOARD_LISTEN"
	EnvLogLevel = "APPTBOARD_LOG_LEVEL"
)

// ErrBaseURLRequired is returned by Validate when no upstream origin is configured.
var ErrBaseURLRequired = errors.New("config: base_url is required")

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// BaseURL is the origin of the booking REST service, e.g.
	// "http://192.168.1.10:8080". There is no default.
	BaseURL string `yaml:"base_url" json:"base_url"`

	// Listen is the HTTP listen address for the board UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to display appointment times and to
	// interpret naive timestamps from the upstream service.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls the first weekday of the calendar grid.
	// Supported values: "monday" (default), "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is a standard 5-field cron schedule for periodic refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// RequestTimeout bounds a single upstream request. Zero disables the timeout.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// LogLevel is one of "debug", "info", "error".
	LogLevel string `yaml:"log_level" json:"log_level"`

	// SnapshotPath is where the board PNG snapshot is written and served from
	// (/preview.png). Empty disables the preview endpoint.
	SnapshotPath string `yaml:"snapshot_path,omitempty" json:"snapshot_path,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration. BaseURL is left
// empty on purpose and must be supplied by the operator.
func DefaultConfig() *Config {
	return &Config{
		Listen:         "127.0.0.1:8080",
		Timezone:       "UTC",
		WeekStart:      "monday",
		RefreshCron:    "*/5 * * * *",
		RequestTimeout: 15 * time.Second,
		LogLevel:       "info",
		BasicAuth:      nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.RequestTimeout < 0 {
		c.RequestTimeout = 0
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// ApplyEnv overrides file values with APPTBOARD_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

// Validate checks the values the application cannot run without.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}
	if err := ValidateOrigin(c.BaseURL); err != nil {
		return fmt.Errorf("config: base_url: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "") != (c.BasicAuth.Password == "") {
		return errors.New("config: basic_auth needs both username and password")
	}
	return nil
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ValidateOrigin reports whether raw is an http(s) origin: scheme and host,
// optionally a trailing slash, nothing else.
func ValidateOrigin(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is empty")
	}
	if u.User != nil {
		return errors.New("credentials are not allowed in the origin")
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("origin must not carry a path, got %q", u.Path)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return errors.New("origin must not carry a query or fragment")
	}
	return nil
}

// Load loads configuration from the given YAML path, applies environment
// overrides and validates the result.
//
// Unlike a first-run friendly loader, a missing file is only tolerated when
// the environment supplies the base URL; otherwise the caller gets an error
// and is expected to run `apptboard init`.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
			// Env-only configuration is allowed.
		default:
			return nil, err
		}
	}

	cfg.ApplyEnv()
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".apptboard-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
