package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultTimezone = "America/New_York"
	DefaultRefresh  = "*/30 * * * *"
	DefaultLogLevel = "info"
)

// CalendarConfig declares a calendar created at startup.
type CalendarConfig struct {
	Name     string `yaml:"name" json:"name"`
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// SubscriptionConfig describes a remote ICS feed imported into a calendar.
type SubscriptionConfig struct {
	// ID is an internal identifier used for caching and logging.
	ID string `yaml:"id" json:"id"`
	// Calendar names the target calendar; it is created when missing.
	Calendar string `yaml:"calendar" json:"calendar"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone given to calendars created without one.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// for re-importing subscriptions.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds fetched ICS bodies and their validators.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Calendars     []CalendarConfig     `yaml:"calendars" json:"calendars"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        DefaultListen,
		Timezone:      DefaultTimezone,
		RefreshCron:   DefaultRefresh,
		CacheDir:      defaultCacheDir(),
		LogLevel:      DefaultLogLevel,
		Calendars:     []CalendarConfig{},
		Subscriptions: []SubscriptionConfig{},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "calmgr")
	}
	return filepath.Join(os.TempDir(), "calmgr-cache")
}

// Normalize fills in missing values so partially written files still work.
func (c *Config) Normalize() {
	c.Listen = strings.TrimSpace(c.Listen)
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = DefaultTimezone
	}
	if strings.TrimSpace(c.RefreshCron) == "" {
		c.RefreshCron = DefaultRefresh
	}
	if strings.TrimSpace(c.CacheDir) == "" {
		c.CacheDir = defaultCacheDir()
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = DefaultLogLevel
	}
	if c.Calendars == nil {
		c.Calendars = []CalendarConfig{}
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Subscriptions {
		if c.Subscriptions[i].ID == "" {
			c.Subscriptions[i].ID = fmt.Sprintf("sub-%d", i+1)
		}
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" && c.BasicAuth.Password == "" {
		c.BasicAuth = nil
	}
}

// Validate reports configuration that cannot be used as is.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Subscriptions))
	for _, s := range c.Subscriptions {
		if seen[s.ID] {
			return fmt.Errorf("duplicate subscription id %q", s.ID)
		}
		seen[s.ID] = true
		if strings.TrimSpace(s.URL) == "" {
			return fmt.Errorf("subscription %q has no url", s.ID)
		}
		if strings.TrimSpace(s.Calendar) == "" {
			return fmt.Errorf("subscription %q has no calendar", s.ID)
		}
	}
	for _, cal := range c.Calendars {
		if strings.TrimSpace(cal.Name) == "" {
			return errors.New("calendar entry without a name")
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is unmarshalled and defaults are filled in.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename, creating the
// parent directory (0700) and leaving the file at 0600.
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

	tmp, err := os.CreateTemp(dir, ".calmgr-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
