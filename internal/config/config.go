package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	appLog "propsync/internal/log"
)

// EnvPrefix prefixes every environment override, e.g. PROPSYNC_LISTEN.
const EnvPrefix = "PROPSYNC"

// FeedConfig describes an external iCal subscription registered at startup.
type FeedConfig struct {
	// ID is the stable feed identifier used in the API and in logs.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label shown in the UI.
	Name string `yaml:"name" json:"name"`
	// URL is the subscription endpoint as given by the platform.
	URL string `yaml:"url" json:"url"`
	// Platform is Airbnb, VRBO, Booking.com, Google Calendar or Custom.
	Platform string `yaml:"platform" json:"platform"`
	// Fixture is the local file served for URL, relative to FixtureDir.
	Fixture string `yaml:"fixture,omitempty" json:"fixture,omitempty"`
}

// UserConfig is an API account. Passwords are compared in constant time.
type UserConfig struct {
	ID       string `yaml:"id" json:"id"`
	Email    string `yaml:"email" json:"email"`
	Name     string `yaml:"name" json:"name"`
	Role     string `yaml:"role" json:"role"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" envconfig:"LISTEN"`

	// Timezone is the IANA timezone used for the month grid and for
	// floating times in imported feeds (e.g. "America/Los_Angeles").
	Timezone string `yaml:"timezone" json:"timezone" envconfig:"TIMEZONE"`

	// WeekStart controls which weekday is the first column of the month grid.
	// Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start" envconfig:"WEEK_START"`

	// CalendarName is written as X-WR-CALNAME in exported calendars.
	CalendarName string `yaml:"calendar_name" json:"calendar_name" envconfig:"CALENDAR_NAME"`

	// UIDDomain is the right-hand side of exported event UIDs (<id>@<domain>).
	UIDDomain string `yaml:"uid_domain" json:"uid_domain" envconfig:"UID_DOMAIN"`

	// DBPath is the sqlite database holding bookings and feeds.
	DBPath string `yaml:"db_path" json:"db_path" envconfig:"DB_PATH"`

	// FixtureDir is where feed bodies are read from.
	FixtureDir string `yaml:"fixture_dir" json:"fixture_dir" envconfig:"FIXTURE_DIR"`

	// SyncCron is a standard cron schedule (e.g. "*/15 * * * *") for feed sync.
	SyncCron string `yaml:"sync_cron" json:"sync_cron" envconfig:"SYNC_CRON"`

	// LogLevel is debug, info or error.
	LogLevel string `yaml:"log_level" json:"log_level" envconfig:"LOG_LEVEL"`

	Feeds []FeedConfig `yaml:"feeds" json:"feeds" ignored:"true"`

	// Users enables HTTP Basic Auth on every endpoint except /health when
	// non-empty.
	Users []UserConfig `yaml:"users" json:"users" ignored:"true"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		Timezone:     "UTC",
		WeekStart:    "monday",
		CalendarName: "PropertySync Bookings",
		UIDDomain:    "propsync.local",
		DBPath:       "./var/propsync.db",
		FixtureDir:   "./var/feeds",
		SyncCron:     "*/15 * * * *",
		LogLevel:     "info",
		Feeds:        []FeedConfig{},
		Users:        []UserConfig{},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday", "sunday":
		c.WeekStart = strings.ToLower(c.WeekStart)
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = d.WeekStart
	}
	if c.CalendarName == "" {
		c.CalendarName = d.CalendarName
	}
	if c.UIDDomain == "" {
		c.UIDDomain = d.UIDDomain
	}
	if c.DBPath == "" {
		c.DBPath = d.DBPath
	}
	if c.FixtureDir == "" {
		c.FixtureDir = d.FixtureDir
	}
	if c.SyncCron == "" {
		c.SyncCron = d.SyncCron
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	if c.Users == nil {
		c.Users = []UserConfig{}
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to UTC", err, "name", c.Timezone)
		return time.UTC
	}
	return loc
}

// FixtureFiles maps feed URLs to their configured fixture files.
func (c *Config) FixtureFiles() map[string]string {
	m := make(map[string]string, len(c.Feeds))
	for _, f := range c.Feeds {
		if f.URL != "" && f.Fixture != "" {
			m[f.URL] = f.Fixture
		}
	}
	return m
}

// ApplyEnv overlays PROPSYNC_* environment variables onto scalar fields.
// Unset variables leave the current value in place.
func (c *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("process environment: %w", err)
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path and applies the
// environment overlay.
//
// Behavior:
//   - A missing file is created (parent directory included) holding the
//     default config with 0600 perms.
//   - An existing file is unmarshalled from YAML and its defaults are
//     normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// First run: create default config file.
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Even if save fails, return cfg with error so caller can decide.
			return cfg, err
		}
		appLog.Info("wrote default config", "path", path)
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.Normalize()
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the file holds passwords).
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

	// Temp file in the same dir so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, ".propsync-config-*.tmp")
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
	// Replace.
	return os.Rename(tmpName, path)
}

// Save is a convenience method that delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
