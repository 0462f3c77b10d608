// Package config loads daemon configuration from a YAML file with
// environment-variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPollInterval is used when the config file does not set one.
const DefaultPollInterval = 5 * time.Minute

// Duration wraps time.Duration so YAML values like "5m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds everything the daemon needs to run.
type Config struct {
	// SubjectID identifies whose telemetry this instance collects.
	SubjectID string `yaml:"subject_id"`

	// PollInterval is the scheduler cadence. Zero means DefaultPollInterval.
	PollInterval Duration `yaml:"poll_interval"`

	// DBPath is the SQLite database file. Supports a leading ~ and
	// defaults to the XDG data directory.
	DBPath string `yaml:"db_path"`

	Dexcom    DexcomConfig  `yaml:"dexcom"`
	Fitbit    FitbitConfig  `yaml:"fitbit"`
	Nutrition ServiceConfig `yaml:"nutrition"`
	Forecast  ServiceConfig `yaml:"forecast"`
}

// DexcomConfig carries Share credentials. Both fields may also come from
// VITALSYNC_DEXCOM_USERNAME / VITALSYNC_DEXCOM_PASSWORD.
type DexcomConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Enabled reports whether the glucose source should be registered.
func (c DexcomConfig) Enabled() bool {
	return c.Username != "" && c.Password != ""
}

// FitbitConfig carries the OAuth application and the persisted token set.
type FitbitConfig struct {
	ClientID     string    `yaml:"client_id"`
	ClientSecret string    `yaml:"client_secret"`
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
}

// Enabled reports whether the wearable source should be registered.
func (c FitbitConfig) Enabled() bool {
	return c.ClientID != "" && c.RefreshToken != ""
}

// ServiceConfig points at an auxiliary HTTP service.
type ServiceConfig struct {
	BaseURL string `yaml:"base_url"`
}

// DefaultPath returns the config file location, honoring XDG_CONFIG_HOME.
func DefaultPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "vitalsync", "config.yaml")
}

// DefaultDBPath returns the database location, honoring XDG_DATA_HOME.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "vitalsync", "vitalsync.db")
}

// Load reads the config file at path, applies environment overrides, and
// fills in defaults. A missing file is not an error; overrides and defaults
// still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("VITALSYNC_SUBJECT_ID"); v != "" {
		c.SubjectID = v
	}
	if v := os.Getenv("VITALSYNC_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("VITALSYNC_DEXCOM_USERNAME"); v != "" {
		c.Dexcom.Username = v
	}
	if v := os.Getenv("VITALSYNC_DEXCOM_PASSWORD"); v != "" {
		c.Dexcom.Password = v
	}
	if v := os.Getenv("VITALSYNC_FITBIT_CLIENT_ID"); v != "" {
		c.Fitbit.ClientID = v
	}
	if v := os.Getenv("VITALSYNC_FITBIT_CLIENT_SECRET"); v != "" {
		c.Fitbit.ClientSecret = v
	}
	if v := os.Getenv("VITALSYNC_FITBIT_ACCESS_TOKEN"); v != "" {
		c.Fitbit.AccessToken = v
	}
	if v := os.Getenv("VITALSYNC_FITBIT_REFRESH_TOKEN"); v != "" {
		c.Fitbit.RefreshToken = v
	}
}

func (c *Config) applyDefaults() {
	if c.SubjectID == "" {
		c.SubjectID = "default"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = Duration(DefaultPollInterval)
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	} else {
		c.DBPath = expandPath(c.DBPath)
	}
}

// Interval returns the poll cadence as a time.Duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.PollInterval)
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if !c.Dexcom.Enabled() && !c.Fitbit.Enabled() {
		return fmt.Errorf("no sources configured: set dexcom or fitbit credentials")
	}
	if c.Dexcom.Username != "" && c.Dexcom.Password == "" {
		return fmt.Errorf("dexcom username set without password")
	}
	if c.Fitbit.ClientID != "" && c.Fitbit.ClientSecret == "" {
		return fmt.Errorf("fitbit client_id set without client_secret")
	}
	return nil
}

func expandPath(path string) string {
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}
