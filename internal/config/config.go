package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvVar names the environment variable that points at a config file.
const EnvVar = "ALERTLOG_CONFIG"

// Config holds the complete client configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Timeouts  TimeoutsConfig  `toml:"timeouts"`
	Reconnect ReconnectConfig `toml:"reconnect"`
	Logging   LoggingConfig   `toml:"logging"`
	Storage   StorageConfig   `toml:"storage"`
}

// ServerConfig locates the remote log service.
type ServerConfig struct {
	BaseURL  string `toml:"base_url"`
	LiveURL  string `toml:"live_url"`
	PageSize int    `toml:"page_size"`
}

// TimeoutsConfig bounds network latency.
type TimeoutsConfig struct {
	Request Duration `toml:"request"`
	Connect Duration `toml:"connect"`
}

// ReconnectConfig is the live channel backoff policy.
type ReconnectConfig struct {
	Initial Duration `toml:"initial"`
	Max     Duration `toml:"max"`
	Jitter  float64  `toml:"jitter"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

type StorageConfig struct {
	DBPath    string `toml:"db_path"`
	BackupDir string `toml:"backup_dir"`
}

// Duration wraps time.Duration for TOML
type Duration struct {
	time.Duration
}

// UnmarshalText parses a duration string
func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText formats the duration as a string
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads the TOML file at path and fills in defaults.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve loads the explicit path if given, then $ALERTLOG_CONFIG, then
// the default location. A missing default file yields defaults.
func Resolve(explicit string) (*Config, error) {
	if explicit != "" {
		return Load(explicit)
	}
	if p := os.Getenv(EnvVar); p != "" {
		return Load(p)
	}
	p, err := DefaultPath()
	if err == nil {
		if _, statErr := os.Stat(p); statErr == nil {
			return Load(p)
		}
	}
	return Default(), nil
}

// Validate rejects values the client cannot work with.
func (c *Config) Validate() error {
	if c.Server.PageSize < 1 || c.Server.PageSize > 100 {
		return fmt.Errorf("server.page_size must be between 1 and 100, got %d", c.Server.PageSize)
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter >= 1 {
		return fmt.Errorf("reconnect.jitter must be in [0,1), got %v", c.Reconnect.Jitter)
	}
	if c.Reconnect.Max.Duration < c.Reconnect.Initial.Duration {
		return fmt.Errorf("reconnect.max (%v) is below reconnect.initial (%v)", c.Reconnect.Max.Duration, c.Reconnect.Initial.Duration)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = "http://localhost:8000"
	}
	if c.Server.LiveURL == "" {
		c.Server.LiveURL = "ws://localhost:8000/ws/logs"
	}
	if c.Server.PageSize == 0 {
		c.Server.PageSize = 30
	}
	if c.Timeouts.Request.Duration == 0 {
		c.Timeouts.Request.Duration = 10 * time.Second
	}
	if c.Timeouts.Connect.Duration == 0 {
		c.Timeouts.Connect.Duration = 10 * time.Second
	}
	if c.Reconnect.Initial.Duration == 0 {
		c.Reconnect.Initial.Duration = time.Second
	}
	if c.Reconnect.Max.Duration == 0 {
		c.Reconnect.Max.Duration = 30 * time.Second
	}
	if c.Reconnect.Jitter == 0 {
		c.Reconnect.Jitter = 0.2
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	dir, err := configDir()
	if err != nil {
		return
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(dir, "alertlog.log")
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = filepath.Join(dir, "alertlog.db")
	}
	if c.Storage.BackupDir == "" {
		c.Storage.BackupDir = filepath.Join(dir, "backups")
	}
}

func configDir() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "alertlog"), nil
}

// DefaultPath returns ~/.config/alertlog/config.toml
func DefaultPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}
