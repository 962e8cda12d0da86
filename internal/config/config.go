// Package config provides YAML-based configuration loading for autodelete.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration, loaded from autodelete.yaml.
type Config struct {
	Platform    string            `yaml:"platform"` // "discord" or "slack"
	Discord     DiscordConfig     `yaml:"discord"`
	Slack       SlackConfig       `yaml:"slack"`
	Database    DatabaseConfig    `yaml:"database"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Status      StatusConfig      `yaml:"status"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DiscordConfig holds Discord gateway credentials.
type DiscordConfig struct {
	Token string `yaml:"token"`
}

// SlackConfig holds Slack Socket Mode credentials.
type SlackConfig struct {
	AppToken string `yaml:"app_token"` // xapp-...
	BotToken string `yaml:"bot_token"` // xoxb-...
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// SchedulerConfig tunes the scheduling loop.
type SchedulerConfig struct {
	BatchSize          int `yaml:"batch_size"`
	RefreshIntervalSec int `yaml:"refresh_interval_sec"`
	RetryIntervalSec   int `yaml:"retry_interval_sec"`
}

// ExecutorConfig tunes delete-call retries and concurrency.
type ExecutorConfig struct {
	Workers        int `yaml:"workers"`
	MaxAttempts    int `yaml:"max_attempts"`
	BaseBackoffSec int `yaml:"base_backoff_sec"`
	MaxBackoffSec  int `yaml:"max_backoff_sec"`
}

// StatusConfig controls the operational HTTP server.
type StatusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// MaintenanceConfig controls the periodic stale-record sweep.
type MaintenanceConfig struct {
	SweepCron string `yaml:"sweep_cron"` // 5-field cron; empty disables
}

// LoggingConfig controls rotating file logs.
type LoggingConfig struct {
	Directory  string `yaml:"directory"` // empty: stdout only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Platform == "" {
		c.Platform = "discord"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "autodelete.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "autodelete"
		}
	}
	if c.Scheduler.BatchSize == 0 {
		c.Scheduler.BatchSize = 100
	}
	if c.Scheduler.RefreshIntervalSec == 0 {
		c.Scheduler.RefreshIntervalSec = 300
	}
	if c.Scheduler.RetryIntervalSec == 0 {
		c.Scheduler.RetryIntervalSec = 10
	}
	if c.Executor.Workers == 0 {
		c.Executor.Workers = 4
	}
	if c.Executor.MaxAttempts == 0 {
		c.Executor.MaxAttempts = 4
	}
	if c.Executor.BaseBackoffSec == 0 {
		c.Executor.BaseBackoffSec = 2
	}
	if c.Executor.MaxBackoffSec == 0 {
		c.Executor.MaxBackoffSec = 60
	}
	if c.Status.Port == 0 {
		c.Status.Port = 8632
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 5
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 30
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Platform {
	case "discord", "slack":
	default:
		errs = append(errs, fmt.Sprintf("platform %q is not supported (discord, slack)", c.Platform))
	}
	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.User == "" {
			errs = append(errs, "database.user is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
