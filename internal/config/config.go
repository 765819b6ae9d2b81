// Package config provides YAML-based configuration loading for studioops.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// cronParser accepts standard 5-field cron expressions (minute, hour, dom,
// month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Config is the top-level studioops configuration, loaded from studioops.yaml.
type Config struct {
	Studio     string           `yaml:"studio"`
	DB         DBConfig         `yaml:"db"`
	Server     ServerConfig     `yaml:"server"`
	Monday     MondayConfig     `yaml:"monday"`
	Sync       SyncConfig       `yaml:"sync"`
	Notify     NotifyConfig     `yaml:"notify"`
	Accounting AccountingConfig `yaml:"accounting"`
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// ServerConfig holds dashboard HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MondayConfig holds settings for the Monday.com API client.
type MondayConfig struct {
	APIURL        string `yaml:"api_url"`
	PageSize      int    `yaml:"page_size"`
	IDBatchSize   int    `yaml:"id_batch_size"`
	FamilyKeyword string `yaml:"family_keyword"`
}

// SyncConfig controls the scheduled sync.
type SyncConfig struct {
	Schedule string `yaml:"schedule"` // 5-field cron; empty disables
}

// NotifyConfig holds outbound notification settings. Empty tokens disable
// the corresponding channel.
type NotifyConfig struct {
	SlackToken     string `yaml:"slack_token"`
	SlackChannel   string `yaml:"slack_channel"`
	DiscordToken   string `yaml:"discord_token"`
	DiscordChannel string `yaml:"discord_channel"`
}

// AccountingConfig holds settings for the accounting API client.
type AccountingConfig struct {
	BaseURL  string `yaml:"base_url"`
	TenantID string `yaml:"tenant_id"`
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
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" && c.Studio != "" {
		c.DB.Database = "studioops_" + strings.ToLower(c.Studio)
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Monday.APIURL == "" {
		c.Monday.APIURL = "https://api.monday.com/v2"
	}
	if c.Monday.PageSize == 0 {
		c.Monday.PageSize = 500
	}
	if c.Monday.IDBatchSize == 0 {
		c.Monday.IDBatchSize = 100
	}
	if c.Monday.FamilyKeyword == "" {
		c.Monday.FamilyKeyword = "projects"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Studio == "" {
		errs = append(errs, "studio is required")
	}
	if c.DB.Database == "" {
		errs = append(errs, "db.database is required")
	}
	if c.Sync.Schedule != "" {
		if _, err := cronParser.Parse(c.Sync.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("sync.schedule: %v", err))
		}
	}
	if c.Notify.SlackToken != "" && c.Notify.SlackChannel == "" {
		errs = append(errs, "notify.slack_channel is required when slack_token is set")
	}
	if c.Notify.DiscordToken != "" && c.Notify.DiscordChannel == "" {
		errs = append(errs, "notify.discord_channel is required when discord_token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// CronSchedule parses the configured sync schedule. An empty schedule
// returns nil with no error.
func (c *Config) CronSchedule() (cron.Schedule, error) {
	if c.Sync.Schedule == "" {
		return nil, nil
	}
	sched, err := cronParser.Parse(c.Sync.Schedule)
	if err != nil {
		return nil, fmt.Errorf("config: sync.schedule: %w", err)
	}
	return sched, nil
}
