package app

import (
	"errors"
	"strings"

	coreconfig "github.com/m3rciful/feedbackbot/core/config"
	coredatabase "github.com/m3rciful/feedbackbot/core/database"
	"github.com/m3rciful/feedbackbot/relay/store"
)

// AuditConfig configures the read-only HTTP API. An empty Listen disables it.
type AuditConfig struct {
	Listen string `yaml:"listen" envconfig:"AUDIT_LISTEN"`
}

// RelayConfig tunes the conversation.
type RelayConfig struct {
	RecentLimit int    `yaml:"recent_limit" envconfig:"RELAY_RECENT_LIMIT"`
	Greeting    string `yaml:"greeting" envconfig:"RELAY_GREETING"`
	// DisableSelfGrant stops /admin from granting the role to non-administrators.
	DisableSelfGrant bool `yaml:"disable_self_grant" envconfig:"RELAY_DISABLE_SELF_GRANT"`
}

// Config is the application configuration file.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Audit    AuditConfig         `yaml:"audit"`
	Relay    RelayConfig         `yaml:"relay"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, overlays the environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.LoadInto(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}
	if c.Relay.RecentLimit < 0 {
		return errors.New("relay.recent_limit must be >= 0")
	}
	if c.Relay.RecentLimit == 0 {
		c.Relay.RecentLimit = store.DefaultRecentLimit
	}
	c.Relay.Greeting = strings.TrimSpace(c.Relay.Greeting)
	c.Audit.Listen = strings.TrimSpace(c.Audit.Listen)
	return nil
}
