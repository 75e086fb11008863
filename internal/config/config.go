// Package config is the application configuration: the reusable core
// settings plus the database, auth and ops sections of the expense bot.
package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	coreconfig "github.com/ilyosbek9531/expense-tracker-bot/core/config"
	"github.com/ilyosbek9531/expense-tracker-bot/core/database"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/credential"
)

// DefaultKeepaliveSchedule pings once a minute.
const DefaultKeepaliveSchedule = "0 * * * * *"

// AuthConfig controls registration and login.
type AuthConfig struct {
	PasswordMode string `yaml:"password_mode" envconfig:"AUTH_PASSWORD_MODE"`
	// SupportContact is shown to users waiting for approval.
	SupportContact string `yaml:"support_contact" envconfig:"AUTH_SUPPORT_CONTACT"`
	// RootUsername and RootPassword seed a ROOT account bound to
	// telegram.admin_id on startup. Empty disables seeding.
	RootUsername string `yaml:"root_username" envconfig:"AUTH_ROOT_USERNAME"`
	RootPassword string `yaml:"root_password" envconfig:"AUTH_ROOT_PASSWORD"`
}

// OpsConfig controls the health/metrics listener and the keepalive ping.
type OpsConfig struct {
	Listen            string `yaml:"listen" envconfig:"OPS_LISTEN"`
	KeepaliveURL      string `yaml:"keepalive_url" envconfig:"OPS_KEEPALIVE_URL"`
	KeepaliveSchedule string `yaml:"keepalive_schedule" envconfig:"OPS_KEEPALIVE_SCHEDULE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database"`
	Auth     AuthConfig      `yaml:"auth"`
	Ops      OpsConfig       `yaml:"ops"`
}

// CoreConfig exposes the embedded core section to the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, overlays the environment and normalizes the result.
// memory skips database validation for runs backed by the in-memory store.
func Load(path string, memory bool) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := Normalize(&cfg, memory); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func Normalize(cfg *Config, memory bool) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return err
	}
	if !memory {
		if err := cfg.Database.Normalize(); err != nil {
			return err
		}
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Auth.PasswordMode))
	if mode == "" {
		mode = credential.ModePlain
	}
	switch mode {
	case credential.ModePlain, credential.ModeBcrypt:
	default:
		return fmt.Errorf("invalid auth.password_mode %q; allowed: plain, bcrypt", cfg.Auth.PasswordMode)
	}
	cfg.Auth.PasswordMode = mode
	cfg.Auth.SupportContact = strings.TrimSpace(cfg.Auth.SupportContact)
	cfg.Auth.RootUsername = strings.TrimSpace(cfg.Auth.RootUsername)
	if cfg.Auth.RootUsername != "" {
		if cfg.Auth.RootPassword == "" {
			return fmt.Errorf("auth.root_password is required when auth.root_username is set")
		}
		if cfg.Telegram.AdminID == 0 {
			return fmt.Errorf("telegram.admin_id is required when auth.root_username is set")
		}
	}

	cfg.Ops.Listen = strings.TrimSpace(cfg.Ops.Listen)
	cfg.Ops.KeepaliveURL = strings.TrimSpace(cfg.Ops.KeepaliveURL)
	if strings.TrimSpace(cfg.Ops.KeepaliveSchedule) == "" {
		cfg.Ops.KeepaliveSchedule = DefaultKeepaliveSchedule
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(cfg.Ops.KeepaliveSchedule); err != nil {
		return fmt.Errorf("invalid ops.keepalive_schedule %q: %w", cfg.Ops.KeepaliveSchedule, err)
	}
	return nil
}
