package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilyosbek9531/expense-tracker-bot/core/database"
	"github.com/ilyosbek9531/expense-tracker-bot/internal/credential"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "123:abc"
database:
  driver: sqlite
  path: /tmp/bot.db
`)
	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, credential.ModePlain, cfg.Auth.PasswordMode)
	assert.Equal(t, DefaultKeepaliveSchedule, cfg.Ops.KeepaliveSchedule)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: "from-file"
auth:
  password_mode: plain
`)
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("AUTH_PASSWORD_MODE", "BCRYPT")
	t.Setenv("OPS_LISTEN", ":9090")

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, credential.ModeBcrypt, cfg.Auth.PasswordMode)
	assert.Equal(t, ":9090", cfg.Ops.Listen)
}

func TestNormalizeErrors(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.Telegram.Token = "t"
		return cfg
	}

	cfg := base()
	assert.Error(t, Normalize(cfg, false), "postgres without host")

	cfg = base()
	cfg.Auth.PasswordMode = "md5"
	assert.ErrorContains(t, Normalize(cfg, true), "password_mode")

	cfg = base()
	cfg.Ops.KeepaliveSchedule = "hourly-ish"
	assert.ErrorContains(t, Normalize(cfg, true), "keepalive_schedule")

	cfg = base()
	cfg.Auth.RootUsername = "root"
	assert.ErrorContains(t, Normalize(cfg, true), "root_password")

	cfg.Auth.RootPassword = "pw"
	assert.ErrorContains(t, Normalize(cfg, true), "admin_id")

	cfg.Telegram.AdminID = 42
	assert.NoError(t, Normalize(cfg, true))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	assert.Error(t, err)
}
