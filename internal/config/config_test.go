package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "payables.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_DefaultsAndFlags(t *testing.T) {
	cfg, err := Load([]string{"-secret", "s3cr3t", "-http-addr", ":9090", "-storage-driver", "sqlite", "-dsn", "file:test.db"})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, DriverSQLite, cfg.Storage.Driver)
	require.Equal(t, 10*time.Hour, cfg.Auth.TTL())
	require.Equal(t, "none", cfg.Auth.CredentialPolicy)
	require.Equal(t, StoreStatic, cfg.Auth.PrincipalStore)
	require.False(t, cfg.S3.Enabled())
}

func TestLoad_FileThenFlagOverride(t *testing.T) {
	path := writeFile(t, `
http_addr: ":7000"
storage:
  driver: postgres
  dsn: postgres://u:p@db:5432/payables
  connect_timeout: 45s
auth:
  secret: from-file
  ttl_seconds: 600
  credential_policy: argon2
  principal_store: postgres
  bootstrap_user: admin
  bootstrap_password: admin-pass
log:
  level: debug
  dev: true
s3:
  bucket: imports
  region: us-east-1
  endpoint: http://minio:9000
`)
	cfg, err := Load([]string{"-config", path, "-ttl-seconds=120"})
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.HTTPAddr)
	require.Equal(t, 45*time.Second, cfg.Storage.ConnectTimeout)
	require.Equal(t, "from-file", cfg.Auth.Secret)
	require.Equal(t, 2*time.Minute, cfg.Auth.TTL())
	require.Equal(t, "admin", cfg.Auth.BootstrapUser)
	require.True(t, cfg.Log.Dev)
	require.True(t, cfg.S3.Enabled())
	require.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "auth:\n  secret: from-file\n")
	t.Setenv(EnvSecret, "from-env")
	t.Setenv(EnvDSN, "postgres://env")

	cfg, err := Load([]string{"--config=" + path})
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Auth.Secret)
	require.Equal(t, "postgres://env", cfg.Storage.DSN)

	cfg, err = Load([]string{"--config=" + path, "-secret", "from-flag"})
	require.NoError(t, err)
	require.Equal(t, "from-flag", cfg.Auth.Secret)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)

	_, err = Load([]string{"-config", writeFile(t, "auth: [")})
	require.Error(t, err)

	_, err = Load([]string{"-no-such-flag"})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		c := Default()
		c.Auth.Secret = "k"
		return c
	}
	require.NoError(t, func() error { c := base(); return c.Validate() }())

	cases := map[string]func(*Config){
		"missing secret":      func(c *Config) { c.Auth.Secret = "" },
		"zero ttl":            func(c *Config) { c.Auth.TTLSeconds = 0 },
		"unknown policy":      func(c *Config) { c.Auth.CredentialPolicy = "bcrypt" },
		"unknown driver":      func(c *Config) { c.Storage.Driver = "mysql" },
		"empty dsn":           func(c *Config) { c.Storage.DSN = "" },
		"unknown store":       func(c *Config) { c.Auth.PrincipalStore = "ldap" },
		"argon2 with static":  func(c *Config) { c.Auth.CredentialPolicy = "argon2" },
		"pg store on sqlite":  func(c *Config) { c.Auth.PrincipalStore = StorePostgres; c.Storage.Driver = DriverSQLite },
		"bootstrap on static": func(c *Config) { c.Auth.BootstrapUser = "a"; c.Auth.BootstrapPassword = "b" },
		"bootstrap no pass":   func(c *Config) { c.Auth.PrincipalStore = StorePostgres; c.Auth.BootstrapUser = "a" },
		"bad log level":       func(c *Config) { c.Log.Level = "loud" },
		"s3 without region":   func(c *Config) { c.S3.Bucket = "b" },
	}
	for name, mutate := range cases {
		c := base()
		mutate(&c)
		require.Error(t, c.Validate(), name)
	}
}

func TestLog_Logger(t *testing.T) {
	l, err := Log{Level: "warn"}.Logger()
	require.NoError(t, err)
	require.False(t, l.Core().Enabled(zapcore.InfoLevel))
	require.True(t, l.Core().Enabled(zapcore.WarnLevel))

	_, err = Log{Level: "nope"}.Logger()
	require.Error(t, err)
}
