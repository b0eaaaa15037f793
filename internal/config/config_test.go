// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/accountd/pkg/errutil"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "accountd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(Source{Environ: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_UnchangedFlagsKeepDefaults(t *testing.T) {
	cfg, err := Load(Source{Flags: newFlags(t), Environ: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeYAML(t, strings.Join([]string{
		"environment: test",
		"http_addr: ':7000'",
		"database_url: postgres://file/db",
		"jwt_secret: from-file",
		"session_ttl: 2h",
		"log_format: text",
	}, "\n"))

	environ := map[string]string{
		"DATABASE_URL":        "postgres://env/db",
		"ACCOUNTD_JWT_SECRET": "from-env",
		"ACCOUNTD_HTTP_ADDR":  ":7001",
	}
	flags := newFlags(t, "--http-addr", ":7002", "--auto-migrate")

	cfg, err := Load(Source{Path: path, Flags: flags, Environ: environ})
	require.NoError(t, err)

	assert.Equal(t, EnvTest, cfg.Environment, "file overrides default")
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL, "file duration string is decoded")
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL, "env overrides file")
	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, ":7002", cfg.HTTPAddr, "flag overrides env")
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, 15*time.Minute, cfg.EmailTokenTTL, "untouched default survives")
}

func TestLoad_EnvTypedValues(t *testing.T) {
	cfg, err := Load(Source{Environ: map[string]string{
		"ACCOUNTD_ENVIRONMENT":     "production",
		"ACCOUNTD_EMAIL_TOKEN_TTL": "5m",
		"ACCOUNTD_AUTO_MIGRATE":    "true",
	}})
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 5*time.Minute, cfg.EmailTokenTTL)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoad_InvalidEnvValue(t *testing.T) {
	_, err := Load(Source{Environ: map[string]string{"ACCOUNTD_SESSION_TTL": "forever"}})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_ENV_INVALID")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(Source{Path: filepath.Join(t.TempDir(), "missing.yaml"), Environ: map[string]string{}})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func validConfig() Config {
	cfg := Defaults()
	cfg.DatabaseURL = "postgres://localhost/accountd"
	cfg.JWTSecret = "dev-secret"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown environment", func(c *Config) { c.Environment = "staging" }, "environment"},
		{"missing database", func(c *Config) { c.DatabaseURL = "" }, "database_url"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"dev otp not digits", func(c *Config) { c.DevOTP = "12ab56" }, "dev_otp"},
		{"dev otp in production", func(c *Config) {
			c.Environment = EnvProduction
			c.DevOTP = "123456"
		}, "dev_otp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.key == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}
}

func TestValidateServe(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"valid", func(*Config) {}, ""},
		{"dev otp accepted outside production", func(c *Config) { c.DevOTP = "123456" }, ""},
		{"missing secret", func(c *Config) { c.JWTSecret = "" }, "jwt_secret"},
		{"short production secret", func(c *Config) { c.Environment = EnvProduction }, "jwt_secret"},
		{"long production secret", func(c *Config) {
			c.Environment = EnvProduction
			c.JWTSecret = strings.Repeat("s", MinProductionSecretLen)
		}, ""},
		{"missing http addr", func(c *Config) { c.HTTPAddr = "" }, "http_addr"},
		{"zero session ttl", func(c *Config) { c.SessionTTL = 0 }, "session_ttl"},
		{"negative email ttl", func(c *Config) { c.EmailTokenTTL = -time.Second }, "email_token_ttl"},
		{"base validation applies", func(c *Config) { c.DatabaseURL = "" }, "database_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.ValidateServe()
			if tt.key == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}
}
