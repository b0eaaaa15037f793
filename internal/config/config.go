// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads accountd configuration.
//
// Sources are layered with later sources winning:
// built-in defaults, an optional YAML file, environment variables, then
// command-line flags that were explicitly set.
package config

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Environments.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// MinProductionSecretLen is the shortest signing secret accepted in production.
const MinProductionSecretLen = 32

// Config is the resolved accountd configuration.
type Config struct {
	Environment   string        `koanf:"environment"`
	HTTPAddr      string        `koanf:"http_addr"`
	MetricsAddr   string        `koanf:"metrics_addr"`
	DatabaseURL   string        `koanf:"database_url"`
	JWTSecret     string        `koanf:"jwt_secret"`
	SessionTTL    time.Duration `koanf:"session_ttl"`
	EmailTokenTTL time.Duration `koanf:"email_token_ttl"`
	CookieDomain  string        `koanf:"cookie_domain"`
	LogFormat     string        `koanf:"log_format"`
	LogLevel      string        `koanf:"log_level"`
	// DevOTP, when set, replaces random one-time passwords. Rejected in production.
	DevOTP      string `koanf:"dev_otp"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Environment:   EnvDevelopment,
		HTTPAddr:      ":8080",
		MetricsAddr:   "127.0.0.1:9100",
		SessionTTL:    24 * time.Hour,
		EmailTokenTTL: 15 * time.Minute,
		LogFormat:     "json",
		LogLevel:      "info",
	}
}

func (c Config) values() map[string]any {
	return map[string]any{
		"environment":     c.Environment,
		"http_addr":       c.HTTPAddr,
		"metrics_addr":    c.MetricsAddr,
		"database_url":    c.DatabaseURL,
		"jwt_secret":      c.JWTSecret,
		"session_ttl":     c.SessionTTL,
		"email_token_ttl": c.EmailTokenTTL,
		"cookie_domain":   c.CookieDomain,
		"log_format":      c.LogFormat,
		"log_level":       c.LogLevel,
		"dev_otp":         c.DevOTP,
		"auto_migrate":    c.AutoMigrate,
	}
}

// IsProduction reports whether the service runs in production mode.
func (c Config) IsProduction() bool { return c.Environment == EnvProduction }

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return invalid("environment", "must be development, test or production, got %q", c.Environment)
	}
	if c.DatabaseURL == "" {
		return invalid("database_url", "is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log_format", "must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.DevOTP != "" {
		if c.IsProduction() {
			return invalid("dev_otp", "is not allowed in production")
		}
		if !otpPattern.MatchString(c.DevOTP) {
			return invalid("dev_otp", "must be six digits")
		}
	}
	return nil
}

// ValidateServe checks the settings needed to serve requests.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.HTTPAddr == "" {
		return invalid("http_addr", "is required")
	}
	if c.JWTSecret == "" {
		return invalid("jwt_secret", "is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < MinProductionSecretLen {
		return invalid("jwt_secret", "must be at least %d bytes in production", MinProductionSecretLen)
	}
	if c.SessionTTL <= 0 {
		return invalid("session_ttl", "must be positive")
	}
	if c.EmailTokenTTL <= 0 {
		return invalid("email_token_ttl", "must be positive")
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("key", key).Errorf(key+" "+format, args...)
}

// envOverrides are read with caarlos0/env. Nil pointers mean unset.
type envOverrides struct {
	Environment   *string        `env:"ACCOUNTD_ENVIRONMENT"`
	HTTPAddr      *string        `env:"ACCOUNTD_HTTP_ADDR"`
	MetricsAddr   *string        `env:"ACCOUNTD_METRICS_ADDR"`
	DatabaseURL   *string        `env:"DATABASE_URL"`
	JWTSecret     *string        `env:"ACCOUNTD_JWT_SECRET"`
	SessionTTL    *time.Duration `env:"ACCOUNTD_SESSION_TTL"`
	EmailTokenTTL *time.Duration `env:"ACCOUNTD_EMAIL_TOKEN_TTL"`
	CookieDomain  *string        `env:"ACCOUNTD_COOKIE_DOMAIN"`
	LogFormat     *string        `env:"ACCOUNTD_LOG_FORMAT"`
	LogLevel      *string        `env:"ACCOUNTD_LOG_LEVEL"`
	DevOTP        *string        `env:"ACCOUNTD_DEV_OTP"`
	AutoMigrate   *bool          `env:"ACCOUNTD_AUTO_MIGRATE"`
}

func (e envOverrides) values() map[string]any {
	out := map[string]any{}
	set := func(key string, v any, ok bool) {
		if ok {
			out[key] = v
		}
	}
	set("environment", deref(e.Environment), e.Environment != nil)
	set("http_addr", deref(e.HTTPAddr), e.HTTPAddr != nil)
	set("metrics_addr", deref(e.MetricsAddr), e.MetricsAddr != nil)
	set("database_url", deref(e.DatabaseURL), e.DatabaseURL != nil)
	set("jwt_secret", deref(e.JWTSecret), e.JWTSecret != nil)
	set("session_ttl", deref(e.SessionTTL), e.SessionTTL != nil)
	set("email_token_ttl", deref(e.EmailTokenTTL), e.EmailTokenTTL != nil)
	set("cookie_domain", deref(e.CookieDomain), e.CookieDomain != nil)
	set("log_format", deref(e.LogFormat), e.LogFormat != nil)
	set("log_level", deref(e.LogLevel), e.LogLevel != nil)
	set("dev_otp", deref(e.DevOTP), e.DevOTP != nil)
	set("auto_migrate", deref(e.AutoMigrate), e.AutoMigrate != nil)
	return out
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("environment", d.Environment, "runtime environment (development, test, production)")
	fs.String("http-addr", d.HTTPAddr, "HTTP API listen address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("database-url", "", "PostgreSQL connection URL")
	fs.Duration("session-ttl", d.SessionTTL, "session token lifetime")
	fs.Duration("email-token-ttl", d.EmailTokenTTL, "email challenge token lifetime")
	fs.String("cookie-domain", "", "domain attribute for auth cookies")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.String("dev-otp", "", "fixed one-time password for non-production use")
	fs.Bool("auto-migrate", false, "apply pending migrations on startup")
}

// Source locates the configuration inputs.
type Source struct {
	// Path is an optional YAML file.
	Path string
	// Flags holds flags registered with RegisterFlags. May be nil.
	Flags *pflag.FlagSet
	// Environ overrides the process environment when non-nil.
	Environ map[string]string
}

// Load resolves configuration from src.
func Load(src Source) (Config, error) {
	k := koanf.New(".")

	for key, val := range Defaults().values() {
		if err := k.Set(key, val); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if src.Path != "" {
		if err := k.Load(file.Provider(src.Path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", src.Path).Wrap(err)
		}
	}

	environ := src.Environ
	if environ == nil {
		environ = env.ToMap(os.Environ())
	}
	var overrides envOverrides
	if err := env.ParseWithOptions(&overrides, env.Options{Environment: environ}); err != nil {
		return Config{}, oops.Code("CONFIG_ENV_INVALID").Wrap(err)
	}
	for key, val := range overrides.values() {
		if err := k.Set(key, val); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if src.Flags != nil {
		provider := posflag.ProviderWithFlag(src.Flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(src.Flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_INVALID").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return cfg, nil
}
