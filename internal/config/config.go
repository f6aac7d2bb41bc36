// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads authd settings from defaults, an optional YAML file,
// the environment and command-line flags, in that order of precedence.
package config

import (
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every authd environment variable.
const EnvPrefix = "AUTHD_"

// Environments.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config holds every authd setting.
type Config struct {
	Listen               string        `koanf:"listen"`
	Env                  string        `koanf:"env"`
	ClientOrigins        []string      `koanf:"client-origins"`
	PreviewOriginPattern string        `koanf:"preview-origin-pattern"`
	DatabaseURL          string        `koanf:"database-url"`
	SessionStore         string        `koanf:"session-store"`
	UserStore            string        `koanf:"user-store"`
	SessionSweepInterval time.Duration `koanf:"session-sweep-interval"`
	MetricsAddr          string        `koanf:"metrics-addr"`
	LogFormat            string        `koanf:"log-format"`
	AutoMigrate          bool          `koanf:"auto-migrate"`
	ShutdownTimeout      time.Duration `koanf:"shutdown-timeout"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:               ":5000",
		Env:                  EnvDevelopment,
		ClientOrigins:        []string{"http://localhost:3000"},
		SessionStore:         BackendMemory,
		UserStore:            BackendPostgres,
		SessionSweepInterval: 10 * time.Minute,
		MetricsAddr:          "127.0.0.1:9100",
		LogFormat:            "json",
		AutoMigrate:          true,
		ShutdownTimeout:      10 * time.Second,
	}
}

func (c Config) asMap() map[string]any {
	return map[string]any{
		"listen":                 c.Listen,
		"env":                    c.Env,
		"client-origins":         c.ClientOrigins,
		"preview-origin-pattern": c.PreviewOriginPattern,
		"database-url":           c.DatabaseURL,
		"session-store":          c.SessionStore,
		"user-store":             c.UserStore,
		"session-sweep-interval": c.SessionSweepInterval.String(),
		"metrics-addr":           c.MetricsAddr,
		"log-format":             c.LogFormat,
		"auto-migrate":           c.AutoMigrate,
		"shutdown-timeout":       c.ShutdownTimeout.String(),
	}
}

// RegisterFlags adds one flag per setting to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("listen", d.Listen, "HTTP listen address")
	fs.String("env", d.Env, "runtime environment (development, production or test)")
	fs.StringSlice("client-origins", d.ClientOrigins, "origins allowed by CORS")
	fs.String("preview-origin-pattern", d.PreviewOriginPattern, "regular expression for extra CORS origins")
	fs.String("database-url", d.DatabaseURL, "PostgreSQL connection URL")
	fs.String("session-store", d.SessionStore, "session backend (memory or postgres)")
	fs.String("user-store", d.UserStore, "user backend (postgres or memory)")
	fs.Duration("session-sweep-interval", d.SessionSweepInterval, "interval between expired session sweeps")
	fs.String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", d.LogFormat, "log format (json or text)")
	fs.Bool("auto-migrate", d.AutoMigrate, "apply database migrations on startup")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown timeout")
}

// Options selects the sources Load reads.
type Options struct {
	// File is an optional YAML config file.
	File string
	// DotEnv files are loaded into the process environment first.
	// Missing files are ignored. Nil means ".env".
	DotEnv []string
	// Flags overrides every other source for flags the user set.
	Flags *pflag.FlagSet
}

// legacyEnv maps unprefixed variables to keys. They lose to AUTHD_ ones.
var legacyEnv = map[string]string{
	"PORT":          "listen",
	"CLIENT_ORIGIN": "client-origins",
	"NODE_ENV":      "env",
	"DATABASE_URL":  "database-url",
}

// Load assembles and validates a Config.
func Load(opts Options) (*Config, error) {
	dotenv := opts.DotEnv
	if dotenv == nil {
		dotenv = []string{".env"}
	}
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_DOTENV_FAILED").With("file", path).Wrap(err)
		}
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults().asMap(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "defaults").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("file", opts.File).
				Wrap(err)
		}
	}

	legacy := env.ProviderWithValue("", ".", func(name, value string) (string, any) {
		key, ok := legacyEnv[name]
		if !ok || value == "" {
			return "", nil
		}
		if key == "listen" && !strings.Contains(value, ":") {
			value = ":" + value
		}
		return key, envValue(key, value)
	})
	if err := k.Load(legacy, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "legacy env").Wrap(err)
	}

	prefixed := env.ProviderWithValue(EnvPrefix, ".", func(name, value string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(name, EnvPrefix)), "_", "-")
		return key, envValue(key, value)
	})
	if err := k.Load(prefixed, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.Provider(opts.Flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envValue(key, value string) any {
	if key != "client-origins" {
		return value
	}
	var origins []string
	for _, o := range strings.Split(value, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...any) error {
		return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
	}

	if c.Listen == "" {
		return invalid("listen", "listen is required")
	}
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return invalid("env", "env must be development, production or test, got %q", c.Env)
	}
	for _, field := range []struct{ name, value string }{
		{"session-store", c.SessionStore},
		{"user-store", c.UserStore},
	} {
		if field.value != BackendMemory && field.value != BackendPostgres {
			return invalid(field.name, "%s must be 'memory' or 'postgres', got %q", field.name, field.value)
		}
	}
	if c.NeedsDatabase() && c.DatabaseURL == "" {
		return invalid("database-url", "database-url is required for the postgres backend")
	}
	if c.PreviewOriginPattern != "" {
		if _, err := regexp.Compile(c.PreviewOriginPattern); err != nil {
			return invalid("preview-origin-pattern", "preview-origin-pattern does not compile: %v", err)
		}
	}
	if c.SessionSweepInterval <= 0 {
		return invalid("session-sweep-interval", "session-sweep-interval must be positive")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return invalid("log-format", "log-format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown-timeout", "shutdown-timeout must be positive")
	}
	return nil
}

// IsProduction reports whether cookies must be cross-site and secure.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// NeedsDatabase reports whether any backend is PostgreSQL.
func (c *Config) NeedsDatabase() bool {
	return c.SessionStore == BackendPostgres || c.UserStore == BackendPostgres
}
