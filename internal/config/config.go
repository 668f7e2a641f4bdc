// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package config loads service configuration from defaults, an optional
// YAML file, and command-line flags, in increasing order of precedence.
package config

import (
	"net/netip"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Default values. The metrics server binds loopback; exposing Prometheus
// internals on a public interface is an explicit operator decision.
const (
	DefaultListenAddr  = "127.0.0.1:8080"
	DefaultMetricsAddr = "127.0.0.1:9100"
	DefaultLogFormat   = "json"

	defaultSessionRefresh  = 15 * 24 * time.Hour
	defaultRateLimitMax    = 3
	defaultRateLimitWindow = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultCleanupInterval = time.Hour
)

// Config is the full service configuration.
type Config struct {
	ListenAddr  string `koanf:"listen_addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	DatabaseURL string `koanf:"database_url"`
	LogFormat   string `koanf:"log_format"`

	// SecureCookies controls the Secure attribute on session cookies.
	// Disable only for plain-HTTP local development.
	SecureCookies bool `koanf:"secure_cookies"`

	// TrustedProxies lists peer addresses (IP or CIDR) whose forwarding
	// headers are honored for client IP extraction.
	TrustedProxies []string `koanf:"trusted_proxies"`

	SessionRefreshInterval time.Duration `koanf:"session_refresh_interval"`
	RateLimitMax           int           `koanf:"rate_limit_max"`
	RateLimitWindow        time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout        time.Duration `koanf:"shutdown_timeout"`
	CleanupInterval        time.Duration `koanf:"cleanup_interval"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"listen_addr":              DefaultListenAddr,
		"metrics_addr":             DefaultMetricsAddr,
		"database_url":             "",
		"log_format":               DefaultLogFormat,
		"secure_cookies":           true,
		"trusted_proxies":          []string{},
		"session_refresh_interval": defaultSessionRefresh,
		"rate_limit_max":           defaultRateLimitMax,
		"rate_limit_window":        defaultRateLimitWindow,
		"shutdown_timeout":         defaultShutdownTimeout,
		"cleanup_interval":         defaultCleanupInterval,
	}
}

// Load builds a Config from defaults, then the YAML file at path (if path
// is non-empty), then the given flag set (if non-nil). DATABASE_URL from
// the environment fills the database URL when nothing else sets it.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_UNMARSHAL_FAILED").Wrap(err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return oops.Code("CONFIG_INVALID").Errorf("listen_addr is required")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if c.SessionRefreshInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session_refresh_interval must be positive")
	}
	if c.RateLimitMax <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("rate_limit_max must be positive")
	}
	if c.RateLimitWindow <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("rate_limit_window must be positive")
	}
	if c.CleanupInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("cleanup_interval must be positive")
	}
	for _, p := range c.TrustedProxies {
		if err := validateProxyEntry(p); err != nil {
			return err
		}
	}
	return nil
}

// validateProxyEntry accepts a bare IP or a CIDR prefix.
func validateProxyEntry(entry string) error {
	if _, err := netip.ParseAddr(entry); err == nil {
		return nil
	}
	if _, err := netip.ParsePrefix(entry); err == nil {
		return nil
	}
	return oops.Code("CONFIG_INVALID").
		With("entry", entry).
		Errorf("trusted_proxies entry %q is not an IP or CIDR", entry)
}

// RegisterFlags binds the config keys to flags on the given set. Flag
// names match the koanf keys exactly, so the posflag provider in Load
// needs no renaming.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("listen_addr", DefaultListenAddr, "API listen address")
	flags.String("metrics_addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	flags.String("database_url", "", "PostgreSQL connection URL (default: $DATABASE_URL)")
	flags.String("log_format", DefaultLogFormat, "log format (json or text)")
	flags.Bool("secure_cookies", true, "set the Secure attribute on session cookies")
	flags.StringSlice("trusted_proxies", nil, "peers whose forwarding headers are honored (IP or CIDR)")
	flags.Duration("session_refresh_interval", defaultSessionRefresh, "session sliding-renewal interval")
	flags.Int("rate_limit_max", defaultRateLimitMax, "sign-in attempts allowed per window")
	flags.Duration("rate_limit_window", defaultRateLimitWindow, "sign-in rate limit window")
	flags.Duration("shutdown_timeout", defaultShutdownTimeout, "graceful shutdown timeout")
	flags.Duration("cleanup_interval", defaultCleanupInterval, "expired session/token sweep interval")
}
