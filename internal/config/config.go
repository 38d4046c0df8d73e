// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads and validates the server configuration from a YAML
// file with environment variable overrides.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or "12h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Health  HealthConfig  `yaml:"health"`
	Secret  SecretConfig  `yaml:"secret"`
	Passkey PasskeyConfig `yaml:"passkey"`
	Token     *TokenConfig    `yaml:"token,omitempty"`
	Storage   StorageConfig   `yaml:"storage"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls the health check endpoint
type HealthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// SecretConfig carries the server secret every derivation hangs off of.
// The secret is base64url-encoded and must decode to at least 16 bytes.
// Prefer the PASSKEY_SECRET environment variable over the config file.
type SecretConfig struct {
	Value string `yaml:"value"`
}

// PasskeyConfig contains the relying party and ceremony settings.
type PasskeyConfig struct {
	RPID            string   `yaml:"rp_id"`
	RPDisplayName   string   `yaml:"rp_display_name"`
	RPOrigins       []string `yaml:"rp_origins"`
	ChallengeTTL    Duration `yaml:"challenge_ttl"`
	CeremonyTimeout Duration `yaml:"ceremony_timeout"`
	Debug           bool     `yaml:"debug"`
}

// ToServiceConfig converts to the passkey service configuration.
func (p PasskeyConfig) ToServiceConfig(entryTTL time.Duration) *passkey.Config {
	return &passkey.Config{
		RPID:            p.RPID,
		RPDisplayName:   p.RPDisplayName,
		RPOrigins:       p.RPOrigins,
		ChallengeTTL:    p.ChallengeTTL.Std(),
		CeremonyTimeout: p.CeremonyTimeout.Std(),
		EntryTTL:        entryTTL,
		Debug:           p.Debug,
	}
}

// TokenConfig controls the optional JWT minted after successful ceremonies.
type TokenConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Secret    string   `yaml:"secret"`
	Issuer    string   `yaml:"issuer"`
	Audience  []string `yaml:"audience"`
	ExpiresIn Duration `yaml:"expires_in"`
}

// RateLimitConfig controls per-client rate limiting on the ceremony
// endpoints.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// StorageConfig controls the key-value backend for users, credentials and
// sessions.
type StorageConfig struct {
	Backend  string   `yaml:"backend"`
	EntryTTL Duration `yaml:"entry_ttl"`
}

// DefaultConfig returns a configuration suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			Enabled: true,
			Path:    "/health",
		},
		Passkey: PasskeyConfig{
			RPID:          "localhost",
			RPDisplayName: "go-passkey",
			RPOrigins:     []string{"http://localhost:8080"},
		},
		Storage: StorageConfig{
			Backend:  "memory",
			EntryTTL: Duration(24 * time.Hour),
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			Burst:             10,
		},
	}
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnvOverrides applies environment variable overrides to the
// configuration.
func ApplyEnvOverrides(cfg *Config) {
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portValue := os.Getenv("PASSKEY_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portValue, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portValue, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Relying party
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.Passkey.RPID = rpID
	}
	if origins := os.Getenv("PASSKEY_RP_ORIGINS"); origins != "" {
		cfg.Passkey.RPOrigins = splitAndTrim(origins)
	}

	// Secrets stay out of config files in production.
	if secret := os.Getenv("PASSKEY_SECRET"); secret != "" {
		cfg.Secret.Value = secret
	}
	if cfg.Token != nil {
		if tokenSecret := os.Getenv("PASSKEY_TOKEN_SECRET"); tokenSecret != "" {
			cfg.Token.Secret = tokenSecret
		}
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	if c.Secret.Value == "" {
		return fmt.Errorf("server secret is required (set PASSKEY_SECRET or secret.value)")
	}

	if c.Storage.Backend != "memory" {
		return fmt.Errorf("unsupported storage backend: %s", c.Storage.Backend)
	}

	if c.Token != nil && c.Token.Enabled && c.Token.Secret == "" {
		return fmt.Errorf("token secret is required when token issuance is enabled")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute < 1 {
		return fmt.Errorf("ratelimit requests_per_minute must be positive")
	}

	service := c.Passkey.ToServiceConfig(c.Storage.EntryTTL.Std())
	service.SetDefaults()
	if err := service.Validate(); err != nil {
		return fmt.Errorf("passkey: %w", err)
	}

	return nil
}
