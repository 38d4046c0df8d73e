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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const testSecret = "MDEyMzQ1Njc4OWFiY2RlZg"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 9000
logging:
  level: debug
  format: text
secret:
  value: `+testSecret+`
passkey:
  rp_id: example.com
  rp_display_name: Example
  rp_origins:
    - https://example.com
  challenge_ttl: 30s
storage:
  backend: memory
  entry_ttl: 12h
ratelimit:
  enabled: true
  requests_per_minute: 30
  burst: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "example.com", cfg.Passkey.RPID)
	assert.Equal(t, Duration(30*time.Second), cfg.Passkey.ChallengeTTL)
	assert.Equal(t, Duration(12*time.Hour), cfg.Storage.EntryTTL)

	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, 5, cfg.RateLimit.Burst)

	// Defaults fill unspecified sections.
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	service := cfg.Passkey.ToServiceConfig(cfg.Storage.EntryTTL.Std())
	assert.Equal(t, 30*time.Second, service.ChallengeTTL)
	assert.Equal(t, 12*time.Hour, service.EntryTTL)
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var cfg ServerConfig
	require.NoError(t, yaml.Unmarshal([]byte("read_timeout: 5s"), &cfg))
	assert.Equal(t, Duration(5*time.Second), cfg.ReadTimeout)

	err := yaml.Unmarshal([]byte("read_timeout: banana"), &cfg)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("PASSKEY_HOST", "10.0.0.1")
	t.Setenv("PASSKEY_PORT", "8443")
	t.Setenv("PASSKEY_LOG_LEVEL", "warn")
	t.Setenv("PASSKEY_RP_ID", "env.example.com")
	t.Setenv("PASSKEY_RP_ORIGINS", "https://env.example.com, https://alt.example.com")
	t.Setenv("PASSKEY_SECRET", testSecret)

	cfg := DefaultConfig()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "10.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8443, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "env.example.com", cfg.Passkey.RPID)
	assert.Equal(t,
		[]string{"https://env.example.com", "https://alt.example.com"},
		cfg.Passkey.RPOrigins)
	assert.Equal(t, testSecret, cfg.Secret.Value)
}

func TestApplyEnvOverrides_BadPort(t *testing.T) {
	tests := []string{"not-a-number", "0", "70000"}
	for _, value := range tests {
		t.Run(value, func(t *testing.T) {
			t.Setenv("PASSKEY_PORT", value)
			cfg := DefaultConfig()
			ApplyEnvOverrides(cfg)
			assert.Equal(t, 8080, cfg.Server.Port)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Secret.Value = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "bad port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "invalid port",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "invalid log format",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Secret.Value = "" },
			wantErr: "server secret is required",
		},
		{
			name:    "unsupported backend",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: "unsupported storage backend",
		},
		{
			name: "token enabled without secret",
			mutate: func(c *Config) {
				c.Token = &TokenConfig{Enabled: true}
			},
			wantErr: "token secret is required",
		},
		{
			name:    "missing rp id",
			mutate:  func(c *Config) { c.Passkey.RPID = "" },
			wantErr: "passkey",
		},
		{
			name:    "ratelimit enabled without rate",
			mutate:  func(c *Config) { c.RateLimit.RequestsPerMinute = 0 },
			wantErr: "requests_per_minute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}
