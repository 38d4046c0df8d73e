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

package passkey

import (
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"
)

// Config configures the passkey service.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	// Example: "example.com"
	RPID string `yaml:"rp_id" json:"rp_id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"rp_display_name" json:"rp_display_name"`

	// RPOrigins are the allowed origins for WebAuthn operations.
	// Example: []string{"https://example.com"}
	RPOrigins []string `yaml:"rp_origins" json:"rp_origins"`

	// ChallengeTTL is how long an issued challenge stays acceptable.
	// Default: 60 seconds.
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl"`

	// CeremonyTimeout is the client-side ceremony timeout conveyed in
	// options. Default: 120 seconds.
	CeremonyTimeout time.Duration `yaml:"ceremony_timeout" json:"ceremony_timeout"`

	// EntryTTL is the store lifetime for users, credentials and sessions.
	// Default: 24 hours.
	EntryTTL time.Duration `yaml:"entry_ttl" json:"entry_ttl"`

	// Debug enables verbose verifier logging.
	Debug bool `yaml:"debug" json:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if len(c.RPOrigins) == 0 {
		return fmt.Errorf("at least one RPOrigin is required")
	}
	if c.ChallengeTTL < 0 || c.CeremonyTimeout < 0 || c.EntryTTL < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = 60 * time.Second
	}
	if c.CeremonyTimeout == 0 {
		c.CeremonyTimeout = 120 * time.Second
	}
	if c.EntryTTL == 0 {
		c.EntryTTL = DefaultEntryTTL
	}
}

// ToWebAuthnConfig converts the Config to the go-webauthn library's
// configuration. Ceremony timeouts are conveyed to clients but not enforced
// by the library; expiry enforcement rides on the challenge's embedded
// expiration instead.
func (c *Config) ToWebAuthnConfig() *webauthn.Config {
	return &webauthn.Config{
		RPID:          c.RPID,
		RPDisplayName: c.RPDisplayName,
		RPOrigins:     c.RPOrigins,
		Debug:         c.Debug,
		Timeouts: webauthn.TimeoutsConfig{
			Login: webauthn.TimeoutConfig{
				Timeout:    c.CeremonyTimeout,
				TimeoutUVD: c.CeremonyTimeout,
			},
			Registration: webauthn.TimeoutConfig{
				Timeout:    c.CeremonyTimeout,
				TimeoutUVD: c.CeremonyTimeout,
			},
		},
	}
}
