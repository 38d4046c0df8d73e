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
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"
)

// User is an account holder. UserID is derived deterministically from
// Username (see pkg/secrets), so the mapping holds even before the record
// exists. Users are created on first successful registration and are
// immutable thereafter.
type User struct {
	// UserID is the WebAuthn user handle, 12 bytes.
	UserID []byte `json:"userId"`

	// Username is the human-chosen account name.
	Username string `json:"username"`
}

// Credential is a registered public-key credential owned by exactly one
// user. SignCount and UserVerified are mutated by authentication
// ceremonies; everything else is written once at registration.
type Credential struct {
	// CredentialID is the identifier assigned by the authenticator. It may
	// be arbitrarily long; storage addresses it by a fixed-size digest.
	CredentialID []byte `json:"credentialId"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"publicKey"`

	// SignCount is the authenticator's signature counter, used to detect
	// cloned credentials.
	SignCount uint32 `json:"signCount"`

	// UserVerified records whether the last ceremony verified the user.
	UserVerified bool `json:"userVerified"`

	// UserID is the owning user's handle.
	UserID []byte `json:"userId"`

	// Transports lists the transports the client declared for the
	// authenticator, when known.
	Transports []protocol.AuthenticatorTransport `json:"transports,omitempty"`
}

// CredentialUpdate carries the mutable credential fields. Nil fields are
// left untouched.
type CredentialUpdate struct {
	SignCount    *uint32
	UserVerified *bool
}

// Session is a signed-in browser session. Sessions are minted by
// successful ceremonies, deleted on sign-out and otherwise expire via the
// store TTL.
type Session struct {
	SessionID string `json:"sessionId"`
	UserID    []byte `json:"userId"`
}

// recognizedTransports is the accepted authenticator transport enumeration.
var recognizedTransports = map[protocol.AuthenticatorTransport]struct{}{
	protocol.BLE:       {},
	protocol.Hybrid:    {},
	protocol.Internal:  {},
	protocol.NFC:       {},
	protocol.SmartCard: {},
	protocol.USB:       {},
}

// ParseTransports validates a client-declared transport list against the
// recognized enumeration. Returns ErrUnsupportedTransport naming the
// offending value.
func ParseTransports(transports []string) ([]protocol.AuthenticatorTransport, error) {
	if len(transports) == 0 {
		return nil, nil
	}
	parsed := make([]protocol.AuthenticatorTransport, 0, len(transports))
	for _, t := range transports {
		transport := protocol.AuthenticatorTransport(t)
		if _, ok := recognizedTransports[transport]; !ok {
			return nil, WrapError("unexpected transport "+t, ErrUnsupportedTransport)
		}
		parsed = append(parsed, transport)
	}
	return parsed, nil
}

// ceremonyUser adapts a resolved identity and its stored credentials to the
// go-webauthn user contract for the duration of one ceremony.
type ceremonyUser struct {
	id          []byte
	name        string
	credentials []*Credential
}

// WebAuthnID returns the user handle.
func (u *ceremonyUser) WebAuthnID() []byte {
	return u.id
}

// WebAuthnName returns the username.
func (u *ceremonyUser) WebAuthnName() string {
	return u.name
}

// WebAuthnDisplayName returns the username; no separate display name is kept.
func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.name
}

// WebAuthnCredentials returns the user's registered credentials in the
// verifier's format.
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	creds := make([]webauthn.Credential, len(u.credentials))
	for i, c := range u.credentials {
		creds[i] = webauthn.Credential{
			ID:        c.CredentialID,
			PublicKey: c.PublicKey,
			Transport: c.Transports,
			Flags: webauthn.CredentialFlags{
				UserVerified: c.UserVerified,
			},
			Authenticator: webauthn.Authenticator{
				SignCount: c.SignCount,
			},
		}
	}
	return creds
}

// descriptors returns credential descriptors for exclusion/allow lists.
func (u *ceremonyUser) descriptors() []protocol.CredentialDescriptor {
	if len(u.credentials) == 0 {
		return nil
	}
	list := make([]protocol.CredentialDescriptor, len(u.credentials))
	for i, c := range u.credentials {
		list[i] = protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: c.CredentialID,
			Transport:    c.Transports,
		}
	}
	return list
}
