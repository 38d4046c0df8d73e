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

// Package secrets derives deterministic identifiers and tokens from a
// process-wide symmetric key using HMAC-SHA-256. The key is imported once
// at startup; a missing or undecodable key is a fatal startup condition,
// not a per-request error.
package secrets

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
)

// DerivedLength is the byte length of derived identifiers and tokens.
const DerivedLength = 12

// MinKeyLength is the minimum acceptable key material length in bytes.
const MinKeyLength = 16

// ErrKeyTooShort is returned when the imported key material is too short
// to provide a meaningful security margin.
var ErrKeyTooShort = errors.New("secrets: key material too short")

// Key holds imported HMAC-SHA-256 key material. The zero value is unusable;
// construct with Import or NewKey.
type Key struct {
	material []byte
}

// Import decodes base64url (unpadded) key material, typically sourced from
// the environment at process start.
func Import(encoded string) (Key, error) {
	material, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return Key{}, fmt.Errorf("secrets: decode key material: %w", err)
	}
	return NewKey(material)
}

// NewKey wraps raw key material.
func NewKey(material []byte) (Key, error) {
	if len(material) < MinKeyLength {
		return Key{}, ErrKeyTooShort
	}
	k := make([]byte, len(material))
	copy(k, material)
	return Key{material: k}, nil
}

// IsZero reports whether the key holds no material.
func (k Key) IsZero() bool {
	return len(k.material) == 0
}

// mac computes HMAC-SHA-256 over the message and returns the full tag.
func (k Key) mac(message []byte) []byte {
	h := hmac.New(sha256.New, k.material)
	h.Write(message)
	return h.Sum(nil)
}

// MAC computes the full HMAC-SHA-256 tag over the message. Used by the
// challenge codec so all keyed material flows through a single key import.
func (k Key) MAC(message []byte) []byte {
	return k.mac(message)
}

// UsernameToID derives the user identifier for a username. The result is
// deterministic for a fixed key: the same username always maps to the same
// identifier, even before any user record exists.
func (k Key) UsernameToID(username string) []byte {
	return k.mac([]byte("username:" + username))[:DerivedLength]
}

// DeriveCSRFToken derives the CSRF token for a session identifier,
// base64url-encoded for embedding in pages and form bodies.
func (k Key) DeriveCSRFToken(sessionID string) string {
	tag := k.mac([]byte("csrf:" + sessionID))[:DerivedLength]
	return base64.RawURLEncoding.EncodeToString(tag)
}

// VerifyCSRFToken reports whether token is the CSRF token for sessionID.
// The comparison is constant-time; a length mismatch fails without
// revealing how much of the token matched.
func (k Key) VerifyCSRFToken(sessionID, token string) bool {
	expected := k.DeriveCSRFToken(sessionID)
	return subtle.ConstantTimeEq(int32(len(expected)), int32(len(token))) == 1 &&
		subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 1
}
