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

// Package challenge assembles and verifies self-contained ceremony
// challenges. A challenge binds a random nonce, an absolute expiration and
// a target user identity, sealed with a MAC under the server secret. Because
// the MAC is verifiable statelessly, issued challenges need no server-side
// tracking: any process holding the secret can verify a token another
// process issued. The trade-off is that an outstanding challenge cannot be
// forcibly invalidated before its expiry.
package challenge

import (
	"crypto/hmac"
	"encoding/binary"
	"errors"

	"github.com/jeremyhahn/go-passkey/pkg/secrets"
)

// NonceLength is the byte length of the random nonce.
const NonceLength = 16

// Canonical token layout: fixed field order and widths so a given
// (nonce, expiration, userId) triple has exactly one byte representation.
//
//	nonce[16] || expirationEpochMillis uint64 BE [8] || userId[12] || tag[32]
const (
	expirationLength = 8
	userIDLength     = secrets.DerivedLength
	tagLength        = 32
	payloadLength    = NonceLength + expirationLength + userIDLength
	tokenLength      = payloadLength + tagLength
)

var (
	// ErrMalformedChallenge is returned when the byte layout cannot be parsed.
	ErrMalformedChallenge = errors.New("challenge: malformed token")

	// ErrInvalidChallenge is returned when the MAC does not match the
	// claimed fields.
	ErrInvalidChallenge = errors.New("challenge: invalid signature")

	// ErrBadUserID is returned when assembling with a user identifier of
	// the wrong width.
	ErrBadUserID = errors.New("challenge: user id must be 12 bytes")
)

// Assemble serializes the challenge fields into the canonical layout and
// appends a MAC computed over that layout. The expiration is an absolute
// epoch timestamp in milliseconds; Assemble does not interpret it.
func Assemble(key secrets.Key, nonce [NonceLength]byte, expiration int64, userID []byte) ([]byte, error) {
	if len(userID) != userIDLength {
		return nil, ErrBadUserID
	}

	token := make([]byte, 0, tokenLength)
	token = append(token, nonce[:]...)
	token = binary.BigEndian.AppendUint64(token, uint64(expiration))
	token = append(token, userID...)
	token = append(token, key.MAC(token)...)
	return token, nil
}

// DisassembleAndVerify parses a token, recomputes the MAC over the claimed
// fields and compares in constant time. It returns the embedded user
// identifier and expiration. Expiration is NOT checked here; callers apply
// their own expiry policy so the same primitive serves challenges with
// different lifetimes.
func DisassembleAndVerify(key secrets.Key, token []byte) (userID []byte, expiration int64, err error) {
	if len(token) != tokenLength {
		return nil, 0, ErrMalformedChallenge
	}

	payload := token[:payloadLength]
	tag := token[payloadLength:]
	if !hmac.Equal(tag, key.MAC(payload)) {
		return nil, 0, ErrInvalidChallenge
	}

	expiration = int64(binary.BigEndian.Uint64(token[NonceLength : NonceLength+expirationLength]))
	userID = make([]byte, userIDLength)
	copy(userID, token[NonceLength+expirationLength:payloadLength])
	return userID, expiration, nil
}
