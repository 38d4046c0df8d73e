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
	"errors"
	"fmt"
)

// Sentinel errors for ceremony and store operations.
var (
	// ErrMissingUsername is returned when neither an active session nor a
	// username identifies the ceremony target.
	ErrMissingUsername = errors.New("missing username")

	// ErrUnsupportedTransport is returned when a declared authenticator
	// transport is outside the recognized enumeration.
	ErrUnsupportedTransport = errors.New("unsupported transport")

	// ErrChallengeExpired is returned when a structurally valid challenge
	// is presented after its embedded expiration.
	ErrChallengeExpired = errors.New("challenge expired")

	// ErrIdentityMismatch is returned when the user identity embedded in a
	// challenge does not match the resolved ceremony identity.
	ErrIdentityMismatch = errors.New("user id did not match the challenge")

	// ErrAlreadyRegistered is returned when a user already exists for the
	// challenge identity but no session was presented.
	ErrAlreadyRegistered = errors.New("user already registered")

	// ErrCredentialExists is returned when the resulting credential ID is
	// already associated with a stored credential.
	ErrCredentialExists = errors.New("credential already registered")

	// ErrVerificationFailed is returned when the WebAuthn verifier rejects
	// an attestation or assertion response. The underlying detail is kept
	// for logs and deliberately not echoed to clients.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrClonedAuthenticator is returned on signature-counter regression.
	ErrClonedAuthenticator = errors.New("cloned authenticator detected")

	// ErrNoCredentials is returned when a user has no registered credentials.
	ErrNoCredentials = errors.New("user has no registered credentials")

	// ErrBadCSRF is returned when a state-changing request carries a
	// missing or incorrect CSRF token.
	ErrBadCSRF = errors.New("bad csrf token")

	// ErrUserNotFound is returned when a user cannot be found.
	ErrUserNotFound = errors.New("user not found")

	// ErrCredentialNotFound is returned when a credential cannot be found.
	ErrCredentialNotFound = errors.New("credential not found")

	// ErrSessionNotFound is returned when a session cannot be found or has
	// expired.
	ErrSessionNotFound = errors.New("session not found")
)

// PasskeyError wraps an error with the operation that produced it.
type PasskeyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *PasskeyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PasskeyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *PasskeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PasskeyError with the given operation and error.
func NewError(op string, err error) error {
	return &PasskeyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsUserNotFound returns true if the error indicates a user was not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound)
}

// IsCredentialNotFound returns true if the error indicates a credential was not found.
func IsCredentialNotFound(err error) bool {
	return errors.Is(err, ErrCredentialNotFound)
}

// IsSessionNotFound returns true if the error indicates a session was not found.
func IsSessionNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsVerificationFailed returns true if the error indicates verification failed.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}
