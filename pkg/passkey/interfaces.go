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

import "context"

// DataSource is the persistence contract for users, credentials and
// sessions. The canonical implementation is KVStore; alternate backends
// implement the same contract.
//
// Referential integrity between sessions/credentials and users is enforced
// by the service at issuance time, not by the store. Secondary indexes are
// best-effort accelerators: implementations must treat an index entry whose
// primary record is missing or unparsable as absent rather than failing.
type DataSource interface {
	// UserByID retrieves a user by their handle.
	// Returns ErrUserNotFound if the user does not exist.
	UserByID(ctx context.Context, userID []byte) (*User, error)

	// UserByUsername retrieves a user through the username index.
	// Returns ErrUserNotFound if the user does not exist.
	UserByUsername(ctx context.Context, username string) (*User, error)

	// CreateUser writes the primary user record and its username index.
	CreateUser(ctx context.Context, user *User) error

	// CreateCredential writes the credential record and its per-user
	// index entry.
	CreateCredential(ctx context.Context, cred *Credential) error

	// CredentialsForUser lists a user's credentials. Entries whose primary
	// record is missing or unparsable are skipped. Only a single listing
	// page is guaranteed; ordering is not.
	CredentialsForUser(ctx context.Context, userID []byte) ([]*Credential, error)

	// CredentialByID retrieves a credential by its authenticator-assigned ID.
	// Returns ErrCredentialNotFound if the credential does not exist.
	CredentialByID(ctx context.Context, credentialID []byte) (*Credential, error)

	// UpdateCredential applies a read-modify-write update. When no field
	// actually changes the record is not rewritten (and its TTL is not
	// refreshed).
	UpdateCredential(ctx context.Context, credentialID []byte, update CredentialUpdate) error

	// DeleteCredential removes the primary credential record. The per-user
	// index entry is left behind and tolerated by CredentialsForUser.
	DeleteCredential(ctx context.Context, credentialID []byte) error

	// CreateSession persists a session.
	CreateSession(ctx context.Context, session *Session) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, sessionID string) error

	// SessionByID retrieves a session.
	// Returns ErrSessionNotFound if the session does not exist or expired.
	SessionByID(ctx context.Context, sessionID string) (*Session, error)
}

// TokenGenerator optionally mints an API token after a successful ceremony,
// in addition to the cookie session. If absent, ceremonies return no token.
type TokenGenerator interface {
	// GenerateToken creates a token for the authenticated user.
	GenerateToken(ctx context.Context, user *User) (string, error)
}
