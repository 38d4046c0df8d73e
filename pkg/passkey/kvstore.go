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
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

// credentialDigestLength bounds the credential storage key: the key is the
// base64url encoding of this many leading bytes of SHA-256(credentialId),
// re-derivable from the credential ID alone.
const credentialDigestLength = 16

// DefaultEntryTTL is the store lifetime applied to users, credentials and
// sessions when none is configured.
const DefaultEntryTTL = 24 * time.Hour

// KVStore implements DataSource over a key-value Backend with
// content-addressed keys and TTL-based expiry. All writes are independent
// per-key operations; primary/secondary index pairs are not transactional
// and partial visibility between them is tolerated by the read paths.
type KVStore struct {
	backend storage.Backend
	ttl     time.Duration
}

// NewKVStore creates a store over the given backend. A non-positive ttl
// falls back to DefaultEntryTTL.
func NewKVStore(backend storage.Backend, ttl time.Duration) *KVStore {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &KVStore{
		backend: backend,
		ttl:     ttl,
	}
}

// Stored record shapes. Byte fields are base64url-encoded so records stay
// readable in KV inspection tools.

type storedUser struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type storedCredential struct {
	CredentialID string                            `json:"credentialId"`
	PublicKey    string                            `json:"publicKey"`
	SignCount    uint32                            `json:"signCount"`
	UserVerified bool                              `json:"userVerified"`
	UserID       string                            `json:"userId"`
	Transports   []protocol.AuthenticatorTransport `json:"transports,omitempty"`
}

type storedSession struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

func encodeID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

// credentialDigest crushes an arbitrarily long credential ID into a fixed
// size storage key component.
func credentialDigest(credentialID []byte) string {
	sum := sha256.Sum256(credentialID)
	return encodeID(sum[:credentialDigestLength])
}

func userKey(userID []byte) string {
	return "/user/" + encodeID(userID)
}

func usernameKey(username string) string {
	return "/username/" + username
}

func credentialKey(digest string) string {
	return "/credential/" + digest
}

func userCredentialPrefix(userID []byte) string {
	return "/user/" + encodeID(userID) + "/credential/"
}

func sessionKey(sessionID string) string {
	return "/session/" + sessionID
}

// UserByID retrieves a user by their handle.
func (s *KVStore) UserByID(ctx context.Context, userID []byte) (*User, error) {
	return s.userAt(userKey(userID))
}

// UserByUsername resolves the username index, then the primary record. An
// index entry without a live primary reads as not found.
func (s *KVStore) UserByUsername(ctx context.Context, username string) (*User, error) {
	encodedID, err := s.backend.Get(usernameKey(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get username index", err)
	}
	return s.userAt("/user/" + string(encodedID))
}

func (s *KVStore) userAt(key string) (*User, error) {
	value, err := s.backend.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, WrapError("get user", err)
	}

	var record storedUser
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, WrapError("parse user record", err)
	}
	userID, err := base64.RawURLEncoding.DecodeString(record.UserID)
	if err != nil {
		return nil, WrapError("decode user id", err)
	}
	return &User{UserID: userID, Username: record.Username}, nil
}

// CreateUser writes the primary record and the username index. Both entries
// share the same TTL. The two puts are independent; a crash between them
// leaves a transient inconsistency tolerated by the read paths.
func (s *KVStore) CreateUser(ctx context.Context, user *User) error {
	encodedID := encodeID(user.UserID)
	record, err := json.Marshal(storedUser{
		UserID:   encodedID,
		Username: user.Username,
	})
	if err != nil {
		return WrapError("marshal user record", err)
	}

	if err := s.backend.Put(userKey(user.UserID), record, s.ttl); err != nil {
		return WrapError("put user", err)
	}
	if err := s.backend.Put(usernameKey(user.Username), []byte(encodedID), s.ttl); err != nil {
		return WrapError("put username index", err)
	}
	return nil
}

// CreateCredential writes the digest-addressed primary record and an
// empty-valued per-user index entry for reverse lookup.
func (s *KVStore) CreateCredential(ctx context.Context, cred *Credential) error {
	digest := credentialDigest(cred.CredentialID)
	record, err := json.Marshal(storedCredential{
		CredentialID: encodeID(cred.CredentialID),
		PublicKey:    encodeID(cred.PublicKey),
		SignCount:    cred.SignCount,
		UserVerified: cred.UserVerified,
		UserID:       encodeID(cred.UserID),
		Transports:   cred.Transports,
	})
	if err != nil {
		return WrapError("marshal credential record", err)
	}

	if err := s.backend.Put(credentialKey(digest), record, s.ttl); err != nil {
		return WrapError("put credential", err)
	}
	if err := s.backend.Put(userCredentialPrefix(cred.UserID)+digest, nil, s.ttl); err != nil {
		return WrapError("put credential index", err)
	}
	return nil
}

// CredentialsForUser lists the per-user index and resolves each entry with
// an independent point lookup. Lookups run concurrently; entries whose
// primary record is missing or unparsable are skipped, defending against
// partial writes and stale index entries. Result ordering is unspecified.
func (s *KVStore) CredentialsForUser(ctx context.Context, userID []byte) ([]*Credential, error) {
	prefix := userCredentialPrefix(userID)
	keys, err := s.backend.List(prefix)
	if err != nil {
		return nil, WrapError("list credential index", err)
	}

	slots := make([]*Credential, len(keys))
	var wg sync.WaitGroup
	for i, key := range keys {
		digest := strings.TrimPrefix(key, prefix)
		wg.Add(1)
		go func(i int, digest string) {
			defer wg.Done()
			cred, err := s.credentialAt(digest)
			if err != nil {
				return
			}
			slots[i] = cred
		}(i, digest)
	}
	wg.Wait()

	credentials := make([]*Credential, 0, len(slots))
	for _, cred := range slots {
		if cred != nil {
			credentials = append(credentials, cred)
		}
	}
	return credentials, nil
}

// CredentialByID retrieves a credential using the same digest addressing as
// creation.
func (s *KVStore) CredentialByID(ctx context.Context, credentialID []byte) (*Credential, error) {
	return s.credentialAt(credentialDigest(credentialID))
}

func (s *KVStore) credentialAt(digest string) (*Credential, error) {
	value, err := s.backend.Get(credentialKey(digest))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrCredentialNotFound
		}
		return nil, WrapError("get credential", err)
	}

	var record storedCredential
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, WrapError("parse credential record", err)
	}
	credentialID, err := base64.RawURLEncoding.DecodeString(record.CredentialID)
	if err != nil {
		return nil, WrapError("decode credential id", err)
	}
	publicKey, err := base64.RawURLEncoding.DecodeString(record.PublicKey)
	if err != nil {
		return nil, WrapError("decode public key", err)
	}
	userID, err := base64.RawURLEncoding.DecodeString(record.UserID)
	if err != nil {
		return nil, WrapError("decode user id", err)
	}
	return &Credential{
		CredentialID: credentialID,
		PublicKey:    publicKey,
		SignCount:    record.SignCount,
		UserVerified: record.UserVerified,
		UserID:       userID,
		Transports:   record.Transports,
	}, nil
}

// UpdateCredential applies a read-modify-write update, rewriting the record
// only when at least one field actually changed. A no-op update performs no
// write and therefore does not refresh the record's TTL.
func (s *KVStore) UpdateCredential(ctx context.Context, credentialID []byte, update CredentialUpdate) error {
	cred, err := s.CredentialByID(ctx, credentialID)
	if err != nil {
		return err
	}

	dirty := false
	if update.SignCount != nil && *update.SignCount != cred.SignCount {
		cred.SignCount = *update.SignCount
		dirty = true
	}
	if update.UserVerified != nil && *update.UserVerified != cred.UserVerified {
		cred.UserVerified = *update.UserVerified
		dirty = true
	}
	if !dirty {
		return nil
	}

	record, err := json.Marshal(storedCredential{
		CredentialID: encodeID(cred.CredentialID),
		PublicKey:    encodeID(cred.PublicKey),
		SignCount:    cred.SignCount,
		UserVerified: cred.UserVerified,
		UserID:       encodeID(cred.UserID),
		Transports:   cred.Transports,
	})
	if err != nil {
		return WrapError("marshal credential record", err)
	}
	if err := s.backend.Put(credentialKey(credentialDigest(credentialID)), record, s.ttl); err != nil {
		return WrapError("put credential", err)
	}
	return nil
}

// DeleteCredential removes the primary record only. The per-user index
// entry goes stale and is skipped by CredentialsForUser until its TTL.
func (s *KVStore) DeleteCredential(ctx context.Context, credentialID []byte) error {
	if err := s.backend.Delete(credentialKey(credentialDigest(credentialID))); err != nil {
		return WrapError("delete credential", err)
	}
	return nil
}

// CreateSession persists a session keyed directly by its identifier.
func (s *KVStore) CreateSession(ctx context.Context, session *Session) error {
	record, err := json.Marshal(storedSession{
		SessionID: session.SessionID,
		UserID:    encodeID(session.UserID),
	})
	if err != nil {
		return WrapError("marshal session record", err)
	}
	if err := s.backend.Put(sessionKey(session.SessionID), record, s.ttl); err != nil {
		return WrapError("put session", err)
	}
	return nil
}

// DeleteSession removes a session.
func (s *KVStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.backend.Delete(sessionKey(sessionID)); err != nil {
		return WrapError("delete session", err)
	}
	return nil
}

// SessionByID retrieves a session.
func (s *KVStore) SessionByID(ctx context.Context, sessionID string) (*Session, error) {
	value, err := s.backend.Get(sessionKey(sessionID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, WrapError("get session", err)
	}

	var record storedSession
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, WrapError("parse session record", err)
	}
	userID, err := base64.RawURLEncoding.DecodeString(record.UserID)
	if err != nil {
		return nil, WrapError("decode user id", err)
	}
	return &Session{SessionID: record.SessionID, UserID: userID}, nil
}
