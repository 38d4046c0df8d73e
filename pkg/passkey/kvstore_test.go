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
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

func newTestStore(t *testing.T) (*KVStore, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	return NewKVStore(backend, time.Hour), backend
}

func testCredential(id byte, userID []byte) *Credential {
	return &Credential{
		CredentialID: []byte{id, id, id, id},
		PublicKey:    []byte("cose-key-material"),
		SignCount:    1,
		UserVerified: true,
		UserID:       userID,
		Transports:   []protocol.AuthenticatorTransport{protocol.Internal},
	}
}

func TestKVStore_Users(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	user := &User{UserID: []byte("twelve-bytes"), Username: "alice"}
	require.NoError(t, store.CreateUser(ctx, user))

	t.Run("by id", func(t *testing.T) {
		got, err := store.UserByID(ctx, user.UserID)
		require.NoError(t, err)
		assert.Equal(t, user.UserID, got.UserID)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("by username", func(t *testing.T) {
		got, err := store.UserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, user.UserID, got.UserID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.UserByID(ctx, []byte("nobody-here!"))
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("unknown username", func(t *testing.T) {
		_, err := store.UserByUsername(ctx, "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestKVStore_UserByUsername_StaleIndex(t *testing.T) {
	store, backend := newTestStore(t)
	ctx := context.Background()

	user := &User{UserID: []byte("twelve-bytes"), Username: "bob"}
	require.NoError(t, store.CreateUser(ctx, user))

	// Simulate the primary record expiring while the index survives.
	require.NoError(t, backend.Delete(userKey(user.UserID)))

	_, err := store.UserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestKVStore_Credentials(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := []byte("user-one-id!")

	cred := testCredential(0xAA, userID)
	require.NoError(t, store.CreateCredential(ctx, cred))

	t.Run("by id", func(t *testing.T) {
		got, err := store.CredentialByID(ctx, cred.CredentialID)
		require.NoError(t, err)
		assert.Equal(t, cred.CredentialID, got.CredentialID)
		assert.Equal(t, cred.PublicKey, got.PublicKey)
		assert.Equal(t, uint32(1), got.SignCount)
		assert.True(t, got.UserVerified)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, cred.Transports, got.Transports)
	})

	t.Run("for user", func(t *testing.T) {
		require.NoError(t, store.CreateCredential(ctx, testCredential(0xBB, userID)))

		creds, err := store.CredentialsForUser(ctx, userID)
		require.NoError(t, err)
		assert.Len(t, creds, 2)
	})

	t.Run("other user sees nothing", func(t *testing.T) {
		creds, err := store.CredentialsForUser(ctx, []byte("someone-else"))
		require.NoError(t, err)
		assert.Empty(t, creds)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.CredentialByID(ctx, []byte("missing"))
		assert.ErrorIs(t, err, ErrCredentialNotFound)
	})
}

func TestKVStore_DeleteCredential_StaleIndexSkipped(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	userID := []byte("user-one-id!")

	keep := testCredential(0x01, userID)
	drop := testCredential(0x02, userID)
	require.NoError(t, store.CreateCredential(ctx, keep))
	require.NoError(t, store.CreateCredential(ctx, drop))

	require.NoError(t, store.DeleteCredential(ctx, drop.CredentialID))

	// The per-user index entry for the deleted credential is left behind;
	// listing must skip it rather than fail.
	creds, err := store.CredentialsForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, keep.CredentialID, creds[0].CredentialID)

	_, err = store.CredentialByID(ctx, drop.CredentialID)
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestKVStore_UpdateCredential(t *testing.T) {
	ctx := context.Background()
	userID := []byte("user-one-id!")

	newCount := func(n uint32) *uint32 { return &n }
	verified := func(v bool) *bool { return &v }

	t.Run("updates fields", func(t *testing.T) {
		store, _ := newTestStore(t)
		cred := testCredential(0xCC, userID)
		require.NoError(t, store.CreateCredential(ctx, cred))

		err := store.UpdateCredential(ctx, cred.CredentialID, CredentialUpdate{
			SignCount:    newCount(7),
			UserVerified: verified(false),
		})
		require.NoError(t, err)

		got, err := store.CredentialByID(ctx, cred.CredentialID)
		require.NoError(t, err)
		assert.Equal(t, uint32(7), got.SignCount)
		assert.False(t, got.UserVerified)
	})

	t.Run("no-op performs no write", func(t *testing.T) {
		store, backend := newTestStore(t)
		cred := testCredential(0xDD, userID)
		require.NoError(t, store.CreateCredential(ctx, cred))

		before, err := backend.Get(credentialKey(credentialDigest(cred.CredentialID)))
		require.NoError(t, err)

		err = store.UpdateCredential(ctx, cred.CredentialID, CredentialUpdate{
			SignCount:    newCount(cred.SignCount),
			UserVerified: verified(cred.UserVerified),
		})
		require.NoError(t, err)

		after, err := backend.Get(credentialKey(credentialDigest(cred.CredentialID)))
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("unknown credential", func(t *testing.T) {
		store, _ := newTestStore(t)
		err := store.UpdateCredential(ctx, []byte("missing"), CredentialUpdate{
			SignCount: newCount(1),
		})
		assert.ErrorIs(t, err, ErrCredentialNotFound)
	})
}

func TestKVStore_Sessions(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	session := &Session{SessionID: "abc123", UserID: []byte("user-one-id!")}
	require.NoError(t, store.CreateSession(ctx, session))

	got, err := store.SessionByID(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, session.UserID, got.UserID)
	assert.Equal(t, "abc123", got.SessionID)

	require.NoError(t, store.DeleteSession(ctx, "abc123"))
	_, err = store.SessionByID(ctx, "abc123")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting an absent session is not an error.
	assert.NoError(t, store.DeleteSession(ctx, "never-existed"))
}
