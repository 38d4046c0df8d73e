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
	"encoding/base64"
	"testing"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/secrets"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

func testKey(t *testing.T) secrets.Key {
	t.Helper()
	key, err := secrets.NewKey([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return key
}

func testConfig() *Config {
	return &Config{
		RPID:          "example.com",
		RPDisplayName: "Example",
		RPOrigins:     []string{"https://example.com"},
	}
}

func newTestService(t *testing.T) (*Service, *KVStore) {
	t.Helper()
	store := NewKVStore(storage.NewMemoryBackend(), time.Hour)
	svc, err := NewService(ServiceParams{
		Config: testConfig(),
		Key:    testKey(t),
		Store:  store,
	})
	require.NoError(t, err)
	return svc, store
}

// creationResponse builds the minimal parsed attestation response needed to
// reach the pre-verification checks.
func creationResponse(challenge string) *protocol.ParsedCredentialCreationData {
	return &protocol.ParsedCredentialCreationData{
		Response: protocol.ParsedAttestationResponse{
			CollectedClientData: protocol.CollectedClientData{
				Challenge: challenge,
			},
		},
	}
}

func TestNewService(t *testing.T) {
	store := NewKVStore(storage.NewMemoryBackend(), time.Hour)
	key := testKey(t)

	tests := []struct {
		name    string
		params  ServiceParams
		wantErr string
	}{
		{
			name:    "missing config",
			params:  ServiceParams{Key: key, Store: store},
			wantErr: "config is required",
		},
		{
			name:    "missing key",
			params:  ServiceParams{Config: testConfig(), Store: store},
			wantErr: "secret key is required",
		},
		{
			name:    "missing store",
			params:  ServiceParams{Config: testConfig(), Key: key},
			wantErr: "store is required",
		},
		{
			name: "invalid config",
			params: ServiceParams{
				Config: &Config{RPID: "example.com"},
				Key:    key,
				Store:  store,
			},
			wantErr: "invalid config",
		},
		{
			name:   "valid",
			params: ServiceParams{Config: testConfig(), Key: key, Store: store},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewService(tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, svc)
			assert.Equal(t, 60*time.Second, svc.Config().ChallengeTTL)
			assert.Equal(t, 120*time.Second, svc.Config().CeremonyTimeout)
		})
	}
}

func TestService_RegistrationOptions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	t.Run("missing username", func(t *testing.T) {
		_, _, err := svc.RegistrationOptions(ctx, "", "", false)
		assert.ErrorIs(t, err, ErrMissingUsername)
	})

	t.Run("challenge is sealed and deterministic identity", func(t *testing.T) {
		creation, data, err := svc.RegistrationOptions(ctx, "", "alice", false)
		require.NoError(t, err)
		require.NotNil(t, creation)
		require.NotNil(t, data)

		// The options carry the sealed challenge, not the library's own.
		token, err := base64.RawURLEncoding.DecodeString(data.Challenge)
		require.NoError(t, err)
		assert.Equal(t, protocol.URLEncodedBase64(token), creation.Response.Challenge)

		assert.Equal(t,
			base64.RawURLEncoding.EncodeToString(svc.key.UsernameToID("alice")),
			data.UserID)
		assert.Greater(t, data.Expiration, time.Now().UnixMilli())
	})

	t.Run("fresh challenge per call", func(t *testing.T) {
		_, a, err := svc.RegistrationOptions(ctx, "", "alice", false)
		require.NoError(t, err)
		_, b, err := svc.RegistrationOptions(ctx, "", "alice", false)
		require.NoError(t, err)
		assert.NotEqual(t, a.Challenge, b.Challenge)
		assert.Equal(t, a.UserID, b.UserID)
	})

	t.Run("resident key requirement", func(t *testing.T) {
		creation, _, err := svc.RegistrationOptions(ctx, "", "alice", true)
		require.NoError(t, err)
		assert.Equal(t, protocol.ResidentKeyRequirementRequired,
			creation.Response.AuthenticatorSelection.ResidentKey)

		creation, _, err = svc.RegistrationOptions(ctx, "", "alice", false)
		require.NoError(t, err)
		assert.Equal(t, protocol.ResidentKeyRequirementDiscouraged,
			creation.Response.AuthenticatorSelection.ResidentKey)
	})

	t.Run("session user excludes registered credentials", func(t *testing.T) {
		userID := svc.key.UsernameToID("bob")
		require.NoError(t, store.CreateUser(ctx, &User{UserID: userID, Username: "bob"}))
		require.NoError(t, store.CreateSession(ctx, &Session{SessionID: "bob-sess", UserID: userID}))
		require.NoError(t, store.CreateCredential(ctx, &Credential{
			CredentialID: []byte("bob-cred-id"),
			PublicKey:    []byte("bob-key"),
			UserID:       userID,
		}))

		creation, data, err := svc.RegistrationOptions(ctx, "bob-sess", "", false)
		require.NoError(t, err)
		assert.Equal(t, base64.RawURLEncoding.EncodeToString(userID), data.UserID)
		require.Len(t, creation.Response.CredentialExcludeList, 1)
		assert.Equal(t,
			protocol.URLEncodedBase64([]byte("bob-cred-id")),
			creation.Response.CredentialExcludeList[0].CredentialID)
	})
}

func TestService_FinishRegistration_Preconditions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	freshChallenge := func(t *testing.T, username string) string {
		t.Helper()
		_, data, err := svc.issueChallenge(svc.key.UsernameToID(username))
		require.NoError(t, err)
		return data.Challenge
	}

	t.Run("unexpected transport", func(t *testing.T) {
		_, err := svc.FinishRegistration(ctx, "", "alice",
			[]protocol.AuthenticatorTransport{"carrier-pigeon"}, creationResponse(""))
		assert.ErrorIs(t, err, ErrUnsupportedTransport)
	})

	t.Run("missing username", func(t *testing.T) {
		_, err := svc.FinishRegistration(ctx, "", "", nil, creationResponse(""))
		assert.ErrorIs(t, err, ErrMissingUsername)
	})

	t.Run("malformed challenge", func(t *testing.T) {
		_, err := svc.FinishRegistration(ctx, "", "alice", nil,
			creationResponse("dG9vLXNob3J0"))
		assert.Error(t, err)
	})

	t.Run("expired challenge", func(t *testing.T) {
		ch := freshChallenge(t, "alice")
		svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
		defer func() { svc.now = time.Now }()

		_, err := svc.FinishRegistration(ctx, "", "alice", nil, creationResponse(ch))
		assert.ErrorIs(t, err, ErrChallengeExpired)
	})

	t.Run("identity mismatch", func(t *testing.T) {
		ch := freshChallenge(t, "alice")
		_, err := svc.FinishRegistration(ctx, "", "mallory", nil, creationResponse(ch))
		assert.ErrorIs(t, err, ErrIdentityMismatch)
	})

	t.Run("already registered without session", func(t *testing.T) {
		userID := svc.key.UsernameToID("carol")
		require.NoError(t, store.CreateUser(ctx, &User{UserID: userID, Username: "carol"}))

		ch := freshChallenge(t, "carol")
		_, err := svc.FinishRegistration(ctx, "", "carol", nil, creationResponse(ch))
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
	})
}

func TestService_AuthenticationOptions(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	t.Run("missing username", func(t *testing.T) {
		_, _, err := svc.AuthenticationOptions(ctx, "", "")
		assert.ErrorIs(t, err, ErrMissingUsername)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, _, err := svc.AuthenticationOptions(ctx, "", "nobody")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("no credentials", func(t *testing.T) {
		userID := svc.key.UsernameToID("dave")
		require.NoError(t, store.CreateUser(ctx, &User{UserID: userID, Username: "dave"}))

		_, _, err := svc.AuthenticationOptions(ctx, "", "dave")
		assert.ErrorIs(t, err, ErrNoCredentials)
	})

	t.Run("allow list from stored credentials", func(t *testing.T) {
		userID := svc.key.UsernameToID("erin")
		require.NoError(t, store.CreateUser(ctx, &User{UserID: userID, Username: "erin"}))
		require.NoError(t, store.CreateCredential(ctx, &Credential{
			CredentialID: []byte("erin-cred-id"),
			PublicKey:    []byte("erin-key"),
			UserID:       userID,
			Transports:   []protocol.AuthenticatorTransport{protocol.Internal},
		}))

		assertion, data, err := svc.AuthenticationOptions(ctx, "", "erin")
		require.NoError(t, err)
		require.Len(t, assertion.Response.AllowedCredentials, 1)
		assert.Equal(t,
			protocol.URLEncodedBase64([]byte("erin-cred-id")),
			assertion.Response.AllowedCredentials[0].CredentialID)

		token, err := base64.RawURLEncoding.DecodeString(data.Challenge)
		require.NoError(t, err)
		assert.Equal(t, protocol.URLEncodedBase64(token), assertion.Response.Challenge)
	})
}

func TestService_SessionUser(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	t.Run("empty id", func(t *testing.T) {
		session, user := svc.SessionUser(ctx, "")
		assert.Nil(t, session)
		assert.Nil(t, user)
	})

	t.Run("unknown id", func(t *testing.T) {
		session, user := svc.SessionUser(ctx, "no-such")
		assert.Nil(t, session)
		assert.Nil(t, user)
	})

	t.Run("session without user", func(t *testing.T) {
		require.NoError(t, store.CreateSession(ctx, &Session{
			SessionID: "orphan",
			UserID:    []byte("gone-user-id"),
		}))
		session, user := svc.SessionUser(ctx, "orphan")
		assert.NotNil(t, session)
		assert.Nil(t, user)
	})

	t.Run("resolved", func(t *testing.T) {
		userID := svc.key.UsernameToID("frank")
		require.NoError(t, store.CreateUser(ctx, &User{UserID: userID, Username: "frank"}))
		require.NoError(t, store.CreateSession(ctx, &Session{SessionID: "frank-sess", UserID: userID}))

		session, user := svc.SessionUser(ctx, "frank-sess")
		require.NotNil(t, session)
		require.NotNil(t, user)
		assert.Equal(t, "frank", user.Username)
	})
}

func TestService_SignOut(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	userID := svc.key.UsernameToID("grace")
	require.NoError(t, store.CreateSession(ctx, &Session{SessionID: "grace-sess", UserID: userID}))

	t.Run("no session", func(t *testing.T) {
		err := svc.SignOut(ctx, "", "whatever")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("bad token", func(t *testing.T) {
		err := svc.SignOut(ctx, "grace-sess", "forged")
		assert.ErrorIs(t, err, ErrBadCSRF)
	})

	t.Run("token for other session", func(t *testing.T) {
		err := svc.SignOut(ctx, "grace-sess", svc.CSRFToken("other-sess"))
		assert.ErrorIs(t, err, ErrBadCSRF)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, svc.SignOut(ctx, "grace-sess", svc.CSRFToken("grace-sess")))
		_, err := store.SessionByID(ctx, "grace-sess")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})
}

func TestService_CSRFToken(t *testing.T) {
	svc, _ := newTestService(t)

	a := svc.CSRFToken("session-a")
	b := svc.CSRFToken("session-b")
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, svc.CSRFToken("session-a"))
}
