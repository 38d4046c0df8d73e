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
	"crypto/hmac"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/challenge"
	"github.com/jeremyhahn/go-passkey/pkg/secrets"
)

// Service orchestrates registration and authentication ceremonies: it
// issues stateless challenges, delegates cryptographic verification to the
// go-webauthn verifier and commits results to the store.
type Service struct {
	webauthn *webauthn.WebAuthn
	config   *Config
	key      secrets.Key
	store    DataSource
	tokens   TokenGenerator // optional
	now      func() time.Time
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the service configuration (required).
	Config *Config

	// Key is the imported server secret (required).
	Key secrets.Key

	// Store is the persistence layer (required).
	Store DataSource

	// Tokens optionally mints an API token after successful ceremonies.
	Tokens TokenGenerator
}

// AuthenticatingData describes an issued challenge so clients can correlate
// the pending ceremony. All byte fields are base64url-encoded.
type AuthenticatingData struct {
	Challenge  string `json:"challenge"`
	Expiration int64  `json:"expiration"`
	UserID     string `json:"userId"`
}

// CeremonyResult is the outcome of a successful submit phase.
type CeremonyResult struct {
	// User is the resolved (possibly newly created) account.
	User *User

	// Session is non-nil only when the ceremony minted a new session, i.e.
	// when no session was presented.
	Session *Session

	// Token is an optional API token from the configured TokenGenerator.
	Token string
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.Key.IsZero() {
		return nil, fmt.Errorf("secret key is required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	wa, err := webauthn.New(params.Config.ToWebAuthnConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create webauthn instance: %w", err)
	}

	return &Service{
		webauthn: wa,
		config:   params.Config,
		key:      params.Key,
		store:    params.Store,
		tokens:   params.Tokens,
		now:      time.Now,
	}, nil
}

// Config returns the service configuration.
func (s *Service) Config() *Config {
	return s.config
}

// SessionUser resolves a session identifier to its session and user. Stale
// or absent identifiers resolve to nil rather than erroring, so callers can
// fall back to username-identified flows.
func (s *Service) SessionUser(ctx context.Context, sessionID string) (*Session, *User) {
	if sessionID == "" {
		return nil, nil
	}
	session, err := s.store.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, nil
	}
	user, err := s.store.UserByID(ctx, session.UserID)
	if err != nil {
		return session, nil
	}
	return session, user
}

// CSRFToken derives the CSRF token for a session.
func (s *Service) CSRFToken(sessionID string) string {
	return s.key.DeriveCSRFToken(sessionID)
}

// SignOut guards the session deletion behind a constant-time CSRF check.
// The token must be the one derived for exactly this session.
func (s *Service) SignOut(ctx context.Context, sessionID, csrfToken string) error {
	if sessionID == "" {
		return ErrSessionNotFound
	}
	if !s.key.VerifyCSRFToken(sessionID, csrfToken) {
		return ErrBadCSRF
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return WrapError("delete session", err)
	}
	return nil
}

// Credentials lists a user's registered credentials.
func (s *Service) Credentials(ctx context.Context, userID []byte) ([]*Credential, error) {
	return s.store.CredentialsForUser(ctx, userID)
}

// RevokeCredential removes a credential record.
func (s *Service) RevokeCredential(ctx context.Context, credentialID []byte) error {
	return s.store.DeleteCredential(ctx, credentialID)
}

// RegistrationOptions starts a registration ceremony. Identity comes from
// the presented session when there is one, otherwise from the username.
// The returned options carry a sealed challenge binding that identity; for
// known users, already-registered credentials are excluded so the same
// authenticator cannot be re-registered.
func (s *Service) RegistrationOptions(ctx context.Context, sessionID, username string, passkey bool) (*protocol.CredentialCreation, *AuthenticatingData, error) {
	_, user := s.SessionUser(ctx, sessionID)

	var userID []byte
	switch {
	case user != nil:
		username = user.Username
		userID = user.UserID
	case username != "":
		userID = s.key.UsernameToID(username)
	default:
		return nil, nil, ErrMissingUsername
	}

	token, data, err := s.issueChallenge(userID)
	if err != nil {
		return nil, nil, err
	}

	ceremony := &ceremonyUser{id: userID, name: username}
	if user != nil {
		creds, err := s.store.CredentialsForUser(ctx, user.UserID)
		if err != nil {
			return nil, nil, WrapError("get credentials", err)
		}
		ceremony.credentials = creds
	}

	residentKey := protocol.ResidentKeyRequirementDiscouraged
	if passkey {
		residentKey = protocol.ResidentKeyRequirementRequired
	}
	opts := []webauthn.RegistrationOption{
		webauthn.WithResidentKeyRequirement(residentKey),
	}
	if exclusions := ceremony.descriptors(); exclusions != nil {
		opts = append(opts, webauthn.WithExclusions(exclusions))
	}

	creation, _, err := s.webauthn.BeginRegistration(ceremony, opts...)
	if err != nil {
		return nil, nil, WrapError("begin registration", err)
	}

	// The library generates its own random challenge with matching
	// server-side session state; replace it with the sealed stateless one.
	creation.Response.Challenge = protocol.URLEncodedBase64(token)

	return creation, data, nil
}

// FinishRegistration completes a registration ceremony: it validates the
// declared transports, verifies the challenge embedded in the response's
// client data against the resolved identity, delegates cryptographic
// verification and commits the user, credential and (for session-less
// registrations) a fresh session.
func (s *Service) FinishRegistration(ctx context.Context, sessionID, username string, transports []protocol.AuthenticatorTransport, response *protocol.ParsedCredentialCreationData) (*CeremonyResult, error) {
	for _, t := range transports {
		if _, ok := recognizedTransports[t]; !ok {
			return nil, WrapError("unexpected transport "+string(t), ErrUnsupportedTransport)
		}
	}

	_, user := s.SessionUser(ctx, sessionID)
	if user == nil && username == "" {
		return nil, ErrMissingUsername
	}

	token, userID, expiration, err := s.verifyChallenge(response.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, err
	}

	if err := s.bindIdentity(userID, user, username); err != nil {
		return nil, err
	}
	if user != nil {
		username = user.Username
	}

	if user == nil {
		// Re-registration without the owning session would let anyone who
		// knows a username hijack the account.
		_, err := s.store.UserByID(ctx, userID)
		if err == nil {
			return nil, ErrAlreadyRegistered
		}
		if !IsUserNotFound(err) {
			return nil, WrapError("get user", err)
		}
	}

	ceremony := &ceremonyUser{id: userID, name: username}
	// The session is rebuilt from the sealed challenge instead of server
	// state. CredParams must match what the options phase offered or the
	// verifier rejects every attestation.
	credential, err := s.webauthn.CreateCredential(ceremony, webauthn.SessionData{
		Challenge:  base64.RawURLEncoding.EncodeToString(token),
		UserID:     userID,
		Expires:    time.UnixMilli(expiration),
		CredParams: webauthn.CredentialParametersDefault(),
	}, response)
	if err != nil {
		return nil, WrapError("create credential", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	// Global credential-ID uniqueness across all users.
	if _, err := s.store.CredentialByID(ctx, credential.ID); err == nil {
		return nil, ErrCredentialExists
	} else if !IsCredentialNotFound(err) {
		return nil, WrapError("get credential", err)
	}

	if user == nil {
		user = &User{UserID: userID, Username: username}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, WrapError("create user", err)
		}
	}

	if err := s.store.CreateCredential(ctx, &Credential{
		CredentialID: credential.ID,
		PublicKey:    credential.PublicKey,
		SignCount:    credential.Authenticator.SignCount,
		UserVerified: credential.Flags.UserVerified,
		UserID:       userID,
		Transports:   transports,
	}); err != nil {
		return nil, WrapError("create credential record", err)
	}

	return s.finishCeremony(ctx, user, sessionID)
}

// AuthenticationOptions starts an authentication ceremony scoped to the
// resolved user. The allow list comes from the user's stored credentials.
func (s *Service) AuthenticationOptions(ctx context.Context, sessionID, username string) (*protocol.CredentialAssertion, *AuthenticatingData, error) {
	_, user := s.SessionUser(ctx, sessionID)
	if user == nil {
		if username == "" {
			return nil, nil, ErrMissingUsername
		}
		var err error
		user, err = s.store.UserByUsername(ctx, username)
		if err != nil {
			return nil, nil, WrapError("get user by username", err)
		}
	}

	creds, err := s.store.CredentialsForUser(ctx, user.UserID)
	if err != nil {
		return nil, nil, WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, nil, ErrNoCredentials
	}

	token, data, err := s.issueChallenge(user.UserID)
	if err != nil {
		return nil, nil, err
	}

	ceremony := &ceremonyUser{id: user.UserID, name: user.Username, credentials: creds}
	assertion, _, err := s.webauthn.BeginLogin(ceremony)
	if err != nil {
		return nil, nil, WrapError("begin login", err)
	}
	assertion.Response.Challenge = protocol.URLEncodedBase64(token)

	return assertion, data, nil
}

// FinishAuthentication completes an authentication ceremony: challenge and
// identity checks mirror registration, the assertion is verified against
// the stored public key, sign-count regression is rejected as a clone
// signal and the stored counter/verification flags are updated.
func (s *Service) FinishAuthentication(ctx context.Context, sessionID, username string, response *protocol.ParsedCredentialAssertionData) (*CeremonyResult, error) {
	_, sessionUser := s.SessionUser(ctx, sessionID)
	if sessionUser == nil && username == "" {
		return nil, ErrMissingUsername
	}

	token, userID, expiration, err := s.verifyChallenge(response.Response.CollectedClientData.Challenge)
	if err != nil {
		return nil, err
	}

	if err := s.bindIdentity(userID, sessionUser, username); err != nil {
		return nil, err
	}

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return nil, WrapError("get user", err)
	}

	creds, err := s.store.CredentialsForUser(ctx, user.UserID)
	if err != nil {
		return nil, WrapError("get credentials", err)
	}
	if len(creds) == 0 {
		return nil, ErrNoCredentials
	}

	ceremony := &ceremonyUser{id: user.UserID, name: user.Username, credentials: creds}
	credential, err := s.webauthn.ValidateLogin(ceremony, webauthn.SessionData{
		Challenge: base64.RawURLEncoding.EncodeToString(token),
		UserID:    userID,
		Expires:   time.UnixMilli(expiration),
	}, response)
	if err != nil {
		return nil, WrapError("validate login", fmt.Errorf("%w: %v", ErrVerificationFailed, err))
	}

	if credential.Authenticator.CloneWarning {
		return nil, ErrClonedAuthenticator
	}

	userVerified := response.Response.AuthenticatorData.Flags.UserVerified()
	if err := s.store.UpdateCredential(ctx, credential.ID, CredentialUpdate{
		SignCount:    &credential.Authenticator.SignCount,
		UserVerified: &userVerified,
	}); err != nil {
		return nil, WrapError("update credential", err)
	}

	return s.finishCeremony(ctx, user, sessionID)
}

// issueChallenge seals a fresh 16-byte nonce, absolute expiration and user
// identity into a stateless challenge token.
func (s *Service) issueChallenge(userID []byte) ([]byte, *AuthenticatingData, error) {
	var nonce [challenge.NonceLength]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, nil, WrapError("generate nonce", err)
	}

	expiration := s.now().Add(s.config.ChallengeTTL).UnixMilli()
	token, err := challenge.Assemble(s.key, nonce, expiration, userID)
	if err != nil {
		return nil, nil, WrapError("assemble challenge", err)
	}

	return token, &AuthenticatingData{
		Challenge:  base64.RawURLEncoding.EncodeToString(token),
		Expiration: expiration,
		UserID:     base64.RawURLEncoding.EncodeToString(userID),
	}, nil
}

// verifyChallenge decodes the challenge echoed through the client data,
// checks its seal and applies the expiry policy.
func (s *Service) verifyChallenge(encoded string) (token, userID []byte, expiration int64, err error) {
	token, err = base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, nil, 0, WrapError("decode challenge", challenge.ErrMalformedChallenge)
	}

	userID, expiration, err = challenge.DisassembleAndVerify(s.key, token)
	if err != nil {
		return nil, nil, 0, WrapError("verify challenge", err)
	}

	if s.now().UnixMilli() > expiration {
		return nil, nil, 0, ErrChallengeExpired
	}
	return token, userID, expiration, nil
}

// bindIdentity confirms, in constant time, that the challenge-embedded
// identity equals the resolved ceremony identity (session user first,
// submitted username otherwise).
func (s *Service) bindIdentity(userID []byte, user *User, username string) error {
	var expected []byte
	switch {
	case user != nil:
		expected = user.UserID
	case username != "":
		expected = s.key.UsernameToID(username)
	default:
		return ErrMissingUsername
	}
	if !hmac.Equal(userID, expected) {
		return ErrIdentityMismatch
	}
	return nil
}

// finishCeremony mints a session when none was presented and attaches the
// optional API token.
func (s *Service) finishCeremony(ctx context.Context, user *User, sessionID string) (*CeremonyResult, error) {
	result := &CeremonyResult{User: user}

	if session, _ := s.SessionUser(ctx, sessionID); session == nil {
		minted, err := s.mintSession(ctx, user.UserID)
		if err != nil {
			return nil, err
		}
		result.Session = minted
	}

	if s.tokens != nil {
		token, err := s.tokens.GenerateToken(ctx, user)
		if err != nil {
			return nil, WrapError("generate token", err)
		}
		result.Token = token
	}
	return result, nil
}

// mintSession creates a session with a random 16-byte identifier.
func (s *Service) mintSession(ctx context.Context, userID []byte) (*Session, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return nil, WrapError("generate session id", err)
	}
	session := &Session{
		SessionID: base64.RawURLEncoding.EncodeToString(raw),
		UserID:    userID,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, WrapError("create session", err)
	}
	return session, nil
}
