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

package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/jeremyhahn/go-passkey/pkg/challenge"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// Handler provides HTTP handlers for the passkey ceremony surface.
// These handlers can be mounted on any HTTP router.
type Handler struct {
	service *passkey.Service
	logger  *slog.Logger
}

// NewHandler creates a new passkey HTTP handler.
func NewHandler(service *passkey.Service) *Handler {
	return &Handler{
		service: service,
		logger:  slog.Default(),
	}
}

// WithLogger sets a custom logger for the handler.
func (h *Handler) WithLogger(logger *slog.Logger) *Handler {
	h.logger = logger
	return h
}

// sessionID extracts the session identifier from the request cookie.
// Returns empty on any parse problem; session extraction never fails the
// request.
func (h *Handler) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// secureCookies reports whether session cookies carry the Secure flag.
// Only the localhost relying party is exempt, for local development.
func (h *Handler) secureCookies() bool {
	return h.service.Config().RPID != "localhost"
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies(),
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies(),
	})
}

// RegistrationOptions handles POST /registration/options
//
// Query: username (required without a session), passkey (non-empty for a
// resident-key registration).
// Response: OptionsResponse with creation options and authenticating data.
func (h *Handler) RegistrationOptions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	options, data, err := h.service.RegistrationOptions(
		r.Context(),
		h.sessionID(r),
		query.Get("username"),
		query.Get("passkey") != "",
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, OptionsResponse{
		Options:            options,
		AuthenticatingData: data,
	})
}

// RegistrationSubmit handles POST /registration/submit
//
// Request body: SubmitRequest carrying the attestation response.
// Sets the session cookie when the ceremony minted a new session.
func (h *Handler) RegistrationSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	transports, err := passkey.ParseTransports(req.Transports)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	response, err := protocol.ParseCredentialCreationResponseBytes(req.Response)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid registration response")
		return
	}

	result, err := h.service.FinishRegistration(r.Context(), h.sessionID(r), req.Username, transports, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if result.Session != nil {
		h.setSessionCookie(w, result.Session.SessionID)
	}
	h.writeJSON(w, http.StatusOK, SubmitResponse{Status: "OK", Token: result.Token})
}

// AuthenticationOptions handles POST /authentication/options
//
// Query: username (required without a session).
func (h *Handler) AuthenticationOptions(w http.ResponseWriter, r *http.Request) {
	options, data, err := h.service.AuthenticationOptions(
		r.Context(),
		h.sessionID(r),
		r.URL.Query().Get("username"),
	)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, OptionsResponse{
		Options:            options,
		AuthenticatingData: data,
	})
}

// AuthenticationSubmit handles POST /authentication/submit
//
// Request body: SubmitRequest carrying the assertion response.
func (h *Handler) AuthenticationSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	response, err := protocol.ParseCredentialRequestResponseBytes(req.Response)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid authentication response")
		return
	}

	result, err := h.service.FinishAuthentication(r.Context(), h.sessionID(r), req.Username, response)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if result.Session != nil {
		h.setSessionCookie(w, result.Session.SessionID)
	}
	h.writeJSON(w, http.StatusOK, SubmitResponse{Status: "OK", Token: result.Token})
}

// SignOut handles POST /sign-out
//
// Form body: csrf. The token must match the one derived for the presented
// session; on success the session is deleted and the cookie expired.
// Requests without a session redirect home without mutating anything.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	sessionID := h.sessionID(r)
	if sessionID == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	csrf := r.PostFormValue("csrf")
	if csrf == "" {
		h.writeError(w, http.StatusBadRequest, "Missing CSRF")
		return
	}

	if err := h.service.SignOut(r.Context(), sessionID, csrf); err != nil {
		if errors.Is(err, passkey.ErrBadCSRF) {
			h.writeError(w, http.StatusBadRequest, "Bad CSRF")
			return
		}
		h.handleServiceError(w, err)
		return
	}

	h.clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Home handles GET /
//
// Response: HomeResponse summarizing the signed-in state, including the
// CSRF token the sign-out form must submit and the user's credentials.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	session, user := h.service.SessionUser(r.Context(), h.sessionID(r))
	if session == nil || user == nil {
		h.writeJSON(w, http.StatusOK, HomeResponse{SignedIn: false})
		return
	}

	creds, err := h.service.Credentials(r.Context(), user.UserID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	summaries := make([]CredentialSummary, len(creds))
	for i, cred := range creds {
		transports := make([]string, len(cred.Transports))
		for j, t := range cred.Transports {
			transports[j] = string(t)
		}
		summaries[i] = CredentialSummary{
			CredentialID: base64.RawURLEncoding.EncodeToString(cred.CredentialID),
			SignCount:    cred.SignCount,
			UserVerified: cred.UserVerified,
			Transports:   transports,
		}
	}

	h.writeJSON(w, http.StatusOK, HomeResponse{
		SignedIn:    true,
		Username:    user.Username,
		CSRF:        h.service.CSRFToken(session.SessionID),
		Credentials: summaries,
	})
}

// handleServiceError maps service errors to HTTP responses. Verification
// and signature failures are deliberately under-specified in the response
// text so probing clients learn nothing about why the verifier refused.
func (h *Handler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, passkey.ErrMissingUsername):
		h.writeError(w, http.StatusBadRequest, "Missing username")
	case errors.Is(err, passkey.ErrUnsupportedTransport):
		h.writeError(w, http.StatusBadRequest, "Unexpected transport")
	case errors.Is(err, challenge.ErrMalformedChallenge),
		errors.Is(err, challenge.ErrInvalidChallenge):
		h.writeError(w, http.StatusBadRequest, "Invalid challenge")
	case errors.Is(err, passkey.ErrChallengeExpired):
		h.writeError(w, http.StatusBadRequest, "Challenge expired")
	case errors.Is(err, passkey.ErrIdentityMismatch):
		h.writeError(w, http.StatusBadRequest, "User ID did not match the challenge")
	case errors.Is(err, passkey.ErrAlreadyRegistered):
		h.writeError(w, http.StatusBadRequest, "User already registered")
	case errors.Is(err, passkey.ErrCredentialExists):
		h.writeError(w, http.StatusBadRequest, "Credential is already registered")
	case errors.Is(err, passkey.ErrVerificationFailed),
		errors.Is(err, passkey.ErrClonedAuthenticator):
		h.logger.Warn("ceremony verification failed", "error", err)
		h.writeError(w, http.StatusBadRequest, "verification failed")
	case errors.Is(err, passkey.ErrUserNotFound),
		errors.Is(err, passkey.ErrNoCredentials),
		errors.Is(err, passkey.ErrCredentialNotFound):
		h.writeError(w, http.StatusBadRequest, "Unable to authenticate")
	case errors.Is(err, passkey.ErrSessionNotFound):
		h.writeError(w, http.StatusBadRequest, "Session not found")
	default:
		h.logger.Error("internal error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

// writeJSON writes a JSON response.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response headers already written, can only log the error
		h.logger.Error("failed to encode JSON response",
			"error", err,
			"status", status)
	}
}

// writeError writes an error response.
func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   true,
		Message: message,
	})
}
