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
	"encoding/json"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
)

// SessionCookieName is the name of the browser session cookie.
const SessionCookieName = "session"

// OptionsResponse is the response for the options issuance endpoints.
type OptionsResponse struct {
	// Options is the WebAuthn creation/request options JSON for the client.
	Options interface{} `json:"options"`

	// AuthenticatingData correlates the pending ceremony: the sealed
	// challenge, its expiration and the bound user identity.
	AuthenticatingData *passkey.AuthenticatingData `json:"authenticatingData"`
}

// SubmitRequest is the request body for the ceremony submit endpoints.
type SubmitRequest struct {
	// Username identifies the ceremony target when no session is presented.
	Username string `json:"username,omitempty"`

	// Response is the raw authenticator response JSON.
	Response json.RawMessage `json:"response"`

	// Transports optionally declares the authenticator's transports
	// (registration only).
	Transports []string `json:"transports,omitempty"`
}

// SubmitResponse is the response after a successful ceremony.
type SubmitResponse struct {
	Status string `json:"status"`

	// Token is set when the service is configured with a token generator.
	Token string `json:"token,omitempty"`
}

// CredentialSummary describes a registered credential on the home document.
type CredentialSummary struct {
	CredentialID string   `json:"credentialId"`
	SignCount    uint32   `json:"signCount"`
	UserVerified bool     `json:"userVerified"`
	Transports   []string `json:"transports,omitempty"`
}

// HomeResponse is the session summary served at GET /.
type HomeResponse struct {
	SignedIn    bool                `json:"signedIn"`
	Username    string              `json:"username,omitempty"`
	CSRF        string              `json:"csrf,omitempty"`
	Credentials []CredentialSummary `json:"credentials,omitempty"`
}

// ErrorResponse is the response format for failure paths.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message,omitempty"`
}
