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

// Package http provides composable HTTP handlers for passkey ceremonies.
//
// This package lets applications mount passwordless sign-up and sign-in
// on their existing HTTP servers without coupling to go-passkey's internal
// REST implementation.
//
// # Usage
//
// Create a handler from a passkey service and mount it on your router:
//
//	svc, _ := passkey.NewService(...)
//	handler := passkeyhttp.NewHandler(svc)
//
//	r := chi.NewRouter()
//	passkeyhttp.MountChi(r, handler)
//
// # Endpoints
//
// The handler provides the following endpoints:
//
//	GET  /                        - Session summary (credentials, CSRF token)
//	POST /registration/options    - Issue credential creation options
//	POST /registration/submit     - Complete registration
//	POST /authentication/options  - Issue credential request options
//	POST /authentication/submit   - Complete authentication
//	POST /sign-out                - Delete the session (CSRF protected)
//
// # Sessions
//
// Successful ceremonies set an HTTP-only session cookie. The cookie carries
// the Secure flag except when the relying party is localhost. State between
// options and submit travels inside the challenge itself, so no server-side
// ceremony storage is involved.
//
// # Response Format
//
// All responses are JSON except the sign-out redirect. Error responses have
// the format:
//
//	{
//	    "error": true,
//	    "message": "description"
//	}
package http
