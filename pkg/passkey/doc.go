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

// Package passkey provides a passwordless (WebAuthn) sign-up and sign-in
// service with stateless ceremony challenges and key-value backed
// persistence.
//
// Unlike the usual WebAuthn server pattern of storing pending ceremony
// state server-side, challenges here are self-contained tokens: a random
// nonce, an absolute expiration and the target user identity, sealed with
// an HMAC under the server secret. Any process holding the secret can
// verify a challenge another process issued, so the issuing and verifying
// processes scale horizontally with no pending-challenge table.
//
// User identifiers are derived deterministically from usernames with the
// same secret, which lets a registration ceremony bind a challenge to an
// identity before any user record exists.
//
// # Architecture
//
//  1. Service layer (Service) - ceremony orchestration and the CSRF gate
//  2. Storage layer (DataSource) - pluggable persistence; KVStore adapts
//     any storage.Backend with content-addressed keys and TTL expiry
//  3. HTTP layer (pkg/passkey/http) - composable handlers for the
//     registration/authentication/sign-out surface
//
// # Usage
//
//	key, err := secrets.Import(os.Getenv("PASSKEY_SECRET"))
//	...
//	svc, err := passkey.NewService(passkey.ServiceParams{
//	    Config: &passkey.Config{
//	        RPID:          "example.com",
//	        RPDisplayName: "Example",
//	        RPOrigins:     []string{"https://example.com"},
//	    },
//	    Key:   key,
//	    Store: passkey.NewKVStore(storage.NewMemoryBackend(), 24*time.Hour),
//	})
//
// The cryptographic verification of attestation and assertion responses is
// delegated to github.com/go-webauthn/webauthn; this package does not
// reimplement COSE key parsing or signature checks.
//
// Note: WebAuthn requires HTTPS for all operations. Browsers will only
// expose the WebAuthn API in secure contexts.
package passkey
