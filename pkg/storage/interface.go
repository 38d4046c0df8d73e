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

// Package storage provides an abstraction layer for key-value storage
// backends with per-entry expiration. Entities written with a TTL expire
// autonomously; there is no garbage-collection pass.
package storage

import "time"

// Backend defines the interface for key-value storage backends.
// All implementations must be thread-safe.
type Backend interface {
	// Get retrieves the value for the given key.
	// Returns ErrNotFound if the key does not exist or has expired.
	Get(key string) ([]byte, error)

	// Put stores the value for the given key. A ttl of zero stores the
	// entry without expiration. If the key already exists, both the value
	// and its expiration are overwritten.
	Put(key string, value []byte, ttl time.Duration) error

	// Delete removes the key and its value from storage.
	// Deleting a missing key is not an error.
	Delete(key string) error

	// List returns keys with the given prefix. Only a single page of
	// results is guaranteed; callers must not assume completeness for
	// very large prefixes, nor any particular ordering.
	List(prefix string) ([]string, error)

	// Close releases any resources held by the backend.
	Close() error
}
