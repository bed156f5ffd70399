// Package store provides durable key-value backends for the session manager.
//
// A store holds two string slots, the credential and its expiry timestamp,
// and must survive process restarts. Backends: OS keychain (internal/keychain),
// a private JSON file or SQLite database under the XDG state dir, Redis,
// Postgres, and an in-memory map for tests.
package store

import "errors"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// Keys persisted by the session manager.
const (
	KeyCredential = "credential"
	KeyExpiresAt  = "expiresAt"
)

// Store is the durable store adapter contract.
// Remove of a missing key is not an error.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// Backend names accepted in configuration.
const (
	BackendKeyring  = "keyring"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)
