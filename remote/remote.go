// Package remote defines the namespaced key-value memory contract the
// sync manager reconciles against, plus two concrete backends: an
// in-memory map and a durable SQLite file.
package remote

import (
	"context"
	"time"
)

// Entry is a key/value pair returned by Search.
type Entry struct {
	Key   string
	Value string
}

// Memory is a namespaced key-value memory. Values crossing this boundary
// are JSON-encoded strings. A zero ttl means the key never expires.
type Memory interface {
	// Store writes a value under key in the given namespace.
	Store(ctx context.Context, key, value, namespace string, ttl time.Duration) error

	// Retrieve returns the value for key, or ("", false, nil) when the
	// key is absent or expired.
	Retrieve(ctx context.Context, key, namespace string) (string, bool, error)

	// Search returns up to limit entries whose key matches the pattern.
	// "*" in the pattern matches any run of characters.
	Search(ctx context.Context, pattern, namespace string, limit int) ([]Entry, error)

	// Delete removes a key. Returns false when it did not exist.
	Delete(ctx context.Context, key, namespace string) (bool, error)

	// List returns every live key in the namespace, sorted.
	List(ctx context.Context, namespace string) ([]string, error)
}
