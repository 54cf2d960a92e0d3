package remote

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means never
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// InMemory is a map-backed Memory, suitable for embedding and tests.
type InMemory struct {
	namespaces map[string]map[string]memoryEntry
	mu         sync.RWMutex
}

var _ Memory = (*InMemory)(nil)

// NewInMemory creates an empty in-memory backend.
func NewInMemory() *InMemory {
	return &InMemory{namespaces: make(map[string]map[string]memoryEntry)}
}

func (m *InMemory) Store(ctx context.Context, key, value, namespace string, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = make(map[string]memoryEntry)
		m.namespaces[namespace] = ns
	}

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	ns[key] = entry
	return nil
}

func (m *InMemory) Retrieve(ctx context.Context, key, namespace string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.namespaces[namespace][key]
	if !ok || entry.expired(time.Now()) {
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *InMemory) Search(ctx context.Context, pattern, namespace string, limit int) ([]Entry, error) {
	keys, err := m.List(ctx, namespace)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Entry
	for _, key := range keys {
		if limit > 0 && len(out) >= limit {
			break
		}
		if matchPattern(pattern, key) {
			out = append(out, Entry{Key: key, Value: m.namespaces[namespace][key].value})
		}
	}
	return out, nil
}

func (m *InMemory) Delete(ctx context.Context, key, namespace string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns := m.namespaces[namespace]
	entry, ok := ns[key]
	if !ok {
		return false, nil
	}
	delete(ns, key)
	return !entry.expired(time.Now()), nil
}

func (m *InMemory) List(ctx context.Context, namespace string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns := m.namespaces[namespace]
	now := time.Now()
	keys := make([]string, 0, len(ns))
	for key, entry := range ns {
		if entry.expired(now) {
			delete(ns, key)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// matchPattern matches a key against a pattern where "*" matches any run
// of characters. A pattern without wildcards matches as a substring.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := path.Match(pattern, key)
		return err == nil && ok
	}
	return strings.Contains(key, pattern)
}
