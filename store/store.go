// Package store implements a versioned, file-backed document collection
// store: one JSON file per document under <baseDir>/<collection>/.
//
// The store performs no cross-process locking. Two writers racing on the
// same id interleave arbitrarily and the last writer's file wins; callers
// needing stronger guarantees must serialize writes themselves.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Errors returned by the store.
var (
	ErrNotFound = errors.New("store: document not found")
	ErrEmptyID  = errors.New("store: id is empty after sanitization")
)

// Document is a stored record. The store manages the id, collection,
// createdAt, updatedAt and version fields; everything else is opaque.
type Document map[string]any

// ID returns the document id, or "" when unset.
func (d Document) ID() string {
	s, _ := d["id"].(string)
	return s
}

// Collection returns the owning collection name, or "" when unset.
func (d Document) Collection() string {
	s, _ := d["collection"].(string)
	return s
}

// Version returns the document version, or 0 when unset.
func (d Document) Version() int {
	return asInt(d["version"])
}

// CreatedAt returns the creation timestamp, or the zero time when unset.
func (d Document) CreatedAt() time.Time {
	t, _ := d["createdAt"].(time.Time)
	return t
}

// UpdatedAt returns the last mutation timestamp, or the zero time when unset.
func (d Document) UpdatedAt() time.Time {
	t, _ := d["updatedAt"].(time.Time)
	return t
}

func (d Document) clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// asInt reads a numeric value that may have round-tripped through JSON.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		f, _ := n.Float64()
		return int(f)
	default:
		return 0
	}
}

// Store is a document store rooted at a base directory.
type Store struct {
	baseDir string
}

// New creates a store rooted at baseDir. The directory is created lazily
// on first save.
func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// BaseDir returns the store's root directory.
func (s *Store) BaseDir() string { return s.baseDir }

func (s *Store) collectionDir(collection string) (string, error) {
	name, err := sanitizeID(collection)
	if err != nil {
		return "", fmt.Errorf("invalid collection name %q: %w", collection, err)
	}
	return filepath.Join(s.baseDir, name), nil
}

func (s *Store) documentPath(collection, id string) (string, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return "", err
	}
	name, err := sanitizeID(id)
	if err != nil {
		return "", fmt.Errorf("invalid document id %q: %w", id, err)
	}
	return filepath.Join(dir, name+".json"), nil
}

// Save persists a document, assigning an id when absent, stamping
// createdAt on first save and updatedAt always, and incrementing the
// version. Any existing file for the id is overwritten.
func (s *Store) Save(ctx context.Context, collection string, doc Document) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved := doc.clone()
	if saved.ID() == "" {
		saved["id"] = uuid.NewString()
	}
	saved["collection"] = collection

	now := time.Now().UTC()
	if _, ok := saved["createdAt"]; !ok {
		saved["createdAt"] = now
	}
	saved["updatedAt"] = now
	saved["version"] = doc.Version() + 1

	path, err := s.documentPath(collection, saved.ID())
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create collection dir: %w", err)
	}

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", saved.ID(), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("write document %s: %w", saved.ID(), err)
	}
	return saved, nil
}

// Load reads a document by id. A missing document returns (nil, nil);
// any other failure is an error.
func (s *Store) Load(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.documentPath(collection, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read document %s/%s: %w", collection, id, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, id, err)
	}
	return Document(rehydrate(raw).(map[string]any)), nil
}

// Update loads the document, shallow-merges the patch over it and
// re-saves. The patch cannot alter id, collection or createdAt. The
// version advances by two per call: once for the merge bookkeeping here
// and once inside Save. This compounding is part of the on-disk
// compatibility contract; see the package tests.
func (s *Store) Update(ctx context.Context, collection, id string, patch Document) (Document, error) {
	current, err := s.Load(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, collection, id)
	}

	merged := current.clone()
	for k, v := range patch {
		merged[k] = v
	}
	merged["id"] = current.ID()
	merged["collection"] = current.Collection()
	merged["createdAt"] = current["createdAt"]
	merged["updatedAt"] = time.Now().UTC()
	merged["version"] = current.Version() + 1

	return s.Save(ctx, collection, merged)
}

// Delete removes a document file. Returns false (no error) when the
// document did not exist.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.documentPath(collection, id)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Collections returns the names of all collections that have a directory
// under the store's base dir.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read base dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// readAll loads every document in a collection. A missing collection
// directory yields an empty slice.
func (s *Store) readAll(ctx context.Context, collection string) ([]Document, error) {
	dir, err := s.collectionDir(collection)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read collection %s: %w", collection, err)
	}

	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := strings.TrimSuffix(e.Name(), ".json")
		doc, err := s.Load(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}
