// Package vector pairs a document map with an HNSW index, keeping the
// two in 1:1 correspondence, and persists the whole store as one JSON
// file.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"agentdb/index"
)

// Errors returned by the store.
var (
	ErrAlreadyExists     = errors.New("vector: document already exists")
	ErrNotFound          = errors.New("vector: document not found")
	ErrDimensionMismatch = index.ErrDimensionMismatch
)

// Document is a stored vector with its metadata.
type Document struct {
	ID        string         `json:"id"`
	Vector    []float32      `json:"vector"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Match is a search hit. Similarity is 1 - cosine distance.
type Match struct {
	Document   *Document
	Similarity float32
}

// Config configures a store instance. Dimensions is required; M and
// EfConstruction default like the underlying index.
type Config struct {
	Dimensions     int
	M              int
	EfConstruction int
}

// Store is the document-facing facade over the HNSW index. Vectors are
// append-mostly: adding an existing id is an error, unlike the document
// store's overwriting Save.
type Store struct {
	cfg  Config
	docs map[string]*Document
	idx  *index.HNSW
	mu   sync.RWMutex
}

// New creates an empty store for vectors of the given dimensionality.
func New(cfg Config) *Store {
	return &Store{
		cfg:  cfg,
		docs: make(map[string]*Document),
		idx:  newIndex(cfg),
	}
}

func newIndex(cfg Config) *index.HNSW {
	return index.NewHNSW(index.Config{
		Dimensions:     cfg.Dimensions,
		M:              cfg.M,
		EfConstruction: cfg.EfConstruction,
	})
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Add stores a vector document and indexes it.
func (s *Store) Add(id string, vec []float32, metadata map[string]any) (*Document, error) {
	if len(vec) != s.cfg.Dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), s.cfg.Dimensions)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, id)
	}

	doc := &Document{
		ID:        id,
		Vector:    vec,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.idx.Insert(id, vec); err != nil {
		return nil, err
	}
	s.docs[id] = doc
	return doc, nil
}

// Search returns up to limit documents nearest to the query, ordered by
// descending similarity.
func (s *Store) Search(query []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.idx.Search(query, limit)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		doc, ok := s.docs[r.ID]
		if !ok {
			continue
		}
		matches = append(matches, Match{Document: doc, Similarity: 1 - r.Distance})
	}
	return matches, nil
}

// Get returns a stored document by id.
func (s *Store) Get(id string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	return doc, ok
}

// Delete removes a document from the map and the index together.
// Returns false if the id is unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false
	}
	delete(s.docs, id)
	s.idx.Remove(id)
	return true
}

// Clear empties the store and replaces the index with a fresh one of the
// same configuration.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]*Document)
	s.idx = newIndex(s.cfg)
}

// storeFile is the on-disk form: documents plus the serialized graph.
type storeFile struct {
	Documents []*Document     `json:"documents"`
	IndexData json.RawMessage `json:"indexData"`
}

// Persist writes the whole store to a JSON file.
func (s *Store) Persist(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	graph, err := s.idx.Marshal()
	if err != nil {
		return fmt.Errorf("vector: marshal index: %w", err)
	}

	file := storeFile{
		Documents: make([]*Document, 0, len(s.docs)),
		IndexData: graph,
	}
	for _, doc := range s.docs {
		file.Documents = append(file.Documents, doc)
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("vector: encode store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("vector: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("vector: write store: %w", err)
	}
	return nil
}

// Load restores a store from a file written by Persist. A dimension
// mismatch between the file and this instance is rejected before any
// state is mutated.
func (s *Store) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vector: read store: %w", err)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("vector: decode store: %w", err)
	}

	restored := newIndex(s.cfg)
	if len(file.IndexData) > 0 {
		if err := restored.Unmarshal(file.IndexData); err != nil {
			return err
		}
		if restored.Dimensions() != s.cfg.Dimensions {
			return fmt.Errorf("%w: file has %d, store wants %d",
				ErrDimensionMismatch, restored.Dimensions(), s.cfg.Dimensions)
		}
	}
	for _, doc := range file.Documents {
		if len(doc.Vector) != s.cfg.Dimensions {
			return fmt.Errorf("%w: document %s has %d, store wants %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), s.cfg.Dimensions)
		}
	}

	docs := make(map[string]*Document, len(file.Documents))
	for _, doc := range file.Documents {
		docs[doc.ID] = doc
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = docs
	s.idx = restored
	return nil
}
