// Package index implements approximate nearest neighbor search over
// fixed-dimension vectors using a Hierarchical Navigable Small World graph.
package index

import "errors"

// Errors returned by the index.
var (
	ErrDimensionMismatch = errors.New("index: vector dimension mismatch")
)

// SearchResult is a nearest neighbor match, ordered by ascending distance.
type SearchResult struct {
	ID       string
	Distance float32
}

// Index provides approximate nearest neighbor search.
type Index interface {
	// Insert adds a vector under the given id.
	Insert(id string, vector []float32) error

	// Search returns the k nearest neighbors to the query.
	Search(query []float32, k int) ([]SearchResult, error)

	// Remove deletes a vector by id. Returns false if the id is unknown.
	Remove(id string) bool

	// Marshal/Unmarshal serialize the graph topology as JSON.
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error

	// Len returns the number of indexed vectors.
	Len() int
}
