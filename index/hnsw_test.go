package index

import (
	"errors"
	"math"
	"testing"
)

func TestHNSW_InsertAndLen(t *testing.T) {
	h := NewHNSW(Config{Dimensions: 3})

	for _, v := range []struct {
		id  string
		vec []float32
	}{
		{"a", []float32{1, 0, 0}},
		{"b", []float32{0, 1, 0}},
		{"c", []float32{0, 0, 1}},
	} {
		if err := h.Insert(v.id, v.vec); err != nil {
			t.Fatalf("Insert(%s) failed: %v", v.id, err)
		}
	}

	if h.Len() != 3 {
		t.Errorf("expected Len()=3, got %d", h.Len())
	}
}

func TestHNSW_InsertDimensionMismatch(t *testing.T) {
	h := NewHNSW(Config{Dimensions: 3})
	err := h.Insert("a", []float32{1, 0})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHNSW_Search(t *testing.T) {
	h := NewHNSW(Config{Dimensions: 3})
	h.Insert("a", []float32{1, 0, 0})
	h.Insert("b", []float32{0.9, 0.1, 0})
	h.Insert("c", []float32{0, 1, 0})
	h.Insert("d", []float32{0, 0, 1})

	results, err := h.Search([]float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("expected first result a, got %s", results[0].ID)
	}
	if results[1].ID != "b" {
		t.Errorf("expected second result b, got %s", results[1].ID)
	}
	if results[0].Distance > results[1].Distance {
		t.Errorf("results out of order: %v", results)
	}
}

func TestHNSW_SearchEmpty(t *testing.T) {
	h := NewHNSW(Config{Dimensions: 3})
	results, err := h.Search([]float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index errored: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %v", results)
	}
}

func TestHNSW_SearchDimensionMismatch(t *testing.T) {
	h := NewHNSW(Config{Dimensions: 3})
	h.Insert("a", []float32{1, 0, 0})
	if _, err := h.Search([]float32{1, 0}, 1); !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHNSW_Remove(t *testing.T) {
	h := NewHNSW(Config{Dimensions: 3})
	h.Insert("a", []float32{1, 0, 0})
	h.Insert("b", []float32{0, 1, 0})
	before := h.Len()

	h.Insert("c", []float32{0, 0, 1})
	if !h.Remove("c") {
		t.Fatal("Remove(c) returned false")
	}
	if h.Len() != before {
		t.Errorf("expected Len back to %d, got %d", before, h.Len())
	}

	if h.Remove("unknown") {
		t.Error("Remove of unknown id returned true")
	}
	if h.Len() != before {
		t.Errorf("Remove of unknown id changed Len to %d", h.Len())
	}

	// Removing the entry point must leave a searchable graph.
	for h.Len() > 1 {
		results, err := h.Search([]float32{1, 0, 0}, 1)
		if err != nil || len(results) == 0 {
			t.Fatalf("search during removal failed: %v %v", results, err)
		}
		h.Remove(results[0].ID)
	}
	if _, err := h.Search([]float32{1, 0, 0}, 1); err != nil {
		t.Fatalf("search after removals failed: %v", err)
	}
}

// deterministicVector spreads ten ids across distinct directions.
func deterministicVector(seed, dims int) []float32 {
	v := make([]float32, dims)
	for j := range v {
		v[j] = float32(math.Sin(float64(seed+1) * float64(j+1) * 0.1))
	}
	return v
}

func TestHNSW_TopHitIsExactMatch(t *testing.T) {
	const dims = 128
	h := NewHNSW(Config{Dimensions: dims})

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for i, id := range ids {
		if err := h.Insert(id, deterministicVector(i, dims)); err != nil {
			t.Fatalf("Insert(%s) failed: %v", id, err)
		}
	}

	results, err := h.Search(deterministicVector(4, dims), 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "e" {
		t.Errorf("expected e first, got %s", results[0].ID)
	}
	if sim := 1 - results[0].Distance; sim < 0.99 {
		t.Errorf("expected similarity >= 0.99 for exact match, got %v", sim)
	}
	for _, r := range results[1:] {
		if r.Distance <= results[0].Distance {
			t.Errorf("expected strictly lower similarity for %s", r.ID)
		}
	}
}

func TestHNSW_MarshalUnmarshal(t *testing.T) {
	const dims = 16
	h1 := NewHNSW(Config{Dimensions: dims})
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for i, id := range ids {
		h1.Insert(id, deterministicVector(i, dims))
	}

	data, err := h1.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	h2 := NewHNSW(Config{Dimensions: dims})
	if err := h2.Unmarshal(data); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if h2.Len() != len(ids) {
		t.Fatalf("expected Len()=%d after unmarshal, got %d", len(ids), h2.Len())
	}

	// Search behavior must match on a fixed set of sample queries.
	for i := range ids {
		query := deterministicVector(i, dims)
		r1, _ := h1.Search(query, 3)
		r2, err := h2.Search(query, 3)
		if err != nil {
			t.Fatalf("search on restored graph failed: %v", err)
		}
		if len(r1) != len(r2) {
			t.Fatalf("result count diverged: %d vs %d", len(r1), len(r2))
		}
		for j := range r1 {
			if r1[j].ID != r2[j].ID {
				t.Errorf("query %d result %d diverged: %s vs %s", i, j, r1[j].ID, r2[j].ID)
			}
		}
	}
}

func TestRandomLayer_Bounded(t *testing.T) {
	for i := 0; i < 10000; i++ {
		if l := randomLayer(); l < 0 || l > maxLevel {
			t.Fatalf("layer %d out of range", l)
		}
	}
}
