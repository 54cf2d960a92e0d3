package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVector(seed, dims int) []float32 {
	v := make([]float32, dims)
	for j := range v {
		v[j] = float32(math.Sin(float64(seed+1) * float64(j+1) * 0.1))
	}
	return v
}

func TestAdd_RejectsDuplicates(t *testing.T) {
	s := New(Config{Dimensions: 4})

	doc, err := s.Add("a", []float32{1, 0, 0, 0}, map[string]any{"kind": "test"})
	require.NoError(t, err)
	assert.Equal(t, "a", doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	_, err = s.Add("a", []float32{0, 1, 0, 0}, nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)
	assert.Equal(t, 1, s.Len())
}

func TestAdd_RejectsDimensionMismatch(t *testing.T) {
	s := New(Config{Dimensions: 4})

	_, err := s.Add("a", []float32{1, 0}, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, s.Len())
}

func TestSearch_TopHitIsInsertedVector(t *testing.T) {
	const dims = 128
	s := New(Config{Dimensions: dims})

	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	for i, id := range ids {
		_, err := s.Add(id, testVector(i, dims), nil)
		require.NoError(t, err)
	}

	matches, err := s.Search(testVector(4, dims), 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	assert.Equal(t, "e", matches[0].Document.ID)
	assert.GreaterOrEqual(t, matches[0].Similarity, float32(0.99))
	for _, m := range matches[1:] {
		assert.Less(t, m.Similarity, matches[0].Similarity)
	}
}

func TestGetAndDelete_KeepMapAndIndexInLockstep(t *testing.T) {
	const dims = 8
	s := New(Config{Dimensions: dims})

	_, err := s.Add("a", testVector(0, dims), nil)
	require.NoError(t, err)
	_, err = s.Add("b", testVector(1, dims), nil)
	require.NoError(t, err)

	doc, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", doc.ID)

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, 1, s.Len())

	_, ok = s.Get("a")
	assert.False(t, ok)

	matches, err := s.Search(testVector(0, dims), 5)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "a", m.Document.ID)
	}
}

func TestPersistLoad_RoundTrip(t *testing.T) {
	const dims = 16
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")

	s1 := New(Config{Dimensions: dims})
	ids := []string{"a", "b", "c", "d", "e"}
	for i, id := range ids {
		_, err := s1.Add(id, testVector(i, dims), map[string]any{"seed": i})
		require.NoError(t, err)
	}
	require.NoError(t, s1.Persist(ctx, path))

	s2 := New(Config{Dimensions: dims})
	require.NoError(t, s2.Load(ctx, path))
	assert.Equal(t, len(ids), s2.Len())

	doc, ok := s2.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	matches, err := s2.Search(testVector(2, dims), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "c", matches[0].Document.ID)
}

func TestLoad_RejectsDimensionMismatchWithoutMutating(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")

	s1 := New(Config{Dimensions: 8})
	_, err := s1.Add("a", testVector(0, 8), nil)
	require.NoError(t, err)
	require.NoError(t, s1.Persist(ctx, path))

	s2 := New(Config{Dimensions: 16})
	_, err = s2.Add("keep", testVector(1, 16), nil)
	require.NoError(t, err)

	err = s2.Load(ctx, path)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	// Prior state is intact.
	assert.Equal(t, 1, s2.Len())
	_, ok := s2.Get("keep")
	assert.True(t, ok)
}

func TestClear(t *testing.T) {
	const dims = 8
	s := New(Config{Dimensions: dims})

	_, err := s.Add("a", testVector(0, dims), nil)
	require.NoError(t, err)
	s.Clear()
	assert.Equal(t, 0, s.Len())

	// The fresh index keeps the same dimensionality.
	_, err = s.Add("b", testVector(1, dims), nil)
	require.NoError(t, err)
	matches, err := s.Search(testVector(1, dims), 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "b", matches[0].Document.ID)
}
