// Package vectorstore keeps chunk embeddings in memory and ranks them by cosine similarity.
package vectorstore

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/spigell/draft-n-pray/internal/cv"
)

// DefaultK is the number of results returned when a search does not ask for a positive k.
const DefaultK = 3

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry is a chunk with its embedding.
type Entry struct {
	Chunk  *cv.Chunk
	Vector []float32
}

// Result is a ranked search hit.
type Result struct {
	Chunk *cv.Chunk
	Score float64
}

// Store is an in-memory vector store safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	entries    []Entry
}

func New() *Store {
	return &Store{}
}

// Add appends entries. All vectors in a store must share the same dimension.
func (s *Store) Add(entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// The first batch fixes the dimension only once it is accepted as a whole.
	dimensions := s.dimensions
	for i, entry := range entries {
		if entry.Chunk == nil {
			return fmt.Errorf("entry %d: chunk is required", i)
		}
		if len(entry.Vector) == 0 {
			return fmt.Errorf("entry %d: empty vector", i)
		}
		if dimensions == 0 {
			dimensions = len(entry.Vector)
		}
		if len(entry.Vector) != dimensions {
			return fmt.Errorf("entry %d: %w: %d != %d", i, ErrDimensionMismatch, len(entry.Vector), dimensions)
		}
	}

	s.dimensions = dimensions
	s.entries = append(s.entries, entries...)
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) Dimensions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimensions
}

// Search returns the k entries most similar to query, best first.
// Entries with equal scores keep their insertion order.
func (s *Store) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 {
		k = DefaultK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	if len(query) != s.dimensions {
		return nil, fmt.Errorf("%w: query has %d, store has %d", ErrDimensionMismatch, len(query), s.dimensions)
	}

	results := make([]Result, 0, len(s.entries))
	for _, entry := range s.entries {
		score, err := CosineSimilarity(query, entry.Vector)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Chunk: entry.Chunk, Score: score})
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// CosineSimilarity returns a value in [-1, 1]. Zero vectors have similarity 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
