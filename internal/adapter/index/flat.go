package index

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"ventas/internal/domain"
)

var (
	// ErrDimensionMismatch means a vector's length disagrees with the index
	// dimension. The failing Add or Search leaves the index untouched.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrIndexIntegrity means the persisted vector and metadata artifacts
	// disagree in length. Fatal at load time.
	ErrIndexIntegrity = errors.New("index integrity error")
)

// Flat is an exact inner-product index over L2-normalized vectors. Vectors and
// their metadata records live in parallel slices: position i in both refers to
// the same product, which makes metadata lookup O(1) after search. Exact
// search is fine at catalog scale (hundreds to low thousands of products).
type Flat struct {
	dimension int

	mu   sync.RWMutex
	snap *snapshot
}

// snapshot is the immutable search state. Writers build a new snapshot and
// swap it in whole, so a concurrent search sees either the old or the new
// index, never a partially appended one.
type snapshot struct {
	vectors [][]float32
	records []domain.EmbeddingRecord
}

// NewFlat creates an empty index with the given dimension.
func NewFlat(dimension int) *Flat {
	return &Flat{
		dimension: dimension,
		snap:      &snapshot{},
	}
}

// Dimension returns the configured vector dimension.
func (f *Flat) Dimension() int {
	return f.dimension
}

// Len returns the number of stored records.
func (f *Flat) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.snap.records)
}

// Add normalizes each record's vector to unit L2 norm and appends vectors and
// records in lock-step. Any dimension violation rejects the whole batch.
func (f *Flat) Add(records []domain.EmbeddingRecord) error {
	for _, r := range records {
		if len(r.Vector) != f.dimension {
			return fmt.Errorf("%w: expected %d, got %d for product %d",
				ErrDimensionMismatch, f.dimension, len(r.Vector), r.ProductID)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	next := &snapshot{
		vectors: make([][]float32, 0, len(f.snap.vectors)+len(records)),
		records: make([]domain.EmbeddingRecord, 0, len(f.snap.records)+len(records)),
	}
	next.vectors = append(next.vectors, f.snap.vectors...)
	next.records = append(next.records, f.snap.records...)

	for _, r := range records {
		next.vectors = append(next.vectors, normalize(r.Vector))
		next.records = append(next.records, r)
	}

	f.snap = next
	return nil
}

// Search returns up to k records ranked by descending cosine similarity to the
// query (inner product after normalization). Ties rank the earlier-inserted
// record first. An empty index yields an empty result, not an error.
func (f *Flat) Search(query []float32, k int) ([]domain.SearchResult, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d",
			ErrDimensionMismatch, f.dimension, len(query))
	}

	f.mu.RLock()
	snap := f.snap
	f.mu.RUnlock()

	if k <= 0 || len(snap.records) == 0 {
		return []domain.SearchResult{}, nil
	}

	q := normalize(query)

	type scored struct {
		pos   int
		score float64
	}
	scores := make([]scored, len(snap.vectors))
	for i, v := range snap.vectors {
		scores[i] = scored{pos: i, score: dot(q, v)}
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	results := make([]domain.SearchResult, k)
	for i := 0; i < k; i++ {
		results[i] = domain.SearchResult{
			Score:  scores[i].score,
			Record: snap.records[scores[i].pos],
		}
	}
	return results, nil
}

// normalize returns a unit-L2 copy of v. A zero vector is returned as a copy
// unchanged rather than dividing by zero.
func normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if norm == 0 {
		copy(out, v)
		return out
	}
	inv := 1.0 / math.Sqrt(norm)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
