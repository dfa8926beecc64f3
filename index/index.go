package index

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidData is returned by Builder.Load for malformed index data.
var ErrInvalidData = errors.New("index: invalid data")

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Item is a vector to be indexed.
type Item struct {
	ID     string
	Vector []float32
}

// Result is a single search hit. Score is the cosine similarity (dot
// product of normalized vectors); higher is closer.
type Result struct {
	ID    string
	Score float32
}

// Index is an immutable, searchable snapshot built from a set of items.
// Implementations must be safe for concurrent Search calls.
type Index interface {
	// Len returns the number of indexed items.
	Len() int

	// Dimension returns the vector dimension.
	Dimension() int

	// Search returns at most k results ordered by descending score. Equal
	// scores are ordered by the position of the item in the build input.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// MarshalBinary serializes the index for Builder.Load.
	MarshalBinary() ([]byte, error)
}

// Builder constructs indexes. Build is a pure function of its input: the
// same items in the same order produce an equivalent index.
type Builder interface {
	// Name identifies the builder in persisted index blobs.
	Name() string

	// Build constructs a new index over items. Every item vector must have
	// dim components.
	Build(ctx context.Context, dim int, items []Item) (Index, error)

	// Load restores an index from MarshalBinary output. The returned index
	// does not retain data.
	Load(data []byte) (Index, error)
}

// Scored is an item position paired with its score.
type Scored struct {
	Pos   int
	Score float32
}

// Rank orders scored items by descending score, then ascending position,
// and truncates to k.
func Rank(scored []Scored, k int) []Scored {
	slices.SortFunc(scored, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return a.Pos - b.Pos
		}
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// ValidateItems checks every item against dim.
func ValidateItems(dim int, items []Item) error {
	if dim <= 0 {
		return fmt.Errorf("index: invalid dimension %d", dim)
	}
	for i := range items {
		if len(items[i].Vector) != dim {
			return fmt.Errorf("item %q: %w", items[i].ID, &ErrDimensionMismatch{Expected: dim, Actual: len(items[i].Vector)})
		}
	}
	return nil
}
