package hnsw

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/vecdir/distance"
	"github.com/hupe1980/vecdir/index"
	"github.com/hupe1980/vecdir/internal/hnsw"
)

// Name is the builder name recorded in persisted index blobs.
const Name = "hnsw"

// ctxCheckInterval is how many inserts run between context checks.
const ctxCheckInterval = 256

// Compile time checks.
var (
	_ index.Builder = (*Builder)(nil)
	_ index.Index   = (*Index)(nil)
)

// Options configures the HNSW builder.
type Options = hnsw.Options

// DefaultOptions are the builder defaults: M=16, EFConstruction=200,
// EFSearch=64, Seed=42.
var DefaultOptions = hnsw.DefaultOptions

// Builder builds HNSW indexes.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder with DefaultOptions modified by optFns.
func NewBuilder(optFns ...func(o *Options)) *Builder {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Builder{opts: opts}
}

// Name returns "hnsw".
func (b *Builder) Name() string { return Name }

// Options returns the builder options.
func (b *Builder) Options() Options { return b.opts }

// Build inserts items into a fresh graph in order. Node ids equal item
// positions.
func (b *Builder) Build(ctx context.Context, dim int, items []index.Item) (index.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := index.ValidateItems(dim, items); err != nil {
		return nil, err
	}

	g := hnsw.New(dim, func(o *hnsw.Options) { *o = b.opts })
	ids := make([]string, len(items))
	for i, it := range items {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := g.Insert(it.Vector); err != nil {
			return nil, fmt.Errorf("insert %q: %w", it.ID, err)
		}
		ids[i] = it.ID
	}

	return &Index{graph: g, ids: ids}, nil
}

// Load restores an index from MarshalBinary output.
func (b *Builder) Load(data []byte) (index.Index, error) {
	idx := &Index{}
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return idx, nil
}

// Index is an HNSW graph plus the item ids indexed by node id.
type Index struct {
	graph  *hnsw.Graph
	metric distance.Metric
	ids    []string
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Dimension returns the vector dimension.
func (i *Index) Dimension() int { return i.graph.Dimension() }

// Search returns the top k items by cosine similarity. When k covers the whole
// index, or the index is no larger than the search beam, every vector is
// scored so results are exact.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]index.Result, error) {
	dim := i.graph.Dimension()
	if len(query) != dim {
		return nil, &index.ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}
	if k <= 0 || len(i.ids) == 0 {
		return []index.Result{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	score, err := distance.Provider(i.metric)
	if err != nil {
		return nil, err
	}

	var scored []index.Scored
	efSearch := i.graph.Options().EFSearch
	if k >= len(i.ids) || len(i.ids) <= efSearch {
		scored = make([]index.Scored, len(i.ids))
		for pos := range i.ids {
			scored[pos] = index.Scored{Pos: pos, Score: score(query, i.graph.Vector(uint32(pos)))}
		}
	} else {
		candidates, err := i.graph.KNNSearch(query, k, max(efSearch, k))
		if err != nil {
			return nil, err
		}
		scored = make([]index.Scored, len(candidates))
		for n, c := range candidates {
			scored[n] = index.Scored{Pos: int(c.ID), Score: score(query, i.graph.Vector(c.ID))}
		}
	}

	top := index.Rank(scored, k)
	out := make([]index.Result, len(top))
	for n, s := range top {
		out[n] = index.Result{ID: i.ids[s.Pos], Score: s.Score}
	}
	return out, nil
}

// MarshalBinary stores: n(uint32), n x (idLen(uint32), id bytes), then the
// graph encoding.
func (i *Index) MarshalBinary() ([]byte, error) {
	graph, err := i.graph.MarshalBinary()
	if err != nil {
		return nil, err
	}

	size := 4 + len(graph)
	for _, id := range i.ids {
		size += 4 + len(id)
	}

	out := make([]byte, 0, size)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(i.ids)))
	for _, id := range i.ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
	}
	return append(out, graph...), nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: hnsw: truncated", index.ErrInvalidData)
	}
	n := int(binary.LittleEndian.Uint32(data))
	off := 4
	if uint64(n)*4 > uint64(len(data)-off) {
		return fmt.Errorf("%w: hnsw: id count %d exceeds data", index.ErrInvalidData, n)
	}

	ids := make([]string, n)
	for pos := range ids {
		if off+4 > len(data) {
			return fmt.Errorf("%w: hnsw: truncated ids", index.ErrInvalidData)
		}
		l := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if off+l > len(data) {
			return fmt.Errorf("%w: hnsw: truncated id %d", index.ErrInvalidData, pos)
		}
		ids[pos] = string(data[off : off+l])
		off += l
	}

	g, err := hnsw.Load(data[off:])
	if err != nil {
		return fmt.Errorf("%w: %w", index.ErrInvalidData, err)
	}
	if g.Len() != n {
		return fmt.Errorf("%w: hnsw: %d ids for %d nodes", index.ErrInvalidData, n, g.Len())
	}

	i.graph, i.ids = g, ids
	return nil
}
