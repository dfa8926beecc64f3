package flat

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/vecdir/distance"
	"github.com/hupe1980/vecdir/index"
)

// Name is the builder name recorded in persisted index blobs.
const Name = "flat"

const magic = "FLAT"

// Compile time checks.
var (
	_ index.Builder = Builder{}
	_ index.Index   = (*Index)(nil)
)

// Builder builds exact brute-force indexes.
type Builder struct{}

// NewBuilder returns a flat builder.
func NewBuilder() Builder { return Builder{} }

// Name returns "flat".
func (Builder) Name() string { return Name }

// Build copies items into a contiguous index.
func (Builder) Build(ctx context.Context, dim int, items []index.Item) (index.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := index.ValidateItems(dim, items); err != nil {
		return nil, err
	}

	idx := &Index{
		dim:  dim,
		ids:  make([]string, len(items)),
		data: make([]float32, 0, len(items)*dim),
	}
	for i, it := range items {
		idx.ids[i] = it.ID
		idx.data = append(idx.data, it.Vector...)
	}
	return idx, nil
}

// Load restores an index from MarshalBinary output.
func (Builder) Load(data []byte) (index.Index, error) {
	idx := &Index{}
	if err := idx.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return idx, nil
}

// Index is a brute-force vector index. Vectors are stored in one
// contiguous slice, item i at data[i*dim:(i+1)*dim].
type Index struct {
	dim    int
	metric distance.Metric
	ids    []string
	data   []float32
}

// Len returns the number of indexed vectors.
func (i *Index) Len() int { return len(i.ids) }

// Dimension returns the vector dimension.
func (i *Index) Dimension() int { return i.dim }

func (i *Index) vector(pos int) []float32 {
	return i.data[pos*i.dim : (pos+1)*i.dim]
}

// Search scores every vector against query and returns the top k.
func (i *Index) Search(ctx context.Context, query []float32, k int) ([]index.Result, error) {
	if len(query) != i.dim {
		return nil, &index.ErrDimensionMismatch{Expected: i.dim, Actual: len(query)}
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

	scored := make([]index.Scored, len(i.ids))
	for pos := range i.ids {
		scored[pos] = index.Scored{Pos: pos, Score: score(query, i.vector(pos))}
	}

	top := index.Rank(scored, k)
	out := make([]index.Result, len(top))
	for n, s := range top {
		out[n] = index.Result{ID: i.ids[s.Pos], Score: s.Score}
	}
	return out, nil
}

// MarshalBinary stores: magic, dim(uint32), n(uint32), then for each item:
// idLen(uint32), id bytes, vec(float32[dim]).
func (i *Index) MarshalBinary() ([]byte, error) {
	size := len(magic) + 8
	for _, id := range i.ids {
		size += 4 + len(id) + 4*i.dim
	}

	out := make([]byte, 0, size)
	out = append(out, magic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(i.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(i.ids)))
	for pos, id := range i.ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
		for _, f := range i.vector(pos) {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out, nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < len(magic)+8 || string(data[:len(magic)]) != magic {
		return fmt.Errorf("%w: flat: bad header", index.ErrInvalidData)
	}
	off := len(magic)
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }

	dim := int(getU32())
	n := int(getU32())
	if dim <= 0 {
		return fmt.Errorf("%w: flat: dimension %d", index.ErrInvalidData, dim)
	}
	if uint64(n)*uint64(4+4*dim) > uint64(len(data)-off) {
		return fmt.Errorf("%w: flat: count %d exceeds data", index.ErrInvalidData, n)
	}

	ids := make([]string, n)
	vecs := make([]float32, n*dim)
	for pos := range n {
		if off+4 > len(data) {
			return fmt.Errorf("%w: flat: truncated", index.ErrInvalidData)
		}
		idLen := int(getU32())
		if off+idLen+4*dim > len(data) {
			return fmt.Errorf("%w: flat: truncated item %d", index.ErrInvalidData, pos)
		}
		ids[pos] = string(data[off : off+idLen])
		off += idLen
		for j := range dim {
			vecs[pos*dim+j] = math.Float32frombits(getU32())
		}
	}
	if off != len(data) {
		return fmt.Errorf("%w: flat: %d trailing bytes", index.ErrInvalidData, len(data)-off)
	}

	i.dim, i.ids, i.data = dim, ids, vecs
	return nil
}
