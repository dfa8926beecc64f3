package hnsw

import (
	"encoding"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Compile time checks to ensure Graph satisfies the binary interfaces.
var (
	_ encoding.BinaryMarshaler   = (*Graph)(nil)
	_ encoding.BinaryUnmarshaler = (*Graph)(nil)
)

const (
	graphMagic   = "VHNS"
	graphVersion = 1
)

// ErrInvalidGraph is returned when serialized graph data is malformed.
var ErrInvalidGraph = errors.New("hnsw: invalid graph data")

// MarshalBinary encodes the graph. Layout (little endian):
//
//	magic[4] version u32 dim u32 M u32 efConstruction u32 efSearch u32
//	seed u64 ep u32 maxLevel u32 count u32
//	per node: level u32, dim x f32, per layer: n u32, n x u32
func (g *Graph) MarshalBinary() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	size := 4 + 4*5 + 8 + 4*3
	for _, n := range g.nodes {
		size += 4 + 4*len(n.vector)
		for _, l := range n.links {
			size += 4 + 4*len(l)
		}
	}

	buf := make([]byte, 0, size)
	buf = append(buf, graphMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, graphVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(g.dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(g.opts.M))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(g.opts.EFConstruction))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(g.opts.EFSearch))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(g.opts.Seed))
	buf = binary.LittleEndian.AppendUint32(buf, g.ep)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(g.maxLevel))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(g.nodes)))

	for _, n := range g.nodes {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(n.level))
		for _, f := range n.vector {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
		for _, l := range n.links {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(l)))
			for _, id := range l {
				buf = binary.LittleEndian.AppendUint32(buf, id)
			}
		}
	}

	return buf, nil
}

// UnmarshalBinary replaces the graph with the decoded data. The decoded
// graph does not retain data.
func (g *Graph) UnmarshalBinary(data []byte) error {
	r := reader{data: data}

	if string(r.bytes(4)) != graphMagic {
		return fmt.Errorf("%w: bad magic", ErrInvalidGraph)
	}
	if v := r.u32(); v != graphVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidGraph, v)
	}

	dim := int(r.u32())
	opts := Options{
		M:              int(r.u32()),
		EFConstruction: int(r.u32()),
		EFSearch:       int(r.u32()),
		Seed:           int64(r.u64()),
	}
	ep := r.u32()
	top := int(r.u32())
	count := r.u32()
	if r.err != nil {
		return r.err
	}
	if dim <= 0 || top > maxLevel {
		return fmt.Errorf("%w: dim=%d maxLevel=%d", ErrInvalidGraph, dim, top)
	}
	// Each node needs at least a level, its vector and one list length.
	if uint64(count)*uint64(8+4*dim) > uint64(r.remaining()) {
		return fmt.Errorf("%w: node count %d exceeds data", ErrInvalidGraph, count)
	}

	nodes := make([]*node, count)
	for i := range nodes {
		level := int(r.u32())
		if r.err != nil {
			return r.err
		}
		if level > maxLevel {
			return fmt.Errorf("%w: node %d level %d", ErrInvalidGraph, i, level)
		}
		n := &node{vector: make([]float32, dim), level: level, links: make([][]uint32, level+1)}
		for j := range n.vector {
			n.vector[j] = math.Float32frombits(r.u32())
		}
		for l := range n.links {
			k := r.u32()
			if r.err != nil {
				return r.err
			}
			if uint64(k)*4 > uint64(r.remaining()) {
				return fmt.Errorf("%w: node %d link list too long", ErrInvalidGraph, i)
			}
			links := make([]uint32, k)
			for j := range links {
				links[j] = r.u32()
				if links[j] >= count {
					return fmt.Errorf("%w: node %d links to %d", ErrInvalidGraph, i, links[j])
				}
			}
			n.links[l] = links
		}
		nodes[i] = n
	}
	if r.err != nil {
		return r.err
	}
	if r.remaining() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrInvalidGraph, r.remaining())
	}
	if count > 0 && (ep >= count || nodes[ep].level != top) {
		return fmt.Errorf("%w: bad entry point %d", ErrInvalidGraph, ep)
	}

	fresh := newGraph(dim, opts)
	fresh.rng = rand.New(rand.NewSource(opts.Seed + int64(count))) // nolint gosec

	g.mu.Lock()
	defer g.mu.Unlock()
	g.dim = fresh.dim
	g.opts = fresh.opts
	g.mmax = fresh.mmax
	g.mmax0 = fresh.mmax0
	g.ml = fresh.ml
	g.rng = fresh.rng
	g.ep = ep
	g.maxLevel = top
	g.nodes = nodes
	return nil
}

// Load decodes a graph produced by MarshalBinary.
func Load(data []byte) (*Graph, error) {
	g := &Graph{}
	if err := g.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return g, nil
}

type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.remaining() < n {
		r.err = fmt.Errorf("%w: truncated at offset %d", ErrInvalidGraph, r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}
