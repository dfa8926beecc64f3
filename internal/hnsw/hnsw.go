package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/hupe1980/vecdir/distance"
)

// maxLevel caps the layer a node can be assigned to.
const maxLevel = 16

// ErrDimensionMismatch is a named error type for dimension mismatch
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Options represents the options for configuring HNSW.
type Options struct {
	// M specifies the number of established connections for every new element during construction.
	// Layer 0 allows 2*M connections.
	M int

	// EFConstruction is the size of the dynamic candidate list used while inserting.
	EFConstruction int

	// EFSearch is the default size of the dynamic candidate list used while searching.
	// Larger values improve recall at the cost of search time.
	EFSearch int

	// Seed drives level generation. Equal seeds and equal insertion order
	// produce identical graphs.
	Seed int64
}

// DefaultOptions holds the defaults used by New.
var DefaultOptions = Options{
	M:              16,
	EFConstruction: 200,
	EFSearch:       64,
	Seed:           42,
}

type node struct {
	vector []float32
	level  int
	links  [][]uint32 // links[l] are the neighbours on layer l
}

// Graph is a Hierarchical Navigable Small World graph over cosine distance
// (1 - dot product). Node ids are assigned densely in insertion order.
type Graph struct {
	dim   int
	opts  Options
	mmax  int     // Max number of connections per element/per layer
	mmax0 int     // Max for the 0 layer
	ml    float64 // Normalization factor for level generation

	ep       uint32 // entry point
	maxLevel int    // current top layer

	nodes []*node
	rng   *rand.Rand

	mu sync.RWMutex
}

// New creates a new graph for vectors of the given dimension.
func New(dim int, optFns ...func(o *Options)) *Graph {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return newGraph(dim, opts)
}

func newGraph(dim int, opts Options) *Graph {
	if opts.M < 2 {
		// M == 1 would result in division by zero in ml.
		opts.M = 2
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}
	if opts.EFSearch < 1 {
		opts.EFSearch = 1
	}
	return &Graph{
		dim:   dim,
		opts:  opts,
		mmax:  opts.M,
		mmax0: 2 * opts.M,
		ml:    1 / math.Log(float64(opts.M)),
		rng:   rand.New(rand.NewSource(opts.Seed)), // nolint gosec
	}
}

// Dimension returns the vector dimension of the graph.
func (g *Graph) Dimension() int { return g.dim }

// Options returns the effective options.
func (g *Graph) Options() Options { return g.opts }

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Vector returns the stored vector of a node. The slice must not be modified.
func (g *Graph) Vector(id uint32) []float32 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.nodes[id].vector
}

func (g *Graph) distance(a, b []float32) float32 {
	return 1 - distance.Dot(a, b)
}

func (g *Graph) randomLevel() int {
	level := int(math.Floor(-math.Log(1-g.rng.Float64()) * g.ml))
	return min(level, maxLevel)
}

// Insert inserts a new element into the graph and returns its id.
func (g *Graph) Insert(v []float32) (uint32, error) {
	if len(v) != g.dim {
		return 0, &ErrDimensionMismatch{Expected: g.dim, Actual: len(v)}
	}

	// Make a copy of the vector to ensure changes outside this function don't affect the node
	vec := make([]float32, len(v))
	copy(vec, v)

	g.mu.Lock()
	defer g.mu.Unlock()

	id := uint32(len(g.nodes))
	level := g.randomLevel()
	n := &node{vector: vec, level: level, links: make([][]uint32, level+1)}

	if len(g.nodes) == 0 {
		g.nodes = append(g.nodes, n)
		g.ep = id
		g.maxLevel = level
		return id, nil
	}

	entry := Candidate{ID: g.ep, Distance: g.distance(vec, g.nodes[g.ep].vector)}
	entry = g.greedy(vec, entry, g.maxLevel, level)

	for l := min(level, g.maxLevel); l >= 0; l-- {
		candidates := g.searchLayer(vec, entry, g.opts.EFConstruction, l)
		n.links[l] = g.selectNeighbours(candidates, g.mmax)
		entry = candidates[0]
	}

	g.nodes = append(g.nodes, n)

	// Next link the neighbour nodes to our new node, making it visible
	for l := min(level, g.maxLevel); l >= 0; l-- {
		for _, nb := range n.links[l] {
			g.link(nb, id, l)
		}
	}

	if level > g.maxLevel {
		g.ep = id
		g.maxLevel = level
	}

	return id, nil
}

// greedy descends from layer from to layer to+1 following the single
// closest neighbour on each layer.
func (g *Graph) greedy(q []float32, cur Candidate, from, to int) Candidate {
	for level := from; level > to; level-- {
		changed := true
		for changed {
			changed = false
			for _, nb := range g.nodes[cur.ID].links[level] {
				d := g.distance(q, g.nodes[nb].vector)
				if less(Candidate{ID: nb, Distance: d}, cur) {
					cur = Candidate{ID: nb, Distance: d}
					changed = true
				}
			}
		}
	}
	return cur
}

// searchLayer returns up to ef candidates closest to q on the given layer,
// ordered closest first.
func (g *Graph) searchLayer(q []float32, entry Candidate, ef int, level int) []Candidate {
	visited := bitset.New(uint(len(g.nodes)))
	visited.Set(uint(entry.ID))

	candidates := &priorityQueue{}
	heap.Push(candidates, entry)

	top := &priorityQueue{max: true}
	heap.Push(top, entry)

	for candidates.Len() > 0 {
		c := heap.Pop(candidates).(Candidate)
		if top.Len() >= ef && less(top.Top(), c) {
			break
		}

		n := g.nodes[c.ID]
		if level >= len(n.links) {
			continue
		}

		for _, nb := range n.links[level] {
			if visited.Test(uint(nb)) {
				continue
			}
			visited.Set(uint(nb))

			item := Candidate{ID: nb, Distance: g.distance(q, g.nodes[nb].vector)}
			if top.Len() < ef || less(item, top.Top()) {
				heap.Push(candidates, item)
				heap.Push(top, item)
				if top.Len() > ef {
					heap.Pop(top)
				}
			}
		}
	}

	return top.drainAscending()
}

// selectNeighbours picks up to m neighbours from candidates (closest first)
// using the diversity heuristic, then fills remaining slots with the
// closest pruned candidates.
func (g *Graph) selectNeighbours(candidates []Candidate, m int) []uint32 {
	if len(candidates) <= m {
		ids := make([]uint32, len(candidates))
		for i, c := range candidates {
			ids[i] = c.ID
		}
		return ids
	}

	selected := make([]uint32, 0, m)
	var pruned []uint32

	for _, c := range candidates {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if g.distance(g.nodes[s].vector, g.nodes[c.ID].vector) < c.Distance {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c.ID)
		} else {
			pruned = append(pruned, c.ID)
		}
	}

	for _, id := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, id)
	}

	return selected
}

// link adds a connection from first to second on the given level,
// shrinking the neighbour list when it overflows.
func (g *Graph) link(first, second uint32, level int) {
	maxConnections := g.mmax
	// HNSW allows double the connections for the bottom level (0)
	if level == 0 {
		maxConnections = g.mmax0
	}

	n := g.nodes[first]
	n.links[level] = append(n.links[level], second)
	if len(n.links[level]) <= maxConnections {
		return
	}

	candidates := make([]Candidate, len(n.links[level]))
	for i, id := range n.links[level] {
		candidates[i] = Candidate{ID: id, Distance: g.distance(n.vector, g.nodes[id].vector)}
	}
	sortCandidates(candidates)

	n.links[level] = g.selectNeighbours(candidates, maxConnections)
}

// KNNSearch returns up to k nearest nodes to q ordered closest first.
// An ef below k is raised to k.
func (g *Graph) KNNSearch(q []float32, k int, ef int) ([]Candidate, error) {
	if len(q) != g.dim {
		return nil, &ErrDimensionMismatch{Expected: g.dim, Actual: len(q)}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if k <= 0 || len(g.nodes) == 0 {
		return []Candidate{}, nil
	}
	ef = max(ef, k)

	entry := Candidate{ID: g.ep, Distance: g.distance(q, g.nodes[g.ep].vector)}
	entry = g.greedy(q, entry, g.maxLevel, 0)

	res := g.searchLayer(q, entry, ef, 0)
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}

// BruteSearch scans every node and returns the exact k nearest, closest
// first.
func (g *Graph) BruteSearch(q []float32, k int) ([]Candidate, error) {
	if len(q) != g.dim {
		return nil, &ErrDimensionMismatch{Expected: g.dim, Actual: len(q)}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if k <= 0 {
		return []Candidate{}, nil
	}

	top := &priorityQueue{max: true}
	for id, n := range g.nodes {
		item := Candidate{ID: uint32(id), Distance: g.distance(q, n.vector)}
		if top.Len() < k {
			heap.Push(top, item)
			continue
		}
		if less(item, top.Top()) {
			heap.Pop(top)
			heap.Push(top, item)
		}
	}

	return top.drainAscending(), nil
}

func sortCandidates(c []Candidate) {
	slices.SortFunc(c, func(a, b Candidate) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		default:
			return 0
		}
	})
}
