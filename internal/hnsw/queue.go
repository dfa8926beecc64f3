package hnsw

import "container/heap"

// Compile time check to ensure priorityQueue satisfies the heap interface.
var _ heap.Interface = (*priorityQueue)(nil)

// Candidate is a node together with its distance to a query.
type Candidate struct {
	ID       uint32
	Distance float32
}

// less orders candidates by distance, then by id so equal distances are
// resolved deterministically.
func less(a, b Candidate) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}

// priorityQueue is a binary heap of candidates. With max set, Top is the
// farthest candidate; otherwise it is the closest.
type priorityQueue struct {
	max   bool
	items []Candidate
}

func (pq *priorityQueue) Len() int { return len(pq.items) }

func (pq *priorityQueue) Less(i, j int) bool {
	if pq.max {
		return less(pq.items[j], pq.items[i])
	}
	return less(pq.items[i], pq.items[j])
}

func (pq *priorityQueue) Swap(i, j int) { pq.items[i], pq.items[j] = pq.items[j], pq.items[i] }

func (pq *priorityQueue) Push(x any) { pq.items = append(pq.items, x.(Candidate)) }

func (pq *priorityQueue) Pop() any {
	old := pq.items
	n := len(old)
	item := old[n-1]
	pq.items = old[:n-1]
	return item
}

// Top returns the head of the queue without removing it.
func (pq *priorityQueue) Top() Candidate { return pq.items[0] }

// drainAscending empties a max-queue into a slice ordered closest first.
func (pq *priorityQueue) drainAscending() []Candidate {
	out := make([]Candidate, pq.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(pq).(Candidate)
	}
	return out
}
