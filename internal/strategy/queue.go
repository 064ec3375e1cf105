package strategy

import (
	"container/heap"

	"github.com/aalhour/ddstoch/internal/delta"
)

// status tags a pending candidate of the dichotomy.
type status uint8

const (
	statusFail status = iota
	statusUnknown
)

type candidate struct {
	deltas delta.Set
	status status
	seq    uint64
}

// workQueue orders candidates by size, then known failures before unknown
// ones, then most recently pushed first.
type workQueue struct {
	items []candidate
	seq   uint64
}

func (q *workQueue) Len() int { return len(q.items) }

func (q *workQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.deltas.Len() != b.deltas.Len() {
		return a.deltas.Len() < b.deltas.Len()
	}
	if a.status != b.status {
		return a.status < b.status
	}
	return a.seq > b.seq
}

func (q *workQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *workQueue) Push(x any) { q.items = append(q.items, x.(candidate)) }

func (q *workQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

func (q *workQueue) push(deltas delta.Set, st status) {
	q.seq++
	heap.Push(q, candidate{deltas: deltas, status: st, seq: q.seq})
}

func (q *workQueue) pop() candidate {
	return heap.Pop(q).(candidate)
}
