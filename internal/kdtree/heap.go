package kdtree

import "container/heap"

var _ heap.Interface = (*candidateHeap)(nil)

type candidate struct {
	dist float64
	node *node
}

// candidateHeap is a max-heap: the root is the worst candidate kept so far.
type candidateHeap []candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	return closer(h[j].dist, h[j].node.seq, h[i].dist, h[i].node.seq)
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) {
	*h = append(*h, x.(candidate))
}

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = candidate{}
	*h = old[:n-1]
	return item
}
