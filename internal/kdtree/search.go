package kdtree

import (
	"container/heap"
	"math"

	pkgerrors "kdstore/pkg/errors"
)

// NearestNeighbor returns the stored point closest to target. ok is false when
// the tree is empty.
func (t *Tree) NearestNeighbor(target []float64) (nb Neighbor, ok bool, err error) {
	if err := t.checkTarget(target); err != nil {
		return Neighbor{}, false, err
	}
	if t.root == nil {
		return Neighbor{}, false, nil
	}

	var (
		best *node
		dist = math.Inf(1)
	)
	walk(t.root, target, func(n *node) {
		d := euclidean(n.point.Embedding, target)
		if best == nil || closer(d, n.seq, dist, best.seq) {
			best, dist = n, d
		}
	}, func() float64 { return dist })
	return best.neighbor(dist), true, nil
}

// frame is a pending subtree. gap is its split plane's distance from the
// target, zero for the near side.
type frame struct {
	node *node
	gap  float64
}

// walk visits the near side of every split before the far side, without
// recursion. A far subtree is skipped when, once it comes off the stack, its
// gap exceeds the current bound.
func walk(root *node, target []float64, visit func(*node), bound func() float64) {
	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		// Every point across the split plane is at least the axis gap away.
		if f.gap > bound() {
			continue
		}

		n := f.node
		visit(n)
		near, far := n.child(target[n.axis])
		if far != nil {
			stack = append(stack, frame{node: far, gap: math.Abs(target[n.axis] - n.point.Embedding[n.axis])})
		}
		if near != nil {
			stack = append(stack, frame{node: near})
		}
	}
}

// NearestNeighborsTopN returns up to n stored points in ascending distance
// from target. Equal distances keep insertion order.
func (t *Tree) NearestNeighborsTopN(target []float64, n int) ([]Neighbor, error) {
	if n <= 0 {
		return nil, pkgerrors.ErrInvalidTopN
	}
	if err := t.checkTarget(target); err != nil {
		return nil, err
	}
	if t.root == nil {
		return []Neighbor{}, nil
	}

	s := topNSearch{
		limit: n,
		heap:  make(candidateHeap, 0, min(n, t.size)),
	}
	walk(t.root, target, func(nd *node) {
		s.offer(nd, euclidean(nd.point.Embedding, target))
	}, s.bound)

	out := make([]Neighbor, len(s.heap))
	for i := len(out) - 1; i >= 0; i-- {
		c := heap.Pop(&s.heap).(candidate)
		out[i] = c.node.neighbor(c.dist)
	}
	return out, nil
}

type topNSearch struct {
	limit int
	heap  candidateHeap
}

func (s *topNSearch) full() bool {
	return len(s.heap) >= s.limit
}

func (s *topNSearch) offer(n *node, d float64) {
	if !s.full() {
		heap.Push(&s.heap, candidate{dist: d, node: n})
		return
	}
	worst := s.heap[0]
	if closer(d, n.seq, worst.dist, worst.node.seq) {
		s.heap[0] = candidate{dist: d, node: n}
		heap.Fix(&s.heap, 0)
	}
}

// bound is the n-th best distance, and unbounded until n candidates are held.
func (s *topNSearch) bound() float64 {
	if !s.full() {
		return math.Inf(1)
	}
	return s.heap[0].dist
}

func (n *node) neighbor(dist float64) Neighbor {
	embedding := make([]float64, len(n.point.Embedding))
	copy(embedding, n.point.Embedding)
	return Neighbor{Distance: dist, Point: Point{Embedding: embedding, Data: n.point.Data}}
}
