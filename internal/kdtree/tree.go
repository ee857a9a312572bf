package kdtree

import (
	"fmt"

	pkgerrors "kdstore/pkg/errors"
)

// Tree is an unbalanced K-dimensional binary search tree. It is not safe for
// concurrent use; callers serialise access.
type Tree struct {
	root  *node
	k     int
	size  int
	next  uint64
	bytes int64
}

// New creates an empty tree of dimension k.
func New(k int) (*Tree, error) {
	if k <= 0 {
		return nil, pkgerrors.ErrInvalidDimension
	}
	return &Tree{k: k, bytes: treeOverhead}, nil
}

// Dimension returns k.
func (t *Tree) Dimension() int {
	return t.k
}

// Len returns the number of stored points without walking the tree.
func (t *Tree) Len() int {
	return t.size
}

// Insert adds p. Nodes at depth d split on axis d % k; equal coordinates go right.
func (t *Tree) Insert(p Point) error {
	if len(p.Embedding) != t.k {
		return fmt.Errorf("%w: tree has %d dimensions, point has %d",
			pkgerrors.ErrDimensionMismatch, t.k, len(p.Embedding))
	}

	embedding := make([]float64, len(p.Embedding))
	copy(embedding, p.Embedding)
	n := &node{
		point: Point{Embedding: embedding, Data: p.Data},
		seq:   t.next,
	}

	depth := 0
	link := &t.root
	for *link != nil {
		cur := *link
		if embedding[cur.axis] < cur.point.Embedding[cur.axis] {
			link = &cur.left
		} else {
			link = &cur.right
		}
		depth++
	}
	n.axis = depth % t.k
	*link = n

	t.next++
	t.size++
	t.bytes += nodeFootprint(n)
	return nil
}

// Count walks the tree and returns the exact number of nodes.
func (t *Tree) Count() int {
	if t.root == nil {
		return 0
	}
	count := 0
	stack := []*node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		if n.left != nil {
			stack = append(stack, n.left)
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
	}
	return count
}

func (t *Tree) checkTarget(target []float64) error {
	if len(target) != t.k {
		return fmt.Errorf("%w: tree has %d dimensions, target has %d",
			pkgerrors.ErrDimensionMismatch, t.k, len(target))
	}
	return nil
}
