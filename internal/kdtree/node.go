package kdtree

type node struct {
	point Point
	left  *node
	right *node
	axis  int    // depth % k
	seq   uint64 // insertion ordinal, breaks distance ties
}

// child returns the subtree a coordinate falls into and the opposite one.
func (n *node) child(coord float64) (near, far *node) {
	if coord < n.point.Embedding[n.axis] {
		return n.left, n.right
	}
	return n.right, n.left
}
