package kdtree

import "unsafe"

const (
	treeOverhead = int64(unsafe.Sizeof(Tree{}))
	nodeOverhead = int64(unsafe.Sizeof(node{}))
	float64Size  = int64(unsafe.Sizeof(float64(0)))
)

// MemoryFootprint estimates the heap bytes held by the tree: the tree header
// plus, per node, the node struct, its embedding backing array and payload.
func (t *Tree) MemoryFootprint() int64 {
	return t.bytes
}

func nodeFootprint(n *node) int64 {
	return nodeOverhead + int64(len(n.point.Embedding))*float64Size + int64(len(n.point.Data))
}

// footprint recomputes MemoryFootprint by walking every node.
func (t *Tree) footprint() int64 {
	total := treeOverhead
	if t.root == nil {
		return total
	}
	stack := []*node{t.root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total += nodeFootprint(n)
		if n.left != nil {
			stack = append(stack, n.left)
		}
		if n.right != nil {
			stack = append(stack, n.right)
		}
	}
	return total
}
