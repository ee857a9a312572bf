package kdtree

import (
	"math/rand"
	"runtime/debug"
	"sort"
	"strconv"
	"testing"

	pkgerrors "kdstore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T, points ...Point) *Tree {
	t.Helper()
	require.NotEmpty(t, points)
	tree, err := New(points[0].Dim())
	require.NoError(t, err)
	for _, p := range points {
		require.NoError(t, tree.Insert(p))
	}
	return tree
}

func randomPoints(rng *rand.Rand, count, dim int, grid bool) []Point {
	points := make([]Point, count)
	for i := range points {
		e := make([]float64, dim)
		for j := range e {
			if grid {
				// small integer grid, produces lots of equal distances
				e[j] = float64(rng.Intn(4))
			} else {
				e[j] = rng.NormFloat64() * 10
			}
		}
		points[i] = Point{Embedding: e, Data: "p" + strconv.Itoa(i)}
	}
	return points
}

// bruteForce ranks points by distance; the stable sort keeps insertion order on ties.
func bruteForce(points []Point, target []float64, n int) []Neighbor {
	all := make([]Neighbor, len(points))
	for i, p := range points {
		all[i] = Neighbor{Distance: euclidean(p.Embedding, target), Point: p}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Distance < all[j].Distance })
	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

func TestNewInvalidDimension(t *testing.T) {
	tree, err := New(0)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidDimension)
	assert.Nil(t, tree)

	_, err = New(-3)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidDimension)
}

func TestTree_Scenario(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{1, 2}, Data: "a"},
		Point{Embedding: []float64{3, 4}, Data: "b"},
		Point{Embedding: []float64{5, 6}, Data: "c"},
	)

	nb, ok, err := tree.NearestNeighbor([]float64{1, 1})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", nb.Data)
	assert.InDelta(t, 1.0, nb.Distance, 1e-12)

	top, err := tree.NearestNeighborsTopN([]float64{1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].Data)
	assert.Equal(t, "b", top[1].Data)
	assert.Equal(t, 3, tree.Count())
	assert.Equal(t, 3, tree.Len())
}

func TestTree_InsertDimensionMismatch(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{1, 2}, Data: "a"},
		Point{Embedding: []float64{3, 4}, Data: "b"},
	)
	before := tree.MemoryFootprint()

	err := tree.Insert(Point{Embedding: []float64{1, 2, 3}, Data: "bad"})
	assert.ErrorIs(t, err, pkgerrors.ErrDimensionMismatch)
	assert.Equal(t, 2, tree.Count())
	assert.Equal(t, 2, tree.Len())
	assert.Equal(t, before, tree.MemoryFootprint())

	err = tree.Insert(Point{Embedding: []float64{1}, Data: "short"})
	assert.ErrorIs(t, err, pkgerrors.ErrDimensionMismatch)
	assert.Equal(t, 2, tree.Count())
}

func TestTree_QueryDimensionMismatch(t *testing.T) {
	tree := newTestTree(t, Point{Embedding: []float64{1, 2}, Data: "a"})

	_, _, err := tree.NearestNeighbor([]float64{1})
	assert.ErrorIs(t, err, pkgerrors.ErrDimensionMismatch)

	_, err = tree.NearestNeighborsTopN([]float64{1, 2, 3}, 1)
	assert.ErrorIs(t, err, pkgerrors.ErrDimensionMismatch)
}

func TestTree_Empty(t *testing.T) {
	tree, err := New(3)
	require.NoError(t, err)

	_, ok, err := tree.NearestNeighbor([]float64{0, 0, 0})
	assert.NoError(t, err)
	assert.False(t, ok)

	top, err := tree.NearestNeighborsTopN([]float64{0, 0, 0}, 5)
	assert.NoError(t, err)
	assert.Empty(t, top)
	assert.Equal(t, 0, tree.Count())
}

func TestTree_TopNInvalidN(t *testing.T) {
	tree := newTestTree(t, Point{Embedding: []float64{1}, Data: "a"})

	_, err := tree.NearestNeighborsTopN([]float64{1}, 0)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTopN)
	_, err = tree.NearestNeighborsTopN([]float64{1}, -1)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTopN)
}

func TestTree_AxisFollowsDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, dim := range []int{1, 2, 3, 5} {
		tree := newTestTree(t, randomPoints(rng, 200, dim, false)...)

		var walk func(n *node, depth int)
		walk = func(n *node, depth int) {
			if n == nil {
				return
			}
			assert.Equal(t, depth%dim, n.axis)
			walk(n.left, depth+1)
			walk(n.right, depth+1)
		}
		walk(tree.root, 0)
	}
}

func TestTree_EqualCoordinateGoesRight(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{2, 0}, Data: "root"},
		Point{Embedding: []float64{2, 5}, Data: "equal"},
		Point{Embedding: []float64{1, 5}, Data: "less"},
	)
	require.NotNil(t, tree.root.right)
	require.NotNil(t, tree.root.left)
	assert.Equal(t, "equal", tree.root.right.point.Data)
	assert.Equal(t, "less", tree.root.left.point.Data)
}

func TestTree_InsertCopiesEmbedding(t *testing.T) {
	e := []float64{1, 2}
	tree := newTestTree(t, Point{Embedding: e, Data: "a"})
	e[0] = 100

	nb, ok, err := tree.NearestNeighbor([]float64{1, 2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2}, nb.Embedding)
	assert.Zero(t, nb.Distance)
}

func TestTree_NearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for _, dim := range []int{1, 2, 3, 8, 16} {
		for _, grid := range []bool{false, true} {
			points := randomPoints(rng, 300, dim, grid)
			tree := newTestTree(t, points...)

			for q := 0; q < 50; q++ {
				target := randomPoints(rng, 1, dim, grid)[0].Embedding
				want := bruteForce(points, target, 1)[0]

				got, ok, err := tree.NearestNeighbor(target)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, want.Distance, got.Distance, "dim=%d grid=%v", dim, grid)
				assert.Equal(t, want.Data, got.Data, "dim=%d grid=%v", dim, grid)
			}
		}
	}
}

func TestTree_TopNMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(1234))
	for _, dim := range []int{1, 2, 4, 10} {
		for _, grid := range []bool{false, true} {
			points := randomPoints(rng, 250, dim, grid)
			tree := newTestTree(t, points...)

			for _, n := range []int{1, 2, 5, 17, 250, 400} {
				target := randomPoints(rng, 1, dim, grid)[0].Embedding
				want := bruteForce(points, target, n)

				got, err := tree.NearestNeighborsTopN(target, n)
				require.NoError(t, err)
				require.Len(t, got, len(want), "dim=%d n=%d", dim, n)
				for i := range want {
					assert.Equal(t, want[i].Distance, got[i].Distance, "dim=%d n=%d i=%d", dim, n, i)
					assert.Equal(t, want[i].Data, got[i].Data, "dim=%d n=%d i=%d", dim, n, i)
				}
			}
		}
	}
}

func TestTree_TiesKeepInsertionOrder(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{1, 0}, Data: "first"},
		Point{Embedding: []float64{-1, 0}, Data: "second"},
		Point{Embedding: []float64{0, 1}, Data: "third"},
		Point{Embedding: []float64{0, -1}, Data: "fourth"},
	)

	nb, ok, err := tree.NearestNeighbor([]float64{0, 0})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "first", nb.Data)

	top, err := tree.NearestNeighborsTopN([]float64{0, 0}, 4)
	require.NoError(t, err)
	var got []string
	for _, n := range top {
		got = append(got, n.Data)
	}
	assert.Equal(t, []string{"first", "second", "third", "fourth"}, got)
}

func TestTree_SortedInsertDegenerates(t *testing.T) {
	tree, err := New(1)
	require.NoError(t, err)
	for i := 0; i < 5000; i++ {
		require.NoError(t, tree.Insert(Point{Embedding: []float64{float64(i)}, Data: strconv.Itoa(i)}))
	}
	assert.Equal(t, 5000, tree.Count())

	nb, ok, err := tree.NearestNeighbor([]float64{4321.2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "4321", nb.Data)
}

// chainTree links n ascending 1-D points into a single right spine, the shape
// sorted insertion produces, without the quadratic insert cost.
func chainTree(t *testing.T, n int) *Tree {
	t.Helper()
	tree, err := New(1)
	require.NoError(t, err)
	link := &tree.root
	for i := 0; i < n; i++ {
		nd := &node{point: Point{Embedding: []float64{float64(i)}, Data: strconv.Itoa(i)}, seq: uint64(i)}
		*link = nd
		link = &nd.right
	}
	tree.size, tree.next = n, uint64(n)
	return tree
}

func TestTree_DeepTreeSearchUsesConstantStack(t *testing.T) {
	tree := chainTree(t, 200000)
	defer debug.SetMaxStack(debug.SetMaxStack(256 << 10))

	nb, ok, err := tree.NearestNeighbor([]float64{199999.4})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "199999", nb.Data)

	top, err := tree.NearestNeighborsTopN([]float64{150000.6}, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "150001", top[0].Data)
	assert.Equal(t, "150000", top[1].Data)
	assert.Equal(t, "150002", top[2].Data)
}
