package kdtree

// Point is an embedding together with the payload it was stored with.
type Point struct {
	Embedding []float64 `json:"embedding"`
	Data      string    `json:"data"`
}

// Dim returns the length of the embedding.
func (p Point) Dim() int {
	return len(p.Embedding)
}

// Neighbor is a stored point and its distance to a query target.
type Neighbor struct {
	Distance float64 `json:"distance"`
	Point
}
