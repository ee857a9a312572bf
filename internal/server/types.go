package server

// PointRequest is the body of /insert and the query body of /nearest and
// /nearesttop, where data is ignored.
type PointRequest struct {
	Embedding []float64 `json:"embedding" binding:"required"`
	Data      string    `json:"data"`
}

// InsertResponse acknowledges a stored point
type InsertResponse struct {
	Message  string `json:"message"`
	TreeName string `json:"tree_name"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
