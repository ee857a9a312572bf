package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// kdstore Go SDK
//
// A thin wrapper around the kdstore HTTP API. Every method returns *APIError
// when the server answers with a non-2xx status.
//
// Example usage:
//  c := client.New("http://localhost:8080")
//  err := c.Insert(ctx, "docs", []float64{0.1, 0.2}, "hello")
//  neighbors, err := c.NearestTopN(ctx, "docs", []float64{0.1, 0.2}, 5)

// Client is an HTTP client for a kdstore server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// APIError carries the status and error code returned by the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kdstore: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("kdstore: %d %s", e.StatusCode, e.Message)
}

type Point struct {
	Embedding []float64 `json:"embedding"`
	Data      string    `json:"data"`
}

// Neighbor is a stored point and its distance to the query.
type Neighbor struct {
	Distance  float64   `json:"distance"`
	Embedding []float64 `json:"embedding"`
	Data      string    `json:"data"`
}

type TreeStatus struct {
	Name         string `json:"tree_name"`
	Dimension    int    `json:"dimension"`
	Count        int    `json:"num_records"`
	Resident     bool   `json:"in_memory"`
	LastAccessed int64  `json:"last_accessed"`
	MemoryBytes  int64  `json:"memory_bytes"`
	Error        string `json:"error,omitempty"`
}

type StatusReport struct {
	ActiveTrees       int          `json:"active_trees"`
	MemoryBudgetBytes int64        `json:"memory_budget_bytes"`
	ResidentBytes     int64        `json:"resident_bytes"`
	Trees             []TreeStatus `json:"trees"`
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and decodes a successful JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	target := c.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(respBody, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Code = payload.Code
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// HealthCheck reports whether the server answers its health endpoint.
func (c *Client) HealthCheck(ctx context.Context) (bool, error) {
	var result map[string]any
	if err := c.do(ctx, http.MethodGet, "/", nil, nil, &result); err != nil {
		return false, err
	}
	return result["status"] == "ok", nil
}

// Insert stores a point in the named tree, creating the tree on first use.
func (c *Client) Insert(ctx context.Context, treeName string, embedding []float64, data string) error {
	query := url.Values{"tree_name": {treeName}}
	return c.do(ctx, http.MethodPost, "/insert", query, Point{Embedding: embedding, Data: data}, nil)
}

// NearestTopN returns up to n points closest to embedding, nearest first.
func (c *Client) NearestTopN(ctx context.Context, treeName string, embedding []float64, n int) ([]Neighbor, error) {
	query := url.Values{"tree_name": {treeName}, "n": {strconv.Itoa(n)}}
	var neighbors []Neighbor
	if err := c.do(ctx, http.MethodPost, "/nearesttop", query, Point{Embedding: embedding}, &neighbors); err != nil {
		return nil, err
	}
	return neighbors, nil
}

// Nearest returns the single point closest to embedding.
func (c *Client) Nearest(ctx context.Context, treeName string, embedding []float64) (*Neighbor, error) {
	query := url.Values{"tree_name": {treeName}}
	var neighbor Neighbor
	if err := c.do(ctx, http.MethodPost, "/nearest", query, Point{Embedding: embedding}, &neighbor); err != nil {
		return nil, err
	}
	return &neighbor, nil
}

// Status lists every tree known to the server.
func (c *Client) Status(ctx context.Context) (*StatusReport, error) {
	var report StatusReport
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
