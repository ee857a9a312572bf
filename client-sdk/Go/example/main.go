// Command example exercises the kdstore Go SDK against a running server
// (default http://localhost:8080). It inserts a few random embeddings into a
// tree called "demo", queries them back and prints the server status.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"kdstore/client-sdk/Go/client"
)

func randomVector(dim int) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = rand.Float64()
	}
	return v
}

func main() {
	ctx := context.Background()
	baseURL := "http://localhost:8080"
	if len(os.Args) > 1 {
		baseURL = os.Args[1]
	}
	c := client.New(baseURL)

	ok, err := c.HealthCheck(ctx)
	if err != nil {
		panic(err)
	}
	fmt.Println("Health check:", ok)

	const dim = 8
	for i := 0; i < 5; i++ {
		if err := c.Insert(ctx, "demo", randomVector(dim), fmt.Sprintf("doc-%d", i)); err != nil {
			panic(err)
		}
	}
	fmt.Println("Inserted 5 points into demo")

	neighbors, err := c.NearestTopN(ctx, "demo", randomVector(dim), 3)
	if err != nil {
		panic(err)
	}
	for _, nb := range neighbors {
		fmt.Printf("  %s at %.4f\n", nb.Data, nb.Distance)
	}

	_, err = c.NearestTopN(ctx, "demo", randomVector(dim+1), 1)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		fmt.Println("Expected error:", apiErr.Code)
	}

	report, err := c.Status(ctx)
	if err != nil {
		panic(err)
	}
	for _, tree := range report.Trees {
		fmt.Printf("%s: %d points, dimension %d, resident %v\n", tree.Name, tree.Count, tree.Dimension, tree.Resident)
	}
}
