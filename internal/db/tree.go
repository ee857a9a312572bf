package db

import (
	"context"

	"kdstore/internal/cache"
	"kdstore/internal/kdtree"
)

// StatusReport summarises every tree the database knows about.
type StatusReport struct {
	ActiveTrees       int            `json:"active_trees"`
	MemoryBudgetBytes int64          `json:"memory_budget_bytes"`
	ResidentBytes     int64          `json:"resident_bytes"`
	Trees             []cache.Status `json:"trees"`
}

// InsertPoint adds a point to the named tree, creating the tree on first use.
func (db *DB) InsertPoint(ctx context.Context, treeName string, p kdtree.Point) error {
	return db.Cache.InsertPoint(ctx, treeName, p)
}

// NearestTopN returns the n points closest to target.
func (db *DB) NearestTopN(ctx context.Context, treeName string, target []float64, n int) ([]kdtree.Neighbor, error) {
	return db.Cache.QueryTopN(ctx, treeName, target, n)
}

// Nearest returns the point closest to target.
func (db *DB) Nearest(ctx context.Context, treeName string, target []float64) (kdtree.Neighbor, error) {
	return db.Cache.QueryNearest(ctx, treeName, target)
}

func (db *DB) Status(ctx context.Context) StatusReport {
	trees := db.Cache.Status(ctx)
	return StatusReport{
		ActiveTrees:       len(trees),
		MemoryBudgetBytes: db.Cache.MemoryBudget(),
		ResidentBytes:     db.Cache.ResidentBytes(),
		Trees:             trees,
	}
}
