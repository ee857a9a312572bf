package cache

import (
	"context"
	"errors"

	pkgerrors "kdstore/pkg/errors"
	"kdstore/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// enforceBudget releases least recently used trees until the resident
// footprint fits the budget or nothing is left resident. Trees with unsaved
// points are persisted first; one that fails to persist stays resident and the
// next oldest is tried.
//
// Must be called with c.mu held.
func (c *Cache) enforceBudget(ctx context.Context) {
	budget := c.opts.MemoryBudget
	total := c.residentBytes()
	defer func() {
		c.opts.Observer.OnResidentBytes(total)
	}()
	if budget <= 0 || total <= budget {
		return
	}

	for _, name := range c.lru.oldestFirst() {
		if total <= budget {
			break
		}
		e := c.entries[name]
		size := e.tree.MemoryFootprint()
		if e.dirty {
			if err := c.persist(ctx, e); err != nil {
				logger.Error("Failed to persist tree during eviction", "tree", name, "error", err)
				continue
			}
		}
		c.release(e)
		total -= size
		c.opts.Observer.OnEvict(size)
		logger.Info("Evicted tree", "tree", name, "bytes", size, "resident_bytes", total, "memory_budget", budget)
	}
}

// Flush writes every resident tree to the store.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pkgerrors.ErrClosed
	}
	return c.flushLocked(ctx)
}

// Close flushes resident trees and rejects every later operation. Closing
// twice is a no-op.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	err := c.flushLocked(ctx)
	c.closed = true
	logger.Info("Index cache closed", "trees", len(c.entries))
	return err
}

func (c *Cache) flushLocked(ctx context.Context) error {
	resident := make([]*entry, 0, c.lru.len())
	for _, e := range c.entries {
		if e.resident() {
			resident = append(resident, e)
		}
	}

	errs := make([]error, len(resident))
	var g errgroup.Group
	g.SetLimit(c.opts.FlushConcurrency)
	for i, e := range resident {
		g.Go(func() error {
			errs[i] = c.persist(ctx, e)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
