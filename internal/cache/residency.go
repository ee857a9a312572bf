package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"kdstore/internal/kdtree"
	"kdstore/internal/storage"
	pkgerrors "kdstore/pkg/errors"
	"kdstore/pkg/logger"
)

// ensureResident returns the named entry with its tree in memory. A resident
// tree is returned without I/O. Otherwise the tree is loaded from the store;
// when the store has no such tree and dimHint is positive, an empty tree of
// that dimension is created and fresh is true.
//
// Must be called with c.mu held.
func (c *Cache) ensureResident(ctx context.Context, name string, dimHint int) (e *entry, fresh bool, err error) {
	e, ok := c.entries[name]
	if ok && e.resident() {
		c.touch(e)
		return e, false, nil
	}

	tree, err := c.load(ctx, name)
	switch {
	case err == nil:
		logger.Info("Loaded tree from storage", "tree", name, "points", tree.Len(), "dimension", tree.Dimension())
	case errors.Is(err, storage.ErrNotFound) && dimHint > 0:
		tree, err = kdtree.New(dimHint)
		if err != nil {
			return nil, false, err
		}
		fresh = true
		logger.Info("Created tree", "tree", name, "dimension", dimHint)
	case errors.Is(err, storage.ErrNotFound):
		return nil, false, fmt.Errorf("%w: %s", pkgerrors.ErrIndexNotFound, name)
	default:
		logger.Error("Failed to load tree", "tree", name, "error", err)
		return nil, false, err
	}

	if !ok {
		e = &entry{name: name}
		c.entries[name] = e
	}
	e.tree = tree
	c.touch(e)
	return e, fresh, nil
}

// load reads and decodes the named tree. A missing tree yields
// storage.ErrNotFound unwrapped.
func (c *Cache) load(ctx context.Context, name string) (tree *kdtree.Tree, err error) {
	start := time.Now()
	defer func() {
		if !errors.Is(err, storage.ErrNotFound) {
			c.opts.Observer.OnLoad(time.Since(start), err)
		}
	}()

	blob, err := c.store.Get(ctx, name)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %w", pkgerrors.ErrStorage, name, err)
	}
	raw, err := storage.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	tree, err = kdtree.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return tree, nil
}

// persist writes the entry's resident tree to the store.
func (c *Cache) persist(ctx context.Context, e *entry) (err error) {
	start := time.Now()
	var stored int
	defer func() {
		c.opts.Observer.OnPersist(time.Since(start), stored, err)
	}()

	var buf bytes.Buffer
	if err := e.tree.Save(&buf); err != nil {
		return fmt.Errorf("persist %s: %w", e.name, err)
	}
	blob, err := storage.Compress(c.opts.Compression, buf.Bytes())
	if err != nil {
		return fmt.Errorf("%w: persist %s: %w", pkgerrors.ErrStorage, e.name, err)
	}
	if err := c.store.Put(ctx, e.name, blob); err != nil {
		return fmt.Errorf("%w: persist %s: %w", pkgerrors.ErrStorage, e.name, err)
	}
	stored = len(blob)
	e.dirty = false
	logger.Debug("Persisted tree", "tree", e.name, "points", e.tree.Len(), "bytes", stored)
	return nil
}

func (c *Cache) touch(e *entry) {
	e.lastAccessed = c.opts.Clock()
	c.lru.touch(e.name)
}

// release drops the in-memory tree, leaving the stored copy authoritative.
func (c *Cache) release(e *entry) {
	e.tree, e.dirty = nil, false
	c.lru.remove(e.name)
}

// drop forgets an entry that has no stored copy.
func (c *Cache) drop(e *entry) {
	c.release(e)
	delete(c.entries, e.name)
}
