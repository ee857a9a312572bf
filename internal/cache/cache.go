package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"kdstore/internal/kdtree"
	"kdstore/internal/storage"
	pkgerrors "kdstore/pkg/errors"
	"kdstore/pkg/logger"
	"kdstore/pkg/utils"
)

// Options configures a Cache.
type Options struct {
	// MemoryBudget caps the summed footprint of resident trees in bytes.
	// Zero disables eviction.
	MemoryBudget int64
	// Compression is applied to every tree written to the store.
	Compression storage.Compression
	// Clock defaults to time.Now.
	Clock func() time.Time
	// FlushConcurrency bounds parallel writes in Flush and Close.
	FlushConcurrency int
	Observer         Observer
}

// Status describes one named tree.
type Status struct {
	Name         string `json:"tree_name"`
	Dimension    int    `json:"dimension"`
	Count        int    `json:"num_records"`
	Resident     bool   `json:"in_memory"`
	LastAccessed int64  `json:"last_accessed"`
	MemoryBytes  int64  `json:"memory_bytes"`
	Error        string `json:"error,omitempty"`
}

// entry tracks a named tree. tree is nil while the tree only exists in the
// store.
type entry struct {
	name         string
	tree         *kdtree.Tree
	lastAccessed time.Time
	dirty        bool // tree holds points the store does not
}

func (e *entry) resident() bool {
	return e.tree != nil
}

// Cache maps tree names to KD-trees, keeps recently used trees in memory
// under a byte budget and writes every mutation through to a Store.
//
// A single mutex serialises all operations, including store I/O.
type Cache struct {
	mu      sync.Mutex
	store   storage.Store
	opts    Options
	entries map[string]*entry
	lru     *lruList
	closed  bool
}

// New creates a cache over store and registers every tree the store already
// holds as non-resident.
func New(ctx context.Context, store storage.Store, opts Options) (*Cache, error) {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.FlushConcurrency <= 0 {
		opts.FlushConcurrency = 4
	}
	if opts.Observer == nil {
		opts.Observer = NoopObserver{}
	}
	if opts.MemoryBudget < 0 {
		opts.MemoryBudget = 0
	}

	c := &Cache{
		store:   store,
		opts:    opts,
		entries: make(map[string]*entry),
		lru:     newLRUList(),
	}

	names, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list trees: %w", pkgerrors.ErrStorage, err)
	}
	now := opts.Clock()
	for _, name := range names {
		if !utils.ValidIndexName(name) {
			logger.Warn("Skipping stored tree with invalid name", "tree", name)
			continue
		}
		c.entries[name] = &entry{name: name, lastAccessed: now}
	}
	logger.Info("Index cache ready", "trees", len(c.entries), "memory_budget", opts.MemoryBudget, "compression", opts.Compression.String())
	return c, nil
}

func checkName(name string) error {
	if !utils.ValidIndexName(name) {
		return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidIndexName, name)
	}
	return nil
}

// InsertPoint adds p to the named tree, creating the tree with p's dimension
// when it does not exist, and persists the result before returning.
func (c *Cache) InsertPoint(ctx context.Context, name string, p kdtree.Point) error {
	if err := checkName(name); err != nil {
		return err
	}
	if p.Dim() == 0 {
		return fmt.Errorf("%w: empty embedding", pkgerrors.ErrInvalidDimension)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pkgerrors.ErrClosed
	}
	defer c.enforceBudget(ctx)

	e, fresh, err := c.ensureResident(ctx, name, p.Dim())
	if err != nil {
		return err
	}
	if err := e.tree.Insert(p); err != nil {
		if fresh {
			c.drop(e)
		}
		return err
	}
	e.dirty = true
	if err := c.persist(ctx, e); err != nil {
		logger.Error("Failed to persist tree after insert", "tree", name, "error", err)
		if fresh {
			c.drop(e)
		} else {
			c.release(e)
		}
		return err
	}
	c.touch(e)
	return nil
}

// QueryTopN returns up to n points of the named tree closest to target,
// ordered by ascending distance.
func (c *Cache) QueryTopN(ctx context.Context, name string, target []float64, n int) ([]kdtree.Neighbor, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", pkgerrors.ErrInvalidTopN, n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, pkgerrors.ErrClosed
	}
	defer c.enforceBudget(ctx)

	e, _, err := c.ensureResident(ctx, name, 0)
	if err != nil {
		return nil, err
	}
	if e.tree.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrEmptyIndex, name)
	}
	return e.tree.NearestNeighborsTopN(target, n)
}

// QueryNearest returns the single point of the named tree closest to target.
func (c *Cache) QueryNearest(ctx context.Context, name string, target []float64) (kdtree.Neighbor, error) {
	if err := checkName(name); err != nil {
		return kdtree.Neighbor{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return kdtree.Neighbor{}, pkgerrors.ErrClosed
	}
	defer c.enforceBudget(ctx)

	e, _, err := c.ensureResident(ctx, name, 0)
	if err != nil {
		return kdtree.Neighbor{}, err
	}
	nb, ok, err := e.tree.NearestNeighbor(target)
	if err != nil {
		return kdtree.Neighbor{}, err
	}
	if !ok {
		return kdtree.Neighbor{}, fmt.Errorf("%w: %s", pkgerrors.ErrEmptyIndex, name)
	}
	return nb, nil
}

// Status reports every known tree sorted by name. Trees that are not resident
// are loaded transiently to be counted and are not kept in memory.
func (c *Cache) Status(ctx context.Context) []Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	now := c.opts.Clock()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		e := c.entries[name]
		s := Status{
			Name:         name,
			Resident:     e.resident(),
			LastAccessed: int64(now.Sub(e.lastAccessed) / time.Second),
		}
		tree := e.tree
		if tree == nil {
			loaded, err := c.load(ctx, name)
			if err != nil {
				s.Error = err.Error()
				out = append(out, s)
				continue
			}
			tree = loaded
		}
		s.Dimension = tree.Dimension()
		s.Count = tree.Count()
		s.MemoryBytes = tree.MemoryFootprint()
		out = append(out, s)
	}
	return out
}

// ResidentBytes returns the summed footprint of the trees held in memory.
func (c *Cache) ResidentBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.residentBytes()
}

// MemoryBudget returns the configured budget in bytes, zero when unlimited.
func (c *Cache) MemoryBudget() int64 {
	return c.opts.MemoryBudget
}

func (c *Cache) residentBytes() int64 {
	var total int64
	for _, e := range c.entries {
		if e.resident() {
			total += e.tree.MemoryFootprint()
		}
	}
	return total
}
