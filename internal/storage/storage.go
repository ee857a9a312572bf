package storage

import (
	"context"
	"os"
)

// ErrNotFound is returned when no blob exists under a name. It aliases
// os.ErrNotExist so errors.Is works for both.
var ErrNotFound = os.ErrNotExist

// FileSuffix is appended to a tree name to form its blob key.
const FileSuffix = ".bin"

// Store keeps the durable copy of each tree, one blob per tree name.
type Store interface {
	// Get returns the blob stored for name, or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)

	// Put replaces the blob for name. A reader never sees a partial write.
	Put(ctx context.Context, name string, data []byte) error

	// Delete removes the blob for name. Missing blobs are not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all stored trees in lexical order.
	List(ctx context.Context) ([]string, error)
}
