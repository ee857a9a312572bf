package errors

import "errors"

var (
	// Index errors
	ErrIndexNotFound     = errors.New("index not found")
	ErrEmptyIndex        = errors.New("index is empty")
	ErrInvalidIndexName  = errors.New("invalid index name")
	ErrInvalidDimension  = errors.New("invalid vector dimension")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrInvalidTopN       = errors.New("n must be positive")

	// Storage errors
	ErrStorage                = errors.New("storage i/o failure")
	ErrCorruptIndex           = errors.New("corrupt index data")
	ErrUnsupportedCompression = errors.New("unsupported compression")

	// Lifecycle errors
	ErrClosed = errors.New("index cache closed")
)
