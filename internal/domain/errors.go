package domain

import "errors"

// Error taxonomy. Sentinel errors are wrapped with fmt.Errorf("...: %w", err)
// at the point of failure and matched with errors.Is by callers.
var (
	// ErrInvalidConfiguration indicates bad chunk/overlap or similar
	// configuration values. Fails fast, never retried.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a bad caller-supplied argument such as a
	// non-positive top-k.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrReadError indicates a document could not be read. The file is
	// skipped and the batch continues.
	ErrReadError = errors.New("read error")

	// ErrUnsupportedFormat indicates a file type the loader does not handle.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrEmbeddingFailure indicates the embedding provider failed after the
	// configured retries were exhausted.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrTimeout indicates an operation exceeded its configured deadline.
	ErrTimeout = errors.New("timeout")

	// ErrCorruptIndex indicates a persisted index could not be loaded.
	// Callers degrade to an empty index and log a warning.
	ErrCorruptIndex = errors.New("corrupt index")
)
