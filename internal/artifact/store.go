// Package artifact provides opaque key-to-URL persistence for generated
// pipeline outputs (caption files, translations, chapter data). Stores are
// append-only under distinct keys and safe for concurrent writers.
package artifact

import (
	"context"
	"fmt"
)

// StorageError wraps store failures. The orchestrator retries them like
// transient provider errors.
type StorageError struct {
	// Op is the failing operation.
	Op string
	// Key is the artifact key involved.
	Key string
	// Err is the underlying cause.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("artifact %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Store is the artifact persistence port.
type Store interface {
	// Put writes content under key and returns a stable URL for it.
	// Distinct keys never collide; writing the same key twice is the
	// caller's bug (results are append-only upstream).
	Put(ctx context.Context, key string, content []byte) (url string, err error)
}
