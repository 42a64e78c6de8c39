// Package blob provides the eventually-consistent object storage the
// category document lives in. A Medium offers no transactions, no locks and
// no conditional writes: Put always replaces.
package blob

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Fetch when nothing is stored at the URL.
	ErrNotFound = errors.New("blob not found")
	// ErrTransient marks failures worth retrying (propagation lag, 5xx, timeouts).
	ErrTransient = errors.New("transient blob error")
)

// Medium is the storage primitive the versioned store is built on.
type Medium interface {
	// Find returns the URL of the first blob whose path starts with prefix.
	Find(ctx context.Context, prefix string) (url string, ok bool, err error)

	// Fetch reads the bytes at url. Query strings are cache-busting tokens
	// and never part of the identity of the blob.
	Fetch(ctx context.Context, url string) ([]byte, error)

	// Put stores data at path, replacing any previous value.
	Put(ctx context.Context, path string, data []byte) error
}
