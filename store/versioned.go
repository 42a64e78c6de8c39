// Package store keeps the category collection as one JSON document on an
// eventually-consistent blob medium and coordinates optimistic updates to it.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hubenschmidt/go-semcat/blob"
	"github.com/hubenschmidt/go-semcat/core"
	"github.com/hubenschmidt/go-semcat/observability"
)

const DefaultPath = "categories.json"

// Options tunes the store and coordinator. Zero values fall back to the
// defaults below.
type Options struct {
	Path            string
	ReadAttempts    int
	ReadBackoff     time.Duration
	SettleDelay     time.Duration
	MaxRetries      int
	VerifyDelay     time.Duration
	ConflictBackoff time.Duration
}

func DefaultOptions() Options {
	return Options{
		Path:            DefaultPath,
		ReadAttempts:    3,
		ReadBackoff:     150 * time.Millisecond,
		SettleDelay:     300 * time.Millisecond,
		MaxRetries:      5,
		VerifyDelay:     200 * time.Millisecond,
		ConflictBackoff: 100 * time.Millisecond,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Path == "" {
		o.Path = d.Path
	}
	if o.ReadAttempts <= 0 {
		o.ReadAttempts = d.ReadAttempts
	}
	if o.ReadBackoff <= 0 {
		o.ReadBackoff = d.ReadBackoff
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = d.SettleDelay
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.VerifyDelay <= 0 {
		o.VerifyDelay = d.VerifyDelay
	}
	if o.ConflictBackoff <= 0 {
		o.ConflictBackoff = d.ConflictBackoff
	}
	return o
}

// VersionedStore reads and writes the whole collection document.
type VersionedStore struct {
	medium blob.Medium
	opts   Options
}

func NewVersionedStore(medium blob.Medium, opts Options) *VersionedStore {
	return &VersionedStore{medium: medium, opts: opts.withDefaults()}
}

func (s *VersionedStore) Options() Options {
	return s.opts
}

// Read returns the current document, or the zero document when none has been
// written yet. Fetches are retried up to ReadAttempts times.
func (s *VersionedStore) Read(ctx context.Context) (core.Collection, error) {
	ctx, span := observability.StartStoreSpan(ctx, "read", s.opts.Path)
	defer span.End()

	doc, err := s.read(ctx)
	observability.RecordError(span, err)
	return doc, err
}

func (s *VersionedStore) read(ctx context.Context) (core.Collection, error) {
	url, ok, err := s.medium.Find(ctx, s.opts.Path)
	if err != nil {
		return core.Collection{}, core.NewOpError("read", s.opts.Path,
			fmt.Errorf("%w: find: %v", core.ErrReadFailure, err))
	}
	if !ok {
		return core.EmptyCollection(), nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.ReadAttempts; attempt++ {
		doc, err := s.fetch(ctx, url)
		if err == nil {
			return doc, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.Collection{}, ctxErr
		}
		lastErr = err
		log.Printf("[store] read attempt %d/%d failed: %v", attempt, s.opts.ReadAttempts, err)
		if attempt < s.opts.ReadAttempts {
			if err := sleep(ctx, s.opts.ReadBackoff); err != nil {
				return core.Collection{}, err
			}
		}
	}

	opErr := core.NewOpError("read", s.opts.Path,
		fmt.Errorf("%w: %d attempts: %v", core.ErrReadFailure, s.opts.ReadAttempts, lastErr))
	return core.Collection{}, core.WithContext(opErr, "attempts", s.opts.ReadAttempts)
}

func (s *VersionedStore) fetch(ctx context.Context, url string) (core.Collection, error) {
	data, err := s.medium.Fetch(ctx, cacheBust(url))
	if err != nil {
		return core.Collection{}, err
	}

	var doc core.Collection
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.Collection{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Categories == nil {
		doc.Categories = []core.Category{}
	}
	return doc, nil
}

// Write stores doc unconditionally and then pauses for SettleDelay so the
// medium has a chance to propagate the new value.
func (s *VersionedStore) Write(ctx context.Context, doc core.Collection) error {
	ctx, span := observability.StartStoreSpan(ctx, "write", s.opts.Path)
	defer span.End()

	err := s.write(ctx, doc)
	observability.RecordError(span, err)
	return err
}

func (s *VersionedStore) write(ctx context.Context, doc core.Collection) error {
	if doc.Categories == nil {
		doc.Categories = []core.Category{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return core.NewOpError("write", s.opts.Path, fmt.Errorf("%w: encode: %v", core.ErrWriteFailure, err))
	}

	if err := s.medium.Put(ctx, s.opts.Path, data); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return core.NewOpError("write", s.opts.Path, fmt.Errorf("%w: %v", core.ErrWriteFailure, err))
	}

	return sleep(ctx, s.opts.SettleDelay)
}

func cacheBust(url string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "t=" + uuid.NewString()
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
