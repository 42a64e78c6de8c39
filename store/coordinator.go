package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/hubenschmidt/go-semcat/core"
	"github.com/hubenschmidt/go-semcat/monitor"
	"github.com/hubenschmidt/go-semcat/observability"
)

// ErrNoChange is returned by a mutation that decided nothing needs writing.
// Update then returns the mutation's result with a nil error and no write.
var ErrNoChange = errors.New("no change")

// Mutation edits a private working copy of the collection. It must be pure:
// it may run several times, once per attempt, each time on a fresh copy.
type Mutation[T any] func(c *core.Collection) (T, error)

// Commit reports the document state an update started from and the state
// it left behind. Base equals Head when the mutation returned ErrNoChange.
type Commit struct {
	Base core.Stamp
	Head core.Stamp
}

// Coordinator runs read-modify-write-verify loops against a VersionedStore.
// It keeps no state between calls.
type Coordinator struct {
	store   *VersionedStore
	metrics monitor.Collector
}

func NewCoordinator(store *VersionedStore, metrics monitor.Collector) *Coordinator {
	if metrics == nil {
		metrics = monitor.NewNoOpCollector()
	}
	return &Coordinator{store: store, metrics: metrics}
}

func (c *Coordinator) Store() *VersionedStore {
	return c.store
}

func (c *Coordinator) Metrics() monitor.Collector {
	return c.metrics
}

// Update applies fn to the latest collection and retries until the write is
// observed on a follow-up read. A conflict is any verification read that
// does not return the version and revision just written.
//
// Two writers can still both verify if the medium has not yet propagated
// the later write when the earlier writer re-reads. The medium offers no
// conditional put, so this loop narrows that window but cannot close it.
func Update[T any](ctx context.Context, c *Coordinator, op string, fn Mutation[T]) (T, error) {
	res, _, err := UpdateCommit(ctx, c, op, fn)
	return res, err
}

// UpdateCommit is Update that also reports which document states the
// successful attempt moved between, so callers can keep derived data in step.
func UpdateCommit[T any](ctx context.Context, c *Coordinator, op string, fn Mutation[T]) (T, Commit, error) {
	ctx, span := observability.StartStoreSpan(ctx, "update", c.store.Options().Path)
	defer span.End()

	start := time.Now()
	m := monitor.OpMetrics{Op: op}
	res, commit, err := update(ctx, c, fn, &m, span)
	m.Duration = time.Since(start)
	m.Success = err == nil
	if err != nil {
		m.Error = err.Error()
	}
	c.metrics.Record(m)
	observability.RecordError(span, err)
	return res, commit, err
}

func update[T any](ctx context.Context, c *Coordinator, fn Mutation[T], m *monitor.OpMetrics, span trace.Span) (T, Commit, error) {
	var zero T
	opts := c.store.Options()
	var lastConflict error

	for attempt := 1; attempt <= opts.MaxRetries; attempt++ {
		m.Attempts = attempt

		doc, err := c.store.Read(ctx)
		if err != nil {
			return zero, Commit{}, err
		}

		work := doc.Clone()
		res, err := fn(&work)
		if errors.Is(err, ErrNoChange) {
			observability.RecordAttempt(span, attempt, doc.Version, "unchanged")
			return res, Commit{Base: doc.Stamp(), Head: doc.Stamp()}, nil
		}
		if err != nil {
			observability.RecordAttempt(span, attempt, doc.Version, "rejected")
			return zero, Commit{}, err
		}

		work.Version = doc.Version + 1
		work.Revision = uuid.NewString()
		if err := c.store.Write(ctx, work); err != nil {
			return zero, Commit{}, err
		}

		if err := sleep(ctx, opts.VerifyDelay); err != nil {
			return zero, Commit{}, err
		}

		observed, err := c.store.Read(ctx)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, Commit{}, ctxErr
			}
			lastConflict = fmt.Errorf("verify read: %w", err)
		case observed.Version == work.Version && observed.Revision == work.Revision:
			observability.RecordAttempt(span, attempt, work.Version, "committed")
			return res, Commit{Base: doc.Stamp(), Head: work.Stamp()}, nil
		default:
			lastConflict = fmt.Errorf("wrote version %d, observed version %d", work.Version, observed.Version)
		}

		m.Conflicts++
		observability.RecordAttempt(span, attempt, work.Version, "conflict")
		log.Printf("[coordinator] conflict on attempt %d/%d: %v", attempt, opts.MaxRetries, lastConflict)

		if attempt < opts.MaxRetries {
			if err := sleep(ctx, opts.ConflictBackoff*time.Duration(attempt)); err != nil {
				return zero, Commit{}, err
			}
		}
	}

	opErr := core.NewOpError("update", opts.Path,
		fmt.Errorf("%w after %d attempts: %v", core.ErrConflictExhausted, opts.MaxRetries, lastConflict))
	return zero, Commit{}, core.WithContext(opErr, "attempts", opts.MaxRetries)
}
