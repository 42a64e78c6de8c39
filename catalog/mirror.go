package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/hubenschmidt/go-semcat/core"
	"github.com/hubenschmidt/go-semcat/store"
	"github.com/hubenschmidt/go-semcat/vector"
)

// mirror tracks which collection state the search index was last loaded
// from. The index only answers a search when it holds exactly the document
// the search just read; any other state is rebuilt from that document first.
type mirror struct {
	index vector.Index

	mu     sync.RWMutex
	stamp  core.Stamp
	synced bool
}

func newMirror(index vector.Index) *mirror {
	if index == nil {
		return nil
	}
	return &mirror{index: index}
}

// search answers from the index once it reflects doc. ok is false when the
// index cannot be used for doc and the caller should scan doc instead.
func (m *mirror) search(ctx context.Context, doc core.Collection, query []float64, topK int, threshold float64) (matches []vector.Match, ok bool, err error) {
	want := doc.Stamp()

	m.mu.RLock()
	if m.synced && m.stamp == want {
		defer m.mu.RUnlock()
		return m.query(ctx, query, topK, threshold)
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.synced || m.stamp != want {
		if m.synced && m.stamp.Version > want.Version {
			// The read lagged behind a state the index already holds.
			return nil, false, nil
		}
		if err := m.load(ctx, doc); err != nil {
			return nil, false, err
		}
	}
	return m.query(ctx, query, topK, threshold)
}

func (m *mirror) query(ctx context.Context, query []float64, topK int, threshold float64) ([]vector.Match, bool, error) {
	matches, err := m.index.Search(ctx, query, topK, threshold)
	if err != nil {
		return nil, false, err
	}
	return matches, true, nil
}

// rebuild purges the index and loads doc into it.
func (m *mirror) rebuild(ctx context.Context, doc core.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx, doc)
}

func (m *mirror) load(ctx context.Context, doc core.Collection) error {
	m.synced = false
	if err := m.index.Replace(ctx, records(doc.Categories)); err != nil {
		return fmt.Errorf("rebuild index at version %d: %w", doc.Version, err)
	}
	m.stamp = doc.Stamp()
	m.synced = true
	return nil
}

// apply runs an incremental change for commit when the index holds exactly
// commit.Base, and advances it to commit.Head. Otherwise it does nothing and
// the next search rebuilds.
func (m *mirror) apply(commit store.Commit, change func(vector.Index) error) error {
	if commit.Base == commit.Head {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.synced || m.stamp != commit.Base {
		return nil
	}
	if err := change(m.index); err != nil {
		m.synced = false
		return err
	}
	m.stamp = commit.Head
	return nil
}
