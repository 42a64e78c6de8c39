// Package catalog implements the category operations: create, list, delete
// and semantic search. Every write goes through the optimistic coordinator;
// embeddings are computed before any mutation is attempted.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/hubenschmidt/go-semcat/core"
	"github.com/hubenschmidt/go-semcat/llm"
	"github.com/hubenschmidt/go-semcat/observability"
	"github.com/hubenschmidt/go-semcat/store"
	"github.com/hubenschmidt/go-semcat/vector"
)

const (
	DefaultTopK      = 20
	DefaultThreshold = 0.75
)

type Options struct {
	TopK      int
	Threshold *float64

	// Index, when set, serves searches for the collection state it was
	// loaded from. Searches rebuild it whenever the document has moved on,
	// and fall back to scanning the document if that fails.
	Index vector.Index
}

// SearchOptions overrides the service defaults for one search.
type SearchOptions struct {
	TopK      *int
	Threshold *float64
}

type Service struct {
	coord     *store.Coordinator
	embedder  llm.Embedder
	mirror    *mirror
	topK      int
	threshold float64
}

func NewService(coord *store.Coordinator, embedder llm.Embedder, opts Options) *Service {
	s := &Service{
		coord:     coord,
		embedder:  embedder,
		mirror:    newMirror(opts.Index),
		topK:      opts.TopK,
		threshold: DefaultThreshold,
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}
	if opts.Threshold != nil {
		s.threshold = *opts.Threshold
	}
	return s
}

func (s *Service) HasIndex() bool {
	return s.mirror != nil
}

// Create embeds name and appends a new category unless its normalized name
// is already taken.
func (s *Service) Create(ctx context.Context, name string) (core.Category, error) {
	ctx, span := observability.StartCatalogSpan(ctx, "create")
	defer span.End()

	cat, err := s.create(ctx, name)
	observability.RecordError(span, err)
	return cat, err
}

func (s *Service) create(ctx context.Context, name string) (core.Category, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return core.Category{}, core.Validationf("name required")
	}

	embedding, err := s.embed(ctx, trimmed)
	if err != nil {
		return core.Category{}, core.NewOpError("create", trimmed, err)
	}

	cat := core.Category{ID: uuid.NewString(), Name: trimmed, Embedding: embedding}
	created, commit, err := store.UpdateCommit(ctx, s.coord, "create", func(c *core.Collection) (core.Category, error) {
		if core.HasDuplicateName(c.Categories, cat.Name) {
			return core.Category{}, fmt.Errorf("%w: %q", core.ErrDuplicate, cat.Name)
		}
		c.Categories = append(c.Categories, cat)
		return cat, nil
	})
	if err != nil {
		return core.Category{}, err
	}

	log.Printf("[catalog] created category %s (%q)", created.ID, created.Name)
	s.syncIndex(commit, func(idx vector.Index) error {
		return idx.Upsert(ctx, records([]core.Category{created}))
	})
	return created, nil
}

// List returns every stored category, embeddings included.
func (s *Service) List(ctx context.Context) ([]core.Category, error) {
	ctx, span := observability.StartCatalogSpan(ctx, "list")
	defer span.End()

	doc, err := s.coord.Store().Read(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return doc.Categories, nil
}

// Delete removes the category with id. Deleting an unknown id succeeds with
// deleted == false and writes nothing.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	ctx, span := observability.StartCatalogSpan(ctx, "delete")
	defer span.End()

	deleted, err := s.delete(ctx, id)
	observability.RecordError(span, err)
	return deleted, err
}

func (s *Service) delete(ctx context.Context, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, core.Validationf("id required")
	}

	deleted, commit, err := store.UpdateCommit(ctx, s.coord, "delete", func(c *core.Collection) (bool, error) {
		if !c.Remove(id) {
			return false, store.ErrNoChange
		}
		return true, nil
	})
	if err != nil {
		return false, err
	}

	if deleted {
		log.Printf("[catalog] deleted category %s", id)
		s.syncIndex(commit, func(idx vector.Index) error {
			return idx.Delete(ctx, []string{id})
		})
	}
	return deleted, nil
}

// Search ranks categories by similarity to query.
func (s *Service) Search(ctx context.Context, query string, opts SearchOptions) ([]vector.Match, error) {
	ctx, span := observability.StartCatalogSpan(ctx, "search")
	defer span.End()

	matches, err := s.search(ctx, query, opts)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	best := 0.0
	if len(matches) > 0 {
		best = matches[0].Score
	}
	observability.RecordSearchResult(span, len(matches), best)
	return matches, nil
}

func (s *Service) search(ctx context.Context, query string, opts SearchOptions) ([]vector.Match, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, core.Validationf("query required")
	}

	topK := s.topK
	if opts.TopK != nil {
		topK = *opts.TopK
	}
	threshold := s.threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	q, err := s.embed(ctx, trimmed)
	if err != nil {
		return nil, core.NewOpError("search", trimmed, err)
	}

	doc, err := s.coord.Store().Read(ctx)
	if err != nil {
		return nil, err
	}

	if s.mirror != nil {
		matches, ok, err := s.mirror.search(ctx, doc, q, topK, threshold)
		switch {
		case errors.Is(err, core.ErrDimensionMismatch):
			return nil, err
		case err != nil:
			log.Printf("[catalog] index search failed, scanning collection: %v", err)
		case ok:
			return matches, nil
		}
	}
	return vector.Search(q, records(doc.Categories), topK, threshold)
}

// Reindex purges the search index and reloads it from the stored
// collection, returning the number of records written.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	ctx, span := observability.StartCatalogSpan(ctx, "reindex")
	defer span.End()

	if s.mirror == nil {
		err := errors.New("no search index configured")
		observability.RecordError(span, err)
		return 0, err
	}

	doc, err := s.coord.Store().Read(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return 0, err
	}

	if err := s.mirror.rebuild(ctx, doc); err != nil {
		observability.RecordError(span, err)
		return 0, fmt.Errorf("reindex: %w", err)
	}
	log.Printf("[catalog] reindexed %d categories at version %d", len(doc.Categories), doc.Version)
	return len(doc.Categories), nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float64, error) {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
	}
	return vec, nil
}

func (s *Service) syncIndex(commit store.Commit, change func(vector.Index) error) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.apply(commit, change); err != nil {
		log.Printf("[index] sync to version %d failed, next search rebuilds: %v", commit.Head.Version, err)
	}
}

func records(cats []core.Category) []vector.Record {
	out := make([]vector.Record, len(cats))
	for i, c := range cats {
		out[i] = vector.Record{ID: c.ID, Name: c.Name, Vector: c.Embedding}
	}
	return out
}
