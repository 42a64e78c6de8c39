// Package semcat wires the semantic category registry together: a versioned
// category document on a blob medium, an embedding provider, an optional
// mirror search index and the HTTP API.
//
// Example usage:
//
//	cfg, _ := config.Load("")
//	app, err := semcat.Open(ctx, cfg)
//	if err != nil { ... }
//	defer app.Close()
//
//	cat, err := app.Service.Create(ctx, "Fruit")
//	matches, err := app.Service.Search(ctx, "apple", catalog.SearchOptions{})
package semcat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/hubenschmidt/go-semcat/blob"
	"github.com/hubenschmidt/go-semcat/catalog"
	"github.com/hubenschmidt/go-semcat/config"
	"github.com/hubenschmidt/go-semcat/editor"
	"github.com/hubenschmidt/go-semcat/llm"
	"github.com/hubenschmidt/go-semcat/monitor"
	"github.com/hubenschmidt/go-semcat/observability"
	"github.com/hubenschmidt/go-semcat/server"
	"github.com/hubenschmidt/go-semcat/store"
	"github.com/hubenschmidt/go-semcat/vector"
)

// App holds every long-lived component built from a Config.
type App struct {
	Config      *config.Config
	Store       *store.VersionedStore
	Coordinator *store.Coordinator
	Service     *catalog.Service
	Server      *server.Server
	Metrics     *monitor.InMemoryCollector

	tracing *observability.TracerProvider
	closers []io.Closer
}

// Open builds the application described by cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	tp, err := observability.InitTracing(ctx, cfg.TracingConfig())
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.tracing = tp

	medium, closer, err := blob.New(cfg.BlobConfig())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open blob medium: %w", err)
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	log.Printf("[blob] using %s backend", backendName(cfg))

	embedder, err := llm.NewEmbedder(cfg.EmbedderConfig())
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	index, err := NewIndex(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	if index != nil {
		app.closers = append(app.closers, index)
	}

	log.Printf("[embed] using %s", llm.Describe(embedder))

	app.Metrics = monitor.NewInMemoryCollector()
	app.Store = store.NewVersionedStore(medium, cfg.StoreOptions())
	opts := app.Store.Options()
	log.Printf("[store] document %s, %d read attempts, %d update attempts", opts.Path, opts.ReadAttempts, opts.MaxRetries)
	app.Coordinator = store.NewCoordinator(app.Store, app.Metrics)

	threshold := cfg.Search.Threshold
	app.Service = catalog.NewService(app.Coordinator, embedder, catalog.Options{
		TopK:      cfg.Search.TopK,
		Threshold: &threshold,
		Index:     index,
	})
	app.Server = server.New(server.Config{Service: app.Service, Metrics: app.Metrics})

	// An in-process index starts empty; load it now rather than on the first search.
	if cfg.Search.Index == "memory" {
		n, err := app.Service.Reindex(ctx)
		if err != nil {
			log.Printf("[index] initial reindex failed, searches will scan the collection: %v", err)
		} else {
			log.Printf("[index] loaded %d categories into memory index", n)
		}
	}

	return app, nil
}

// NewIndex creates the mirror search index named by cfg.Search.Index, or
// returns nil for "none".
func NewIndex(ctx context.Context, cfg *config.Config) (vector.Index, error) {
	switch cfg.Search.Index {
	case "", "none":
		return nil, nil
	case "memory":
		return vector.NewMemoryIndex(), nil
	case "pgvector":
		return vector.NewPgVectorIndex(cfg.SearchDSN(), cfg.IndexDimension())
	case "qdrant":
		q := cfg.Search.Qdrant
		return vector.NewQdrantIndex(ctx, q.Host, q.Port, q.Collection, cfg.IndexDimension())
	default:
		return nil, fmt.Errorf("unknown search index %q", cfg.Search.Index)
	}
}

// Handler returns the full HTTP surface: the API under /api/ and the
// category manager at /. Dev mode leaves / to a separate frontend server.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", a.Server.Handler()))
	if !a.Config.Server.Dev {
		mux.Handle("/", editor.Handler())
	}
	return mux
}

// Close releases the index, the medium and the tracer.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func backendName(cfg *config.Config) string {
	if cfg.Blob.Backend != "" {
		return cfg.Blob.Backend
	}
	return "default"
}
