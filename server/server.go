// Package server exposes the category service over HTTP.
package server

import (
	"net/http"

	"github.com/hubenschmidt/go-semcat/catalog"
	"github.com/hubenschmidt/go-semcat/monitor"
)

// Config configures a new Server instance.
type Config struct {
	Service *catalog.Service
	Metrics monitor.Collector // Optional: coordinator metrics for /metrics/summary
}

// Server is the HTTP boundary of the category registry.
type Server struct {
	service *catalog.Service
	metrics monitor.Collector
}

// New creates a new Server with the given configuration.
func New(cfg Config) *Server {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = monitor.NewNoOpCollector()
	}
	return &Server{
		service: cfg.Service,
		metrics: metrics,
	}
}

// Handler returns an http.Handler for the API routes. Routes carry no
// prefix; callers mount them (under /api/ in the semcat binary).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("GET /categories", s.handleCategoryList)
	mux.HandleFunc("POST /categories", s.handleCategoryCreate)
	mux.HandleFunc("DELETE /categories/{id}", s.handleCategoryDelete)

	mux.HandleFunc("POST /search", s.handleSearch)

	mux.HandleFunc("GET /metrics/summary", s.handleMetricsSummary)

	return corsMiddleware(mux)
}
