package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/hubenschmidt/go-semcat/catalog"
	"github.com/hubenschmidt/go-semcat/core"
	"github.com/hubenschmidt/go-semcat/vector"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	cats, err := s.service.List(r.Context())
	if err != nil {
		writeServiceError(w, "list", err)
		return
	}

	items := make([]CategoryInfo, len(cats))
	for i, c := range cats {
		items[i] = toCategoryInfo(c)
	}
	writeJSON(w, http.StatusOK, CategoryListResponse{Items: items})
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	cat, err := s.service.Create(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryInfo(cat))
}

func (s *Server) handleCategoryDelete(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")

	deleted, err := s.service.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteCategoryResponse{OK: true, Deleted: deleted})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	matches, err := s.service.Search(r.Context(), req.Query, catalog.SearchOptions{
		TopK:      req.TopK,
		Threshold: req.Threshold,
	})
	if err != nil {
		writeServiceError(w, "search", err)
		return
	}
	if matches == nil {
		matches = []vector.Match{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: matches})
}

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Summary())
}

// writeServiceError maps service errors to status codes. Validation errors
// carry a user-facing message; everything else is logged and reported
// generically.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, core.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate name")
	default:
		log.Printf("[server] %s failed: %v", op, err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func validationMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, core.ErrValidation.Error()+": "); ok {
		return rest
	}
	return msg
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if w.Header().Get("Cache-Control") == "" {
		w.Header().Set("Cache-Control", "no-store")
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[server] encode response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"encode response failed"}` + "\n"))
		return
	}
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
