// Package vector provides cosine similarity ranking and optional mirror
// indexes used to serve category searches.
package vector

import "context"

// Record is one searchable item: a category id, its name and its embedding.
type Record struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Vector []float64 `json:"-"`
}

// Match is a ranked search hit.
type Match struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float64 `json:"score"` // 1 - cosine distance, in [-1, 1]
	Rank  int     `json:"rank"`  // 1-based position in the result
}

// Index is a secondary search structure kept in sync with the category
// collection. The collection document remains the source of truth.
type Index interface {
	// Upsert stores records, replacing existing ones by ID.
	Upsert(ctx context.Context, records []Record) error

	// Replace drops every stored record and loads records in their place.
	Replace(ctx context.Context, records []Record) error

	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search ranks indexed records against query with threshold and topK semantics.
	Search(ctx context.Context, query []float64, topK int, threshold float64) ([]Match, error)

	// Close releases resources.
	Close() error
}
