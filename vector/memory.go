package vector

import (
	"context"
	"sync"
)

// MemoryIndex is an in-process Index. Records keep their first insertion
// order so ties rank the same way they do against the collection document.
type MemoryIndex struct {
	mu      sync.RWMutex
	order   []string
	records map[string]Record
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		records: make(map[string]Record),
	}
}

// Upsert stores records, updating existing ones by ID in place.
func (s *MemoryIndex) Upsert(ctx context.Context, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if _, ok := s.records[rec.ID]; !ok {
			s.order = append(s.order, rec.ID)
		}
		s.records[rec.ID] = rec
	}
	return nil
}

// Replace drops every record and loads records in their given order.
func (s *MemoryIndex) Replace(ctx context.Context, records []Record) error {
	order := make([]string, 0, len(records))
	byID := make(map[string]Record, len(records))
	for _, rec := range records {
		if _, ok := byID[rec.ID]; !ok {
			order = append(order, rec.ID)
		}
		byID[rec.ID] = rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = order
	s.records = byID
	return nil
}

// Search runs the brute-force ranking over a snapshot of the index.
func (s *MemoryIndex) Search(ctx context.Context, query []float64, topK int, threshold float64) ([]Match, error) {
	return Search(query, s.snapshot(), topK, threshold)
}

func (s *MemoryIndex) snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	corpus := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		corpus = append(corpus, s.records[id])
	}
	return corpus
}

// Delete removes records by ID.
func (s *MemoryIndex) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			drop[id] = true
			delete(s.records, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}

	kept := s.order[:0]
	for _, id := range s.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	s.order = kept
	return nil
}

// Close is a no-op for in-memory index.
func (s *MemoryIndex) Close() error {
	return nil
}

// Count returns the number of records in the index.
func (s *MemoryIndex) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ Index = (*MemoryIndex)(nil)
