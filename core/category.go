// Package core holds the category model, the duplicate-name guard and the
// error taxonomy shared by every other package.
package core

import "strings"

// Category is a registered label with its embedding. It is never updated in
// place once committed.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Embedding []float64 `json:"embedding"`
}

// Collection is the single durable document holding every category.
// Version is the only concurrency token; Revision identifies the attempt that
// wrote this value.
type Collection struct {
	Version    int64      `json:"version"`
	Revision   string     `json:"revision,omitempty"`
	Categories []Category `json:"categories"`
}

// Stamp identifies one written state of the collection.
type Stamp struct {
	Version  int64
	Revision string
}

// Stamp returns the version and revision c was read at.
func (c Collection) Stamp() Stamp {
	return Stamp{Version: c.Version, Revision: c.Revision}
}

// InitialVersion is the version of a collection that has never been written.
const InitialVersion = 1

// EmptyCollection returns the document observed before the first write.
func EmptyCollection() Collection {
	return Collection{Version: InitialVersion, Categories: []Category{}}
}

// Clone returns a working copy whose category slice can be modified without
// touching c. Embeddings are shared; they are immutable.
func (c Collection) Clone() Collection {
	cats := make([]Category, len(c.Categories))
	copy(cats, c.Categories)
	return Collection{Version: c.Version, Revision: c.Revision, Categories: cats}
}

// Find returns the index of the category with the given id, or -1.
func (c Collection) Find(id string) int {
	for i, cat := range c.Categories {
		if cat.ID == id {
			return i
		}
	}
	return -1
}

// Remove deletes the category with the given id and reports whether it was present.
func (c *Collection) Remove(id string) bool {
	i := c.Find(id)
	if i < 0 {
		return false
	}
	c.Categories = append(c.Categories[:i], c.Categories[i+1:]...)
	return true
}

// NormalizeName is the key used for uniqueness: surrounding whitespace trimmed, lowercased.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// HasDuplicateName reports whether any category already uses candidate's normalized name.
func HasDuplicateName(categories []Category, candidate string) bool {
	key := NormalizeName(candidate)
	for _, c := range categories {
		if NormalizeName(c.Name) == key {
			return true
		}
	}
	return false
}
