package server

import (
	"github.com/hubenschmidt/go-semcat/core"
	"github.com/hubenschmidt/go-semcat/vector"
)

// CategoryInfo is the public view of a category; embeddings stay server side.
type CategoryInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CategoryListResponse struct {
	Items []CategoryInfo `json:"items"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type DeleteCategoryResponse struct {
	OK      bool `json:"ok"`
	Deleted bool `json:"deleted"`
}

type SearchRequest struct {
	Query     string   `json:"query"`
	TopK      *int     `json:"topK,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type SearchResponse struct {
	Results []vector.Match `json:"results"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func toCategoryInfo(c core.Category) CategoryInfo {
	return CategoryInfo{ID: c.ID, Name: c.Name}
}
