package vector

import (
	"context"
	"testing"
)

func TestMemoryIndex_UpsertSearchDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	err := idx.Upsert(ctx, []Record{
		{ID: "a", Name: "Fruit", Vector: []float64{1, 0}},
		{ID: "b", Name: "Vehicle", Vector: []float64{0, 1}},
		{ID: "c", Name: "Apple", Vector: []float64{1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 3 {
		t.Fatalf("expected 3 records, got %d", idx.Count())
	}

	got, err := idx.Search(ctx, []float64{1, 0}, 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected results: %+v", got)
	}

	// Updating a record keeps its original position.
	if err := idx.Upsert(ctx, []Record{{ID: "a", Name: "Fruits", Vector: []float64{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	got, _ = idx.Search(ctx, []float64{1, 0}, 5, 0.5)
	if got[0].ID != "a" || got[0].Name != "Fruits" {
		t.Fatalf("expected updated record first, got %+v", got)
	}

	if err := idx.Delete(ctx, []string{"a", "missing"}); err != nil {
		t.Fatal(err)
	}
	got, _ = idx.Search(ctx, []float64{1, 0}, 5, 0.5)
	if len(got) != 1 || got[0].ID != "c" || got[0].Rank != 1 {
		t.Fatalf("unexpected results after delete: %+v", got)
	}
	if idx.Count() != 2 {
		t.Fatalf("expected 2 records, got %d", idx.Count())
	}
}

func TestMemoryIndex_Replace(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	_ = idx.Upsert(ctx, []Record{
		{ID: "stale", Name: "Gone", Vector: []float64{1, 0}},
		{ID: "a", Name: "Old Fruit", Vector: []float64{0, 1}},
	})

	err := idx.Replace(ctx, []Record{
		{ID: "b", Name: "Vehicle", Vector: []float64{1, 0}},
		{ID: "a", Name: "Fruit", Vector: []float64{1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if idx.Count() != 2 {
		t.Fatalf("expected 2 records after replace, got %d", idx.Count())
	}

	got, _ := idx.Search(ctx, []float64{1, 0}, 5, 0.5)
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" || got[1].Name != "Fruit" {
		t.Fatalf("expected replacement order b, a; got %+v", got)
	}
}
