package core

import (
	"errors"
	"strings"
	"testing"
)

func TestHasDuplicateName(t *testing.T) {
	names := []string{"Fruit", " fruit ", "FRUIT", "\tfRuIt\n"}
	for _, existing := range names {
		for _, candidate := range names {
			cats := []Category{{ID: "1", Name: existing}}
			if !HasDuplicateName(cats, candidate) {
				t.Errorf("%q vs %q: expected duplicate", existing, candidate)
			}
		}
	}
}

func TestHasDuplicateName_Distinct(t *testing.T) {
	cats := []Category{{ID: "1", Name: "Fruit"}, {ID: "2", Name: "Vehicle"}}
	tests := []struct {
		candidate string
		want      bool
	}{
		{"fruits", false},
		{"Veg", false},
		{"  vehicle", true},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.candidate, func(t *testing.T) {
			if got := HasDuplicateName(cats, tt.candidate); got != tt.want {
				t.Errorf("HasDuplicateName(%q) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
	if HasDuplicateName(nil, "anything") {
		t.Error("empty collection should never report a duplicate")
	}
}

func TestCollectionClone(t *testing.T) {
	orig := Collection{Version: 3, Categories: []Category{{ID: "a", Name: "A"}}}
	work := orig.Clone()
	work.Categories = append(work.Categories, Category{ID: "b", Name: "B"})
	work.Categories[0].Name = "changed"
	work.Version++

	if len(orig.Categories) != 1 || orig.Categories[0].Name != "A" {
		t.Fatalf("clone leaked into original: %+v", orig)
	}
	if orig.Version != 3 {
		t.Fatalf("expected original version 3, got %d", orig.Version)
	}
}

func TestCollectionRemove(t *testing.T) {
	c := Collection{Categories: []Category{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	if !c.Remove("b") {
		t.Fatal("expected b to be removed")
	}
	if c.Remove("b") {
		t.Fatal("second remove should report false")
	}
	if len(c.Categories) != 2 || c.Categories[0].ID != "a" || c.Categories[1].ID != "c" {
		t.Fatalf("unexpected categories after remove: %+v", c.Categories)
	}
}

func TestEmptyCollection(t *testing.T) {
	c := EmptyCollection()
	if c.Version != InitialVersion {
		t.Errorf("expected version %d, got %d", InitialVersion, c.Version)
	}
	if c.Categories == nil || len(c.Categories) != 0 {
		t.Errorf("expected empty non-nil categories, got %#v", c.Categories)
	}
}

func TestOpError(t *testing.T) {
	err := NewOpError("store.write", "categories.json", ErrWriteFailure)
	if !errors.Is(err, ErrWriteFailure) {
		t.Fatal("OpError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "key=categories.json") {
		t.Errorf("unexpected message: %s", err.Error())
	}

	v := Validationf("name required")
	if !errors.Is(v, ErrValidation) {
		t.Fatal("Validationf should match ErrValidation")
	}
	if !strings.Contains(v.Error(), "name required") {
		t.Errorf("unexpected message: %s", v.Error())
	}
}
