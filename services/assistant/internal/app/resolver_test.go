package app

import (
	"context"
	"testing"

	"skucatalog/pkg/domain"
)

func TestResolveExactCode(t *testing.T) {
	catalog := newFakeCatalog(
		domain.SKU{NDC: "12345-678-90", Name: "Aspirin"},
		domain.SKU{NDC: "11111-111-11", Name: "Ibuprofen"},
	)
	r := NewResolver(catalog)

	matches, err := r.Resolve(context.Background(), "12345-678-90")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(matches) != 1 || matches[0].NDC != "12345-678-90" {
		t.Fatalf("expected exact match, got %+v", matches)
	}
}

func TestResolveNormalizedCode(t *testing.T) {
	// store holds the code without the second hyphen; the query has full
	// hyphenation
	catalog := newFakeCatalog(domain.SKU{NDC: "98765-43210", Name: "Lipitor"})
	r := NewResolver(catalog)

	matches, err := r.Resolve(context.Background(), "98765-432-10")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(matches) != 1 || matches[0].NDC != "98765-43210" {
		t.Fatalf("expected normalized match, got %+v", matches)
	}
}

func TestResolveNameFallback(t *testing.T) {
	catalog := newFakeCatalog(
		domain.SKU{NDC: "11111-111-11", Name: "Aspirin"},
		domain.SKU{NDC: "22222-222-22", Name: "Aspirin Forte"},
		domain.SKU{NDC: "33333-333-33", Name: "Ibuprofen"},
	)
	r := NewResolver(catalog)

	matches, err := r.Resolve(context.Background(), "aspirin")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 name matches returned as-is, got %+v", matches)
	}
}

func TestResolveZeroResultsIsNotAnError(t *testing.T) {
	r := NewResolver(newFakeCatalog())

	matches, err := r.Resolve(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no matches, got %+v", matches)
	}
}

func TestResolveSurfacesStoreErrors(t *testing.T) {
	catalog := newFakeCatalog(domain.SKU{NDC: "12345-678-90", Name: "Aspirin"})
	catalog.failGet = true
	r := NewResolver(catalog)

	if _, err := r.Resolve(context.Background(), "12345-678-90"); err == nil {
		t.Fatal("a store failure must surface, not read as no match")
	}
}
