package app

import (
	"context"
	"fmt"
	"strings"

	"skucatalog/pkg/domain"
	"skucatalog/pkg/ndc"
	"skucatalog/services/assistant/internal/catalogclient"
)

// fuzzyScanLimit bounds how many records the fuzzy pass pulls from the
// catalog in one go.
const fuzzyScanLimit = 500

// Resolver turns a free-form identifier into candidate catalog records. The
// identifier is treated first as a code, then as a name fragment.
type Resolver struct {
	catalog Catalog
}

// NewResolver constructs a resolver over the given catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve runs the escalating match policy, short-circuiting at the first
// non-empty result class:
//  1. exact code match
//  2. hyphen-normalized / containment code match
//  3. raw substring-name matches, returned as-is for the caller to present
//
// A store error is surfaced as a resolver failure; callers must distinguish
// "zero results" from "lookup failed".
func (r *Resolver) Resolve(ctx context.Context, identifier string) ([]domain.SKU, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, nil
	}

	sku, ok, err := r.catalog.Get(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	if ok {
		return []domain.SKU{sku}, nil
	}

	matches, err := r.fuzzyByCode(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if len(matches) > 0 {
		return matches, nil
	}

	items, _, err := r.catalog.List(ctx, catalogclient.ListFilter{Name: identifier})
	if err != nil {
		return nil, fmt.Errorf("name lookup: %w", err)
	}
	return items, nil
}

// fuzzyByCode tolerates hyphen-placement drift from OCR or typing: codes are
// compared hyphen-free, plus containment in either direction.
func (r *Resolver) fuzzyByCode(ctx context.Context, identifier string) ([]domain.SKU, error) {
	items, _, err := r.catalog.List(ctx, catalogclient.ListFilter{PageSize: fuzzyScanLimit})
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup: %w", err)
	}
	var matches []domain.SKU
	for _, sku := range items {
		if ndc.FuzzyMatch(identifier, sku.NDC) {
			matches = append(matches, sku)
		}
	}
	return matches, nil
}
