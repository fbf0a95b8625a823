package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"skucatalog/pkg/domain"
	"skucatalog/services/assistant/internal/catalogclient"
)

var errCatalogDown = errors.New("catalog unavailable")

// fakeCatalog is an in-memory Catalog with switchable failure modes.
type fakeCatalog struct {
	mu      sync.Mutex
	skus    map[string]domain.SKU
	order   []string
	updates []domain.SKU
	deletes []string

	failGet    bool
	failList   bool
	failUpdate bool
}

func newFakeCatalog(seed ...domain.SKU) *fakeCatalog {
	f := &fakeCatalog{skus: make(map[string]domain.SKU)}
	for _, sku := range seed {
		f.put(sku)
	}
	return f
}

func (f *fakeCatalog) put(sku domain.SKU) {
	if _, ok := f.skus[sku.NDC]; !ok {
		f.order = append(f.order, sku.NDC)
	}
	f.skus[sku.NDC] = sku
}

func (f *fakeCatalog) Get(_ context.Context, code string) (domain.SKU, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return domain.SKU{}, false, errCatalogDown
	}
	sku, ok := f.skus[code]
	return sku, ok, nil
}

func (f *fakeCatalog) List(_ context.Context, filter catalogclient.ListFilter) ([]domain.SKU, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, 0, errCatalogDown
	}
	var matched []domain.SKU
	for _, code := range f.order {
		sku := f.skus[code]
		if filter.NDC != "" && !strings.Contains(sku.NDC, filter.NDC) {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(sku.Name), strings.ToLower(filter.Name)) {
			continue
		}
		if sku.Status == domain.StatusDeleted {
			continue
		}
		matched = append(matched, sku)
	}
	total := len(matched)
	if filter.PageSize > 0 && len(matched) > filter.PageSize {
		matched = matched[:filter.PageSize]
	}
	return matched, total, nil
}

func (f *fakeCatalog) Create(_ context.Context, sku domain.SKU) (domain.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.skus[sku.NDC]; ok {
		return domain.SKU{}, errors.New("sku already exists")
	}
	f.put(sku)
	return sku, nil
}

func (f *fakeCatalog) Update(_ context.Context, code string, sku domain.SKU) (domain.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return domain.SKU{}, errCatalogDown
	}
	sku.NDC = code
	f.put(sku)
	f.updates = append(f.updates, sku)
	return sku, nil
}

func (f *fakeCatalog) PartialUpdate(_ context.Context, code string, patch domain.SKUPatch) (domain.SKU, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sku, ok := f.skus[code]
	if !ok {
		return domain.SKU{}, errors.New("sku not found")
	}
	sku = patch.Apply(sku)
	f.put(sku)
	return sku, nil
}

func (f *fakeCatalog) Delete(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sku, ok := f.skus[code]
	if !ok {
		return errors.New("sku not found")
	}
	sku.Status = domain.StatusDeleted
	f.put(sku)
	f.deletes = append(f.deletes, code)
	return nil
}

func (f *fakeCatalog) FindDuplicates(context.Context) ([]domain.DuplicateGroup, error) {
	return nil, nil
}
