package store

import (
	"fmt"
	"strings"
	"sync"

	"skucatalog/pkg/domain"
)

// MemoryStore keeps the catalog in-process. It backs tests and local runs
// without Postgres.
type MemoryStore struct {
	mu        sync.RWMutex
	skus      map[string]domain.SKU
	order     []string
	revisions map[string][]domain.Revision
}

// NewMemoryStore initializes an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		skus:      make(map[string]domain.SKU),
		revisions: make(map[string][]domain.Revision),
	}
}

// CreateSKU inserts a record, rejecting duplicate codes.
func (m *MemoryStore) CreateSKU(sku domain.SKU) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.skus[sku.NDC]; exists {
		return fmt.Errorf("sku %s already exists", sku.NDC)
	}
	m.order = append(m.order, sku.NDC)
	m.skus[sku.NDC] = sku
	return nil
}

// SaveSKU stores or replaces a record and tracks insertion order.
func (m *MemoryStore) SaveSKU(sku domain.SKU) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.skus[sku.NDC]; !exists {
		m.order = append(m.order, sku.NDC)
	}
	m.skus[sku.NDC] = sku
	return nil
}

// GetSKU retrieves a record by code.
func (m *MemoryStore) GetSKU(ndc string) (domain.SKU, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sku, ok := m.skus[ndc]
	return sku, ok, nil
}

// SearchSKUs filters and paginates in insertion order.
func (m *MemoryStore) SearchSKUs(f SearchFilter) ([]domain.SKU, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []domain.SKU
	for _, ndc := range m.order {
		sku, ok := m.skus[ndc]
		if !ok || !matchesFilter(sku, f) {
			continue
		}
		matched = append(matched, sku)
	}
	total := len(matched)

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	page := f.Page
	if page < 0 {
		page = 0
	}
	start := page * pageSize
	if start >= total {
		return []domain.SKU{}, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func matchesFilter(sku domain.SKU, f SearchFilter) bool {
	if f.NDC != "" && !strings.Contains(sku.NDC, f.NDC) {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(sku.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Manufacturer != "" && !strings.Contains(sku.Manufacturer, f.Manufacturer) {
		return false
	}
	if f.Status != "" {
		return sku.Status == f.Status
	}
	if !f.IncludeDeleted && sku.Status == domain.StatusDeleted {
		return false
	}
	return true
}

// FindDuplicates groups records sharing a product name.
func (m *MemoryStore) FindDuplicates() ([]domain.DuplicateGroup, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byName := make(map[string][]domain.SKU)
	var nameOrder []string
	for _, ndc := range m.order {
		sku, ok := m.skus[ndc]
		if !ok {
			continue
		}
		if _, seen := byName[sku.Name]; !seen {
			nameOrder = append(nameOrder, sku.Name)
		}
		byName[sku.Name] = append(byName[sku.Name], sku)
	}
	var groups []domain.DuplicateGroup
	for _, name := range nameOrder {
		records := byName[name]
		if len(records) < 2 {
			continue
		}
		groups = append(groups, domain.DuplicateGroup{
			NDC:     records[0].NDC,
			Name:    name,
			Records: records,
		})
	}
	return groups, nil
}

// AppendRevision records one applied mutation.
func (m *MemoryStore) AppendRevision(rev domain.Revision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revisions[rev.NDC] = append([]domain.Revision{rev}, m.revisions[rev.NDC]...)
	return nil
}

// ListRevisions returns recent revisions for a code, newest first.
func (m *MemoryStore) ListRevisions(ndc string, limit int) ([]domain.Revision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	revs := m.revisions[ndc]
	if limit <= 0 || limit > len(revs) {
		limit = len(revs)
	}
	out := make([]domain.Revision, limit)
	copy(out, revs[:limit])
	return out, nil
}
