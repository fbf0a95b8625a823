package store

import "skucatalog/pkg/domain"

// SearchFilter narrows a catalog listing. Zero values mean "no constraint".
// Records with status DELETED are excluded unless Status names it explicitly
// or IncludeDeleted is set.
type SearchFilter struct {
	NDC            string
	Name           string
	Manufacturer   string
	Status         domain.SKUStatus
	Page           int
	PageSize       int
	IncludeDeleted bool
}

// Store defines persistence operations for the SKU catalog.
type Store interface {
	// CreateSKU inserts a new record; the NDC must not exist yet.
	CreateSKU(domain.SKU) error
	// SaveSKU replaces the record stored under its NDC.
	SaveSKU(domain.SKU) error
	GetSKU(ndc string) (domain.SKU, bool, error)
	// SearchSKUs returns one page of matches plus the total match count.
	SearchSKUs(f SearchFilter) ([]domain.SKU, int, error)
	// FindDuplicates groups records sharing a product name.
	FindDuplicates() ([]domain.DuplicateGroup, error)

	// revisions
	AppendRevision(domain.Revision) error
	ListRevisions(ndc string, limit int) ([]domain.Revision, error)
}
