package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"skucatalog/pkg/domain"
)

const migrateLockID int64 = 52105210

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&SKUModel{}, &RevisionModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateSKU inserts a record; duplicate NDCs surface as a DB error.
func (s *GormStore) CreateSKU(sku domain.SKU) error {
	model := skuToModel(sku)
	return s.db.Create(&model).Error
}

// SaveSKU replaces the record stored under the SKU's NDC.
func (s *GormStore) SaveSKU(sku domain.SKU) error {
	model := skuToModel(sku)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "ndc"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "manufacturer", "dosage_form", "strength", "package_size",
			"gtin", "image_url", "status", "last_modified", "reviewed_by",
		}),
	}).Create(&model).Error
}

// GetSKU retrieves one record by code.
func (s *GormStore) GetSKU(ndc string) (domain.SKU, bool, error) {
	var model SKUModel
	if err := s.db.First(&model, "ndc = ?", ndc).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.SKU{}, false, nil
		}
		return domain.SKU{}, false, err
	}
	return skuFromModel(model), true, nil
}

// SearchSKUs returns one page of matches and the total match count.
func (s *GormStore) SearchSKUs(f SearchFilter) ([]domain.SKU, int, error) {
	query := s.db.Model(&SKUModel{})
	if f.NDC != "" {
		query = query.Where("ndc LIKE ?", "%"+f.NDC+"%")
	}
	if f.Name != "" {
		query = query.Where("name ILIKE ?", "%"+f.Name+"%")
	}
	if f.Manufacturer != "" {
		query = query.Where("manufacturer LIKE ?", "%"+f.Manufacturer+"%")
	}
	if f.Status != "" {
		query = query.Where("status = ?", string(f.Status))
	} else if !f.IncludeDeleted {
		query = query.Where("status <> ?", string(domain.StatusDeleted))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}
	page := f.Page
	if page < 0 {
		page = 0
	}
	var models []SKUModel
	if err := query.Order("created_at ASC").
		Offset(page * pageSize).
		Limit(pageSize).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}
	items := make([]domain.SKU, 0, len(models))
	for _, m := range models {
		items = append(items, skuFromModel(m))
	}
	return items, int(total), nil
}

// FindDuplicates groups records sharing a product name.
func (s *GormStore) FindDuplicates() ([]domain.DuplicateGroup, error) {
	var names []string
	if err := s.db.Model(&SKUModel{}).
		Select("name").
		Group("name").
		Having("COUNT(*) > 1").
		Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	groups := make([]domain.DuplicateGroup, 0, len(names))
	for _, name := range names {
		var models []SKUModel
		if err := s.db.Where("name = ?", name).Order("created_at ASC").Find(&models).Error; err != nil {
			return nil, err
		}
		if len(models) == 0 {
			continue
		}
		records := make([]domain.SKU, 0, len(models))
		for _, m := range models {
			records = append(records, skuFromModel(m))
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
func (s *GormStore) AppendRevision(rev domain.Revision) error {
	model, err := revisionToModel(rev)
	if err != nil {
		return err
	}
	return s.db.Create(&model).Error
}

// ListRevisions returns recent revisions for a code, newest first.
func (s *GormStore) ListRevisions(ndc string, limit int) ([]domain.Revision, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var models []RevisionModel
	if err := s.db.Where("ndc = ?", ndc).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	revs := make([]domain.Revision, 0, len(models))
	for _, m := range models {
		revs = append(revs, revisionFromModel(m))
	}
	return revs, nil
}

func skuToModel(s domain.SKU) SKUModel {
	return SKUModel{
		NDC:          s.NDC,
		Name:         s.Name,
		Manufacturer: s.Manufacturer,
		DosageForm:   s.DosageForm,
		Strength:     s.Strength,
		PackageSize:  s.PackageSize,
		GTIN:         s.GTIN,
		ImageURL:     s.ImageURL,
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
		LastModified: s.LastModified,
		CreatedBy:    s.CreatedBy,
		ReviewedBy:   s.ReviewedBy,
	}
}

func skuFromModel(m SKUModel) domain.SKU {
	status := domain.SKUStatus(m.Status)
	if status == "" {
		status = domain.StatusDraft
	}
	return domain.SKU{
		NDC:          m.NDC,
		Name:         m.Name,
		Manufacturer: m.Manufacturer,
		DosageForm:   m.DosageForm,
		Strength:     m.Strength,
		PackageSize:  m.PackageSize,
		GTIN:         m.GTIN,
		ImageURL:     m.ImageURL,
		Status:       status,
		CreatedAt:    m.CreatedAt,
		LastModified: m.LastModified,
		CreatedBy:    m.CreatedBy,
		ReviewedBy:   m.ReviewedBy,
	}
}

func revisionToModel(r domain.Revision) (RevisionModel, error) {
	changes, err := json.Marshal(r.Changes)
	if err != nil {
		return RevisionModel{}, fmt.Errorf("marshal changes: %w", err)
	}
	snapshot, err := json.Marshal(r.Snapshot)
	if err != nil {
		return RevisionModel{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	return RevisionModel{
		ID:        r.ID,
		NDC:       r.NDC,
		Source:    string(r.Source),
		Actor:     r.Actor,
		Changes:   changes,
		Snapshot:  snapshot,
		CreatedAt: r.CreatedAt,
	}, nil
}

func revisionFromModel(m RevisionModel) domain.Revision {
	var changes []domain.FieldChange
	if len(m.Changes) > 0 {
		_ = json.Unmarshal(m.Changes, &changes)
	}
	var snapshot domain.SKU
	if len(m.Snapshot) > 0 {
		_ = json.Unmarshal(m.Snapshot, &snapshot)
	}
	return domain.Revision{
		ID:        m.ID,
		NDC:       m.NDC,
		Source:    domain.ChangeSource(m.Source),
		Actor:     m.Actor,
		Changes:   changes,
		Snapshot:  snapshot,
		CreatedAt: m.CreatedAt,
	}
}
