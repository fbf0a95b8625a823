package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"skucatalog/internal/util"
	"skucatalog/pkg/diff"
	"skucatalog/pkg/domain"
	"skucatalog/pkg/queue"
	"skucatalog/pkg/storage"
	"skucatalog/pkg/store"
)

var (
	ErrNotFound = errors.New("sku not found")
	ErrExists   = errors.New("sku already exists")
)

// JobEnqueuer submits extraction jobs for uploaded packaging images.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, skuID, imageKey string) (queue.JobStatus, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	Store          store.Store
	Objects        storage.ImageStore
	Queue          JobEnqueuer
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	RedisAddr      string
	RedisPassword  string
	ExtractStream  string
	AllowedExts    []string
}

// App is the catalog service core wiring persistence, object storage and the
// extraction queue.
type App struct {
	store         store.Store
	objects       storage.ImageStore
	jobs          JobEnqueuer
	allowedExts   map[string]bool
	presignExpiry time.Duration
}

// New constructs the application with database-backed record storage,
// MinIO-backed image storage and a Redis Streams extraction queue.
func New(cfg Config) (*App, error) {
	objStore := cfg.Objects
	if objStore == nil {
		var err error
		objStore, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
	}
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	jobs := cfg.Queue
	if jobs == nil {
		q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.ExtractStream,
			Group:    "extractor",
		})
		if err != nil {
			return nil, fmt.Errorf("init extraction queue: %w", err)
		}
		jobs = q
	}

	allowed := make(map[string]bool)
	exts := cfg.AllowedExts
	if len(exts) == 0 {
		exts = []string{".jpg", ".jpeg", ".png", ".webp"}
	}
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}

	return &App{
		store:         dataStore,
		objects:       objStore,
		jobs:          jobs,
		allowedExts:   allowed,
		presignExpiry: 15 * time.Minute,
	}, nil
}

// CreateSKU registers a new record. The NDC must not already be in the
// catalog.
func (a *App) CreateSKU(sku domain.SKU, actor string) (domain.SKU, error) {
	sku.NDC = strings.TrimSpace(sku.NDC)
	if sku.NDC == "" {
		return domain.SKU{}, errors.New("ndc required")
	}
	if strings.TrimSpace(sku.Name) == "" {
		return domain.SKU{}, errors.New("name required")
	}
	_, exists, err := a.store.GetSKU(sku.NDC)
	if err != nil {
		return domain.SKU{}, fmt.Errorf("check existing: %w", err)
	}
	if exists {
		return domain.SKU{}, ErrExists
	}
	if sku.Status == "" {
		sku.Status = domain.StatusDraft
	}
	now := time.Now().UTC()
	sku.CreatedAt = now
	sku.LastModified = now
	if sku.CreatedBy == "" {
		sku.CreatedBy = actor
	}
	if err := a.store.CreateSKU(sku); err != nil {
		return domain.SKU{}, fmt.Errorf("create sku: %w", err)
	}
	a.recordRevision(sku.NDC, actor, diff.Fields(domain.SKU{}, sku), sku)
	return sku, nil
}

// GetSKU retrieves a record by code.
func (a *App) GetSKU(code string) (domain.SKU, bool, error) {
	return a.store.GetSKU(code)
}

// SearchSKUs returns one page of matches plus the total match count.
func (a *App) SearchSKUs(filter store.SearchFilter) ([]domain.SKU, int, error) {
	return a.store.SearchSKUs(filter)
}

// UpdateSKU replaces a record's mutable fields. Code, creation audit fields
// and image reference survive the replace.
func (a *App) UpdateSKU(code string, incoming domain.SKU, actor string) (domain.SKU, error) {
	old, ok, err := a.store.GetSKU(code)
	if err != nil {
		return domain.SKU{}, fmt.Errorf("lookup sku: %w", err)
	}
	if !ok {
		return domain.SKU{}, ErrNotFound
	}
	incoming.NDC = old.NDC
	incoming.CreatedAt = old.CreatedAt
	incoming.CreatedBy = old.CreatedBy
	if incoming.ImageURL == "" {
		incoming.ImageURL = old.ImageURL
	}
	if incoming.Status == "" {
		incoming.Status = old.Status
	}
	incoming.LastModified = time.Now().UTC()
	if err := a.store.SaveSKU(incoming); err != nil {
		return domain.SKU{}, fmt.Errorf("save sku: %w", err)
	}
	a.recordRevision(code, actor, diff.Fields(old, incoming), incoming)
	return incoming, nil
}

// PatchSKU applies a partial update; nil patch fields are left unchanged.
func (a *App) PatchSKU(code string, patch domain.SKUPatch, actor string) (domain.SKU, error) {
	old, ok, err := a.store.GetSKU(code)
	if err != nil {
		return domain.SKU{}, fmt.Errorf("lookup sku: %w", err)
	}
	if !ok {
		return domain.SKU{}, ErrNotFound
	}
	updated := patch.Apply(old)
	updated.NDC = old.NDC
	updated.LastModified = time.Now().UTC()
	if err := a.store.SaveSKU(updated); err != nil {
		return domain.SKU{}, fmt.Errorf("save sku: %w", err)
	}
	a.recordRevision(code, actor, diff.Fields(old, updated), updated)
	return updated, nil
}

// DeleteSKU marks a record DELETED. Records are never physically removed.
func (a *App) DeleteSKU(code, actor string) error {
	old, ok, err := a.store.GetSKU(code)
	if err != nil {
		return fmt.Errorf("lookup sku: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if old.Status == domain.StatusDeleted {
		return nil
	}
	updated := old
	updated.Status = domain.StatusDeleted
	updated.LastModified = time.Now().UTC()
	if err := a.store.SaveSKU(updated); err != nil {
		return fmt.Errorf("save sku: %w", err)
	}
	a.recordRevision(code, actor, nil, updated)
	return nil
}

// FindDuplicates groups records sharing a product name.
func (a *App) FindDuplicates() ([]domain.DuplicateGroup, error) {
	return a.store.FindDuplicates()
}

// UploadImage stores a packaging image, records it on the SKU and enqueues an
// extraction job.
func (a *App) UploadImage(ctx context.Context, code, filename string, r io.Reader, size int64) (domain.SKU, queue.JobStatus, error) {
	if filename == "" {
		return domain.SKU{}, queue.JobStatus{}, errors.New("filename required")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !a.allowedExts[ext] {
		return domain.SKU{}, queue.JobStatus{}, fmt.Errorf("unsupported file type: %s", ext)
	}
	old, ok, err := a.store.GetSKU(code)
	if err != nil {
		return domain.SKU{}, queue.JobStatus{}, fmt.Errorf("lookup sku: %w", err)
	}
	if !ok {
		return domain.SKU{}, queue.JobStatus{}, ErrNotFound
	}

	key := storage.ImageKey(code, filename)
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.SKU{}, queue.JobStatus{}, fmt.Errorf("save image: %w", err)
	}

	updated := old
	updated.ImageURL = key
	updated.LastModified = time.Now().UTC()
	if err := a.store.SaveSKU(updated); err != nil {
		_ = a.objects.Delete(ctx, key)
		return domain.SKU{}, queue.JobStatus{}, fmt.Errorf("save sku: %w", err)
	}
	job, err := a.jobs.Enqueue(ctx, code, key)
	if err != nil {
		return domain.SKU{}, queue.JobStatus{}, fmt.Errorf("enqueue extraction: %w", err)
	}
	return updated, job, nil
}

// ImageURL returns a presigned download URL for the record's packaging image.
func (a *App) ImageURL(ctx context.Context, code string) (string, error) {
	sku, ok, err := a.store.GetSKU(code)
	if err != nil {
		return "", fmt.Errorf("lookup sku: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	if strings.TrimSpace(sku.ImageURL) == "" {
		return "", errors.New("no image for sku")
	}
	url, err := a.objects.PresignGet(ctx, sku.ImageURL, a.presignExpiry)
	if err != nil {
		return "", fmt.Errorf("presign image: %w", err)
	}
	return url, nil
}

// ListRevisions returns the mutation history for a record, newest first.
func (a *App) ListRevisions(code string, limit int) ([]domain.Revision, error) {
	_, ok, err := a.store.GetSKU(code)
	if err != nil {
		return nil, fmt.Errorf("lookup sku: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return a.store.ListRevisions(code, limit)
}

// recordRevision is best-effort; history never blocks the mutation itself.
func (a *App) recordRevision(code, actor string, changes []domain.FieldChange, snapshot domain.SKU) {
	rev := domain.Revision{
		ID:        util.NewID(),
		NDC:       code,
		Source:    domain.SourceAPI,
		Actor:     actor,
		Changes:   changes,
		Snapshot:  snapshot,
		CreatedAt: time.Now().UTC(),
	}
	_ = a.store.AppendRevision(rev)
}
