package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"skucatalog/pkg/diff"
	"skucatalog/pkg/domain"
	"skucatalog/services/assistant/internal/contextstore"
)

var (
	ErrNotificationNotFound = errors.New("notification not found")
	ErrInvalidAction        = errors.New("invalid action")
)

// Notification actions accepted by HandleNotification.
const (
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// datasetFetchLimit bounds concurrent catalog lookups during a dataset sync.
const datasetFetchLimit = 8

// ValidationResult is the outcome of a chat-derived edit check.
type ValidationResult struct {
	HasChanges           bool                 `json:"hasChanges"`
	Changes              []domain.FieldChange `json:"changes,omitempty"`
	Message              string               `json:"message"`
	ConfirmationRequired bool                 `json:"confirmationRequired"`
	ConfirmationType     string               `json:"confirmationType,omitempty"`
}

// Engine produces pending notifications from the three change sources and
// applies approved ones through the catalog. Notifications are kept newest
// first and never expire; handled ones stay in history with actionRequired
// cleared.
type Engine struct {
	catalog  Catalog
	contexts *contextstore.Store

	mu            sync.Mutex
	notifications []domain.ChangeNotification
}

// NewEngine constructs the reconciliation engine.
func NewEngine(catalog Catalog, contexts *contextstore.Store) *Engine {
	return &Engine{catalog: catalog, contexts: contexts}
}

// DetectDatasetChanges reconciles a batch of incoming records against the
// session's tracked codes. Catalog snapshots are fetched with bounded
// concurrency; each non-empty diff becomes one dataset_change notification.
func (e *Engine) DetectDatasetChanges(ctx context.Context, incoming []domain.SKU) ([]domain.ChangeNotification, error) {
	byCode := make(map[string]domain.SKU, len(incoming))
	for _, sku := range incoming {
		if sku.NDC != "" {
			byCode[sku.NDC] = sku
		}
	}

	tracked := e.contexts.TrackedCodes()
	snapshots := make([]domain.SKU, len(tracked))
	found := make([]bool, len(tracked))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(datasetFetchLimit)
	for i, code := range tracked {
		if _, relevant := byCode[code]; !relevant {
			continue
		}
		i, code := i, code
		g.Go(func() error {
			sku, ok, err := e.catalog.Get(gctx, code)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", code, err)
			}
			snapshots[i] = sku
			found[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var created []domain.ChangeNotification
	seen := make(map[string]bool)
	for i, code := range tracked {
		if !found[i] {
			continue
		}
		incomingSKU, ok := byCode[code]
		if !ok {
			continue
		}
		if n := e.propose(domain.NotificationDataset, domain.SourceDataset, code, snapshots[i], incomingSKU, nil); n != nil {
			created = append(created, *n)
			seen[code] = true
		}
	}
	// diff records created this session against the batch directly, unless
	// the catalog pass already proposed a change for the same code
	for _, sku := range e.contexts.CreatedSKUs() {
		if seen[sku.NDC] {
			continue
		}
		incomingSKU, ok := byCode[sku.NDC]
		if !ok {
			continue
		}
		if n := e.propose(domain.NotificationDataset, domain.SourceDataset, sku.NDC, sku, incomingSKU, nil); n != nil {
			created = append(created, *n)
		}
	}
	return created, nil
}

// DetectOCRChanges reconciles one OCR extraction against the catalog. Codes
// the session never mentioned or created are dropped without a notification;
// a failed catalog fetch is logged and also yields none.
func (e *Engine) DetectOCRChanges(ctx context.Context, skuData domain.SKU, confidence float64) *domain.ChangeNotification {
	code := skuData.NDC
	if code == "" || !e.contexts.IsRelevant(code) {
		return nil
	}
	current, ok, err := e.catalog.Get(ctx, code)
	if err != nil {
		slog.Warn("ocr reconciliation fetch failed", "skuId", code, "err", err)
		return nil
	}
	if !ok {
		slog.Info("ocr reconciliation target missing in catalog", "skuId", code)
		return nil
	}
	return e.propose(domain.NotificationOCR, domain.SourceOCR, code, current, skuData, &confidence)
}

// ValidateSKUChanges runs the chat-derived edit check. No changes is a
// neutral result, not an error; a real difference asks for explicit
// confirmation before anything is written.
func (e *Engine) ValidateSKUChanges(original, updated domain.SKU) ValidationResult {
	changes := diff.Fields(original, updated)
	if len(changes) == 0 {
		return ValidationResult{
			HasChanges: false,
			Message:    "No changes detected.",
		}
	}
	return ValidationResult{
		HasChanges:           true,
		Changes:              changes,
		Message:              fmt.Sprintf("%d field(s) would change. Please confirm the update.", len(changes)),
		ConfirmationRequired: true,
		ConfirmationType:     "update",
	}
}

// propose diffs two snapshots and prepends a notification when they differ.
// An empty diff never creates one. Equivalent pending notifications are NOT
// deduplicated; if the same external change is reported twice before it is
// acted on, two equivalent entries coexist.
func (e *Engine) propose(typ domain.NotificationType, source domain.ChangeSource, code string, old, updated domain.SKU, confidence *float64) *domain.ChangeNotification {
	changes := diff.Fields(old, updated)
	if len(changes) == 0 {
		return nil
	}
	n := domain.ChangeNotification{
		ID:             uuid.NewString(),
		Type:           typ,
		SKUID:          code,
		OldData:        old,
		NewData:        updated,
		Changes:        changes,
		Source:         source,
		Timestamp:      time.Now().UTC(),
		Confidence:     confidence,
		Message:        notificationMessage(source, code, len(changes), confidence),
		ActionRequired: true,
	}
	e.mu.Lock()
	e.notifications = append([]domain.ChangeNotification{n}, e.notifications...)
	e.mu.Unlock()
	return &n
}

func notificationMessage(source domain.ChangeSource, code string, changeCount int, confidence *float64) string {
	switch source {
	case domain.SourceOCR:
		return fmt.Sprintf("OCR extraction (confidence %.0f%%) proposes %d field change(s) for SKU %s", *confidence*100, changeCount, code)
	case domain.SourceDataset:
		return fmt.Sprintf("Dataset sync proposes %d field change(s) for SKU %s", changeCount, code)
	default:
		return fmt.Sprintf("%d field change(s) proposed for SKU %s", changeCount, code)
	}
}

// HandleNotification approves or rejects one pending notification. Any
// outcome clears actionRequired and keeps the entry in history. Approval
// writes the proposed snapshot through the catalog and records the result in
// the modified set; a failed write is logged, not surfaced, and does not
// resurrect the notification.
func (e *Engine) HandleNotification(ctx context.Context, id, action string) (domain.ChangeNotification, error) {
	if action != ActionApproved && action != ActionRejected {
		return domain.ChangeNotification{}, ErrInvalidAction
	}

	e.mu.Lock()
	idx := -1
	for i := range e.notifications {
		if e.notifications[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		e.mu.Unlock()
		return domain.ChangeNotification{}, ErrNotificationNotFound
	}
	e.notifications[idx].ActionRequired = false
	n := e.notifications[idx]
	e.mu.Unlock()

	if action == ActionApproved {
		updated, err := e.catalog.Update(ctx, n.SKUID, n.NewData)
		if err != nil {
			slog.Warn("apply approved change failed", "skuId", n.SKUID, "err", err)
		} else {
			e.contexts.TrackModified(updated)
		}
	}
	return n, nil
}

// Notifications returns the full history, newest first.
func (e *Engine) Notifications() []domain.ChangeNotification {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.ChangeNotification, len(e.notifications))
	copy(out, e.notifications)
	return out
}

// Pending returns notifications still awaiting action, newest first.
func (e *Engine) Pending() []domain.ChangeNotification {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.ChangeNotification
	for _, n := range e.notifications {
		if n.ActionRequired {
			out = append(out, n)
		}
	}
	return out
}

// ClearNotifications drops the whole notification list, history included.
func (e *Engine) ClearNotifications() {
	e.mu.Lock()
	e.notifications = nil
	e.mu.Unlock()
}

// Reset discards the session context and the notification list together.
func (e *Engine) Reset() domain.SessionContext {
	e.ClearNotifications()
	return e.contexts.Reset()
}
