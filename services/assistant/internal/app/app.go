package app

import (
	"context"
	"fmt"

	"skucatalog/pkg/domain"
	"skucatalog/services/assistant/internal/catalogclient"
	"skucatalog/services/assistant/internal/contextstore"
)

// Catalog is the record-store surface the assistant depends on.
type Catalog interface {
	Get(ctx context.Context, code string) (domain.SKU, bool, error)
	List(ctx context.Context, filter catalogclient.ListFilter) ([]domain.SKU, int, error)
	Create(ctx context.Context, sku domain.SKU) (domain.SKU, error)
	Update(ctx context.Context, code string, sku domain.SKU) (domain.SKU, error)
	PartialUpdate(ctx context.Context, code string, patch domain.SKUPatch) (domain.SKU, error)
	Delete(ctx context.Context, code string) error
	FindDuplicates(ctx context.Context) ([]domain.DuplicateGroup, error)
}

// Config holds runtime configuration for the assistant core.
type Config struct {
	Catalog       Catalog
	Contexts      *contextstore.Store
	CatalogURL    string
	RedisAddr     string
	RedisPassword string
	ContextKey    string
}

// App wires the conversational core: resolver, reconciliation engine and
// dialogue controller sharing one session context.
type App struct {
	catalog  Catalog
	contexts *contextstore.Store
	resolver *Resolver
	engine   *Engine
}

// New constructs the assistant core.
func New(cfg Config) (*App, error) {
	catalog := cfg.Catalog
	if catalog == nil {
		if cfg.CatalogURL == "" {
			return nil, fmt.Errorf("catalog URL required")
		}
		catalog = catalogclient.NewClient(cfg.CatalogURL)
	}
	contexts := cfg.Contexts
	if contexts == nil {
		contexts = contextstore.New(contextstore.Config{
			RedisAddr:     cfg.RedisAddr,
			RedisPassword: cfg.RedisPassword,
			Key:           cfg.ContextKey,
		})
	}
	return &App{
		catalog:  catalog,
		contexts: contexts,
		resolver: NewResolver(catalog),
		engine:   NewEngine(catalog, contexts),
	}, nil
}

// Engine exposes the reconciliation engine.
func (a *App) Engine() *Engine {
	return a.engine
}

// Contexts exposes the session context store.
func (a *App) Contexts() *contextstore.Store {
	return a.contexts
}

// Stats summarizes the current session.
func (a *App) Stats() domain.ContextStats {
	return a.contexts.Stats(len(a.engine.Pending()))
}

// ResetContext discards the session context and the notification list
// together.
func (a *App) ResetContext() domain.SessionContext {
	return a.engine.Reset()
}
