package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"skucatalog/pkg/queue"
)

// JobSource is the queue side the worker consumes from.
type JobSource interface {
	Start(ctx context.Context, concurrency int, handler func(context.Context, queue.JobStatus) error)
	GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error)
}

// Config holds runtime configuration.
type Config struct {
	Queue         JobSource
	RedisAddr     string
	RedisPassword string
	ExtractStream string
	Concurrency   int
	CatalogURL    string
	AssistantURL  string
	OCRServiceURL string
	InternalToken string
}

// App consumes extraction jobs, runs them through the OCR engine and reports
// results to the assistant.
type App struct {
	queue       JobSource
	catalog     *catalogClient
	ocr         *ocrClient
	assistant   *assistantClient
	concurrency int
}

// New constructs the extraction worker.
func New(cfg Config) (*App, error) {
	if cfg.CatalogURL == "" {
		return nil, fmt.Errorf("catalog URL required")
	}
	if cfg.AssistantURL == "" {
		return nil, fmt.Errorf("assistant URL required")
	}
	if cfg.OCRServiceURL == "" {
		return nil, fmt.Errorf("ocr service URL required")
	}
	if cfg.InternalToken == "" {
		return nil, fmt.Errorf("internal token required")
	}
	src := cfg.Queue
	if src == nil {
		q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   cfg.ExtractStream,
			Group:    "extractor",
		})
		if err != nil {
			return nil, fmt.Errorf("init extraction queue: %w", err)
		}
		src = q
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	return &App{
		queue:       src,
		catalog:     newCatalogClient(cfg.CatalogURL),
		ocr:         newOCRClient(cfg.OCRServiceURL),
		assistant:   newAssistantClient(cfg.AssistantURL, cfg.InternalToken),
		concurrency: concurrency,
	}, nil
}

// Start begins consuming jobs until ctx is canceled.
func (a *App) Start(ctx context.Context) {
	a.queue.Start(ctx, a.concurrency, a.ProcessJob)
}

// GetJob returns queue-side status for one job.
func (a *App) GetJob(ctx context.Context, jobID string) (queue.JobStatus, bool, error) {
	return a.queue.GetJob(ctx, jobID)
}

// ProcessJob runs one extraction end to end: fetch the image, extract fields,
// report the result. Errors bubble to the queue for retry.
func (a *App) ProcessJob(ctx context.Context, job queue.JobStatus) error {
	log := slog.With("jobId", job.ID, "skuId", job.SKUID)

	url, err := a.catalog.ImageURL(ctx, job.SKUID)
	if err != nil {
		log.Warn("image url lookup failed", "err", err)
		return err
	}
	image, err := a.catalog.FetchImage(ctx, url)
	if err != nil {
		log.Warn("image download failed", "err", err)
		return err
	}
	if len(image) == 0 {
		return errors.New("empty image")
	}

	result, err := a.ocr.Extract(ctx, image)
	if err != nil {
		log.Warn("ocr extraction failed", "err", err)
		return err
	}
	if !result.Success {
		return fmt.Errorf("ocr engine reported failure")
	}

	skuData := result.SKUData
	if strings.TrimSpace(skuData.NDC) == "" {
		// nothing to reconcile without a code; done, not failed
		log.Info("ocr result carried no code, dropping")
		return nil
	}
	if err := a.assistant.ReportOCR(ctx, skuData, result.Confidence); err != nil {
		log.Warn("ocr report failed", "err", err)
		return err
	}
	log.Info("extraction reported", "confidence", result.Confidence)
	return nil
}
