package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"skucatalog/internal/util"
	"skucatalog/services/extractor/internal/app"
	"skucatalog/services/extractor/internal/config"
	"skucatalog/services/extractor/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		ExtractStream: cfg.ExtractStream,
		Concurrency:   cfg.Concurrency,
		CatalogURL:    cfg.CatalogURL,
		AssistantURL:  cfg.AssistantURL,
		OCRServiceURL: cfg.OCRServiceURL,
		InternalToken: cfg.InternalToken,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	appCore.Start(ctx)

	httpServer := server.New(server.Config{
		App:           appCore,
		InternalToken: cfg.InternalToken,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("extractor server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
