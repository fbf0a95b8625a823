package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"skucatalog/internal/ratelimit"
	"skucatalog/internal/util"
	"skucatalog/services/assistant/internal/app"
	"skucatalog/services/assistant/internal/config"
	"skucatalog/services/assistant/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	appCore, err := app.New(app.Config{
		CatalogURL:    cfg.CatalogURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		ContextKey:    cfg.ContextKey,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	chatLimiter, err := ratelimit.NewRedisFixedWindowLimiter(
		cfg.RedisAddr, cfg.RedisPassword, "skucatalog:ratelimit:chat",
		cfg.ChatRateLimitPerMinute, time.Minute,
	)
	if err != nil {
		log.Fatalf("failed to init chat rate limiter: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer := server.New(server.Config{
		App:            appCore,
		InternalToken:  cfg.InternalToken,
		ChatLimiter:    chatLimiter,
		TrustedProxies: trustedProxies,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("assistant server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
