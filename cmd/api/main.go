package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docchat/internal/api"
	"github.com/nikhilbhutani/docchat/internal/app"
	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/database"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/queue"
	"github.com/nikhilbhutani/docchat/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	deps := api.Deps{Config: cfg, Logger: logger}

	// Database (optional): extraction records.
	var records document.RecordStore
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without extraction records", "error", err)
		} else {
			defer db.Close()
			if err := database.RunMigrations(ctx, db); err != nil {
				slog.Warn("migrations failed", "error", err)
			}
			extractions := store.NewExtractions(db)
			records = extractions
			deps.Extractions = extractions
			deps.DB = db
		}
	}

	// Redis (optional): content cache and async jobs.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	var contentCache document.ContentCache
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache or async jobs", "error", err)
	} else {
		c := cache.NewCache(rdb, cfg.Redis.CacheTTL, cfg.Redis.JobTTL)
		contentCache = c
		deps.Redis = c
		deps.Jobs = c

		qc := queue.NewClient(cfg.Redis, cfg.Extraction.Timeout)
		defer qc.Close()
		deps.Queue = qc
	}

	gw := llm.NewGateway(cfg.LLM, logger)
	pipeline, err := app.NewPipeline(cfg, gw, nil, logger)
	if err != nil {
		slog.Error("failed to build extraction pipeline", "error", err)
		os.Exit(1)
	}
	for engine, ok := range pipeline.Extractor.Registry().Status() {
		slog.Info("extraction engine", "engine", engine, "available", ok)
	}

	docs := document.NewService(pipeline.Extractor, contentCache, records, logger)
	summarizer := app.NewSummarizer(cfg.Chat, gw, logger)

	deps.Gateway = gw
	deps.Docs = docs
	deps.Engines = pipeline.Extractor.Registry()
	deps.Summarizer = summarizer
	deps.Chat = app.NewChat(cfg.Chat, gw, docs, summarizer, logger)
	if pipeline.Recognizer != nil {
		deps.OCR = pipeline.Recognizer
	}

	router := api.NewRouter(deps)
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Extraction.Timeout + time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
