package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docchat/internal/app"
	"github.com/nikhilbhutani/docchat/internal/cache"
	"github.com/nikhilbhutani/docchat/internal/config"
	"github.com/nikhilbhutani/docchat/internal/database"
	"github.com/nikhilbhutani/docchat/internal/document"
	"github.com/nikhilbhutani/docchat/internal/llm"
	"github.com/nikhilbhutani/docchat/internal/queue"
	"github.com/nikhilbhutani/docchat/internal/queue/workers"
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

	ctx := context.Background()

	var records document.RecordStore
	if cfg.Database.URL != "" {
		db, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			slog.Warn("database unavailable, running without extraction records", "error", err)
		} else {
			defer db.Close()
			records = store.NewExtractions(db)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	jobs := cache.NewCache(rdb, cfg.Redis.CacheTTL, cfg.Redis.JobTTL)

	// The gateway is only used when OCR runs through a vision model.
	var gw llm.Gateway
	if cfg.OCR.Engine == "vision" {
		gw = llm.NewGateway(cfg.LLM, logger)
	}
	pipeline, err := app.NewPipeline(cfg, gw, nil, logger)
	if err != nil {
		slog.Error("failed to build extraction pipeline", "error", err)
		os.Exit(1)
	}
	docs := document.NewService(pipeline.Extractor, jobs, records, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
			Logger:      newAsynqLogger(logger),
		},
	)

	registry := queue.NewHandlersRegistry()
	extractWorker := workers.NewExtractWorker(docs, jobs, logger)
	registry.Register(queue.TypeExtractPDF, asynq.HandlerFunc(extractWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
