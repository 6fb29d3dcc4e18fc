package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rca-copilot/internal/agents"
	"rca-copilot/internal/config"
	"rca-copilot/internal/history"
	"rca-copilot/internal/queue"
	"rca-copilot/internal/reports"
	"rca-copilot/internal/store"
	"rca-copilot/internal/telemetry"
	workerproc "rca-copilot/internal/worker"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	pingCtx, cancelPing := context.WithTimeout(ctx, 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	if project, err := client.Get(pingCtx, cfg.ProjectKey).Result(); err == nil {
		logger.Info("joined deployment", "project", project)
	}

	st := store.New(client, cfg.ResultPrefix, cfg.ResultTTL)
	q := queue.New(client, cfg.QueueKey)

	master, err := agents.NewMasterFromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("init analysis engine: %v", err)
	}

	processor := workerproc.New(cfg, q, st, master, logger)

	if cfg.HistoryDSN != "" {
		h, err := history.New(ctx, cfg.HistoryDSN)
		if err != nil {
			log.Fatalf("connect history store: %v", err)
		}
		defer h.Close()
		if err := h.Init(ctx); err != nil {
			log.Fatalf("init history store: %v", err)
		}
		processor.SetHistory(h)
	}

	archiver, err := reports.NewFromConfig(ctx, cfg)
	if err != nil {
		log.Fatalf("init report archiver: %v", err)
	}
	processor.SetReportArchiver(archiver)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	processor.Run(ctx)
}
