package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"rca-copilot/internal/agents"
	"rca-copilot/internal/api"
	"rca-copilot/internal/config"
	"rca-copilot/internal/history"
	"rca-copilot/internal/queue"
	"rca-copilot/internal/ratelimit"
	"rca-copilot/internal/store"
)

func main() {
	cfg := config.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
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
	// Marker the worker reads to confirm it joined the same deployment.
	_ = client.Set(pingCtx, cfg.ProjectKey, cfg.ServiceName, 0).Err()

	st := store.New(client, cfg.ResultPrefix, cfg.ResultTTL)
	q := queue.New(client, cfg.QueueKey)
	limiter := ratelimit.NewTokenBucket(client, cfg.RateLimitCapacity, cfg.RateLimitRefill, time.Hour)

	server := api.New(cfg, st, q, limiter, logger)

	// The async pipeline works without an analysis engine; only the
	// synchronous alert endpoint needs one here.
	if master, err := agents.NewMasterFromConfig(cfg, logger); err != nil {
		logger.Warn("analysis engine unavailable, POST /rca disabled", "error", err)
	} else {
		server.SetAnalyzer(master)
	}

	if cfg.HistoryDSN != "" {
		h, err := history.New(ctx, cfg.HistoryDSN)
		if err != nil {
			log.Fatalf("connect history store: %v", err)
		}
		defer h.Close()
		if err := h.Init(ctx); err != nil {
			log.Fatalf("init history store: %v", err)
		}
		server.SetHistory(h)
	}

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(server.Router())

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	log.Printf("api listening on :%s", cfg.HTTPPort)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}
