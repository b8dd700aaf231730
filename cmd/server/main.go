package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rotamed/scheduler/internal/api"
	"github.com/rotamed/scheduler/internal/clock"
	"github.com/rotamed/scheduler/internal/draft"
	"github.com/rotamed/scheduler/internal/job"
	"github.com/rotamed/scheduler/internal/kv"
	"github.com/rotamed/scheduler/internal/logger"
	"github.com/rotamed/scheduler/internal/metrics"
	"github.com/rotamed/scheduler/internal/notify"
	"github.com/rotamed/scheduler/internal/preload"
	"github.com/rotamed/scheduler/internal/repository/postgres"
	"github.com/rotamed/scheduler/internal/resolver"
	"github.com/rotamed/scheduler/internal/validation"
)

func main() {
	log, err := logger.NewLogger(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	databaseURL := envOr("DATABASE_URL", "postgres://localhost:5432/scheduler?sslmode=disable")
	redisAddr := envOr("REDIS_ADDR", "127.0.0.1:6379")
	serverAddr := envOr("SERVER_ADDR", ":8080")

	db, err := postgres.New(databaseURL)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := postgres.ApplySchema(context.Background(), db.DB); err != nil {
		log.Fatalw("failed to apply schema", "error", err)
	}

	kvStore := kv.NewRedis(redisAddr)
	defer kvStore.Close()

	scheduler, err := job.NewScheduler(redisAddr)
	if err != nil {
		log.Fatalw("failed to connect job scheduler", "error", err)
	}
	defer scheduler.Close()

	registry := metrics.NewRegistry()
	clk := clock.UTC{}
	sink := notify.NewAsynqSink(scheduler.Client())
	validator := validation.NewACGMEChecker(db)

	preloadCfg := preload.Config{
		SkipFacultyPostCall: envOr("PRELOAD_SKIP_FACULTY_POST_CALL", "") == "true",
	}
	preloads := preload.NewService(db, log, preloadCfg)
	drafts := draft.NewService(db, clk, validator, sink, registry, log)
	res := resolver.NewResolver(db, clk, sink, registry, log)
	defer resolver.DrainCache()

	// Worker server consuming background tasks.
	handlers := job.NewHandlers(db, preloads, drafts, res, kvStore, registry, log)
	mux := asynq.NewServeMux()
	handlers.Register(mux)
	worker := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{Concurrency: envInt("WORKER_CONCURRENCY", 4)},
	)
	go func() {
		if err := worker.Run(mux); err != nil {
			log.Fatalw("worker server failed", "error", err)
		}
	}()

	// Periodic jobs (nightly batch auto-resolve).
	periodic, err := scheduler.NewPeriodicScheduler()
	if err != nil {
		log.Fatalw("failed to build periodic scheduler", "error", err)
	}
	go func() {
		if err := periodic.Run(); err != nil {
			log.Errorw("periodic scheduler stopped", "error", err)
		}
	}()

	router := api.NewRouter(db, drafts, res, scheduler, kvStore)
	go func() {
		log.Infow("starting server", "addr", serverAddr)
		if err := router.Echo().Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := router.Echo().Shutdown(ctx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}
	worker.Shutdown()
	periodic.Shutdown()
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
