package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/vic4or/sistemaMype-sub000/internal/app"
	"github.com/vic4or/sistemaMype-sub000/internal/observability"
	"github.com/vic4or/sistemaMype-sub000/internal/platform/cache"
	"github.com/vic4or/sistemaMype-sub000/internal/platform/db"
	"github.com/vic4or/sistemaMype-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisCache := cache.NewCache(redisClient, cfg.SuggestionCacheTTL).WithLogger(logger)
	planningService := app.NewPlanningService(cfg, pool, redisCache, observability.NewMetrics(), logger)
	planningJob := jobs.NewPlanningRunJob(planningService, redisCache, logger, nil, cfg.HorizonDays)

	cron, err := jobs.ScheduledPlanning(cfg.ScheduleCron)
	if err != nil {
		logger.Error("build planning schedule", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPlanningExecute, Handler: planningJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
