package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/tempora-app/tempora/internal/app"
	"github.com/tempora-app/tempora/internal/budget"
	"github.com/tempora-app/tempora/internal/platform/cache"
	"github.com/tempora-app/tempora/internal/platform/db"
	"github.com/tempora-app/tempora/internal/timesheet"
	"github.com/tempora-app/tempora/internal/tracking"
	"github.com/tempora-app/tempora/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	trackingRepo := tracking.NewRepository(dbpool)
	timesheetRepo := timesheet.NewRepository(dbpool)
	budgetCache := budget.NewCache(redisClient, cfg.StatisticTTL)
	budgetService := budget.NewService(timesheetRepo, budgetCache)
	timesheetService := timesheet.NewService(timesheetRepo, trackingRepo, budgetService, logger)

	warmupJob := jobs.NewBudgetWarmupJob(budgetService, trackingRepo, logger)
	sweepJob := jobs.NewStopRunningJob(timesheetRepo, timesheetService, logger)

	warmupTask, err := jobs.NewBudgetWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	sweepTask, err := jobs.NewStopRunningTask(24)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskBudgetWarmup, Handler: warmupJob.Handle},
			{Type: jobs.TaskStopRunning, Handler: sweepJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "0 * * * *", Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		if err := budgetCache.ListenForInvalidation(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("cache invalidation listener", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
