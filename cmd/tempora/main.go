package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tempora-app/tempora/internal/app"
	"github.com/tempora-app/tempora/internal/budget"
	"github.com/tempora-app/tempora/internal/platform/cache"
	"github.com/tempora-app/tempora/internal/platform/db"
	"github.com/tempora-app/tempora/internal/security"
	"github.com/tempora-app/tempora/internal/teams"
	"github.com/tempora-app/tempora/internal/timesheet"
	"github.com/tempora-app/tempora/internal/tracking"
	"github.com/tempora-app/tempora/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	resolver := security.NewResolver(security.NewRegistry())
	guard := security.Middleware{Resolver: resolver, Logger: logger}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, logger)
	authenticator := users.NewAuthenticator(usersService, logger)

	teamsRepo := teams.NewRepository(dbpool)
	teamsService := teams.NewService(teamsRepo, logger)

	trackingRepo := tracking.NewRepository(dbpool)
	trackingService := tracking.NewService(trackingRepo, resolver)

	budgetCache := budget.NewCache(redisClient, cfg.StatisticTTL)
	timesheetRepo := timesheet.NewRepository(dbpool)
	budgetService := budget.NewService(timesheetRepo, budgetCache)
	timesheetService := timesheet.NewService(timesheetRepo, trackingRepo, budgetService, logger)

	go func() {
		if err := budgetCache.ListenForInvalidation(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("cache invalidation listener", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Authenticator:    authenticator,
		TrackingHandler:  tracking.NewHandler(logger, trackingService, guard),
		TimesheetHandler: timesheet.NewHandler(logger, timesheetService, guard),
		BudgetHandler:    budget.NewHandler(logger, budgetService, trackingService, guard),
		UsersHandler:     users.NewHandler(logger, usersService, guard),
		TeamsHandler:     teams.NewHandler(logger, teamsService, guard),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
