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

	"github.com/hibiken/asynq"

	"github.com/bondtrack/bondtrack/internal/app"
	"github.com/bondtrack/bondtrack/jobs"
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

	services, err := app.OpenServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("open services", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close()

	if err := services.Cache.ListenForInvalidation(ctx); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	redisOpts, err := jobs.RedisOpt(cfg.RedisAddr)
	if err != nil {
		logger.Error("redis options", slog.Any("error", err))
		os.Exit(1)
	}

	ingestJob := jobs.NewIngestJob(services.Ingest, logger)
	bondJob := jobs.NewBondJob(services.Bond, logger)
	quarterlyJob := jobs.NewQuarterlyJob(services.Quarterly, logger)
	warmupJob := jobs.NewCacheWarmupJob(services.Source, nil, logger, services.JobMetrics)

	ingestTask, err := jobs.NewIngestTask()
	if err != nil {
		logger.Error("build ingest task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewCacheWarmupTask()
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}
	bondTask, err := jobs.NewBondTask()
	if err != nil {
		logger.Error("build bond task", slog.Any("error", err))
		os.Exit(1)
	}
	quarterlyTask, err := jobs.NewQuarterlyTask()
	if err != nil {
		logger.Error("build quarterly task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			ingestJob.Handler(),
			bondJob.Handler(),
			quarterlyJob.Handler(),
			warmupJob.Handler(),
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.IngestCron, Task: ingestTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.WarmupCron, Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.BondCron, Task: bondTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.QuarterlyCron, Task: quarterlyTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           services.Metrics.Handler(),
		ReadHeaderTimeout: cfg.AppReadTimeout,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
