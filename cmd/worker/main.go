package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/distriflow/distriflow/internal/app"
	"github.com/distriflow/distriflow/internal/deliveries"
	jobmetrics "github.com/distriflow/distriflow/internal/jobs"
	"github.com/distriflow/distriflow/internal/notify"
	"github.com/distriflow/distriflow/internal/observability"
	"github.com/distriflow/distriflow/internal/orders"
	"github.com/distriflow/distriflow/internal/platform/cache"
	"github.com/distriflow/distriflow/internal/platform/db"
	"github.com/distriflow/distriflow/internal/poll"
	"github.com/distriflow/distriflow/internal/ruteros"
	"github.com/distriflow/distriflow/internal/shared"
	"github.com/distriflow/distriflow/jobs"
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
		logger.Error("connect postgres", slog.Any("error", err))
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

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)

	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(orderRepo, cfg.TaxRate)

	snapshots := ruteros.NewSnapshotStore(redisClient)
	deliveryRepo := deliveries.NewRepository(pool)
	ruteroRepo := ruteros.NewRepository(pool)
	// The worker never enqueues cascades itself, so no job client here.
	ruteroService := ruteros.NewService(logger, ruteroRepo, deliveryRepo, snapshots, nil, audit)

	webhook := notify.NewWebhook(logger, cfg.WebhookURL)
	tracker := jobmetrics.NewMetrics(metrics.Registerer())
	cascade := jobs.NewCascadeProcessor(logger, orderService, ruteroService, webhook, metrics, tracker)
	sweep := jobs.NewSweepProcessor(logger, ruteroRepo, deliveryRepo, snapshots, metrics, tracker)

	refresher := poll.NewScheduler(logger, nil, cfg.PollInterval, func(ctx context.Context) error {
		return sweep.Handle(ctx, nil)
	})
	refresher.Start(ctx)
	defer refresher.Stop()

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrderCascade, Handler: cascade.Handle},
			{Type: jobs.TaskReconcileSweep, Handler: sweep.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SweepSchedule, Task: jobs.NewReconcileSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
