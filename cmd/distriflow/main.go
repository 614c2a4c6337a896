package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/distriflow/distriflow/internal/app"
	"github.com/distriflow/distriflow/internal/deliveries"
	"github.com/distriflow/distriflow/internal/masterdata/clients"
	"github.com/distriflow/distriflow/internal/masterdata/zones"
	"github.com/distriflow/distriflow/internal/observability"
	"github.com/distriflow/distriflow/internal/orders"
	"github.com/distriflow/distriflow/internal/platform/cache"
	"github.com/distriflow/distriflow/internal/platform/db"
	"github.com/distriflow/distriflow/internal/ruteros"
	"github.com/distriflow/distriflow/internal/shared"
	"github.com/distriflow/distriflow/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

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

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	audit := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	orderRepo := orders.NewRepository(pool)
	orderService := orders.NewService(orderRepo, cfg.TaxRate)
	orderHandler := orders.NewHandler(logger, orderService, idempotency)

	snapshots := ruteros.NewSnapshotStore(redisClient)
	deliveryRepo := deliveries.NewRepository(pool)
	ruteroRepo := ruteros.NewRepository(pool)
	ruteroService := ruteros.NewService(logger, ruteroRepo, deliveryRepo, snapshots, jobClient, audit)
	ruteroHandler := ruteros.NewHandler(logger, ruteroService)

	deliveryService := deliveries.NewService(deliveryRepo, ruteroService, audit)
	deliveryHandler := deliveries.NewHandler(logger, deliveryService)

	clientRepo := clients.NewRepository(pool)
	clientService := clients.NewService(clientRepo)
	clientHandler := clients.NewHandler(logger, clientService)

	zoneRepo := zones.NewRepository(pool)
	zoneHandler := zones.NewHandler(logger, zoneRepo)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		Pool:            pool,
		OrderHandler:    orderHandler,
		RuteroHandler:   ruteroHandler,
		DeliveryHandler: deliveryHandler,
		ClientHandler:   clientHandler,
		ZoneHandler:     zoneHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
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
