package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/distriflow/distriflow/internal/deliveries"
	jobmetrics "github.com/distriflow/distriflow/internal/jobs"
	"github.com/distriflow/distriflow/internal/observability"
	"github.com/distriflow/distriflow/internal/ruteros"
)

const sweepConcurrency = 8

// SweepProcessor re-evaluates every en_curso route, refreshes the snapshot
// cache and publishes the reconciliation gauges.
type SweepProcessor struct {
	logger       *slog.Logger
	routeRepo    ruteros.Repository
	deliveryRepo deliveries.Repository
	snapshots    *ruteros.SnapshotStore
	metrics      *observability.Metrics
	tracker      *jobmetrics.Metrics
}

// NewSweepProcessor builds the sweep task handler.
func NewSweepProcessor(
	logger *slog.Logger,
	routeRepo ruteros.Repository,
	deliveryRepo deliveries.Repository,
	snapshots *ruteros.SnapshotStore,
	metrics *observability.Metrics,
	tracker *jobmetrics.Metrics,
) *SweepProcessor {
	return &SweepProcessor{
		logger:       logger,
		routeRepo:    routeRepo,
		deliveryRepo: deliveryRepo,
		snapshots:    snapshots,
		metrics:      metrics,
		tracker:      tracker,
	}
}

// Handle processes one TaskReconcileSweep task.
func (p *SweepProcessor) Handle(ctx context.Context, _ *asynq.Task) error {
	return p.tracker.Track(TaskReconcileSweep).End(p.sweep(ctx))
}

func (p *SweepProcessor) sweep(ctx context.Context) error {
	routes, err := p.routeRepo.ListActive(ctx)
	if err != nil {
		return err
	}

	var unresolved, generationFailed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, route := range routes {
		route := route
		g.Go(func() error {
			dels, err := p.deliveryRepo.ListByRoute(ctx, route.ID)
			if err != nil {
				return err
			}
			ev := ruteros.Evaluate(route, dels)
			unresolved.Add(int64(ev.PendingCount))
			if ev.Warning != nil && ev.Warning.Kind == ruteros.WarningGenerationFailed {
				generationFailed.Add(1)
				p.logger.Warn("route with failed delivery generation",
					"rutero_id", route.ID, "name", route.Name)
			}
			if p.snapshots != nil {
				if err := p.snapshots.Save(ctx, ev); err != nil {
					p.logger.Warn("save sweep snapshot", "rutero_id", route.ID, "error", err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.metrics.RecordSweep(len(routes), int(unresolved.Load()), int(generationFailed.Load()))
	p.logger.Info("reconcile sweep done",
		"active_routes", len(routes),
		"unresolved", unresolved.Load(),
		"generation_failed", generationFailed.Load())
	return nil
}
