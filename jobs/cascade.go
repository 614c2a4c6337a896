package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/distriflow/distriflow/internal/jobs"
	"github.com/distriflow/distriflow/internal/notify"
	"github.com/distriflow/distriflow/internal/observability"
	"github.com/distriflow/distriflow/internal/orders"
	"github.com/distriflow/distriflow/internal/ruteros"
	"github.com/distriflow/distriflow/internal/shared"
)

// CascadeProcessor advances each stop's order EN_RUTA -> ENTREGADO after a
// route completes. It runs outside the completion transaction; the route is
// already frozen when this executes.
type CascadeProcessor struct {
	logger  *slog.Logger
	orders  *orders.Service
	routes  *ruteros.Service
	webhook *notify.Webhook
	metrics *observability.Metrics
	tracker *jobmetrics.Metrics
}

// NewCascadeProcessor builds the cascade task handler.
func NewCascadeProcessor(
	logger *slog.Logger,
	orderSvc *orders.Service,
	routeSvc *ruteros.Service,
	webhook *notify.Webhook,
	metrics *observability.Metrics,
	tracker *jobmetrics.Metrics,
) *CascadeProcessor {
	return &CascadeProcessor{
		logger:  logger,
		orders:  orderSvc,
		routes:  routeSvc,
		webhook: webhook,
		metrics: metrics,
		tracker: tracker,
	}
}

var systemActor = shared.Actor{ID: 0, Role: shared.RoleSistema}

// Handle processes one TaskOrderCascade task.
func (p *CascadeProcessor) Handle(ctx context.Context, t *asynq.Task) error {
	return p.tracker.Track(TaskOrderCascade).End(p.handle(ctx, t))
}

func (p *CascadeProcessor) handle(ctx context.Context, t *asynq.Task) error {
	var payload OrderCascadePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode cascade payload: %v: %w", err, asynq.SkipRetry)
	}

	route, err := p.routes.Get(ctx, payload.RuteroID)
	if err != nil {
		if errors.Is(err, ruteros.ErrNotFound) {
			return fmt.Errorf("rutero %d vanished: %w", payload.RuteroID, asynq.SkipRetry)
		}
		return err
	}
	if route.Status != ruteros.StatusCompletado {
		// Stale or premature task; only completed routes cascade.
		p.logger.Warn("cascade on non-completed route", "rutero_id", route.ID, "status", route.Status)
		return nil
	}

	for _, stop := range route.Stops {
		if stop.OrderID == nil {
			continue
		}
		if err := p.advanceOrder(ctx, *stop.OrderID); err != nil {
			return err
		}
	}

	p.notifyCompleted(ctx, *route)
	return nil
}

// advanceOrder moves one order through the validated transition. Orders not
// sitting in EN_RUTA are skipped and logged, never failed.
func (p *CascadeProcessor) advanceOrder(ctx context.Context, orderID int64) error {
	o, err := p.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			p.logger.Warn("cascade order missing", "order_id", orderID)
			return nil
		}
		return fmt.Errorf("get order %d: %w", orderID, err)
	}
	if o.Status != orders.StatusEnRuta {
		p.logger.Info("cascade skip", "order_id", orderID, "status", o.Status)
		return nil
	}

	if _, err := p.orders.ChangeStatus(ctx, orderID, orders.StatusEntregado, systemActor); err != nil {
		// A concurrent manual transition loses the race legitimately.
		if errors.Is(err, orders.ErrInvalidTransition) || errors.Is(err, orders.ErrOrderLocked) {
			p.logger.Warn("cascade transition lost race", "order_id", orderID, "error", err)
			return nil
		}
		return fmt.Errorf("cascade order %d: %w", orderID, err)
	}
	p.metrics.ObserveTransition("order", string(orders.StatusEntregado))
	return nil
}

func (p *CascadeProcessor) notifyCompleted(ctx context.Context, route ruteros.Route) {
	if p.webhook == nil {
		return
	}
	ev, err := p.routes.Evaluation(ctx, route.ID)
	if err != nil {
		p.logger.Warn("evaluate for webhook", "rutero_id", route.ID, "error", err)
		ev = &ruteros.Evaluation{RuteroID: route.ID}
	}
	completedAt := time.Now()
	if route.CompletedAt != nil {
		completedAt = *route.CompletedAt
	}
	event := notify.RouteCompletedEvent{
		RuteroID:      route.ID,
		RouteName:     route.Name,
		DriverID:      route.DriverID,
		ResolvedCount: ev.ResolvedCount,
		TotalCount:    ev.TotalCount,
		CompletedAt:   completedAt,
	}
	if err := p.webhook.RouteCompleted(ctx, event); err != nil {
		// Notification is best effort; completion stands either way.
		p.logger.Error("route completion webhook", "rutero_id", route.ID, "error", err)
	}
}
