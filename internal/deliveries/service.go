// Package deliveries owns the per-stop delivery execution records of an
// active rutero and the driver-facing status rules over them.
package deliveries

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/distriflow/distriflow/internal/platform/httpx"
	"github.com/distriflow/distriflow/internal/shared"
)

// Sentinels wrap the transport-level errors so generic responders map them
// to 409/422 without package-specific branches.
var (
	// ErrInvalidTransition signals a target status not reachable from the
	// current one.
	ErrInvalidTransition = fmt.Errorf("%w: invalid delivery status transition", httpx.ErrConflict)
	// ErrDeliveryLocked signals a mutation attempt on a resolved delivery.
	ErrDeliveryLocked = fmt.Errorf("%w: delivery is already resolved", httpx.ErrConflict)
	// ErrRouteNotActive signals a status change while the owning rutero is
	// not en_curso.
	ErrRouteNotActive = fmt.Errorf("%w: owning route is not active", httpx.ErrConflict)
	// ErrEvidenceRequired signals a delivered mark without an evidence
	// reference.
	ErrEvidenceRequired = fmt.Errorf("%w: delivered status requires an evidence reference", httpx.ErrUnprocessable)
	// ErrReasonRequired signals a failed mark without a reason code.
	ErrReasonRequired = fmt.Errorf("%w: failed status requires a reason code", httpx.ErrUnprocessable)
)

// RouteStatusProvider answers whether a rutero is currently en_curso. The
// route package implements it; keeping it an interface here keeps deliveries
// a leaf package.
type RouteStatusProvider interface {
	IsRouteActive(ctx context.Context, ruteroID int64) (bool, error)
}

// Service provides business logic for delivery operations.
type Service struct {
	repo   Repository
	routes RouteStatusProvider
	audit  *shared.AuditLogger
	now    func() time.Time
}

// NewService constructs a delivery service.
func NewService(repo Repository, routes RouteStatusProvider, audit *shared.AuditLogger) *Service {
	return &Service{repo: repo, routes: routes, audit: audit, now: time.Now}
}

// Get retrieves one delivery.
func (s *Service) Get(ctx context.Context, id int64) (*Delivery, error) {
	return s.repo.Get(ctx, id)
}

// ListByRoute returns a route's deliveries in visit order.
func (s *Service) ListByRoute(ctx context.Context, ruteroID int64) ([]Delivery, error) {
	return s.repo.ListByRoute(ctx, ruteroID)
}

// Mark applies a driver's status change. Resolved deliveries are immutable,
// and no change is accepted unless the owning rutero is en_curso.
func (s *Service) Mark(ctx context.Context, id int64, req MarkRequest, actor shared.Actor) (*Delivery, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, req.Status)
	}

	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	if existing.Status.Terminal() {
		return nil, fmt.Errorf("%w: %s", ErrDeliveryLocked, existing.Status)
	}

	active, err := s.routes.IsRouteActive(ctx, existing.RuteroID)
	if err != nil {
		return nil, fmt.Errorf("check route status: %w", err)
	}
	if !active {
		return nil, fmt.Errorf("%w: rutero %d", ErrRouteNotActive, existing.RuteroID)
	}

	if !existing.Status.CanTransition(req.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, req.Status)
	}

	var deliveredAt *time.Time
	switch req.Status {
	case StatusDelivered:
		if req.EvidenceRef == nil || *req.EvidenceRef == "" {
			return nil, ErrEvidenceRequired
		}
		t := s.now()
		deliveredAt = &t
	case StatusFailed:
		if req.ReasonCode == nil || *req.ReasonCode == "" {
			return nil, ErrReasonRequired
		}
	}

	if err := s.repo.Mark(ctx, id, req.Status, req.EvidenceRef, req.ReasonCode, deliveredAt); err != nil {
		return nil, fmt.Errorf("mark delivery: %w", err)
	}

	// Audit failures must not undo an applied mark.
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   "delivery.mark",
		Entity:   "delivery",
		EntityID: strconv.FormatInt(id, 10),
		Meta: map[string]any{
			"actor_role": string(actor.Role),
			"from":       existing.Status,
			"to":         req.Status,
		},
	})

	return s.repo.Get(ctx, id)
}
