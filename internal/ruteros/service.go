// Package ruteros owns delivery routes: publication, stop editing, the
// start/complete state machine and the reconciliation verdict that gates
// completion.
package ruteros

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/distriflow/distriflow/internal/deliveries"
	"github.com/distriflow/distriflow/internal/shared"
)

var (
	// ErrRouteLocked signals a stop edit or mutation on a route that left
	// publicado.
	ErrRouteLocked = errors.New("route is no longer editable")
	// ErrEmptyRoute signals a start attempt on a route without stops.
	ErrEmptyRoute = errors.New("route has no stops")
	// ErrAlreadyStarted signals a start attempt on a route not in publicado.
	ErrAlreadyStarted = errors.New("route already started")
	// ErrNotStarted signals a completion attempt on a route not in en_curso.
	ErrNotStarted = errors.New("route is not in progress")
	// ErrNoDeliveriesGenerated signals a started route with zero deliveries.
	// Fatal: requires operator intervention, never auto-retried.
	ErrNoDeliveriesGenerated = errors.New("no deliveries were generated for this route")
	// ErrStopNotFound signals a stop edit referencing an unknown stop.
	ErrStopNotFound = errors.New("stop not found on route")
)

// DeliveriesPendingError rejects completion while deliveries remain
// unresolved, carrying the count for the client.
type DeliveriesPendingError struct {
	Pending int
}

func (e *DeliveriesPendingError) Error() string {
	return fmt.Sprintf("%d deliveries still unresolved", e.Pending)
}

// CascadeEnqueuer schedules the post-completion order cascade. The jobs
// package implements it.
type CascadeEnqueuer interface {
	EnqueueOrderCascade(ctx context.Context, ruteroID int64) error
}

// Service provides business logic for route operations.
type Service struct {
	logger       *slog.Logger
	repo         Repository
	deliveryRepo deliveries.Repository
	snapshots    *SnapshotStore
	cascade      CascadeEnqueuer
	audit        *shared.AuditLogger
	now          func() time.Time
}

// NewService constructs a route service. cascade may be nil in contexts
// without a job client (the sweep worker reuses this service read-only).
func NewService(
	logger *slog.Logger,
	repo Repository,
	deliveryRepo deliveries.Repository,
	snapshots *SnapshotStore,
	cascade CascadeEnqueuer,
	audit *shared.AuditLogger,
) *Service {
	return &Service{
		logger:       logger,
		repo:         repo,
		deliveryRepo: deliveryRepo,
		snapshots:    snapshots,
		cascade:      cascade,
		audit:        audit,
		now:          time.Now,
	}
}

// IsRouteActive reports whether the rutero is en_curso. Satisfies the
// delivery package's route status check.
func (s *Service) IsRouteActive(ctx context.Context, ruteroID int64) (bool, error) {
	rt, err := s.repo.Get(ctx, ruteroID)
	if err != nil {
		return false, err
	}
	return rt.Status == StatusEnCurso, nil
}

// Create publishes a new route with its initial stops.
func (s *Service) Create(ctx context.Context, req CreateRouteRequest, actor shared.Actor) (*Route, error) {
	if !req.Frequency.Valid() {
		return nil, fmt.Errorf("unknown frequency %q", req.Frequency)
	}

	route := Route{
		Name:      req.Name,
		ZoneID:    req.ZoneID,
		DriverID:  req.DriverID,
		DayOfWeek: req.DayOfWeek,
		Frequency: req.Frequency,
		Status:    StatusPublicado,
	}
	stops := normalizeStops(req.Stops)

	var routeID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		id, err := repo.Create(ctx, route)
		if err != nil {
			return fmt.Errorf("create route: %w", err)
		}
		routeID = id
		return repo.ReplaceStops(ctx, routeID, stops)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "rutero.create", routeID, nil)
	return s.repo.Get(ctx, routeID)
}

// ReplaceStops swaps the full stop list of a publicado route.
func (s *Service) ReplaceStops(ctx context.Context, id int64, req ReplaceStopsRequest, actor shared.Actor) (*Route, error) {
	if err := s.editStops(ctx, id, func([]Stop) ([]CreateStopReq, error) {
		return req.Stops, nil
	}); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "rutero.replace_stops", id, nil)
	return s.repo.Get(ctx, id)
}

// AddStop appends a stop at the requested position (or at the end).
func (s *Service) AddStop(ctx context.Context, id int64, req CreateStopReq, actor shared.Actor) (*Route, error) {
	if err := s.editStops(ctx, id, func(current []Stop) ([]CreateStopReq, error) {
		next := stopsToReqs(current)
		if req.Position <= 0 || req.Position > len(next) {
			next = append(next, req)
			return next, nil
		}
		i := req.Position - 1
		next = append(next[:i], append([]CreateStopReq{req}, next[i:]...)...)
		return next, nil
	}); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "rutero.add_stop", id, nil)
	return s.repo.Get(ctx, id)
}

// RemoveStop drops one stop and renumbers the rest.
func (s *Service) RemoveStop(ctx context.Context, id, stopID int64, actor shared.Actor) (*Route, error) {
	if err := s.editStops(ctx, id, func(current []Stop) ([]CreateStopReq, error) {
		var next []CreateStopReq
		found := false
		for _, st := range current {
			if st.ID == stopID {
				found = true
				continue
			}
			next = append(next, CreateStopReq{ClientID: st.ClientID, OrderID: st.OrderID})
		}
		if !found {
			return nil, ErrStopNotFound
		}
		return next, nil
	}); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "rutero.remove_stop", id, nil)
	return s.repo.Get(ctx, id)
}

// Reorder rewrites visit order from an explicit stop id sequence. Every
// current stop must appear exactly once.
func (s *Service) Reorder(ctx context.Context, id int64, stopIDs []int64, actor shared.Actor) (*Route, error) {
	if err := s.editStops(ctx, id, func(current []Stop) ([]CreateStopReq, error) {
		if len(stopIDs) != len(current) {
			return nil, fmt.Errorf("%w: reorder must list all %d stops", ErrStopNotFound, len(current))
		}
		byID := make(map[int64]Stop, len(current))
		for _, st := range current {
			byID[st.ID] = st
		}
		next := make([]CreateStopReq, 0, len(stopIDs))
		for _, sid := range stopIDs {
			st, ok := byID[sid]
			if !ok {
				return nil, fmt.Errorf("%w: id %d", ErrStopNotFound, sid)
			}
			delete(byID, sid)
			next = append(next, CreateStopReq{ClientID: st.ClientID, OrderID: st.OrderID})
		}
		return next, nil
	}); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "rutero.reorder", id, nil)
	return s.repo.Get(ctx, id)
}

// editStops runs a stop-list mutation inside one transaction, guarding the
// publicado-only rule.
func (s *Service) editStops(ctx context.Context, id int64, mutate func([]Stop) ([]CreateStopReq, error)) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rt, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if rt.Status != StatusPublicado {
			return fmt.Errorf("%w: %s", ErrRouteLocked, rt.Status)
		}
		reqs, err := mutate(rt.Stops)
		if err != nil {
			return err
		}
		return repo.ReplaceStops(ctx, id, normalizeStops(reqs))
	})
}

// Start flips the route to en_curso and generates one pending delivery per
// stop, atomically. A failed generation rolls back the status flip.
func (s *Service) Start(ctx context.Context, id int64, actor shared.Actor) (*StartRouteResponse, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		rt, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if rt.Status != StatusPublicado {
			return fmt.Errorf("%w: %s", ErrAlreadyStarted, rt.Status)
		}
		if len(rt.Stops) == 0 {
			return ErrEmptyRoute
		}

		startedAt := s.now()
		if err := repo.UpdateStatus(ctx, id, StatusPublicado, StatusEnCurso, &startedAt, nil); err != nil {
			return err
		}
		return repo.GenerateDeliveries(ctx, rt)
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "rutero.start", id, nil)
	s.invalidateSnapshot(ctx, id)

	rt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dels, err := s.deliveryRepo.ListByRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	return &StartRouteResponse{Route: *rt, Deliveries: dels}, nil
}

// Complete freezes the route once every delivery is resolved, then enqueues
// the order cascade. The cascade runs outside this transaction.
func (s *Service) Complete(ctx context.Context, id int64, actor shared.Actor) (*Route, error) {
	rt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rt.Status.Terminal() {
		return nil, fmt.Errorf("%w: already %s", ErrRouteLocked, rt.Status)
	}
	if rt.Status != StatusEnCurso {
		return nil, fmt.Errorf("%w: %s", ErrNotStarted, rt.Status)
	}

	dels, err := s.deliveryRepo.ListByRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	ev := Evaluate(*rt, dels)
	if !ev.CanComplete {
		if ev.Warning != nil && ev.Warning.Kind == WarningGenerationFailed {
			return nil, ErrNoDeliveriesGenerated
		}
		return nil, &DeliveriesPendingError{Pending: ev.PendingCount}
	}

	completedAt := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.UpdateStatus(ctx, id, StatusEnCurso, StatusCompletado, nil, &completedAt)
	})
	if err != nil {
		// A concurrent Complete won the race between the eligibility check
		// and the flip; the route is already frozen.
		if errors.Is(err, ErrStatusConflict) {
			return nil, fmt.Errorf("%w: %v", ErrRouteLocked, err)
		}
		return nil, fmt.Errorf("complete route: %w", err)
	}

	s.recordAudit(ctx, actor, "rutero.complete", id, map[string]any{
		"resolved": ev.ResolvedCount,
		"total":    ev.TotalCount,
	})
	s.invalidateSnapshot(ctx, id)

	if s.cascade != nil {
		if err := s.cascade.EnqueueOrderCascade(ctx, id); err != nil {
			// Completion already committed; the sweep picks up missed cascades.
			s.logger.Error("enqueue order cascade", "rutero_id", id, "error", err)
		}
	}

	return s.repo.Get(ctx, id)
}

// Deactivate soft-disables a publicado route.
func (s *Service) Deactivate(ctx context.Context, id int64, actor shared.Actor) (*Route, error) {
	rt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rt.Status != StatusPublicado {
		return nil, fmt.Errorf("%w: %s", ErrRouteLocked, rt.Status)
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "rutero.deactivate", id, nil)
	return s.repo.Get(ctx, id)
}

// Get retrieves one route with stops.
func (s *Service) Get(ctx context.Context, id int64) (*Route, error) {
	return s.repo.Get(ctx, id)
}

// List returns a filtered, paginated route listing.
func (s *Service) List(ctx context.Context, req ListRoutesRequest) ([]Route, int, error) {
	return s.repo.List(ctx, req)
}

// Evaluation computes the current reconciliation verdict and refreshes the
// snapshot cache as a side benefit.
func (s *Service) Evaluation(ctx context.Context, id int64) (*Evaluation, error) {
	rt, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	dels, err := s.deliveryRepo.ListByRoute(ctx, id)
	if err != nil {
		return nil, err
	}
	ev := Evaluate(*rt, dels)
	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, ev); err != nil {
			s.logger.Warn("save evaluation snapshot", "rutero_id", id, "error", err)
		}
	}
	return &ev, nil
}

func (s *Service) invalidateSnapshot(ctx context.Context, id int64) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Invalidate(ctx, id); err != nil {
		s.logger.Warn("invalidate evaluation snapshot", "rutero_id", id, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["actor_role"] = string(actor.Role)
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.ID,
		Action:   action,
		Entity:   "rutero",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

// normalizeStops renumbers requested stops 1..n, stable by requested
// position with payload order breaking ties.
func normalizeStops(reqs []CreateStopReq) []Stop {
	indexed := make([]CreateStopReq, len(reqs))
	copy(indexed, reqs)
	sort.SliceStable(indexed, func(i, j int) bool {
		pi, pj := indexed[i].Position, indexed[j].Position
		if pi <= 0 {
			pi = int(^uint(0) >> 1)
		}
		if pj <= 0 {
			pj = int(^uint(0) >> 1)
		}
		return pi < pj
	})

	stops := make([]Stop, 0, len(indexed))
	for i, req := range indexed {
		stops = append(stops, Stop{
			ClientID: req.ClientID,
			OrderID:  req.OrderID,
			Position: i + 1,
		})
	}
	return stops
}

func stopsToReqs(stops []Stop) []CreateStopReq {
	reqs := make([]CreateStopReq, 0, len(stops))
	for _, st := range stops {
		reqs = append(reqs, CreateStopReq{ClientID: st.ClientID, OrderID: st.OrderID})
	}
	return reqs
}
