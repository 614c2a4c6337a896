package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distriflow/distriflow/internal/deliveries"
	"github.com/distriflow/distriflow/internal/observability"
	"github.com/distriflow/distriflow/internal/orders"
	"github.com/distriflow/distriflow/internal/ruteros"
)

type stubOrderRepo struct {
	orders map[int64]*orders.Order
}

func (s *stubOrderRepo) WithTx(ctx context.Context, fn func(context.Context, orders.Repository) error) error {
	return fn(ctx, s)
}

func (s *stubOrderRepo) Get(_ context.Context, id int64) (*orders.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (s *stubOrderRepo) GetByDocNumber(context.Context, string) (*orders.Order, error) {
	return nil, orders.ErrNotFound
}

func (s *stubOrderRepo) List(context.Context, orders.ListOrdersRequest) ([]orders.OrderWithDetails, int, error) {
	return nil, 0, nil
}

func (s *stubOrderRepo) Create(context.Context, orders.Order) (int64, error) { return 0, nil }

func (s *stubOrderRepo) InsertLine(context.Context, orders.OrderLine) (int64, error) { return 0, nil }

func (s *stubOrderRepo) UpdateStatus(_ context.Context, id int64, status orders.OrderStatus, _ int64, _ string) error {
	o, ok := s.orders[id]
	if !ok {
		return orders.ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *stubOrderRepo) StatusHistory(context.Context, int64) ([]orders.StatusChange, error) {
	return nil, nil
}

func (s *stubOrderRepo) GenerateNumber(context.Context, time.Time) (string, error) {
	return "ORD-TEST-0001", nil
}

type stubRouteRepo struct {
	routes map[int64]*ruteros.Route
}

func (s *stubRouteRepo) WithTx(ctx context.Context, fn func(context.Context, ruteros.Repository) error) error {
	return fn(ctx, s)
}

func (s *stubRouteRepo) Get(_ context.Context, id int64) (*ruteros.Route, error) {
	rt, ok := s.routes[id]
	if !ok {
		return nil, ruteros.ErrNotFound
	}
	copied := *rt
	return &copied, nil
}

func (s *stubRouteRepo) List(context.Context, ruteros.ListRoutesRequest) ([]ruteros.Route, int, error) {
	return nil, 0, nil
}

func (s *stubRouteRepo) ListActive(context.Context) ([]ruteros.Route, error) { return nil, nil }

func (s *stubRouteRepo) Create(context.Context, ruteros.Route) (int64, error) { return 0, nil }

func (s *stubRouteRepo) ReplaceStops(context.Context, int64, []ruteros.Stop) error { return nil }

func (s *stubRouteRepo) UpdateStatus(context.Context, int64, ruteros.RouteStatus, ruteros.RouteStatus, *time.Time, *time.Time) error {
	return nil
}

func (s *stubRouteRepo) SetActive(context.Context, int64, bool) error { return nil }

func (s *stubRouteRepo) GenerateDeliveries(context.Context, *ruteros.Route) error { return nil }

type stubDeliveryRepo struct{}

func (stubDeliveryRepo) Get(context.Context, int64) (*deliveries.Delivery, error) {
	return nil, deliveries.ErrNotFound
}

func (stubDeliveryRepo) ListByRoute(context.Context, int64) ([]deliveries.Delivery, error) {
	return nil, nil
}

func (stubDeliveryRepo) Mark(context.Context, int64, deliveries.Status, *string, *string, *time.Time) error {
	return nil
}

func int64Ptr(v int64) *int64 { return &v }

func TestCascadeAdvancesEnRutaOrders(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orderRepo := &stubOrderRepo{orders: map[int64]*orders.Order{
		1: {ID: 1, Status: orders.StatusEnRuta},
		2: {ID: 2, Status: orders.StatusFacturado}, // not yet en route: skipped
		3: {ID: 3, Status: orders.StatusEntregado}, // already done: skipped
	}}
	routeRepo := &stubRouteRepo{routes: map[int64]*ruteros.Route{
		10: {
			ID:     10,
			Status: ruteros.StatusCompletado,
			Stops: []ruteros.Stop{
				{ID: 1, RuteroID: 10, OrderID: int64Ptr(1), Position: 1},
				{ID: 2, RuteroID: 10, OrderID: int64Ptr(2), Position: 2},
				{ID: 3, RuteroID: 10, OrderID: int64Ptr(3), Position: 3},
				{ID: 4, RuteroID: 10, Position: 4}, // stop without an order
			},
		},
	}}

	orderSvc := orders.NewService(orderRepo, 0)
	routeSvc := ruteros.NewService(logger, routeRepo, stubDeliveryRepo{}, nil, nil, nil)
	processor := NewCascadeProcessor(logger, orderSvc, routeSvc, nil, observability.NewMetrics(), nil)

	task, err := NewOrderCascadeTask(OrderCascadePayload{RuteroID: 10})
	require.NoError(t, err)
	require.NoError(t, processor.Handle(context.Background(), task))

	assert.Equal(t, orders.StatusEntregado, orderRepo.orders[1].Status)
	assert.Equal(t, orders.StatusFacturado, orderRepo.orders[2].Status)
	assert.Equal(t, orders.StatusEntregado, orderRepo.orders[3].Status)
}

func TestCascadeSkipsNonCompletedRoute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orderRepo := &stubOrderRepo{orders: map[int64]*orders.Order{
		1: {ID: 1, Status: orders.StatusEnRuta},
	}}
	routeRepo := &stubRouteRepo{routes: map[int64]*ruteros.Route{
		10: {
			ID:     10,
			Status: ruteros.StatusEnCurso,
			Stops:  []ruteros.Stop{{ID: 1, RuteroID: 10, OrderID: int64Ptr(1), Position: 1}},
		},
	}}

	orderSvc := orders.NewService(orderRepo, 0)
	routeSvc := ruteros.NewService(logger, routeRepo, stubDeliveryRepo{}, nil, nil, nil)
	processor := NewCascadeProcessor(logger, orderSvc, routeSvc, nil, observability.NewMetrics(), nil)

	task, err := NewOrderCascadeTask(OrderCascadePayload{RuteroID: 10})
	require.NoError(t, err)
	require.NoError(t, processor.Handle(context.Background(), task))

	// Nothing advanced: the route was not completado.
	assert.Equal(t, orders.StatusEnRuta, orderRepo.orders[1].Status)
}
