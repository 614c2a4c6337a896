package ruteros

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distriflow/distriflow/internal/deliveries"
	"github.com/distriflow/distriflow/internal/shared"
)

type fakeDeliveryRepo struct {
	items  map[int64]*deliveries.Delivery
	nextID int64
}

func newFakeDeliveryRepo() *fakeDeliveryRepo {
	return &fakeDeliveryRepo{items: make(map[int64]*deliveries.Delivery), nextID: 1}
}

func (f *fakeDeliveryRepo) Get(_ context.Context, id int64) (*deliveries.Delivery, error) {
	d, ok := f.items[id]
	if !ok {
		return nil, deliveries.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fakeDeliveryRepo) ListByRoute(_ context.Context, ruteroID int64) ([]deliveries.Delivery, error) {
	var result []deliveries.Delivery
	for id := int64(1); id < f.nextID; id++ {
		if d, ok := f.items[id]; ok && d.RuteroID == ruteroID {
			result = append(result, *d)
		}
	}
	return result, nil
}

func (f *fakeDeliveryRepo) Mark(_ context.Context, id int64, status deliveries.Status, evidence, reason *string, deliveredAt *time.Time) error {
	d, ok := f.items[id]
	if !ok {
		return deliveries.ErrNotFound
	}
	d.Status = status
	return nil
}

func (f *fakeDeliveryRepo) insert(d deliveries.Delivery) {
	d.ID = f.nextID
	f.nextID++
	f.items[d.ID] = &d
}

type fakeRouteRepo struct {
	routes       map[int64]*Route
	delRepo      *fakeDeliveryRepo
	nextRoute    int64
	nextStop     int64
	beforeUpdate func()
}

func newFakeRouteRepo(delRepo *fakeDeliveryRepo) *fakeRouteRepo {
	return &fakeRouteRepo{
		routes:    make(map[int64]*Route),
		delRepo:   delRepo,
		nextRoute: 1,
		nextStop:  1,
	}
}

func (f *fakeRouteRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRouteRepo) Get(_ context.Context, id int64) (*Route, error) {
	rt, ok := f.routes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rt
	copied.Stops = append([]Stop(nil), rt.Stops...)
	return &copied, nil
}

func (f *fakeRouteRepo) List(_ context.Context, _ ListRoutesRequest) ([]Route, int, error) {
	return nil, 0, nil
}

func (f *fakeRouteRepo) ListActive(_ context.Context) ([]Route, error) {
	var result []Route
	for id := int64(1); id < f.nextRoute; id++ {
		if rt, ok := f.routes[id]; ok && rt.Status == StatusEnCurso {
			result = append(result, *rt)
		}
	}
	return result, nil
}

func (f *fakeRouteRepo) Create(_ context.Context, route Route) (int64, error) {
	id := f.nextRoute
	f.nextRoute++
	route.ID = id
	route.Active = true
	f.routes[id] = &route
	return id, nil
}

func (f *fakeRouteRepo) ReplaceStops(_ context.Context, ruteroID int64, stops []Stop) error {
	rt, ok := f.routes[ruteroID]
	if !ok {
		return ErrNotFound
	}
	rt.Stops = nil
	for _, s := range stops {
		s.ID = f.nextStop
		f.nextStop++
		s.RuteroID = ruteroID
		rt.Stops = append(rt.Stops, s)
	}
	return nil
}

func (f *fakeRouteRepo) UpdateStatus(_ context.Context, id int64, from, to RouteStatus, startedAt, completedAt *time.Time) error {
	if f.beforeUpdate != nil {
		f.beforeUpdate()
	}
	rt, ok := f.routes[id]
	if !ok {
		return ErrNotFound
	}
	if rt.Status != from {
		return ErrStatusConflict
	}
	rt.Status = to
	if startedAt != nil {
		rt.StartedAt = startedAt
	}
	if completedAt != nil {
		rt.CompletedAt = completedAt
	}
	return nil
}

func (f *fakeRouteRepo) SetActive(_ context.Context, id int64, active bool) error {
	rt, ok := f.routes[id]
	if !ok {
		return ErrNotFound
	}
	rt.Active = active
	return nil
}

func (f *fakeRouteRepo) GenerateDeliveries(_ context.Context, route *Route) error {
	for i, stop := range route.Stops {
		f.delRepo.insert(deliveries.Delivery{
			RuteroID: route.ID,
			StopID:   stop.ID,
			OrderID:  stop.OrderID,
			Sequence: i + 1,
			Status:   deliveries.StatusPending,
		})
	}
	return nil
}

type fakeCascade struct {
	enqueued []int64
}

func (f *fakeCascade) EnqueueOrderCascade(_ context.Context, ruteroID int64) error {
	f.enqueued = append(f.enqueued, ruteroID)
	return nil
}

var supervisor = shared.Actor{ID: 9, Role: shared.RoleSupervisor}

func newTestService(t *testing.T) (*Service, *fakeRouteRepo, *fakeDeliveryRepo, *fakeCascade) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	delRepo := newFakeDeliveryRepo()
	routeRepo := newFakeRouteRepo(delRepo)
	cascade := &fakeCascade{}
	svc := NewService(logger, routeRepo, delRepo, nil, cascade, nil)
	return svc, routeRepo, delRepo, cascade
}

func createRoute(t *testing.T, svc *Service, stops int) *Route {
	t.Helper()
	req := CreateRouteRequest{Name: "Ruta Centro", DayOfWeek: 2, Frequency: FrequencySemanal}
	for i := 0; i < stops; i++ {
		req.Stops = append(req.Stops, CreateStopReq{ClientID: int64(100 + i)})
	}
	rt, err := svc.Create(context.Background(), req, supervisor)
	require.NoError(t, err)
	return rt
}

func TestCreateNormalizesStopPositions(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	rt, err := svc.Create(context.Background(), CreateRouteRequest{
		Name: "Ruta Norte", DayOfWeek: 1, Frequency: FrequencySemanal,
		Stops: []CreateStopReq{
			{ClientID: 3, Position: 7},
			{ClientID: 1, Position: 2},
			{ClientID: 2}, // no position: goes last
		},
	}, supervisor)
	require.NoError(t, err)

	require.Len(t, rt.Stops, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{rt.Stops[0].Position, rt.Stops[1].Position, rt.Stops[2].Position})
	assert.Equal(t, int64(1), rt.Stops[0].ClientID)
	assert.Equal(t, int64(3), rt.Stops[1].ClientID)
	assert.Equal(t, int64(2), rt.Stops[2].ClientID)
}

func TestStartGeneratesDeliveriesInStopOrder(t *testing.T) {
	svc, _, delRepo, _ := newTestService(t)
	rt := createRoute(t, svc, 3)

	resp, err := svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)
	assert.Equal(t, StatusEnCurso, resp.Route.Status)
	assert.NotNil(t, resp.Route.StartedAt)

	require.Len(t, resp.Deliveries, 3)
	for i, d := range resp.Deliveries {
		assert.Equal(t, deliveries.StatusPending, d.Status)
		assert.Equal(t, i+1, d.Sequence)
		assert.Equal(t, rt.Stops[i].ID, d.StopID)
	}

	stored, err := delRepo.ListByRoute(context.Background(), rt.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestStartEmptyRouteLeavesPublicado(t *testing.T) {
	svc, routeRepo, _, _ := newTestService(t)
	rt := createRoute(t, svc, 0)

	_, err := svc.Start(context.Background(), rt.ID, supervisor)
	assert.ErrorIs(t, err, ErrEmptyRoute)

	got, err := routeRepo.Get(context.Background(), rt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPublicado, got.Status)
}

func TestStartTwiceFails(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 1)

	_, err := svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), rt.ID, supervisor)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestCompleteRejectsPendingDeliveries(t *testing.T) {
	svc, _, _, cascade := newTestService(t)
	rt := createRoute(t, svc, 2)

	_, err := svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)

	_, err = svc.Complete(context.Background(), rt.ID, supervisor)
	var pending *DeliveriesPendingError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, 2, pending.Pending)
	assert.Empty(t, cascade.enqueued)
}

func TestCompleteAfterAllResolved(t *testing.T) {
	svc, _, delRepo, cascade := newTestService(t)
	rt := createRoute(t, svc, 2)

	resp, err := svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)

	// One delivered, one failed: failed still counts as resolved.
	require.NoError(t, delRepo.Mark(context.Background(), resp.Deliveries[0].ID, deliveries.StatusDelivered, nil, nil, nil))
	require.NoError(t, delRepo.Mark(context.Background(), resp.Deliveries[1].ID, deliveries.StatusFailed, nil, nil, nil))

	done, err := svc.Complete(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)
	assert.Equal(t, StatusCompletado, done.Status)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, []int64{rt.ID}, cascade.enqueued)

	// Completed routes are frozen.
	_, err = svc.Complete(context.Background(), rt.ID, supervisor)
	assert.ErrorIs(t, err, ErrRouteLocked)
}

func TestCompleteWithoutGeneratedDeliveries(t *testing.T) {
	svc, routeRepo, _, _ := newTestService(t)
	rt := createRoute(t, svc, 2)

	// Force the generation-failed shape: en_curso with zero deliveries.
	require.NoError(t, routeRepo.UpdateStatus(context.Background(), rt.ID, StatusPublicado, StatusEnCurso, nil, nil))

	_, err := svc.Complete(context.Background(), rt.ID, supervisor)
	assert.ErrorIs(t, err, ErrNoDeliveriesGenerated)
}

func TestCompleteLosesRaceToConcurrentComplete(t *testing.T) {
	svc, routeRepo, delRepo, cascade := newTestService(t)
	rt := createRoute(t, svc, 1)

	resp, err := svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)
	require.NoError(t, delRepo.Mark(context.Background(), resp.Deliveries[0].ID, deliveries.StatusDelivered, nil, nil, nil))

	// Another actor completes between the eligibility check and the flip;
	// the guarded update must reject the second writer.
	routeRepo.beforeUpdate = func() {
		routeRepo.beforeUpdate = nil
		routeRepo.routes[rt.ID].Status = StatusCompletado
	}

	_, err = svc.Complete(context.Background(), rt.ID, supervisor)
	assert.ErrorIs(t, err, ErrRouteLocked)
	assert.Empty(t, cascade.enqueued)
}

func TestCompleteNotStarted(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 1)

	_, err := svc.Complete(context.Background(), rt.ID, supervisor)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStopEditsLockedAfterStart(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 2)

	_, err := svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)

	_, err = svc.AddStop(context.Background(), rt.ID, CreateStopReq{ClientID: 999}, supervisor)
	assert.ErrorIs(t, err, ErrRouteLocked)

	_, err = svc.ReplaceStops(context.Background(), rt.ID, ReplaceStopsRequest{
		Stops: []CreateStopReq{{ClientID: 1}},
	}, supervisor)
	assert.ErrorIs(t, err, ErrRouteLocked)
}

func TestRemoveStopRenumbers(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 3)

	updated, err := svc.RemoveStop(context.Background(), rt.ID, rt.Stops[1].ID, supervisor)
	require.NoError(t, err)
	require.Len(t, updated.Stops, 2)
	assert.Equal(t, 1, updated.Stops[0].Position)
	assert.Equal(t, 2, updated.Stops[1].Position)
	assert.Equal(t, rt.Stops[0].ClientID, updated.Stops[0].ClientID)
	assert.Equal(t, rt.Stops[2].ClientID, updated.Stops[1].ClientID)
}

func TestReorderRequiresAllStops(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 3)

	_, err := svc.Reorder(context.Background(), rt.ID, []int64{rt.Stops[0].ID}, supervisor)
	assert.ErrorIs(t, err, ErrStopNotFound)

	updated, err := svc.Reorder(context.Background(), rt.ID,
		[]int64{rt.Stops[2].ID, rt.Stops[0].ID, rt.Stops[1].ID}, supervisor)
	require.NoError(t, err)
	assert.Equal(t, rt.Stops[2].ClientID, updated.Stops[0].ClientID)
	assert.Equal(t, rt.Stops[0].ClientID, updated.Stops[1].ClientID)
	assert.Equal(t, rt.Stops[1].ClientID, updated.Stops[2].ClientID)
}

func TestDeactivateOnlyPublicado(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 1)

	updated, err := svc.Deactivate(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)
	assert.False(t, updated.Active)

	_, err = svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)

	rt2 := createRoute(t, svc, 1)
	_, err = svc.Start(context.Background(), rt2.ID, supervisor)
	require.NoError(t, err)
	_, err = svc.Deactivate(context.Background(), rt2.ID, supervisor)
	assert.ErrorIs(t, err, ErrRouteLocked)
}

func TestIsRouteActive(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	rt := createRoute(t, svc, 1)

	active, err := svc.IsRouteActive(context.Background(), rt.ID)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = svc.Start(context.Background(), rt.ID, supervisor)
	require.NoError(t, err)

	active, err = svc.IsRouteActive(context.Background(), rt.ID)
	require.NoError(t, err)
	assert.True(t, active)
}
