package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distriflow/distriflow/internal/shared"
)

// fakeRepo keeps orders in memory. WithTx runs the callback against the same
// store; a callback error discards nothing because tests assert on outcomes,
// not rollback mechanics.
type fakeRepo struct {
	orders  map[int64]*Order
	history map[int64][]StatusChange
	nextID  int64
	seq     int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		orders:  make(map[int64]*Order),
		history: make(map[int64][]StatusChange),
		nextID:  1,
	}
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, f)
}

func (f *fakeRepo) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeRepo) GetByDocNumber(_ context.Context, docNumber string) (*Order, error) {
	for _, o := range f.orders {
		if o.DocNumber == docNumber {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeRepo) List(_ context.Context, _ ListOrdersRequest) ([]OrderWithDetails, int, error) {
	return nil, 0, nil
}

func (f *fakeRepo) Create(_ context.Context, order Order) (int64, error) {
	for _, existing := range f.orders {
		if existing.DocNumber == order.DocNumber {
			return 0, ErrDuplicate
		}
	}
	id := f.nextID
	f.nextID++
	order.ID = id
	f.orders[id] = &order
	return id, nil
}

func (f *fakeRepo) InsertLine(_ context.Context, line OrderLine) (int64, error) {
	o, ok := f.orders[line.OrderID]
	if !ok {
		return 0, ErrNotFound
	}
	line.ID = int64(len(o.Lines) + 1)
	o.Lines = append(o.Lines, line)
	return line.ID, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status OrderStatus, actorID int64, actorRole string) error {
	o, ok := f.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	f.history[id] = append(f.history[id], StatusChange{
		OrderID:   id,
		Status:    status,
		ActorID:   actorID,
		ActorRole: actorRole,
		ChangedAt: time.Now(),
	})
	return nil
}

func (f *fakeRepo) StatusHistory(_ context.Context, orderID int64) ([]StatusChange, error) {
	return f.history[orderID], nil
}

func (f *fakeRepo) GenerateNumber(_ context.Context, date time.Time) (string, error) {
	f.seq++
	return fmt.Sprintf("ORD-%s-%04d", date.Format("200601"), f.seq), nil
}

var testActor = shared.Actor{ID: 7, Role: shared.RoleVendedor}

func TestCreateComputesTotals(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0.12)

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		ClientID:         1,
		PaymentCondition: PaymentContado,
		Lines: []CreateOrderLineReq{
			{ProductID: 10, Quantity: 2, UnitPrice: 100, FinalPrice: 90},
			{ProductID: 11, Quantity: 1, UnitPrice: 50},
		},
	}, testActor)
	require.NoError(t, err)

	// subtotal 250, discount 20, tax 12% of 230 = 27.60, total 257.60
	assert.Equal(t, 250.0, order.Subtotal)
	assert.Equal(t, 20.0, order.DiscountTotal)
	assert.Equal(t, 27.60, order.TaxTotal)
	assert.Equal(t, 257.60, order.Total)
	assert.Equal(t, StatusPendiente, order.Status)
	assert.Len(t, order.Lines, 2)

	// Missing final price defaults to the unit price.
	assert.Equal(t, 50.0, order.Lines[1].FinalPrice)

	// Creation writes the initial PENDIENTE trail entry.
	history, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusPendiente, history[0].Status)
}

func TestCreateRejectsFinalAboveUnit(t *testing.T) {
	svc := NewService(newFakeRepo(), 0)

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		ClientID:         1,
		PaymentCondition: PaymentCredito,
		Lines: []CreateOrderLineReq{
			{ProductID: 10, Quantity: 1, UnitPrice: 10, FinalPrice: 12},
		},
	}, testActor)
	assert.Error(t, err)
}

func TestCreateAssignsSequentialDocNumbers(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)

	first := mustCreate(t, svc)
	second := mustCreate(t, svc)

	period := time.Now().Format("200601")
	assert.Equal(t, fmt.Sprintf("ORD-%s-0001", period), first.DocNumber)
	assert.Equal(t, fmt.Sprintf("ORD-%s-0002", period), second.DocNumber)
	assert.NotEqual(t, first.DocNumber, second.DocNumber)
}

func TestChangeStatusWalksTheChain(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, 0)
	order := mustCreate(t, svc)

	for _, next := range []OrderStatus{
		StatusAprobado, StatusEnPreparacion, StatusFacturado, StatusEnRuta, StatusEntregado,
	} {
		updated, err := svc.ChangeStatus(context.Background(), order.ID, next, testActor)
		require.NoError(t, err, "transition to %s", next)
		assert.Equal(t, next, updated.Status)
	}

	history, err := svc.History(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Len(t, history, 6) // initial PENDIENTE + five transitions
}

func TestChangeStatusRejectsSkip(t *testing.T) {
	svc := NewService(newFakeRepo(), 0)
	order := mustCreate(t, svc)

	_, err := svc.ChangeStatus(context.Background(), order.ID, StatusEntregado, testActor)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.ChangeStatus(context.Background(), order.ID, StatusEnPreparacion, testActor)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// State is untouched after rejections.
	got, err := svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPendiente, got.Status)
}

func TestChangeStatusLocksTerminalOrders(t *testing.T) {
	svc := NewService(newFakeRepo(), 0)
	order := mustCreate(t, svc)

	_, err := svc.ChangeStatus(context.Background(), order.ID, StatusAnulado, testActor)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(context.Background(), order.ID, StatusAprobado, testActor)
	assert.ErrorIs(t, err, ErrOrderLocked)
}

func TestChangeStatusUnknownTarget(t *testing.T) {
	svc := NewService(newFakeRepo(), 0)
	order := mustCreate(t, svc)

	_, err := svc.ChangeStatus(context.Background(), order.ID, OrderStatus("SHIPPED"), testActor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func mustCreate(t *testing.T, svc *Service) *Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateOrderRequest{
		ClientID:         1,
		PaymentCondition: PaymentContado,
		Lines: []CreateOrderLineReq{
			{ProductID: 1, Quantity: 1, UnitPrice: 10},
		},
	}, testActor)
	require.NoError(t, err)
	return order
}
