package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-delivery/internal/auth"
	"grocery-delivery/internal/domain"
	dto "grocery-delivery/internal/microservices/order/domain/dto"
	"grocery-delivery/internal/microservices/order/repository"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changes []domain.StatusChange
	err     error
	panics  bool
}

func (n *recordingNotifier) Emit(c domain.StatusChange) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	if n.panics {
		panic("dispatcher exploded")
	}
	return n.err
}

var (
	admin    = auth.Identity{UserID: "admin-1", Role: auth.RoleAdmin}
	customer = auth.Identity{UserID: "U1", Role: "customer"}
)

func newTestService(n Notifier) (*OrderService, *repository.MemoryOrderRepository, *repository.MemoryCatalog) {
	orders := repository.NewMemoryOrderRepository()
	catalog := repository.NewMemoryCatalog(
		domain.Product{ID: 1, Name: "Arroz 5kg", Price: 2890},
		domain.Product{ID: 2, Name: "Feijão 1kg", Price: 899},
	)
	return NewOrderService(orders, catalog, n, nil), orders, catalog
}

func validRequest() dto.CreateOrderRequest {
	return dto.CreateOrderRequest{
		Items:    []dto.OrderItemInput{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 1}},
		Delivery: domain.Delivery{Address: "Rua das Flores, 10"},
		Payment:  domain.Payment{Method: domain.PaymentPix},
	}
}

func TestCreateOrderSnapshotsPrices(t *testing.T) {
	svc, _, catalog := newTestService(nil)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "U1", validRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, o.Status)
	assert.EqualValues(t, 2*2890+899, o.TotalValue)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "Arroz 5kg", o.Items[0].ProductName)

	catalog.SetPrice(1, 9999)
	got, err := svc.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2890, got.Items[0].UnitPrice)
	assert.EqualValues(t, 2*2890+899, got.TotalValue)
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _, _ := newTestService(nil)
	change := int64(100)
	bigChange := int64(100000)

	tests := []struct {
		name   string
		mutate func(*dto.CreateOrderRequest)
	}{
		{"empty cart", func(r *dto.CreateOrderRequest) { r.Items = nil }},
		{"unknown product", func(r *dto.CreateOrderRequest) { r.Items[0].ProductID = 404 }},
		{"zero quantity", func(r *dto.CreateOrderRequest) { r.Items[0].Quantity = 0 }},
		{"no address", func(r *dto.CreateOrderRequest) { r.Delivery.Address = "  " }},
		{"bad payment", func(r *dto.CreateOrderRequest) { r.Payment.Method = "boleto" }},
		{"change without cash", func(r *dto.CreateOrderRequest) { r.Payment.ChangeFor = &bigChange }},
		{"change below total", func(r *dto.CreateOrderRequest) {
			r.Payment = domain.Payment{Method: domain.PaymentCash, ChangeFor: &change}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := svc.CreateOrder(context.Background(), "U1", req)
			var verr domain.ValidationError
			assert.True(t, errors.As(err, &verr), "got %v", err)
		})
	}
}

func TestCreateOrderPickupAndCash(t *testing.T) {
	svc, _, _ := newTestService(nil)
	change := int64(10000)
	req := validRequest()
	req.Delivery = domain.Delivery{Pickup: true, Address: "ignored"}
	req.Payment = domain.Payment{Method: domain.PaymentCash, ChangeFor: &change}

	o, err := svc.CreateOrder(context.Background(), "U1", req)
	require.NoError(t, err)
	assert.True(t, o.Delivery.Pickup)
	assert.Empty(t, o.Delivery.Address)
	require.NotNil(t, o.Payment.ChangeFor)
	assert.EqualValues(t, 10000, *o.Payment.ChangeFor)
}

func TestUpdateStatusPersistsAndEmits(t *testing.T) {
	n := &recordingNotifier{}
	svc, orders, _ := newTestService(n)
	orders.Seed(domain.Order{ID: 42, OwnerUserID: "U1", Status: domain.StatusReceived})

	o, err := svc.UpdateStatus(context.Background(), 42, "Em Preparo", admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, o.Status)

	got, err := svc.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPreparing, got.Status)

	require.Len(t, n.changes, 1)
	assert.Equal(t, int64(42), n.changes[0].OrderID)
	assert.Equal(t, "U1", n.changes[0].OwnerUserID)
	assert.Equal(t, domain.StatusReceived, n.changes[0].OldStatus)
	assert.Equal(t, domain.StatusPreparing, n.changes[0].NewStatus)
	assert.Equal(t, "admin-1", n.changes[0].ChangedBy)
}

func TestUpdateStatusSucceedsWhenNotifierFails(t *testing.T) {
	for name, n := range map[string]*recordingNotifier{
		"error": {err: errors.New("queue full")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			svc, orders, _ := newTestService(n)
			orders.Seed(domain.Order{ID: 7, OwnerUserID: "U1", Status: domain.StatusPreparing})

			o, err := svc.UpdateStatus(context.Background(), 7, "Saiu para Entrega", admin)
			require.NoError(t, err)
			assert.Equal(t, domain.StatusOutForDelivery, o.Status)

			got, _ := svc.GetOrder(context.Background(), 7)
			assert.Equal(t, domain.StatusOutForDelivery, got.Status)
		})
	}
}

func TestUpdateStatusRejections(t *testing.T) {
	n := &recordingNotifier{}
	svc, orders, _ := newTestService(n)
	orders.Seed(domain.Order{ID: 42, OwnerUserID: "U1", Status: domain.StatusDelivered})
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, 42, "Recebido", admin)
	var terr *domain.InvalidTransitionError
	require.True(t, errors.As(err, &terr))

	_, err = svc.UpdateStatus(ctx, 42, "Perdido", admin)
	var verr domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = svc.UpdateStatus(ctx, 42, "Cancelado", customer)
	var ferr domain.ForbiddenError
	assert.True(t, errors.As(err, &ferr))

	_, err = svc.UpdateStatus(ctx, 999, "Cancelado", admin)
	var nf domain.NotFoundError
	assert.True(t, errors.As(err, &nf))

	got, _ := svc.GetOrder(ctx, 42)
	assert.Equal(t, domain.StatusDelivered, got.Status)
	assert.Empty(t, n.changes)
}

func TestGetOrderForChecksOwnership(t *testing.T) {
	svc, orders, _ := newTestService(nil)
	orders.Seed(domain.Order{ID: 5, OwnerUserID: "U2", Status: domain.StatusReceived})
	ctx := context.Background()

	_, err := svc.GetOrderFor(ctx, 5, customer)
	var ferr domain.ForbiddenError
	assert.True(t, errors.As(err, &ferr))

	_, err = svc.GetOrderFor(ctx, 5, admin)
	assert.NoError(t, err)

	_, err = svc.GetOrderFor(ctx, 5, auth.Identity{UserID: "U2"})
	assert.NoError(t, err)

	tl, err := svc.Timeline(ctx, 5, admin)
	require.NoError(t, err)
	assert.Len(t, tl, 1)
}
