package orders

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestCreateOrder_Anonymous(t *testing.T) {
	f := newFixture(t)
	req := standardRequest()

	order, err := f.svc.CreateOrder(context.Background(), Caller{}, req)
	require.NoError(t, err)

	assert.Positive(t, order.ID)
	assert.Regexp(t, `^Enc\d{4}/\d{6}$`, order.OrderNumber)
	assert.Equal(t, domain.OrderStatusOpen, order.Status)
	assert.Nil(t, order.UserID)
	assert.Equal(t, "25.50", order.Total.StringFixed(2))
	assert.Equal(t, "4.50", order.Delivery.Price.StringFixed(2))
	assert.Equal(t, "Correio", order.Delivery.MethodName)
	assert.Equal(t, domain.DeliveryStatusPending, order.Delivery.Status)
	assert.Equal(t, "Referência", order.Payment.MethodName)

	wantItems := []domain.OrderItem{
		{ProductID: productPriced, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{ProductID: productMarkup, Quantity: 1, Price: decimal.RequireFromString("5.50")},
	}
	if diff := cmp.Diff(wantItems, order.Items,
		cmpopts.IgnoreFields(domain.OrderItem{}, "ID"),
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
	); diff != "" {
		t.Fatalf("items mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, int32(8), f.stock(t, productPriced))
	assert.Equal(t, int32(9), f.stock(t, productMarkup))

	stored, err := f.orders.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderNumber, stored.OrderNumber)

	require.Len(t, f.mailer.calls, 1)
	assert.Equal(t, req.Contact.Email, f.mailer.calls[0].to)
	assert.True(t, f.mailer.calls[0].total.Equal(order.Total))
	require.Len(t, f.notifier.orders, 1)
	assert.Equal(t, order.ID, f.notifier.orders[0].ID)

	assert.Equal(t, []string{
		domain.TimelineOrderCreated,
		domain.TimelineOrderNumbered,
		domain.TimelineInvoiceMailed,
		domain.TimelineNotified,
	}, timelineTypes(t, f, order.ID))

	pending := f.outbox.AllPending()
	require.Len(t, pending, 1)
	assert.Equal(t, domain.EventOrderCreated, pending[0].EventType)
	assert.Equal(t, domain.AggregateOrder, pending[0].AggregateType)

	var payload domain.OrderEventPayload
	require.NoError(t, json.Unmarshal(pending[0].Payload, &payload))
	assert.Equal(t, order.OrderNumber, payload.OrderNumber)
	assert.Equal(t, "25.50", payload.Total)
}

func TestCreateOrder_RegisteredUserOwnsOrder(t *testing.T) {
	f := newFixture(t)

	order := mustCreate(t, f, customerCaller, standardRequest())

	require.NotNil(t, order.UserID)
	assert.Equal(t, customerID, *order.UserID)
}

func TestCreateOrder_DuplicateProductLinesKept(t *testing.T) {
	f := newFixture(t)

	order := mustCreate(t, f, Caller{}, newRequest(
		ItemRequest{ProductID: productPriced, Quantity: 1},
		ItemRequest{ProductID: productPriced, Quantity: 3},
	))

	assert.Len(t, order.Items, 2)
	assert.Equal(t, "40.00", order.Total.StringFixed(2))
	assert.Equal(t, int32(6), f.stock(t, productPriced))
}

func TestCreateOrder_HiddenProduct(t *testing.T) {
	f := newFixture(t)
	req := newRequest(ItemRequest{ProductID: productHidden, Quantity: 1})

	_, err := f.svc.CreateOrder(context.Background(), Caller{}, req)
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err), "got %v", err)

	_, err = f.svc.CreateOrder(context.Background(), customerCaller, req)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	order, err := f.svc.CreateOrder(context.Background(), adminCaller, req)
	require.NoError(t, err)
	assert.Equal(t, "3.00", order.Total.StringFixed(2))
}

func TestCreateOrder_RoleComesFromDirectory(t *testing.T) {
	f := newFixture(t)
	req := newRequest(ItemRequest{ProductID: productHidden, Quantity: 1})

	// Роль в токене не даёт прав, если справочник говорит иначе.
	forged := Caller{UserID: customerID, Role: domain.RoleAdmin}
	_, err := f.svc.CreateOrder(context.Background(), forged, req)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.svc.CreateOrder(context.Background(), Caller{UserID: 999, Role: domain.RoleCustomer}, req)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateOrderRequest)
		want   error
	}{
		{
			name:   "no items",
			mutate: func(r *CreateOrderRequest) { r.Items = nil },
			want:   domain.ErrItemsRequired,
		},
		{
			name:   "zero quantity",
			mutate: func(r *CreateOrderRequest) { r.Items[0].Quantity = 0 },
			want:   domain.ErrItemQtyInvalid,
		},
		{
			name:   "negative quantity",
			mutate: func(r *CreateOrderRequest) { r.Items[1].Quantity = -2 },
			want:   domain.ErrItemQtyInvalid,
		},
		{
			name:   "missing name",
			mutate: func(r *CreateOrderRequest) { r.Contact.Name = "  " },
			want:   domain.ErrContactRequired,
		},
		{
			name:   "missing email",
			mutate: func(r *CreateOrderRequest) { r.Contact.Email = "" },
			want:   domain.ErrContactRequired,
		},
		{
			name:   "missing delivery method",
			mutate: func(r *CreateOrderRequest) { r.Delivery.MethodID = 0 },
			want:   domain.ErrDeliveryMethodRequired,
		},
		{
			name:   "missing payment method",
			mutate: func(r *CreateOrderRequest) { r.Payment.MethodID = 0 },
			want:   domain.ErrPaymentMethodRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := standardRequest()
			tt.mutate(&req)

			_, err := f.svc.CreateOrder(context.Background(), Caller{}, req)
			require.ErrorIs(t, err, tt.want)
			assert.True(t, domain.IsValidation(err))

			assert.Equal(t, int32(10), f.stock(t, productPriced))
			assert.Empty(t, f.mailer.calls)
			assert.Empty(t, f.outbox.AllPending())
		})
	}
}

func TestCreateOrder_UnknownMethods(t *testing.T) {
	f := newFixture(t)

	req := standardRequest()
	req.Delivery.MethodID = 42
	_, err := f.svc.CreateOrder(context.Background(), Caller{}, req)
	assert.ErrorIs(t, err, domain.ErrDeliveryMethodNotFound)

	req = standardRequest()
	req.Payment.MethodID = 42
	_, err = f.svc.CreateOrder(context.Background(), Caller{}, req)
	assert.ErrorIs(t, err, domain.ErrPaymentMethodNotFound)
}

func TestCreateOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	req := newRequest(
		ItemRequest{ProductID: productMarkup, Quantity: 1},
		ItemRequest{ProductID: productPriced, Quantity: 11},
	)

	_, err := f.svc.CreateOrder(context.Background(), Caller{}, req)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, domain.IsConflict(err))

	all, err := f.orders.List(context.Background(), domain.OrderQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, int32(10), f.stock(t, productPriced))
	assert.Equal(t, int32(10), f.stock(t, productMarkup))
	assert.Empty(t, f.mailer.calls)
}

func TestCreateOrder_OverflowingDuplicateLinesRejected(t *testing.T) {
	f := newFixture(t)
	req := newRequest(
		ItemRequest{ProductID: productPriced, Quantity: math.MaxInt32},
		ItemRequest{ProductID: productPriced, Quantity: math.MaxInt32},
		ItemRequest{ProductID: productPriced, Quantity: 3},
	)

	_, err := f.svc.CreateOrder(context.Background(), Caller{}, req)
	require.ErrorIs(t, err, domain.ErrItemQtyInvalid)
	assert.True(t, domain.IsValidation(err))

	all, err := f.orders.List(context.Background(), domain.OrderQuery{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, int32(10), f.stock(t, productPriced))
}

func TestCreateOrder_PersistFailureReleasesStock(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("db is down")
	svc := f.build(failingOrders{OrderRepository: f.orders, err: boom})

	_, err := svc.CreateOrder(context.Background(), Caller{}, standardRequest())
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int32(10), f.stock(t, productPriced))
	assert.Equal(t, int32(10), f.stock(t, productMarkup))
	assert.Empty(t, f.mailer.calls)
	assert.Empty(t, f.notifier.orders)
}

func TestCreateOrder_MailFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("smtp timeout")

	order, err := f.svc.CreateOrder(context.Background(), Caller{}, standardRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)

	require.Len(t, f.mailer.calls, 1)
	require.Len(t, f.notifier.orders, 1)
	assert.NotContains(t, timelineTypes(t, f, order.ID), domain.TimelineInvoiceMailed)
}

func TestCreateOrder_SideEffectsSurviveRequestCancellation(t *testing.T) {
	f := newFixture(t, WithSideEffectTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.CreateOrder(ctx, Caller{}, standardRequest())
	require.NoError(t, err)

	require.Len(t, f.mailer.calls, 1)
	assert.NoError(t, f.mailer.calls[0].ctxErr)
	assert.True(t, f.mailer.calls[0].deadline)
}

func TestCreateOrder_WithoutOptionalCollaborators(t *testing.T) {
	f := newFixture(t)
	svc := NewService(Deps{
		Orders:    f.orders,
		Inventory: f.catalog,
		Products:  f.catalog,
		Methods:   f.catalog,
		Users:     f.catalog,
	})

	order, err := svc.CreateOrder(context.Background(), Caller{}, standardRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderNumber)
}

func TestFailureReason(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"ok":         {err: nil, want: ""},
		"validation": {err: domain.NewValidationError("items", domain.ErrItemsRequired), want: "validation"},
		"not found":  {err: domain.ErrProductNotFound, want: "not_found"},
		"conflict":   {err: domain.ErrInsufficientStock, want: "conflict"},
		"forbidden":  {err: domain.ErrForbidden, want: "forbidden"},
		"internal":   {err: errors.New("boom"), want: "internal"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(tt.err))
		})
	}
}
