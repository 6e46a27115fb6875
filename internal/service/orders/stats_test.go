package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Среда, 15 мая 2024.
	now := time.Date(2024, time.May, 15, 12, 0, 0, 0, time.UTC)

	createAt := func(at time.Time, status domain.OrderStatus) domain.Order {
		t.Helper()
		f.svc.assembler.now = func() time.Time { return at }
		order := mustCreate(t, f, Caller{}, newRequest(ItemRequest{ProductID: productPriced, Quantity: 1}))
		switch status {
		case domain.OrderStatusDelivered:
			_, err := f.svc.UpdateOrder(ctx, adminCaller, order.ID, UpdateOrderRequest{Status: statusPtr(domain.OrderStatusConfirmed)})
			require.NoError(t, err)
			fallthrough
		case domain.OrderStatusConfirmed, domain.OrderStatusCancelled:
			var err error
			order, err = f.svc.UpdateOrder(ctx, adminCaller, order.ID, UpdateOrderRequest{Status: statusPtr(status)})
			require.NoError(t, err)
		}
		return order
	}

	createAt(now.Add(-2*time.Hour), domain.OrderStatusConfirmed)
	createAt(time.Date(2024, time.May, 14, 9, 0, 0, 0, time.UTC), domain.OrderStatusDelivered)
	createAt(time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC), domain.OrderStatusCancelled)
	createAt(time.Date(2024, time.May, 13, 8, 0, 0, 0, time.UTC), domain.OrderStatusOpen)
	// Прошлая неделя не учитывается.
	createAt(time.Date(2024, time.May, 12, 23, 59, 0, 0, time.UTC), domain.OrderStatusConfirmed)

	wantLowStock, err := f.catalog.CountLowStock(ctx, defaultLowStockThreshold)
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx, adminCaller, now)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.ConfirmedToday)
	assert.Equal(t, 1, stats.ConfirmedThisWeek)
	assert.Equal(t, 1, stats.DeliveredThisWeek)
	assert.Equal(t, "30.00", stats.TotalSalesThisWeek.StringFixed(2))
	assert.Equal(t, wantLowStock, stats.LowStockProductsCount)
	assert.Equal(t, time.Date(2024, time.May, 13, 0, 0, 0, 0, time.UTC), stats.WeekStart)
	assert.Equal(t, time.Date(2024, time.May, 20, 0, 0, 0, 0, time.UTC), stats.WeekEnd)
}

func TestStats_RequiresPrivilegedCaller(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Stats(context.Background(), customerCaller, time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	forged := Caller{UserID: customerID, Role: domain.RoleAdmin}
	_, err = f.svc.Stats(context.Background(), forged, time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)

	unknown := Caller{UserID: 999, Role: domain.RoleAdmin}
	_, err = f.svc.Stats(context.Background(), unknown, time.Now())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestStats_LowStockThresholdOption(t *testing.T) {
	f := newFixture(t, WithLowStockThreshold(11))

	stats, err := f.svc.Stats(context.Background(), adminCaller, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.LowStockProductsCount)
}
