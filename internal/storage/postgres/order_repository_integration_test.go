package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestOrderRepository_PostgresCreateNumberedGetAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	fx := seedCatalog(t, store)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	created, err := repo.CreateNumbered(ctx, sampleOrder(fx, "Rui"), domain.GenerateOrderNumber)
	require.NoError(t, err)
	require.Positive(t, created.ID)
	assert.Equal(t, int64(1), created.Version)
	assert.Regexp(t, `^Enc\d{4}/\d{6}$`, created.OrderNumber)
	require.Len(t, created.Items, 1)
	assert.Positive(t, created.Items[0].ID)

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.OrderNumber, got.OrderNumber)
	assert.True(t, got.Total.Equal(created.Total), "total %s != %s", got.Total, created.Total)
	assert.Equal(t, "12345", got.Payment.Metadata["entity"])
	assert.Equal(t, domain.DeliveryStatusPending, got.Delivery.Status)

	got.Status = domain.OrderStatusConfirmed
	saved, err := repo.Save(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	// Устаревшая версия.
	_, err = repo.Save(ctx, got)
	assert.ErrorIs(t, err, domain.ErrOrderVersionConflict)

	// Номер после присвоения не меняется.
	saved.OrderNumber = "Enc1999/000001"
	_, err = repo.Save(ctx, saved)
	assert.ErrorIs(t, err, domain.ErrOrderNumberAssigned)
}

func TestOrderRepository_PostgresNumbererFailureRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	fx := seedCatalog(t, store)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	boom := errors.New("numberer failed")
	_, err := repo.CreateNumbered(ctx, sampleOrder(fx, "Rui"), func(domain.Order) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, store.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count))
	assert.Zero(t, count)
}

func TestOrderRepository_PostgresListFilters(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	fx := seedCatalog(t, store)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	first, err := repo.CreateNumbered(ctx, sampleOrder(fx, "Rui"), domain.GenerateOrderNumber)
	require.NoError(t, err)

	second := sampleOrder(fx, "Marta")
	second.UserID = &fx.CustomerID
	second, err = repo.CreateNumbered(ctx, second, domain.GenerateOrderNumber)
	require.NoError(t, err)

	now := time.Now()
	tests := []struct {
		name    string
		filters []domain.OrderFilter
		want    []int64
	}{
		{name: "all newest first", want: []int64{second.ID, first.ID}},
		{name: "by number", filters: []domain.OrderFilter{domain.ByOrderNumber{Number: first.OrderNumber}}, want: []int64{first.ID}},
		{name: "by customer name substring", filters: []domain.OrderFilter{domain.ByCustomerName{Name: "ART"}}, want: []int64{second.ID}},
		{name: "by user", filters: []domain.OrderFilter{domain.ByUserID{UserID: fx.CustomerID}}, want: []int64{second.ID}},
		{name: "by email", filters: []domain.OrderFilter{domain.ByContactEmail{Email: "RUI@cliente.test"}}, want: []int64{first.ID}},
		{name: "by shop name", filters: []domain.OrderFilter{domain.ByShopName{Name: "Loja Azul"}}, want: []int64{second.ID, first.ID}},
		{name: "unknown shop", filters: []domain.OrderFilter{domain.ByShopName{Name: "Loja Verde"}}, want: []int64{}},
		{
			name:    "created today",
			filters: []domain.OrderFilter{domain.CreatedOnDays(&now, &now)},
			want:    []int64{second.ID, first.ID},
		},
		{
			name: "status and payment",
			filters: []domain.OrderFilter{
				domain.ByStatus{Status: domain.OrderStatusOpen},
				domain.ByPaymentMethod{MethodID: fx.PaymentMethodID},
			},
			want: []int64{second.ID, first.ID},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := repo.List(ctx, domain.OrderQuery{Filters: tt.filters})
			require.NoError(t, err)
			ids := make([]int64, 0, len(orders))
			for _, o := range orders {
				ids = append(ids, o.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	page, err := repo.List(ctx, domain.OrderQuery{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
	assert.Len(t, page[0].Items, 1)
}

func TestOrderRepository_PostgresGetMissing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	_, err := repo.Get(context.Background(), 4242)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
