package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

func TestCatalog_PostgresLookups(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	fx := seedCatalog(t, store)
	catalog := NewCatalog(store)
	ctx := context.Background()

	product, err := catalog.GetProduct(ctx, fx.ProductID, false)
	require.NoError(t, err)
	require.NotNil(t, product.Price)
	assert.Equal(t, "10.00", product.SalePrice().StringFixed(2))
	require.NotNil(t, product.ShopID)
	assert.Equal(t, fx.ShopID, *product.ShopID)

	_, err = catalog.GetProduct(ctx, fx.HiddenProductID, false)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	hidden, err := catalog.GetProduct(ctx, fx.HiddenProductID, true)
	require.NoError(t, err)
	assert.Nil(t, hidden.Price)
	assert.Equal(t, "11.00", hidden.SalePrice().StringFixed(2))

	shop, err := catalog.GetShop(ctx, fx.ShopID)
	require.NoError(t, err)
	require.NotNil(t, shop.UserID)
	assert.Equal(t, fx.OwnerID, *shop.UserID)

	user, err := catalog.GetUser(ctx, fx.OwnerID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleShopkeeper, user.Role)

	ids, err := catalog.ListUserIDsByRole(ctx, domain.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, []int64{fx.CustomerID}, ids)

	method, err := catalog.GetDeliveryMethod(ctx, fx.DeliveryMethodID)
	require.NoError(t, err)
	assert.Equal(t, "4.50", method.Price.StringFixed(2))

	_, err = catalog.GetPaymentMethod(ctx, fx.PaymentMethodID+100)
	assert.ErrorIs(t, err, domain.ErrPaymentMethodNotFound)

	low, err := catalog.CountLowStock(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, low)
}

func TestCatalog_PostgresReserveIsAllOrNothing(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	fx := seedCatalog(t, store)
	catalog := NewCatalog(store)
	ctx := context.Background()

	err := catalog.Reserve(ctx, []domain.StockLine{
		{ProductID: fx.ProductID, Quantity: 3},
		{ProductID: fx.HiddenProductID, Quantity: 2},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	product, err := catalog.GetProduct(ctx, fx.ProductID, false)
	require.NoError(t, err)
	assert.Equal(t, int32(10), product.Stock)

	require.NoError(t, catalog.Reserve(ctx, []domain.StockLine{{ProductID: fx.ProductID, Quantity: 4}}))
	product, err = catalog.GetProduct(ctx, fx.ProductID, false)
	require.NoError(t, err)
	assert.Equal(t, int32(6), product.Stock)

	err = catalog.Reserve(ctx, []domain.StockLine{{ProductID: 999, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	require.NoError(t, catalog.Release(ctx, []domain.StockLine{
		{ProductID: fx.ProductID, Quantity: 4},
		{ProductID: 999, Quantity: 1},
	}))
	product, err = catalog.GetProduct(ctx, fx.ProductID, false)
	require.NoError(t, err)
	assert.Equal(t, int32(10), product.Stock)
}
