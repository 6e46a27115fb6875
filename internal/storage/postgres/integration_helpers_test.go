package postgres

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

const postgresImage = "postgres:16-alpine"

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

func openPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := store.MigrateUp(ctx, 0); err != nil {
		t.Fatalf("migrate up: %v", err)
	}
	truncateAllTablesForIntegrationTest(t, store)

	return store
}

// openRawPostgresStoreForIntegrationTest подключается к ENC_POSTGRES_TEST_DSN,
// а без него поднимает общий контейнер PostgreSQL на весь прогон пакета.
func openRawPostgresStoreForIntegrationTest(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("postgres integration tests are skipped in -short mode")
	}

	dsn := strings.TrimSpace(os.Getenv("ENC_POSTGRES_TEST_DSN"))
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		dsn = sharedContainerDSN(t)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := Open(ctx, dsn)
	if err != nil {
		t.Skipf("postgres is not available for integration tests: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sharedContainerDSN(t *testing.T) string {
	t.Helper()

	containerOnce.Do(func() {
		ctx := context.Background()
		ctr, err := tcpostgres.Run(ctx, postgresImage,
			tcpostgres.WithDatabase("encontrar"),
			tcpostgres.WithUsername("encontrar"),
			tcpostgres.WithPassword("encontrar"),
			tcpostgres.BasicWaitStrategies(),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = ctr.ConnectionString(ctx, "sslmode=disable")
	})
	if containerErr != nil {
		t.Skipf("start postgres container: %v", containerErr)
	}
	return containerDSN
}

func truncateAllTablesForIntegrationTest(t *testing.T, store *Store) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := store.DB().ExecContext(ctx, `
		TRUNCATE TABLE
			idempotency_keys,
			outbox_messages,
			notifications,
			timeline_events,
			order_items,
			orders,
			products,
			shops,
			delivery_methods,
			payment_methods,
			users
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate integration tables: %v", err)
	}
}

// catalogFixture: минимальный каталог для сценариев с заказами.
type catalogFixture struct {
	OwnerID          int64
	CustomerID       int64
	ShopID           int64
	ProductID        int64
	HiddenProductID  int64
	DeliveryMethodID int64
	PaymentMethodID  int64
}

func seedCatalog(t *testing.T, store *Store) catalogFixture {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db := store.DB()
	var f catalogFixture
	mustScan := func(dst *int64, query string, args ...any) {
		t.Helper()
		if err := db.QueryRowContext(ctx, query, args...).Scan(dst); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}

	mustScan(&f.OwnerID, `INSERT INTO users (name, email, role) VALUES ('Ana', 'ana@loja.test', 'shopkeeper') RETURNING id`)
	mustScan(&f.CustomerID, `INSERT INTO users (name, email, role) VALUES ('Rui', 'rui@cliente.test', 'customer') RETURNING id`)
	mustScan(&f.ShopID, `INSERT INTO shops (shop_name, user_id) VALUES ('Loja Azul', $1) RETURNING id`, f.OwnerID)
	mustScan(&f.ProductID, `
		INSERT INTO products (name, price, purchase_price, commission, visible, stock, shop_id)
		VALUES ('Caneca', 10.00, 8.00, 5, TRUE, 10, $1) RETURNING id`, f.ShopID)
	mustScan(&f.HiddenProductID, `
		INSERT INTO products (name, price, purchase_price, commission, visible, stock, shop_id)
		VALUES ('Prato', NULL, 10.00, 0, FALSE, 1, $1) RETURNING id`, f.ShopID)
	mustScan(&f.DeliveryMethodID, `INSERT INTO delivery_methods (name, price, active) VALUES ('Correio', 4.50, TRUE) RETURNING id`)
	mustScan(&f.PaymentMethodID, `INSERT INTO payment_methods (name, active) VALUES ('Multibanco', TRUE) RETURNING id`)

	return f
}

func sampleOrder(f catalogFixture, name string) domain.Order {
	price := decimal.RequireFromString("10.00")
	items := []domain.OrderItem{{ProductID: f.ProductID, Quantity: 2, Price: price}}
	return domain.Order{
		CustomerName:  name,
		CustomerEmail: strings.ToLower(name) + "@cliente.test",
		CustomerPhone: "+351900000000",
		Items:         items,
		Status:        domain.OrderStatusOpen,
		Total:         domain.OrderTotal(items),
		Delivery: domain.OrderDelivery{
			MethodID:   f.DeliveryMethodID,
			MethodName: "Correio",
			Status:     domain.DeliveryStatusPending,
			Address:    "Rua Augusta 1",
			City:       "Lisboa",
			PostalCode: "1100-048",
			Country:    "PT",
			Price:      decimal.RequireFromString("4.50"),
		},
		Payment: domain.OrderPayment{
			MethodID:   f.PaymentMethodID,
			MethodName: "Multibanco",
			Metadata:   map[string]string{"entity": "12345"},
		},
	}
}
