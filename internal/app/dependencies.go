package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/encontrar/internal/health"
	"github.com/vladislavdragonenkov/encontrar/internal/storage/memory"
	"github.com/vladislavdragonenkov/encontrar/internal/storage/postgres"
)

// catalogStore объединяет справочники и склад, которые хранилище отдаёт одним объектом.
type catalogStore interface {
	domain.ProductCatalog
	domain.ShopDirectory
	domain.MethodCatalog
	domain.UserDirectory
	domain.Inventory
}

// runtimeDependencies: репозитории выбранного хранилища.
type runtimeDependencies struct {
	repo             domain.OrderRepository
	outboxRepo       domain.OutboxRepository
	timelineRepo     domain.TimelineRepository
	idempotencyRepo  domain.IdempotencyRepository
	notificationRepo domain.NotificationRepository
	catalog          catalogStore
	storageChecker   healthcheck.Checker
	closeFn          func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	if driver == "" {
		driver = StorageDriverMemory
	}

	switch driver {
	case StorageDriverMemory:
		catalog := memory.NewCatalog()
		if cfg.MemorySeedDemo {
			seedDemoCatalog(catalog)
		}
		logger.WithField("seed_demo", cfg.MemorySeedDemo).Info("using in-memory storage")
		return &runtimeDependencies{
			repo:             memory.NewOrderRepository(memory.WithShopNames(catalog)),
			outboxRepo:       memory.NewOutboxRepository(),
			timelineRepo:     memory.NewTimelineRepository(),
			idempotencyRepo:  memory.NewIdempotencyRepository(),
			notificationRepo: memory.NewNotificationRepository(),
			catalog:          catalog,
			storageChecker: healthcheck.NewStaticChecker("storage",
				healthcheck.StatusHealthy, "in-memory storage"),
			closeFn: func() error { return nil },
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}

		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}

		logger.Info("using postgres storage")
		return &runtimeDependencies{
			repo:             postgres.NewOrderRepository(store),
			outboxRepo:       postgres.NewOutboxRepository(store),
			timelineRepo:     postgres.NewTimelineRepository(store),
			idempotencyRepo:  postgres.NewIdempotencyRepository(store),
			notificationRepo: postgres.NewNotificationRepository(store),
			catalog:          postgres.NewCatalog(store),
			storageChecker:   healthcheck.NewPingChecker("storage", store),
			closeFn:          store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

// seedDemoCatalog заполняет пустой каталог минимальным набором для ручной проверки API.
func seedDemoCatalog(catalog *memory.Catalog) {
	adminID, shopkeeperID, shopID := int64(1), int64(2), int64(1)

	catalog.PutUser(domain.User{ID: adminID, Name: "Administrador", Email: "admin@encontrar.ao", Role: domain.RoleAdmin})
	catalog.PutUser(domain.User{ID: shopkeeperID, Name: "Loja Kianda", Email: "kianda@encontrar.ao", Role: domain.RoleShopkeeper})
	catalog.PutUser(domain.User{ID: 3, Name: "Cliente Demo", Email: "cliente@encontrar.ao", Role: domain.RoleCustomer})
	catalog.PutShop(domain.Shop{ID: shopID, Name: "Kianda", UserID: &shopkeeperID})

	price := func(raw string) *decimal.Decimal {
		d := decimal.RequireFromString(raw)
		return &d
	}
	catalog.PutProduct(domain.Product{ID: 1, Name: "Camisola Palanca", Price: price("8500.00"), Visible: true, Stock: 50, ShopID: &shopID})
	catalog.PutProduct(domain.Product{ID: 2, Name: "Café de Amboim 500g", Price: price("3200.00"), Visible: true, Stock: 120, ShopID: &shopID})
	catalog.PutProduct(domain.Product{
		ID:            3,
		Name:          "Cesto artesanal",
		PurchasePrice: decimal.RequireFromString("4000.00"),
		Commission:    decimal.RequireFromString("15"),
		Visible:       true,
		Stock:         4,
		ShopID:        &shopID,
	})

	catalog.PutDeliveryMethod(domain.DeliveryMethod{ID: 1, Name: "Entrega em Luanda", Price: decimal.RequireFromString("1500.00"), Active: true})
	catalog.PutDeliveryMethod(domain.DeliveryMethod{ID: 2, Name: "Levantamento na loja", Price: decimal.Zero, Active: true})
	catalog.PutPaymentMethod(domain.PaymentMethod{ID: 1, Name: "Multicaixa Express", Active: true})
	catalog.PutPaymentMethod(domain.PaymentMethod{ID: 2, Name: "Transferência bancária", Active: true})
}
