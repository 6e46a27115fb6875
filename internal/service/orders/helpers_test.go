package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/storage/memory"
)

const (
	adminID     int64 = 1
	customerID  int64 = 2
	otherUserID int64 = 3
	ownerID     int64 = 100

	shopID int64 = 7

	productPriced int64 = 10 // 10.00, склад 10
	productMarkup int64 = 11 // закупка 5.00, продажа 5.50, склад 10
	productHidden int64 = 12 // скрытый, 3.00, склад 5

	deliveryMethodID int64 = 1
	paymentMethodID  int64 = 1
)

var (
	adminCaller    = Caller{UserID: adminID, Role: domain.RoleAdmin}
	customerCaller = Caller{UserID: customerID, Role: domain.RoleCustomer}
	otherCaller    = Caller{UserID: otherUserID, Role: domain.RoleCustomer}
)

type recordingMailer struct {
	mu    sync.Mutex
	err   error
	calls []mailCall
}

type mailCall struct {
	to       string
	order    domain.Order
	total    decimal.Decimal
	ctxErr   error
	deadline bool
}

func (m *recordingMailer) SendInvoice(ctx context.Context, to string, order domain.Order, total decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hasDeadline := ctx.Deadline()
	m.calls = append(m.calls, mailCall{to: to, order: order, total: total, ctxErr: ctx.Err(), deadline: hasDeadline})
	return m.err
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []domain.Order
}

func (n *recordingNotifier) NotifyOnOrderCreated(_ context.Context, order domain.Order) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
}

// failingOrders подменяет CreateNumbered, остальное делегирует настоящему репозиторию.
type failingOrders struct {
	domain.OrderRepository
	err error
}

func (f failingOrders) CreateNumbered(context.Context, domain.Order, domain.OrderNumberer) (domain.Order, error) {
	return domain.Order{}, f.err
}

type fixture struct {
	catalog  *memory.Catalog
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	outbox   *memory.OutboxRepository
	mailer   *recordingMailer
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	catalog := memory.NewCatalog()
	owner := ownerID
	shop := shopID
	price := decimal.RequireFromString("10.00")
	hiddenPrice := decimal.RequireFromString("3.00")

	catalog.PutUser(domain.User{ID: adminID, Name: "Admin", Email: "admin@encontrar.test", Role: domain.RoleAdmin})
	catalog.PutUser(domain.User{ID: customerID, Name: "Cliente", Email: "cliente@encontrar.test", Role: domain.RoleCustomer})
	catalog.PutUser(domain.User{ID: otherUserID, Name: "Outro", Email: "outro@encontrar.test", Role: domain.RoleCustomer})
	catalog.PutUser(domain.User{ID: ownerID, Name: "Dono", Email: "dono@encontrar.test", Role: domain.RoleShopkeeper})
	catalog.PutShop(domain.Shop{ID: shopID, Name: "Loja Azul", UserID: &owner})
	catalog.PutProduct(domain.Product{ID: productPriced, Name: "Caneca", Price: &price, Visible: true, Stock: 10, ShopID: &shop})
	catalog.PutProduct(domain.Product{
		ID: productMarkup, Name: "Caderno", PurchasePrice: decimal.RequireFromString("5.00"),
		Visible: true, Stock: 10, ShopID: &shop,
	})
	catalog.PutProduct(domain.Product{ID: productHidden, Name: "Amostra", Price: &hiddenPrice, Stock: 5, ShopID: &shop})
	catalog.PutDeliveryMethod(domain.DeliveryMethod{ID: deliveryMethodID, Name: "Correio", Price: decimal.RequireFromString("4.50"), Active: true})
	catalog.PutPaymentMethod(domain.PaymentMethod{ID: paymentMethodID, Name: "Referência", Active: true})

	f := &fixture{
		catalog:  catalog,
		orders:   memory.NewOrderRepository(memory.WithShopNames(catalog)),
		timeline: memory.NewTimelineRepository(),
		outbox:   memory.NewOutboxRepository(),
		mailer:   &recordingMailer{},
		notifier: &recordingNotifier{},
	}
	f.svc = f.build(f.orders, opts...)
	return f
}

func (f *fixture) build(orders domain.OrderRepository, opts ...Option) *Service {
	return NewService(Deps{
		Orders:    orders,
		Timeline:  f.timeline,
		Outbox:    f.outbox,
		Inventory: f.catalog,
		Products:  f.catalog,
		Methods:   f.catalog,
		Users:     f.catalog,
		Mailer:    f.mailer,
		Notifier:  f.notifier,
	}, opts...)
}

func (f *fixture) stock(t *testing.T, productID int64) int32 {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), productID, true)
	require.NoError(t, err)
	return p.Stock
}

func newRequest(items ...ItemRequest) CreateOrderRequest {
	return CreateOrderRequest{
		Contact: Contact{
			Name:  gofakeit.Name(),
			Email: gofakeit.Email(),
			Phone: gofakeit.Phone(),
		},
		Items: items,
		Delivery: DeliveryRequest{
			MethodID: deliveryMethodID,
			Address:  gofakeit.Street(),
			City:     gofakeit.City(),
			Country:  "Angola",
		},
		Payment: PaymentRequest{MethodID: paymentMethodID, Metadata: map[string]string{"entity": "12345"}},
	}
}

func standardRequest() CreateOrderRequest {
	return newRequest(
		ItemRequest{ProductID: productPriced, Quantity: 2},
		ItemRequest{ProductID: productMarkup, Quantity: 1},
	)
}

func mustCreate(t *testing.T, f *fixture, caller Caller, req CreateOrderRequest) domain.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), caller, req)
	require.NoError(t, err)
	return order
}

func timelineTypes(t *testing.T, f *fixture, orderID int64) []string {
	t.Helper()
	events, err := f.timeline.List(context.Background(), orderID)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}
