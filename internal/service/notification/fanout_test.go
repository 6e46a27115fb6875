package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/storage/memory"
)

type sentNotification struct {
	userID  int64
	role    domain.Role
	title   string
	message string
}

type recordingSink struct {
	mu      sync.Mutex
	sent    []sentNotification
	roleErr error
}

func (s *recordingSink) CreateNotification(_ context.Context, title, message string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentNotification{userID: userID, title: title, message: message})
	return nil
}

func (s *recordingSink) NotifyUsersByRole(_ context.Context, title, message string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.roleErr != nil {
		return s.roleErr
	}
	s.sent = append(s.sent, sentNotification{role: role, title: title, message: message})
	return nil
}

func fanoutCatalog() *memory.Catalog {
	catalog := memory.NewCatalog()
	ownerA, ownerB := int64(100), int64(200)
	shopA, shopB, orphan := int64(1), int64(2), int64(3)

	catalog.PutShop(domain.Shop{ID: shopA, Name: "Loja Azul", UserID: &ownerA})
	catalog.PutShop(domain.Shop{ID: shopB, Name: "Loja Verde", UserID: &ownerB})
	catalog.PutShop(domain.Shop{ID: orphan, Name: "Sem dono"})
	catalog.PutProduct(domain.Product{ID: 1, Visible: true, ShopID: &shopA})
	catalog.PutProduct(domain.Product{ID: 2, ShopID: &shopA})
	catalog.PutProduct(domain.Product{ID: 3, Visible: true, ShopID: &shopB})
	catalog.PutProduct(domain.Product{ID: 4, Visible: true, ShopID: &orphan})
	catalog.PutProduct(domain.Product{ID: 6, Visible: true})
	return catalog
}

func TestFanout_NotifyOnOrderCreated(t *testing.T) {
	catalog := fanoutCatalog()
	sink := &recordingSink{}
	fanout := NewFanout(sink, catalog, catalog)

	fanout.NotifyOnOrderCreated(context.Background(), domain.Order{
		ID:          9,
		OrderNumber: "Enc2024/000009",
		Items: []domain.OrderItem{
			{ProductID: 3, Quantity: 1},
			{ProductID: 1, Quantity: 2},
			{ProductID: 5, Quantity: 1},
			{ProductID: 2, Quantity: 1},
			{ProductID: 4, Quantity: 1},
			{ProductID: 6, Quantity: 1},
		},
	})

	assert.Equal(t, []sentNotification{
		{role: domain.RoleAdmin, title: "new order placed #Enc2024/000009", message: "new order placed #Enc2024/000009"},
		{role: domain.RoleManager, title: "new order placed #Enc2024/000009", message: "new order placed #Enc2024/000009"},
		{
			userID:  200,
			title:   "New Order #Enc2024/000009, Products: ID: 3, Qty: 1",
			message: "Products in your order: ID: 3, Qty: 1",
		},
		{
			userID:  100,
			title:   "New Order #Enc2024/000009, Products: ID: 1, Qty: 2 | ID: 2, Qty: 1",
			message: "Products in your order: ID: 1, Qty: 2 | ID: 2, Qty: 1",
		},
	}, sink.sent)
}

func TestFanout_RoleFailureDoesNotStopOwners(t *testing.T) {
	catalog := fanoutCatalog()
	sink := &recordingSink{roleErr: errors.New("directory unavailable")}
	fanout := NewFanout(sink, catalog, catalog, WithAdminRoles(domain.RoleSales))

	fanout.NotifyOnOrderCreated(context.Background(), domain.Order{
		OrderNumber: "Enc2024/000010",
		Items:       []domain.OrderItem{{ProductID: 1, Quantity: 1}},
	})

	require.Len(t, sink.sent, 1)
	assert.Equal(t, int64(100), sink.sent[0].userID)
}

func TestFanout_WithNotificationService(t *testing.T) {
	catalog := fanoutCatalog()
	catalog.PutUser(domain.User{ID: 1, Role: domain.RoleAdmin})
	catalog.PutUser(domain.User{ID: 100, Role: domain.RoleShopkeeper})

	svc := NewService(memory.NewNotificationRepository(), catalog, nil)
	fanout := NewFanout(svc, catalog, catalog)

	fanout.NotifyOnOrderCreated(context.Background(), domain.Order{
		OrderNumber: "Enc2024/000011",
		Items: []domain.OrderItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 3},
		},
	})

	ownerInbox, err := svc.ListForUser(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, ownerInbox, 1)
	assert.Equal(t, "New Order #Enc2024/000011, Products: ID: 1, Qty: 2 | ID: 2, Qty: 3", ownerInbox[0].Title)

	adminInbox, err := svc.ListForUser(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, adminInbox, 1)
}
