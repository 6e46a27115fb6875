package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// ShopNameResolver сообщает название магазина, которому принадлежит товар.
type ShopNameResolver interface {
	ShopNameForProduct(productID int64) (string, bool)
}

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu         sync.RWMutex
	items      map[int64]domain.Order
	nextID     int64
	nextItemID int64
	shops      ShopNameResolver
	now        func() time.Time
}

// OrderRepositoryOption настраивает in-memory репозиторий заказов.
type OrderRepositoryOption func(*orderRepositoryInMemory)

// WithShopNames подключает справочник магазинов для фильтра по названию магазина.
func WithShopNames(shops ShopNameResolver) OrderRepositoryOption {
	return func(r *orderRepositoryInMemory) {
		r.shops = shops
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) OrderRepositoryOption {
	return func(r *orderRepositoryInMemory) {
		if now != nil {
			r.now = now
		}
	}
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository(opts ...OrderRepositoryOption) domain.OrderRepository {
	r := &orderRepositoryInMemory{
		items: make(map[int64]domain.Order),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateNumbered выполняет оба прохода под одной блокировкой.
// При ошибке numberer заказ не сохраняется.
func (r *orderRepositoryInMemory) CreateNumbered(_ context.Context, order domain.Order, numberer domain.OrderNumberer) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.Numbered() {
		return domain.Order{}, domain.ErrOrderNumberAssigned
	}

	order = order.Clone()
	r.nextID++
	order.ID = r.nextID
	now := r.now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	order.Version = 1
	r.assignItemIDs(order.Items)

	number, err := numberer(order)
	if err != nil {
		return domain.Order{}, err
	}
	order.OrderNumber = number

	for _, existing := range r.items {
		if existing.OrderNumber == number {
			return domain.Order{}, domain.ErrOrderNumberAssigned
		}
	}

	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	r.items[order.ID] = order.Clone()
	return order, nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id int64) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

// List применяет фильтры запроса и сортирует по UpdatedAt по убыванию.
func (r *orderRepositoryInMemory) List(_ context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if r.matches(order, query.Filters) {
			result = append(result, order.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if query.Offset > 0 {
		if query.Offset >= len(result) {
			return []domain.Order{}, nil
		}
		result = result[query.Offset:]
	}
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}

	return result, nil
}

// Save перезаписывает заказ, проверяя версию (optimistic locking).
func (r *orderRepositoryInMemory) Save(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}
	if current.OrderNumber != order.OrderNumber {
		return domain.Order{}, domain.ErrOrderNumberAssigned
	}

	order = order.Clone()
	order.CreatedAt = current.CreatedAt
	order.UpdatedAt = r.now()
	order.Version++
	r.assignItemIDs(order.Items)

	r.items[order.ID] = order.Clone()
	return order, nil
}

func (r *orderRepositoryInMemory) assignItemIDs(items []domain.OrderItem) {
	for i := range items {
		if items[i].ID == 0 {
			r.nextItemID++
			items[i].ID = r.nextItemID
		}
	}
}

func (r *orderRepositoryInMemory) matches(order domain.Order, filters []domain.OrderFilter) bool {
	for _, f := range filters {
		if !r.matchFilter(order, f) {
			return false
		}
	}
	return true
}

func (r *orderRepositoryInMemory) matchFilter(order domain.Order, filter domain.OrderFilter) bool {
	switch f := filter.(type) {
	case domain.ByOrderNumber:
		return order.OrderNumber == f.Number
	case domain.ByCustomerName:
		return strings.Contains(strings.ToLower(order.CustomerName), strings.ToLower(f.Name))
	case domain.ByStatus:
		return order.Status == f.Status
	case domain.ByPaymentMethod:
		return order.Payment.MethodID == f.MethodID
	case domain.ByDeliveryMethod:
		return order.Delivery.MethodID == f.MethodID
	case domain.CreatedBetween:
		return f.Contains(order.CreatedAt)
	case domain.ByShopName:
		if r.shops == nil {
			return false
		}
		for _, item := range order.Items {
			if name, ok := r.shops.ShopNameForProduct(item.ProductID); ok && name == f.Name {
				return true
			}
		}
		return false
	case domain.ByUserID:
		return order.BelongsTo(f.UserID)
	case domain.ByContactEmail:
		return strings.EqualFold(order.CustomerEmail, f.Email)
	default:
		return false
	}
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
