package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// Catalog: in-memory справочники каталога и склад для локальной разработки и тестов.
// Один экземпляр обслуживает товары, магазины, пользователей и способы доставки/оплаты.
type Catalog struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	shops           map[int64]domain.Shop
	users           map[int64]domain.User
	deliveryMethods map[int64]domain.DeliveryMethod
	paymentMethods  map[int64]domain.PaymentMethod
}

// NewCatalog создаёт пустой in-memory каталог.
func NewCatalog() *Catalog {
	return &Catalog{
		products:        make(map[int64]domain.Product),
		shops:           make(map[int64]domain.Shop),
		users:           make(map[int64]domain.User),
		deliveryMethods: make(map[int64]domain.DeliveryMethod),
		paymentMethods:  make(map[int64]domain.PaymentMethod),
	}
}

// PutProduct добавляет или заменяет товар.
func (c *Catalog) PutProduct(p domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

// PutShop добавляет или заменяет магазин.
func (c *Catalog) PutShop(s domain.Shop) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shops[s.ID] = s
}

// PutUser добавляет или заменяет пользователя.
func (c *Catalog) PutUser(u domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

// PutDeliveryMethod добавляет или заменяет способ доставки.
func (c *Catalog) PutDeliveryMethod(m domain.DeliveryMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveryMethods[m.ID] = m
}

// PutPaymentMethod добавляет или заменяет способ оплаты.
func (c *Catalog) PutPaymentMethod(m domain.PaymentMethod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paymentMethods[m.ID] = m
}

func (c *Catalog) GetProduct(_ context.Context, id int64, includeHidden bool) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok || (!p.Visible && !includeHidden) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (c *Catalog) CountLowStock(_ context.Context, threshold int32) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count := 0
	for _, p := range c.products {
		if p.Stock < threshold {
			count++
		}
	}
	return count, nil
}

func (c *Catalog) GetShop(_ context.Context, id int64) (domain.Shop, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.shops[id]
	if !ok {
		return domain.Shop{}, domain.ErrShopNotFound
	}
	return s, nil
}

func (c *Catalog) GetUser(_ context.Context, id int64) (domain.User, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	u, ok := c.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (c *Catalog) ListUserIDsByRole(_ context.Context, role domain.Role) ([]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int64, 0)
	for _, u := range c.users {
		if u.Role == role {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (c *Catalog) GetDeliveryMethod(_ context.Context, id int64) (domain.DeliveryMethod, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.deliveryMethods[id]
	if !ok || !m.Active {
		return domain.DeliveryMethod{}, domain.ErrDeliveryMethodNotFound
	}
	return m, nil
}

func (c *Catalog) GetPaymentMethod(_ context.Context, id int64) (domain.PaymentMethod, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.paymentMethods[id]
	if !ok || !m.Active {
		return domain.PaymentMethod{}, domain.ErrPaymentMethodNotFound
	}
	return m, nil
}

// Reserve списывает остатки под одной блокировкой: сначала проверяет все строки, потом списывает.
func (c *Catalog) Reserve(_ context.Context, lines []domain.StockLine) error {
	if errs := domain.ValidateStockLines(lines); len(errs) > 0 {
		return errs[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range lines {
		p, ok := c.products[line.ProductID]
		if !ok {
			return domain.ErrProductNotFound
		}
		if p.Stock < line.Quantity {
			return domain.ErrInsufficientStock
		}
	}
	for _, line := range lines {
		p := c.products[line.ProductID]
		p.Stock -= line.Quantity
		c.products[line.ProductID] = p
	}
	return nil
}

// Release возвращает остатки. Удалённые из каталога товары пропускаются.
func (c *Catalog) Release(_ context.Context, lines []domain.StockLine) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, line := range lines {
		p, ok := c.products[line.ProductID]
		if !ok || line.Quantity <= 0 {
			continue
		}
		p.Stock += line.Quantity
		c.products[line.ProductID] = p
	}
	return nil
}

// ShopNameForProduct возвращает название магазина, которому принадлежит товар.
func (c *Catalog) ShopNameForProduct(productID int64) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[productID]
	if !ok || p.ShopID == nil {
		return "", false
	}
	s, ok := c.shops[*p.ShopID]
	if !ok {
		return "", false
	}
	return s.Name, true
}

var (
	_ domain.ProductCatalog = (*Catalog)(nil)
	_ domain.ShopDirectory  = (*Catalog)(nil)
	_ domain.UserDirectory  = (*Catalog)(nil)
	_ domain.MethodCatalog  = (*Catalog)(nil)
	_ domain.Inventory      = (*Catalog)(nil)
)
