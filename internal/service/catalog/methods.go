package catalog

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

const (
	defaultCacheSize = 256
	defaultCacheTTL  = time.Minute
)

// CachedMethods кэширует способы доставки и оплаты поверх справочника.
// Кэшируются только найденные записи, ошибки всегда идут в источник.
type CachedMethods struct {
	next     domain.MethodCatalog
	delivery *expirable.LRU[int64, domain.DeliveryMethod]
	payment  *expirable.LRU[int64, domain.PaymentMethod]
	logger   *log.Entry
}

// NewCachedMethods оборачивает next в LRU с временем жизни записи ttl.
func NewCachedMethods(next domain.MethodCatalog, size int, ttl time.Duration) *CachedMethods {
	if size <= 0 {
		size = defaultCacheSize
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedMethods{
		next:     next,
		delivery: expirable.NewLRU[int64, domain.DeliveryMethod](size, nil, ttl),
		payment:  expirable.NewLRU[int64, domain.PaymentMethod](size, nil, ttl),
		logger:   log.WithField("component", "method-cache"),
	}
}

func (c *CachedMethods) GetDeliveryMethod(ctx context.Context, id int64) (domain.DeliveryMethod, error) {
	if m, ok := c.delivery.Get(id); ok {
		return m, nil
	}
	m, err := c.next.GetDeliveryMethod(ctx, id)
	if err != nil {
		return domain.DeliveryMethod{}, err
	}
	c.delivery.Add(id, m)
	return m, nil
}

func (c *CachedMethods) GetPaymentMethod(ctx context.Context, id int64) (domain.PaymentMethod, error) {
	if m, ok := c.payment.Get(id); ok {
		return m, nil
	}
	m, err := c.next.GetPaymentMethod(ctx, id)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	c.payment.Add(id, m)
	return m, nil
}

// purge сбрасывает оба кэша.
func (c *CachedMethods) purge() {
	c.delivery.Purge()
	c.payment.Purge()
	c.logger.Debug("method cache purged")
}

var _ domain.MethodCatalog = (*CachedMethods)(nil)
