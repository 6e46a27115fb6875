package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
	"github.com/vladislavdragonenkov/encontrar/internal/metrics"
)

// DefaultAdminRoles: роли, которые узнают о каждом новом заказе.
var DefaultAdminRoles = []domain.Role{domain.RoleAdmin, domain.RoleManager}

const audienceShopOwner = "shop_owner"

// Fanout рассылает уведомления о новом заказе администраторам и владельцам магазинов.
type Fanout struct {
	sink       domain.NotificationSink
	products   domain.ProductCatalog
	shops      domain.ShopDirectory
	adminRoles []domain.Role
	metrics    *metrics.OrderMetrics
	logger     *log.Entry
}

// FanoutOption настраивает Fanout.
type FanoutOption func(*Fanout)

// WithAdminRoles заменяет список ролей администраторов.
func WithAdminRoles(roles ...domain.Role) FanoutOption {
	return func(f *Fanout) {
		if len(roles) > 0 {
			f.adminRoles = roles
		}
	}
}

// WithFanoutMetrics подключает счётчик отправленных уведомлений.
func WithFanoutMetrics(m *metrics.OrderMetrics) FanoutOption {
	return func(f *Fanout) {
		f.metrics = m
	}
}

// NewFanout создаёт рассыльщик уведомлений о заказах.
func NewFanout(sink domain.NotificationSink, products domain.ProductCatalog, shops domain.ShopDirectory, opts ...FanoutOption) *Fanout {
	f := &Fanout{
		sink:       sink,
		products:   products,
		shops:      shops,
		adminRoles: DefaultAdminRoles,
		logger:     log.WithField("component", "notification-fanout"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// ownerLine: позиция заказа, привязанная к владельцу магазина.
type ownerLine struct {
	ownerID   int64
	productID int64
	quantity  int32
}

// NotifyOnOrderCreated уведомляет роли администраторов и по одному разу каждого владельца
// магазина, чьи товары есть в заказе. Ошибки только логируются.
func (f *Fanout) NotifyOnOrderCreated(ctx context.Context, order domain.Order) {
	logger := f.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})

	headline := "new order placed #" + order.OrderNumber
	for _, role := range f.adminRoles {
		if err := f.sink.NotifyUsersByRole(ctx, headline, headline, role); err != nil {
			logger.WithError(err).WithField("role", role).Warn("failed to notify role about order")
			continue
		}
		f.metrics.RecordNotification(string(role))
	}

	lines := f.ownerLines(ctx, logger, order.Items)
	owners := lo.Uniq(lo.Map(lines, func(l ownerLine, _ int) int64 { return l.ownerID }))
	byOwner := lo.GroupBy(lines, func(l ownerLine) int64 { return l.ownerID })

	for _, ownerID := range owners {
		details := strings.Join(lo.Map(byOwner[ownerID], func(l ownerLine, _ int) string {
			return fmt.Sprintf("ID: %d, Qty: %d", l.productID, l.quantity)
		}), " | ")

		title := fmt.Sprintf("New Order #%s, Products: %s", order.OrderNumber, details)
		message := "Products in your order: " + details
		if err := f.sink.CreateNotification(ctx, title, message, ownerID); err != nil {
			logger.WithError(err).WithField("user_id", ownerID).Warn("failed to notify shop owner")
			continue
		}
		f.metrics.RecordNotification(audienceShopOwner)
	}
}

// ownerLines находит владельца магазина для каждой позиции. Позиции, для которых
// товар, магазин или владелец не найдены, пропускаются.
func (f *Fanout) ownerLines(ctx context.Context, logger *log.Entry, items []domain.OrderItem) []ownerLine {
	owners := make(map[int64]*int64)
	lines := make([]ownerLine, 0, len(items))

	for _, item := range items {
		product, err := f.products.GetProduct(ctx, item.ProductID, true)
		if err != nil || product.ShopID == nil {
			logger.WithError(err).WithField("product_id", item.ProductID).Debug("skip item without shop")
			continue
		}

		owner, seen := owners[*product.ShopID]
		if !seen {
			shop, err := f.shops.GetShop(ctx, *product.ShopID)
			if err != nil {
				logger.WithError(err).WithField("shop_id", *product.ShopID).Debug("skip item with unknown shop")
			} else {
				owner = shop.UserID
			}
			owners[*product.ShopID] = owner
		}
		if owner == nil {
			continue
		}

		lines = append(lines, ownerLine{ownerID: *owner, productID: product.ID, quantity: item.Quantity})
	}
	return lines
}
