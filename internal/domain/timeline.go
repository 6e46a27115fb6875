package domain

import "time"

// Типы событий в истории заказа.
const (
	TimelineOrderCreated  = "order.created"
	TimelineOrderNumbered = "order.numbered"
	TimelineOrderUpdated  = "order.updated"
	TimelineStatusChanged = "order.status_changed"
	TimelineStockReleased = "order.stock_released"
	TimelineInvoiceMailed = "order.invoice_mailed"
	TimelineNotified      = "order.notified"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  int64
	Type     string
	Reason   string
	Occurred time.Time
}
