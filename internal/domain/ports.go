package domain

import (
	"context"
	"time"
)

// ProductCatalog: чтение товаров каталога.
type ProductCatalog interface {
	// GetProduct возвращает товар. Скрытый товар без includeHidden даёт ErrProductNotFound.
	GetProduct(ctx context.Context, id int64, includeHidden bool) (Product, error)
	// CountLowStock считает товары с остатком ниже threshold.
	CountLowStock(ctx context.Context, threshold int32) (int, error)
}

// ShopDirectory: справочник магазинов.
type ShopDirectory interface {
	GetShop(ctx context.Context, id int64) (Shop, error)
}

// MethodCatalog: справочник способов доставки и оплаты.
type MethodCatalog interface {
	GetDeliveryMethod(ctx context.Context, id int64) (DeliveryMethod, error)
	GetPaymentMethod(ctx context.Context, id int64) (PaymentMethod, error)
}

// UserDirectory: справочник пользователей.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (User, error)
	ListUserIDsByRole(ctx context.Context, role Role) ([]int64, error)
}

// Inventory управляет складскими остатками.
type Inventory interface {
	// Reserve атомарно списывает остатки по всем строкам или не списывает ничего.
	// Нехватка хотя бы по одной строке даёт ErrInsufficientStock.
	Reserve(ctx context.Context, lines []StockLine) error
	// Release возвращает остатки на склад (компенсация).
	Release(ctx context.Context, lines []StockLine) error
}

// NotificationSink: канал уведомлений пользователям.
type NotificationSink interface {
	CreateNotification(ctx context.Context, title, message string, userID int64) error
	NotifyUsersByRole(ctx context.Context, title, message string, role Role) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID int64) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Агрегаты, события которых проходят через outbox.
const (
	AggregateOrder        = "order"
	AggregateNotification = "notification"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
