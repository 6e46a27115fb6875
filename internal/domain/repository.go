package domain

import "context"

// OrderNumberer вычисляет номер заказа по уже сохранённому заказу.
type OrderNumberer func(order Order) (string, error)

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// CreateNumbered сохраняет новый заказ в два прохода в одной транзакции:
	// вставка без номера (появляются ID и CreatedAt), затем запись номера от numberer.
	// Заказ без номера наружу не виден.
	CreateNumbered(ctx context.Context, order Order, numberer OrderNumberer) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id int64) (Order, error)
	// List возвращает заказы по фильтрам запроса, новые изменения первыми.
	List(ctx context.Context, query OrderQuery) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	// Позиции, доставка и оплата заменяются целиком. Возвращает заказ с новой версией.
	Save(ctx context.Context, order Order) (Order, error)
}

// NotificationRepository хранит уведомления пользователей.
type NotificationRepository interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	ListByUser(ctx context.Context, userID int64) ([]Notification, error)
	MarkRead(ctx context.Context, userID, id int64) (Notification, error)
}
