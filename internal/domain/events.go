package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Типы событий, которые проходят через outbox.
const (
	EventOrderCreated        = "order.created"
	EventOrderUpdated        = "order.updated"
	EventOrderStatusChanged  = "order.status_changed"
	EventNotificationCreated = "notification.created"
)

// OrderEventPayload: тело события заказа.
type OrderEventPayload struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	PrevStatus  string    `json:"prev_status,omitempty"`
	UserID      *int64    `json:"user_id,omitempty"`
	Email       string    `json:"email"`
	Total       string    `json:"total"`
	ItemsCount  int       `json:"items_count"`
	Version     int64     `json:"version"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// NotificationEventPayload: тело события о новом уведомлении для realtime-шлюза.
type NotificationEventPayload struct {
	NotificationID int64     `json:"notification_id"`
	UserID         int64     `json:"user_id"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewOrderOutboxMessage собирает outbox-сообщение о заказе.
func NewOrderOutboxMessage(eventType string, order Order, prevStatus OrderStatus) (OutboxMessage, error) {
	payload, err := json.Marshal(OrderEventPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		PrevStatus:  string(prevStatus),
		UserID:      order.UserID,
		Email:       order.CustomerEmail,
		Total:       order.Total.StringFixed(MoneyScale),
		ItemsCount:  len(order.Items),
		Version:     order.Version,
		OccurredAt:  time.Now().UTC(),
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     eventType,
		Payload:       payload,
	}, nil
}

// NewNotificationOutboxMessage собирает outbox-сообщение о созданном уведомлении.
func NewNotificationOutboxMessage(n Notification) (OutboxMessage, error) {
	payload, err := json.Marshal(NotificationEventPayload{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	})
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("encode %s payload: %w", EventNotificationCreated, err)
	}
	return OutboxMessage{
		AggregateType: AggregateNotification,
		// Ключом партиционирования служит получатель, чтобы уведомления пользователя шли по порядку.
		AggregateID: strconv.FormatInt(n.UserID, 10),
		EventType:   EventNotificationCreated,
		Payload:     payload,
	}, nil
}
