package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// Topics по умолчанию.
const (
	TopicOrderEvents        = "encontrar.order.events"
	TopicNotificationEvents = "encontrar.notification.events"
	TopicDeadLetterQueue    = "encontrar.dlq"
)

// Заголовки сообщений.
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
	HeaderOriginalTopic = "x-original-topic"
)

// Topics: куда публикуются события каждого агрегата.
type Topics struct {
	Orders        string
	Notifications string
	DeadLetter    string
}

// DefaultTopics возвращает набор топиков по умолчанию.
func DefaultTopics() Topics {
	return Topics{
		Orders:        TopicOrderEvents,
		Notifications: TopicNotificationEvents,
		DeadLetter:    TopicDeadLetterQueue,
	}
}

// withDefaults заполняет пустые имена значениями по умолчанию.
func (t Topics) withDefaults() Topics {
	def := DefaultTopics()
	if t.Orders == "" {
		t.Orders = def.Orders
	}
	if t.Notifications == "" {
		t.Notifications = def.Notifications
	}
	if t.DeadLetter == "" {
		t.DeadLetter = def.DeadLetter
	}
	return t
}

// Route выбирает топик по типу агрегата.
func (t Topics) Route(aggregateType string) (string, error) {
	switch aggregateType {
	case domain.AggregateOrder:
		return t.Orders, nil
	case domain.AggregateNotification:
		return t.Notifications, nil
	default:
		return "", fmt.Errorf("no topic for aggregate %q", aggregateType)
	}
}

// Envelope задаёт тело сообщения в Kafka: метаданные outbox и исходный payload.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope оборачивает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	}
}
