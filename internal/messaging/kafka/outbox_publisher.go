package kafka

import (
	"context"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// OutboxPublisher публикует outbox-сообщения в топик их агрегата.
type OutboxPublisher struct {
	producer *Producer
	topics   Topics
}

// NewOutboxPublisher создаёт паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topics Topics) *OutboxPublisher {
	return &OutboxPublisher{producer: producer, topics: topics.withDefaults()}
}

func (p *OutboxPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	topic, err := p.topics.Route(msg.AggregateType)
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, topic, partitionKey(msg), NewEnvelope(msg), map[string]string{
		HeaderEventType:     msg.EventType,
		HeaderAggregateType: msg.AggregateType,
		HeaderOutboxID:      msg.ID,
	})
}

// DLQPublisher отправляет в dead letter queue события, которые не удалось опубликовать.
type DLQPublisher struct {
	producer *Producer
	topics   Topics
}

// NewDLQPublisher создаёт паблишер DLQ.
func NewDLQPublisher(producer *Producer, topics Topics) *DLQPublisher {
	return &DLQPublisher{producer: producer, topics: topics.withDefaults()}
}

func (p *DLQPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	headers := map[string]string{
		HeaderEventType:     msg.EventType,
		HeaderAggregateType: msg.AggregateType,
		HeaderOutboxID:      msg.ID,
	}
	if original, err := p.topics.Route(msg.AggregateType); err == nil {
		headers[HeaderOriginalTopic] = original
	}
	return p.producer.PublishEvent(ctx, p.topics.DeadLetter, partitionKey(msg), NewEnvelope(msg), headers)
}

func partitionKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}

var (
	_ domain.OutboxPublisher = (*OutboxPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
