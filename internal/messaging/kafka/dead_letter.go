package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// ErrNotDeadLetter: сообщение в DLQ не похоже на событие outbox.
var ErrNotDeadLetter = errors.New("message is not an outbox dead letter")

// DeadLetter хранит содержимое сообщения DLQ: исходное событие outbox и причина отказа.
// Поля совпадают с тем, что outbox worker кладёт в payload перед отправкой в DLQ.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	FailedAt      time.Time       `json:"failed_at"`
}

// DecodeDeadLetter разбирает значение сообщения из DLQ: Envelope с DeadLetter внутри.
func DecodeDeadLetter(value []byte) (DeadLetter, error) {
	var envelope Envelope
	if err := json.Unmarshal(value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return DeadLetter{}, ErrNotDeadLetter
	}

	var letter DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return DeadLetter{}, fmt.Errorf("decode dead letter: %w", err)
	}
	if len(letter.Payload) == 0 {
		return DeadLetter{}, errors.New("dead letter does not contain original event payload")
	}

	letter.OutboxID = firstNonEmpty(letter.OutboxID, envelope.ID)
	letter.AggregateType = firstNonEmpty(letter.AggregateType, envelope.AggregateType)
	letter.AggregateID = firstNonEmpty(letter.AggregateID, envelope.AggregateID)
	letter.EventType = firstNonEmpty(letter.EventType, envelope.EventType)
	return letter, nil
}

// Message восстанавливает исходное outbox-сообщение для повторной публикации.
func (d DeadLetter) Message() domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            d.OutboxID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		EventType:     d.EventType,
		Payload:       []byte(d.Payload),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
