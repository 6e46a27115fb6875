package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	occurred := event.Occurred
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1,$2,$3,$4)`,
		event.OrderID, event.Type, event.Reason, occurred,
	); err != nil {
		return fmt.Errorf("append timeline event for order %d: %w", event.OrderID, err)
	}
	return nil
}

// List возвращает историю заказа в хронологическом порядке.
func (r *timelineRepository) List(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, type, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list timeline events for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var events []domain.TimelineEvent
	for rows.Next() {
		var ev domain.TimelineEvent
		if err := rows.Scan(&ev.OrderID, &ev.Type, &ev.Reason, &ev.Occurred); err != nil {
			return nil, fmt.Errorf("scan timeline event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timeline events: %w", err)
	}
	if events == nil {
		events = []domain.TimelineEvent{}
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
