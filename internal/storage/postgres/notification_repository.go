package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

type notificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создаёт PostgreSQL-реализацию NotificationRepository.
func NewNotificationRepository(store *Store) domain.NotificationRepository {
	return &notificationRepository{db: store.DB()}
}

func (r *notificationRepository) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.IsRead = false

	if err := r.db.QueryRowContext(ctx, `
		INSERT INTO notifications (user_id, title, message, is_read, created_at)
		VALUES ($1,$2,$3,FALSE,$4)
		RETURNING id
	`, n.UserID, n.Title, n.Message, n.CreatedAt).Scan(&n.ID); err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, message, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	result := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return result, nil
}

// MarkRead отмечает уведомление прочитанным. Чужое уведомление считается отсутствующим.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64) (domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var n domain.Notification
	err := r.db.QueryRowContext(ctx, `
		UPDATE notifications SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, title, message, is_read, created_at
	`, id, userID).Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.IsRead, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Notification{}, domain.ErrNotificationNotFound
		}
		return domain.Notification{}, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

var _ domain.NotificationRepository = (*notificationRepository)(nil)
