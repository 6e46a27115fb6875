package domain

import "time"

// Notification: уведомление пользователю платформы.
type Notification struct {
	ID        int64
	UserID    int64
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
