package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// notificationRepositoryInMemory хранит уведомления в памяти (для разработки/тестов).
type notificationRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[int64]domain.Notification
	nextID int64
}

// NewNotificationRepository создаёт in-memory реализацию NotificationRepository.
func NewNotificationRepository() domain.NotificationRepository {
	return &notificationRepositoryInMemory{items: make(map[int64]domain.Notification)}
}

func (r *notificationRepositoryInMemory) Create(_ context.Context, n domain.Notification) (domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	n.ID = r.nextID
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	r.items[n.ID] = n
	return n, nil
}

// ListByUser возвращает уведомления пользователя, новые первыми.
func (r *notificationRepositoryInMemory) ListByUser(_ context.Context, userID int64) ([]domain.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Notification, 0)
	for _, n := range r.items {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (r *notificationRepositoryInMemory) MarkRead(_ context.Context, userID, id int64) (domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return domain.Notification{}, domain.ErrNotificationNotFound
	}
	n.IsRead = true
	r.items[id] = n
	return n, nil
}

var _ domain.NotificationRepository = (*notificationRepositoryInMemory)(nil)
