package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// Service хранит уведомления пользователей и ставит событие о каждом новом
// уведомлении в outbox, откуда его забирает realtime-шлюз.
type Service struct {
	repo   domain.NotificationRepository
	users  domain.UserDirectory
	outbox domain.OutboxRepository
	logger *log.Entry
}

// NewService создаёт сервис уведомлений. outbox может быть nil.
func NewService(repo domain.NotificationRepository, users domain.UserDirectory, outbox domain.OutboxRepository) *Service {
	return &Service{
		repo:   repo,
		users:  users,
		outbox: outbox,
		logger: log.WithField("component", "notifications"),
	}
}

// CreateNotification сохраняет уведомление для пользователя.
func (s *Service) CreateNotification(ctx context.Context, title, message string, userID int64) error {
	_, err := s.create(ctx, title, message, userID)
	return err
}

// NotifyUsersByRole отправляет одно и то же уведомление всем пользователям роли.
// Ошибки по отдельным пользователям не прерывают рассылку и возвращаются вместе.
func (s *Service) NotifyUsersByRole(ctx context.Context, title, message string, role domain.Role) error {
	ids, err := s.users.ListUserIDsByRole(ctx, role)
	if err != nil {
		return fmt.Errorf("list users with role %s: %w", role, err)
	}

	var errs []error
	for _, id := range ids {
		if _, err := s.create(ctx, title, message, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ListForUser возвращает уведомления пользователя, новые первыми.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]domain.Notification, error) {
	return s.repo.ListByUser(ctx, userID)
}

// MarkAsRead отмечает уведомление прочитанным.
func (s *Service) MarkAsRead(ctx context.Context, userID, id int64) (domain.Notification, error) {
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) create(ctx context.Context, title, message string, userID int64) (domain.Notification, error) {
	if userID <= 0 {
		return domain.Notification{}, domain.NewValidationError("user_id", domain.ErrRecipientRequired)
	}
	if strings.TrimSpace(title) == "" {
		return domain.Notification{}, domain.NewValidationError("title", domain.ErrTitleRequired)
	}

	n, err := s.repo.Create(ctx, domain.Notification{UserID: userID, Title: title, Message: message})
	if err != nil {
		return domain.Notification{}, fmt.Errorf("create notification for user %d: %w", userID, err)
	}

	if s.outbox != nil {
		msg, err := domain.NewNotificationOutboxMessage(n)
		if err == nil {
			_, err = s.outbox.Enqueue(ctx, msg)
		}
		if err != nil {
			s.logger.WithError(err).WithField("notification_id", n.ID).Warn("failed to enqueue notification event")
		}
	}
	return n, nil
}

var _ domain.NotificationSink = (*Service)(nil)
