package orders

import (
	"context"
	"strings"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// GetOrder возвращает заказ. Покупатель видит только свои заказы.
func (s *Service) GetOrder(ctx context.Context, caller Caller, id int64) (domain.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.BelongsTo(caller.UserID) {
		return order, nil
	}
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// ListOrders выбирает заказы по фильтрам. Только для привилегированных ролей.
func (s *Service) ListOrders(ctx context.Context, caller Caller, query domain.OrderQuery) ([]domain.Order, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, query)
}

// ListUserOrders возвращает заказы вызывающего пользователя.
func (s *Service) ListUserOrders(ctx context.Context, caller Caller) ([]domain.Order, error) {
	if !caller.Authenticated() {
		return nil, domain.ErrForbidden
	}
	return s.orders.List(ctx, domain.OrderQuery{
		Filters: []domain.OrderFilter{domain.ByUserID{UserID: caller.UserID}},
	})
}

// ListOrdersByEmail ищет заказы по контактному email, в том числе анонимные.
func (s *Service) ListOrdersByEmail(ctx context.Context, caller Caller, email string) ([]domain.Order, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, domain.OrderQuery{
		Filters: []domain.OrderFilter{domain.ByContactEmail{Email: strings.TrimSpace(email)}},
	})
}

// ListSales возвращает подтверждённые заказы.
func (s *Service) ListSales(ctx context.Context, caller Caller) ([]domain.Order, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return nil, err
	}
	return s.orders.List(ctx, domain.OrderQuery{
		Filters: []domain.OrderFilter{domain.ByStatus{Status: domain.OrderStatusConfirmed}},
	})
}

// Timeline возвращает историю заказа с той же проверкой доступа, что и GetOrder.
func (s *Service) Timeline(ctx context.Context, caller Caller, id int64) ([]domain.TimelineEvent, error) {
	if _, err := s.GetOrder(ctx, caller, id); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, id)
}
