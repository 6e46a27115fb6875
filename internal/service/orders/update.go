package orders

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// ContactPatch: изменяемые контактные поля; nil означает «не менять».
type ContactPatch struct {
	Name  *string
	Email *string
	Phone *string
}

// UpdateOrderRequest: частичное изменение заказа.
// Позиции, доставка и оплата заменяются целиком, если заданы.
type UpdateOrderRequest struct {
	// ExpectedVersion, если задана, должна совпасть с текущей версией заказа.
	ExpectedVersion *int64
	Contact         *ContactPatch
	Items           []ItemRequest
	Delivery        *DeliveryRequest
	DeliveryStatus  *domain.DeliveryStatus
	Payment         *PaymentRequest
	Status          *domain.OrderStatus
}

// UpdateOrder применяет изменения к заказу. Доступно только привилегированным ролям.
// При замене позиций до сохранения резервируется только прирост по товарам,
// излишек возвращается на склад после сохранения.
// Отмена заказа возвращает резерв на склад. Номер заказа не меняется никогда.
func (s *Service) UpdateOrder(ctx context.Context, caller Caller, id int64, req UpdateOrderRequest) (domain.Order, error) {
	if err := s.requirePrivileged(ctx, caller); err != nil {
		return domain.Order{}, err
	}

	current, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}

	next := current.Clone()
	if err := applyContact(&next, req.Contact); err != nil {
		return domain.Order{}, err
	}
	if req.Delivery != nil {
		delivery, err := s.assembler.resolveDelivery(ctx, *req.Delivery)
		if err != nil {
			return domain.Order{}, err
		}
		delivery.Status = next.Delivery.Status
		next.Delivery = delivery
	}
	if req.DeliveryStatus != nil {
		next.Delivery.Status = *req.DeliveryStatus
	}
	if req.Payment != nil {
		payment, err := s.assembler.resolvePayment(ctx, *req.Payment)
		if err != nil {
			return domain.Order{}, err
		}
		next.Payment = payment
	}
	if req.Status != nil && *req.Status != current.Status {
		if err := next.TransitionTo(*req.Status); err != nil {
			return domain.Order{}, err
		}
	}

	currentLines, err := domain.StockLinesFor(current.Items)
	if err != nil {
		return domain.Order{}, err
	}

	itemsChanged := req.Items != nil
	var reserved, surplus []domain.StockLine
	if itemsChanged {
		if current.Status != domain.OrderStatusOpen || next.Status != domain.OrderStatusOpen {
			return domain.Order{}, domain.ErrOrderNotEditable
		}
		items, err := s.resolver.ResolveItems(ctx, req.Items, true)
		if err != nil {
			return domain.Order{}, err
		}
		next.Items = items
		next.Total = domain.OrderTotal(items)

		nextLines, err := domain.StockLinesFor(items)
		if err != nil {
			return domain.Order{}, err
		}
		// Заказ уже держит currentLines, поэтому резервируется только прирост.
		reserved, surplus = domain.StockDelta(currentLines, nextLines)
		if len(reserved) > 0 {
			if err := s.inventory.Reserve(ctx, reserved); err != nil {
				return domain.Order{}, fmt.Errorf("reserve stock: %w", err)
			}
		}
	}

	if errs := next.ValidateInvariants(); len(errs) > 0 {
		s.releaseStock(ctx, 0, reserved, "update rejected")
		return domain.Order{}, domain.NewValidationError("order", errs[0])
	}

	saved, err := s.orders.Save(ctx, next)
	if err != nil {
		s.releaseStock(ctx, 0, reserved, "update failed")
		return domain.Order{}, err
	}

	cancelled := saved.Status == domain.OrderStatusCancelled && current.Status != domain.OrderStatusCancelled
	switch {
	case cancelled:
		s.releaseStock(ctx, saved.ID, currentLines, "order cancelled")
	case itemsChanged:
		s.releaseStock(ctx, saved.ID, surplus, "items replaced")
	}

	s.logger.WithFields(log.Fields{
		"order_id": saved.ID,
		"version":  saved.Version,
		"status":   saved.Status,
	}).Info("order updated")

	if saved.Status != current.Status {
		s.metrics.RecordStatusTransition(string(current.Status), string(saved.Status))
		s.appendTimeline(ctx, saved.ID, domain.TimelineStatusChanged, fmt.Sprintf("%s -> %s", current.Status, saved.Status))
		s.enqueueOrderEvent(ctx, domain.EventOrderStatusChanged, saved, current.Status)
	} else {
		s.appendTimeline(ctx, saved.ID, domain.TimelineOrderUpdated, "")
		s.enqueueOrderEvent(ctx, domain.EventOrderUpdated, saved, "")
	}

	return saved, nil
}

func applyContact(order *domain.Order, patch *ContactPatch) error {
	if patch == nil {
		return nil
	}
	if patch.Name != nil {
		order.CustomerName = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		order.CustomerEmail = strings.TrimSpace(*patch.Email)
	}
	if patch.Phone != nil {
		order.CustomerPhone = strings.TrimSpace(*patch.Phone)
	}
	return validateContact(Contact{Name: order.CustomerName, Email: order.CustomerEmail})
}
