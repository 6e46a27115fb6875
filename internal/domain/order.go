package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusOpen: заказ создан и ждёт подтверждения.
	OrderStatusOpen OrderStatus = "open"
	// OrderStatusConfirmed: заказ подтверждён и передан в исполнение.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusDelivered: заказ доставлен покупателю.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// statusTransitions: таблица разрешённых переходов статуса.
var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusOpen:      {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered: nil,
	OrderStatusCancelled: nil,
}

// ParseOrderStatus разбирает статус из внешнего представления.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", NewValidationError("status", ErrInvalidStatus)
	}
	return status, nil
}

// Valid проверяет, что статус входит в закрытое перечисление.
func (s OrderStatus) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// CanTransitionTo проверяет переход по таблице. Запись того же статуса разрешена.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DeliveryStatus: статус доставки заказа.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusShipped   DeliveryStatus = "shipped"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
)

// ParseDeliveryStatus разбирает статус доставки.
func ParseDeliveryStatus(raw string) (DeliveryStatus, error) {
	switch status := DeliveryStatus(strings.ToLower(strings.TrimSpace(raw))); status {
	case DeliveryStatusPending, DeliveryStatusShipped, DeliveryStatusDelivered:
		return status, nil
	default:
		return "", NewValidationError("delivery_status", ErrInvalidStatus)
	}
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	ID        int64
	ProductID int64
	// Quantity: количество единиц товара.
	Quantity int32
	// Price: цена за единицу на момент оформления. Не пересчитывается при изменении каталога.
	Price decimal.Decimal
}

// LineTotal возвращает price * quantity без округления.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt32(i.Quantity))
}

// OrderDelivery описывает доставку заказа.
type OrderDelivery struct {
	MethodID   int64
	MethodName string
	Status     DeliveryStatus
	// Свободная форма адреса либо ссылка на справочник адресов.
	Address    string
	City       string
	PostalCode string
	Country    string
	AddressID  *int64
	// Price: стоимость доставки на момент оформления.
	Price decimal.Decimal
}

// OrderPayment описывает способ оплаты заказа.
type OrderPayment struct {
	MethodID   int64
	MethodName string
	Metadata   map[string]string
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID          int64
	OrderNumber string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	// UserID заполнен, если заказ оформил зарегистрированный пользователь.
	UserID *int64

	Items    []OrderItem
	Delivery OrderDelivery
	Payment  OrderPayment
	Status   OrderStatus
	Total    decimal.Decimal

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Numbered сообщает, что номер заказа уже присвоен.
func (o *Order) Numbered() bool {
	return o.OrderNumber != ""
}

// BelongsTo проверяет, что заказ оформлен пользователем userID.
func (o *Order) BelongsTo(userID int64) bool {
	return o.UserID != nil && *o.UserID == userID
}

// TransitionTo переводит заказ в новый статус по таблице переходов.
func (o *Order) TransitionTo(next OrderStatus) error {
	if !next.Valid() {
		return NewValidationError("status", ErrInvalidStatus)
	}
	if !o.Status.CanTransitionTo(next) {
		return ErrInvalidStatusTransition
	}
	o.Status = next
	return nil
}

// Clone возвращает глубокую копию заказа.
func (o Order) Clone() Order {
	dst := o
	if o.Items != nil {
		dst.Items = make([]OrderItem, len(o.Items))
		copy(dst.Items, o.Items)
	}
	if o.UserID != nil {
		id := *o.UserID
		dst.UserID = &id
	}
	if o.Delivery.AddressID != nil {
		id := *o.Delivery.AddressID
		dst.Delivery.AddressID = &id
	}
	if o.Payment.Metadata != nil {
		dst.Payment.Metadata = make(map[string]string, len(o.Payment.Metadata))
		for k, v := range o.Payment.Metadata {
			dst.Payment.Metadata[k] = v
		}
	}
	return dst
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if strings.TrimSpace(o.CustomerName) == "" || strings.TrimSpace(o.CustomerEmail) == "" {
		errs = append(errs, ErrContactRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.Price.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
	}
	if !OrderTotal(o.Items).Equal(o.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
