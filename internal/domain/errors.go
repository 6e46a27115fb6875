package domain

import (
	"errors"
	"fmt"
)

// NotFound.
var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrProductNotFound возвращается, если товар отсутствует или скрыт от вызывающего.
	ErrProductNotFound = errors.New("product not found")
	// ErrShopNotFound возвращается, если магазин не найден.
	ErrShopNotFound = errors.New("shop not found")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrDeliveryMethodNotFound возвращается для неизвестного способа доставки.
	ErrDeliveryMethodNotFound = errors.New("delivery method not found")
	// ErrPaymentMethodNotFound возвращается для неизвестного способа оплаты.
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	// ErrNotificationNotFound возвращается, если уведомление не найдено у пользователя.
	ErrNotificationNotFound = errors.New("notification not found")
)

// ValidationError.
var (
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = errors.New("item quantity must be a positive integer")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrTotalMismatch = errors.New("order total does not match items sum")
	// Ошибка отсутствующих контактных данных покупателя.
	ErrContactRequired = errors.New("customer name and email are required")
	// Ошибка отсутствующего способа доставки.
	ErrDeliveryMethodRequired = errors.New("delivery method is required")
	// Ошибка отсутствующего способа оплаты.
	ErrPaymentMethodRequired = errors.New("payment method is required")
	// Ошибка неизвестного статуса заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// Ошибка некорректного диапазона дат в фильтре.
	ErrInvalidDateRange = errors.New("invalid date range")
	// Ошибка некорректного значения фильтра.
	ErrInvalidFilter = errors.New("invalid order filter")
	// Ошибка уведомления без получателя.
	ErrRecipientRequired = errors.New("notification recipient is required")
	// Ошибка уведомления без заголовка.
	ErrTitleRequired = errors.New("notification title is required")
	// ErrOrderNotPersisted: номер заказа нельзя вычислить до первого сохранения.
	ErrOrderNotPersisted = errors.New("order is not persisted yet")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// Conflict.
var (
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrInsufficientStock: на складе не хватает товара для резерва.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStatusTransition: переход статуса запрещён таблицей переходов.
	ErrInvalidStatusTransition = errors.New("invalid order status transition")
	// ErrOrderNumberAssigned: номер заказа уже присвоен и не может меняться.
	ErrOrderNumberAssigned = errors.New("order number already assigned")
	// ErrOrderNotEditable: позиции можно менять только у открытого заказа.
	ErrOrderNotEditable = errors.New("order items can only be changed while the order is open")
)

// ErrForbidden: заказ принадлежит другому покупателю.
var ErrForbidden = errors.New("access to the order is forbidden")

// ValidationError привязывает ошибку валидации к полю запроса.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError оборачивает err в ValidationError для поля field.
func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsNotFound проверяет, относится ли ошибка к классу NotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrShopNotFound) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrDeliveryMethodNotFound) ||
		errors.Is(err, ErrPaymentMethodNotFound) ||
		errors.Is(err, ErrNotificationNotFound)
}

// IsValidation проверяет, является ли ошибка ошибкой валидации входных данных.
func IsValidation(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	return errors.Is(err, ErrItemsRequired) ||
		errors.Is(err, ErrItemQtyInvalid) ||
		errors.Is(err, ErrItemPriceInvalid) ||
		errors.Is(err, ErrContactRequired) ||
		errors.Is(err, ErrDeliveryMethodRequired) ||
		errors.Is(err, ErrPaymentMethodRequired) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidFilter)
}

// IsConflict проверяет, является ли ошибка конфликтом состояния.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidStatusTransition) ||
		errors.Is(err, ErrOrderNumberAssigned) ||
		errors.Is(err, ErrOrderNotEditable) ||
		errors.Is(err, ErrIdempotencyKeyAlreadyExists) ||
		errors.Is(err, ErrIdempotencyHashMismatch)
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}
