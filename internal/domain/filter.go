package domain

import (
	"strings"
	"time"
)

// OrderFilter: одно условие выборки заказов. Набор вариантов закрыт:
// каждое хранилище разбирает их в одной функции построения запроса.
type OrderFilter interface {
	Validate() error
	isOrderFilter()
}

// ByOrderNumber: точное совпадение номера заказа.
type ByOrderNumber struct{ Number string }

// ByCustomerName: подстрока имени покупателя без учёта регистра.
type ByCustomerName struct{ Name string }

// ByStatus: статус заказа.
type ByStatus struct{ Status OrderStatus }

// ByPaymentMethod: способ оплаты.
type ByPaymentMethod struct{ MethodID int64 }

// ByDeliveryMethod: способ доставки.
type ByDeliveryMethod struct{ MethodID int64 }

// CreatedBetween: дата создания в полуинтервале [From, To). Нулевая граница не ограничивает.
type CreatedBetween struct{ From, To time.Time }

// ByShopName: хотя бы одна позиция заказа принадлежит магазину с таким названием.
type ByShopName struct{ Name string }

// ByUserID: заказы зарегистрированного пользователя.
type ByUserID struct{ UserID int64 }

// ByContactEmail: email покупателя без учёта регистра.
type ByContactEmail struct{ Email string }

func (ByOrderNumber) isOrderFilter()    {}
func (ByCustomerName) isOrderFilter()   {}
func (ByStatus) isOrderFilter()         {}
func (ByPaymentMethod) isOrderFilter()  {}
func (ByDeliveryMethod) isOrderFilter() {}
func (CreatedBetween) isOrderFilter()   {}
func (ByShopName) isOrderFilter()       {}
func (ByUserID) isOrderFilter()         {}
func (ByContactEmail) isOrderFilter()   {}

func (f ByOrderNumber) Validate() error {
	return requireText("order_number", f.Number)
}

func (f ByCustomerName) Validate() error {
	return requireText("customer_name", f.Name)
}

func (f ByStatus) Validate() error {
	if !f.Status.Valid() {
		return NewValidationError("status", ErrInvalidStatus)
	}
	return nil
}

func (f ByPaymentMethod) Validate() error {
	return requireID("payment_method_id", f.MethodID)
}

func (f ByDeliveryMethod) Validate() error {
	return requireID("delivery_method_id", f.MethodID)
}

func (f CreatedBetween) Validate() error {
	if f.From.IsZero() && f.To.IsZero() {
		return NewValidationError("created", ErrInvalidDateRange)
	}
	if !f.From.IsZero() && !f.To.IsZero() && !f.From.Before(f.To) {
		return NewValidationError("created", ErrInvalidDateRange)
	}
	return nil
}

// Contains проверяет попадание момента t в интервал.
func (f CreatedBetween) Contains(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To) {
		return false
	}
	return true
}

func (f ByShopName) Validate() error {
	return requireText("shop_name", f.Name)
}

func (f ByUserID) Validate() error {
	return requireID("user_id", f.UserID)
}

func (f ByContactEmail) Validate() error {
	return requireText("email", f.Email)
}

// CreatedOnDays строит фильтр по календарным дням: с начала дня start до конца дня end.
// nil-граница не ограничивает выборку.
func CreatedOnDays(start, end *time.Time) CreatedBetween {
	var f CreatedBetween
	if start != nil {
		f.From, _ = DayBounds(*start)
	}
	if end != nil {
		_, f.To = DayBounds(*end)
	}
	return f
}

// OrderQuery описывает выборку заказов. Фильтры объединяются по AND,
// результат отсортирован по UpdatedAt по убыванию.
type OrderQuery struct {
	Filters []OrderFilter
	Limit   int
	Offset  int
}

// Validate проверяет все фильтры запроса.
func (q OrderQuery) Validate() error {
	if q.Limit < 0 || q.Offset < 0 {
		return NewValidationError("limit", ErrInvalidFilter)
	}
	for _, f := range q.Filters {
		if f == nil {
			return NewValidationError("filter", ErrInvalidFilter)
		}
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func requireText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return NewValidationError(field, ErrInvalidFilter)
	}
	return nil
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return NewValidationError(field, ErrInvalidFilter)
	}
	return nil
}
