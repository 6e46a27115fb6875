package domain

import "fmt"

// OrderNumberPrefix: префикс человекочитаемого номера заказа.
const OrderNumberPrefix = "Enc"

// GenerateOrderNumber строит номер вида Enc2024/000042 из года создания и id заказа.
// Вызывается только после первого сохранения, когда id и CreatedAt уже известны.
// Для id из 7 и более цифр числовая часть просто становится длиннее.
func GenerateOrderNumber(order Order) (string, error) {
	if order.ID <= 0 || order.CreatedAt.IsZero() {
		return "", ErrOrderNotPersisted
	}
	return fmt.Sprintf("%s%d/%06d", OrderNumberPrefix, order.CreatedAt.Year(), order.ID), nil
}
