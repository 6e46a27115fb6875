package domain

import "github.com/shopspring/decimal"

// MoneyScale: число знаков после запятой для денежных сумм.
const MoneyScale = 2

// RoundMoney округляет сумму до копеек по правилу half-up.
// decimal.Round округляет половину от нуля, для неотрицательных сумм это half-up.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MoneyScale)
}

// OrderTotal считает итог заказа: сумма price * quantity по позициям, округлённая до 2 знаков.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return RoundMoney(total)
}
