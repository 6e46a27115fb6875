package domain

import (
	"math"
	"sort"
)

// StockLine: количество товара, которое нужно зарезервировать или вернуть на склад.
type StockLine struct {
	ProductID int64
	Quantity  int32
}

// StockLinesFor сворачивает позиции заказа в строки резерва: по одной на товар,
// отсортированные по ProductID, чтобы параллельные резервы брали блокировки в одном порядке.
// Сумма по товару, не помещающаяся в int32, даёт ValidationError по items.
func StockLinesFor(items []OrderItem) ([]StockLine, error) {
	totals := make(map[int64]int64, len(items))
	for _, item := range items {
		totals[item.ProductID] += int64(item.Quantity)
		if totals[item.ProductID] > math.MaxInt32 {
			return nil, NewValidationError("items", ErrItemQtyInvalid)
		}
	}

	lines := make([]StockLine, 0, len(totals))
	for productID, qty := range totals {
		lines = append(lines, StockLine{ProductID: productID, Quantity: int32(qty)}) // #nosec G115 -- проверено выше
	}
	sortStockLines(lines)
	return lines, nil
}

// StockDelta сравнивает резерв заказа до и после замены позиций: reserve нужно
// дозарезервировать, release вернуть на склад.
func StockDelta(current, next []StockLine) (reserve, release []StockLine) {
	held := make(map[int64]int32, len(current))
	for _, line := range current {
		held[line.ProductID] += line.Quantity
	}

	for _, line := range next {
		switch diff := line.Quantity - held[line.ProductID]; {
		case diff > 0:
			reserve = append(reserve, StockLine{ProductID: line.ProductID, Quantity: diff})
		case diff < 0:
			release = append(release, StockLine{ProductID: line.ProductID, Quantity: -diff})
		}
		delete(held, line.ProductID)
	}
	for productID, qty := range held {
		if qty > 0 {
			release = append(release, StockLine{ProductID: productID, Quantity: qty})
		}
	}

	sortStockLines(reserve)
	sortStockLines(release)
	return reserve, release
}

func sortStockLines(lines []StockLine) {
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
}

// ValidateStockLines проверяет строки резерва.
func ValidateStockLines(lines []StockLine) []error {
	var errs []error
	if len(lines) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
	}
	return errs
}
