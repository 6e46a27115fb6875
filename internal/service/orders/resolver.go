package orders

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// ItemRequest: строка заказа в том виде, как её прислал клиент.
type ItemRequest struct {
	ProductID int64
	Quantity  int32
}

// Resolver превращает запрошенные строки в позиции заказа с зафиксированной ценой.
// Остатки не трогает.
type Resolver struct {
	products domain.ProductCatalog
}

// NewResolver создаёт Resolver поверх каталога товаров.
func NewResolver(products domain.ProductCatalog) *Resolver {
	return &Resolver{products: products}
}

// ResolveItems проверяет количество, находит товар и фиксирует его текущую цену продажи.
// Скрытые товары доступны только привилегированному вызывающему.
// Повторяющиеся товары остаются отдельными позициями.
func (r *Resolver) ResolveItems(ctx context.Context, requested []ItemRequest, privileged bool) ([]domain.OrderItem, error) {
	if len(requested) == 0 {
		return nil, domain.NewValidationError("items", domain.ErrItemsRequired)
	}

	items := make([]domain.OrderItem, 0, len(requested))
	for i, req := range requested {
		if req.Quantity <= 0 {
			return nil, domain.NewValidationError(fmt.Sprintf("items[%d].quantity", i), domain.ErrItemQtyInvalid)
		}

		product, err := r.products.GetProduct(ctx, req.ProductID, privileged)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: product %d: %w", i, req.ProductID, err)
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Quantity:  req.Quantity,
			Price:     product.SalePrice(),
		})
	}
	return items, nil
}
