package postgres

import (
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// buildOrderQuery переводит OrderQuery в SQL. Все фильтры объединяются по AND.
func buildOrderQuery(query domain.OrderQuery) (string, []any, error) {
	if err := query.Validate(); err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, filter := range query.Filters {
		switch f := filter.(type) {
		case domain.ByOrderNumber:
			conds = append(conds, "o.order_number = "+arg(strings.TrimSpace(f.Number)))
		case domain.ByCustomerName:
			conds = append(conds, "o.customer_name ILIKE "+arg(containsPattern(f.Name))+` ESCAPE '\'`)
		case domain.ByStatus:
			conds = append(conds, "o.status = "+arg(string(f.Status)))
		case domain.ByPaymentMethod:
			conds = append(conds, "o.payment_method_id = "+arg(f.MethodID))
		case domain.ByDeliveryMethod:
			conds = append(conds, "o.delivery_method_id = "+arg(f.MethodID))
		case domain.CreatedBetween:
			if !f.From.IsZero() {
				conds = append(conds, "o.created_at >= "+arg(f.From))
			}
			if !f.To.IsZero() {
				conds = append(conds, "o.created_at < "+arg(f.To))
			}
		case domain.ByShopName:
			conds = append(conds, `EXISTS (
				SELECT 1 FROM order_items oi
				JOIN products p ON p.id = oi.product_id
				JOIN shops s ON s.id = p.shop_id
				WHERE oi.order_id = o.id AND s.shop_name = `+arg(strings.TrimSpace(f.Name))+`)`)
		case domain.ByUserID:
			conds = append(conds, "o.user_id = "+arg(f.UserID))
		case domain.ByContactEmail:
			conds = append(conds, "LOWER(o.customer_email) = LOWER("+arg(strings.TrimSpace(f.Email))+")")
		default:
			return "", nil, domain.NewValidationError("filter", domain.ErrInvalidFilter)
		}
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(orderColumns)
	// Незавершённая запись без номера наружу не видна.
	b.WriteString(" FROM orders o WHERE o.order_number IS NOT NULL")
	for _, c := range conds {
		b.WriteString(" AND ")
		b.WriteString(c)
	}
	b.WriteString(" ORDER BY o.updated_at DESC, o.id DESC")
	if query.Limit > 0 {
		b.WriteString(" LIMIT " + arg(query.Limit))
	}
	if query.Offset > 0 {
		b.WriteString(" OFFSET " + arg(query.Offset))
	}

	return b.String(), args, nil
}

// containsPattern экранирует спецсимволы LIKE и оборачивает подстроку в %.
func containsPattern(s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.TrimSpace(s))
	return "%" + escaped + "%"
}
