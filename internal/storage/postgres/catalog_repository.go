package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// Catalog читает справочники каталога из PostgreSQL и управляет остатками товаров.
type Catalog struct {
	db *sql.DB
}

// NewCatalog создаёт PostgreSQL-реализацию справочников каталога.
func NewCatalog(store *Store) *Catalog {
	return &Catalog{db: store.DB()}
}

func (c *Catalog) GetProduct(ctx context.Context, id int64, includeHidden bool) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		p      domain.Product
		price  decimal.NullDecimal
		shopID sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, price, purchase_price, commission, visible, stock, shop_id
		FROM products
		WHERE id = $1 AND (visible OR $2)
	`, id, includeHidden).Scan(&p.ID, &p.Name, &price, &p.PurchasePrice, &p.Commission, &p.Visible, &p.Stock, &shopID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	if price.Valid {
		p.Price = &price.Decimal
	}
	if shopID.Valid {
		p.ShopID = &shopID.Int64
	}
	return p, nil
}

func (c *Catalog) CountLowStock(ctx context.Context, threshold int32) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products WHERE stock < $1`, threshold).Scan(&count); err != nil {
		return 0, fmt.Errorf("count low stock products: %w", err)
	}
	return count, nil
}

func (c *Catalog) GetShop(ctx context.Context, id int64) (domain.Shop, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		s      domain.Shop
		userID sql.NullInt64
	)
	err := c.db.QueryRowContext(ctx, `SELECT id, shop_name, user_id FROM shops WHERE id = $1`, id).Scan(&s.ID, &s.Name, &userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Shop{}, domain.ErrShopNotFound
		}
		return domain.Shop{}, fmt.Errorf("select shop: %w", err)
	}
	if userID.Valid {
		s.UserID = &userID.Int64
	}
	return s, nil
}

func (c *Catalog) GetUser(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		u    domain.User
		role string
	)
	err := c.db.QueryRowContext(ctx, `SELECT id, name, email, role FROM users WHERE id = $1`, id).Scan(&u.ID, &u.Name, &u.Email, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("select user: %w", err)
	}
	u.Role = domain.ParseRole(role)
	return u, nil
}

func (c *Catalog) ListUserIDsByRole(ctx context.Context, role domain.Role) ([]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return ids, nil
}

func (c *Catalog) GetDeliveryMethod(ctx context.Context, id int64) (domain.DeliveryMethod, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var m domain.DeliveryMethod
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, price, active FROM delivery_methods WHERE id = $1 AND active
	`, id).Scan(&m.ID, &m.Name, &m.Price, &m.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DeliveryMethod{}, domain.ErrDeliveryMethodNotFound
		}
		return domain.DeliveryMethod{}, fmt.Errorf("select delivery method: %w", err)
	}
	return m, nil
}

func (c *Catalog) GetPaymentMethod(ctx context.Context, id int64) (domain.PaymentMethod, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var m domain.PaymentMethod
	err := c.db.QueryRowContext(ctx, `
		SELECT id, name, active FROM payment_methods WHERE id = $1 AND active
	`, id).Scan(&m.ID, &m.Name, &m.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PaymentMethod{}, domain.ErrPaymentMethodNotFound
		}
		return domain.PaymentMethod{}, fmt.Errorf("select payment method: %w", err)
	}
	return m, nil
}

var (
	_ domain.ProductCatalog = (*Catalog)(nil)
	_ domain.ShopDirectory  = (*Catalog)(nil)
	_ domain.UserDirectory  = (*Catalog)(nil)
	_ domain.MethodCatalog  = (*Catalog)(nil)
)
