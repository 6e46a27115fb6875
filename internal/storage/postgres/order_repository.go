package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

const orderColumns = `
	o.id, COALESCE(o.order_number, ''), o.customer_name, o.customer_email, o.customer_phone, o.user_id,
	o.status, o.total,
	o.delivery_method_id, o.delivery_method_name, o.delivery_status, o.delivery_address, o.delivery_city,
	o.delivery_postal_code, o.delivery_country, o.delivery_address_id, o.delivery_price,
	o.payment_method_id, o.payment_method_name, o.payment_metadata,
	o.version, o.created_at, o.updated_at`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

// CreateNumbered вставляет заказ и записывает номер в одной транзакции.
func (r *orderRepository) CreateNumbered(ctx context.Context, order domain.Order, numberer domain.OrderNumberer) (domain.Order, error) {
	if order.Numbered() {
		return domain.Order{}, domain.ErrOrderNumberAssigned
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	metadata, err := marshalMetadata(order.Payment.Metadata)
	if err != nil {
		return domain.Order{}, err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) (domain.Order, error) {
		created := order.Clone()
		created.Version = 1

		// Первый проход: номера ещё нет, id и created_at выдаёт база.
		err := tx.QueryRowContext(ctx, `
			INSERT INTO orders (
				customer_name, customer_email, customer_phone, user_id, status, total,
				delivery_method_id, delivery_method_name, delivery_status, delivery_address, delivery_city,
				delivery_postal_code, delivery_country, delivery_address_id, delivery_price,
				payment_method_id, payment_method_name, payment_metadata, version
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
			RETURNING id, created_at, updated_at
		`,
			created.CustomerName, created.CustomerEmail, created.CustomerPhone, nullableID(created.UserID),
			string(created.Status), created.Total,
			created.Delivery.MethodID, created.Delivery.MethodName, string(created.Delivery.Status),
			created.Delivery.Address, created.Delivery.City, created.Delivery.PostalCode, created.Delivery.Country,
			nullableID(created.Delivery.AddressID), created.Delivery.Price,
			created.Payment.MethodID, created.Payment.MethodName, metadata, created.Version,
		).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
		if err != nil {
			return domain.Order{}, fmt.Errorf("insert order: %w", err)
		}

		if err := insertItems(ctx, tx, created.ID, created.Items); err != nil {
			return domain.Order{}, err
		}

		// Второй проход: номер зависит от выданного id.
		number, err := numberer(created)
		if err != nil {
			return domain.Order{}, err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET order_number = $1 WHERE id = $2 AND order_number IS NULL
		`, number, created.ID); err != nil {
			if isUniqueViolation(err) {
				return domain.Order{}, domain.ErrOrderNumberAssigned
			}
			return domain.Order{}, fmt.Errorf("assign order number: %w", err)
		}
		created.OrderNumber = number

		return created, nil
	})
}

func (r *orderRepository) Get(ctx context.Context, id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	order, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Items = items

	return order, nil
}

func (r *orderRepository) List(ctx context.Context, query domain.OrderQuery) ([]domain.Order, error) {
	stmt, args, err := buildOrderQuery(query)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	rows.Close()

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

// Save обновляет заказ с проверкой версии и заменяет позиции целиком.
func (r *orderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	metadata, err := marshalMetadata(order.Payment.Metadata)
	if err != nil {
		return domain.Order{}, err
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) (domain.Order, error) {
		saved := order.Clone()

		err := tx.QueryRowContext(ctx, `
			UPDATE orders
			SET customer_name = $1,
			    customer_email = $2,
			    customer_phone = $3,
			    user_id = $4,
			    status = $5,
			    total = $6,
			    delivery_method_id = $7,
			    delivery_method_name = $8,
			    delivery_status = $9,
			    delivery_address = $10,
			    delivery_city = $11,
			    delivery_postal_code = $12,
			    delivery_country = $13,
			    delivery_address_id = $14,
			    delivery_price = $15,
			    payment_method_id = $16,
			    payment_method_name = $17,
			    payment_metadata = $18,
			    version = version + 1,
			    updated_at = $19
			WHERE id = $20
			  AND version = $21
			  AND COALESCE(order_number, '') = $22
			RETURNING version, created_at, updated_at
		`,
			saved.CustomerName, saved.CustomerEmail, saved.CustomerPhone, nullableID(saved.UserID),
			string(saved.Status), saved.Total,
			saved.Delivery.MethodID, saved.Delivery.MethodName, string(saved.Delivery.Status),
			saved.Delivery.Address, saved.Delivery.City, saved.Delivery.PostalCode, saved.Delivery.Country,
			nullableID(saved.Delivery.AddressID), saved.Delivery.Price,
			saved.Payment.MethodID, saved.Payment.MethodName, metadata,
			time.Now().UTC(), saved.ID, saved.Version, saved.OrderNumber,
		).Scan(&saved.Version, &saved.CreatedAt, &saved.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.Order{}, r.classifyMissedUpdate(ctx, tx, order)
			}
			return domain.Order{}, fmt.Errorf("update order: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, saved.ID); err != nil {
			return domain.Order{}, fmt.Errorf("delete order items: %w", err)
		}
		if err := insertItems(ctx, tx, saved.ID, saved.Items); err != nil {
			return domain.Order{}, err
		}

		return saved, nil
	})
}

// classifyMissedUpdate объясняет, почему UPDATE не затронул ни одной строки.
func (r *orderRepository) classifyMissedUpdate(ctx context.Context, tx *sql.Tx, order domain.Order) error {
	var (
		version int64
		number  string
	)
	err := tx.QueryRowContext(ctx, `
		SELECT version, COALESCE(order_number, '') FROM orders WHERE id = $1
	`, order.ID).Scan(&version, &number)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrOrderNotFound
	case err != nil:
		return fmt.Errorf("check order version: %w", err)
	case version != order.Version:
		return domain.ErrOrderVersionConflict
	case number != order.OrderNumber:
		return domain.ErrOrderNumberAssigned
	default:
		return domain.ErrOrderVersionConflict
	}
}

func (r *orderRepository) loadItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.OrderItem, 0)
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	return items, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, orderID int64, items []domain.OrderItem) error {
	for i := range items {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1,$2,$3,$4)
			RETURNING id
		`, orderID, items[i].ProductID, items[i].Quantity, items[i].Price).Scan(&items[i].ID); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order          domain.Order
		status         string
		deliveryStatus string
		userID         sql.NullInt64
		addressID      sql.NullInt64
		metadata       []byte
	)

	if err := row.Scan(
		&order.ID, &order.OrderNumber, &order.CustomerName, &order.CustomerEmail, &order.CustomerPhone, &userID,
		&status, &order.Total,
		&order.Delivery.MethodID, &order.Delivery.MethodName, &deliveryStatus, &order.Delivery.Address,
		&order.Delivery.City, &order.Delivery.PostalCode, &order.Delivery.Country, &addressID, &order.Delivery.Price,
		&order.Payment.MethodID, &order.Payment.MethodName, &metadata,
		&order.Version, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return domain.Order{}, err
	}

	order.Status = domain.OrderStatus(status)
	order.Delivery.Status = domain.DeliveryStatus(deliveryStatus)
	if userID.Valid {
		order.UserID = &userID.Int64
	}
	if addressID.Valid {
		order.Delivery.AddressID = &addressID.Int64
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &order.Payment.Metadata); err != nil {
			return domain.Order{}, fmt.Errorf("decode payment metadata: %w", err)
		}
	}

	return order, nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode payment metadata: %w", err)
	}
	return string(raw), nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
