package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vladislavdragonenkov/encontrar/internal/domain"
)

// Reserve списывает остатки условным UPDATE в одной транзакции.
// Строка без достаточного остатка не обновляется, и вся транзакция откатывается.
func (c *Catalog) Reserve(ctx context.Context, lines []domain.StockLine) error {
	if errs := domain.ValidateStockLines(lines); len(errs) > 0 {
		return errs[0]
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := withTx(ctx, c.db, func(tx *sql.Tx) (struct{}, error) {
		for _, line := range lines {
			res, err := tx.ExecContext(ctx, `
				UPDATE products
				SET stock = stock - $2, updated_at = NOW()
				WHERE id = $1 AND stock >= $2
			`, line.ProductID, line.Quantity)
			if err != nil {
				if isCheckViolation(err) {
					return struct{}{}, domain.ErrInsufficientStock
				}
				return struct{}{}, fmt.Errorf("reserve stock: %w", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return struct{}{}, fmt.Errorf("reserve stock rows affected: %w", err)
			}
			if affected == 0 {
				return struct{}{}, c.missingStockReason(ctx, tx, line.ProductID)
			}
		}
		return struct{}{}, nil
	})
	return err
}

// Release возвращает остатки. Отсутствующие товары пропускаются.
func (c *Catalog) Release(ctx context.Context, lines []domain.StockLine) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := withTx(ctx, c.db, func(tx *sql.Tx) (struct{}, error) {
		for _, line := range lines {
			if line.Quantity <= 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + $2, updated_at = NOW() WHERE id = $1
			`, line.ProductID, line.Quantity); err != nil {
				return struct{}{}, fmt.Errorf("release stock: %w", err)
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (c *Catalog) missingStockReason(ctx context.Context, tx *sql.Tx, productID int64) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return domain.ErrProductNotFound
	}
	return domain.ErrInsufficientStock
}

var _ domain.Inventory = (*Catalog)(nil)
