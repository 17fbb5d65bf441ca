// Package ledger applies dependent balance and stock mutations. Every
// function runs on the caller's handle, so the change commits or aborts with
// the entity write that caused it.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

var (
	// ErrNotFound is returned when the dependent target does not exist.
	ErrNotFound = fmt.Errorf("ledger: target %w", shared.ErrNotFound)
	// ErrNegativeStock is returned when a stock decrement would go below zero.
	ErrNegativeStock = fmt.Errorf("ledger: insufficient stock: %w", shared.ErrInvalidState)
)

// AdjustSupplierBalance adds delta to the supplier's running balance and
// returns the new balance.
func AdjustSupplierBalance(ctx context.Context, q db.DBTX, supplierID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	return adjustBalance(ctx, q, "suppliers", supplierID, delta)
}

// AdjustCustomerBalance adds delta to the customer's running balance and
// returns the new balance.
func AdjustCustomerBalance(ctx context.Context, q db.DBTX, customerID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	return adjustBalance(ctx, q, "customers", customerID, delta)
}

func adjustBalance(ctx context.Context, q db.DBTX, table string, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	sql := fmt.Sprintf(`UPDATE %s SET balance = balance + $2, updated_at = NOW() WHERE id = $1 RETURNING balance`, pgx.Identifier{table}.Sanitize())
	var balance decimal.Decimal
	if err := q.QueryRow(ctx, sql, id, delta).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%w: %s %d", ErrNotFound, table, id)
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// AdjustStock adds delta to the item's stock in warehouseID and to the item's
// total quantity. It returns the new warehouse quantity.
func AdjustStock(ctx context.Context, q db.DBTX, itemID, warehouseID int64, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	var qty decimal.Decimal
	err := q.QueryRow(ctx, `INSERT INTO warehouse_stock (warehouse_id, item_id, qty) VALUES ($1, $2, $3)
ON CONFLICT (warehouse_id, item_id) DO UPDATE SET qty = warehouse_stock.qty + EXCLUDED.qty
RETURNING qty`, warehouseID, itemID, delta).Scan(&qty)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return decimal.Zero, fmt.Errorf("%w: item %d or warehouse %d", ErrNotFound, itemID, warehouseID)
		}
		return decimal.Zero, err
	}
	if !allowNegative && qty.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: item %d in warehouse %d", ErrNegativeStock, itemID, warehouseID)
	}
	tag, err := q.Exec(ctx, `UPDATE items SET quantity = quantity + $2, updated_at = NOW() WHERE id = $1`, itemID, delta)
	if err != nil {
		return decimal.Zero, err
	}
	if tag.RowsAffected() == 0 {
		return decimal.Zero, fmt.Errorf("%w: item %d", ErrNotFound, itemID)
	}
	return qty, nil
}
