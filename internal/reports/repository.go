package reports

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
)

// Repository runs read-only report queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Supplier returns the supplier header of a statement.
func (r *Repository) Supplier(ctx context.Context, id int64) (Party, error) {
	var p Party
	err := r.pool.QueryRow(ctx, `SELECT id, code, name FROM suppliers WHERE id = $1`, id).Scan(&p.ID, &p.Code, &p.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, ErrNotFound
	}
	return p, err
}

// SupplierPosition returns what was owed to the supplier before the given
// instant: opening balance plus unpaid purchases less payments.
func (r *Repository) SupplierPosition(ctx context.Context, id int64, before time.Time) (decimal.Decimal, error) {
	var pos decimal.Decimal
	err := r.pool.QueryRow(ctx, `
SELECT s.opening_balance
       + COALESCE((SELECT SUM(p.due) FROM purchases p WHERE p.supplier_id = s.id AND p.status <> 'CANCELLED' AND p.purchased_at < $2), 0)
       - COALESCE((SELECT SUM(y.amount) FROM supplier_payments y WHERE y.supplier_id = s.id AND y.paid_at < $2), 0)
FROM suppliers s WHERE s.id = $1`, id, before).Scan(&pos)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, ErrNotFound
	}
	return pos, err
}

// StatementEntries returns purchases and payments of the supplier in [from, to),
// in date order, without running balances.
func (r *Repository) StatementEntries(ctx context.Context, id int64, from, to time.Time) ([]StatementEntry, error) {
	rows, err := r.pool.Query(ctx, `
SELECT purchased_at, 'PURCHASE', number, due, 0::numeric FROM purchases
 WHERE supplier_id = $1 AND status <> 'CANCELLED' AND purchased_at >= $2 AND purchased_at < $3
UNION ALL
SELECT paid_at, 'PAYMENT', number, 0::numeric, amount FROM supplier_payments
 WHERE supplier_id = $1 AND paid_at >= $2 AND paid_at < $3
ORDER BY 1, 3`, id, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StatementEntry
	for rows.Next() {
		var e StatementEntry
		if err := rows.Scan(&e.Date, &e.Kind, &e.Number, &e.Debit, &e.Credit); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SalesByDay aggregates posted sales per day and channel in [from, to).
func (r *Repository) SalesByDay(ctx context.Context, from, to time.Time) ([]SalesDay, error) {
	rows, err := r.pool.Query(ctx, `
SELECT to_char(date_trunc('day', sold_at), 'YYYY-MM-DD'), channel, COUNT(*), SUM(total), SUM(paid), SUM(due)
  FROM sales
 WHERE status = 'POSTED' AND sold_at >= $1 AND sold_at < $2
 GROUP BY 1, 2
 ORDER BY 1, 2`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SalesDay
	for rows.Next() {
		var d SalesDay
		if err := rows.Scan(&d.Day, &d.Channel, &d.Count, &d.Total, &d.Paid, &d.Due); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// StockRows returns every item with its total quantity and unit cost.
func (r *Repository) StockRows(ctx context.Context) ([]ValuationRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, name, quantity, cost FROM items ORDER BY seq_no`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ValuationRow
	for rows.Next() {
		var v ValuationRow
		if err := rows.Scan(&v.ItemID, &v.Code, &v.Name, &v.Quantity, &v.Cost); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Reconcile recomputes balances from documents.
func (r *Repository) Reconcile(ctx context.Context) ([]ledger.Drift, error) {
	return ledger.Reconcile(ctx, r.pool)
}
