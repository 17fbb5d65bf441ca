package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/platform/db"
)

// Ledger kinds reported by Reconcile.
const (
	KindSupplier = "supplier"
	KindCustomer = "customer"
	KindStock    = "stock"
)

// Drift is a stored running value that disagrees with its source documents.
type Drift struct {
	Kind     string          `json:"kind"`
	ID       int64           `json:"id"`
	Code     string          `json:"code"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
}

// Difference returns Stored - Expected.
func (d Drift) Difference() decimal.Decimal {
	return d.Stored.Sub(d.Expected)
}

const supplierDriftSQL = `SELECT s.id, s.code, s.balance,
       s.opening_balance
       + COALESCE((SELECT SUM(p.due) FROM purchases p WHERE p.supplier_id = s.id AND p.status <> 'CANCELLED'), 0)
       - COALESCE((SELECT SUM(sp.amount) FROM supplier_payments sp WHERE sp.supplier_id = s.id), 0) AS expected
FROM suppliers s`

const customerDriftSQL = `SELECT c.id, c.code, c.balance,
       c.opening_balance
       + COALESCE((SELECT SUM(x.due) FROM sales x WHERE x.customer_id = c.id AND x.status <> 'VOID'), 0)
       - COALESCE((SELECT SUM(r.amount) FROM receipts r WHERE r.customer_id = c.id), 0) AS expected
FROM customers c`

const stockDriftSQL = `SELECT i.id, i.code, i.quantity,
       COALESCE((SELECT SUM(ws.qty) FROM warehouse_stock ws WHERE ws.item_id = i.id), 0) AS expected
FROM items i`

// Reconcile recomputes supplier and customer balances and item quantities
// from their source documents and returns every row that disagrees.
func Reconcile(ctx context.Context, q db.DBTX) ([]Drift, error) {
	var out []Drift
	for _, check := range []struct {
		kind string
		sql  string
	}{
		{KindSupplier, supplierDriftSQL},
		{KindCustomer, customerDriftSQL},
		{KindStock, stockDriftSQL},
	} {
		drifts, err := scanDrift(ctx, q, check.kind, check.sql)
		if err != nil {
			return nil, err
		}
		out = append(out, drifts...)
	}
	return out, nil
}

func scanDrift(ctx context.Context, q db.DBTX, kind, sql string) ([]Drift, error) {
	rows, err := q.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		d := Drift{Kind: kind}
		if err := rows.Scan(&d.ID, &d.Code, &d.Stored, &d.Expected); err != nil {
			return nil, err
		}
		if !d.Stored.Equal(d.Expected) {
			out = append(out, d)
		}
	}
	return out, rows.Err()
}

// Summarise totals absolute drift per kind.
func Summarise(drifts []Drift) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{KindSupplier: decimal.Zero, KindCustomer: decimal.Zero, KindStock: decimal.Zero}
	for _, d := range drifts {
		out[d.Kind] = out[d.Kind].Add(d.Difference().Abs())
	}
	return out
}
