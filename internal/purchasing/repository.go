package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.Runner
	seq    *sequence.Sequencer
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, seq *sequence.Sequencer) *Repository {
	return &Repository{pool: pool, runner: runner, seq: seq}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ClaimKey(ctx context.Context, module, key string) error
	NextNumber(ctx context.Context) (sequence.Identifier, error)
	Insert(ctx context.Context, p Purchase) (Purchase, error)
	GetForUpdate(ctx context.Context, id int64) (Purchase, error)
	UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error
	AdjustStock(ctx context.Context, itemID, warehouseID int64, delta decimal.Decimal, allowNegative bool) error
	AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn inside a transaction; stock and balance changes commit with the purchase.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "purchasing", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const purchaseColumns = `id, number, seq_no, supplier_id, warehouse_id, status, total, paid, due, note, purchased_at, received_at, created_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var status string
	err := row.Scan(&p.ID, &p.Number, &p.SeqNo, &p.SupplierID, &p.WarehouseID, &status, &p.Total, &p.Paid, &p.Due, &p.Note, &p.PurchasedAt, &p.ReceivedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, ErrNotFound
	}
	p.Status = Status(status)
	return p, err
}

func loadLines(ctx context.Context, q db.DBTX, purchaseID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_id, item_id, qty, unit_cost FROM purchase_lines WHERE purchase_id = $1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.PurchaseID, &l.ItemID, &l.Qty, &l.UnitCost); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get returns a purchase with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
	if err != nil {
		return Purchase{}, err
	}
	p.Lines, err = loadLines(ctx, r.pool, id)
	return p, err
}

// List returns purchase headers, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filters.SupplierID > 0 {
		add("supplier_id = $%d", filters.SupplierID)
	}
	if filters.Status != "" {
		add("status = $%d", string(filters.Status))
	}
	if !filters.From.IsZero() {
		add("purchased_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("purchased_at < $%d", filters.To.AddDate(0, 0, 1))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM purchases%s ORDER BY purchased_at DESC, seq_no DESC LIMIT $%d OFFSET $%d`, purchaseColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextNumber(ctx context.Context) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, sequence.Purchases)
}

func (t *txRepo) Insert(ctx context.Context, p Purchase) (Purchase, error) {
	created, err := scanPurchase(t.tx.QueryRow(ctx, `INSERT INTO purchases (number, seq_no, supplier_id, warehouse_id, status, total, paid, due, note, purchased_at, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING `+purchaseColumns,
		p.Number, p.SeqNo, p.SupplierID, p.WarehouseID, string(p.Status), p.Total, p.Paid, p.Due, p.Note, p.PurchasedAt, p.ReceivedAt))
	switch {
	case db.IsUniqueViolation(err):
		return Purchase{}, fmt.Errorf("purchasing: number %s: %w", p.Number, sequence.ErrCollision)
	case db.IsForeignKeyViolation(err):
		return Purchase{}, fmt.Errorf("%w: supplier %d or warehouse %d", ErrNotFound, p.SupplierID, p.WarehouseID)
	case err != nil:
		return Purchase{}, err
	}
	for _, line := range p.Lines {
		line.PurchaseID = created.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO purchase_lines (purchase_id, item_id, qty, unit_cost) VALUES ($1, $2, $3, $4) RETURNING id`,
			line.PurchaseID, line.ItemID, line.Qty, line.UnitCost).Scan(&line.ID)
		if db.IsForeignKeyViolation(err) {
			return Purchase{}, fmt.Errorf("%w: item %d", ErrNotFound, line.ItemID)
		}
		if err != nil {
			return Purchase{}, err
		}
		created.Lines = append(created.Lines, line)
	}
	return created, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(t.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Purchase{}, err
	}
	p.Lines, err = loadLines(ctx, t.tx, id)
	return p, err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status, receivedAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchases SET status = $2, received_at = COALESCE($3, received_at) WHERE id = $1`, id, string(status), receivedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AdjustStock(ctx context.Context, itemID, warehouseID int64, delta decimal.Decimal, allowNegative bool) error {
	_, err := ledger.AdjustStock(ctx, t.tx, itemID, warehouseID, delta, allowNegative)
	return err
}

func (t *txRepo) AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error {
	_, err := ledger.AdjustSupplierBalance(ctx, t.tx, supplierID, delta)
	return err
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
