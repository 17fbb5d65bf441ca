package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

// NewRepository creates a new sales repository.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, seq *sequence.Sequencer) *Repository {
	return &Repository{pool: pool, runner: runner, seq: seq}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ClaimKey(ctx context.Context, module, key string) error
	NextNumber(ctx context.Context, scope sequence.Scope) (sequence.Identifier, error)
	Insert(ctx context.Context, s Sale) (Sale, error)
	GetForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	AdjustStock(ctx context.Context, itemID, warehouseID int64, delta decimal.Decimal, allowNegative bool) error
	// AdjustCustomerBalance returns the balance after the change.
	AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) (decimal.Decimal, error)
	CreditLimit(ctx context.Context, customerID int64) (decimal.Decimal, error)
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "sales", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const saleColumns = `id, number, seq_no, channel, customer_id, warehouse_id, status, total, paid, due, note, sold_at, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var channel, status string
	err := row.Scan(&s.ID, &s.Number, &s.SeqNo, &channel, &s.CustomerID, &s.WarehouseID, &status, &s.Total, &s.Paid, &s.Due, &s.Note, &s.SoldAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Sale{}, ErrNotFound
	}
	s.Channel, s.Status = Channel(channel), Status(status)
	return s, err
}

func loadLines(ctx context.Context, q db.DBTX, saleID int64) ([]Line, error) {
	rows, err := q.Query(ctx, `SELECT id, sale_id, item_id, qty, unit_price, discount FROM sale_lines WHERE sale_id = $1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.SaleID, &l.ItemID, &l.Qty, &l.UnitPrice, &l.Discount); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// Get returns a sale with lines.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		return Sale{}, err
	}
	s.Lines, err = loadLines(ctx, r.pool, id)
	return s, err
}

// List returns sale headers, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Sale, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filters.CustomerID > 0 {
		add("customer_id = $%d", filters.CustomerID)
	}
	if filters.Channel != "" {
		add("channel = $%d", string(filters.Channel))
	}
	if filters.Status != "" {
		add("status = $%d", string(filters.Status))
	}
	if !filters.From.IsZero() {
		add("sold_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("sold_at < $%d", filters.To.AddDate(0, 0, 1))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sales`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM sales%s ORDER BY sold_at DESC, id DESC LIMIT $%d OFFSET $%d`, saleColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextNumber(ctx context.Context, scope sequence.Scope) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, scope)
}

func (t *txRepo) Insert(ctx context.Context, s Sale) (Sale, error) {
	created, err := scanSale(t.tx.QueryRow(ctx, `INSERT INTO sales (number, seq_no, channel, customer_id, warehouse_id, status, total, paid, due, note, sold_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING `+saleColumns,
		s.Number, s.SeqNo, string(s.Channel), s.CustomerID, s.WarehouseID, string(s.Status), s.Total, s.Paid, s.Due, s.Note, s.SoldAt))
	switch {
	case db.IsUniqueViolation(err):
		return Sale{}, fmt.Errorf("sales: number %s: %w", s.Number, sequence.ErrCollision)
	case db.IsForeignKeyViolation(err):
		return Sale{}, fmt.Errorf("%w: customer or warehouse %d", ErrNotFound, s.WarehouseID)
	case err != nil:
		return Sale{}, err
	}
	for _, line := range s.Lines {
		line.SaleID = created.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO sale_lines (sale_id, item_id, qty, unit_price, discount) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			line.SaleID, line.ItemID, line.Qty, line.UnitPrice, line.Discount).Scan(&line.ID)
		if db.IsForeignKeyViolation(err) {
			return Sale{}, fmt.Errorf("%w: item %d", ErrNotFound, line.ItemID)
		}
		if err != nil {
			return Sale{}, err
		}
		created.Lines = append(created.Lines, line)
	}
	return created, nil
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(t.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return Sale{}, err
	}
	s.Lines, err = loadLines(ctx, t.tx, id)
	return s, err
}

func (t *txRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := t.tx.Exec(ctx, `UPDATE sales SET status = $2 WHERE id = $1`, id, string(status))
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

func (t *txRepo) AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) (decimal.Decimal, error) {
	return ledger.AdjustCustomerBalance(ctx, t.tx, customerID, delta)
}

func (t *txRepo) CreditLimit(ctx context.Context, customerID int64) (decimal.Decimal, error) {
	var limit decimal.Decimal
	err := t.tx.QueryRow(ctx, `SELECT credit_limit FROM customers WHERE id = $1`, customerID).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("%w: customer %d", ErrNotFound, customerID)
	}
	return limit, err
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
