package inventory

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

// Repository provides Postgres backed persistence.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.Runner
	seq    *sequence.Sequencer
}

// NewRepository constructs repository.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, seq *sequence.Sequencer) *Repository {
	return &Repository{pool: pool, runner: runner, seq: seq}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ClaimKey(ctx context.Context, module, key string) error
	NextNumber(ctx context.Context, scope sequence.Scope) (sequence.Identifier, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	UpdateItem(ctx context.Context, item Item) error
	InsertWarehouse(ctx context.Context, wh Warehouse) (Warehouse, error)
	InsertMovement(ctx context.Context, m Movement) (Movement, error)
	AdjustStock(ctx context.Context, itemID, warehouseID int64, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error)
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "inventory", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const itemColumns = `id, code, seq_no, name, unit, cost, price, quantity, reorder_level, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.Code, &it.SeqNo, &it.Name, &it.Unit, &it.Cost, &it.Price, &it.Quantity, &it.ReorderLevel, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return it, err
}

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var wh Warehouse
	err := row.Scan(&wh.ID, &wh.Code, &wh.SeqNo, &wh.Name, &wh.Location, &wh.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Warehouse{}, ErrNotFound
	}
	return wh, err
}

// GetItem returns an item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
}

// ListItems returns items matching filters.
func (r *Repository) ListItems(ctx context.Context, filters ItemFilters) ([]Item, int, error) {
	var conds []string
	var args []any
	if filters.Search != "" {
		args = append(args, shared.LikeContains(filters.Search))
		conds = append(conds, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d)", len(args), len(args)))
	}
	if filters.LowStock {
		conds = append(conds, "quantity <= reorder_level")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM items`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM items%s ORDER BY length(code), code LIMIT $%d OFFSET $%d`, itemColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, it)
	}
	return items, total, rows.Err()
}

// GetWarehouse returns a warehouse by id.
func (r *Repository) GetWarehouse(ctx context.Context, id int64) (Warehouse, error) {
	return scanWarehouse(r.pool.QueryRow(ctx, `SELECT id, code, seq_no, name, location, created_at FROM warehouses WHERE id = $1`, id))
}

// ListWarehouses returns all warehouses ordered by code.
func (r *Repository) ListWarehouses(ctx context.Context) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, code, seq_no, name, location, created_at FROM warehouses ORDER BY length(code), code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Warehouse
	for rows.Next() {
		wh, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, wh)
	}
	return out, rows.Err()
}

// StockLevels returns per-warehouse quantities of an item.
func (r *Repository) StockLevels(ctx context.Context, itemID int64) ([]StockLevel, error) {
	rows, err := r.pool.Query(ctx, `SELECT ws.warehouse_id, w.code, ws.item_id, ws.qty
FROM warehouse_stock ws JOIN warehouses w ON w.id = ws.warehouse_id
WHERE ws.item_id = $1 ORDER BY length(w.code), w.code`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockLevel
	for rows.Next() {
		var lvl StockLevel
		if err := rows.Scan(&lvl.WarehouseID, &lvl.WarehouseCode, &lvl.ItemID, &lvl.Qty); err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}

// ListMovements returns the latest movements of an item.
func (r *Repository) ListMovements(ctx context.Context, itemID int64, limit int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, seq_no, kind, item_id, src_warehouse_id, dst_warehouse_id, qty, reason, created_at
FROM stock_movements WHERE item_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	var kind string
	if err := row.Scan(&m.ID, &m.Number, &m.SeqNo, &kind, &m.ItemID, &m.SrcWarehouseID, &m.DstWarehouseID, &m.Qty, &m.Reason, &m.CreatedAt); err != nil {
		return Movement{}, err
	}
	m.Type = MovementType(kind)
	return m, nil
}

func (t *txRepo) NextNumber(ctx context.Context, scope sequence.Scope) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, scope)
}

func (t *txRepo) InsertItem(ctx context.Context, item Item) (Item, error) {
	created, err := scanItem(t.tx.QueryRow(ctx, `INSERT INTO items (code, seq_no, name, unit, cost, price, reorder_level)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+itemColumns,
		item.Code, item.SeqNo, item.Name, item.Unit, item.Cost, item.Price, item.ReorderLevel))
	if db.IsUniqueViolation(err) {
		return Item{}, fmt.Errorf("inventory: item %s: %w", item.Code, sequence.ErrCollision)
	}
	return created, err
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	return scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) UpdateItem(ctx context.Context, item Item) error {
	_, err := t.tx.Exec(ctx, `UPDATE items SET name = $2, unit = $3, cost = $4, price = $5, reorder_level = $6, updated_at = NOW() WHERE id = $1`,
		item.ID, item.Name, item.Unit, item.Cost, item.Price, item.ReorderLevel)
	return err
}

func (t *txRepo) InsertWarehouse(ctx context.Context, wh Warehouse) (Warehouse, error) {
	created, err := scanWarehouse(t.tx.QueryRow(ctx, `INSERT INTO warehouses (code, seq_no, name, location) VALUES ($1, $2, $3, $4)
RETURNING id, code, seq_no, name, location, created_at`, wh.Code, wh.SeqNo, wh.Name, wh.Location))
	if db.IsUniqueViolation(err) {
		return Warehouse{}, fmt.Errorf("inventory: warehouse %s: %w", wh.Code, sequence.ErrCollision)
	}
	return created, err
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) (Movement, error) {
	created, err := scanMovement(t.tx.QueryRow(ctx, `INSERT INTO stock_movements (number, seq_no, kind, item_id, src_warehouse_id, dst_warehouse_id, qty, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, number, seq_no, kind, item_id, src_warehouse_id, dst_warehouse_id, qty, reason, created_at`,
		m.Number, m.SeqNo, string(m.Type), m.ItemID, m.SrcWarehouseID, m.DstWarehouseID, m.Qty, m.Reason))
	if db.IsUniqueViolation(err) {
		return Movement{}, fmt.Errorf("inventory: movement %s: %w", m.Number, sequence.ErrCollision)
	}
	return created, err
}

func (t *txRepo) AdjustStock(ctx context.Context, itemID, warehouseID int64, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, error) {
	return ledger.AdjustStock(ctx, t.tx, itemID, warehouseID, delta, allowNegative)
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
