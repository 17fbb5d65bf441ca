package receipts

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

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, seq *sequence.Sequencer) *Repository {
	return &Repository{pool: pool, runner: runner, seq: seq}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ClaimKey(ctx context.Context, module, key string) error
	NextNumber(ctx context.Context) (sequence.Identifier, error)
	Insert(ctx context.Context, p Receipt) (Receipt, error)
	GetForUpdate(ctx context.Context, id int64) (Receipt, error)
	Delete(ctx context.Context, id int64) error
	AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) error
}

var _ TxRepository = (*txRepo)(nil)

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "receipts", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const receiptColumns = `id, number, seq_no, customer_id, amount, method, note, received_at, created_at`

func scanReceipt(row pgx.Row) (Receipt, error) {
	var p Receipt
	err := row.Scan(&p.ID, &p.Number, &p.SeqNo, &p.CustomerID, &p.Amount, &p.Method, &p.Note, &p.ReceivedAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Receipt{}, ErrNotFound
	}
	return p, err
}

// Get returns a receipt by id.
func (r *Repository) Get(ctx context.Context, id int64) (Receipt, error) {
	return scanReceipt(r.pool.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id))
}

// List returns receipts, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Receipt, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filters.CustomerID > 0 {
		add("customer_id = $%d", filters.CustomerID)
	}
	if !filters.From.IsZero() {
		add("received_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("received_at < $%d", filters.To.AddDate(0, 0, 1))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM receipts`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM receipts%s ORDER BY received_at DESC, seq_no DESC LIMIT $%d OFFSET $%d`, receiptColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Receipt
	for rows.Next() {
		p, err := scanReceipt(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextNumber(ctx context.Context) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, sequence.Receipts)
}

func (t *txRepo) Insert(ctx context.Context, p Receipt) (Receipt, error) {
	created, err := scanReceipt(t.tx.QueryRow(ctx, `INSERT INTO receipts (number, seq_no, customer_id, amount, method, note, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+receiptColumns,
		p.Number, p.SeqNo, p.CustomerID, p.Amount, p.Method, p.Note, p.ReceivedAt))
	switch {
	case db.IsUniqueViolation(err):
		return Receipt{}, fmt.Errorf("receipts: number %s: %w", p.Number, sequence.ErrCollision)
	case db.IsForeignKeyViolation(err):
		return Receipt{}, fmt.Errorf("%w: customer %d", ErrNotFound, p.CustomerID)
	}
	return created, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Receipt, error) {
	return scanReceipt(t.tx.QueryRow(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM receipts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AdjustCustomerBalance(ctx context.Context, customerID int64, delta decimal.Decimal) error {
	_, err := ledger.AdjustCustomerBalance(ctx, t.tx, customerID, delta)
	return err
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
