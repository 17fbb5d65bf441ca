package payments

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
	Insert(ctx context.Context, p Payment) (Payment, error)
	GetForUpdate(ctx context.Context, id int64) (Payment, error)
	Delete(ctx context.Context, id int64) error
	AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error
}

var _ TxRepository = (*txRepo)(nil)

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "payments", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const paymentColumns = `id, number, seq_no, supplier_id, amount, method, note, paid_at, created_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.Number, &p.SeqNo, &p.SupplierID, &p.Amount, &p.Method, &p.Note, &p.PaidAt, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Payment{}, ErrNotFound
	}
	return p, err
}

// Get returns a payment by id.
func (r *Repository) Get(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM supplier_payments WHERE id = $1`, id))
}

// List returns payments, newest first, with the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Payment, int, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filters.SupplierID > 0 {
		add("supplier_id = $%d", filters.SupplierID)
	}
	if !filters.From.IsZero() {
		add("paid_at >= $%d", filters.From)
	}
	if !filters.To.IsZero() {
		add("paid_at < $%d", filters.To.AddDate(0, 0, 1))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM supplier_payments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM supplier_payments%s ORDER BY paid_at DESC, seq_no DESC LIMIT $%d OFFSET $%d`, paymentColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextNumber(ctx context.Context) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, sequence.SupplierPayments)
}

func (t *txRepo) Insert(ctx context.Context, p Payment) (Payment, error) {
	created, err := scanPayment(t.tx.QueryRow(ctx, `INSERT INTO supplier_payments (number, seq_no, supplier_id, amount, method, note, paid_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+paymentColumns,
		p.Number, p.SeqNo, p.SupplierID, p.Amount, p.Method, p.Note, p.PaidAt))
	switch {
	case db.IsUniqueViolation(err):
		return Payment{}, fmt.Errorf("payments: number %s: %w", p.Number, sequence.ErrCollision)
	case db.IsForeignKeyViolation(err):
		return Payment{}, fmt.Errorf("%w: supplier %d", ErrNotFound, p.SupplierID)
	}
	return created, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Payment, error) {
	return scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM supplier_payments WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM supplier_payments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error {
	_, err := ledger.AdjustSupplierBalance(ctx, t.tx, supplierID, delta)
	return err
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
