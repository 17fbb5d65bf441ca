package suppliers

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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
	NextCode(ctx context.Context) (sequence.Identifier, error)
	Insert(ctx context.Context, s Supplier) (Supplier, error)
	GetForUpdate(ctx context.Context, id int64) (Supplier, error)
	Update(ctx context.Context, s Supplier) error
	Delete(ctx context.Context, id int64) error
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn within a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "suppliers", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const supplierColumns = `id, code, seq_no, name, phone, email, address, opening_balance, balance, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Code, &s.SeqNo, &s.Name, &s.Phone, &s.Email, &s.Address, &s.OpeningBalance, &s.Balance, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

// Get returns a supplier by id.
func (r *Repository) Get(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
}

// List returns suppliers ordered by code with the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	where := ""
	args := []any{}
	if filters.Search != "" {
		where = ` WHERE code ILIKE $1 OR name ILIKE $1`
		args = append(args, shared.LikeContains(filters.Search))
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	sql := fmt.Sprintf(`SELECT %s FROM suppliers%s ORDER BY length(code), code LIMIT $%d OFFSET $%d`, supplierColumns, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextCode(ctx context.Context) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, sequence.Suppliers)
}

func (t *txRepo) Insert(ctx context.Context, s Supplier) (Supplier, error) {
	row := t.tx.QueryRow(ctx, `INSERT INTO suppliers (code, seq_no, name, phone, email, address, opening_balance, balance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+supplierColumns,
		s.Code, s.SeqNo, s.Name, s.Phone, s.Email, s.Address, s.OpeningBalance, s.Balance)
	created, err := scanSupplier(row)
	if db.IsUniqueViolation(err) {
		return Supplier{}, fmt.Errorf("suppliers: code %s: %w", s.Code, sequence.ErrCollision)
	}
	return created, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Supplier, error) {
	return scanSupplier(t.tx.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Update(ctx context.Context, s Supplier) error {
	tag, err := t.tx.Exec(ctx, `UPDATE suppliers SET name = $2, phone = $3, email = $4, address = $5, opening_balance = $6, balance = $7, updated_at = NOW() WHERE id = $1`,
		s.ID, s.Name, s.Phone, s.Email, s.Address, s.OpeningBalance, s.Balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: supplier has purchases or payments", ErrInvalidState)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
