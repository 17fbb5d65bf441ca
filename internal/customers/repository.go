package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Repository persists customers in Postgres.
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
	Insert(ctx context.Context, c Customer) (Customer, error)
	GetForUpdate(ctx context.Context, id int64) (Customer, error)
	Update(ctx context.Context, c Customer) error
	Delete(ctx context.Context, id int64) error
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn within a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "customers", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const customerColumns = `id, code, seq_no, name, phone, email, address, credit_limit, opening_balance, balance, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.SeqNo, &c.Name, &c.Phone, &c.Email, &c.Address, &c.CreditLimit, &c.OpeningBalance, &c.Balance, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, ErrNotFound
	}
	return c, err
}

// Get returns a customer by id.
func (r *Repository) Get(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

// List returns customers ordered by code with the total match count.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	var conditions []string
	var args []any
	if filters.Search != "" {
		args = append(args, shared.LikeContains(filters.Search))
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d OR phone ILIKE $%d)", len(args), len(args), len(args)))
	}
	if filters.Overdue {
		conditions = append(conditions, "balance > 0")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM customers%s ORDER BY length(code), code LIMIT $%d OFFSET $%d`, customerColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextCode(ctx context.Context) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, sequence.Customers)
}

func (t *txRepo) Insert(ctx context.Context, c Customer) (Customer, error) {
	created, err := scanCustomer(t.tx.QueryRow(ctx, `INSERT INTO customers (code, seq_no, name, phone, email, address, credit_limit, opening_balance, balance)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING `+customerColumns,
		c.Code, c.SeqNo, c.Name, c.Phone, c.Email, c.Address, c.CreditLimit, c.OpeningBalance, c.Balance))
	if db.IsUniqueViolation(err) {
		return Customer{}, fmt.Errorf("customers: code %s: %w", c.Code, sequence.ErrCollision)
	}
	return created, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Customer, error) {
	return scanCustomer(t.tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Update(ctx context.Context, c Customer) error {
	tag, err := t.tx.Exec(ctx, `UPDATE customers SET name = $2, phone = $3, email = $4, address = $5, credit_limit = $6, opening_balance = $7, balance = $8, updated_at = NOW() WHERE id = $1`,
		c.ID, c.Name, c.Phone, c.Email, c.Address, c.CreditLimit, c.OpeningBalance, c.Balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	switch {
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: customer has sales or receipts", ErrInvalidState)
	case err != nil:
		return err
	case tag.RowsAffected() == 0:
		return ErrNotFound
	}
	return nil
}

// ClaimKey implements shared.KeyClaimer inside the open transaction.
func (t *txRepo) ClaimKey(ctx context.Context, module, key string) error {
	return shared.ClaimKey(ctx, t.tx, module, key)
}
