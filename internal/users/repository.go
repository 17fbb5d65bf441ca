package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Repository handles database operations for users.
type Repository struct {
	pool   *pgxpool.Pool
	runner *db.Runner
	seq    *sequence.Sequencer
}

// NewRepository creates a new users repository.
func NewRepository(pool *pgxpool.Pool, runner *db.Runner, seq *sequence.Sequencer) *Repository {
	return &Repository{pool: pool, runner: runner, seq: seq}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	NextCode(ctx context.Context) (sequence.Identifier, error)
	Insert(ctx context.Context, u User) (User, error)
	GetForUpdate(ctx context.Context, id int64) (User, error)
	Update(ctx context.Context, u User) error
}

type txRepo struct {
	tx  pgx.Tx
	seq *sequence.Sequencer
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return r.runner.WithTx(ctx, "users", func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx, seq: r.seq})
	})
}

const userColumns = `id, code, seq_no, name, email, role, active, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role string
	err := row.Scan(&u.ID, &u.Code, &u.SeqNo, &u.Name, &u.Email, &role, &u.Active, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	u.Role = Role(role)
	return u, err
}

// Get returns a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// List returns users ordered by code.
func (r *Repository) List(ctx context.Context, filters ListFilters) ([]User, int, error) {
	var conds []string
	var args []any
	if filters.Search != "" {
		args = append(args, shared.LikeContains(filters.Search))
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR email ILIKE $%d OR code ILIKE $%d)", len(args), len(args), len(args)))
	}
	if filters.Role != "" {
		args = append(args, string(filters.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filters.ActiveOnly {
		conds = append(conds, "active")
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	args = append(args, filters.Limit, filters.Offset)
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT %s FROM users%s ORDER BY seq_no LIMIT $%d OFFSET $%d`, userColumns, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (t *txRepo) NextCode(ctx context.Context) (sequence.Identifier, error) {
	return t.seq.Next(ctx, t.tx, sequence.Users)
}

func (t *txRepo) Insert(ctx context.Context, u User) (User, error) {
	created, err := scanUser(t.tx.QueryRow(ctx, `INSERT INTO users (code, seq_no, name, email, role, active, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+userColumns,
		u.Code, u.SeqNo, u.Name, u.Email, string(u.Role), u.Active, u.PasswordHash))
	if db.IsUniqueViolation(err) {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "users_email_key" {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("users: code %s: %w", u.Code, sequence.ErrCollision)
	}
	return created, err
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (User, error) {
	return scanUser(t.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Update(ctx context.Context, u User) error {
	tag, err := t.tx.Exec(ctx, `UPDATE users SET name = $2, role = $3, active = $4, updated_at = NOW() WHERE id = $1`, u.ID, u.Name, string(u.Role), u.Active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
