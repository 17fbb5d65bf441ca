package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore reads identifiers from owning tables and keeps counters in
// document_sequences.
type PGStore struct {
	q Querier
}

// NewPGStore binds a store to a pool or an open transaction.
func NewPGStore(q Querier) *PGStore {
	return &PGStore{q: q}
}

// LastIdentifier implements Store.
func (s *PGStore) LastIdentifier(ctx context.Context, scope Scope) (string, error) {
	col := pgx.Identifier{scope.Column}.Sanitize()
	query := fmt.Sprintf(`SELECT %[1]s FROM %[2]s WHERE %[1]s LIKE $1 ORDER BY length(%[1]s) DESC, %[1]s DESC LIMIT 1`,
		col, pgx.Identifier{scope.Table}.Sanitize())
	var id string
	if err := s.q.QueryRow(ctx, query, shared.LikePrefix(scope.Format.Prefix)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoIdentifier
		}
		return "", err
	}
	return id, nil
}

// IncrementCounter implements Store. The UPDATE holds the counter row lock
// until the surrounding transaction ends, serialising allocations per scope.
func (s *PGStore) IncrementCounter(ctx context.Context, scope Scope, seed SeedFunc) (int64, error) {
	var value int64
	err := s.q.QueryRow(ctx, `UPDATE document_sequences SET last_value = last_value + 1, updated_at = NOW() WHERE scope = $1 RETURNING last_value`, scope.Name).Scan(&value)
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	start, err := seed(ctx)
	if err != nil {
		return 0, err
	}
	err = s.q.QueryRow(ctx, `
		INSERT INTO document_sequences (scope, last_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (scope)
		DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value
	`, scope.Name, start+1).Scan(&value)
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Counters implements Admin.
func (s *PGStore) Counters(ctx context.Context) ([]CounterState, error) {
	rows, err := s.q.Query(ctx, `SELECT scope, last_value FROM document_sequences ORDER BY scope`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CounterState
	for rows.Next() {
		var c CounterState
		if err := rows.Scan(&c.Scope, &c.LastValue); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCounter implements Admin.
func (s *PGStore) SetCounter(ctx context.Context, scope Scope, value int64) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO document_sequences (scope, last_value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (scope) DO UPDATE SET last_value = EXCLUDED.last_value, updated_at = NOW()
	`, scope.Name, value)
	return err
}

