package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = fmt.Errorf("idempotent request already processed: %w", ErrDuplicate)

// KeyClaimer is implemented by transactional repositories. A claim made
// through it commits or rolls back together with the request's writes.
type KeyClaimer interface {
	ClaimKey(ctx context.Context, module, key string) error
}

// Claim records key for module through tx. An empty key is not guarded.
func Claim(ctx context.Context, tx KeyClaimer, module, key string) error {
	if key == "" {
		return nil
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	return tx.ClaimKey(ctx, module, key)
}

// ClaimKey inserts module:key through q, normally an open pgx.Tx. A second
// claim of the same key waits on the unique index until the first
// transaction ends and then fails with ErrIdempotencyConflict.
func ClaimKey(ctx context.Context, q Execer, module, key string) error {
	_, err := q.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, module+":"+key, module, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// IdempotencyStore maintains the claimed keys table.
type IdempotencyStore struct {
	db Execer
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(db Execer) *IdempotencyStore {
	return &IdempotencyStore{db: db}
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.db.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
