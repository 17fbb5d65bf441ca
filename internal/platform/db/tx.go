package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxState is the lifecycle of a transaction: Started, then Committed or Aborted.
type TxState string

const (
	TxStarted   TxState = "started"
	TxCommitted TxState = "committed"
	TxAborted   TxState = "aborted"
)

// TxOutcome describes a finished transaction.
type TxOutcome struct {
	ID    uuid.UUID
	Label string
	State TxState
	Err   error
}

// TxObserver is notified when a transaction finishes.
type TxObserver interface {
	ObserveTx(ctx context.Context, outcome TxOutcome)
}

// TxOptions used by WithTx. Read committed lets concurrent writers queue on
// row locks (counters, balances) instead of failing with serialization errors.
var TxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Beginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Runner executes callbacks inside transactions and reports outcomes.
type Runner struct {
	db       Beginner
	observer TxObserver
}

// NewRunner builds a Runner. observer may be nil.
func NewRunner(db Beginner, observer TxObserver) *Runner {
	return &Runner{db: db, observer: observer}
}

// WithTx runs fn in a transaction. Any error from fn aborts the transaction and
// is returned unchanged; nothing written by fn survives an abort.
func (r *Runner) WithTx(ctx context.Context, label string, fn func(pgx.Tx) error) error {
	outcome := TxOutcome{ID: uuid.New(), Label: label, State: TxStarted}
	tx, err := r.db.BeginTx(ctx, TxOptions)
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		if outcome.State != TxCommitted {
			_ = tx.Rollback(ctx)
			outcome.State = TxAborted
		}
		if r.observer != nil {
			r.observer.ObserveTx(ctx, outcome)
		}
	}()

	if err := fn(tx); err != nil {
		outcome.Err = err
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		outcome.Err = err
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}
	outcome.State = TxCommitted
	return nil
}

// WithTx executes a function within a transaction on pool.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	return NewRunner(pool, nil).WithTx(ctx, "", fn)
}

// IsUniqueViolation reports whether err is a PostgreSQL unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// IsSerializationFailure reports whether err is a serialization_failure or deadlock.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
