package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeTx struct {
	pgx.Tx
	commitErr  error
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.commitErr != nil {
		return t.commitErr
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx   *fakeTx
	err  error
	opts pgx.TxOptions
}

func (b *fakeBeginner) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	b.opts = opts
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

type recordingObserver struct {
	outcomes []TxOutcome
}

func (o *recordingObserver) ObserveTx(ctx context.Context, outcome TxOutcome) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestRunnerCommits(t *testing.T) {
	tx := &fakeTx{}
	obs := &recordingObserver{}
	runner := NewRunner(&fakeBeginner{tx: tx}, obs)

	err := runner.WithTx(context.Background(), "suppliers", func(pgx.Tx) error { return nil })
	require.NoError(t, err)
	require.True(t, tx.committed)
	require.False(t, tx.rolledBack)
	require.Len(t, obs.outcomes, 1)
	require.Equal(t, TxCommitted, obs.outcomes[0].State)
	require.Equal(t, "suppliers", obs.outcomes[0].Label)
}

func TestRunnerAbortsAndReturnsCallbackError(t *testing.T) {
	tx := &fakeTx{}
	obs := &recordingObserver{}
	beginner := &fakeBeginner{tx: tx}
	runner := NewRunner(beginner, obs)
	boom := errors.New("supplier missing")

	err := runner.WithTx(context.Background(), "payments", func(pgx.Tx) error { return boom })
	require.Same(t, boom, err)
	require.True(t, tx.rolledBack)
	require.False(t, tx.committed)
	require.Equal(t, TxAborted, obs.outcomes[0].State)
	require.Same(t, boom, obs.outcomes[0].Err)
	require.Equal(t, pgx.ReadCommitted, beginner.opts.IsoLevel)
}

func TestRunnerAbortsOnCommitFailure(t *testing.T) {
	conflict := &pgconn.PgError{Code: "40001"}
	tx := &fakeTx{commitErr: conflict}
	obs := &recordingObserver{}
	runner := NewRunner(&fakeBeginner{tx: tx}, obs)

	err := runner.WithTx(context.Background(), "sales", func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, conflict)
	require.True(t, IsSerializationFailure(err))
	require.True(t, tx.rolledBack)
	require.Equal(t, TxAborted, obs.outcomes[0].State)
}

func TestRunnerBeginFailure(t *testing.T) {
	obs := &recordingObserver{}
	runner := NewRunner(&fakeBeginner{err: errors.New("pool closed")}, obs)

	called := false
	err := runner.WithTx(context.Background(), "", func(pgx.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
	require.Empty(t, obs.outcomes)
}

func TestRunnerAbortsOnPanic(t *testing.T) {
	tx := &fakeTx{}
	obs := &recordingObserver{}
	runner := NewRunner(&fakeBeginner{tx: tx}, obs)

	require.Panics(t, func() {
		_ = runner.WithTx(context.Background(), "", func(pgx.Tx) error { panic("boom") })
	})
	require.True(t, tx.rolledBack)
	require.Equal(t, TxAborted, obs.outcomes[0].State)
}

func TestPgErrorClassification(t *testing.T) {
	require.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("other")))
	require.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
}
