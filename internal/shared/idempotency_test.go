package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeExecer struct {
	keys map[string]bool
	sql  []string
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = append(f.sql, sql)
	f.args = append(f.args, args)
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	if f.keys != nil && len(args) > 0 {
		key, _ := args[0].(string)
		if f.keys[key] {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505"}
		}
		f.keys[key] = true
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestClaimKeyScopesByModuleAndRejectsReplay(t *testing.T) {
	ctx := context.Background()
	q := &fakeExecer{keys: map[string]bool{}}

	require.NoError(t, ClaimKey(ctx, q, "payments", "abc"))
	err := ClaimKey(ctx, q, "payments", "abc")
	require.ErrorIs(t, err, ErrIdempotencyConflict)
	require.ErrorIs(t, err, ErrDuplicate)

	require.NoError(t, ClaimKey(ctx, q, "receipts", "abc"))
	require.Equal(t, "payments:abc", q.args[0][0])
	require.Equal(t, "payments", q.args[0][1])
}

func TestClaimKeyPassesOtherErrors(t *testing.T) {
	boom := errors.New("connection reset")
	err := ClaimKey(context.Background(), &fakeExecer{err: boom}, "sales", "k")
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrIdempotencyConflict)
}

type recordingClaimer struct{ claims []string }

func (r *recordingClaimer) ClaimKey(ctx context.Context, module, key string) error {
	r.claims = append(r.claims, module+":"+key)
	return nil
}

func TestClaimWithoutKeyIsUnguarded(t *testing.T) {
	tx := &recordingClaimer{}
	require.NoError(t, Claim(context.Background(), tx, "payments", ""))
	require.Empty(t, tx.claims)

	require.NoError(t, Claim(context.Background(), tx, "payments", "k1"))
	require.Equal(t, []string{"payments:k1"}, tx.claims)

	require.Error(t, Claim(context.Background(), tx, "", "k1"))
}

func TestIdempotencyStoreCleanupUsesCutoff(t *testing.T) {
	q := &fakeExecer{}
	store := NewIdempotencyStore(q)
	before := time.Now().Add(-24 * time.Hour)

	require.NoError(t, store.Cleanup(context.Background(), 24*time.Hour))
	require.Len(t, q.sql, 1)
	require.Contains(t, q.sql[0], "DELETE FROM idempotency_keys")
	cutoff, ok := q.args[0][0].(time.Time)
	require.True(t, ok)
	require.False(t, cutoff.Before(before))
}

func TestSequenceLockKey(t *testing.T) {
	require.Equal(t, "seq:suppliers:lock", SequenceLockKey("suppliers"))
}
