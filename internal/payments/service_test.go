package payments

import (
	"context"
	"maps"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizdesk/internal/ledger"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

type memoryPaymentRepo struct {
	mu       sync.Mutex
	payments map[int64]Payment
	balances map[int64]decimal.Decimal
	seq      *sequence.MemoryStore
	alloc    *sequence.Allocator
	nextID   int64
	keys     map[string]bool
}

type memoryPaymentTx struct {
	repo *memoryPaymentRepo
}

func newMemoryPaymentRepo(balances map[int64]decimal.Decimal) *memoryPaymentRepo {
	return &memoryPaymentRepo{
		payments: make(map[int64]Payment),
		balances: balances,
		seq:      sequence.NewMemoryStore(),
		alloc:    sequence.NewAllocator(sequence.StrategyCounter, sequence.MalformedFail),
	}
}

func (r *memoryPaymentRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payments := make(map[int64]Payment, len(r.payments))
	for k, v := range r.payments {
		payments[k] = v
	}
	balances := make(map[int64]decimal.Decimal, len(r.balances))
	for k, v := range r.balances {
		balances[k] = v
	}
	seq, nextID, keys := r.seq.Clone(), r.nextID, maps.Clone(r.keys)
	if err := fn(ctx, &memoryPaymentTx{repo: r}); err != nil {
		r.payments, r.balances, r.seq, r.nextID = payments, balances, seq, nextID
		r.keys = keys
		return err
	}
	return nil
}

func (r *memoryPaymentRepo) Get(ctx context.Context, id int64) (Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return Payment{}, ErrNotFound
	}
	return p, nil
}

func (r *memoryPaymentRepo) List(ctx context.Context, filters ListFilters) ([]Payment, int, error) {
	var out []Payment
	for _, p := range r.payments {
		if filters.SupplierID == 0 || p.SupplierID == filters.SupplierID {
			out = append(out, p)
		}
	}
	return out, len(out), nil
}

func (tx *memoryPaymentTx) NextNumber(ctx context.Context) (sequence.Identifier, error) {
	return tx.repo.alloc.Allocate(ctx, tx.repo.seq, sequence.SupplierPayments)
}

// Insert does not enforce the supplier reference so the balance update is the
// step that detects a missing supplier.
func (tx *memoryPaymentTx) Insert(ctx context.Context, p Payment) (Payment, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.payments[p.ID] = p
	tx.repo.seq.Record(sequence.SupplierPayments, p.Number)
	return p, nil
}

func (tx *memoryPaymentTx) GetForUpdate(ctx context.Context, id int64) (Payment, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryPaymentTx) Delete(ctx context.Context, id int64) error {
	if _, ok := tx.repo.payments[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.payments, id)
	return nil
}

func (tx *memoryPaymentTx) AdjustSupplierBalance(ctx context.Context, supplierID int64, delta decimal.Decimal) error {
	balance, ok := tx.repo.balances[supplierID]
	if !ok {
		return fmt.Errorf("%w: suppliers %d", ledger.ErrNotFound, supplierID)
	}
	tx.repo.balances[supplierID] = balance.Add(delta)
	return nil
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCreateLowersSupplierBalance(t *testing.T) {
	repo := newMemoryPaymentRepo(map[int64]decimal.Decimal{7: dec("150000")})
	svc := NewService(repo, nil)

	payment, err := svc.Create(context.Background(), CreateInput{SupplierID: 7, Amount: dec("40000")})
	require.NoError(t, err)
	require.Equal(t, "PAY-0001", payment.Number)
	require.Equal(t, MethodCash, payment.Method)
	require.False(t, payment.PaidAt.IsZero())
	require.True(t, repo.balances[7].Equal(dec("110000")))
}

func TestCreateForMissingSupplierLeavesNoPayment(t *testing.T) {
	repo := newMemoryPaymentRepo(map[int64]decimal.Decimal{7: dec("150000")})
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{SupplierID: 8, Amount: dec("1000")})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.payments)
	require.True(t, repo.balances[7].Equal(dec("150000")))

	payment, err := svc.Create(context.Background(), CreateInput{SupplierID: 7, Amount: dec("1000")})
	require.NoError(t, err)
	require.Equal(t, "PAY-0001", payment.Number)
}

func TestVoidRestoresBalance(t *testing.T) {
	repo := newMemoryPaymentRepo(map[int64]decimal.Decimal{7: dec("500")})
	svc := NewService(repo, nil)
	ctx := context.Background()

	payment, err := svc.Create(ctx, CreateInput{SupplierID: 7, Amount: dec("200"), Method: "Transfer"})
	require.NoError(t, err)
	require.Equal(t, MethodTransfer, payment.Method)

	voided, err := svc.Void(ctx, payment.ID)
	require.NoError(t, err)
	require.Equal(t, payment.Number, voided.Number)
	require.True(t, repo.balances[7].Equal(dec("500")))
	require.Empty(t, repo.payments)

	_, err = svc.Void(ctx, payment.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryPaymentRepo(map[int64]decimal.Decimal{7: decimal.Zero}), nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{SupplierID: 7, Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, CreateInput{SupplierID: 7, Amount: dec("10"), Method: "barter"})
	require.ErrorIs(t, err, ErrValidation)
	_, err = svc.Create(ctx, CreateInput{Amount: dec("10")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestConcurrentPaymentsKeepBalanceAndNumbersConsistent(t *testing.T) {
	repo := newMemoryPaymentRepo(map[int64]decimal.Decimal{7: dec("1000")})
	svc := NewService(repo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(context.Background(), CreateInput{SupplierID: 7, Amount: dec("10")})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.True(t, repo.balances[7].Equal(dec("800")))
	seen := make(map[string]bool)
	for _, p := range repo.payments {
		require.False(t, seen[p.Number], "duplicate %s", p.Number)
		seen[p.Number] = true
	}
	require.Len(t, seen, 20)
}

func TestCreateIsIdempotentPerKey(t *testing.T) {
	repo := newMemoryPaymentRepo(map[int64]decimal.Decimal{7: dec("100")})
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{SupplierID: 7, Amount: dec("30"), IdempotencyKey: "k1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{SupplierID: 7, Amount: dec("30"), IdempotencyKey: "k1"})
	require.True(t, errors.Is(err, shared.ErrDuplicate))
	require.True(t, repo.balances[7].Equal(dec("70")))
	require.Len(t, repo.payments, 1)

	// The key is claimed inside the transaction, so a failed write leaves nothing behind.
	_, err = svc.Create(ctx, CreateInput{SupplierID: 9, Amount: dec("30"), IdempotencyKey: "k2"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.NotContains(t, repo.keys, "payments:k2")
	require.Contains(t, repo.keys, "payments:k1")

	repo.balances[9] = decimal.Zero
	_, err = svc.Create(ctx, CreateInput{SupplierID: 9, Amount: dec("30"), IdempotencyKey: "k2"})
	require.NoError(t, err)
}

func (tx *memoryPaymentTx) ClaimKey(ctx context.Context, module, key string) error {
	scoped := module + ":" + key
	if tx.repo.keys[scoped] {
		return shared.ErrIdempotencyConflict
	}
	if tx.repo.keys == nil {
		tx.repo.keys = make(map[string]bool)
	}
	tx.repo.keys[scoped] = true
	return nil
}
