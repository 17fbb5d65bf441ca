package customers

import (
	"context"
	"maps"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

type memoryCustomerRepo struct {
	customers map[int64]Customer
	seq       *sequence.MemoryStore
	alloc     *sequence.Allocator
	nextID    int64
	keys      map[string]bool
}

type memoryCustomerTx struct {
	repo *memoryCustomerRepo
}

func newMemoryCustomerRepo(strategy sequence.Strategy) *memoryCustomerRepo {
	return &memoryCustomerRepo{
		customers: make(map[int64]Customer),
		seq:       sequence.NewMemoryStore(),
		alloc:     sequence.NewAllocator(strategy, sequence.MalformedFail),
	}
}

func (r *memoryCustomerRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Customer, len(r.customers))
	for k, v := range r.customers {
		snapshot[k] = v
	}
	seq, nextID, keys := r.seq.Clone(), r.nextID, maps.Clone(r.keys)
	if err := fn(ctx, &memoryCustomerTx{repo: r}); err != nil {
		r.customers, r.seq, r.nextID = snapshot, seq, nextID
		r.keys = keys
		return err
	}
	return nil
}

func (r *memoryCustomerRepo) Get(ctx context.Context, id int64) (Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return Customer{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryCustomerRepo) List(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	var out []Customer
	for _, c := range r.customers {
		if filters.Overdue && !c.Balance.IsPositive() {
			continue
		}
		out = append(out, c)
	}
	return out, len(out), nil
}

func (tx *memoryCustomerTx) NextCode(ctx context.Context) (sequence.Identifier, error) {
	return tx.repo.alloc.Allocate(ctx, tx.repo.seq, sequence.Customers)
}

func (tx *memoryCustomerTx) Insert(ctx context.Context, c Customer) (Customer, error) {
	tx.repo.nextID++
	c.ID = tx.repo.nextID
	tx.repo.customers[c.ID] = c
	tx.repo.seq.Record(sequence.Customers, c.Code)
	return c, nil
}

func (tx *memoryCustomerTx) GetForUpdate(ctx context.Context, id int64) (Customer, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryCustomerTx) Update(ctx context.Context, c Customer) error {
	tx.repo.customers[c.ID] = c
	return nil
}

func (tx *memoryCustomerTx) Delete(ctx context.Context, id int64) error {
	tx.repo.seq.Forget(sequence.Customers, tx.repo.customers[id].Code)
	delete(tx.repo.customers, id)
	return nil
}

func TestCreateCustomerStartsAtOpeningBalance(t *testing.T) {
	for _, strategy := range []sequence.Strategy{sequence.StrategyCounter, sequence.StrategyQueryMax} {
		t.Run(string(strategy), func(t *testing.T) {
			svc := NewService(newMemoryCustomerRepo(strategy), nil)
			c, err := svc.Create(context.Background(), CreateInput{Name: "Toko Maju", OpeningBalance: decimal.NewFromInt(75)})
			require.NoError(t, err)
			require.Equal(t, "CU001", c.Code)
			require.True(t, c.Balance.Equal(decimal.NewFromInt(75)))

			c, err = svc.Create(context.Background(), CreateInput{Name: "Warung Sari"})
			require.NoError(t, err)
			require.Equal(t, "CU002", c.Code)
			require.True(t, c.Balance.IsZero())
		})
	}
}

func TestCreateCustomerRejectsNegativeCreditLimit(t *testing.T) {
	repo := newMemoryCustomerRepo(sequence.StrategyCounter)
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), CreateInput{Name: "Bad", CreditLimit: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, ErrValidation)
	require.Empty(t, repo.customers)

	c, err := svc.Create(context.Background(), CreateInput{Name: "Good"})
	require.NoError(t, err)
	require.Equal(t, "CU001", c.Code)
}

func TestUpdateCustomerKeepsBalance(t *testing.T) {
	svc := NewService(newMemoryCustomerRepo(sequence.StrategyCounter), nil)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{Name: "Toko", Email: "a@toko.id", OpeningBalance: decimal.NewFromInt(20)})
	require.NoError(t, err)

	limit := decimal.NewFromInt(500)
	updated, err := svc.Update(ctx, c.ID, UpdateInput{CreditLimit: &limit})
	require.NoError(t, err)
	require.Equal(t, "a@toko.id", updated.Email)
	require.True(t, updated.Balance.Equal(decimal.NewFromInt(20)))
	available, limited := updated.Available()
	require.True(t, limited)
	require.True(t, available.Equal(decimal.NewFromInt(480)))

	blank := " "
	_, err = svc.Update(ctx, c.ID, UpdateInput{Name: &blank})
	require.ErrorIs(t, err, ErrValidation)
	stored, err := svc.Get(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Toko", stored.Name)
}

func TestDeleteCustomerWithDebtRefused(t *testing.T) {
	repo := newMemoryCustomerRepo(sequence.StrategyCounter)
	svc := NewService(repo, nil)
	ctx := context.Background()
	c, err := svc.Create(ctx, CreateInput{Name: "Owes", OpeningBalance: decimal.NewFromInt(5)})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, c.ID), ErrInvalidState)
	require.ErrorIs(t, svc.Delete(ctx, 42), ErrNotFound)

	zero := decimal.Zero
	c.Balance = zero
	repo.customers[c.ID] = c
	require.NoError(t, svc.Delete(ctx, c.ID))
	require.Empty(t, repo.customers)
}

func (tx *memoryCustomerTx) ClaimKey(ctx context.Context, module, key string) error {
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
