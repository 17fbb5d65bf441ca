package suppliers

import (
	"context"
	"maps"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/bizdesk/internal/sequence"
	"github.com/odyssey-erp/bizdesk/internal/shared"
)

type memorySupplierRepo struct {
	mu        sync.Mutex
	suppliers map[int64]Supplier
	seq       *sequence.MemoryStore
	alloc     *sequence.Allocator
	nextID    int64
	keys      map[string]bool
}

type memorySupplierTx struct {
	repo *memorySupplierRepo
}

func newMemorySupplierRepo() *memorySupplierRepo {
	return &memorySupplierRepo{
		suppliers: make(map[int64]Supplier),
		seq:       sequence.NewMemoryStore(),
		alloc:     sequence.NewAllocator(sequence.StrategyCounter, sequence.MalformedFail),
	}
}

func (r *memorySupplierRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Supplier, len(r.suppliers))
	for k, v := range r.suppliers {
		snapshot[k] = v
	}
	seq, nextID, keys := r.seq.Clone(), r.nextID, maps.Clone(r.keys)
	if err := fn(ctx, &memorySupplierTx{repo: r}); err != nil {
		r.suppliers, r.seq, r.nextID = snapshot, seq, nextID
		r.keys = keys
		return err
	}
	return nil
}

func (r *memorySupplierRepo) Get(ctx context.Context, id int64) (Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (r *memorySupplierRepo) List(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Supplier
	for _, s := range r.suppliers {
		if filters.Search != "" && !strings.Contains(strings.ToLower(s.Name+" "+s.Code), strings.ToLower(filters.Search)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeqNo < out[j].SeqNo })
	total := len(out)
	if filters.Offset < len(out) {
		out = out[filters.Offset:]
	} else {
		out = nil
	}
	if len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (tx *memorySupplierTx) NextCode(ctx context.Context) (sequence.Identifier, error) {
	return tx.repo.alloc.Allocate(ctx, tx.repo.seq, sequence.Suppliers)
}

func (tx *memorySupplierTx) Insert(ctx context.Context, s Supplier) (Supplier, error) {
	for _, existing := range tx.repo.suppliers {
		if existing.Code == s.Code {
			return Supplier{}, sequence.ErrCollision
		}
	}
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	tx.repo.suppliers[s.ID] = s
	tx.repo.seq.Record(sequence.Suppliers, s.Code)
	return s, nil
}

func (tx *memorySupplierTx) GetForUpdate(ctx context.Context, id int64) (Supplier, error) {
	s, ok := tx.repo.suppliers[id]
	if !ok {
		return Supplier{}, ErrNotFound
	}
	return s, nil
}

func (tx *memorySupplierTx) Update(ctx context.Context, s Supplier) error {
	if _, ok := tx.repo.suppliers[s.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.suppliers[s.ID] = s
	return nil
}

func (tx *memorySupplierTx) Delete(ctx context.Context, id int64) error {
	s, ok := tx.repo.suppliers[id]
	if !ok {
		return ErrNotFound
	}
	delete(tx.repo.suppliers, id)
	tx.repo.seq.Forget(sequence.Suppliers, s.Code)
	return nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateAllocatesSequentialCodes(t *testing.T) {
	repo := newMemorySupplierRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit)
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "Acme Trading", OpeningBalance: decimal.NewFromInt(150)})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{Name: "  Borneo Supply  "})
	require.NoError(t, err)

	require.Equal(t, "SU001", first.Code)
	require.Equal(t, int64(1), first.SeqNo)
	require.True(t, first.Balance.Equal(decimal.NewFromInt(150)))
	require.Equal(t, "SU002", second.Code)
	require.Equal(t, "Borneo Supply", second.Name)
	require.Len(t, audit.logs, 2)
	require.Equal(t, "SU002", audit.logs[1].EntityID)
}

func TestCreateContinuesFromExistingCodes(t *testing.T) {
	repo := newMemorySupplierRepo()
	repo.seq.Record(sequence.Suppliers, "SU007")
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), CreateInput{Name: "Cahaya"})
	require.NoError(t, err)
	require.Equal(t, "SU008", created.Code)
}

func TestCreateRejectsBlankName(t *testing.T) {
	svc := NewService(newMemorySupplierRepo(), nil)
	_, err := svc.Create(context.Background(), CreateInput{Name: "   "})
	require.ErrorIs(t, err, ErrValidation)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateMergesAndShiftsBalance(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	created, err := svc.Create(ctx, CreateInput{Name: "Acme", Phone: "0800", OpeningBalance: decimal.NewFromInt(100)})
	require.NoError(t, err)

	name := "Acme Ltd"
	opening := decimal.NewFromInt(40)
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Name: &name, OpeningBalance: &opening})
	require.NoError(t, err)
	require.Equal(t, "Acme Ltd", updated.Name)
	require.Equal(t, "0800", updated.Phone)
	require.Equal(t, created.Code, updated.Code)
	require.True(t, updated.Balance.Equal(decimal.NewFromInt(40)))

	_, err = svc.Update(ctx, 999, UpdateInput{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRequiresSettledBalance(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	owed, err := svc.Create(ctx, CreateInput{Name: "Owed", OpeningBalance: decimal.NewFromInt(10)})
	require.NoError(t, err)
	settled, err := svc.Create(ctx, CreateInput{Name: "Settled"})
	require.NoError(t, err)

	err = svc.Delete(ctx, owed.ID)
	require.ErrorIs(t, err, ErrInvalidState)
	_, err = svc.Get(ctx, owed.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, settled.ID))
	_, err = svc.Get(ctx, settled.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFailedCreateLeavesNoTrace(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateInput{Name: "First"})
	require.NoError(t, err)

	boom := errors.New("write failed")
	err = repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.NextCode(ctx); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	next, err := svc.Create(ctx, CreateInput{Name: "Second"})
	require.NoError(t, err)
	require.Equal(t, "SU002", next.Code)
}

func TestConcurrentCreatesProduceDistinctCodes(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo, nil)

	const n = 30
	var wg sync.WaitGroup
	codes := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := svc.Create(context.Background(), CreateInput{Name: "Supplier"})
			codes[i], errs[i] = s.Code, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.False(t, seen[codes[i]], "duplicate code %s", codes[i])
		seen[codes[i]] = true
	}
	require.True(t, seen["SU030"])
}

func TestListPaginates(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()
	for _, name := range []string{"Alpha", "Beta", "Gamma"} {
		_, err := svc.Create(ctx, CreateInput{Name: name})
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, ListFilters{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 2)
	require.Equal(t, "SU001", items[0].Code)

	items, total, err = svc.List(ctx, ListFilters{Search: "gam"})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Gamma", items[0].Name)
}

func (tx *memorySupplierTx) ClaimKey(ctx context.Context, module, key string) error {
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
