package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T, base Store) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, base), mr
}

func TestRedisStoreSeedsFromBase(t *testing.T) {
	base := NewMemoryStore()
	base.Record(Suppliers, "SU041")
	store, mr := newTestRedisStore(t, base)
	alloc := NewAllocator(StrategyCounter, MalformedFail)
	ctx := context.Background()

	id, err := alloc.Allocate(ctx, store, Suppliers)
	require.NoError(t, err)
	require.Equal(t, "SU042", id.Display)

	id, err = alloc.Allocate(ctx, store, Suppliers)
	require.NoError(t, err)
	require.Equal(t, "SU043", id.Display)

	raw, err := mr.Get("seq:suppliers")
	require.NoError(t, err)
	require.Equal(t, "43", raw)
}

func TestRedisStoreConcurrentAllocationsAreUnique(t *testing.T) {
	store, _ := newTestRedisStore(t, NewMemoryStore())
	alloc := NewAllocator(StrategyCounter, MalformedFail)

	const n = 20
	var (
		mu   sync.Mutex
		seen = map[string]bool{}
		wg   sync.WaitGroup
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := alloc.Allocate(context.Background(), store, SupplierPayments)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			seen[id.Display] = true
		}()
	}
	wg.Wait()
	require.Empty(t, errs)
	require.Len(t, seen, n)
	require.True(t, seen["PAY-0001"])
	require.True(t, seen["PAY-0020"])
}

func TestRedisStoreAdmin(t *testing.T) {
	store, _ := newTestRedisStore(t, NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, store.SetCounter(ctx, Purchases, 17))
	require.NoError(t, store.SetCounter(ctx, Customers, 3))

	counters, err := store.Counters(ctx)
	require.NoError(t, err)
	require.Equal(t, []CounterState{{Scope: "customers", LastValue: 3}, {Scope: "purchases", LastValue: 17}}, counters)

	id, err := NewAllocator(StrategyCounter, MalformedFail).Allocate(ctx, store, Purchases)
	require.NoError(t, err)
	require.Equal(t, "PUR-0018", id.Display)
}
