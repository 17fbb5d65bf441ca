package perf

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bizdesk/internal/observability"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
)

func BenchmarkCounterAllocationMemory(b *testing.B) {
	alloc := sequence.NewAllocator(sequence.StrategyCounter, sequence.MalformedFail)
	store := sequence.NewMemoryStore()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := alloc.Allocate(ctx, store, sequence.TillSales); err != nil {
			b.Fatalf("allocate: %v", err)
		}
	}
}

func BenchmarkCounterAllocationRedis(b *testing.B) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		b.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	alloc := sequence.NewAllocator(sequence.StrategyCounter, sequence.MalformedFail)
	store := sequence.NewRedisStore(client, sequence.NewMemoryStore())
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := alloc.Allocate(ctx, store, sequence.TillSales); err != nil {
			b.Fatalf("allocate: %v", err)
		}
	}
}

func BenchmarkParallelCounterAllocation(b *testing.B) {
	alloc := sequence.NewAllocator(sequence.StrategyCounter, sequence.MalformedFail)
	store := sequence.NewMemoryStore()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			if _, err := alloc.Allocate(ctx, store, sequence.Invoices); err != nil {
				b.Errorf("allocate: %v", err)
				return
			}
		}
	})
}

// Counter allocations from many tills must stay unique and cheap at p95.
func TestTillAllocationLatencyTargets(t *testing.T) {
	metrics := observability.NewMetrics()
	alloc := sequence.NewAllocator(sequence.StrategyCounter, sequence.MalformedFail, sequence.WithRecorder(metrics))
	store := sequence.NewMemoryStore()

	const tills, perTill = 8, 200
	var (
		mu      sync.Mutex
		samples = make([]time.Duration, 0, tills*perTill)
		seen    = make(map[int64]bool, tills*perTill)
		wg      sync.WaitGroup
	)
	for i := 0; i < tills; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perTill; j++ {
				start := time.Now()
				id, err := alloc.Allocate(context.Background(), store, sequence.TillSales)
				elapsed := time.Since(start)
				if err != nil {
					t.Errorf("allocate: %v", err)
					return
				}
				mu.Lock()
				if seen[id.Value] {
					t.Errorf("duplicate identifier %s", id.Display)
				}
				seen[id.Value] = true
				samples = append(samples, elapsed)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != tills*perTill {
		t.Fatalf("expected %d identifiers, got %d", tills*perTill, len(seen))
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("allocation latency regression: p95=%s", p95)
	}

	gatherer, ok := metrics.Registerer().(prometheus.Gatherer)
	if !ok {
		t.Fatal("metrics registry is not a gatherer")
	}
	families, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	got := metricValue(t, families, "bizdesk_sequence_allocations_total", map[string]string{"scope": sequence.TillSales.Name, "strategy": "counter"})
	if got != tills*perTill {
		t.Fatalf("expected %d recorded allocations, got %v", tills*perTill, got)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
