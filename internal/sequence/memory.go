package sequence

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// CounterState is a persisted counter value.
type CounterState struct {
	Scope     string `yaml:"scope" json:"scope"`
	LastValue int64  `yaml:"last_value" json:"last_value"`
}

// MemoryStore keeps identifiers and counters in process memory. It backs
// tests and offline tooling.
type MemoryStore struct {
	mu       sync.Mutex
	ids      map[string][]string
	counters map[string]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ids: make(map[string][]string), counters: make(map[string]int64)}
}

// Record stores id as written to the scope's collection.
func (m *MemoryStore) Record(scope Scope, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[scope.Table] = append(m.ids[scope.Table], id)
}

// Forget removes id from the scope's collection.
func (m *MemoryStore) Forget(scope Scope, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.ids[scope.Table]
	for i, v := range list {
		if v == id {
			m.ids[scope.Table] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// LastIdentifier implements Store.
func (m *MemoryStore) LastIdentifier(ctx context.Context, scope Scope) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best string
	found := false
	for _, id := range m.ids[scope.Table] {
		if !strings.HasPrefix(id, scope.Format.Prefix) {
			continue
		}
		if !found || ranksAbove(id, best) {
			best = id
			found = true
		}
	}
	if !found {
		return "", ErrNoIdentifier
	}
	return best, nil
}

// IncrementCounter implements Store.
func (m *MemoryStore) IncrementCounter(ctx context.Context, scope Scope, seed SeedFunc) (int64, error) {
	m.mu.Lock()
	current, ok := m.counters[scope.Name]
	m.mu.Unlock()
	if !ok {
		v, err := seed(ctx)
		if err != nil {
			return 0, err
		}
		current = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.counters[scope.Name]; ok && existing > current {
		current = existing
	}
	current++
	m.counters[scope.Name] = current
	return current, nil
}

// Counters implements Admin.
func (m *MemoryStore) Counters(ctx context.Context) ([]CounterState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CounterState, 0, len(m.counters))
	for name, v := range m.counters {
		out = append(out, CounterState{Scope: name, LastValue: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

// SetCounter implements Admin.
func (m *MemoryStore) SetCounter(ctx context.Context, scope Scope, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[scope.Name] = value
	return nil
}

// Clone returns an independent copy, used to stage transactional writes.
func (m *MemoryStore) Clone() *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := NewMemoryStore()
	for k, v := range m.ids {
		c.ids[k] = append([]string(nil), v...)
	}
	for k, v := range m.counters {
		c.counters[k] = v
	}
	return c
}
