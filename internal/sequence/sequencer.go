package sequence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// BindFunc returns a Store operating on the given database handle.
type BindFunc func(q Querier) Store

// PostgresBinding keeps counters in document_sequences.
func PostgresBinding() BindFunc {
	return func(q Querier) Store { return NewPGStore(q) }
}

// RedisBinding keeps counters in Redis and reads identifiers through q.
func RedisBinding(client *redis.Client) BindFunc {
	rs := NewRedisStore(client, nil)
	return func(q Querier) Store { return rs.Bind(NewPGStore(q)) }
}

// Sequencer allocates identifiers against a store bound per call, so the
// counter increment joins the caller's transaction when q is a pgx.Tx.
type Sequencer struct {
	alloc *Allocator
	bind  BindFunc
}

// NewSequencer builds a Sequencer. A nil bind defaults to PostgresBinding.
func NewSequencer(alloc *Allocator, bind BindFunc) *Sequencer {
	if alloc == nil {
		alloc = NewAllocator(StrategyCounter, MalformedFail)
	}
	if bind == nil {
		bind = PostgresBinding()
	}
	return &Sequencer{alloc: alloc, bind: bind}
}

// Next allocates the next identifier of scope through q.
func (s *Sequencer) Next(ctx context.Context, q Querier, scope Scope) (Identifier, error) {
	return s.alloc.Allocate(ctx, s.bind(q), scope)
}

// Store returns the store bound to q.
func (s *Sequencer) Store(q Querier) Store {
	return s.bind(q)
}
