package sequence

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Strategy selects how the next counter value is obtained.
type Strategy string

const (
	// StrategyCounter increments a dedicated counter document inside the
	// caller's transaction.
	StrategyCounter Strategy = "counter"
	// StrategyQueryMax reads the highest existing identifier and adds one.
	// Two concurrent allocations in the same scope can yield the same value.
	StrategyQueryMax Strategy = "max"
)

// MalformedPolicy decides what happens when the last identifier cannot be parsed.
type MalformedPolicy string

const (
	// MalformedFail surfaces ErrMalformedIdentifier to the caller.
	MalformedFail MalformedPolicy = "fail"
	// MalformedReset restarts the scope at 1.
	MalformedReset MalformedPolicy = "reset"
)

// ParseStrategy converts configuration text into a Strategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case "", StrategyCounter:
		return StrategyCounter, nil
	case StrategyQueryMax:
		return StrategyQueryMax, nil
	default:
		return "", fmt.Errorf("sequence: unknown strategy %q", value)
	}
}

// ParsePolicy converts configuration text into a MalformedPolicy.
func ParsePolicy(value string) (MalformedPolicy, error) {
	switch MalformedPolicy(value) {
	case "", MalformedFail:
		return MalformedFail, nil
	case MalformedReset:
		return MalformedReset, nil
	default:
		return "", fmt.Errorf("sequence: unknown malformed policy %q", value)
	}
}

// Identifier is an allocated counter together with its display form.
type Identifier struct {
	Value   int64
	Display string
}

// SeedFunc reports the highest counter value already allocated in a scope,
// or zero when the scope is empty.
type SeedFunc func(ctx context.Context) (int64, error)

// Store is the backing collection used by the allocator.
type Store interface {
	// LastIdentifier returns the highest identifier stored for scope or
	// ErrNoIdentifier.
	LastIdentifier(ctx context.Context, scope Scope) (string, error)
	// IncrementCounter atomically bumps the scope counter and returns the new
	// value. seed is consulted only when the counter does not exist yet.
	IncrementCounter(ctx context.Context, scope Scope, seed SeedFunc) (int64, error)
}

// Recorder observes successful allocations.
type Recorder interface {
	ObserveAllocation(scope, strategy string)
}

// Allocator produces identifiers for scopes.
type Allocator struct {
	strategy Strategy
	policy   MalformedPolicy
	recorder Recorder
}

// Option customises an Allocator.
type Option func(*Allocator)

// WithRecorder attaches an allocation recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Allocator) { a.recorder = r }
}

// NewAllocator builds an Allocator.
func NewAllocator(strategy Strategy, policy MalformedPolicy, opts ...Option) *Allocator {
	if strategy == "" {
		strategy = StrategyCounter
	}
	if policy == "" {
		policy = MalformedFail
	}
	a := &Allocator{strategy: strategy, policy: policy}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Strategy reports the configured strategy.
func (a *Allocator) Strategy() Strategy {
	return a.strategy
}

// Allocate returns the next identifier of scope using store.
func (a *Allocator) Allocate(ctx context.Context, store Store, scope Scope) (Identifier, error) {
	if store == nil {
		return Identifier{}, errors.New("sequence: store not configured")
	}
	var (
		n   int64
		err error
	)
	switch a.strategy {
	case StrategyQueryMax:
		n, err = a.nextFromLast(ctx, store, scope)
	default:
		n, err = store.IncrementCounter(ctx, scope, func(ctx context.Context) (int64, error) {
			next, err := a.nextFromLast(ctx, store, scope)
			if err != nil {
				return 0, err
			}
			return next - 1, nil
		})
	}
	if err != nil {
		return Identifier{}, err
	}
	display, err := scope.Format.Render(n)
	if err != nil {
		return Identifier{}, err
	}
	if a.recorder != nil {
		a.recorder.ObserveAllocation(scope.Name, string(a.strategy))
	}
	return Identifier{Value: n, Display: display}, nil
}

func (a *Allocator) nextFromLast(ctx context.Context, store Store, scope Scope) (int64, error) {
	last, err := store.LastIdentifier(ctx, scope)
	found := true
	if errors.Is(err, ErrNoIdentifier) {
		found = false
	} else if err != nil {
		return 0, err
	}
	return Advance(last, found, scope.Format, a.policy)
}

// Advance returns the counter that follows last. Without a last identifier
// the scope starts at 1.
func Advance(last string, found bool, format Format, policy MalformedPolicy) (int64, error) {
	if !found {
		return 1, nil
	}
	n, err := format.Parse(last)
	if err != nil {
		if policy == MalformedReset {
			return 1, nil
		}
		return 0, err
	}
	if n == math.MaxInt64 {
		return 0, fmt.Errorf("sequence: counter overflow after %q", last)
	}
	return n + 1, nil
}

// ranksAbove orders identifiers the way LastIdentifier does: longer first,
// then lexically.
func ranksAbove(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a > b
}
