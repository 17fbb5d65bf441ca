package sequence

import (
	"context"
	"errors"
)

// Admin exposes counter maintenance used by tooling.
type Admin interface {
	Counters(ctx context.Context) ([]CounterState, error)
	SetCounter(ctx context.Context, scope Scope, value int64) error
}

// Reseed sets the scope counter to the highest parsable identifier stored in
// the scope's collection and returns that value. Malformed identifiers fail
// the reseed so they can be repaired first.
func Reseed(ctx context.Context, store Store, admin Admin, scope Scope) (int64, error) {
	last, err := store.LastIdentifier(ctx, scope)
	var value int64
	switch {
	case errors.Is(err, ErrNoIdentifier):
		value = 0
	case err != nil:
		return 0, err
	default:
		value, err = scope.Format.Parse(last)
		if err != nil {
			return 0, err
		}
	}
	if err := admin.SetCounter(ctx, scope, value); err != nil {
		return 0, err
	}
	return value, nil
}
