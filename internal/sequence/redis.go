package sequence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bizdesk/internal/shared"
)

const redisKeyPrefix = "seq:"

// RedisStore keeps counters in Redis and delegates Last-Value Lookup to a
// base store. Counters are not part of the database transaction: an aborted
// write leaves a gap, never a duplicate.
type RedisStore struct {
	client  *redis.Client
	locker  *redislock.Client
	base    Store
	lockTTL time.Duration
}

// NewRedisStore wraps base with Redis-backed counters.
func NewRedisStore(client *redis.Client, base Store) *RedisStore {
	return &RedisStore{client: client, locker: redislock.New(client), base: base, lockTTL: 10 * time.Second}
}

// Bind returns a copy of the store reading identifiers from base.
func (s *RedisStore) Bind(base Store) *RedisStore {
	c := *s
	c.base = base
	return &c
}

// LastIdentifier implements Store.
func (s *RedisStore) LastIdentifier(ctx context.Context, scope Scope) (string, error) {
	if s.base == nil {
		return "", ErrNoIdentifier
	}
	return s.base.LastIdentifier(ctx, scope)
}

// IncrementCounter implements Store.
func (s *RedisStore) IncrementCounter(ctx context.Context, scope Scope, seed SeedFunc) (int64, error) {
	key := redisKeyPrefix + scope.Name
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		if err := s.seed(ctx, key, scope, seed); err != nil {
			return 0, err
		}
	}
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) seed(ctx context.Context, key string, scope Scope, seed SeedFunc) error {
	lock, err := s.locker.Obtain(ctx, shared.SequenceLockKey(scope.Name), s.lockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return fmt.Errorf("sequence: seed lock for %s not obtained: %w", scope.Name, err)
	}
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil || exists > 0 {
		return err
	}
	start, err := seed(ctx)
	if err != nil {
		return err
	}
	return s.client.SetNX(ctx, key, start, 0).Err()
}

// Counters implements Admin.
func (s *RedisStore) Counters(ctx context.Context) ([]CounterState, error) {
	var out []CounterState
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if strings.HasSuffix(key, ":lock") {
			continue
		}
		v, err := s.client.Get(ctx, key).Int64()
		if err != nil {
			return nil, err
		}
		out = append(out, CounterState{Scope: strings.TrimPrefix(key, redisKeyPrefix), LastValue: v})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Scope < out[j].Scope })
	return out, nil
}

// SetCounter implements Admin.
func (s *RedisStore) SetCounter(ctx context.Context, scope Scope, value int64) error {
	return s.client.Set(ctx, redisKeyPrefix+scope.Name, value, 0).Err()
}
