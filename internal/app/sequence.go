package app

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bizdesk/internal/platform/cache"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
)

// NewSequencer builds the identifier sequencer selected by configuration.
// redisClient is only consulted for the redis backend.
func NewSequencer(cfg *Config, redisClient *redis.Client, recorder sequence.Recorder) (*sequence.Sequencer, error) {
	strategy, err := sequence.ParseStrategy(cfg.SequenceStrategy)
	if err != nil {
		return nil, err
	}
	policy, err := sequence.ParsePolicy(cfg.SequenceMalformed)
	if err != nil {
		return nil, err
	}
	var opts []sequence.Option
	if recorder != nil {
		opts = append(opts, sequence.WithRecorder(recorder))
	}
	alloc := sequence.NewAllocator(strategy, policy, opts...)

	bind := sequence.PostgresBinding()
	if cfg.SequenceBackend == BackendRedis {
		if redisClient == nil {
			return nil, errors.New("redis sequence backend requires a redis connection")
		}
		bind = sequence.RedisBinding(redisClient)
	}
	return sequence.NewSequencer(alloc, bind), nil
}

// RedisOptions returns the platform cache options for the configured Redis.
func (c *Config) RedisOptions() cache.Options {
	return cache.Options{Addr: c.RedisAddr, Password: c.RedisPassword, DB: c.RedisDB}
}
