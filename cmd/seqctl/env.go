package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/bizdesk/internal/app"
	"github.com/odyssey-erp/bizdesk/internal/platform/cache"
	"github.com/odyssey-erp/bizdesk/internal/platform/db"
	"github.com/odyssey-erp/bizdesk/internal/sequence"
)

// env carries the connections a command needs.
type env struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client
	runner *db.Runner
	seq    *sequence.Sequencer
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: app.NewLogger(cfg)}
	e.pool, err = db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}
	if cfg.SequenceBackend == app.BackendRedis {
		e.redis, err = cache.New(ctx, cfg.RedisOptions())
		if err != nil {
			e.Close()
			return nil, err
		}
	}
	e.runner = db.NewRunner(e.pool, nil)
	e.seq, err = app.NewSequencer(cfg, e.redis, nil)
	if err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *env) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.pool != nil {
		e.pool.Close()
	}
}
