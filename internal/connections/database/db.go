package database

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"automart/internal/common/logger"
	"automart/internal/config"
)

const (
	maxRetries = 10
	retryDelay = 2 * time.Second
	pingTTL    = 5 * time.Second
)

// Connect opens a pool and pings it, retrying while postgres comes up.
func Connect(ctx context.Context, cfg config.DatabaseConfig, lg *logger.Logger) (*pgxpool.Pool, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}

	var (
		pool    *pgxpool.Pool
		attempt int
	)
	op := func() error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return err
		}
		pctx, cancel := context.WithTimeout(ctx, pingTTL)
		err = p.Ping(pctx)
		cancel()
		if err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		lg.Warn("db_connect_retry", map[string]any{"attempt": attempt, "wait": wait.String(), "reason": err.Error()})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retryDelay), maxRetries-1), ctx)
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("db connect canceled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("database unreachable after %d attempts: %w", attempt, err)
	}
	lg.Info("db_connected", map[string]any{"host": cfg.Host, "port": cfg.Port, "database": cfg.Database})
	return pool, nil
}
