package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"

	"automart/internal/common/logger"
)

// Connect parses url and pings the server until it answers or ctx is done.
func Connect(ctx context.Context, url string, lg *logger.Logger) (*redis.Client, error) {
	if lg == nil {
		lg = logger.Nop()
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	ping := func() error { return rdb.Ping(ctx).Err() }
	notify := func(err error, wait time.Duration) {
		lg.Warn("redis_connect_retry", map[string]any{"addr": opts.Addr, "wait": wait.String(), "reason": err.Error()})
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}
	lg.Info("redis_connected", map[string]any{"addr": opts.Addr, "db": opts.DB})
	return rdb, nil
}
