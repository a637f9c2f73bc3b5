// Package syncworker drains the pending order queue whenever the order
// service is reachable.
package syncworker

import (
	"context"

	"automart/internal/apiclient"
	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections"
	"automart/internal/metrics"
	"automart/internal/offline"
)

func Run(ctx context.Context, cfg *config.Config) error {
	lg := logger.New("sync-worker")
	return run(ctx, cfg, lg, metrics.New())
}

func run(ctx context.Context, cfg *config.Config, lg *logger.Logger, m *metrics.Metrics) error {
	res := connections.New(cfg, lg)
	defer res.Close()

	if cfg.Queue.Driver == "" || cfg.Queue.Driver == "memory" {
		lg.Warn("queue_not_shared", map[string]any{"driver": "memory", "hint": "set queue.driver to redis or postgres"})
	}
	queue, err := res.PendingQueue(ctx)
	if err != nil {
		return err
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		DefaultCustomer: cfg.User.DefaultName,
		DefaultLocation: cfg.User.DefaultLocation,
	}, apiclient.WithLogger(lg.With("api-client")))

	syncer := offline.NewSyncer(queue, api, cfg.Sync.Tag, lg.With("sync"), m)
	watcher := offline.NewConnectivityWatcher(api, syncer, cfg.Sync.ProbeInterval, cfg.Sync.Heartbeat, lg)

	lg.Info("worker_started", map[string]any{
		"api":       cfg.API.BaseURL,
		"queue":     cfg.Queue.Driver,
		"interval":  cfg.Sync.ProbeInterval.String(),
		"heartbeat": cfg.Sync.Heartbeat.String(),
	})
	err = watcher.Run(ctx)
	lg.Info("worker_stopped", nil)
	return err
}
