package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/microservices/cacheproxy"
	"automart/internal/microservices/lockeragent"
	"automart/internal/microservices/order"
	"automart/internal/microservices/shop"
	"automart/internal/microservices/syncworker"
)

const modes = "order-service | shop-service | cache-proxy | sync-worker | locker-agent"

func main() {
	mode := flag.String("mode", "", modes)
	port := flag.Int("port", 0, "http port for services that expose HTTP")
	cfgPath := flag.String("config", "", "path to config.yaml (default: ./config.yaml, then deploy/config.example.yaml)")
	name := flag.String("name", "locker-agent", "locker-agent: consumer tag")
	flag.Parse()

	lg := logger.New("bootstrap")

	cfg, path, err := loadConfig(*cfgPath)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": *cfgPath})
		os.Exit(1)
	}
	logger.SetDebug(cfg.App.Debug)
	lg.Debug("config_loaded", map[string]any{"path": path, "version": cfg.App.Version})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var run func() error
	switch *mode {
	case "order-service":
		p := portOr(*port, 3001)
		run = func() error { return order.Run(ctx, cfg, p) }
		lg.Info("service_started", map[string]any{"service": *mode, "port": p})
	case "shop-service":
		p := portOr(*port, 3002)
		run = func() error { return shop.Run(ctx, cfg, p) }
		lg.Info("service_started", map[string]any{"service": *mode, "port": p})
	case "cache-proxy":
		p := portOr(*port, 3000)
		run = func() error { return cacheproxy.Run(ctx, cfg, p) }
		lg.Info("service_started", map[string]any{"service": *mode, "port": p, "upstream": cfg.Cache.Upstream})
	case "sync-worker":
		run = func() error { return syncworker.Run(ctx, cfg) }
		lg.Info("service_started", map[string]any{"service": *mode})
	case "locker-agent":
		run = func() error { return lockeragent.Run(ctx, cfg, *name) }
		lg.Info("service_started", map[string]any{"service": *mode, "name": *name})
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: "+modes)
		os.Exit(2)
	}

	if err := run(); err != nil {
		lg.Error("fatal", err, map[string]any{"service": *mode})
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		found, err := config.FindConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, "", err
		}
		path = found
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

func portOr(p, def int) int {
	if p == 0 {
		return def
	}
	return p
}
