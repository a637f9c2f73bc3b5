// Package cacheproxy runs the offline cache manager in front of the shop.
package cacheproxy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"automart/internal/apiclient"
	"automart/internal/common/httpx"
	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections"
	"automart/internal/metrics"
	"automart/internal/offline"
)

func Run(ctx context.Context, cfg *config.Config, port int) error {
	lg := logger.New("cache-proxy")
	m := metrics.New()
	res := connections.New(cfg, lg)
	defer res.Close()

	storage, err := res.CacheStorage(ctx)
	if err != nil {
		return err
	}
	queue, err := res.PendingQueue(ctx)
	if err != nil {
		return err
	}
	upstream, err := url.Parse(cfg.Cache.Upstream)
	if err != nil {
		return fmt.Errorf("parse upstream %q: %w", cfg.Cache.Upstream, err)
	}
	fetcher, err := offline.NewHTTPFetcher(cfg.Cache.Upstream, &http.Client{Timeout: cfg.API.Timeout})
	if err != nil {
		return err
	}

	mgr := offline.NewManager(ManagerConfig(cfg), storage, fetcher, lg.With("cache"), m)
	api := apiclient.New(apiclient.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		DefaultCustomer: cfg.User.DefaultName,
		DefaultLocation: cfg.User.DefaultLocation,
	}, apiclient.WithLogger(lg.With("api-client")))
	syncer := offline.NewSyncer(queue, api, cfg.Sync.Tag, lg.With("sync"), m)

	if err := start(ctx, mgr, lg); err != nil {
		return err
	}
	defer mgr.Wait()

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		lg.Warn("upstream_unavailable", map[string]any{"url": r.URL.String(), "reason": err.Error()})
		httpx.WriteProblem(w, http.StatusBadGateway, "bad gateway", "upstream unavailable")
	}

	lg.Info("listening", map[string]any{"port": port, "upstream": cfg.Cache.Upstream, "version": mgr.Version()})
	return httpx.New(":"+strconv.Itoa(port), Routes(mgr, syncer, proxy, m)).Run(ctx)
}

// start installs and activates, retrying while the upstream comes up.
func start(ctx context.Context, mgr *offline.Manager, lg *logger.Logger) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute
	notify := func(err error, wait time.Duration) {
		lg.Warn("cache_start_retry", map[string]any{"wait": wait.String(), "reason": err.Error()})
	}
	return backoff.RetryNotify(func() error { return mgr.Start(ctx) }, backoff.WithContext(b, ctx), notify)
}

func ManagerConfig(cfg *config.Config) offline.Config {
	c := cfg.Cache
	return offline.Config{
		Version:          c.Version,
		StaticName:       c.StaticName,
		DynamicName:      c.DynamicName,
		FallbackDocument: c.FallbackDocument,
		Manifest:         c.Manifest,
		Rules: offline.DefaultRules(offline.RuleConfig{
			NoCache:          c.NoCache,
			StaticExtensions: c.StaticExtensions,
			StaticHosts:      c.StaticHosts,
			APIPatterns:      c.APIPatterns,
		}),
	}
}

type syncRequest struct {
	Tag string `json:"tag"`
}

func Routes(mgr *offline.Manager, syncer *offline.Syncer, passthrough http.Handler, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /__sw/message", mgr.MessageHandler())
	mux.HandleFunc("POST /__sw/sync", func(w http.ResponseWriter, r *http.Request) {
		var req syncRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteError(w, err)
			return
		}
		rep, err := syncer.Sync(r.Context(), req.Tag)
		if err != nil {
			httpx.WriteError(w, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, rep)
	})
	mux.HandleFunc("GET /__sw/status", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"version": mgr.Version(), "state": mgr.State()})
	})
	mux.Handle("GET /metrics", m.Handler())
	mux.Handle("/", mgr.Handler(passthrough))
	return mux
}
