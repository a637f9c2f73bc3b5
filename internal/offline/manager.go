// Package offline intercepts shop reads and answers them from versioned cache
// partitions, and replays checkouts that failed while the shop was offline.
package offline

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"automart/internal/common/logger"
	"automart/internal/metrics"
)

type State string

const (
	StateParsed     State = "parsed"
	StateInstalling State = "installing"
	StateInstalled  State = "installed"
	StateActivated  State = "activated"
)

type Config struct {
	Version          string
	StaticName       string
	DynamicName      string
	FallbackDocument string
	Manifest         []string
	Rules            []Rule
}

type Manager struct {
	cfg     Config
	storage Storage
	fetcher Fetcher
	log     *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu    sync.RWMutex
	state State

	bg sync.WaitGroup
}

func NewManager(cfg Config, storage Storage, fetcher Fetcher, log *logger.Logger, m *metrics.Metrics) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		cfg:     cfg,
		storage: storage,
		fetcher: fetcher,
		log:     log,
		metrics: m,
		now:     time.Now,
		state:   StateParsed,
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) Version() string { return m.cfg.Version }

// Install seeds the static partition with the whole manifest. Nothing is
// written unless every entry answered 200.
func (m *Manager) Install(ctx context.Context) error {
	m.setState(StateInstalling)
	m.log.Info("cache_installing", map[string]any{"version": m.cfg.Version, "assets": len(m.cfg.Manifest)})

	fetched := make([]*Response, len(m.cfg.Manifest))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range m.cfg.Manifest {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodGet, u, nil)
			if err != nil {
				return fmt.Errorf("manifest entry %q: %w", u, err)
			}
			resp, err := m.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("fetch %s: %w", u, err)
			}
			if resp.Status != http.StatusOK {
				return fmt.Errorf("fetch %s: HTTP %d", u, resp.Status)
			}
			fetched[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.setState(StateParsed)
		m.log.Error("cache_install_failed", err, map[string]any{"version": m.cfg.Version})
		return fmt.Errorf("install %s: %w", m.cfg.Version, err)
	}

	static, err := m.storage.Open(ctx, m.cfg.StaticName)
	if err != nil {
		m.setState(StateParsed)
		return fmt.Errorf("install %s: %w", m.cfg.Version, err)
	}
	for i, u := range m.cfg.Manifest {
		req, _ := http.NewRequest(http.MethodGet, u, nil)
		r := fetched[i]
		r.StoredAt = m.now()
		if err := static.Put(ctx, cacheKey(req), r); err != nil {
			_, _ = m.storage.Delete(context.WithoutCancel(ctx), m.cfg.StaticName)
			m.setState(StateParsed)
			m.log.Error("cache_install_failed", err, map[string]any{"version": m.cfg.Version, "url": u})
			return fmt.Errorf("install %s: %w", m.cfg.Version, err)
		}
	}
	m.setState(StateInstalled)
	m.log.Info("cache_installed", map[string]any{"version": m.cfg.Version, "assets": len(fetched)})
	return nil
}

// Activate drops every partition of an older version and takes control of
// all clients. It requires a completed install.
func (m *Manager) Activate(ctx context.Context) error {
	switch m.State() {
	case StateActivated:
		return nil
	case StateInstalled:
	default:
		return fmt.Errorf("activate %s: not installed (state %s)", m.cfg.Version, m.State())
	}

	names, err := m.storage.Keys(ctx)
	if err != nil {
		return fmt.Errorf("activate %s: %w", m.cfg.Version, err)
	}
	for _, n := range names {
		if n == m.cfg.StaticName || n == m.cfg.DynamicName {
			continue
		}
		if _, err := m.storage.Delete(ctx, n); err != nil {
			return fmt.Errorf("activate %s: %w", m.cfg.Version, err)
		}
		m.log.Info("cache_deleted", map[string]any{"cache": n})
	}
	m.setState(StateActivated)
	m.log.Info("clients_claimed", map[string]any{"version": m.cfg.Version})
	return nil
}

// SkipWaiting activates an installed manager right away.
func (m *Manager) SkipWaiting(ctx context.Context) error {
	if m.State() != StateInstalled {
		return nil
	}
	return m.Activate(ctx)
}

// Start installs, skips waiting and activates.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.Install(ctx); err != nil {
		return err
	}
	return m.SkipWaiting(ctx)
}

// Wait blocks until background revalidations have finished.
func (m *Manager) Wait() { m.bg.Wait() }

// Serve answers r with the strategy its rule selects. A passthrough rule
// returns a nil response.
func (m *Manager) Serve(ctx context.Context, r *http.Request) (*Response, Rule, string, error) {
	rule := Select(m.cfg.Rules, r)
	var (
		resp   *Response
		result string
		err    error
	)
	switch rule.Strategy {
	case Passthrough:
		return nil, rule, "bypass", nil
	case CacheFirst:
		resp, result, err = m.cacheFirst(ctx, r)
	case NetworkFirst:
		resp, result, err = m.networkFirst(ctx, r)
	default:
		resp, result, err = m.staleWhileRevalidate(ctx, r)
	}
	m.metrics.Cache(string(rule.Strategy), result)
	return resp, rule, result, err
}
