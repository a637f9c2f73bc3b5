package offline

import (
	"context"
	"net/http"
)

// Results reported per strategy.
const (
	resultHit      = "hit"
	resultMiss     = "miss"
	resultNetwork  = "network"
	resultFallback = "fallback"
	resultStale    = "stale"
	resultError    = "error"
)

func (m *Manager) match(ctx context.Context, key string) (*Response, bool) {
	r, ok, err := m.storage.Match(ctx, key)
	if err != nil {
		m.log.Error("cache_match_failed", err, map[string]any{"url": key})
		return nil, false
	}
	return r, ok
}

func (m *Manager) put(ctx context.Context, partition, key string, r *Response) {
	p, err := m.storage.Open(ctx, partition)
	if err == nil {
		c := r.Clone()
		c.StoredAt = m.now()
		err = p.Put(ctx, key, c)
	}
	if err != nil {
		m.log.Error("cache_put_failed", err, map[string]any{"cache": partition, "url": key})
	}
}

// cacheFirst answers from any partition and only goes to the network on a miss.
// Navigations that fail both ways get the cached root document.
func (m *Manager) cacheFirst(ctx context.Context, r *http.Request) (*Response, string, error) {
	key := cacheKey(r)
	if cached, ok := m.match(ctx, key); ok {
		return cached, resultHit, nil
	}

	resp, err := m.fetcher.Fetch(ctx, r)
	if err == nil {
		if resp.Status == http.StatusOK {
			m.put(context.WithoutCancel(ctx), m.cfg.StaticName, key, resp)
		}
		return resp, resultMiss, nil
	}

	m.log.Warn("cache_first_failed", map[string]any{"url": key, "reason": err.Error()})
	if isNavigation(r) && m.cfg.FallbackDocument != "" {
		if doc, ok := m.match(ctx, m.cfg.FallbackDocument); ok {
			return doc, resultFallback, nil
		}
	}
	return nil, resultError, err
}

// networkFirst prefers a fresh answer; a network failure falls back to any cached copy.
func (m *Manager) networkFirst(ctx context.Context, r *http.Request) (*Response, string, error) {
	key := cacheKey(r)
	resp, err := m.fetcher.Fetch(ctx, r)
	if err == nil {
		if resp.Status == http.StatusOK {
			m.put(context.WithoutCancel(ctx), m.cfg.DynamicName, key, resp)
		}
		return resp, resultNetwork, nil
	}

	m.log.Debug("network_first_fallback", map[string]any{"url": key, "reason": err.Error()})
	if cached, ok := m.match(ctx, key); ok {
		return cached, resultFallback, nil
	}
	return nil, resultError, err
}

// staleWhileRevalidate answers from the dynamic partition at once and refreshes
// it in the background; without a cached copy the caller waits for the network.
func (m *Manager) staleWhileRevalidate(ctx context.Context, r *http.Request) (*Response, string, error) {
	key := cacheKey(r)
	var (
		cached *Response
		ok     bool
	)
	if dyn, err := m.storage.Open(ctx, m.cfg.DynamicName); err != nil {
		m.log.Error("cache_open_failed", err, map[string]any{"cache": m.cfg.DynamicName})
	} else if cached, ok, err = dyn.Match(ctx, key); err != nil {
		m.log.Error("cache_match_failed", err, map[string]any{"url": key})
		ok = false
	}

	if ok {
		bg := context.WithoutCancel(ctx)
		req := r.Clone(bg)
		m.bg.Add(1)
		go func() {
			defer m.bg.Done()
			m.revalidate(bg, req, key)
		}()
		return cached, resultStale, nil
	}

	resp, err := m.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, resultError, err
	}
	if resp.Status == http.StatusOK {
		m.put(context.WithoutCancel(ctx), m.cfg.DynamicName, key, resp)
	}
	return resp, resultNetwork, nil
}

func (m *Manager) revalidate(ctx context.Context, r *http.Request, key string) {
	resp, err := m.fetcher.Fetch(ctx, r)
	if err != nil {
		m.log.Warn("revalidate_failed", map[string]any{"url": key, "reason": err.Error()})
		return
	}
	if resp.Status == http.StatusOK {
		m.put(ctx, m.cfg.DynamicName, key, resp)
	}
}
