package offline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"automart/internal/domain"
)

// Fetcher performs the network side of a strategy.
type Fetcher interface {
	Fetch(ctx context.Context, r *http.Request) (*Response, error)
}

type FetcherFunc func(ctx context.Context, r *http.Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, r *http.Request) (*Response, error) { return f(ctx, r) }

// HTTPFetcher sends requests upstream; relative URLs resolve against base.
type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

func NewHTTPFetcher(base string, client *http.Client) (*HTTPFetcher, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse upstream %q: %w", base, err)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{base: u, client: client}, nil
}

var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

func (f *HTTPFetcher) Fetch(ctx context.Context, r *http.Request) (*Response, error) {
	target := f.base.ResolveReference(&url.URL{Path: r.URL.Path, RawQuery: r.URL.RawQuery})
	if r.URL.IsAbs() {
		target = r.URL
	}
	out, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	out.Header = r.Header.Clone()
	for _, h := range hopHeaders {
		out.Header.Del(h)
	}

	resp, err := f.client.Do(out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("fetch %s: %w: %v", target, domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", target, domain.ErrNetwork, err)
	}
	h := resp.Header.Clone()
	for _, k := range hopHeaders {
		h.Del(k)
	}
	return &Response{Status: resp.StatusCode, Header: h, Body: body}, nil
}
