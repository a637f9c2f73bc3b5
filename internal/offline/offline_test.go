package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automart/internal/domain"
)

var testRules = RuleConfig{
	NoCache:          []string{"/api/", "google-analytics.com"},
	StaticExtensions: []string{".css", ".js", ".png", ".woff2"},
	StaticHosts:      []string{"fonts.googleapis.com"},
	APIPatterns:      []string{"/order/", "/orders", "/products", "/pickup/"},
}

type stubFetcher struct {
	mu    sync.Mutex
	calls atomic.Int32
	resp  map[string]*Response
	fail  bool
}

func newStub() *stubFetcher { return &stubFetcher{resp: map[string]*Response{}} }

func (f *stubFetcher) set(url string, status int, body string) {
	f.mu.Lock()
	f.resp[url] = &Response{Status: status, Header: http.Header{"Content-Type": {"text/plain"}}, Body: []byte(body)}
	f.mu.Unlock()
}

func (f *stubFetcher) offline(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *stubFetcher) Fetch(_ context.Context, r *http.Request) (*Response, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, fmt.Errorf("fetch %s: %w", r.URL, domain.ErrNetwork)
	}
	if resp, ok := f.resp[cacheKey(r)]; ok {
		return resp.Clone(), nil
	}
	return &Response{Status: http.StatusNotFound, Body: []byte("nope")}, nil
}

func testConfig(manifest ...string) Config {
	return Config{
		Version:          "automart-v1.0.0",
		StaticName:       "automart-static-v1",
		DynamicName:      "automart-dynamic-v1",
		FallbackDocument: "/index.html",
		Manifest:         manifest,
		Rules:            DefaultRules(testRules),
	}
}

func newManager(t *testing.T, f Fetcher, manifest ...string) (*Manager, *MemoryStorage) {
	t.Helper()
	st := NewMemoryStorage()
	return NewManager(testConfig(manifest...), st, f, nil, nil), st
}

func get(url string, hdr ...string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, url, nil)
	for i := 0; i+1 < len(hdr); i += 2 {
		r.Header.Set(hdr[i], hdr[i+1])
	}
	return r
}

func seed(t *testing.T, st Storage, partition, key, body string) {
	t.Helper()
	p, err := st.Open(context.Background(), partition)
	require.NoError(t, err)
	require.NoError(t, p.Put(context.Background(), key, &Response{Status: 200, Body: []byte(body)}))
}

func TestSelect(t *testing.T) {
	rules := DefaultRules(testRules)
	post := httptest.NewRequest(http.MethodPost, "/order/complete", nil)

	tests := []struct {
		req  *http.Request
		want Strategy
	}{
		{post, Passthrough},
		{get("/api/order/complete"), Passthrough},
		{get("https://www.google-analytics.com/collect"), Passthrough},
		{get("/css/style.css"), CacheFirst},
		{get("/js/app.js?v=2"), CacheFirst},
		{get("https://fonts.googleapis.com/css2?family=Inter"), CacheFirst},
		{get("/products?category=offers"), NetworkFirst},
		{get("/orders/ORD-1"), NetworkFirst},
		{get("/"), StaleWhileRevalidate},
		{get("/about"), StaleWhileRevalidate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Select(rules, tt.req).Strategy, tt.req.URL.String())
	}
}

func TestCacheFirstHitNeverTouchesNetwork(t *testing.T) {
	f := newStub()
	m, st := newManager(t, f)
	seed(t, st, "automart-static-v1", "/css/style.css", "body{}")

	resp, rule, result, err := m.Serve(context.Background(), get("/css/style.css"))
	require.NoError(t, err)
	assert.Equal(t, CacheFirst, rule.Strategy)
	assert.Equal(t, resultHit, result)
	assert.Equal(t, "body{}", string(resp.Body))
	assert.Zero(t, f.calls.Load())
}

func TestCacheFirstStoresOnlyOK(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.set("/js/app.js", 200, "app()")
	m, st := newManager(t, f)

	_, _, result, err := m.Serve(ctx, get("/js/app.js"))
	require.NoError(t, err)
	assert.Equal(t, resultMiss, result)
	_, _, result, err = m.Serve(ctx, get("/js/app.js"))
	require.NoError(t, err)
	assert.Equal(t, resultHit, result)
	assert.EqualValues(t, 1, f.calls.Load())

	resp, _, _, err := m.Serve(ctx, get("/js/missing.js"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.Status)
	_, found, _ := st.Match(ctx, "/js/missing.js")
	assert.False(t, found)
}

func TestCacheFirstNavigationFallback(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.offline(true)
	m, st := newManager(t, f)
	seed(t, st, "automart-static-v1", "/index.html", "<html>shop</html>")

	resp, _, result, err := m.Serve(ctx, get("/js/page.js", "Sec-Fetch-Dest", "document"))
	require.NoError(t, err)
	assert.Equal(t, resultFallback, result)
	assert.Equal(t, "<html>shop</html>", string(resp.Body))

	_, _, _, err = m.Serve(ctx, get("/js/other.js"))
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestNetworkFirstFallsBackToCache(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.set("/products", 200, `{"products":[]}`)
	m, st := newManager(t, f)

	resp, _, result, err := m.Serve(ctx, get("/products"))
	require.NoError(t, err)
	assert.Equal(t, resultNetwork, result)
	assert.Equal(t, `{"products":[]}`, string(resp.Body))

	dyn, err := st.Open(ctx, "automart-dynamic-v1")
	require.NoError(t, err)
	_, found, _ := dyn.Match(ctx, "/products")
	assert.True(t, found)

	f.offline(true)
	resp, _, result, err = m.Serve(ctx, get("/products"))
	require.NoError(t, err, "cached copy beats the network failure")
	assert.Equal(t, resultFallback, result)
	assert.Equal(t, `{"products":[]}`, string(resp.Body))

	_, _, _, err = m.Serve(ctx, get("/orders"))
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestStaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.set("/about", 200, "v2")
	m, st := newManager(t, f)
	seed(t, st, "automart-dynamic-v1", "/about", "v1")

	resp, _, result, err := m.Serve(ctx, get("/about"))
	require.NoError(t, err)
	assert.Equal(t, resultStale, result)
	assert.Equal(t, "v1", string(resp.Body))

	m.Wait()
	resp, _, _, err = m.Serve(ctx, get("/about"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(resp.Body))
	m.Wait()

	f.set("/contact", 200, "fresh")
	resp, _, result, err = m.Serve(ctx, get("/contact"))
	require.NoError(t, err)
	assert.Equal(t, resultNetwork, result)
	assert.Equal(t, "fresh", string(resp.Body))
}

func TestInstallIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.set("/", 200, "root")
	f.set("/index.html", 200, "<html>")
	m, st := newManager(t, f, "/", "/index.html", "/css/broken.css")

	require.Error(t, m.Install(ctx))
	assert.Equal(t, StateParsed, m.State())
	names, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	f.set("/css/broken.css", 200, "fixed")
	require.NoError(t, m.Install(ctx))
	assert.Equal(t, StateInstalled, m.State())
	for _, k := range []string{"/", "/index.html", "/css/broken.css"} {
		_, found, _ := st.Match(ctx, k)
		assert.True(t, found, k)
	}
}

func TestActivateDropsOldVersions(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.set("/index.html", 200, "<html>")
	m, st := newManager(t, f, "/index.html")
	seed(t, st, "automart-static-v0", "/index.html", "old")
	seed(t, st, "automart-dynamic-v1", "/about", "keep")

	assert.Error(t, m.Activate(ctx), "activation needs an install")

	require.NoError(t, m.Start(ctx))
	assert.Equal(t, StateActivated, m.State())
	names, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"automart-dynamic-v1", "automart-static-v1"}, names)

	resp, found, _ := st.Match(ctx, "/index.html")
	require.True(t, found)
	assert.Equal(t, "<html>", string(resp.Body))
}

func TestHandler(t *testing.T) {
	f := newStub()
	f.set("/index.html", 200, "<html>")
	m, st := newManager(t, f, "/index.html")
	seed(t, st, "automart-static-v1", "/css/style.css", "body{}")

	var passed atomic.Int32
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		passed.Add(1)
		w.WriteHeader(http.StatusTeapot)
	})
	h := m.Handler(next)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, get("/css/style.css"))
	assert.Equal(t, http.StatusTeapot, rec.Code, "not activated yet")

	require.NoError(t, m.Start(context.Background()))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/css/style.css"))
	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "body{}", rec.Body.String())
	assert.Equal(t, string(CacheFirst), rec.Header().Get(HeaderStrategy))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/order/complete", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.EqualValues(t, 2, passed.Load())

	f.offline(true)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, get("/orders"))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, string(NetworkFirst), rec.Header().Get(HeaderStrategy))
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	f := newStub()
	f.set("/index.html", 200, "<html>")
	m, _ := newManager(t, f, "/index.html")

	reply, err := m.HandleMessage(ctx, Message{Type: MsgGetVersion})
	require.NoError(t, err)
	assert.Equal(t, VersionReply{Version: "automart-v1.0.0"}, reply)

	require.NoError(t, m.Install(ctx))
	_, err = m.HandleMessage(ctx, Message{Type: MsgSkipWaiting})
	require.NoError(t, err)
	assert.Equal(t, StateActivated, m.State())

	_, err = m.HandleMessage(ctx, Message{Type: "PING"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	rec := httptest.NewRecorder()
	m.MessageHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/__sw/message", jsonBody(t, Message{Type: MsgGetVersion})))
	assert.Equal(t, 200, rec.Code)
	assert.JSONEq(t, `{"version":"automart-v1.0.0"}`, rec.Body.String())
}

func TestRedisStorage(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	st := NewRedisStorage(rdb, "automart:sw:")

	old, err := st.Open(ctx, "automart-static-v0")
	require.NoError(t, err)
	require.NoError(t, old.Put(ctx, "/index.html", &Response{Status: 200, Body: []byte("old")}))
	time.Sleep(2 * time.Millisecond)
	cur, err := st.Open(ctx, "automart-static-v1")
	require.NoError(t, err)
	require.NoError(t, cur.Put(ctx, "/index.html", &Response{Status: 200, Body: []byte("new"), Header: http.Header{"Etag": {"x"}}}))

	names, err := st.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"automart-static-v0", "automart-static-v1"}, names)

	resp, found, err := st.Match(ctx, "/index.html")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "old", string(resp.Body), "oldest partition answers first")

	deleted, err := st.Delete(ctx, "automart-static-v0")
	require.NoError(t, err)
	assert.True(t, deleted)
	resp, found, err = st.Match(ctx, "/index.html")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "new", string(resp.Body))
	assert.Equal(t, "x", resp.Header.Get("Etag"))
}

func TestHTTPFetcher(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/css")
		_, _ = fmt.Fprintf(w, "%s?%s", r.URL.Path, r.URL.RawQuery)
	}))
	defer upstream.Close()

	f, err := NewHTTPFetcher(upstream.URL, nil)
	require.NoError(t, err)
	resp, err := f.Fetch(context.Background(), get("/css/style.css?v=1"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "/css/style.css?v=1", string(resp.Body))
	assert.Equal(t, "text/css", resp.Header.Get("Content-Type"))

	upstream.Close()
	_, err = f.Fetch(context.Background(), get("/css/style.css"))
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(b)
}
