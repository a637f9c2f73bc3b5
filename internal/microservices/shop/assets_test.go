package shop

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automart/internal/config"
	"automart/internal/microservices/cacheproxy"
	"automart/internal/offline"
)

func TestAssetsServeManifest(t *testing.T) {
	f := newFixture(t)

	for _, u := range config.Default().Cache.Manifest {
		resp, err := http.Get(f.srv.URL + u)
		require.NoError(t, err, u)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, u)
		assert.NotEmpty(t, body, u)
		assert.Nil(t, resp.Request.Response, "redirected: %s", u)
	}

	resp, err := http.Get(f.srv.URL + "/index.html")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	resp, err = http.Get(f.srv.URL + "/js/nope.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCacheProxyInstallsFromShop(t *testing.T) {
	f := newFixture(t)
	fetcher, err := offline.NewHTTPFetcher(f.srv.URL, nil)
	require.NoError(t, err)

	mgr := offline.NewManager(cacheproxy.ManagerConfig(config.Default()), offline.NewMemoryStorage(), fetcher, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, mgr.Start(ctx))
	assert.Equal(t, offline.StateActivated, mgr.State())
	mgr.Wait()
}
