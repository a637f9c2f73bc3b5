package connections

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automart/internal/config"
	"automart/internal/domain"
	"automart/internal/kvs"
	"automart/internal/offline"
	"automart/internal/pending"
)

func TestMemoryDrivers(t *testing.T) {
	ctx := context.Background()
	r := New(config.Default(), nil)
	defer r.Close()

	backend := kvs.NewMemoryBackend()
	store, err := r.KVS(ctx, backend)
	require.NoError(t, err)
	assert.IsType(t, &kvs.Memory{}, store)
	assert.Equal(t, "automart_cart_items", store.Key("cart_items"))

	q, err := r.PendingQueue(ctx)
	require.NoError(t, err)
	assert.IsType(t, &pending.Memory{}, q)

	st, err := r.CacheStorage(ctx)
	require.NoError(t, err)
	assert.IsType(t, &offline.MemoryStorage{}, st)
}

func TestRedisDrivers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.URL = "redis://" + mr.Addr() + "/0"
	cfg.Storage.Driver = "redis"
	cfg.Queue.Driver = "redis"
	cfg.Cache.Driver = "redis"
	r := New(cfg, nil)
	defer r.Close()

	store, err := r.KVS(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "user_preferences", domain.Preferences{Name: "Testbenutzer 1"}))
	assert.True(t, mr.Exists("automart_user_preferences"))

	q, err := r.PendingQueue(ctx)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, domain.CheckoutPayload{OrderID: "ORD-1", LockerID: "locker-001"}))
	assert.True(t, mr.Exists("automart:sw:offline_orders"))

	st, err := r.CacheStorage(ctx)
	require.NoError(t, err)
	_, err = st.Open(ctx, "automart-static-v1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("automart:sw:caches"))

	require.NoError(t, store.Clear(ctx))
	assert.False(t, mr.Exists("automart_user_preferences"))
	assert.True(t, mr.Exists("automart:sw:offline_orders"), "clearing the shop storage keeps queued orders")

	first, _ := r.Redis(ctx)
	second, _ := r.Redis(ctx)
	assert.Same(t, first, second)
}

func TestUnknownDrivers(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "floppy"
	cfg.Queue.Driver = "floppy"
	cfg.Cache.Driver = "floppy"
	r := New(cfg, nil)

	_, err := r.KVS(context.Background(), nil)
	assert.Error(t, err)
	_, err = r.PendingQueue(context.Background())
	assert.Error(t, err)
	_, err = r.CacheStorage(context.Background())
	assert.Error(t, err)
}

func TestSWPrefix(t *testing.T) {
	assert.Equal(t, "automart:sw:", SWPrefix("automart_"))
	assert.Equal(t, "shop:sw:", SWPrefix("shop"))
}
