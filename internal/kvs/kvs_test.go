package kvs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefs struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

func newRedisPair(t *testing.T) (*Redis, *Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, "automart_"), NewRedis(rdb, "automart_"), mr
}

func backends(t *testing.T) map[string][2]StoreNotifier {
	b := NewMemoryBackend()
	r1, r2, _ := newRedisPair(t)
	return map[string][2]StoreNotifier{
		"memory": {NewMemory(b, "automart_"), NewMemory(b, "automart_")},
		"redis":  {r1, r2},
	}
}

func recv(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
		return Change{}
	}
}

func assertSilent(t *testing.T, ch <-chan Change) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %+v", c)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, pair := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := pair[0]

			var got prefs
			found, err := s.Get(ctx, "user_preferences", &got)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "user_preferences", prefs{Name: "Testbenutzer 1", Location: "markt-xy"}))
			found, err = pair[1].Get(ctx, "user_preferences", &got)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "markt-xy", got.Location)

			require.NoError(t, s.Remove(ctx, "user_preferences"))
			found, err = s.Get(ctx, "user_preferences", &got)
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestChangesReachOtherStoresOnly(t *testing.T) {
	for name, pair := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			writer, reader := pair[0], pair[1]

			own, err := writer.Subscribe(ctx, "cart_items")
			require.NoError(t, err)
			other, err := reader.Subscribe(ctx, "cart_items")
			require.NoError(t, err)

			require.NoError(t, writer.Set(ctx, "cart_items", []string{"a"}))
			c := recv(t, other)
			assert.Equal(t, "automart_cart_items", c.Key)
			assertSilent(t, own)

			require.NoError(t, writer.Set(ctx, "user_preferences", prefs{}))
			assertSilent(t, other)
		})
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	b := NewMemoryBackend()
	s := NewMemory(b, "p_")
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Subscribe(ctx, "")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestClearKeepsForeignKeys(t *testing.T) {
	ctx := context.Background()

	b := NewMemoryBackend()
	mine, foreign := NewMemory(b, "automart_"), NewMemory(b, "other_")
	require.NoError(t, mine.Set(ctx, "cart_items", 1))
	require.NoError(t, foreign.Set(ctx, "cart_items", 2))
	require.NoError(t, mine.Clear(ctx))

	var v int
	found, _ := mine.Get(ctx, "cart_items", &v)
	assert.False(t, found)
	found, _ = foreign.Get(ctx, "cart_items", &v)
	assert.True(t, found)

	r, _, mr := newRedisPair(t)
	mr.Set("other_cart_items", "2")
	require.NoError(t, r.Set(ctx, "cart_items", 1))
	require.NoError(t, r.Clear(ctx))
	assert.False(t, mr.Exists("automart_cart_items"))
	assert.True(t, mr.Exists("other_cart_items"))
}
