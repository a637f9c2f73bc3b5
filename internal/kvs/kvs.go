// Package kvs is the namespaced key/value space shared by every shop context.
// Values are stored as JSON. A write made through one Store is announced to
// every other Store on the same backend, never to the writer itself.
package kvs

import (
	"context"
	"strings"
)

type Store interface {
	// Get decodes the value into dst and reports whether the key existed.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Remove(ctx context.Context, key string) error
	// Clear removes every key under the namespace prefix and nothing else.
	Clear(ctx context.Context) error
	// Key returns the namespaced form of key, as carried in Change.Key.
	Key(key string) string
}

type Notifier interface {
	// Subscribe delivers changes of key made by other stores until ctx is done.
	// An empty key subscribes to every key in the namespace.
	Subscribe(ctx context.Context, key string) (<-chan Change, error)
}

// StoreNotifier is what the cart engine is wired with.
type StoreNotifier interface {
	Store
	Notifier
}

// Change names a namespaced key written by the store identified by Origin.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

const changeBuffer = 16

func matches(sub, key string) bool {
	return sub == "" || sub == key
}

func hasPrefix(prefix, key string) bool {
	return strings.HasPrefix(key, prefix)
}
