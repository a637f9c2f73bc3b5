package kvs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend is the shared state behind any number of Memory stores.
type MemoryBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	subs   map[int]*memorySub
	nextID int
}

type memorySub struct {
	origin string
	key    string
	ch     chan Change
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string][]byte),
		subs: make(map[int]*memorySub),
	}
}

// Memory is one context's view of a MemoryBackend.
type Memory struct {
	b      *MemoryBackend
	prefix string
	origin string
}

func NewMemory(b *MemoryBackend, prefix string) *Memory {
	return &Memory{b: b, prefix: prefix, origin: uuid.NewString()}
}

func (m *Memory) Key(key string) string { return m.prefix + key }

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.b.mu.Lock()
	raw, ok := m.b.data[m.Key(key)]
	m.b.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", m.Key(key), err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", m.Key(key), err)
	}
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	m.b.data[m.Key(key)] = raw
	m.b.notifyLocked(Change{Key: m.Key(key), Origin: m.origin})
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	if _, ok := m.b.data[m.Key(key)]; !ok {
		return nil
	}
	delete(m.b.data, m.Key(key))
	m.b.notifyLocked(Change{Key: m.Key(key), Origin: m.origin})
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.b.mu.Lock()
	defer m.b.mu.Unlock()
	for k := range m.b.data {
		if hasPrefix(m.prefix, k) {
			delete(m.b.data, k)
			m.b.notifyLocked(Change{Key: k, Origin: m.origin})
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, key string) (<-chan Change, error) {
	nk := ""
	if key != "" {
		nk = m.Key(key)
	}
	s := &memorySub{origin: m.origin, key: nk, ch: make(chan Change, changeBuffer)}

	m.b.mu.Lock()
	id := m.b.nextID
	m.b.nextID++
	m.b.subs[id] = s
	m.b.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.b.mu.Lock()
		delete(m.b.subs, id)
		close(s.ch)
		m.b.mu.Unlock()
	}()
	return s.ch, nil
}

// notifyLocked never blocks; a subscriber that falls behind loses changes,
// which is fine because receivers reload the whole value.
func (b *MemoryBackend) notifyLocked(c Change) {
	for _, s := range b.subs {
		if s.origin == c.Origin || !matches(s.key, c.Key) {
			continue
		}
		select {
		case s.ch <- c:
		default:
		}
	}
}
