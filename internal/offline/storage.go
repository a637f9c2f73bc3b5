package offline

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Response is a stored snapshot of an HTTP answer.
type Response struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt,omitempty"`
}

func (r *Response) Clone() *Response {
	c := *r
	c.Header = r.Header.Clone()
	c.Body = append([]byte(nil), r.Body...)
	return &c
}

// Partition is one named cache.
type Partition interface {
	Match(ctx context.Context, key string) (*Response, bool, error)
	Put(ctx context.Context, key string, r *Response) error
}

// Storage holds the named partitions. Writes to a key are last-writer-wins.
type Storage interface {
	// Open returns the partition, creating it when missing.
	Open(ctx context.Context, name string) (Partition, error)
	// Keys lists partition names in creation order.
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, name string) (bool, error)
	// Match looks the key up in every partition, oldest partition first.
	Match(ctx context.Context, key string) (*Response, bool, error)
}

type MemoryStorage struct {
	mu    sync.RWMutex
	order []string
	parts map[string]*memoryPartition
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{parts: make(map[string]*memoryPartition)}
}

func (s *MemoryStorage) Open(_ context.Context, name string) (Partition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[name]; ok {
		return p, nil
	}
	p := &memoryPartition{entries: make(map[string]*Response)}
	s.parts[name] = p
	s.order = append(s.order, name)
	return p, nil
}

func (s *MemoryStorage) Keys(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...), nil
}

func (s *MemoryStorage) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.parts[name]; !ok {
		return false, nil
	}
	delete(s.parts, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

func (s *MemoryStorage) Match(ctx context.Context, key string) (*Response, bool, error) {
	s.mu.RLock()
	parts := make([]*memoryPartition, 0, len(s.order))
	for _, n := range s.order {
		parts = append(parts, s.parts[n])
	}
	s.mu.RUnlock()

	for _, p := range parts {
		if r, ok, _ := p.Match(ctx, key); ok {
			return r, true, nil
		}
	}
	return nil, false, nil
}

type memoryPartition struct {
	mu      sync.RWMutex
	entries map[string]*Response
}

func (p *memoryPartition) Match(_ context.Context, key string) (*Response, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.entries[key]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (p *memoryPartition) Put(_ context.Context, key string, r *Response) error {
	c := r.Clone()
	p.mu.Lock()
	p.entries[key] = c
	p.mu.Unlock()
	return nil
}
