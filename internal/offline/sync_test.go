package offline

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automart/internal/domain"
	"automart/internal/metrics"
	"automart/internal/pending"
)

const ordersTag = "sync-orders"

type fakeSubmitter struct {
	mu      sync.Mutex
	fail    map[string]bool
	seen    []string
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSubmitter) CompleteOrder(_ context.Context, req domain.OrderCompleteRequest) (domain.OrderCompleteResponse, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req.OrderID)
	if f.fail[req.OrderID] {
		return domain.OrderCompleteResponse{}, &domain.ServerError{StatusCode: 500, Body: "boom"}
	}
	return domain.OrderCompleteResponse{Status: "ok", OrderID: req.OrderID, LockerID: req.LockerID}, nil
}

func enqueue(t *testing.T, q pending.Queue, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), domain.CheckoutPayload{OrderID: id, LockerID: "markt-xy"}))
	}
}

func queuedIDs(t *testing.T, q pending.Queue) []string {
	t.Helper()
	orders, err := q.List(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.Payload.OrderID)
	}
	return ids
}

func TestDrainKeepsFailedEntries(t *testing.T) {
	q := pending.NewMemory()
	enqueue(t, q, "ORD-1", "ORD-2", "ORD-3")
	sub := &fakeSubmitter{fail: map[string]bool{"ORD-2": true}}
	m := metrics.New()
	s := NewSyncer(q, sub, ordersTag, nil, m)

	rep, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 3, Synced: 2, Failed: 1}, rep)
	assert.ElementsMatch(t, []string{"ORD-1", "ORD-2", "ORD-3"}, sub.seen)
	assert.Equal(t, []string{"ORD-2"}, queuedIDs(t, q))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SyncOrders.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SyncOrders.WithLabelValues("error")))

	sub.fail = nil
	rep, err = s.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Attempted: 1, Synced: 1}, rep)
	assert.Empty(t, queuedIDs(t, q))
}

func TestSyncIgnoresOtherTags(t *testing.T) {
	q := pending.NewMemory()
	enqueue(t, q, "ORD-1")
	sub := &fakeSubmitter{}
	s := NewSyncer(q, sub, ordersTag, nil, nil)

	rep, err := s.Sync(context.Background(), "sync-newsletter")
	require.NoError(t, err)
	assert.Zero(t, rep)
	assert.Empty(t, sub.seen)
	assert.Equal(t, []string{"ORD-1"}, queuedIDs(t, q))

	rep, err = s.Sync(context.Background(), ordersTag)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Synced)
}

func TestDrainEmptyQueue(t *testing.T) {
	s := NewSyncer(pending.NewMemory(), &fakeSubmitter{}, ordersTag, nil, nil)
	rep, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep)
}

func TestConcurrentDrainIsSkipped(t *testing.T) {
	q := pending.NewMemory()
	enqueue(t, q, "ORD-1")
	sub := &fakeSubmitter{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := NewSyncer(q, sub, ordersTag, nil, nil)

	done := make(chan Report)
	go func() {
		rep, _ := s.Drain(context.Background())
		done <- rep
	}()
	<-sub.entered

	rep, err := s.Drain(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Skipped)

	close(sub.block)
	assert.Equal(t, Report{Attempted: 1, Synced: 1}, <-done)
}

type scriptedProber struct {
	answers []bool
	i       int
}

func (p *scriptedProber) HealthCheck(context.Context) bool {
	up := p.answers[p.i%len(p.answers)]
	p.i++
	return up
}

func TestConnectivityWatcherDrainsOnReconnect(t *testing.T) {
	q := pending.NewMemory()
	sub := &fakeSubmitter{}
	s := NewSyncer(q, sub, ordersTag, nil, nil)
	w := NewConnectivityWatcher(&scriptedProber{answers: []bool{false, true, true, false, true}}, s, 0, 0, nil)
	ctx := context.Background()

	enqueue(t, q, "ORD-1")
	online, drained := w.Check(ctx)
	assert.False(t, online)
	assert.False(t, drained)
	assert.Equal(t, []string{"ORD-1"}, queuedIDs(t, q))

	online, drained = w.Check(ctx)
	assert.True(t, online)
	assert.True(t, drained)
	assert.Empty(t, queuedIDs(t, q))

	_, drained = w.Check(ctx)
	assert.False(t, drained, "still online")

	enqueue(t, q, "ORD-2")
	online, _ = w.Check(ctx)
	assert.False(t, online)
	assert.False(t, w.Online())

	_, drained = w.Check(ctx)
	assert.True(t, drained)
	assert.Equal(t, []string{"ORD-1", "ORD-2"}, sub.seen)
}

func TestConnectivityWatcherRunStops(t *testing.T) {
	s := NewSyncer(pending.NewMemory(), &fakeSubmitter{}, ordersTag, nil, nil)
	w := NewConnectivityWatcher(&scriptedProber{answers: []bool{true}}, s, 0, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))
	assert.True(t, w.Online())
}
