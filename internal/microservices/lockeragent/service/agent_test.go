package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automart/internal/domain"
	"automart/internal/locker"
	"automart/internal/metrics"
)

type settlement struct {
	tag     uint64
	ack     bool
	requeue bool
}

type recorder struct {
	mu  sync.Mutex
	got []settlement
}

func (r *recorder) Ack(tag uint64, _ bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, settlement{tag: tag, ack: true})
	return nil
}

func (r *recorder) Nack(tag uint64, _ bool, requeue bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, settlement{tag: tag, requeue: requeue})
	return nil
}

func (r *recorder) Reject(tag uint64, requeue bool) error { return r.Nack(tag, false, requeue) }

func (r *recorder) settled() []settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]settlement(nil), r.got...)
}

type fakeSource struct {
	ch   chan amqp.Delivery
	keys []string
	once sync.Once
}

func (s *fakeSource) Consume(_, _ string, keys []string, _ int, _ string) (<-chan amqp.Delivery, error) {
	s.keys = keys
	return s.ch, nil
}

func (s *fakeSource) Cancel(string) error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type fakeActuator struct {
	mu     sync.Mutex
	err    error
	opened []string
}

func (f *fakeActuator) Open(_ context.Context, lockerID string, cmd domain.LockerCommand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.opened = append(f.opened, lockerID+"/"+cmd.OrderID)
	return nil
}

func body(t *testing.T, cmd domain.LockerCommand) []byte {
	t.Helper()
	b, err := json.Marshal(cmd)
	require.NoError(t, err)
	return b
}

func delivery(rec *recorder, tag uint64, key string, b []byte) amqp.Delivery {
	return amqp.Delivery{Acknowledger: rec, DeliveryTag: tag, RoutingKey: key, Body: b}
}

func TestConfigKeys(t *testing.T) {
	assert.Equal(t, []string{"locker.*.commands"}, Config{}.Keys())
	assert.Equal(t, []string{"locker.locker-001.commands", "locker.locker-002.commands"},
		Config{Lockers: []string{"locker-001", "locker-002"}}.Keys())
}

func TestHandle(t *testing.T) {
	act := &fakeActuator{}
	m := metrics.New()
	a := NewAgentService(Config{Name: "agent-1"}, nil, act, nil, m)
	rec := &recorder{}
	ctx := context.Background()
	open := body(t, locker.OpenCommand("ORD-1", "locker-001", nil, time.Now()))

	require.NoError(t, a.Handle(ctx, delivery(rec, 1, locker.RoutingKey("locker-001"), open)))
	assert.Equal(t, []string{"locker-001/ORD-1"}, act.opened)

	assert.NoError(t, a.Handle(ctx, delivery(rec, 2, locker.RoutingKey("locker-001"), open)), "redelivery is acked")
	assert.Len(t, act.opened, 1)
	assert.Equal(t, 1, a.Opened())

	assert.ErrorIs(t, a.Handle(ctx, delivery(rec, 3, "orders.kitchen", open)), ErrDLQ)
	assert.ErrorIs(t, a.Handle(ctx, delivery(rec, 4, locker.RoutingKey("locker-001"), []byte("{"))), ErrDLQ)
	assert.ErrorIs(t, a.Handle(ctx, delivery(rec, 5, locker.RoutingKey("locker-001"), []byte(`{"cmd":"close","orderId":"ORD-2"}`))), ErrDLQ)

	act.err = errors.New("jammed")
	other := body(t, locker.OpenCommand("ORD-3", "locker-001", nil, time.Now()))
	assert.ErrorIs(t, a.Handle(ctx, delivery(rec, 6, locker.RoutingKey("locker-001"), other)), ErrRequeue)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockerCommands.WithLabelValues("agent", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LockerCommands.WithLabelValues("agent", "error")))
}

func TestHandleReopensOnNewCommand(t *testing.T) {
	act := &fakeActuator{}
	a := NewAgentService(Config{Name: "agent-1"}, nil, act, nil, nil)
	rec := &recorder{}
	ctx := context.Background()
	key := locker.RoutingKey("locker-001")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := body(t, locker.OpenCommand("ORD-1", "locker-001", nil, at))
	pickup := body(t, locker.OpenCommand("ORD-1", "locker-001", nil, at.Add(10*time.Minute)))

	require.NoError(t, a.Handle(ctx, delivery(rec, 1, key, first)))
	require.NoError(t, a.Handle(ctx, delivery(rec, 2, key, pickup)))
	require.NoError(t, a.Handle(ctx, delivery(rec, 3, key, pickup)))
	assert.Equal(t, []string{"locker-001/ORD-1", "locker-001/ORD-1"}, act.opened)
	assert.Equal(t, 2, a.Opened())
}

func TestHandleForgetsOldestReleases(t *testing.T) {
	act := &fakeActuator{}
	a := NewAgentService(Config{Name: "agent-1", Remember: 2}, nil, act, nil, nil)
	rec := &recorder{}
	ctx := context.Background()
	key := locker.RoutingKey("locker-001")
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i, id := range []string{"ORD-1", "ORD-2", "ORD-3"} {
		require.NoError(t, a.Handle(ctx, delivery(rec, uint64(i+1), key, body(t, locker.OpenCommand(id, "locker-001", nil, at)))))
	}
	assert.Equal(t, 2, a.Opened())

	// ORD-3 is still remembered, ORD-1 was evicted and opens again.
	require.NoError(t, a.Handle(ctx, delivery(rec, 4, key, body(t, locker.OpenCommand("ORD-3", "locker-001", nil, at)))))
	assert.Len(t, act.opened, 3)
	require.NoError(t, a.Handle(ctx, delivery(rec, 5, key, body(t, locker.OpenCommand("ORD-1", "locker-001", nil, at)))))
	assert.Len(t, act.opened, 4)
	assert.Equal(t, 2, a.Opened())
}

func TestHandleOtherLockerIsRequeued(t *testing.T) {
	a := NewAgentService(Config{Name: "agent-1", Lockers: []string{"locker-001"}}, nil, &fakeActuator{}, nil, nil)
	b := body(t, locker.OpenCommand("ORD-1", "locker-009", nil, time.Now()))
	assert.ErrorIs(t, a.Handle(context.Background(), delivery(&recorder{}, 1, locker.RoutingKey("locker-009"), b)), ErrRequeue)
}

func TestRunSettlesAndDrains(t *testing.T) {
	src := &fakeSource{ch: make(chan amqp.Delivery, 3)}
	act := &fakeActuator{}
	a := NewAgentService(Config{Name: "agent-1"}, src, act, nil, nil)
	rec := &recorder{}

	src.ch <- delivery(rec, 1, locker.RoutingKey("locker-001"), body(t, locker.OpenCommand("ORD-1", "locker-001", nil, time.Now())))
	src.ch <- delivery(rec, 2, locker.RoutingKey("locker-001"), []byte("garbage"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(rec.settled()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"locker.*.commands"}, src.keys)
	assert.ElementsMatch(t, []settlement{{tag: 1, ack: true}, {tag: 2}}, rec.settled())
}

func TestRunFailsWhenChannelCloses(t *testing.T) {
	src := &fakeSource{ch: make(chan amqp.Delivery)}
	a := NewAgentService(Config{Name: "agent-1"}, src, &fakeActuator{}, nil, nil)
	close(src.ch)
	assert.Error(t, a.Run(context.Background()))

	assert.Error(t, NewAgentService(Config{}, src, nil, nil, nil).Run(context.Background()))
}
