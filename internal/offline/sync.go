package offline

import (
	"context"
	"sync"
	"time"

	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/metrics"
	"automart/internal/pending"
)

// Submitter is the ordinary order submission path.
type Submitter interface {
	CompleteOrder(ctx context.Context, req domain.OrderCompleteRequest) (domain.OrderCompleteResponse, error)
}

type Report struct {
	Attempted int  `json:"attempted"`
	Synced    int  `json:"synced"`
	Failed    int  `json:"failed"`
	Skipped   bool `json:"skipped,omitempty"`
}

// Syncer replays queued checkouts. An entry leaves the queue only after its
// submission succeeded; one failing entry never stops the others.
type Syncer struct {
	queue   pending.Queue
	submit  Submitter
	tag     string
	log     *logger.Logger
	metrics *metrics.Metrics

	running sync.Mutex
}

func NewSyncer(q pending.Queue, s Submitter, tag string, log *logger.Logger, m *metrics.Metrics) *Syncer {
	if log == nil {
		log = logger.Nop()
	}
	return &Syncer{queue: q, submit: s, tag: tag, log: log, metrics: m}
}

func (s *Syncer) Tag() string { return s.tag }

// Sync handles a sync event. Tags other than the orders tag are ignored.
func (s *Syncer) Sync(ctx context.Context, tag string) (Report, error) {
	if tag != s.tag {
		s.log.Debug("sync_tag_ignored", map[string]any{"tag": tag})
		return Report{}, nil
	}
	return s.Drain(ctx)
}

// Drain resubmits every queued order once. A drain already in progress makes
// this call return a skipped report.
func (s *Syncer) Drain(ctx context.Context) (Report, error) {
	if !s.running.TryLock() {
		return Report{Skipped: true}, nil
	}
	defer s.running.Unlock()

	orders, err := s.queue.List(ctx)
	if err != nil {
		s.log.Error("sync_list_failed", err, nil)
		return Report{}, err
	}
	if len(orders) == 0 {
		return Report{}, nil
	}
	s.log.Info("sync_started", map[string]any{"pending": len(orders)})

	var rep Report
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		rep.Attempted++
		id := o.Payload.OrderID

		_, err := s.submit.CompleteOrder(ctx, o.Payload.OrderRequest())
		s.metrics.Sync(err)
		if err != nil {
			rep.Failed++
			s.log.Error("sync_order_failed", err, map[string]any{"order_id": id, "queued_at": o.QueuedAt})
			continue
		}
		if err := s.queue.Remove(context.WithoutCancel(ctx), id); err != nil {
			s.log.Error("sync_remove_failed", err, map[string]any{"order_id": id})
		}
		rep.Synced++
		s.log.Info("sync_order_done", map[string]any{"order_id": id})
	}
	s.log.Info("sync_finished", map[string]any{"attempted": rep.Attempted, "synced": rep.Synced, "failed": rep.Failed})
	return rep, ctx.Err()
}

// Prober reports whether the order service is reachable.
type Prober interface {
	HealthCheck(ctx context.Context) bool
}

// ConnectivityWatcher drains the queue when the order service comes back.
// It starts out offline, so the first successful probe drains too.
type ConnectivityWatcher struct {
	probe     Prober
	syncer    *Syncer
	interval  time.Duration
	heartbeat time.Duration
	log       *logger.Logger

	mu     sync.Mutex
	online bool
}

func NewConnectivityWatcher(p Prober, s *Syncer, interval, heartbeat time.Duration, log *logger.Logger) *ConnectivityWatcher {
	if log == nil {
		log = logger.Nop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ConnectivityWatcher{probe: p, syncer: s, interval: interval, heartbeat: heartbeat, log: log}
}

func (w *ConnectivityWatcher) Online() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.online
}

// Check probes once and drains on an offline to online transition.
func (w *ConnectivityWatcher) Check(ctx context.Context) (online, drained bool) {
	up := w.probe.HealthCheck(ctx)

	w.mu.Lock()
	was := w.online
	w.online = up
	w.mu.Unlock()

	switch {
	case up && !was:
		w.log.Info("connectivity_restored", nil)
		if _, err := w.syncer.Sync(ctx, w.syncer.Tag()); err != nil {
			w.log.Error("sync_failed", err, nil)
		}
		return true, true
	case !up && was:
		w.log.Warn("connectivity_lost", nil)
	}
	return up, false
}

// Run probes every interval until ctx is done.
func (w *ConnectivityWatcher) Run(ctx context.Context) error {
	probe := time.NewTicker(w.interval)
	defer probe.Stop()

	var beat <-chan time.Time
	if w.heartbeat > 0 {
		t := time.NewTicker(w.heartbeat)
		defer t.Stop()
		beat = t.C
	}

	w.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("graceful_shutdown", nil)
			return nil
		case <-probe.C:
			w.Check(ctx)
		case <-beat:
			w.log.Debug("heartbeat", map[string]any{"online": w.Online()})
		}
	}
}
