package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/locker"
	"automart/internal/metrics"
)

var (
	ErrRequeue = errors.New("requeue")     // nack(requeue=true)
	ErrDLQ     = errors.New("dead_letter") // nack(requeue=false)
)

// Source is the consuming half of the rabbitmq client.
type Source interface {
	Consume(exchange, queue string, keys []string, prefetch int, tag string) (<-chan amqp.Delivery, error)
	Cancel(tag string) error
}

// Actuator releases the compartments of one locker.
type Actuator interface {
	Open(ctx context.Context, lockerID string, cmd domain.LockerCommand) error
}

type Config struct {
	Name      string
	Exchange  string
	Queue     string
	Lockers   []string
	Prefetch  int
	Heartbeat time.Duration
	// Remember bounds how many releases are kept for redelivery dedupe.
	Remember int
}

// Keys are the routing keys the agent queue is bound with.
func (c Config) Keys() []string {
	if len(c.Lockers) == 0 {
		return []string{"locker.*.commands"}
	}
	keys := make([]string, 0, len(c.Lockers))
	for _, id := range c.Lockers {
		keys = append(keys, locker.RoutingKey(id))
	}
	return keys
}

type AgentServiceInterface interface {
	Run(ctx context.Context) error
	Opened() int
}

type AgentService struct {
	cfg     Config
	src     Source
	act     Actuator
	log     *logger.Logger
	metrics *metrics.Metrics

	serves map[string]bool

	mu     sync.Mutex
	opened map[string]time.Time // order id + ts -> open time
	order  []string             // opened keys, oldest first
}

func NewAgentService(cfg Config, src Source, act Actuator, log *logger.Logger, m *metrics.Metrics) *AgentService {
	if log == nil {
		log = logger.Nop()
	}
	if act == nil {
		act = LogActuator{log: log}
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.Remember <= 0 {
		cfg.Remember = 1024
	}
	serves := make(map[string]bool, len(cfg.Lockers))
	for _, id := range cfg.Lockers {
		serves[id] = true
	}
	return &AgentService{
		cfg:     cfg,
		src:     src,
		act:     act,
		log:     log,
		metrics: m,
		serves:  serves,
		opened:  make(map[string]time.Time),
	}
}

// Opened is the number of releases currently remembered.
func (a *AgentService) Opened() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.opened)
}

func (a *AgentService) Run(ctx context.Context) error {
	if a.cfg.Name == "" {
		return fmt.Errorf("agent name is empty")
	}
	msgs, err := a.src.Consume(a.cfg.Exchange, a.cfg.Queue, a.cfg.Keys(), a.cfg.Prefetch, a.cfg.Name)
	if err != nil {
		return fmt.Errorf("consume %s: %w", a.cfg.Queue, err)
	}
	a.log.Info("agent_consuming", map[string]any{"queue": a.cfg.Queue, "keys": a.cfg.Keys(), "prefetch": a.cfg.Prefetch, "agent": a.cfg.Name})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			a.settle(d, a.Handle(ctx, d))
		}
	}()

	beat := time.NewTicker(a.cfg.Heartbeat)
	defer beat.Stop()
	for {
		select {
		case <-ctx.Done():
			a.log.Info("graceful_shutdown", map[string]any{"agent": a.cfg.Name})
			if err := a.src.Cancel(a.cfg.Name); err != nil {
				a.log.Warn("consumer_cancel_failed", map[string]any{"reason": err.Error()})
			}
			<-done
			return nil
		case <-done:
			return errors.New("consumer channel closed")
		case <-beat.C:
			a.log.Debug("heartbeat", map[string]any{"agent": a.cfg.Name, "opened": a.Opened()})
		}
	}
}

// Handle processes one delivery and returns nil, ErrRequeue or ErrDLQ.
func (a *AgentService) Handle(ctx context.Context, d amqp.Delivery) error {
	lockerID, ok := locker.LockerFromKey(d.RoutingKey)
	if !ok {
		a.log.Warn("bad_routing_key", map[string]any{"key": d.RoutingKey})
		return ErrDLQ
	}
	var cmd domain.LockerCommand
	if err := json.Unmarshal(d.Body, &cmd); err != nil {
		a.log.Warn("bad_payload", map[string]any{"locker_id": lockerID, "reason": err.Error()})
		return ErrDLQ
	}
	cmd.LockerID = lockerID
	if cmd.Cmd != domain.LockerCmdOpen || cmd.OrderID == "" {
		a.log.Warn("unsupported_command", map[string]any{"locker_id": lockerID, "cmd": cmd.Cmd, "order_id": cmd.OrderID})
		return ErrDLQ
	}
	if len(a.serves) > 0 && !a.serves[lockerID] {
		return ErrRequeue
	}

	// A broker redelivery carries the same ts; a pickup reopen gets a new one.
	key := fmt.Sprintf("%s@%d", cmd.OrderID, cmd.Ts)
	a.mu.Lock()
	_, seen := a.opened[key]
	a.mu.Unlock()
	if seen {
		a.log.Debug("duplicate_command", map[string]any{"order_id": cmd.OrderID, "locker_id": lockerID, "ts": cmd.Ts})
		return nil
	}

	err := a.act.Open(ctx, lockerID, cmd)
	a.metrics.Locker("agent", err)
	if err != nil {
		a.log.Error("locker_open_failed", err, map[string]any{"order_id": cmd.OrderID, "locker_id": lockerID})
		return ErrRequeue
	}

	a.remember(key)
	return nil
}

func (a *AgentService) remember(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opened[key] = time.Now()
	a.order = append(a.order, key)
	for len(a.order) > a.cfg.Remember {
		delete(a.opened, a.order[0])
		a.order = a.order[1:]
	}
}

func (a *AgentService) settle(d amqp.Delivery, err error) {
	var ackErr error
	switch {
	case err == nil:
		ackErr = d.Ack(false)
	case errors.Is(err, ErrDLQ):
		ackErr = d.Nack(false, false)
	default:
		ackErr = d.Nack(false, true)
	}
	if ackErr != nil {
		a.log.Warn("settle_failed", map[string]any{"tag": d.DeliveryTag, "reason": ackErr.Error()})
	}
}

// LogActuator stands in for locker firmware: it logs every compartment it
// would release.
type LogActuator struct {
	log *logger.Logger
}

func NewLogActuator(log *logger.Logger) LogActuator { return LogActuator{log: log} }

func (l LogActuator) Open(_ context.Context, lockerID string, cmd domain.LockerCommand) error {
	counts := make(map[domain.Compartment]int)
	for _, p := range cmd.Products {
		counts[p.Compartment] += p.Quantity
	}
	l.log.Info("locker_opened", map[string]any{
		"locker_id":    lockerID,
		"order_id":     cmd.OrderID,
		"compartments": counts,
		"issued_at":    time.UnixMilli(cmd.Ts).UTC().Format(time.RFC3339),
	})
	return nil
}
