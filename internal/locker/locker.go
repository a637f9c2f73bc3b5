// Package locker delivers "open" commands to pickup lockers.
package locker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"automart/internal/common/logger"
	"automart/internal/domain"
	"automart/internal/metrics"
)

// Sink hands a command to the transport the locker listens on.
type Sink interface {
	Send(ctx context.Context, cmd domain.LockerCommand) error
	Close() error
}

// OpenCommand builds the command that releases an order's products.
func OpenCommand(orderID, lockerID string, products []domain.OrderItem, now time.Time) domain.LockerCommand {
	if products == nil {
		products = []domain.OrderItem{}
	}
	return domain.LockerCommand{
		Cmd:      domain.LockerCmdOpen,
		OrderID:  orderID,
		LockerID: lockerID,
		Products: products,
		Ts:       now.UnixMilli(),
	}
}

func encode(cmd domain.LockerCommand) ([]byte, error) {
	if cmd.LockerID == "" {
		return nil, domain.Validationf("locker command for order %s has no locker id", cmd.OrderID)
	}
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode locker command: %w", err)
	}
	return b, nil
}

// LogSink only logs; it stands in for a broker during development.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	if log == nil {
		log = logger.Nop()
	}
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, cmd domain.LockerCommand) error {
	b, err := encode(cmd)
	if err != nil {
		return err
	}
	s.log.Info("locker_command", map[string]any{
		"topic":    domain.LockerTopic(cmd.LockerID),
		"order_id": cmd.OrderID,
		"payload":  string(b),
	})
	return nil
}

func (s *LogSink) Close() error { return nil }

type instrumented struct {
	Sink
	driver  string
	metrics *metrics.Metrics
}

// Instrument counts every Send by driver and outcome.
func Instrument(s Sink, driver string, m *metrics.Metrics) Sink {
	return &instrumented{Sink: s, driver: driver, metrics: m}
}

func (s *instrumented) Send(ctx context.Context, cmd domain.LockerCommand) error {
	err := s.Sink.Send(ctx, cmd)
	s.metrics.Locker(s.driver, err)
	return err
}
