package locker

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"automart/internal/domain"
)

// Publisher is the part of the rabbitmq client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers amqp.Table, contentType string, persistent bool) error
	Close() error
}

// AMQPSink publishes to a topic exchange with routing key locker.<id>.commands.
type AMQPSink struct {
	pub      Publisher
	exchange string
}

func NewAMQPSink(pub Publisher, exchange string) *AMQPSink {
	return &AMQPSink{pub: pub, exchange: exchange}
}

func RoutingKey(lockerID string) string {
	return fmt.Sprintf("locker.%s.commands", lockerID)
}

func (s *AMQPSink) Send(ctx context.Context, cmd domain.LockerCommand) error {
	body, err := encode(cmd)
	if err != nil {
		return err
	}
	headers := amqp.Table{
		"x-source":   "order-service",
		"x-order-id": cmd.OrderID,
	}
	if err := s.pub.Publish(ctx, s.exchange, RoutingKey(cmd.LockerID), body, headers, "application/json", true); err != nil {
		return fmt.Errorf("publish locker command %s: %w", cmd.OrderID, err)
	}
	return nil
}

func (s *AMQPSink) Close() error { return s.pub.Close() }

// LockerFromKey is the inverse of RoutingKey.
func LockerFromKey(key string) (string, bool) {
	id, ok := strings.CutPrefix(key, "locker.")
	if !ok {
		return "", false
	}
	id, ok = strings.CutSuffix(id, ".commands")
	if !ok || id == "" || strings.Contains(id, ".") {
		return "", false
	}
	return id, true
}
