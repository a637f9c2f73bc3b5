package locker

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"automart/internal/config"
	"automart/internal/domain"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes one message per command, keyed by locker id so a
// locker's commands stay ordered within a partition.
type KafkaSink struct {
	w MessageWriter
}

func NewKafkaSink(w MessageWriter) *KafkaSink { return &KafkaSink{w: w} }

func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func (s *KafkaSink) Send(ctx context.Context, cmd domain.LockerCommand) error {
	body, err := encode(cmd)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:   []byte(cmd.LockerID),
		Value: body,
		Headers: []kafka.Header{
			{Key: "cmd", Value: []byte(cmd.Cmd)},
			{Key: "order_id", Value: []byte(cmd.OrderID)},
		},
	}
	if err := s.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", cmd.OrderID, err)
	}
	return nil
}

func (s *KafkaSink) Close() error { return s.w.Close() }
