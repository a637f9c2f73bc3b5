package locker

import (
	"context"
	"fmt"

	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections/rabbitmq"
	"automart/internal/metrics"
)

// Build connects the configured driver and wraps it with metrics.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (Sink, error) {
	if log == nil {
		log = logger.Nop()
	}
	driver := cfg.Locker.Driver
	var sink Sink
	switch driver {
	case "", "log":
		driver = "log"
		sink = NewLogSink(log)
	case "rabbitmq":
		c, err := rabbitmq.DialRetry(ctx, cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		if err := c.DeclareTopic(cfg.RabbitMQ.Exchange); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("declare exchange %s: %w", cfg.RabbitMQ.Exchange, err)
		}
		sink = NewAMQPSink(c, cfg.RabbitMQ.Exchange)
	case "mqtt":
		c, err := DialMQTT(ctx, cfg.MQTT)
		if err != nil {
			return nil, err
		}
		sink = NewMQTTSink(c, cfg.MQTT.QoS, cfg.MQTT.Timeout)
	case "kafka":
		sink = NewKafkaSink(NewKafkaWriter(cfg.Kafka))
	default:
		return nil, fmt.Errorf("unknown locker driver %q", driver)
	}
	log.Info("locker_sink_ready", map[string]any{"driver": driver})
	return Instrument(sink, driver, m), nil
}
