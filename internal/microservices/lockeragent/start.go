// Package lockeragent plays the locker side of the command channel: it
// consumes open commands from the rabbitmq exchange and releases compartments.
package lockeragent

import (
	"context"
	"errors"

	"automart/internal/common/logger"
	"automart/internal/config"
	"automart/internal/connections/rabbitmq"
	"automart/internal/metrics"
	"automart/internal/microservices/lockeragent/service"
)

func Run(ctx context.Context, cfg *config.Config, name string) error {
	if cfg.RabbitMQ.Host == "" {
		return errors.New("locker-agent needs rabbitmq.host")
	}
	lg := logger.New("locker-agent")

	client, err := rabbitmq.DialRetry(ctx, cfg.RabbitMQ)
	if err != nil {
		return err
	}
	defer client.Close()

	agent := service.NewAgentService(service.Config{
		Name:      name,
		Exchange:  cfg.RabbitMQ.Exchange,
		Queue:     cfg.Locker.Queue,
		Lockers:   cfg.Locker.Lockers,
		Prefetch:  cfg.Locker.Prefetch,
		Heartbeat: cfg.Locker.Heartbeat,
		Remember:  cfg.Locker.Remember,
	}, client, service.NewLogActuator(lg), lg, metrics.New())
	svc := service.New(agent)
	return svc.AgentService.Run(ctx)
}
