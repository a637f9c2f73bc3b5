package locker

import (
	"context"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"automart/internal/config"
	"automart/internal/domain"
)

// MQTTClient is the subset of mqtt.Client the sink uses.
type MQTTClient interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes to locker/<id>/commands.
type MQTTSink struct {
	client  MQTTClient
	qos     byte
	timeout time.Duration
}

func NewMQTTSink(c MQTTClient, qos byte, timeout time.Duration) *MQTTSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &MQTTSink{client: c, qos: qos, timeout: timeout}
}

// DialMQTT connects a paho client with auto reconnect.
func DialMQTT(ctx context.Context, cfg config.MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(cfg.Timeout)
	c := mqtt.NewClient(opts)
	if err := connectMQTT(ctx, c, cfg.URL); err != nil {
		return nil, err
	}
	return c, nil
}

type mqttConnector interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
}

// connectMQTT waits for the first connect. With connect retry on, paho keeps
// dialing in the background, so a canceled wait must disconnect.
func connectMQTT(ctx context.Context, c mqttConnector, url string) error {
	tok := c.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		c.Disconnect(0)
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		c.Disconnect(0)
		return fmt.Errorf("mqtt connect %s: %w", url, err)
	}
	return nil
}

var errMQTTTimeout = errors.New("mqtt publish not acknowledged in time")

func (s *MQTTSink) Send(ctx context.Context, cmd domain.LockerCommand) error {
	body, err := encode(cmd)
	if err != nil {
		return err
	}
	if !s.client.IsConnected() {
		return fmt.Errorf("mqtt publish %s: %w", cmd.OrderID, domain.ErrNetwork)
	}

	tok := s.client.Publish(domain.LockerTopic(cmd.LockerID), s.qos, false, body)
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-tok.Done():
	case <-timer.C:
		return fmt.Errorf("mqtt publish %s: %w", cmd.OrderID, errMQTTTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", cmd.OrderID, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
