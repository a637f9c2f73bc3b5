package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"

	"automart/internal/config"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	acks <-chan amqp.Confirmation // publisher confirms
	mu   sync.Mutex               // one publish in flight while waiting for its confirm
}

func (c *Client) Channel() *amqp.Channel { return c.ch }

func (c *Client) Close() error {
	var err error
	if c.ch != nil {
		err = c.ch.Close()
	}
	if c.conn != nil {
		err = errors.Join(err, c.conn.Close())
	}
	return err
}

func URL(cfg config.RabbitMQConfig) string {
	vhost := cfg.VHost
	if vhost == "" || vhost == "/" {
		vhost = ""
	}
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", scheme, cfg.User, cfg.Password, cfg.Host, cfg.Port, vhost)
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	url := URL(cfg)

	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(url)
	}
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))

	return &Client{conn: conn, ch: ch, acks: acks}, nil
}

// DialRetry dials with exponential backoff until ctx is done.
func DialRetry(ctx context.Context, cfg config.RabbitMQConfig) (*Client, error) {
	var c *Client
	op := func() error {
		var err error
		c, err = Dial(cfg)
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = time.Minute
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("rabbitmq unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return c, nil
}

// DeclareTopic declares a durable topic exchange.
func (c *Client) DeclareTopic(name string) error {
	if c.ch == nil {
		return errors.New("rabbitmq channel is nil")
	}
	return c.ch.ExchangeDeclare(name, amqp.ExchangeTopic, true, false, false, false, nil)
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Publish sends one message and waits for the broker's ack or nack.
func (c *Client) Publish(ctx context.Context, exchange, key string,
	body []byte, headers amqp.Table, contentType string, persistent bool) error {

	c.mu.Lock()
	defer c.mu.Unlock()

	mode := amqp.Transient
	if persistent {
		mode = amqp.Persistent
	}

	if err := c.ch.PublishWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: mode,
			ContentType:  contentType,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case conf := <-c.acks:
		if conf.Ack {
			return nil
		}
		return errors.New("publish NACK from broker")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume declares a durable queue bound to exchange with every key and starts
// a manual-ack consumer on it.
func (c *Client) Consume(exchange, queue string, keys []string, prefetch int, tag string) (<-chan amqp.Delivery, error) {
	if c.ch == nil {
		return nil, errors.New("rabbitmq channel is nil")
	}
	if err := c.DeclareTopic(exchange); err != nil {
		return nil, fmt.Errorf("declare %s: %w", exchange, err)
	}
	if _, err := c.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("queue declare %s: %w", queue, err)
	}
	for _, k := range keys {
		if err := c.ch.QueueBind(queue, k, exchange, false, nil); err != nil {
			return nil, fmt.Errorf("queue bind %s -> %s: %w", k, queue, err)
		}
	}
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := c.ch.Qos(prefetch, 0, false); err != nil {
		return nil, err
	}
	return c.ch.Consume(queue, tag, false, false, false, false, nil)
}

// Cancel stops the consumer with the given tag. Deliveries already in flight
// are still handed out.
func (c *Client) Cancel(tag string) error {
	if c.ch == nil {
		return nil
	}
	return c.ch.Cancel(tag, false)
}
