package rabbitmq

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"grocery-delivery/internal/config"
)

const (
	ExchangeNotifications = "notifications_fanout"
	QueueNotifications    = "notifications.q"
)

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel // confirm mode
}

func (c *Client) Close() {
	if c == nil {
		return
	}
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// URI builds the broker address; amqp.URI.String escapes credentials and the vhost.
func URI(cfg config.RabbitMQConfig) string {
	if cfg.VHost == "" {
		cfg.VHost = "/"
	}
	scheme := "amqp"
	if cfg.UseTLS {
		scheme = "amqps"
	}
	return amqp.URI{
		Scheme:   scheme,
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		Vhost:    cfg.VHost,
	}.String()
}

func Dial(cfg config.RabbitMQConfig) (*Client, error) {
	url := URI(cfg)

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

	return &Client{conn: conn, ch: ch}, nil
}

// DeclareTopology is idempotent.
func (c *Client) DeclareTopology() error {
	if c == nil || c.ch == nil {
		return errors.New("nil channel")
	}
	if err := c.ch.ExchangeDeclare(ExchangeNotifications, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeNotifications, err)
	}
	if _, err := c.ch.QueueDeclare(QueueNotifications, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", QueueNotifications, err)
	}
	if err := c.ch.QueueBind(QueueNotifications, "", ExchangeNotifications, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", QueueNotifications, err)
	}
	return nil
}

func (c *Client) Ping() error {
	if c.conn == nil || c.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

// Message is what callers hand to Publish.
type Message struct {
	MessageID     string
	CorrelationID string
	Headers       amqp.Table
	Body          []byte
}

// Publish sends a persistent JSON message and waits for the broker ack/nack of that
// delivery tag. A late confirm only settles its own deferred confirmation.
func (c *Client) Publish(ctx context.Context, exchange, key string, msg Message) error {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(
		ctx,
		exchange,
		key,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			MessageId:     msg.MessageID,
			CorrelationId: msg.CorrelationID,
			Timestamp:     time.Now().UTC(),
			Headers:       msg.Headers,
			Body:          msg.Body,
		},
	)
	if err != nil {
		return err
	}
	if dc == nil {
		return errors.New("channel is not in confirm mode")
	}

	ack, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !ack {
		return errors.New("publish NACK from broker")
	}
	return nil
}

// Consume opens a dedicated channel so consumer flow control never blocks publishing.
func (c *Client) Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, func(), error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	msgs, err := ch.Consume(queue, consumer, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, err
	}
	stop := func() {
		_ = ch.Cancel(consumer, false)
		_ = ch.Close()
	}
	return msgs, stop, nil
}
