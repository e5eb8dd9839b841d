package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"grocery-delivery/internal/common/logger"
	"grocery-delivery/internal/connections/rabbitmq"
	"grocery-delivery/internal/domain"
	"grocery-delivery/internal/metrics"
)

const routingKeyStatusChanged = "order.status_changed"

type Publisher interface {
	Publish(ctx context.Context, exchange, key string, msg rabbitmq.Message) error
}

// IntegrationPublisher forwards every status change to the notifications_fanout exchange
// for downstream consumers (audit, e-mail). Live delivery does not depend on it.
type IntegrationPublisher struct {
	pub     Publisher
	timeout time.Duration
	lg      *logger.Logger
}

func NewIntegrationPublisher(pub Publisher, lg *logger.Logger) *IntegrationPublisher {
	if lg == nil {
		lg = logger.Nop()
	}
	return &IntegrationPublisher{pub: pub, timeout: 5 * time.Second, lg: lg}
}

func (p *IntegrationPublisher) Name() string { return "integration" }

func (p *IntegrationPublisher) Handle(ctx context.Context, change domain.StatusChange) {
	body, err := json.Marshal(change)
	if err != nil {
		p.lg.Error("integration_encode_failed", err, map[string]any{"order_id": change.OrderID})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := rabbitmq.Message{
		MessageID:     uuid.NewString(),
		CorrelationID: formatID(change.OrderID),
		Headers: amqp.Table{
			"event":      routingKeyStatusChanged,
			"new_status": string(change.NewStatus),
		},
		Body: body,
	}
	err = p.pub.Publish(ctx, rabbitmq.ExchangeNotifications, routingKeyStatusChanged, msg)
	metrics.NotificationAttempts.WithLabelValues("integration", result(err)).Inc()
	if err != nil {
		p.lg.Error("integration_publish_failed", &domain.NotificationDeliveryError{
			Channel: "integration", Target: rabbitmq.ExchangeNotifications, Err: err,
		}, map[string]any{"order_id": change.OrderID})
		return
	}
	p.lg.Debug("integration_published", map[string]any{"order_id": change.OrderID, "message_id": msg.MessageID})
}

type Consumer interface {
	Consume(queue, consumer string, prefetch int) (<-chan amqp.Delivery, func(), error)
}

// Subscriber reads the integration feed back and logs each change.
type Subscriber struct {
	consumer Consumer
	lg       *logger.Logger
}

func NewSubscriber(c Consumer, lg *logger.Logger) *Subscriber {
	if lg == nil {
		lg = logger.Nop()
	}
	return &Subscriber{consumer: c, lg: lg}
}

// Run consumes until ctx is done or the delivery channel closes.
func (s *Subscriber) Run(ctx context.Context) error {
	msgs, stop, err := s.consumer.Consume(rabbitmq.QueueNotifications, "notification-subscriber", 16)
	if err != nil {
		return err
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			s.handle(d)
		}
	}
}

func (s *Subscriber) handle(d amqp.Delivery) {
	var change domain.StatusChange
	if err := json.Unmarshal(d.Body, &change); err != nil {
		s.lg.Error("notification_decode_failed", err, map[string]any{"message_id": d.MessageId})
		_ = d.Nack(false, false)
		return
	}
	s.lg.Info("notification_received", map[string]any{
		"message_id": d.MessageId,
		"order_id":   change.OrderID,
		"user_id":    change.OwnerUserID,
		"old_status": string(change.OldStatus),
		"new_status": string(change.NewStatus),
		"changed_by": change.ChangedBy,
	})
	_ = d.Ack(false)
}
