package servicecontrol

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNotConfigured is returned when no broker URL was provided
var ErrNotConfigured = errors.New("message broker not configured")

// ErrNotAcknowledged is returned when the broker rejects a published message
var ErrNotAcknowledged = errors.New("broker did not acknowledge the message")

// Broker is the subset of broker operations used for worker control
type Broker interface {
	// Publish delivers body to a durable queue over a short-lived connection
	Publish(ctx context.Context, queue string, body []byte) error
	// Subscribe binds a private queue to a topic exchange
	Subscribe(ctx context.Context, exchange, routingKey string) (Subscription, error)
}

// Subscription is a live consumer. Deliveries is closed when the connection drops.
type Subscription interface {
	Deliveries() <-chan amqp.Delivery
	Close() error
}

// AMQPBroker implements Broker with RabbitMQ
type AMQPBroker struct {
	url string
}

// NewAMQPBroker creates a broker for the given amqp:// URL
func NewAMQPBroker(url string) *AMQPBroker {
	return &AMQPBroker{url: url}
}

func (b *AMQPBroker) dial(ctx context.Context) (*amqp.Connection, error) {
	cfg := amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Properties: amqp.Table{
			"connection_name": "botcontrol",
		},
	}
	if deadline, ok := ctx.Deadline(); ok {
		timeout := time.Until(deadline)
		cfg.Dial = amqp.DefaultDial(timeout)
	}
	conn, err := amqp.DialConfig(b.url, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	return conn, nil
}

// Publish sends a persistent message and waits for the publisher confirm
func (b *AMQPBroker) Publish(ctx context.Context, queue string, body []byte) error {
	conn, err := b.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}
	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for confirm: %w", err)
	}
	if !acked {
		return ErrNotAcknowledged
	}
	return nil
}

// Subscribe declares the topic exchange and consumes routingKey on an exclusive queue
func (b *AMQPBroker) Subscribe(ctx context.Context, exchange, routingKey string) (Subscription, error) {
	conn, err := b.dial(ctx)
	if err != nil {
		return nil, err
	}

	sub, err := subscribe(conn, exchange, routingKey)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return sub, nil
}

func subscribe(conn *amqp.Connection, exchange, routingKey string) (*amqpSubscription, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to declare heartbeat queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", routingKey, err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume %s: %w", q.Name, err)
	}
	return &amqpSubscription{conn: conn, ch: ch, deliveries: deliveries}, nil
}

type amqpSubscription struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

func (s *amqpSubscription) Deliveries() <-chan amqp.Delivery {
	return s.deliveries
}

func (s *amqpSubscription) Close() error {
	_ = s.ch.Close()
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}
