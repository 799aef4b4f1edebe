package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchangeName is the topic exchange drink events are published to
	DefaultExchangeName = "drink_events"
)

// reconnectInterval is the minimum time between dial attempts after the
// broker connection is lost
const reconnectInterval = 5 * time.Second

// amqpChannel is the subset of *amqp.Channel the publisher uses
type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// amqpConnection is the subset of *amqp.Connection the publisher uses
type amqpConnection interface {
	IsClosed() bool
	Close() error
}

// dialFunc opens a connection and a channel on it
type dialFunc func() (amqpConnection, amqpChannel, error)

// ErrPublisherClosed is returned by Publish after Close
var ErrPublisherClosed = errors.New("publisher is closed")

// RabbitMQPublisher implements EventPublisher on a durable topic exchange.
// A lost connection is redialled on the next Publish, at most once per
// reconnectInterval.
type RabbitMQPublisher struct {
	dial         dialFunc
	exchangeName string

	mu       sync.Mutex
	conn     amqpConnection
	channel  amqpChannel
	nextDial time.Time
	closed   bool
}

// NewRabbitMQPublisher connects to amqpURL and declares the event exchange
func NewRabbitMQPublisher(amqpURL string) (*RabbitMQPublisher, error) {
	return newPublisher(dialURL(amqpURL), DefaultExchangeName)
}

func dialURL(amqpURL string) dialFunc {
	return func() (amqpConnection, amqpChannel, error) {
		conn, err := amqp.Dial(amqpURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("failed to open channel: %w", err)
		}
		return conn, ch, nil
	}
}

func newPublisher(dial dialFunc, exchange string) (*RabbitMQPublisher, error) {
	p := &RabbitMQPublisher{
		dial:         dial,
		exchangeName: exchange,
	}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

// connect dials and declares the exchange. The caller holds p.mu or owns p.
func (p *RabbitMQPublisher) connect() error {
	conn, ch, err := p.dial()
	if err != nil {
		return err
	}
	if err := setup(ch, p.exchangeName); err != nil {
		_ = ch.Close()
		if conn != nil {
			_ = conn.Close()
		}
		return fmt.Errorf("failed to setup exchange: %w", err)
	}
	p.conn, p.channel = conn, ch
	return nil
}

// release closes the current connection, ignoring errors from a broker that
// is already gone
func (p *RabbitMQPublisher) release() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.channel = nil, nil
}

func (p *RabbitMQPublisher) ready() bool {
	return p.channel != nil && !p.channel.IsClosed() && (p.conn == nil || !p.conn.IsClosed())
}

// ensureConnected redials a lost connection unless the last attempt was too
// recent. The caller holds p.mu.
func (p *RabbitMQPublisher) ensureConnected() error {
	if p.ready() {
		return nil
	}
	now := time.Now()
	if now.Before(p.nextDial) {
		return errors.New("not connected to RabbitMQ")
	}
	p.release()
	if err := p.connect(); err != nil {
		p.nextDial = now.Add(reconnectInterval)
		return fmt.Errorf("failed to reconnect: %w", err)
	}
	return nil
}

// setup declares the topic exchange consumers bind their queues to
func setup(ch amqpChannel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}
	return nil
}

// Publish sends event as a persistent JSON message routed by its type
func (p *RabbitMQPublisher) Publish(ctx context.Context, event *DrinkEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.OccurredAt,
		Type:         event.RoutingKey(),
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	if err := p.ensureConnected(); err != nil {
		return err
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchangeName,
		event.RoutingKey(),
		false, // mandatory
		false, // immediate
		publishing,
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// HealthCheck verifies the connection and channel are open
func (p *RabbitMQPublisher) HealthCheck(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPublisherClosed
	}
	if !p.ready() {
		return errors.New("not connected to RabbitMQ")
	}
	return nil
}

// Close closes the publisher connection. Later calls to Publish fail.
func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.channel != nil {
		err = p.channel.Close()
	}
	if p.conn != nil {
		if closeErr := p.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	p.conn, p.channel = nil, nil
	return err
}
