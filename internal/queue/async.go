package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAsyncBuffer is how many events may wait for the broker
	DefaultAsyncBuffer = 256
	// DefaultPublishTimeout bounds a single delivery attempt
	DefaultPublishTimeout = 5 * time.Second
)

// ErrBufferFull is returned when events arrive faster than the broker takes them
var ErrBufferFull = errors.New("event buffer is full")

// AsyncPublisher hands events to a background goroutine so a slow broker
// never delays the request that produced them. Delivery failures are logged.
type AsyncPublisher struct {
	next    EventPublisher
	log     *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	events chan *DrinkEvent
	closed bool
	done   chan struct{}
}

// NewAsyncPublisher starts a delivery goroutine in front of next. A buffer
// of zero or less uses DefaultAsyncBuffer.
func NewAsyncPublisher(next EventPublisher, buffer int, log *zap.Logger) *AsyncPublisher {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &AsyncPublisher{
		next:    next,
		log:     log,
		timeout: DefaultPublishTimeout,
		events:  make(chan *DrinkEvent, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues event without blocking
func (p *AsyncPublisher) Publish(_ context.Context, event *DrinkEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.events <- event:
		return nil
	default:
		return ErrBufferFull
	}
}

// HealthCheck reports the health of the underlying publisher
func (p *AsyncPublisher) HealthCheck(ctx context.Context) error {
	return p.next.HealthCheck(ctx)
}

// Close stops accepting events, delivers what is queued and closes the
// underlying publisher
func (p *AsyncPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	return p.next.Close()
}

func (p *AsyncPublisher) run() {
	defer close(p.done)
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		err := p.next.Publish(ctx, event)
		cancel()
		if err != nil {
			p.log.Warn("drink_event_publish_failed",
				zap.String("event_id", event.ID.String()),
				zap.String("routing_key", event.RoutingKey()),
				zap.Int64("drink_id", event.DrinkID),
				zap.Error(err),
			)
		}
	}
}
