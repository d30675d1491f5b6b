package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/timour/catalyst/pkg/metrics"
	"github.com/timour/catalyst/pkg/tracing"
)

// AuditRecorder persists a fire-and-forget record of every published event.
// pkg/store's PostgresStore implements this; Publisher works without one.
type AuditRecorder interface {
	RecordEvent(ctx context.Context, ev Event) error
}

// EventPublisher is the seam handlers publish through. Publisher is the
// broker-backed implementation used in event-driven mode; sequential mode
// substitutes a loopback implementation that hands the event straight to
// the orchestrator instead of a queue, so handler code never changes
// between modes.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Publisher publishes events onto Exchange with routing key
// "catalyst.<event_type>". All publish calls are serialised by mu, so a
// reconnect never races a concurrent publish onto a channel mid-swap.
type Publisher struct {
	mu sync.Mutex

	url     string
	conn    *amqp.Connection
	ch      *amqp.Channel
	logger  *slog.Logger
	metrics *metrics.BusMetrics
	audit   AuditRecorder
}

// NewPublisher wraps an already-connected channel. url is used to
// reconnect if the connection drops mid-publish. audit may be nil, in which
// case events are published without an audit trail.
func NewPublisher(conn *amqp.Connection, ch *amqp.Channel, url string, logger *slog.Logger, m *metrics.BusMetrics, audit AuditRecorder) *Publisher {
	return &Publisher{url: url, conn: conn, ch: ch, logger: logger, metrics: m, audit: audit}
}

// Publish sends ev to Exchange, making up to three attempts with a
// 0.5×attempt backoff between them when a publish fails with a
// connection-family error; such a failure discards the channel. Before each
// attempt it checks whether the connection and channel are still open and,
// if not, reconnects and re-declares the exchange before publishing. The audit
// write, if configured, happens in a background goroutine and never blocks
// or fails the publish.
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.EventID, err)
	}

	routingKey := RoutingKey(ev.EventType)
	headers := tracing.Inject(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()

	var publishErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if !p.isOpen() {
			if err := p.reconnectLocked(); err != nil {
				p.logger.Warn("publisher reconnect failed", slog.Any("error", err))
				publishErr = err
				time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
				continue
			}
		}

		publishErr = p.ch.PublishWithContext(ctx,
			Exchange,
			routingKey,
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				Headers:      headers,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				MessageId:    ev.EventID,
			},
		)
		if publishErr == nil {
			break
		}
		if !isConnectionError(publishErr) {
			break
		}
		p.ch.Close()
		p.ch = nil
		p.logger.Warn("publish failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("event_id", ev.EventID),
			slog.Any("error", publishErr),
		)
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	if publishErr != nil {
		return fmt.Errorf("publish event %s: %w", ev.EventID, publishErr)
	}

	if p.metrics != nil {
		p.metrics.RecordPublish(string(ev.EventType))
	}

	if p.audit != nil {
		go func() {
			auditCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.audit.RecordEvent(auditCtx, ev); err != nil {
				p.logger.Warn("audit write failed", slog.String("event_id", ev.EventID), slog.Any("error", err))
			}
		}()
	}

	return nil
}

// isOpen reports whether the current connection/channel look usable. Called
// with mu held.
func (p *Publisher) isOpen() bool {
	return p.conn != nil && !p.conn.IsClosed() && p.ch != nil
}

// reconnectLocked dials a fresh connection and channel, re-declares
// Exchange on it, and swaps it in, closing whatever was there before.
// Called with mu held.
func (p *Publisher) reconnectLocked() error {
	conn, ch, err := Connect(p.url, p.logger)
	if err != nil {
		return fmt.Errorf("reconnect publisher: %w", err)
	}

	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("redeclare exchange %s: %w", Exchange, err)
	}

	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Healthy reports whether the underlying connection is still open, used by
// the /api/health endpoint.
func (p *Publisher) Healthy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isOpen()
}

func isConnectionError(err error) bool {
	switch err.(type) {
	case *amqp.Error:
		return true
	default:
		return err == amqp.ErrClosed
	}
}
