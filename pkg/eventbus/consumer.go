package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"

	"github.com/timour/catalyst/pkg/metrics"
	"github.com/timour/catalyst/pkg/tracing"
)

// ResultKind is the outcome of a handler's attempt to process an event.
type ResultKind string

const (
	// ResultOK acknowledges the message; processing succeeded.
	ResultOK ResultKind = "ok"
	// ResultRetry nacks with requeue so the message is redelivered, up to
	// MaxRetryCount attempts, after which it is routed to the DLQ.
	ResultRetry ResultKind = "retry"
	// ResultFatal nacks without requeue, sending the message straight to
	// the DLQ: retrying would never succeed.
	ResultFatal ResultKind = "fatal"
)

// Result is what a Handler returns for every event it processes.
type Result struct {
	Kind ResultKind
	Err  error
}

// OK is shorthand for a successful Result.
func OK() Result { return Result{Kind: ResultOK} }

// Retry wraps a transient error as a retryable Result.
func Retry(err error) Result { return Result{Kind: ResultRetry, Err: err} }

// Fatal wraps a non-recoverable error as a terminal Result.
func Fatal(err error) Result { return Result{Kind: ResultFatal, Err: err} }

// Handler processes one event and reports the outcome.
type Handler func(ctx context.Context, ev Event) Result

// Consumer drains one agent-owned durable queue and dispatches each
// message to a Handler, managing ack/nack/DLQ and retry bookkeeping.
type Consumer struct {
	queue   EventType
	ch      *amqp.Channel
	url     string
	logger  *slog.Logger
	metrics *metrics.BusMetrics
	handle  Handler

	mu       sync.Mutex
	attempts map[string]int // event_id -> next attempt number, in-memory only
}

// NewConsumer builds a Consumer bound to the durable queue for kind.
func NewConsumer(kind EventType, ch *amqp.Channel, url string, logger *slog.Logger, m *metrics.BusMetrics, handle Handler) *Consumer {
	return &Consumer{queue: kind, ch: ch, url: url, logger: logger, metrics: m, handle: handle, attempts: make(map[string]int)}
}

// Listen runs the infinite reconnection loop: consume until the channel
// dies, then reconnect and resume. It returns only when ctx is cancelled.
func (c *Consumer) Listen(ctx context.Context) {
	queueName := QueueName(c.queue)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.ch.Qos(1, 0, false); err != nil {
			c.logger.Error("set prefetch failed", slog.Any("error", err))
			c.reconnect(ctx)
			continue
		}

		msgs, err := c.ch.Consume(queueName, "", false, false, false, false, nil)
		if err != nil {
			c.logger.Error("consume failed", slog.String("queue", queueName), slog.Any("error", err))
			c.reconnect(ctx)
			continue
		}

		c.logger.Info("consumer listening", slog.String("queue", queueName))
		c.drain(ctx, msgs)

		select {
		case <-ctx.Done():
			return
		default:
			c.logger.Warn("consumer channel closed, reconnecting", slog.String("queue", queueName))
			c.reconnect(ctx)
		}
	}
}

func (c *Consumer) drain(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-msgs:
			if !ok {
				return
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) {
	start := time.Now()
	msgCtx := tracing.Extract(ctx, d.Headers)
	tracer := otel.Tracer("catalyst")
	msgCtx, span := tracer.Start(msgCtx, "eventbus.consume."+string(c.queue))
	defer span.End()

	var ev Event
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		c.logger.Error("malformed event, routing to DLQ", slog.String("queue", string(c.queue)), slog.Any("error", err))
		d.Nack(false, false)
		c.recordOutcome("malformed", start)
		c.recordDeadLetter()
		return
	}
	if ev.Attempt < 1 {
		ev.Attempt = 1
	}
	ev.Attempt = c.currentAttempt(ev.EventID, ev.Attempt)

	result := c.invoke(msgCtx, ev)
	switch result.Kind {
	case ResultOK:
		d.Ack(false)
		c.forgetAttempts(ev.EventID)
		c.recordOutcome("ok", start)
	case ResultRetry:
		c.logger.Warn("handler requested retry",
			slog.String("event_id", ev.EventID),
			slog.Int("attempt", ev.Attempt),
			slog.Any("error", result.Err),
		)
		if ev.Attempt >= MaxRetryCount {
			d.Nack(false, false)
			c.forgetAttempts(ev.EventID)
			c.recordOutcome("retry_exhausted", start)
			c.recordDeadLetter()
		} else {
			c.rememberNextAttempt(ev.EventID, ev.Attempt+1)
			d.Nack(false, true)
			c.recordOutcome("retry", start)
		}
	case ResultFatal:
		c.logger.Error("handler reported fatal error",
			slog.String("event_id", ev.EventID),
			slog.Any("error", result.Err),
		)
		d.Nack(false, false)
		c.forgetAttempts(ev.EventID)
		c.recordOutcome("fatal", start)
		c.recordDeadLetter()
	default:
		d.Nack(false, false)
		c.forgetAttempts(ev.EventID)
		c.recordOutcome("unknown", start)
		c.recordDeadLetter()
	}
}

// invoke calls the handler with a recover guard: an unexpected panic is a
// bug, not a transient failure, so it is converted to a fatal result and the
// message is routed to the DLQ rather than crashing the worker.
func (c *Consumer) invoke(ctx context.Context, ev Event) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panicked, treating as fatal",
				slog.String("event_id", ev.EventID),
				slog.Any("panic", r),
			)
			result = Fatal(fmt.Errorf("handler panic: %v", r))
		}
	}()
	return c.handle(ctx, ev)
}

func (c *Consumer) currentAttempt(eventID string, bodyAttempt int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.attempts[eventID]; ok {
		return n
	}
	return bodyAttempt
}

func (c *Consumer) rememberNextAttempt(eventID string, next int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts[eventID] = next
}

func (c *Consumer) forgetAttempts(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.attempts, eventID)
}

func (c *Consumer) recordOutcome(outcome string, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordConsume(string(c.queue), outcome, time.Since(start))
	}
}

func (c *Consumer) recordDeadLetter() {
	if c.metrics != nil {
		c.metrics.RecordDeadLetter(string(c.queue))
	}
}

func (c *Consumer) reconnect(ctx context.Context) {
	backoff := 2 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, ch, err := Connect(c.url, c.logger)
		if err == nil {
			c.ch = ch
			_ = conn
			return
		}
		c.logger.Warn("reconnect failed, retrying", slog.Duration("backoff", backoff), slog.Any("error", err))
		time.Sleep(backoff)
		if backoff < 20*time.Second {
			backoff *= 2
		}
	}
}
