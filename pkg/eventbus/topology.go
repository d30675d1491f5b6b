package eventbus

import (
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connect dials the broker and opens a channel, retrying with exponential
// backoff (2s doubling up to 20s, 10 attempts) since the broker may still be
// starting up when catalyst does.
func Connect(url string, logger *slog.Logger) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error

	backoff := 2 * time.Second
	const maxBackoff = 20 * time.Second
	const maxAttempts = 10

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		logger.Warn("broker connect failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.Any("error", err),
		)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connect to broker after %d attempts: %w", maxAttempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}

	return conn, ch, nil
}

// queueTTLMillis and queueMaxLength bound every agent queue: messages older
// than an hour or beyond the backlog cap are dead-lettered to
// DeadLetterQueue (see the queue arguments InitTopology sets) rather than
// piling up indefinitely.
const (
	queueTTLMillis = int64(3600000)
	queueMaxLength = int32(10000)
)

// InitTopology idempotently declares the topic exchange, every agent queue
// bound to it per queueBindings, and the single shared dead-letter queue
// that exhausted-retry messages from any agent land on.
func InitTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", Exchange, err)
	}

	if _, err := ch.QueueDeclare(
		DeadLetterQueue,
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", DeadLetterQueue, err)
	}

	for _, binding := range queueBindings {
		args := amqp.Table{
			"x-message-ttl":             queueTTLMillis,
			"x-max-length":              queueMaxLength,
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": DeadLetterQueue,
		}

		if _, err := ch.QueueDeclare(binding.Queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %s: %w", binding.Queue, err)
		}

		for _, routingKey := range binding.RoutingKeys {
			if err := ch.QueueBind(binding.Queue, routingKey, Exchange, false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", binding.Queue, routingKey, err)
			}
		}
	}

	return nil
}
