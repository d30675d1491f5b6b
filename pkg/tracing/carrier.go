package tracing

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// AMQPHeadersCarrier adapts an amqp.Table to OpenTelemetry's TextMapCarrier
// so trace context can ride along in message headers: RabbitMQ has no
// built-in propagation the way gRPC does.
type AMQPHeadersCarrier struct {
	headers amqp.Table
}

func (c *AMQPHeadersCarrier) Get(key string) string {
	if val, ok := c.headers[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func (c *AMQPHeadersCarrier) Set(key, value string) {
	c.headers[key] = value
}

func (c *AMQPHeadersCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for k := range c.headers {
		keys = append(keys, k)
	}
	return keys
}

// Inject writes the span context carried by ctx into a fresh amqp.Table
// suitable for amqp.Publishing.Headers.
func Inject(ctx context.Context) amqp.Table {
	headers := make(amqp.Table)
	otel.GetTextMapPropagator().Inject(ctx, &AMQPHeadersCarrier{headers: headers})
	return headers
}

// Extract recovers the span context from inbound message headers and
// attaches it to ctx so the consumer's span continues the producer's trace.
func Extract(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		headers = make(amqp.Table)
	}
	return otel.GetTextMapPropagator().Extract(ctx, &AMQPHeadersCarrier{headers: headers})
}
