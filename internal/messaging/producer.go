package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

// TopicNotificationRequested carries notification intents from the outbox
// relay to the notification worker.
const TopicNotificationRequested = "notification.requested"

var producerTracer = otel.Tracer("messaging/producer")

// Producer publishes JSON payloads keyed by resource, so every message about
// one order or product lands on the same partition in publish order.
type Producer struct {
	writer    *kafka.Writer
	topic     string
	published metric.Int64Counter
}

func NewProducer(brokers []string, topic string) *Producer {
	meter := telemetry.Meter("messaging")
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           50 * time.Millisecond,
			RequiredAcks:           kafka.RequireAll,
		},
		published: telemetry.Counter(meter, "kafka_messages_published_total", "Messages written to Kafka by topic and outcome"),
	}
}

// Publish writes payload as one JSON message. headers travel next to the
// trace context and let consumers route or log without decoding the body.
func (p *Producer) Publish(ctx context.Context, key string, payload any, headers map[string]string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}
	carrier := NewHeaderCarrier(&msg)
	carrier.SetAll(headers)

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, carrier)

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.count(ctx, "failed")
		return fmt.Errorf("write to %s: %w", p.topic, err)
	}

	p.count(ctx, "written")
	return nil
}

func (p *Producer) count(ctx context.Context, outcome string) {
	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("topic", p.topic),
		attribute.String("outcome", outcome),
	))
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
