package messaging

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

var consumerTracer = otel.Tracer("messaging/consumer")

type HandlerFunc func(ctx context.Context, payload []byte) error

type Consumer struct {
	reader   *kafka.Reader
	topic    string
	groupID  string
	logger   *slog.Logger
	consumed metric.Int64Counter
	// logHeaders are copied into failure logs when present on a message.
	logHeaders []string
}

type consumerSettings struct {
	reader     kafka.ReaderConfig
	logHeaders []string
}

type ConsumerOption func(*consumerSettings)

func WithStartOffset(offset int64) ConsumerOption {
	return func(s *consumerSettings) {
		s.reader.StartOffset = offset
	}
}

// WithLogHeaders names message headers worth including when a handler fails.
func WithLogHeaders(keys ...string) ConsumerOption {
	return func(s *consumerSettings) {
		s.logHeaders = append(s.logHeaders, keys...)
	}
}

func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) *Consumer {
	settings := consumerSettings{
		reader: kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return &Consumer{
		reader:     kafka.NewReader(settings.reader),
		topic:      topic,
		groupID:    groupID,
		logger:     logger,
		consumed:   telemetry.Counter(telemetry.Meter("messaging"), "kafka_messages_consumed_total", "Messages handled from Kafka by topic and outcome"),
		logHeaders: settings.logHeaders,
	}
}

// Consume processes messages until ctx is cancelled or the reader fails.
// A handler error is logged and the message is still committed: the outcome
// is already recorded by the handler and redelivery would only duplicate
// side effects.
func (c *Consumer) Consume(ctx context.Context, handler HandlerFunc) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		outcome := "handled"
		if err := c.processMessage(ctx, msg, handler); err != nil {
			outcome = "failed"
			attrs := []any{
				"error", err,
				"topic", c.topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"key", string(msg.Key),
			}
			attrs = append(attrs, NewHeaderCarrier(&msg).LogAttrs(c.logHeaders)...)
			c.logger.Error("message handler failed", attrs...)
		}
		c.consumed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("topic", c.topic),
			attribute.String("outcome", outcome),
		))

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message, handler HandlerFunc) error {
	parentCtx := otel.GetTextMapPropagator().Extract(ctx, NewHeaderCarrier(&msg))

	spanCtx, span := consumerTracer.Start(parentCtx, "process "+c.topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("process"),
			semconv.MessagingOperationTypeDeliver,
			semconv.MessagingDestinationName(c.topic),
			semconv.MessagingKafkaConsumerGroup(c.groupID),
			semconv.MessagingKafkaMessageOffset(int(msg.Offset)),
			semconv.MessagingDestinationPartitionID(strconv.Itoa(msg.Partition)),
			semconv.MessagingKafkaMessageKey(string(msg.Key)),
		),
	)
	defer span.End()

	if err := handler(spanCtx, msg.Value); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
