package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
	"github.com/joao-fontenele/storefront-orderflow/internal/telemetry"
)

var tracer = otel.Tracer("notify")

var errNoRecipient = errors.New("notification has no recipient")

type AttemptStore interface {
	Insert(ctx context.Context, attempt *domain.NotificationAttempt) error
}

// Dispatcher renders, sends and records a single notification attempt.
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	attempts AttemptStore
	from     string
	logger   *slog.Logger
	outcomes metric.Int64Counter
	nowFunc  func() time.Time
}

func NewDispatcher(renderer *Renderer, sender Sender, attempts AttemptStore, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		renderer: renderer,
		sender:   sender,
		attempts: attempts,
		from:     renderer.site.From,
		logger:   logger,
		outcomes: telemetry.Counter(telemetry.Meter("notify"), "notifications_total",
			"Notification attempts by kind and outcome"),
		nowFunc: time.Now,
	}
}

// Send returns the delivery error so callers can decide whether to retry.
// The attempt is recorded either way.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	ctx, span := tracer.Start(ctx, "notify.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.kind", string(msg.Kind)),
		attribute.String("notification.resource_id", msg.ResourceID),
	)

	err := d.deliver(ctx, msg)

	outcome := domain.OutcomeSent
	attempt := &domain.NotificationAttempt{
		IntentID:   msg.IntentID,
		Kind:       msg.Kind,
		Recipient:  msg.Recipient,
		ResourceID: msg.ResourceID,
		CreatedAt:  d.nowFunc().UTC(),
	}
	if err != nil {
		outcome = domain.OutcomeFailed
		attempt.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	attempt.Outcome = outcome

	d.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(msg.Kind)),
		attribute.String("outcome", string(outcome)),
	))

	if insertErr := d.attempts.Insert(context.WithoutCancel(ctx), attempt); insertErr != nil {
		d.logger.Error("failed to record notification attempt",
			"error", insertErr,
			"kind", msg.Kind,
			"resource_id", msg.ResourceID,
		)
	}

	if err != nil {
		d.logger.Warn("notification failed",
			"error", err,
			"kind", msg.Kind,
			"resource_id", msg.ResourceID,
			"intent_id", msg.IntentID,
		)
		return err
	}

	d.logger.Info("notification sent", "kind", msg.Kind, "resource_id", msg.ResourceID, "intent_id", msg.IntentID)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) error {
	if msg.Recipient == "" {
		return errNoRecipient
	}

	email, err := d.renderer.Render(msg)
	if err != nil {
		return err
	}

	return d.sender.Send(ctx, OutgoingEmail{
		To:      msg.Recipient,
		From:    d.from,
		Subject: email.Subject,
		Body:    email.Body,
		Kind:    msg.Kind,
	})
}

// Deliver sends an outbox intent in process.
func (d *Dispatcher) Deliver(ctx context.Context, intent *domain.NotificationIntent) error {
	return d.Send(ctx, MessageFromIntent(intent))
}

// HandleMessage consumes a Message published to the notification topic.
func (d *Dispatcher) HandleMessage(ctx context.Context, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("unmarshal notification message: %w", err)
	}
	return d.Send(ctx, msg)
}
