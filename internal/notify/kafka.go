package notify

import (
	"context"

	"github.com/joao-fontenele/storefront-orderflow/internal/domain"
)

// Header names set on every published intent.
const (
	HeaderKind     = "notification_kind"
	HeaderIntentID = "intent_id"
)

type Publisher interface {
	Publish(ctx context.Context, key string, payload any, headers map[string]string) error
}

// KafkaDeliverer hands intents to the notification worker. An intent counts
// as delivered once the broker has it; the worker records the send attempt.
type KafkaDeliverer struct {
	publisher Publisher
}

func NewKafkaDeliverer(publisher Publisher) *KafkaDeliverer {
	return &KafkaDeliverer{publisher: publisher}
}

func (k *KafkaDeliverer) Deliver(ctx context.Context, intent *domain.NotificationIntent) error {
	return k.publisher.Publish(ctx, intent.ResourceID, MessageFromIntent(intent), map[string]string{
		HeaderKind:     string(intent.Kind),
		HeaderIntentID: intent.ID,
	})
}
