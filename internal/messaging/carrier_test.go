package messaging

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestHeaderCarrier(t *testing.T) {
	msg := &kafka.Message{}
	c := NewHeaderCarrier(msg)

	c.Set("traceparent", "first")
	c.Set("traceparent", "second")
	c.Set("baggage", "k=v")

	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
	}
	if got := c.Get("traceparent"); got != "second" {
		t.Errorf("expected overwritten value, got %q", got)
	}
	if got := c.Get("missing"); got != "" {
		t.Errorf("expected empty value for missing key, got %q", got)
	}
	if keys := c.Keys(); len(keys) != 2 || keys[0] != "traceparent" || keys[1] != "baggage" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestHeaderCarrier_PropagatesTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	msg := &kafka.Message{}
	prop.Inject(ctx, NewHeaderCarrier(msg))

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), NewHeaderCarrier(msg)))
	if extracted.TraceID() != traceID {
		t.Errorf("expected trace id %s, got %s", traceID, extracted.TraceID())
	}
	if !extracted.IsRemote() {
		t.Error("expected extracted span context to be remote")
	}
}

func TestHeaderCarrier_CaseInsensitive(t *testing.T) {
	msg := &kafka.Message{Headers: []kafka.Header{{Key: "Traceparent", Value: []byte("upstream")}}}
	c := NewHeaderCarrier(msg)

	if got := c.Get("traceparent"); got != "upstream" {
		t.Errorf("expected header from differently cased key, got %q", got)
	}

	c.Set("traceparent", "local")
	if len(msg.Headers) != 1 {
		t.Fatalf("expected the existing header to be replaced, got %d headers", len(msg.Headers))
	}
	if msg.Headers[0].Key != "Traceparent" || string(msg.Headers[0].Value) != "local" {
		t.Errorf("unexpected header %s=%s", msg.Headers[0].Key, msg.Headers[0].Value)
	}
}

func TestHeaderCarrier_SetAll(t *testing.T) {
	msg := &kafka.Message{}
	c := NewHeaderCarrier(msg)

	c.SetAll(nil)
	if len(msg.Headers) != 0 {
		t.Fatalf("expected no headers, got %v", msg.Headers)
	}

	c.SetAll(map[string]string{"notification_kind": "shipment", "intent_id": "i-1"})
	if len(msg.Headers) != 2 {
		t.Fatalf("expected 2 headers, got %d", len(msg.Headers))
	}
	if msg.Headers[0].Key != "intent_id" || msg.Headers[1].Key != "notification_kind" {
		t.Errorf("expected headers in key order, got %v", c.Keys())
	}
}

func TestHeaderCarrier_LogAttrs(t *testing.T) {
	msg := &kafka.Message{Headers: []kafka.Header{
		{Key: "intent_id", Value: []byte("i-1")},
		{Key: "notification_kind", Value: []byte("")},
	}}

	attrs := NewHeaderCarrier(msg).LogAttrs([]string{"intent_id", "notification_kind", "missing"})
	if len(attrs) != 2 || attrs[0] != "intent_id" || attrs[1] != "i-1" {
		t.Errorf("expected only the non-empty present header, got %v", attrs)
	}
	if got := NewHeaderCarrier(msg).LogAttrs(nil); got != nil {
		t.Errorf("expected nil attrs, got %v", got)
	}
}
