package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Meter returns a meter from the global provider. Instruments created before
// InitMeterProvider runs are rebound once the provider is installed.
func Meter(name string) metric.Meter {
	return otel.Meter("github.com/joao-fontenele/storefront-orderflow/" + name)
}

// Counter creates an Int64Counter, falling back to a no-op instrument so a
// bad instrument name never breaks request handling.
func Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		otel.Handle(err)
		return noop.Int64Counter{}
	}
	return c
}
