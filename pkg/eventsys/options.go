package eventsys

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Option configures a registry created by Create.
type Option func(*options)

type options struct {
	name   string
	logger *slog.Logger
	tracer trace.Tracer
}

func defaultOptions() options {
	return options{
		name:   "eventsys",
		logger: slog.Default(),
		tracer: noop.NewTracerProvider().Tracer("eventsys"),
	}
}

// WithName sets the name reported in logs and trace attributes.
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithLogger sets the logger used for subscription lifecycle and callback failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer used to open one span per Notify call.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}
