package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func TestSetupOTel(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled tracing", func(t *testing.T) {
		config := TracingConfig{Enabled: false}
		tracer, cleanup, err := SetupOTel(ctx, config)
		require.NoError(t, err)
		require.NotNil(t, tracer)
		require.NotNil(t, cleanup)

		// Should be a no-op tracer
		_, span := tracer.Start(ctx, "test")
		assert.False(t, span.SpanContext().IsValid())
		span.End()

		cleanup()
	})

	t.Run("enabled tracing with unreachable collector", func(t *testing.T) {
		config := TracingConfig{
			Enabled:     true,
			ServiceName: "test-service",
			ZipkinURL:   "http://invalid-url:9411/api/v2/spans",
		}
		tracer, cleanup, err := SetupOTel(ctx, config)
		require.NoError(t, err)
		require.NotNil(t, tracer)
		require.NotNil(t, cleanup)

		cleanup()
	})
}

func TestConfigFromEnv(t *testing.T) {
	values := map[string]string{
		"EVENTSYS_TRACING_ENABLED":    "yes-please",
		"EVENTSYS_TRACING_ZIPKIN_URL": "http://zipkin:9411/api/v2/spans",
	}
	config := ConfigFromEnv(func(key string) string { return values[key] })

	// unparsable booleans keep the default
	assert.False(t, config.Enabled)
	assert.Equal(t, "eventsys", config.ServiceName)
	assert.Equal(t, "eventsys", config.Namespace)
	assert.Equal(t, "http://zipkin:9411/api/v2/spans", config.ZipkinURL)
}

func TestConfigFromEnv_Namespace(t *testing.T) {
	config := ConfigFromEnv(func(key string) string {
		if key == "EVENTSYS_TRACING_NAMESPACE" {
			return "checkout"
		}
		return ""
	})
	assert.Equal(t, "checkout", config.Namespace)
}

func TestNewResource(t *testing.T) {
	ctx := context.Background()

	t.Run("with namespace", func(t *testing.T) {
		res, err := newResource(ctx, TracingConfig{ServiceName: "stress", Namespace: "checkout"})
		require.NoError(t, err)

		set := res.Set()
		name, ok := set.Value(semconv.ServiceNameKey)
		require.True(t, ok)
		assert.Equal(t, "stress", name.AsString())

		namespace, ok := set.Value(semconv.ServiceNamespaceKey)
		require.True(t, ok)
		assert.Equal(t, "checkout", namespace.AsString())

		tracer, ok := set.Value("eventsys.tracer")
		require.True(t, ok)
		assert.Equal(t, TracerName, tracer.AsString())
	})

	t.Run("without namespace", func(t *testing.T) {
		res, err := newResource(ctx, TracingConfig{ServiceName: "stress"})
		require.NoError(t, err)

		_, ok := res.Set().Value(semconv.ServiceNamespaceKey)
		assert.False(t, ok)
	})
}
