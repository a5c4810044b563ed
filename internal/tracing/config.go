package tracing

import (
	"strconv"
)

// ConfigFromEnv loads tracing configuration through the given lookup function.
func ConfigFromEnv(getenv func(string) string) TracingConfig {
	config := DefaultTracingConfig()

	// Check if tracing is enabled
	if enabledStr := getenv("EVENTSYS_TRACING_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			config.Enabled = enabled
		}
	}

	// Service name
	if serviceName := getenv("EVENTSYS_TRACING_SERVICE_NAME"); serviceName != "" {
		config.ServiceName = serviceName
	}

	// Service namespace
	if namespace := getenv("EVENTSYS_TRACING_NAMESPACE"); namespace != "" {
		config.Namespace = namespace
	}

	// Zipkin URL
	if zipkinURL := getenv("EVENTSYS_TRACING_ZIPKIN_URL"); zipkinURL != "" {
		config.ZipkinURL = zipkinURL
	}

	return config
}
