package metrics

import (
	"log/slog"

	"github.com/banquet-labs/banquet/lib/telemetry/metrics/base"
)

const datadogProvider = "datadog"

// LoadClient builds the metrics client named by the telemetry config, defaulting
// to a no-op provider.
func LoadClient(provider string, settings map[string]any) base.Client {
	switch provider {
	case datadogProvider:
		client, err := NewDatadogClient(settings)
		if err != nil {
			slog.Warn("Failed to initialize datadog client, falling back to null provider", slog.Any("err", err))
			return NullMetricsProvider{}
		}
		return client
	default:
		return NullMetricsProvider{}
	}
}
