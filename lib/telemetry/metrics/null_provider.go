package metrics

import "time"

type NullMetricsProvider struct{}

func (NullMetricsProvider) Gauge(name string, value float64, tags map[string]string) {}

func (NullMetricsProvider) Count(name string, value int64, tags map[string]string) {}

func (NullMetricsProvider) Timing(name string, value time.Duration, tags map[string]string) {}

func (NullMetricsProvider) Incr(name string, tags map[string]string) {}
