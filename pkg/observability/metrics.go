package observability

import (
	"sync"
	"time"
)

// metricsClient is an in-process MetricsClient. Values are kept in memory
// and exposed through Snapshot; an exporter can be layered on later without
// touching call sites.
type metricsClient struct {
	mu       sync.Mutex
	counters map[string]float64
	gauges   map[string]float64
}

// NewMetricsClient creates a metrics client that aggregates in memory.
func NewMetricsClient() MetricsClient {
	return &metricsClient{
		counters: make(map[string]float64),
		gauges:   make(map[string]float64),
	}
}

func (m *metricsClient) RecordCounter(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	m.counters[metricKey(name, labels)] += value
	m.mu.Unlock()
}

func (m *metricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	m.gauges[metricKey(name, labels)] = value
	m.mu.Unlock()
}

func (m *metricsClient) RecordLatency(operation string, duration time.Duration) {
	m.RecordCounter(operation+"_latency_ms_total", float64(duration.Milliseconds()), nil)
	m.RecordCounter(operation+"_total", 1, nil)
}

func (m *metricsClient) IncrementCounter(name string, value float64) {
	m.RecordCounter(name, value, nil)
}

func (m *metricsClient) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		m.RecordCounter(metricKey(name, labels)+"_seconds_total", time.Since(start).Seconds(), nil)
	}
}

func (m *metricsClient) Close() error { return nil }

// Snapshot returns a copy of the current counter values. Used by tests and
// the health endpoint.
func (m *metricsClient) Snapshot() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]float64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

func metricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	key := name
	for _, k := range sortedKeys(labels) {
		key += "," + k + "=" + labels[k]
	}
	return key
}

func sortedKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

// NoopMetricsClient discards all measurements.
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a MetricsClient that does nothing.
func NewNoopMetricsClient() MetricsClient { return &NoopMetricsClient{} }

func (NoopMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {}
func (NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string)   {}
func (NoopMetricsClient) RecordLatency(operation string, duration time.Duration)             {}
func (NoopMetricsClient) IncrementCounter(name string, value float64)                        {}
func (NoopMetricsClient) StartTimer(name string, labels map[string]string) func()            { return func() {} }
func (NoopMetricsClient) Close() error                                                       { return nil }
