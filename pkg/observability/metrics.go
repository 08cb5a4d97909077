package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsClient is the metrics-emission contract used throughout the core.
// Every component takes one of these rather than a concrete client so tests
// can swap in a NoopMetricsClient.
type MetricsClient interface {
	RecordEvent(source, eventType string)
	RecordLatency(operation string, duration time.Duration)
	RecordCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	RecordTimer(name string, duration time.Duration, labels map[string]string)
	RecordCacheOperation(operation string, success bool, durationSeconds float64)
	RecordOperation(component, operation string, success bool, durationSeconds float64, labels map[string]string)
	RecordAPIOperation(api, operation string, success bool, durationSeconds float64)
	RecordDatabaseOperation(operation string, success bool, durationSeconds float64)
	StartTimer(name string, labels map[string]string) func()
	IncrementCounter(name string, value float64)
	IncrementCounterWithLabels(name string, value float64, labels map[string]string)
	RecordDuration(name string, duration time.Duration)
	Close() error
}

// PrometheusMetricsClient backs MetricsClient with lazily-registered
// Prometheus collectors, scoped under a namespace/subsystem pair.
type PrometheusMetricsClient struct {
	namespace  string
	subsystem  string
	mu         sync.RWMutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPrometheusMetricsClient creates a client and registers a small set of
// Fortitude-specific default collectors (cache, provider, validation, search).
func NewPrometheusMetricsClient(namespace, subsystem string) *PrometheusMetricsClient {
	c := &PrometheusMetricsClient{
		namespace:  namespace,
		subsystem:  subsystem,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	c.registerDefaultMetrics()
	return c
}

func (c *PrometheusMetricsClient) registerDefaultMetrics() {
	c.getOrCreateCounter("cache_operations_total", []string{"operation", "result"})
	c.getOrCreateCounter("provider_requests_total", []string{"provider", "result"})
	c.getOrCreateHistogram("provider_latency_seconds", []string{"provider"})
	c.getOrCreateCounter("validation_sessions_total", []string{"strategy", "consensus"})
	c.getOrCreateCounter("search_queries_total", []string{"strategy"})
	c.getOrCreateGauge("provider_health_state", []string{"provider"})
}

// RecordEvent logs a structured event as an incremented counter labeled by source.
func (c *PrometheusMetricsClient) RecordEvent(source, eventType string) {
	labels := map[string]string{"source": source, "event": eventType}
	c.RecordCounter("events_total", 1, labels)
}

// RecordLatency records an operation's duration in seconds.
func (c *PrometheusMetricsClient) RecordLatency(operation string, duration time.Duration) {
	c.RecordHistogram("operation_latency_seconds", duration.Seconds(), map[string]string{"operation": operation})
}

func (c *PrometheusMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {
	names, values := splitLabels(labels)
	counter := c.getOrCreateCounter(name, names)
	counter.WithLabelValues(values...).Add(value)
}

func (c *PrometheusMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	names, values := splitLabels(labels)
	gauge := c.getOrCreateGauge(name, names)
	gauge.WithLabelValues(values...).Set(value)
}

func (c *PrometheusMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {
	names, values := splitLabels(labels)
	hist := c.getOrCreateHistogram(name, names)
	hist.WithLabelValues(values...).Observe(value)
}

func (c *PrometheusMetricsClient) RecordTimer(name string, duration time.Duration, labels map[string]string) {
	c.RecordHistogram(name, duration.Seconds(), labels)
}

func (c *PrometheusMetricsClient) RecordCacheOperation(operation string, success bool, durationSeconds float64) {
	result := "miss"
	if success {
		result = "hit"
	}
	c.RecordCounter("cache_operations_total", 1, map[string]string{"operation": operation, "result": result})
	c.RecordHistogram("cache_operation_duration_seconds", durationSeconds, map[string]string{"operation": operation})
}

func (c *PrometheusMetricsClient) RecordOperation(component, operation string, success bool, durationSeconds float64, labels map[string]string) {
	merged := map[string]string{"component": component, "operation": operation, "result": resultLabel(success)}
	for k, v := range labels {
		merged[k] = v
	}
	c.RecordCounter("component_operations_total", 1, merged)
	c.RecordHistogram("component_operation_duration_seconds", durationSeconds, map[string]string{"component": component, "operation": operation})
}

func (c *PrometheusMetricsClient) RecordAPIOperation(api, operation string, success bool, durationSeconds float64) {
	c.RecordCounter("provider_requests_total", 1, map[string]string{"provider": api, "result": resultLabel(success)})
	c.RecordHistogram("provider_latency_seconds", durationSeconds, map[string]string{"provider": api})
	_ = operation
}

func (c *PrometheusMetricsClient) RecordDatabaseOperation(operation string, success bool, durationSeconds float64) {
	c.RecordCounter("database_operations_total", 1, map[string]string{"operation": operation, "result": resultLabel(success)})
	c.RecordHistogram("database_operation_duration_seconds", durationSeconds, map[string]string{"operation": operation})
}

func (c *PrometheusMetricsClient) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		c.RecordTimer(name, time.Since(start), labels)
	}
}

func (c *PrometheusMetricsClient) IncrementCounter(name string, value float64) {
	c.RecordCounter(name, value, nil)
}

func (c *PrometheusMetricsClient) IncrementCounterWithLabels(name string, value float64, labels map[string]string) {
	c.RecordCounter(name, value, labels)
}

func (c *PrometheusMetricsClient) RecordDuration(name string, duration time.Duration) {
	c.RecordHistogram(name, duration.Seconds(), nil)
}

// Close releases resources held by the client. Prometheus collectors don't
// need explicit teardown, so this is a no-op kept for interface symmetry.
func (c *PrometheusMetricsClient) Close() error { return nil }

func (c *PrometheusMetricsClient) getOrCreateCounter(name string, labelNames []string) *prometheus.CounterVec {
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return counter
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok = c.counters[name]; ok {
		return counter
	}
	counter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Subsystem: c.subsystem,
		Name:      name,
		Help:      fmt.Sprintf("%s counter", name),
	}, labelNames)
	c.counters[name] = counter
	return counter
}

func (c *PrometheusMetricsClient) getOrCreateGauge(name string, labelNames []string) *prometheus.GaugeVec {
	c.mu.RLock()
	gauge, ok := c.gauges[name]
	c.mu.RUnlock()
	if ok {
		return gauge
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gauge, ok = c.gauges[name]; ok {
		return gauge
	}
	gauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Subsystem: c.subsystem,
		Name:      name,
		Help:      fmt.Sprintf("%s gauge", name),
	}, labelNames)
	c.gauges[name] = gauge
	return gauge
}

func (c *PrometheusMetricsClient) getOrCreateHistogram(name string, labelNames []string) *prometheus.HistogramVec {
	c.mu.RLock()
	hist, ok := c.histograms[name]
	c.mu.RUnlock()
	if ok {
		return hist
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if hist, ok = c.histograms[name]; ok {
		return hist
	}
	hist = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Subsystem: c.subsystem,
		Name:      name,
		Help:      fmt.Sprintf("%s histogram", name),
		Buckets:   prometheus.DefBuckets,
	}, labelNames)
	c.histograms[name] = hist
	return hist
}

func splitLabels(labels map[string]string) ([]string, []string) {
	names := make([]string, 0, len(labels))
	values := make([]string, 0, len(labels))
	for k, v := range labels {
		names = append(names, k)
		values = append(values, v)
	}
	return names, values
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// NoopMetricsClient discards every measurement; used in tests and by
// callers that don't wire a Prometheus registry.
type NoopMetricsClient struct{}

// NewNoopMetricsClient returns a MetricsClient that does nothing.
func NewNoopMetricsClient() MetricsClient { return &NoopMetricsClient{} }

func (n *NoopMetricsClient) RecordEvent(string, string)                               {}
func (n *NoopMetricsClient) RecordLatency(string, time.Duration)                       {}
func (n *NoopMetricsClient) RecordCounter(string, float64, map[string]string)          {}
func (n *NoopMetricsClient) RecordGauge(string, float64, map[string]string)            {}
func (n *NoopMetricsClient) RecordHistogram(string, float64, map[string]string)        {}
func (n *NoopMetricsClient) RecordTimer(string, time.Duration, map[string]string)      {}
func (n *NoopMetricsClient) RecordCacheOperation(string, bool, float64)                {}
func (n *NoopMetricsClient) RecordOperation(string, string, bool, float64, map[string]string) {
}
func (n *NoopMetricsClient) RecordAPIOperation(string, string, bool, float64)     {}
func (n *NoopMetricsClient) RecordDatabaseOperation(string, bool, float64)        {}
func (n *NoopMetricsClient) StartTimer(string, map[string]string) func()         { return func() {} }
func (n *NoopMetricsClient) IncrementCounter(string, float64)                    {}
func (n *NoopMetricsClient) IncrementCounterWithLabels(string, float64, map[string]string) {
}
func (n *NoopMetricsClient) RecordDuration(string, time.Duration) {}
func (n *NoopMetricsClient) Close() error                         { return nil }
