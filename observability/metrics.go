package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RPCMetrics records JSON-RPC activity per method.
type RPCMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// RPC returns the lazily-initialised RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketd",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Count of JSON-RPC requests by method.",
			}, []string{"method"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "marketd",
				Subsystem: "rpc",
				Name:      "request_seconds",
				Help:      "JSON-RPC request handling latency by method.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.latency)
	})
	return rpcRegistry
}

// Observe records one handled request.
func (m *RPCMetrics) Observe(method string, elapsed time.Duration) {
	if m == nil {
		return
	}
	method = strings.TrimSpace(method)
	if method == "" {
		method = "unknown"
	}
	m.requests.WithLabelValues(method).Inc()
	m.latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// EngineMetrics tracks settlement-engine events by type.
type EngineMetrics struct {
	events *prometheus.CounterVec
}

var (
	engineMetricsOnce sync.Once
	engineRegistry    *EngineMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineMetricsOnce.Do(func() {
		engineRegistry = &EngineMetrics{
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "marketd",
				Subsystem: "engine",
				Name:      "events_total",
				Help:      "Count of engine events by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(engineRegistry.events)
	})
	return engineRegistry
}

// RecordEvent increments the counter for one emitted event type.
func (m *EngineMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}
