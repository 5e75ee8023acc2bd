// Package metrics instruments JSON-RPC exchanges with Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess = "success"
)

// Metrics contains the client's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Requests     *prometheus.CounterVec
	Duration     *prometheus.HistogramVec
	InFlight     prometheus.Gauge
	Queued       prometheus.Gauge
	BatchSize    prometheus.Histogram
	CacheLookups *prometheus.CounterVec
}

// New initializes and registers the collectors with registry. A nil
// registry yields a nil *Metrics.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		return nil
	}
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitcoindrpc_requests_total",
				Help: "The total number of JSON-RPC exchanges by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		Duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bitcoindrpc_request_duration_seconds",
				Help:    "Duration of JSON-RPC exchanges",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bitcoindrpc_requests_in_flight",
			Help: "The current number of exchanges holding a concurrency slot",
		}),
		Queued: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bitcoindrpc_requests_queued",
			Help: "The current number of exchanges waiting for a concurrency slot",
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bitcoindrpc_batch_size",
			Help:    "Number of calls submitted per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bitcoindrpc_cache_lookups_total",
				Help: "Result cache lookups by method and result",
			},
			[]string{"method", "result"},
		),
	}
}

// ObserveRequest records one finished exchange
func (m *Metrics) ObserveRequest(method, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
	m.Duration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveBatch records the size of a submitted batch
func (m *Metrics) ObserveBatch(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

// ObserveCache records a cache hit or miss
func (m *Metrics) ObserveCache(method string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(method, result).Inc()
}

// SetQueued updates the number of waiting exchanges
func (m *Metrics) SetQueued(n int) {
	if m == nil {
		return
	}
	m.Queued.Set(float64(n))
}

// IncInFlight marks an exchange as admitted
func (m *Metrics) IncInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Inc()
}

// DecInFlight marks an exchange as finished
func (m *Metrics) DecInFlight() {
	if m == nil {
		return
	}
	m.InFlight.Dec()
}
