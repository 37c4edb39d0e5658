package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Mutation results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// CartMetrics records mutation outcomes and persistence timings for cart stores.
type CartMetrics struct {
	mutations       *prometheus.CounterVec
	persistDuration *prometheus.HistogramVec
	persistFailures *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer. A nil registerer
// yields a recorder whose methods are no-ops.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation and result.",
	}, []string{"op", "result"})
	persistDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_persist_duration_seconds",
		Help:    "Duration of cart snapshot writes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})
	persistFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Failed cart snapshot writes.",
	}, []string{"backend"})
	reg.MustRegister(mutations, persistDuration, persistFailures)
	return &CartMetrics{
		mutations:       mutations,
		persistDuration: persistDuration,
		persistFailures: persistFailures,
	}
}

// IncMutation counts one mutation attempt for op.
func (c *CartMetrics) IncMutation(op string, err error) {
	if c == nil || c.mutations == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	c.mutations.WithLabelValues(normalizeLabel(op), result).Inc()
}

// ObservePersist records how long a snapshot write took on backend.
func (c *CartMetrics) ObservePersist(backend string, duration time.Duration) {
	if c == nil || c.persistDuration == nil {
		return
	}
	c.persistDuration.WithLabelValues(normalizeLabel(backend)).Observe(duration.Seconds())
}

// IncPersistFailure increments the failure counter for backend.
func (c *CartMetrics) IncPersistFailure(backend string) {
	if c == nil || c.persistFailures == nil {
		return
	}
	c.persistFailures.WithLabelValues(normalizeLabel(backend)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
