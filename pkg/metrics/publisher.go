package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics records outcomes for the outbox publisher loop.
type PublisherMetrics struct {
	duration  *prometheus.HistogramVec
	published prometheus.Counter
	failed    prometheus.Counter
}

// NewPublisherMetrics registers the publisher metrics on the provided registerer.
func NewPublisherMetrics(reg prometheus.Registerer) *PublisherMetrics {
	if reg == nil {
		return &PublisherMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Duration of outbox publish batches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
	published := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_published",
		Help: "Outbox events delivered to the broker.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_events_failed",
		Help: "Outbox events that failed to publish.",
	})
	reg.MustRegister(duration, published, failed)
	return &PublisherMetrics{
		duration:  duration,
		published: published,
		failed:    failed,
	}
}

// ObserveBatch records the duration of one publish batch.
func (p *PublisherMetrics) ObserveBatch(topic string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	if topic == "" {
		topic = "unknown"
	}
	p.duration.WithLabelValues(topic).Observe(duration.Seconds())
}

// AddPublished increments the delivered counter.
func (p *PublisherMetrics) AddPublished(n int) {
	if p == nil || p.published == nil {
		return
	}
	p.published.Add(float64(n))
}

// AddFailed increments the failure counter.
func (p *PublisherMetrics) AddFailed(n int) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.Add(float64(n))
}
