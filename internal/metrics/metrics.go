package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the console's prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Submissions    *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	LiveObjectURLs prometheus.Gauge
	RateLimited    prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plate_console",
			Name:      "submissions_total",
			Help:      "Detection submissions by media kind and outcome.",
		}, []string{"kind", "outcome"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plate_console",
			Name:      "detection_duration_seconds",
			Help:      "Time spent waiting on the detection service.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"kind"}),
		LiveObjectURLs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "plate_console",
			Name:      "object_urls_live",
			Help:      "Object URLs currently held by upload handlers.",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: "plate_console",
			Name:      "rate_limited_total",
			Help:      "Submissions rejected by the rate limiter.",
		}),
	}
}

func (m *Metrics) ObserveSubmission(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, outcome).Inc()
	m.Duration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) ObjectURLAcquired() {
	if m == nil {
		return
	}
	m.LiveObjectURLs.Inc()
}

func (m *Metrics) ObjectURLReleased() {
	if m == nil {
		return
	}
	m.LiveObjectURLs.Dec()
}

func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}
