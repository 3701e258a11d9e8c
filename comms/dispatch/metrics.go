package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics records dispatch outcomes. A nil *Metrics is a no-op, so tests and
// callers that don't scrape can pass nothing.
type Metrics struct {
	SentCount              *prometheus.CounterVec
	ValidationFailureCount *prometheus.CounterVec
	DispatchDuration       *prometheus.HistogramVec
}

const (
	ns        = "commsd"
	subsystem = "dispatch"
)

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		SentCount: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "sent_total", Help: "Notifications handed to the notifier, by channel and result.",
		}, []string{"channel", "result"}),
		ValidationFailureCount: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "validation_failures_total", Help: "Sends aborted by schema validation, by definition.",
		}, []string{"definition"}),
		DispatchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: subsystem,
			Name: "duration_seconds", Help: "Fan-out duration per send, by definition.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"definition"}),
	}
}

func (m *Metrics) recordSend(channel, result string) {
	if m == nil {
		return
	}
	m.SentCount.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) recordValidationFailure(definition string) {
	if m == nil {
		return
	}
	m.ValidationFailureCount.WithLabelValues(definition).Inc()
}

func (m *Metrics) recordDispatchDuration(definition string, d time.Duration) {
	if m == nil {
		return
	}
	m.DispatchDuration.WithLabelValues(definition).Observe(d.Seconds())
}
