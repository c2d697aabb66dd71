package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pass outcomes recorded by Metrics.
const (
	OutcomeOK      = "ok"
	OutcomePartial = "partial"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the reconciliation collectors.
type Metrics struct {
	Passes       *prometheus.CounterVec
	Pushed       *prometheus.CounterVec
	PushFailures *prometheus.CounterVec
	PassDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_passes_total",
				Help: "Total number of reconciliation passes by outcome",
			},
			[]string{"outcome"}, // outcome: ok, partial, skipped, failed
		),
		Pushed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_pushed_tasks_total",
				Help: "Total number of tasks pushed to the remote store",
			},
			[]string{"kind"}, // kind: insert, update
		),
		PushFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tasksync_push_failures_total",
				Help: "Total number of failed bulk pushes",
			},
			[]string{"kind"},
		),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tasksync_pass_duration_seconds",
			Help:    "Reconciliation pass duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Passes, m.Pushed, m.PushFailures, m.PassDuration)
	}
	return m
}

func (m *Metrics) recordPass(res Result, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.Passes.WithLabelValues(res.outcome(err)).Inc()
	if res.Skipped == "" {
		m.PassDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) recordPush(kind string, n int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PushFailures.WithLabelValues(kind).Inc()
		return
	}
	m.Pushed.WithLabelValues(kind).Add(float64(n))
}
