package install

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/albertocavalcante/go-depot/report"
)

// Install outcomes used as the result label of depot_install_total.
const (
	resultSuccess = "success"
	resultFailure = "failure"
)

type metrics struct {
	installs  *prometheus.CounterVec
	published prometheus.Counter
	failed    prometheus.Counter
	duration  prometheus.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		installs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "depot_install_total",
				Help: "Number of installs by result.",
			},
			[]string{"result"},
		),
		published: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "depot_install_nodes_published_total",
				Help: "Total number of modules published by installs.",
			},
		),
		failed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "depot_install_nodes_failed_total",
				Help: "Total number of modules that failed to resolve or publish during installs.",
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depot_install_duration_seconds",
				Help:    "Time taken by an install.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.installs, m.published, m.failed, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// observe records one finished install. r may be nil.
func (m *metrics) observe(r *report.Report, err error, seconds float64) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	m.installs.WithLabelValues(result).Inc()
	m.duration.Observe(seconds)
	if r == nil {
		return
	}
	m.failed.Add(float64(len(r.FailedNodes()) + len(r.PublishFailures())))
	m.published.Add(float64(len(r.Published) - len(r.PublishFailures())))
}
