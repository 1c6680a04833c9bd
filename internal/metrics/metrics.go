// Package metrics exports reconciliation counters for Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rcsync/internal/domain"
)

const namespace = "rcsync"

// Metrics holds the run and fetch metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RecordsChecked *prometheus.CounterVec
	RecordsCarried prometheus.Counter
	FetchFailures  prometheus.Counter
	FetchDuration  prometheus.Histogram
	LastRun        prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsChecked: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_checked_total",
			Help:      "Records fetched and classified, by resulting status",
		}, []string{"status"}),
		RecordsCarried: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_carried_total",
			Help:      "Records carried forward from the previous snapshot without a fetch",
		}),
		FetchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Status page fetches that failed",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time to fetch one status page",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run",
		}),
	}
}

// ObserveFetch is safe for concurrent use by the fetch workers.
func (m *Metrics) ObserveFetch(d time.Duration, err error) {
	m.FetchDuration.Observe(d.Seconds())
	if err != nil {
		m.FetchFailures.Inc()
	}
}

// ObserveRun records the outcome of one completed run.
func (m *Metrics) ObserveRun(fresh []domain.Classification, carried int, finished time.Time) {
	for _, c := range fresh {
		m.RecordsChecked.WithLabelValues(string(c.Status)).Inc()
	}
	m.RecordsCarried.Add(float64(carried))
	m.LastRun.Set(float64(finished.Unix()))
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
