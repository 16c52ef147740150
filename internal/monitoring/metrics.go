package monitoring

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/platetemp/internal/plate"
)

// Result labels attached to estimate metrics.
const (
	ResultOK            = "ok"
	ResultCancelled     = "cancelled"
	ResultNonConvergent = "nonconvergent"
	ResultInvalid       = "invalid"
	ResultError         = "error"
)

// ResultLabel classifies an estimate error for metrics and logs.
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, plate.ErrCancelled):
		return ResultCancelled
	case errors.Is(err, plate.ErrNonConvergent):
		return ResultNonConvergent
	case errors.Is(err, plate.ErrInvalidDomain),
		errors.Is(err, plate.ErrInvalidQueryPoint),
		errors.Is(err, plate.ErrInvalidOptions):
		return ResultInvalid
	default:
		return ResultError
	}
}

// Metrics records estimator activity in its own Prometheus registry.
// It implements plate.Observer.
type Metrics struct {
	registry *prometheus.Registry

	estimates *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	steps     prometheus.Counter
	hits      *prometheus.CounterVec
	longest   prometheus.Histogram
}

var _ plate.Observer = (*Metrics)(nil)

// NewMetrics registers the estimator collectors, plus the Go runtime and
// process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		estimates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platetemp_estimates_total",
				Help: "Point estimates by result",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platetemp_estimate_duration_seconds",
				Help:    "Wall-clock time of point estimates",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"result"},
		),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "platetemp_walk_steps_total",
			Help: "Random-walk steps taken by successful estimates",
		}),
		hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platetemp_wall_hits_total",
				Help: "Walks absorbed by each wall",
			},
			[]string{"wall"},
		),
		longest: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "platetemp_longest_walk_steps",
			Help:    "Longest walk of each successful estimate",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
	m.registry.MustRegister(
		m.estimates, m.duration, m.steps, m.hits, m.longest,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveEstimate implements plate.Observer.
func (m *Metrics) ObserveEstimate(est plate.Estimate, err error, elapsed time.Duration) {
	result := ResultLabel(err)
	m.estimates.WithLabelValues(result).Inc()
	m.duration.WithLabelValues(result).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	m.steps.Add(float64(est.TotalSteps))
	m.longest.Observe(float64(est.LongestWalk))
	for w, n := range est.Hits {
		if n > 0 {
			m.hits.WithLabelValues(plate.Wall(w).String()).Add(float64(n))
		}
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
