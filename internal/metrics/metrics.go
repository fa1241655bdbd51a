package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seedvalidator"

// Registry holds the collectors exposed on /metrics.
type Registry struct {
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ForecastRuns        *prometheus.CounterVec
	ForecastDuration    *prometheus.HistogramVec
	ForecastFitMAPE     *prometheus.GaugeVec
	AnomaliesDetected   *prometheus.CounterVec
	CacheRequests       *prometheus.CounterVec
	ObservationsIngest  *prometheus.CounterVec
}

// NewRegistry builds an unregistered set of collectors.
func NewRegistry() *Registry {
	return &Registry{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ForecastRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "runs_total",
			Help:      "Forecast runs by operation and outcome.",
		}, []string{"operation", "outcome"}),
		ForecastDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "duration_seconds",
			Help:      "Time spent computing forecasts.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"operation"}),
		ForecastFitMAPE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "fit_mape_percent",
			Help:      "In-sample MAPE of the latest forecast per metric.",
		}, []string{"metric"}),
		AnomaliesDetected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "forecast",
			Name:      "anomalies_detected_total",
			Help:      "Anomalies flagged by direction.",
		}, []string{"direction"}),
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Forecast cache lookups by result.",
		}, []string{"result"}),
		ObservationsIngest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "observations_ingested_total",
			Help:      "Observations written to the store by metric.",
		}, []string{"metric"}),
	}
}

func (r *Registry) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		r.HTTPRequests,
		r.HTTPRequestDuration,
		r.ForecastRuns,
		r.ForecastDuration,
		r.ForecastFitMAPE,
		r.AnomaliesDetected,
		r.CacheRequests,
		r.ObservationsIngest,
	}
}

// Register adds every collector to reg. Collectors that are already
// registered are tolerated.
func (r *Registry) Register(reg prometheus.Registerer) error {
	for _, c := range r.collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, registered with the default
// prometheus registerer on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
		_ = defaultRegistry.Register(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// ObserveForecast records one engine run.
func (r *Registry) ObserveForecast(operation string, seconds float64, err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.ForecastRuns.WithLabelValues(operation, outcome).Inc()
	r.ForecastDuration.WithLabelValues(operation).Observe(seconds)
}

// CacheResult records a cache hit or miss.
func (r *Registry) CacheResult(hit bool) {
	if r == nil {
		return
	}
	if hit {
		r.CacheRequests.WithLabelValues("hit").Inc()
		return
	}
	r.CacheRequests.WithLabelValues("miss").Inc()
}
