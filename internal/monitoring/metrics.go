package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	fetchTotal        *prometheus.CounterVec
	fetchErrorsTotal  *prometheus.CounterVec
	cacheRefreshTotal *prometheus.CounterVec
	fillsTotal        *prometheus.CounterVec
	barsCached        *prometheus.GaugeVec
}

// NewMetrics creates new Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_fetch_total",
				Help: "Total number of market data fetches",
			},
			[]string{"symbol", "interval"},
		),
		fetchErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "market_fetch_errors_total",
				Help: "Total number of failed market data fetches",
			},
			[]string{"symbol", "interval"},
		),
		cacheRefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_refresh_total",
				Help: "Total number of detail cache invalidations",
			},
			[]string{"symbol"},
		),
		fillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simulated_fills_total",
				Help: "Total number of simulated fills",
			},
			[]string{"side"},
		),
		barsCached: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "bars_cached",
				Help: "Number of bars held in the base kline cache",
			},
			[]string{"interval"},
		),
	}
}

// Register registers all metrics with the given registry
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.fetchTotal,
		m.fetchErrorsTotal,
		m.cacheRefreshTotal,
		m.fillsTotal,
		m.barsCached,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordFetch records a market data fetch attempt
func (m *Metrics) RecordFetch(symbol, interval string) {
	m.fetchTotal.WithLabelValues(symbol, interval).Inc()
}

// RecordFetchError records a failed market data fetch
func (m *Metrics) RecordFetchError(symbol, interval string) {
	m.fetchErrorsTotal.WithLabelValues(symbol, interval).Inc()
}

// RecordCacheRefresh records a detail cache invalidation
func (m *Metrics) RecordCacheRefresh(symbol string) {
	m.cacheRefreshTotal.WithLabelValues(symbol).Inc()
}

// RecordFill records a simulated fill
func (m *Metrics) RecordFill(side string) {
	m.fillsTotal.WithLabelValues(side).Inc()
}

// SetBarsCached sets the cached bar count for an interval
func (m *Metrics) SetBarsCached(interval string, n int) {
	m.barsCached.WithLabelValues(interval).Set(float64(n))
}
