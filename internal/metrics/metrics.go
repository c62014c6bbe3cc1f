// Package metrics declares the scanner's Prometheus collectors. They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VenueQuotes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscanner_venue_quotes_total",
		Help: "Quotes resolved per venue, by tier (live, cached, sample, unavailable)",
	}, []string{"venue", "tier"})

	AggregateDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbscanner_aggregate_duration_seconds",
		Help:    "Time to build one snapshot",
		Buckets: prometheus.DefBuckets,
	}, []string{"crypto"})

	Opportunities = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arbscanner_opportunities",
		Help: "Opportunities found on the last tick",
	}, []string{"crypto"})

	AlertsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscanner_alerts_sent_total",
		Help: "Alerts delivered per channel",
	}, []string{"channel"})

	AlertsSuppressed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arbscanner_alerts_suppressed_total",
		Help: "Alerts skipped because the same rule and venue pair fired within the cooldown",
	})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arbscanner_tick_duration_seconds",
		Help:    "Wall time of one scheduler tick",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16, 32},
	})

	TickFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscanner_tick_failures_total",
		Help: "Per-crypto scan failures",
	}, []string{"crypto"})

	CacheFailover = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arbscanner_cache_failover_total",
		Help: "Cache operations served by the secondary store",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(
		VenueQuotes,
		AggregateDuration,
		Opportunities,
		AlertsSent,
		AlertsSuppressed,
		TickDuration,
		TickFailures,
		CacheFailover,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
