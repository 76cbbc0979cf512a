// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	BatchesProcessed   prometheus.Counter
	TickersReceived    prometheus.Counter
	TickersEligible    prometheus.Gauge
	TickersRejected    *prometheus.CounterVec
	BatchLatency       prometheus.Histogram
	VolatilityRows     prometheus.Gauge
	MarketCapRows      prometheus.Gauge
	LastBatchTimestamp prometheus.Gauge

	// Feed metrics
	FeedConnected   prometheus.Gauge
	FeedDisconnects prometheus.Counter
	FeedErrors      prometheus.Counter

	// Publish metrics
	PublishErrors  *prometheus.CounterVec
	PublishLatency *prometheus.HistogramVec
	StreamClients  prometheus.Gauge

	// Supply metrics
	SupplyAssets      prometheus.Gauge
	SupplyRefreshes   *prometheus.CounterVec
	SupplyLastRefresh prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "volatility_radar"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Ingestion metrics
		BatchesProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batches_processed_total",
			Help:      "Total number of ticker batches processed",
		}),
		TickersReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tickers_received_total",
			Help:      "Total number of raw tickers received",
		}),
		TickersEligible: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tickers_eligible",
			Help:      "Number of eligible canonical records in the last batch",
		}),
		TickersRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "tickers_rejected_total",
			Help:      "Total number of eligible tickers rejected by offending field",
		}, []string{"field"}),
		BatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "batch_latency_seconds",
			Help:      "Time to compute both tables for one batch",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}),
		VolatilityRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "volatility_rows",
			Help:      "Rows in the last volatility table",
		}),
		MarketCapRows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "market_cap_rows",
			Help:      "Rows in the last market-cap table",
		}),
		LastBatchTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_batch_timestamp",
			Help:      "Unix timestamp of last processed batch",
		}),

		// Feed metrics
		FeedConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 while the feed connection is up",
		}),
		FeedDisconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "disconnects_total",
			Help:      "Total number of feed connection drops",
		}),
		FeedErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "errors_total",
			Help:      "Total number of undecodable messages and failed reconnects",
		}),

		// Publish metrics
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "errors_total",
			Help:      "Total number of failed snapshot publishes by sink",
		}, []string{"sink"}),
		PublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "latency_seconds",
			Help:      "Snapshot publish latency by sink",
			Buckets:   prometheus.DefBuckets,
		}, []string{"sink"}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "publish",
			Name:      "stream_clients",
			Help:      "Connected WebSocket stream clients",
		}),

		// Supply metrics
		SupplyAssets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supply",
			Name:      "assets",
			Help:      "Number of assets with a known circulating supply",
		}),
		SupplyRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supply",
			Name:      "refreshes_total",
			Help:      "Total number of supply cache refreshes by status",
		}, []string{"status"}),
		SupplyLastRefresh: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supply",
			Name:      "last_refresh_timestamp",
			Help:      "Unix timestamp of last successful supply refresh",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBatch records one processed batch.
func RecordBatch(size, eligible, volatilityRows, marketCapRows int, took time.Duration) {
	DefaultMetrics.BatchesProcessed.Inc()
	DefaultMetrics.TickersReceived.Add(float64(size))
	DefaultMetrics.TickersEligible.Set(float64(eligible))
	DefaultMetrics.VolatilityRows.Set(float64(volatilityRows))
	DefaultMetrics.MarketCapRows.Set(float64(marketCapRows))
	DefaultMetrics.BatchLatency.Observe(took.Seconds())
	DefaultMetrics.LastBatchTimestamp.SetToCurrentTime()
}

// RecordRejection records a rejected ticker. field is the feed code, "" if unknown.
func RecordRejection(field string) {
	if field == "" {
		field = "unknown"
	}
	DefaultMetrics.TickersRejected.WithLabelValues(field).Inc()
}

// SetFeedConnected updates the feed connection gauge.
func SetFeedConnected(up bool) {
	if up {
		DefaultMetrics.FeedConnected.Set(1)
		return
	}
	DefaultMetrics.FeedConnected.Set(0)
}

// RecordFeedDisconnect records a dropped feed connection.
func RecordFeedDisconnect() {
	DefaultMetrics.FeedDisconnects.Inc()
	DefaultMetrics.FeedConnected.Set(0)
}

// RecordFeedError records an undecodable message or failed reconnect.
func RecordFeedError() {
	DefaultMetrics.FeedErrors.Inc()
}

// RecordPublish records a publish attempt on one sink.
func RecordPublish(sink string, took time.Duration, err error) {
	DefaultMetrics.PublishLatency.WithLabelValues(sink).Observe(took.Seconds())
	if err != nil {
		DefaultMetrics.PublishErrors.WithLabelValues(sink).Inc()
	}
}

// SetStreamClients updates the stream client gauge.
func SetStreamClients(n int) {
	DefaultMetrics.StreamClients.Set(float64(n))
}

// RecordSupplyRefresh records a supply cache refresh.
func RecordSupplyRefresh(assets int, err error) {
	if err != nil {
		DefaultMetrics.SupplyRefreshes.WithLabelValues("error").Inc()
		return
	}
	DefaultMetrics.SupplyRefreshes.WithLabelValues("ok").Inc()
	DefaultMetrics.SupplyAssets.Set(float64(assets))
	DefaultMetrics.SupplyLastRefresh.SetToCurrentTime()
}
