// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcomes.
const (
	OutcomeSeen      = "seen"
	OutcomeProcessed = "processed"
	OutcomeDropped   = "dropped"
	OutcomeTracked   = "tracked" // window-only update of a held mint
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion
	EventsTotal        *prometheus.CounterVec
	LastEventTimestamp prometheus.Gauge

	// Filter
	FilterRejections *prometheus.CounterVec

	// Trading
	TradesTotal      *prometheus.CounterVec
	OpenPositions    prometheus.Gauge
	RealizedPnLSOL   prometheus.Gauge
	SolPriceUSD      prometheus.Gauge
	PriorityFee      prometheus.Gauge
	ConfirmLatency   *prometheus.HistogramVec
	SnapshotFailures *prometheus.CounterVec

	// Latency
	RPCCallLatency *prometheus.HistogramVec

	// Database
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "pumpfun_engine"
	}

	return &Metrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_total",
			Help:      "Program buy events by outcome",
		}, []string{"outcome"}),
		LastEventTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last processed buy event",
		}),

		FilterRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "signal",
			Name:      "filter_rejections_total",
			Help:      "Entry candidates rejected, by check",
		}, []string{"check"}),

		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_total",
			Help:      "Submitted trades by side and result",
		}, []string{"side", "result"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Open positions including pending reservations",
		}),
		RealizedPnLSOL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "realized_pnl_sol",
			Help:      "Cumulative realized P/L in SOL",
		}),
		SolPriceUSD: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "sol_price_usd",
			Help:      "Last SOL/USD price",
		}),
		PriorityFee: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "priority_fee_microlamports",
			Help:      "Last estimated compute unit price",
		}),
		ConfirmLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "confirm_latency_seconds",
			Help:      "Send to confirmation latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"side"}),
		SnapshotFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "snapshot_failures_total",
			Help:      "Failed snapshot writes by sink",
		}, []string{"sink"}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEvent counts a buy event outcome.
func RecordEvent(outcome string) {
	DefaultMetrics.EventsTotal.WithLabelValues(outcome).Inc()
	if outcome == OutcomeProcessed {
		DefaultMetrics.LastEventTimestamp.Set(float64(time.Now().Unix()))
	}
}

// RecordRejection counts a filter rejection.
func RecordRejection(check string) {
	DefaultMetrics.FilterRejections.WithLabelValues(check).Inc()
}

// RecordTrade counts a trade attempt result.
func RecordTrade(side, result string) {
	DefaultMetrics.TradesTotal.WithLabelValues(side, result).Inc()
}

// RecordConfirm records send-to-confirm latency.
func RecordConfirm(side string, d time.Duration) {
	DefaultMetrics.ConfirmLatency.WithLabelValues(side).Observe(d.Seconds())
}

// SetOpenPositions updates the open positions gauge.
func SetOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// SetRealizedPnL updates the realized P/L gauge.
func SetRealizedPnL(sol float64) {
	DefaultMetrics.RealizedPnLSOL.Set(sol)
}

// SetSolPrice updates the SOL/USD gauge.
func SetSolPrice(usd float64) {
	DefaultMetrics.SolPriceUSD.Set(usd)
}

// SetPriorityFee updates the priority fee gauge.
func SetPriorityFee(microLamports uint64) {
	DefaultMetrics.PriorityFee.Set(float64(microLamports))
}

// RecordSnapshotFailure counts a failed snapshot write.
func RecordSnapshotFailure(sink string) {
	DefaultMetrics.SnapshotFailures.WithLabelValues(sink).Inc()
}

// RecordRPCLatency records RPC call latency. Its signature matches
// solana.CallObserver.
func RecordRPCLatency(method string, elapsed time.Duration, _ error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
