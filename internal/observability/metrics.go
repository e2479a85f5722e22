// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Queue metrics
	BatchesDispatched *prometheus.CounterVec
	SymbolsDispatched *prometheus.CounterVec
	QueuePending      *prometheus.GaugeVec
	QueueDispatched   *prometheus.GaugeVec
	ReseedsTotal      *prometheus.CounterVec
	UniverseSize      prometheus.Gauge

	// Gap metrics
	GapsDetected    *prometheus.CounterVec
	GapsSuppressed  prometheus.Counter
	GapOutcomes     *prometheus.CounterVec
	RowsInserted    *prometheus.CounterVec
	FetchAttempts   *prometheus.CounterVec
	QuoteLatency    *prometheus.HistogramVec
	SymbolDuration  *prometheus.HistogramVec
	CooldownActive  prometheus.Gauge
	CooldownEntries prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulReseed prometheus.Gauge
	LastSuccessfulBatch  prometheus.Gauge
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "stock_backfill"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BatchesDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "batches_dispatched_total",
			Help:      "Total number of batches handed to workers by category",
		}, []string{"category"}),
		SymbolsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "symbols_dispatched_total",
			Help:      "Total number of symbols handed to workers by category",
		}, []string{"category"}),
		QueuePending: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "pending",
			Help:      "Symbols waiting to be dispatched by category",
		}, []string{"category"}),
		QueueDispatched: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "dispatched",
			Help:      "Symbols dispatched since the last refresh by category",
		}, []string{"category"}),
		ReseedsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "reseeds_total",
			Help:      "Total number of universe reseeds by status",
		}, []string{"status"}),
		UniverseSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "universe_size",
			Help:      "Number of symbols in the last refresh",
		}),

		GapsDetected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gaps",
			Name:      "detected_total",
			Help:      "Total number of gaps detected by band",
		}, []string{"band"}),
		GapsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gaps",
			Name:      "suppressed_total",
			Help:      "Total number of gaps suppressed by the blacklist",
		}),
		GapOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "gap_outcomes_total",
			Help:      "Total number of processed gaps by final state",
		}, []string{"state"}),
		RowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "rows_inserted_total",
			Help:      "Total number of bars inserted by band",
		}, []string{"band"}),
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "fetch_attempts_total",
			Help:      "Total number of quote fetch attempts by result",
		}, []string{"result"}),
		QuoteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "fetch_latency_seconds",
			Help:      "Quote source fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source", "band"}),
		SymbolDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "symbol_duration_seconds",
			Help:      "Time spent processing one symbol",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"operation"}),
		CooldownActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "cooldown_active",
			Help:      "1 while the worker is in rate-limit cooldown",
		}),
		CooldownEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "cooldown_entries_total",
			Help:      "Total number of times the worker entered cooldown",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		LastSuccessfulReseed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_reseed_timestamp",
			Help:      "Unix timestamp of last successful reseed",
		}),
		LastSuccessfulBatch: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_batch_timestamp",
			Help:      "Unix timestamp of last processed worker batch",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBatch records a batch handed to a worker.
func RecordBatch(category string, size int) {
	DefaultMetrics.BatchesDispatched.WithLabelValues(category).Inc()
	DefaultMetrics.SymbolsDispatched.WithLabelValues(category).Add(float64(size))
}

// UpdateQueueSizes updates the queue gauges for one category.
func UpdateQueueSizes(category string, pending, dispatched int) {
	DefaultMetrics.QueuePending.WithLabelValues(category).Set(float64(pending))
	DefaultMetrics.QueueDispatched.WithLabelValues(category).Set(float64(dispatched))
}

// RecordReseed records a universe reseed.
func RecordReseed(status string, size int, unixSeconds int64) {
	DefaultMetrics.ReseedsTotal.WithLabelValues(status).Inc()
	if status == "success" {
		DefaultMetrics.UniverseSize.Set(float64(size))
		DefaultMetrics.LastSuccessfulReseed.Set(float64(unixSeconds))
	}
}

// RecordGapsDetected records detected gaps for one band.
func RecordGapsDetected(band string, n int) {
	DefaultMetrics.GapsDetected.WithLabelValues(band).Add(float64(n))
}

// RecordGapsSuppressed records gaps removed by the blacklist.
func RecordGapsSuppressed(n int) {
	DefaultMetrics.GapsSuppressed.Add(float64(n))
}

// RecordGapOutcome records the final state of one gap.
func RecordGapOutcome(state string) {
	DefaultMetrics.GapOutcomes.WithLabelValues(state).Inc()
}

// RecordRowsInserted records inserted bars for one band.
func RecordRowsInserted(band string, n int) {
	DefaultMetrics.RowsInserted.WithLabelValues(band).Add(float64(n))
}

// RecordFetchAttempt records one quote fetch attempt. result is ok, empty or error.
func RecordFetchAttempt(result string) {
	DefaultMetrics.FetchAttempts.WithLabelValues(result).Inc()
}

// RecordQuoteLatency records quote source latency.
func RecordQuoteLatency(source, band string, seconds float64) {
	DefaultMetrics.QuoteLatency.WithLabelValues(source, band).Observe(seconds)
}

// RecordSymbolDuration records time spent on one symbol.
func RecordSymbolDuration(operation string, seconds float64) {
	DefaultMetrics.SymbolDuration.WithLabelValues(operation).Observe(seconds)
}

// SetCooldown updates the cooldown gauge.
func SetCooldown(active bool) {
	if active {
		DefaultMetrics.CooldownActive.Set(1)
		DefaultMetrics.CooldownEntries.Inc()
		return
	}
	DefaultMetrics.CooldownActive.Set(0)
}

// RecordBatchProcessed marks the time of the last processed worker batch.
func RecordBatchProcessed(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulBatch.Set(float64(unixSeconds))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
