package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "lunchbot_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ordersPlaced    prometheus.Counter
	ordersCancelled *prometheus.CounterVec
	depositsTotal   prometheus.Counter

	settlementRuns    *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec

	notificationFailures *prometheus.CounterVec

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec

	botCommands *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ordersPlaced = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "orders_placed_total",
				Help: "Total orders placed",
			},
		)
		ordersCancelled = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "orders_cancelled_total",
				Help: "Total orders cancelled by actor",
			},
			[]string{"actor"},
		)
		depositsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "deposits_total",
				Help: "Total balance deposits recorded",
			},
		)

		settlementRuns = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "settlement_runs_total",
				Help: "Total settlement runs by outcome",
			},
			[]string{"outcome"},
		)
		settlementLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "settlement_latency_seconds",
				Help:    "Settlement run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		notificationFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notification_failures_total",
				Help: "Total failed notification deliveries by kind",
			},
			[]string{"kind"},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total report export operations by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		botCommands = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bot_commands_total",
				Help: "Total bot commands handled by kind",
			},
			[]string{"kind"},
		)

		prometheus.MustRegister(
			ordersPlaced,
			ordersCancelled,
			depositsTotal,
			settlementRuns,
			settlementLatency,
			notificationFailures,
			reportExportTotal,
			reportExportLatency,
			botCommands,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// IncOrderPlaced increments the placed order counter.
func IncOrderPlaced() {
	if ordersPlaced != nil {
		ordersPlaced.Inc()
	}
}

// ObserveOrderCancelled increments the cancellation counter for an actor
// ("user" or "system").
func ObserveOrderCancelled(actor string) {
	if actor == "" {
		actor = "unknown"
	}
	if ordersCancelled != nil {
		ordersCancelled.WithLabelValues(actor).Inc()
	}
}

// IncDeposit increments the deposit counter.
func IncDeposit() {
	if depositsTotal != nil {
		depositsTotal.Inc()
	}
}

// ObserveSettlement records one settlement run by outcome.
func ObserveSettlement(outcome string, seconds float64) {
	if outcome == "" {
		outcome = "unknown"
	}
	if settlementRuns != nil {
		settlementRuns.WithLabelValues(outcome).Inc()
	}
	if settlementLatency != nil {
		settlementLatency.WithLabelValues(outcome).Observe(seconds)
	}
}

// ObserveNotificationFailure increments the failed delivery counter.
func ObserveNotificationFailure(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if notificationFailures != nil {
		notificationFailures.WithLabelValues(kind).Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncBotCommand increments the handled command counter.
func IncBotCommand(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if botCommands != nil {
		botCommands.WithLabelValues(kind).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
