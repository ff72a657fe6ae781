package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "loadprofile_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	summaryRunTotal   *prometheus.CounterVec
	summaryRunLatency *prometheus.HistogramVec

	batchDecisions *prometheus.CounterVec
	droppedRows    prometheus.Counter
	skippedCells   prometheus.Counter

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec
)

// Init registers summary metrics. When db is set, gauges over stored runs are added.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		summaryRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "summary_runs_total",
				Help: "Total summary runs by result",
			},
			[]string{"result"},
		)
		summaryRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "summary_run_latency_seconds",
				Help:    "Summary run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)
		batchDecisions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "batch_decisions_total",
				Help: "Batch revision decisions by outcome",
			},
			[]string{"outcome"},
		)
		droppedRows = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "dropped_rows_total",
				Help: "Rows dropped because their date could not be parsed",
			},
		)
		skippedCells = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "skipped_cells_total",
				Help: "Usage cells skipped because their value could not be parsed",
			},
		)
		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			summaryRunTotal,
			summaryRunLatency,
			batchDecisions,
			droppedRows,
			skippedCells,
			exportTotal,
			exportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveSummaryRun records run duration and result.
func ObserveSummaryRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if summaryRunTotal != nil {
		summaryRunTotal.WithLabelValues(result).Inc()
	}
	if summaryRunLatency != nil {
		summaryRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncBatchDecision counts one revision decision.
func IncBatchDecision(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	if batchDecisions != nil {
		batchDecisions.WithLabelValues(outcome).Inc()
	}
}

// AddDroppedRows adds to the dropped row counter.
func AddDroppedRows(count int) {
	if count <= 0 {
		return
	}
	if droppedRows != nil {
		droppedRows.Add(float64(count))
	}
}

// AddSkippedCells adds to the skipped cell counter.
func AddSkippedCells(count int) {
	if count <= 0 {
		return
	}
	if skippedCells != nil {
		skippedCells.Add(float64(count))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
