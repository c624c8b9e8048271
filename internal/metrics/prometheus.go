package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder with client_golang collectors.
type PrometheusRecorder struct {
	ledgerOps     *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	scheduleRuns  *prometheus.CounterVec
	scheduleItems *prometheus.CounterVec
	scheduleTime  prometheus.Histogram
	importRows    *prometheus.CounterVec
	reportPublish *prometheus.CounterVec
	breakerState  *prometheus.GaugeVec
}

func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	return &PrometheusRecorder{
		ledgerOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_operations_total",
				Help:      "Transaction engine operations by kind and outcome",
			},
			[]string{"op", "outcome"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_conflict_retries_total",
				Help:      "Atomic units retried after an account version conflict",
			},
			[]string{"op"},
		),
		scheduleRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expander_runs_total",
				Help:      "Scheduled transaction expander runs",
			},
			[]string{"outcome"},
		),
		scheduleItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expander_schedules_total",
				Help:      "Schedules handled by the expander by outcome",
			},
			[]string{"outcome"},
		),
		scheduleTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "expander_run_duration_seconds",
				Help:      "Duration of one expander run",
				Buckets:   prometheus.DefBuckets,
			},
		),
		importRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_rows_total",
				Help:      "Imported CSV rows by outcome",
			},
			[]string{"outcome"},
		),
		reportPublish: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_reports_published_total",
				Help:      "Import reports sent to the report sink by outcome",
			},
			[]string{"outcome"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
	}
}

// Register registers all collectors with the given registry.
func (p *PrometheusRecorder) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.ledgerOps,
		p.conflicts,
		p.scheduleRuns,
		p.scheduleItems,
		p.scheduleTime,
		p.importRows,
		p.reportPublish,
		p.breakerState,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (p *PrometheusRecorder) RecordLedgerOp(op, outcome string) {
	p.ledgerOps.WithLabelValues(op, outcome).Inc()
}

func (p *PrometheusRecorder) RecordConflictRetry(op string) {
	p.conflicts.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) RecordScheduleRun(materialized, skipped, failed int, duration time.Duration) {
	outcome := OutcomeOK
	if failed > 0 {
		outcome = OutcomeError
	}
	p.scheduleRuns.WithLabelValues(outcome).Inc()
	p.scheduleItems.WithLabelValues(OutcomeOK).Add(float64(materialized))
	p.scheduleItems.WithLabelValues(OutcomeSkipped).Add(float64(skipped))
	p.scheduleItems.WithLabelValues(OutcomeError).Add(float64(failed))
	p.scheduleTime.Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordImportRow(outcome string) {
	p.importRows.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) RecordReportPublish(outcome string) {
	p.reportPublish.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) RecordBreakerState(name string, state BreakerState) {
	p.breakerState.WithLabelValues(name).Set(float64(state))
}
