package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusRecorder(t *testing.T) {
	r := NewPrometheusRecorder("pecuny")
	reg := prometheus.NewRegistry()
	if err := r.Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	r.RecordLedgerOp("create", OutcomeOK)
	r.RecordLedgerOp("create", OutcomeOK)
	r.RecordLedgerOp("delete", OutcomeError)
	r.RecordConflictRetry("update")
	r.RecordScheduleRun(3, 1, 1, 20*time.Millisecond)
	r.RecordImportRow(OutcomeError)
	r.RecordBreakerState("import-reports", BreakerOpen)

	if got := testutil.ToFloat64(r.ledgerOps.WithLabelValues("create", OutcomeOK)); got != 2 {
		t.Errorf("ledger create ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.conflicts.WithLabelValues("update")); got != 1 {
		t.Errorf("conflict retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.scheduleItems.WithLabelValues(OutcomeOK)); got != 3 {
		t.Errorf("materialized = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.scheduleRuns.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("failed runs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.breakerState.WithLabelValues("import-reports")); got != float64(BreakerOpen) {
		t.Errorf("breaker state = %v, want %v", got, float64(BreakerOpen))
	}

	if err := r.Register(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
