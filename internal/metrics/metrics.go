// Package metrics defines the ledger's instrumentation points. Components
// take a Recorder and default to NoOp so they stay usable without a
// registry.
package metrics

import "time"

// Outcome labels shared by every recorder.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeSkipped  = "skipped"
	OutcomeConflict = "conflict"
)

// Breaker states as exported by the circuit_state gauge.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

type Recorder interface {
	// RecordLedgerOp counts a transaction engine operation ("create",
	// "update", "delete") by outcome.
	RecordLedgerOp(op, outcome string)
	// RecordConflictRetry counts atomic units retried after losing a
	// compare-and-swap on an account version.
	RecordConflictRetry(op string)
	RecordScheduleRun(materialized, skipped, failed int, duration time.Duration)
	RecordImportRow(outcome string)
	RecordReportPublish(outcome string)
	RecordBreakerState(name string, state BreakerState)
}

// NoOp discards every measurement.
type NoOp struct{}

func (NoOp) RecordLedgerOp(string, string) {}
func (NoOp) RecordConflictRetry(string) {}
func (NoOp) RecordScheduleRun(int, int, int, time.Duration) {}
func (NoOp) RecordImportRow(string) {}
func (NoOp) RecordReportPublish(string) {}
func (NoOp) RecordBreakerState(string, BreakerState) {}
