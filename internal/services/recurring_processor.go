package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/metrics"
	"pecuny/internal/storage"
)

// errNotDue aborts a materialization unit without writing anything.
var errNotDue = errors.New("schedule not due")

// RunSummary counts what one expander run did.
type RunSummary struct {
	Checked      int
	Materialized int
	Skipped      int
	Failed       int
}

// RecurringProcessor turns due schedules into ledger entries.
type RecurringProcessor struct {
	store        storage.Store
	transactions *TransactionService
	runner       unitRunner
	metrics      metrics.Recorder
}

func NewRecurringProcessor(store storage.Store, transactions *TransactionService, opts Options) *RecurringProcessor {
	opts = opts.withDefaults()
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
		runner:       newUnitRunner(store, opts),
		metrics:      opts.Metrics,
	}
}

// ProcessDueTransactions materializes every active schedule that is due on
// now's calendar day, in now's location. A schedule that already produced
// an entry that day is skipped, so runs can be repeated safely. A failing
// schedule is logged and does not stop the run.
func (p *RecurringProcessor) ProcessDueTransactions(ctx context.Context, now time.Time) (RunSummary, error) {
	if p.store == nil || p.transactions == nil {
		return RunSummary{}, fmt.Errorf("processor not properly initialized")
	}
	started := time.Now()

	var schedules []core.ScheduledTransaction
	err := p.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		schedules, err = tx.ListScheduled(ctx, storage.ScheduledFilter{ActiveOnly: true})
		return err
	})
	if err != nil {
		return RunSummary{}, fmt.Errorf("list active schedules: %w", err)
	}

	slog.InfoContext(ctx, "Processing scheduled transactions",
		log.FieldComponent, log.ComponentScheduler,
		"total_active", len(schedules),
		"processing_date", now.Format("2006-01-02"))

	var summary RunSummary
	for _, sc := range schedules {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Checked++

		if !sc.CoversDay(now) {
			summary.Skipped++
			continue
		}

		t, err := p.materialize(ctx, sc, now)
		switch {
		case errors.Is(err, errNotDue):
			summary.Skipped++
		case err != nil:
			summary.Failed++
			slog.ErrorContext(ctx, "Failed to materialize scheduled transaction",
				log.FieldComponent, log.ComponentScheduler,
				log.FieldScheduledID, sc.ID,
				log.FieldAccountID, sc.AccountID,
				log.FieldError, err)
		default:
			summary.Materialized++
			slog.InfoContext(ctx, "Created transaction from schedule",
				log.FieldComponent, log.ComponentScheduler,
				log.FieldScheduledID, sc.ID,
				log.FieldTransactionID, t.ID,
				log.FieldAmount, core.FormatAmount(t.Information.Amount),
				log.FieldFrequency, string(sc.Frequency))
		}
	}

	p.metrics.RecordScheduleRun(summary.Materialized, summary.Skipped, summary.Failed, time.Since(started))
	slog.InfoContext(ctx, "Scheduled transaction processing complete",
		log.FieldComponent, log.ComponentScheduler,
		"materialized", summary.Materialized,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"total_checked", summary.Checked)
	return summary, nil
}

// materialize checks dueness and books the entry in the same unit, acting
// as the owner of the schedule's account.
func (p *RecurringProcessor) materialize(ctx context.Context, sc core.ScheduledTransaction, now time.Time) (core.Transaction, error) {
	checker, err := GetDuenessChecker(sc.Frequency)
	if err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err = p.runner.run(ctx, "materialize", func(tx storage.Tx) error {
		acc, err := tx.GetAccount(ctx, sc.AccountID)
		if err != nil {
			return err
		}
		last, ok, err := tx.LastMaterialization(ctx, sc.ID)
		if err != nil {
			return err
		}
		if ok && core.SameDay(last, now) {
			return errNotDue
		}
		if !checker.IsDue(last, now, sc.DateStart) {
			return errNotDue
		}

		scheduledID := sc.ID
		data := core.TransactionData{
			AccountID:              sc.AccountID,
			Amount:                 sc.Information.Amount,
			Reference:              sc.Information.Reference,
			Date:                   now,
			CategoryID:             sc.Information.CategoryID,
			OffsetAccountID:        cloneID(sc.OffsetAccountID),
			ScheduledTransactionID: &scheduledID,
		}
		if err := data.Validate(); err != nil {
			return err
		}
		created, err = p.transactions.createInTx(ctx, tx, core.User{ID: acc.UserID}, data, now)
		return err
	})
	p.metrics.RecordLedgerOp(log.OpMaterialize, materializeOutcome(err))
	return created, err
}

func materializeOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, errNotDue):
		return metrics.OutcomeSkipped
	case errors.Is(err, core.ErrConcurrentModification):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
