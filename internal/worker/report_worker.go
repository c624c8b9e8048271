// Package worker holds the AMQP consumers run by the worker binaries.
package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"pecuny/internal/amqp"
	"pecuny/internal/log"
)

var ErrInvalidReport = errors.New("invalid import report")

// ReportWorker receives import reports and tells the owner what went wrong.
// Delivery is a structured log line per rejected row; a mail or push
// notifier can hang off Notify.
type ReportWorker struct {
	logger *log.Logger
	// Notify is called once per report after it was logged. Optional.
	Notify func(ctx context.Context, msg *amqp.ImportReportMessage) error
}

func NewReportWorker(logger *log.Logger) *ReportWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ReportWorker{logger: logger.WithComponent(log.ComponentWorker)}
}

// HandleImportReport validates and logs one report. A returned error makes
// the consumer reject the delivery.
func (w *ReportWorker) HandleImportReport(ctx context.Context, msg *amqp.ImportReportMessage) error {
	if msg == nil {
		return ErrInvalidReport
	}
	if msg.UserID == uuid.Nil || msg.AccountID <= 0 {
		return fmt.Errorf("%w: message %s has no owner", ErrInvalidReport, msg.MessageID)
	}
	if msg.Imported+len(msg.Failed) > msg.TotalRows {
		return fmt.Errorf("%w: message %s counts %d rows but reports %d imported and %d failed",
			ErrInvalidReport, msg.MessageID, msg.TotalRows, msg.Imported, len(msg.Failed))
	}

	logger := w.logger.With(
		log.FieldMessageID, msg.MessageID.String(),
		log.FieldUserID, msg.UserID.String(),
		log.FieldAccountID, msg.AccountID)

	logger.InfoContext(ctx, "Import report received",
		"total", msg.TotalRows,
		"imported", msg.Imported,
		"failed", len(msg.Failed))

	for _, row := range msg.Failed {
		logger.WarnContext(ctx, "Import row rejected",
			log.FieldRow, row.Row,
			log.FieldLine, row.Line,
			log.FieldReason, row.Reason,
			"date", row.Date,
			"reference", row.Reference,
			log.FieldAmount, row.Amount,
			"section", row.Section,
			"category", row.Category)
	}

	if w.Notify == nil {
		return nil
	}
	if err := w.Notify(ctx, msg); err != nil {
		return fmt.Errorf("notify user %s: %w", msg.UserID, err)
	}
	return nil
}

// Run consumes reports until ctx is done.
func (w *ReportWorker) Run(ctx context.Context, client *amqp.Client) error {
	w.logger.InfoContext(ctx, "Report worker started")
	err := client.ConsumeImportReports(ctx, w.HandleImportReport)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Compile-time check that the handler matches the consumer signature.
var _ func(context.Context, *amqp.ImportReportMessage) error = (*ReportWorker)(nil).HandleImportReport
