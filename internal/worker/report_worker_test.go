package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pecuny/internal/amqp"
	"pecuny/internal/log"
)

func newTestWorker(buf *bytes.Buffer) *ReportWorker {
	return NewReportWorker(log.New(log.Config{Level: slog.LevelDebug, Output: buf}))
}

func TestHandleImportReport(t *testing.T) {
	user := uuid.New()
	failed := []amqp.FailedRow{
		{Row: 2, Line: 3, Reason: "Section Hosuing not found", Section: "Hosuing"},
		{Row: 5, Line: 6, Reason: `invalid amount on line 6: "12,3,4"`, Amount: "12,3,4"},
	}

	tests := []struct {
		name      string
		msg       *amqp.ImportReportMessage
		wantErr   bool
		wantLines []string
	}{
		{
			name:      "report with failures",
			msg:       amqp.NewImportReportMessage(user, 7, 6, 4, failed),
			wantLines: []string{"Import report received", "Section Hosuing not found", "line=6"},
		},
		{
			name:      "clean report",
			msg:       amqp.NewImportReportMessage(user, 7, 3, 3, nil),
			wantLines: []string{"imported=3", "failed=0"},
		},
		{name: "nil message", msg: nil, wantErr: true},
		{name: "no owner", msg: amqp.NewImportReportMessage(uuid.Nil, 7, 1, 1, nil), wantErr: true},
		{name: "counts do not add up", msg: amqp.NewImportReportMessage(user, 7, 1, 1, failed), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := newTestWorker(&buf).HandleImportReport(context.Background(), tt.msg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidReport) {
					t.Fatalf("error = %v, want ErrInvalidReport", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out := buf.String()
			for _, want := range tt.wantLines {
				if !strings.Contains(out, want) {
					t.Errorf("log output missing %q:\n%s", want, out)
				}
			}
			if got := strings.Count(out, "Import row rejected"); got != len(tt.msg.Failed) {
				t.Errorf("logged %d rejected rows, want %d", got, len(tt.msg.Failed))
			}
		})
	}
}

func TestHandleImportReportNotify(t *testing.T) {
	var buf bytes.Buffer
	w := newTestWorker(&buf)
	msg := amqp.NewImportReportMessage(uuid.New(), 1, 2, 2, nil)

	var notified *amqp.ImportReportMessage
	w.Notify = func(_ context.Context, m *amqp.ImportReportMessage) error {
		notified = m
		return nil
	}
	if err := w.HandleImportReport(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if notified != msg {
		t.Error("notifier not called with the report")
	}

	w.Notify = func(context.Context, *amqp.ImportReportMessage) error { return errors.New("smtp down") }
	err := w.HandleImportReport(context.Background(), msg)
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Errorf("error = %v, want notifier failure", err)
	}
}
