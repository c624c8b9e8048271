package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestComponentIsLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})
	child := logger.WithComponent(ComponentImporter)

	child.Info("Row imported", FieldRow, 3)
	out := buf.String()
	if strings.Count(out, "component=") != 1 {
		t.Fatalf("expected exactly one component attribute, got %q", out)
	}
	if !strings.Contains(out, "component=importer") || !strings.Contains(out, "row=3") {
		t.Fatalf("unexpected output %q", out)
	}
	if child.Component() != ComponentImporter {
		t.Fatalf("expected importer component, got %s", child.Component())
	}
}

func TestContextRoundTrip(t *testing.T) {
	logger := New(Config{Component: ComponentWorker, Output: &bytes.Buffer{}})
	ctx := NewContext(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Fatalf("expected stored logger")
	}
	if FromContext(context.Background()).Component() != ComponentApp {
		t.Fatalf("expected fallback logger")
	}
}

func TestLogFields(t *testing.T) {
	user := uuid.New()
	fields := NewFields().
		WithUser(user).
		WithTransaction(7, 3, "-30.50").
		WithRow(2, 3).
		WithOperation(OpImport).
		WithError(errors.New("boom")).
		WithError(nil)

	if fields[FieldUserID] != user.String() || fields[FieldAmount] != "-30.50" || fields[FieldError] != "boom" {
		t.Fatalf("unexpected fields %+v", fields)
	}
	if len(fields.ToSlice()) != 2*len(fields) {
		t.Fatalf("slice must hold key/value pairs")
	}
}
