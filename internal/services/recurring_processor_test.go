package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"pecuny/internal/core"
	"pecuny/internal/storage"
)

func newProcessor(f *fixture) *RecurringProcessor {
	return NewRecurringProcessor(f.store, f.transactions, Options{MaxRetries: 3})
}

func schedule(t *testing.T, f *fixture, data core.ScheduledTransactionData) core.ScheduledTransaction {
	t.Helper()
	sc, err := f.scheduled.CreateScheduled(context.Background(), f.user, data)
	if err != nil {
		t.Fatalf("create schedule: %v", err)
	}
	return sc
}

func TestProcessDueTransactionsIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.openAccount(t, f.user, "Main", "100.00")
	sc := schedule(t, f, core.ScheduledTransactionData{
		AccountID: acc.ID, Amount: core.MustAmount("-3.20"), Reference: "coffee",
		CategoryID: catGroceries, Frequency: core.Daily, DateStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	proc := newProcessor(f)

	morning := time.Date(2024, 3, 15, 0, 5, 0, 0, time.UTC)
	first, err := proc.ProcessDueTransactions(ctx, morning)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := proc.ProcessDueTransactions(ctx, morning.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if first.Materialized != 1 || second.Materialized != 0 || second.Skipped != 1 {
		t.Errorf("first = %+v, second = %+v", first, second)
	}
	entries := f.entries(t, storage.TransactionFilter{ScheduledTransactionID: sc.ID})
	if len(entries) != 1 {
		t.Fatalf("got %d materialized entries, want 1", len(entries))
	}
	if !entries[0].Information.Date.Equal(morning) || entries[0].Information.Reference != "coffee" {
		t.Errorf("unexpected entry %+v", entries[0].Information)
	}
	assertBalance(t, f, acc.ID, "96.80")

	next, err := proc.ProcessDueTransactions(ctx, morning.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("next day run: %v", err)
	}
	if next.Materialized != 1 {
		t.Errorf("next day = %+v, want one materialization", next)
	}
	assertBalance(t, f, acc.ID, "93.60")
}

func TestProcessDueTransactionsWindowAndFrequency(t *testing.T) {
	now := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		data     func(accountID int64) core.ScheduledTransactionData
		inactive bool
		want     int
	}{
		{
			name: "once materializes",
			data: func(id int64) core.ScheduledTransactionData {
				return core.ScheduledTransactionData{AccountID: id, Frequency: core.Once, DateStart: now}
			},
			want: 1,
		},
		{
			name: "not started yet",
			data: func(id int64) core.ScheduledTransactionData {
				return core.ScheduledTransactionData{AccountID: id, Frequency: core.Daily, DateStart: now.AddDate(0, 0, 1)}
			},
		},
		{
			name: "already ended",
			data: func(id int64) core.ScheduledTransactionData {
				return core.ScheduledTransactionData{AccountID: id, Frequency: core.Daily, DateStart: now.AddDate(0, -1, 0), DateEnd: &end}
			},
		},
		{
			name: "ends today",
			data: func(id int64) core.ScheduledTransactionData {
				today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
				return core.ScheduledTransactionData{AccountID: id, Frequency: core.Daily, DateStart: now.AddDate(0, -1, 0), DateEnd: &today}
			},
			want: 1,
		},
		{
			name: "inactive",
			data: func(id int64) core.ScheduledTransactionData {
				return core.ScheduledTransactionData{AccountID: id, Frequency: core.Daily, DateStart: now.AddDate(0, -1, 0)}
			},
			inactive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			acc := f.openAccount(t, f.user, "Main", "0")
			data := tt.data(acc.ID)
			data.Amount = core.MustAmount("-1.00")
			data.Reference = tt.name
			data.CategoryID = catGroceries
			sc := schedule(t, f, data)
			if tt.inactive {
				off := false
				if _, err := f.scheduled.UpdateScheduled(context.Background(), f.user, sc.ID, core.ScheduledTransactionUpdate{IsActive: &off}); err != nil {
					t.Fatalf("deactivate: %v", err)
				}
			}

			summary, err := newProcessor(f).ProcessDueTransactions(context.Background(), now)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if summary.Materialized != tt.want {
				t.Errorf("materialized = %d, want %d (%+v)", summary.Materialized, tt.want, summary)
			}
		})
	}
}

func TestProcessDueTransactionsOnceNeverRepeats(t *testing.T) {
	f := newFixture(t)
	acc := f.openAccount(t, f.user, "Main", "0")
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	schedule(t, f, core.ScheduledTransactionData{
		AccountID: acc.ID, Amount: core.MustAmount("250"), Reference: "bonus",
		CategoryID: catSalary, Frequency: core.Once, DateStart: start,
	})
	proc := newProcessor(f)

	for day := 0; day < 5; day++ {
		if _, err := proc.ProcessDueTransactions(context.Background(), start.AddDate(0, 0, day)); err != nil {
			t.Fatalf("run %d: %v", day, err)
		}
	}
	assertBalance(t, f, acc.ID, "250.00")
}

func TestProcessDueTransactionsTransfer(t *testing.T) {
	f := newFixture(t)
	main := f.openAccount(t, f.user, "Main", "1000.00")
	savings := f.openAccount(t, f.user, "Savings", "0")
	sc := schedule(t, f, core.ScheduledTransactionData{
		AccountID: main.ID, Amount: core.MustAmount("-200"), Reference: "save",
		CategoryID: catSalary, Frequency: core.Monthly, DateStart: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		OffsetAccountID: idPtr(savings.ID),
	})
	proc := newProcessor(f)

	runs := []struct {
		at   time.Time
		main string
	}{
		{at: time.Date(2024, 1, 31, 8, 0, 0, 0, time.UTC), main: "800.00"},
		{at: time.Date(2024, 2, 28, 8, 0, 0, 0, time.UTC), main: "800.00"},
		{at: time.Date(2024, 2, 29, 8, 0, 0, 0, time.UTC), main: "600.00"},
		{at: time.Date(2024, 3, 30, 8, 0, 0, 0, time.UTC), main: "600.00"},
		{at: time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC), main: "400.00"},
	}
	for _, r := range runs {
		if _, err := proc.ProcessDueTransactions(context.Background(), r.at); err != nil {
			t.Fatalf("run at %s: %v", r.at.Format(time.DateOnly), err)
		}
		assertBalance(t, f, main.ID, r.main)
	}
	assertBalance(t, f, savings.ID, "600.00")

	mirrors := f.entries(t, storage.TransactionFilter{AccountID: savings.ID})
	if len(mirrors) != 3 {
		t.Fatalf("savings has %d entries, want 3", len(mirrors))
	}
	for _, m := range mirrors {
		if m.ScheduledTransactionID == nil || *m.ScheduledTransactionID != sc.ID || m.OffsetTransactionID == nil {
			t.Errorf("mirror %d not linked to schedule and counterpart: %+v", m.ID, m)
		}
	}
}

func TestProcessDueTransactionsIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acc := f.openAccount(t, f.user, "Main", "0")
	now := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)

	schedule(t, f, core.ScheduledTransactionData{
		AccountID: acc.ID, Amount: core.MustAmount("10"), Reference: "good",
		CategoryID: catSalary, Frequency: core.Daily, DateStart: now,
	})

	// A schedule whose category belongs to someone else can never be booked.
	stranger := uuid.New()
	private := f.store.AddCategory(core.Category{Label: "Not yours", SectionID: 1, UserID: &stranger})
	err := f.store.InTx(ctx, func(tx storage.Tx) error {
		return tx.CreateScheduled(ctx, &core.ScheduledTransaction{
			AccountID: acc.ID,
			Information: core.TransactionInformation{
				Amount: core.MustAmount("99"), Reference: "bad", Date: now, CategoryID: private.ID,
			},
			Frequency: core.Daily,
			DateStart: now,
			IsActive:  true,
		})
	})
	if err != nil {
		t.Fatalf("seed bad schedule: %v", err)
	}

	schedule(t, f, core.ScheduledTransactionData{
		AccountID: acc.ID, Amount: core.MustAmount("5"), Reference: "also good",
		CategoryID: catSalary, Frequency: core.Daily, DateStart: now,
	})

	summary, err := newProcessor(f).ProcessDueTransactions(ctx, now)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Checked != 3 || summary.Materialized != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	assertBalance(t, f, acc.ID, "15.00")
}

func TestProcessDueTransactionsUsesLocation(t *testing.T) {
	f := newFixture(t)
	acc := f.openAccount(t, f.user, "Main", "0")
	schedule(t, f, core.ScheduledTransactionData{
		AccountID: acc.ID, Amount: core.MustAmount("1"), Reference: "tick",
		CategoryID: catSalary, Frequency: core.Daily, DateStart: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	proc := newProcessor(f)
	zone := time.FixedZone("UTC+2", 2*60*60)

	// 23:30 UTC on the 14th is already the 15th at UTC+2.
	if _, err := proc.ProcessDueTransactions(context.Background(), time.Date(2024, 3, 14, 23, 30, 0, 0, time.UTC).In(zone)); err != nil {
		t.Fatal(err)
	}
	summary, err := proc.ProcessDueTransactions(context.Background(), time.Date(2024, 3, 15, 20, 0, 0, 0, zone))
	if err != nil {
		t.Fatal(err)
	}
	if summary.Materialized != 0 {
		t.Errorf("second run on the same local day materialized %d entries", summary.Materialized)
	}
	assertBalance(t, f, acc.ID, "1.00")
}
