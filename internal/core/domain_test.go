package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestFrequencyParse(t *testing.T) {
	cases := []struct {
		in   string
		want Frequency
		ok   bool
	}{
		{"once", Once, true},
		{"Monthly", Monthly, true},
		{" yearly ", Yearly, true},
		{"biweekly", "", false},
		{"", "", false},
	}
	for i, tc := range cases {
		got, err := ParseFrequency(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("case %d expected %q, got %q err=%v", i, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCategoryVisibleTo(t *testing.T) {
	owner := User{ID: uuid.New()}
	other := User{ID: uuid.New()}
	global := Category{ID: 1, Label: "Salary", SectionID: 1}
	private := Category{ID: 2, Label: "Side job", SectionID: 1, UserID: &owner.ID}

	if !global.VisibleTo(other) {
		t.Fatalf("global category should be visible to everyone")
	}
	if !private.VisibleTo(owner) {
		t.Fatalf("user category should be visible to its owner")
	}
	if private.VisibleTo(other) {
		t.Fatalf("user category should not be visible to other users")
	}
}

func TestScheduledCoversDay(t *testing.T) {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	s := ScheduledTransaction{
		DateStart: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		DateEnd:   &end,
	}
	tests := []struct {
		name string
		day  time.Time
		want bool
	}{
		{"before start", time.Date(2024, 1, 14, 23, 0, 0, 0, time.UTC), false},
		{"start day earlier hour", time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), true},
		{"inside window", time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC), true},
		{"end day", time.Date(2024, 3, 31, 18, 0, 0, 0, time.UTC), true},
		{"after end", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CoversDay(tt.day); got != tt.want {
				t.Errorf("CoversDay(%v) = %v, want %v", tt.day, got, tt.want)
			}
		})
	}

	s.DateEnd = nil
	if !s.CoversDay(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("open-ended schedule should cover far future days")
	}
}

func TestAccountCreateValidate(t *testing.T) {
	if err := (AccountCreate{Label: "Checking"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []AccountCreate{
		{Label: ""},
		{Label: "   "},
		{Label: strings.Repeat("x", 37)},
		{Label: "ok", Description: strings.Repeat("d", 129)},
	}
	for i, a := range bads {
		if err := a.Validate(); !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestTransactionDataValidate(t *testing.T) {
	date := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	good := TransactionData{AccountID: 1, Amount: decimal.NewFromInt(5), Date: date, CategoryID: 3}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	same := int64(1)
	bads := []TransactionData{
		{AccountID: 0, Date: date, CategoryID: 3},
		{AccountID: 1, Date: time.Time{}, CategoryID: 3},
		{AccountID: 1, Date: date, CategoryID: 0},
		{AccountID: 1, Date: date, CategoryID: 3, OffsetAccountID: &same},
		{AccountID: 1, Date: date, CategoryID: 3, Reference: strings.Repeat("r", 129)},
	}
	for i, d := range bads {
		if err := d.Validate(); !IsValidation(err) {
			t.Fatalf("case %d expected validation error, got %v", i, err)
		}
	}
}

func TestScheduledUpdateApply(t *testing.T) {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := ScheduledTransaction{
		AccountID: 1,
		Information: TransactionInformation{
			Amount:     MustAmount("-10"),
			Reference:  "Gym",
			Date:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			CategoryID: 21,
		},
		Frequency: Monthly,
		DateStart: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DateEnd:   &end,
		IsActive:  true,
	}

	amount := decimal.RequireFromString("-12.345")
	inactive := false
	if err := (ScheduledTransactionUpdate{Amount: &amount, IsActive: &inactive, OpenEnded: true}).Apply(&s); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !s.Information.Amount.Equal(MustAmount("-12.35")) {
		t.Fatalf("expected rounded amount -12.35, got %s", s.Information.Amount)
	}
	if s.IsActive || s.DateEnd != nil {
		t.Fatalf("expected inactive open-ended schedule, got active=%v end=%v", s.IsActive, s.DateEnd)
	}

	before := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	err := (ScheduledTransactionUpdate{DateEnd: &before}).Apply(&s)
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "date_end" {
		t.Fatalf("expected date_end validation error, got %v", err)
	}
}

func TestReferenceErrorIsNotFound(t *testing.T) {
	err := &ReferenceError{Kind: "Section", Label: "Nope"}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("reference error should match ErrNotFound")
	}
	if err.Error() != "Section Nope not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
