package core

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	Once    Frequency = "once"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	MaxAccountLabelLength       = 36
	MaxAccountDescriptionLength = 128
	MaxReferenceLength          = 128
)

type (
	Frequency string

	// User is the authenticated actor handed over by the identity provider.
	User struct {
		ID uuid.UUID
	}

	// Account is a wallet owned by one user. Balance is a cached sum of the
	// amounts of all transactions booked on the account.
	Account struct {
		ID          int64
		UserID      uuid.UUID
		Label       string
		Description string
		Balance     decimal.Decimal
		Version     int64
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	TransactionInformation struct {
		ID         int64
		Amount     decimal.Decimal
		Reference  string
		Date       time.Time
		CategoryID int64
	}

	Transaction struct {
		ID                     int64
		AccountID              int64
		Information            TransactionInformation
		OffsetTransactionID    *int64
		ScheduledTransactionID *int64
		CreatedAt              time.Time
		UpdatedAt              time.Time
	}

	ScheduledTransaction struct {
		ID              int64
		AccountID       int64
		Information     TransactionInformation
		Frequency       Frequency
		DateStart       time.Time
		DateEnd         *time.Time // nil means open-ended
		IsActive        bool
		OffsetAccountID *int64
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	Section struct {
		ID    int64
		Label string
	}

	Category struct {
		ID        int64
		Label     string
		SectionID int64
		UserID    *uuid.UUID // nil for global categories
	}
)

// Frequencies lists every supported schedule frequency.
func Frequencies() []Frequency {
	return []Frequency{Once, Daily, Weekly, Monthly, Yearly}
}

func (f Frequency) IsValid() bool {
	switch f {
	case Once, Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// ParseFrequency maps a label such as "Monthly" to its Frequency.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", &ValidationError{Field: "frequency", Value: s, Reason: "unknown frequency"}
	}
	return f, nil
}

func (a Account) OwnedBy(user User) bool {
	return a.UserID == user.ID
}

func (t Transaction) HasOffset() bool {
	return t.OffsetTransactionID != nil
}

// VisibleTo reports whether the category can be used by the given user.
func (c Category) VisibleTo(user User) bool {
	return c.UserID == nil || *c.UserID == user.ID
}

// CoversDay reports whether day lies inside the schedule's date window.
func (s ScheduledTransaction) CoversDay(day time.Time) bool {
	d := DayOf(day)
	if d.Before(DayOf(s.DateStart.In(day.Location()))) {
		return false
	}
	if s.DateEnd != nil && d.After(DayOf(s.DateEnd.In(day.Location()))) {
		return false
	}
	return true
}

func (s ScheduledTransaction) HasOffset() bool {
	return s.OffsetAccountID != nil
}

var (
	ErrEmptyLabel    = errors.New("empty label")
	ErrInvalidID     = errors.New("invalid id")
	ErrZeroDate      = errors.New("date cannot be zero")
	ErrSameAccount   = errors.New("offset account must differ from account")
	ErrDateEndBefore = errors.New("end date must not be before start date")
)
