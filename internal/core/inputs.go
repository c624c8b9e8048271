package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	AccountCreate struct {
		Label       string
		Description string
		Balance     decimal.Decimal
	}

	// AccountUpdate carries only the fields to change. Setting Balance is a
	// manual override and bypasses recomputation from the ledger.
	AccountUpdate struct {
		Label       *string
		Description *string
		Balance     *decimal.Decimal
	}

	TransactionData struct {
		AccountID              int64
		Amount                 decimal.Decimal
		Reference              string
		Date                   time.Time
		CategoryID             int64
		OffsetAccountID        *int64
		ScheduledTransactionID *int64
	}

	TransactionUpdate struct {
		Amount     decimal.Decimal
		Reference  string
		Date       time.Time
		CategoryID int64
	}

	ScheduledTransactionData struct {
		AccountID       int64
		Amount          decimal.Decimal
		Reference       string
		CategoryID      int64
		Frequency       Frequency
		DateStart       time.Time
		DateEnd         *time.Time
		OffsetAccountID *int64
	}

	// ScheduledTransactionUpdate carries only the fields to change.
	// OpenEnded clears DateEnd and takes precedence over it.
	ScheduledTransactionUpdate struct {
		Amount          *decimal.Decimal
		Reference       *string
		CategoryID      *int64
		Frequency       *Frequency
		DateStart       *time.Time
		DateEnd         *time.Time
		OpenEnded       bool
		IsActive        *bool
		OffsetAccountID *int64
		ClearOffset     bool
	}
)

func (a AccountCreate) Validate() error {
	if err := validateLabel(a.Label); err != nil {
		return err
	}
	return validateDescription(a.Description)
}

func (a AccountUpdate) Validate() error {
	if a.Label != nil {
		if err := validateLabel(*a.Label); err != nil {
			return err
		}
	}
	if a.Description != nil {
		return validateDescription(*a.Description)
	}
	return nil
}

func (t TransactionData) Validate() error {
	if t.AccountID <= 0 {
		return &ValidationError{Field: "account_id", Value: strconv.FormatInt(t.AccountID, 10), Reason: ErrInvalidID.Error()}
	}
	if t.OffsetAccountID != nil {
		if *t.OffsetAccountID <= 0 {
			return &ValidationError{Field: "offset_account_id", Value: strconv.FormatInt(*t.OffsetAccountID, 10), Reason: ErrInvalidID.Error()}
		}
		if *t.OffsetAccountID == t.AccountID {
			return &ValidationError{Field: "offset_account_id", Value: strconv.FormatInt(*t.OffsetAccountID, 10), Reason: ErrSameAccount.Error()}
		}
	}
	return validateInformation(t.Reference, t.Date, t.CategoryID)
}

func (t TransactionUpdate) Validate() error {
	return validateInformation(t.Reference, t.Date, t.CategoryID)
}

func (s ScheduledTransactionData) Validate() error {
	if s.AccountID <= 0 {
		return &ValidationError{Field: "account_id", Value: strconv.FormatInt(s.AccountID, 10), Reason: ErrInvalidID.Error()}
	}
	if !s.Frequency.IsValid() {
		return &ValidationError{Field: "frequency", Value: string(s.Frequency), Reason: "unknown frequency"}
	}
	if s.OffsetAccountID != nil && *s.OffsetAccountID == s.AccountID {
		return &ValidationError{Field: "offset_account_id", Value: strconv.FormatInt(*s.OffsetAccountID, 10), Reason: ErrSameAccount.Error()}
	}
	if err := validateWindow(s.DateStart, s.DateEnd); err != nil {
		return err
	}
	return validateInformation(s.Reference, s.DateStart, s.CategoryID)
}

// Apply merges the update into s and validates the result.
func (u ScheduledTransactionUpdate) Apply(s *ScheduledTransaction) error {
	if u.Amount != nil {
		s.Information.Amount = RoundAmount(*u.Amount)
	}
	if u.Reference != nil {
		s.Information.Reference = *u.Reference
	}
	if u.CategoryID != nil {
		s.Information.CategoryID = *u.CategoryID
	}
	if u.Frequency != nil {
		if !u.Frequency.IsValid() {
			return &ValidationError{Field: "frequency", Value: string(*u.Frequency), Reason: "unknown frequency"}
		}
		s.Frequency = *u.Frequency
	}
	if u.DateStart != nil {
		s.DateStart = *u.DateStart
		s.Information.Date = *u.DateStart
	}
	if u.OpenEnded {
		s.DateEnd = nil
	} else if u.DateEnd != nil {
		end := *u.DateEnd
		s.DateEnd = &end
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
	if u.ClearOffset {
		s.OffsetAccountID = nil
	} else if u.OffsetAccountID != nil {
		id := *u.OffsetAccountID
		s.OffsetAccountID = &id
	}
	if s.OffsetAccountID != nil && *s.OffsetAccountID == s.AccountID {
		return &ValidationError{Field: "offset_account_id", Value: strconv.FormatInt(*s.OffsetAccountID, 10), Reason: ErrSameAccount.Error()}
	}
	if err := validateWindow(s.DateStart, s.DateEnd); err != nil {
		return err
	}
	return validateInformation(s.Information.Reference, s.DateStart, s.Information.CategoryID)
}

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return &ValidationError{Field: "label", Reason: ErrEmptyLabel.Error()}
	}
	if len(label) > MaxAccountLabelLength {
		return &ValidationError{Field: "label", Value: label, Reason: "label too long (max 36 characters)"}
	}
	return nil
}

func validateDescription(description string) error {
	if len(description) > MaxAccountDescriptionLength {
		return &ValidationError{Field: "description", Reason: "description too long (max 128 characters)"}
	}
	return nil
}

func validateInformation(reference string, date time.Time, categoryID int64) error {
	if len(reference) > MaxReferenceLength {
		return &ValidationError{Field: "reference", Reason: "reference too long (max 128 characters)"}
	}
	if date.IsZero() {
		return &ValidationError{Field: "date", Reason: ErrZeroDate.Error()}
	}
	if categoryID <= 0 {
		return &ValidationError{Field: "category_id", Value: strconv.FormatInt(categoryID, 10), Reason: ErrInvalidID.Error()}
	}
	return nil
}

func validateWindow(start time.Time, end *time.Time) error {
	if start.IsZero() {
		return &ValidationError{Field: "date_start", Reason: ErrZeroDate.Error()}
	}
	if end != nil && DayOf(*end).Before(DayOf(start)) {
		return &ValidationError{Field: "date_end", Value: end.Format("2006-01-02"), Reason: ErrDateEndBefore.Error()}
	}
	return nil
}
