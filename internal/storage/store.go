package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"pecuny/internal/core"
)

// ErrConflict is returned by Tx.UpdateAccount when the stored version no
// longer matches the version the caller read.
var ErrConflict = errors.New("version conflict")

// Store groups ledger reads and writes into atomic units.
type Store interface {
	// InTx runs fn in one atomic unit. Every write done through tx is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of ledger operations available inside an atomic unit.
// Lookups by id return an error matching core.ErrNotFound when the row does
// not exist.
type Tx interface {
	GetAccount(ctx context.Context, id int64) (core.Account, error)
	ListAccounts(ctx context.Context, userID uuid.UUID) ([]core.Account, error)
	CreateAccount(ctx context.Context, a *core.Account) error
	// UpdateAccount writes a if the stored version equals a.Version and
	// increments a.Version. It returns ErrConflict otherwise.
	UpdateAccount(ctx context.Context, a *core.Account) error
	DeleteAccount(ctx context.Context, id int64) error

	GetSection(ctx context.Context, id int64) (core.Section, error)
	ListSections(ctx context.Context) ([]core.Section, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context, sectionID int64) ([]core.Category, error)

	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	UpdateTransaction(ctx context.Context, t core.Transaction) error
	// DeleteTransaction removes the transaction and its information row.
	DeleteTransaction(ctx context.Context, id int64) error
	// LastMaterialization returns the newest CreatedAt of the transactions
	// spawned by the schedule.
	LastMaterialization(ctx context.Context, scheduledID int64) (time.Time, bool, error)
	// DetachScheduled clears the schedule reference of every transaction
	// spawned by the schedule.
	DetachScheduled(ctx context.Context, scheduledID int64) error

	GetScheduled(ctx context.Context, id int64) (core.ScheduledTransaction, error)
	ListScheduled(ctx context.Context, f ScheduledFilter) ([]core.ScheduledTransaction, error)
	CreateScheduled(ctx context.Context, s *core.ScheduledTransaction) error
	UpdateScheduled(ctx context.Context, s core.ScheduledTransaction) error
	DeleteScheduled(ctx context.Context, id int64) error
}

// TransactionFilter selects transactions. Zero fields are ignored; From and
// To bound the information date inclusively.
type TransactionFilter struct {
	AccountID              int64
	ScheduledTransactionID int64
	From                   *time.Time
	To                     *time.Time
}

// ScheduledFilter selects scheduled transactions. Zero fields are ignored.
type ScheduledFilter struct {
	AccountID       int64
	OffsetAccountID int64
	ActiveOnly      bool
}

func (f TransactionFilter) Match(t core.Transaction) bool {
	if f.AccountID != 0 && t.AccountID != f.AccountID {
		return false
	}
	if f.ScheduledTransactionID != 0 && (t.ScheduledTransactionID == nil || *t.ScheduledTransactionID != f.ScheduledTransactionID) {
		return false
	}
	if f.From != nil && t.Information.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Information.Date.After(*f.To) {
		return false
	}
	return true
}

func (f ScheduledFilter) Match(s core.ScheduledTransaction) bool {
	if f.AccountID != 0 && s.AccountID != f.AccountID {
		return false
	}
	if f.OffsetAccountID != 0 && (s.OffsetAccountID == nil || *s.OffsetAccountID != f.OffsetAccountID) {
		return false
	}
	if f.ActiveOnly && !s.IsActive {
		return false
	}
	return true
}
