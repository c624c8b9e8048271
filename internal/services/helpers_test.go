package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pecuny/internal/core"
	"pecuny/internal/storage"
	"pecuny/internal/storage/memory"
)

const (
	catSalary      = int64(1)
	catRent        = int64(4)
	catElectricity = int64(6)
	catGroceries   = int64(14)
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// conflictStore fails the next conflicts units with a version conflict
// after running them, so their writes are rolled back.
type conflictStore struct {
	storage.Store
	mu        sync.Mutex
	conflicts int
	units     int
}

func (s *conflictStore) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	s.units++
	inject := s.conflicts > 0
	if inject {
		s.conflicts--
	}
	s.mu.Unlock()

	if !inject {
		return s.Store.InTx(ctx, fn)
	}
	return s.Store.InTx(ctx, func(tx storage.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return fmt.Errorf("update account: %w", storage.ErrConflict)
	})
}

type fixture struct {
	store        *memory.Store
	clock        *fakeClock
	user         core.User
	accounts     *AccountService
	transactions *TransactionService
	scheduled    *ScheduledService
	taxonomy     *TaxonomyService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := &fakeClock{now: time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)}
	opts := Options{MaxRetries: 3, Now: clock.Now}
	return &fixture{
		store:        store,
		clock:        clock,
		user:         core.User{ID: uuid.New()},
		accounts:     NewAccountService(store, 5, opts),
		transactions: NewTransactionService(store, opts),
		scheduled:    NewScheduledService(store, opts),
		taxonomy:     NewTaxonomyService(store, time.Minute),
	}
}

func (f *fixture) openAccount(t *testing.T, user core.User, label, balance string) core.Account {
	t.Helper()
	acc, err := f.accounts.CreateAccount(context.Background(), user, core.AccountCreate{
		Label:   label,
		Balance: core.MustAmount(balance),
	})
	if err != nil {
		t.Fatalf("create account %q: %v", label, err)
	}
	return acc
}

func (f *fixture) book(t *testing.T, accountID int64, amount string, offset *int64) core.Transaction {
	t.Helper()
	tr, err := f.transactions.CreateTransaction(context.Background(), f.user, core.TransactionData{
		AccountID:       accountID,
		Amount:          core.MustAmount(amount),
		Reference:       "test entry",
		Date:            f.clock.Now(),
		CategoryID:      catElectricity,
		OffsetAccountID: offset,
	})
	if err != nil {
		t.Fatalf("book %s on account %d: %v", amount, accountID, err)
	}
	return tr
}

// accountState reads an account directly from the store, bypassing
// ownership checks.
func (f *fixture) accountState(t *testing.T, id int64) core.Account {
	t.Helper()
	var acc core.Account
	err := f.store.InTx(context.Background(), func(tx storage.Tx) error {
		var err error
		acc, err = tx.GetAccount(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("get account %d: %v", id, err)
	}
	return acc
}

func (f *fixture) entries(t *testing.T, filter storage.TransactionFilter) []core.Transaction {
	t.Helper()
	var out []core.Transaction
	err := f.store.InTx(context.Background(), func(tx storage.Tx) error {
		var err error
		out, err = tx.ListTransactions(context.Background(), filter)
		return err
	})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	return out
}

func assertBalance(t *testing.T, f *fixture, accountID int64, want string) {
	t.Helper()
	got := f.accountState(t, accountID).Balance
	if !got.Equal(core.MustAmount(want)) {
		t.Errorf("account %d balance = %s, want %s", accountID, core.FormatAmount(got), want)
	}
}

func assertAmount(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(core.MustAmount(want)) {
		t.Errorf("amount = %s, want %s", core.FormatAmount(got), want)
	}
}

func idPtr(id int64) *int64 {
	return &id
}
