package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/storage"
)

// DefaultMaxAccounts is the per-user account limit when none is configured.
const DefaultMaxAccounts = 5

// AccountService manages the accounts of a user.
type AccountService struct {
	store       storage.Store
	runner      unitRunner
	opts        Options
	maxAccounts int
}

func NewAccountService(store storage.Store, maxAccounts int, opts Options) *AccountService {
	opts = opts.withDefaults()
	if maxAccounts < 1 {
		maxAccounts = DefaultMaxAccounts
	}
	return &AccountService{
		store:       store,
		runner:      newUnitRunner(store, opts),
		opts:        opts,
		maxAccounts: maxAccounts,
	}
}

func (s *AccountService) ListAccounts(ctx context.Context, user core.User) ([]core.Account, error) {
	var out []core.Account
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		out, err = tx.ListAccounts(ctx, user.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

func (s *AccountService) GetAccount(ctx context.Context, user core.User, id int64) (core.Account, error) {
	var acc core.Account
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		acc, err = ownedAccount(ctx, tx, user, id)
		return err
	})
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %d: %w", id, err)
	}
	return acc, nil
}

// TotalBalance sums the balances of every account the user owns.
func (s *AccountService) TotalBalance(ctx context.Context, user core.User) (decimal.Decimal, error) {
	accounts, err := s.ListAccounts(ctx, user)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return core.RoundAmount(total), nil
}

// CreateAccount opens an account unless the user already reached the limit.
func (s *AccountService) CreateAccount(ctx context.Context, user core.User, data core.AccountCreate) (core.Account, error) {
	if err := data.Validate(); err != nil {
		return core.Account{}, err
	}

	var created core.Account
	err := s.runner.run(ctx, "create_account", func(tx storage.Tx) error {
		existing, err := tx.ListAccounts(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(existing) >= s.maxAccounts {
			return fmt.Errorf("user %s owns %d accounts: %w", user.ID, len(existing), core.ErrAccountLimitReached)
		}
		now := s.opts.Now()
		created = core.Account{
			UserID:      user.ID,
			Label:       data.Label,
			Description: data.Description,
			Balance:     core.RoundAmount(data.Balance),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.CreateAccount(ctx, &created)
	})
	s.opts.Metrics.RecordLedgerOp("create_account", outcome(err))
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Account created",
		log.FieldComponent, log.ComponentAccounts,
		log.FieldUserID, user.ID.String(),
		log.FieldAccountID, created.ID,
		log.FieldBalance, core.FormatAmount(created.Balance))
	return created, nil
}

// UpdateAccount changes label, description or balance. A balance given
// here overrides the value derived from the ledger.
func (s *AccountService) UpdateAccount(ctx context.Context, user core.User, id int64, upd core.AccountUpdate) (core.Account, error) {
	if err := upd.Validate(); err != nil {
		return core.Account{}, err
	}

	var updated core.Account
	err := s.runner.run(ctx, "update_account", func(tx storage.Tx) error {
		acc, err := ownedAccount(ctx, tx, user, id)
		if err != nil {
			return err
		}
		if upd.Label != nil {
			acc.Label = *upd.Label
		}
		if upd.Description != nil {
			acc.Description = *upd.Description
		}
		if upd.Balance != nil {
			acc.Balance = core.RoundAmount(*upd.Balance)
		}
		acc.UpdatedAt = s.opts.Now()
		if err := tx.UpdateAccount(ctx, &acc); err != nil {
			return err
		}
		updated = acc
		return nil
	})
	s.opts.Metrics.RecordLedgerOp("update_account", outcome(err))
	if err != nil {
		return core.Account{}, fmt.Errorf("update account %d: %w", id, err)
	}

	if upd.Balance != nil {
		slog.WarnContext(ctx, "Account balance overridden",
			log.FieldComponent, log.ComponentAccounts,
			log.FieldUserID, user.ID.String(),
			log.FieldAccountID, id,
			log.FieldBalance, core.FormatAmount(updated.Balance))
	}
	return updated, nil
}

// DeleteAccount removes the account with its entries and schedules.
//
// Entries on other accounts that mirror this account's entries are kept but
// unlinked, so those accounts' balances stay equal to their entries.
// Schedules elsewhere that transfer into this account are deactivated and
// lose their offset.
func (s *AccountService) DeleteAccount(ctx context.Context, user core.User, id int64) error {
	err := s.runner.run(ctx, "delete_account", func(tx storage.Tx) error {
		if _, err := ownedAccount(ctx, tx, user, id); err != nil {
			return err
		}
		now := s.opts.Now()

		entries, err := tx.ListTransactions(ctx, storage.TransactionFilter{AccountID: id})
		if err != nil {
			return err
		}
		for _, t := range entries {
			if t.OffsetTransactionID == nil {
				continue
			}
			mirror, err := tx.GetTransaction(ctx, *t.OffsetTransactionID)
			if err != nil {
				return err
			}
			mirror.OffsetTransactionID = nil
			mirror.UpdatedAt = now
			if err := tx.UpdateTransaction(ctx, mirror); err != nil {
				return err
			}
		}

		own, err := tx.ListScheduled(ctx, storage.ScheduledFilter{AccountID: id})
		if err != nil {
			return err
		}
		for _, sc := range own {
			if err := tx.DetachScheduled(ctx, sc.ID); err != nil {
				return err
			}
			if err := tx.DeleteScheduled(ctx, sc.ID); err != nil {
				return err
			}
		}

		incoming, err := tx.ListScheduled(ctx, storage.ScheduledFilter{OffsetAccountID: id})
		if err != nil {
			return err
		}
		for _, sc := range incoming {
			sc.IsActive = false
			sc.OffsetAccountID = nil
			sc.UpdatedAt = now
			if err := tx.UpdateScheduled(ctx, sc); err != nil {
				return err
			}
		}

		for _, t := range entries {
			if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
				return err
			}
		}
		return tx.DeleteAccount(ctx, id)
	})
	s.opts.Metrics.RecordLedgerOp("delete_account", outcome(err))
	if err != nil {
		return fmt.Errorf("delete account %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Account deleted",
		log.FieldComponent, log.ComponentAccounts,
		log.FieldUserID, user.ID.String(),
		log.FieldAccountID, id)
	return nil
}
