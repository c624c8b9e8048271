package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/storage"
)

// TransactionService is the transaction engine. It books entries, mirrors
// transfers onto the offset account and keeps every touched account balance
// equal to the sum of its entries.
type TransactionService struct {
	store  storage.Store
	runner unitRunner
	opts   Options
}

func NewTransactionService(store storage.Store, opts Options) *TransactionService {
	opts = opts.withDefaults()
	return &TransactionService{
		store:  store,
		runner: newUnitRunner(store, opts),
		opts:   opts,
	}
}

// CreateTransaction books data on the account. When an offset account is
// given a mirrored entry with the negated amount is booked there and both
// entries are linked.
func (s *TransactionService) CreateTransaction(ctx context.Context, user core.User, data core.TransactionData) (core.Transaction, error) {
	if err := data.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var created core.Transaction
	err := s.runner.run(ctx, "create_transaction", func(tx storage.Tx) error {
		t, err := s.createInTx(ctx, tx, user, data, s.opts.Now())
		created = t
		return err
	})
	s.opts.Metrics.RecordLedgerOp("create_transaction", outcome(err))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created", log.NewFields().
		WithComponent(log.ComponentLedger).
		WithUser(user.ID).
		WithTransaction(created.ID, created.AccountID, core.FormatAmount(created.Information.Amount)).
		ToSlice()...)
	return created, nil
}

// createInTx books data inside an open unit, stamping both entries with at.
func (s *TransactionService) createInTx(ctx context.Context, tx storage.Tx, user core.User, data core.TransactionData, at time.Time) (core.Transaction, error) {
	acc, err := ownedAccount(ctx, tx, user, data.AccountID)
	if err != nil {
		return core.Transaction{}, err
	}
	var offsetAcc core.Account
	if data.OffsetAccountID != nil {
		if offsetAcc, err = ownedAccount(ctx, tx, user, *data.OffsetAccountID); err != nil {
			return core.Transaction{}, err
		}
	}
	if _, err := visibleCategory(ctx, tx, user, data.CategoryID); err != nil {
		return core.Transaction{}, err
	}

	amount := core.RoundAmount(data.Amount)
	primary := core.Transaction{
		AccountID: acc.ID,
		Information: core.TransactionInformation{
			Amount:     amount,
			Reference:  data.Reference,
			Date:       data.Date,
			CategoryID: data.CategoryID,
		},
		ScheduledTransactionID: cloneID(data.ScheduledTransactionID),
		CreatedAt:              at,
		UpdatedAt:              at,
	}
	if err := tx.CreateTransaction(ctx, &primary); err != nil {
		return core.Transaction{}, err
	}
	acc.Balance = acc.Balance.Add(amount)
	acc.UpdatedAt = at
	if err := tx.UpdateAccount(ctx, &acc); err != nil {
		return core.Transaction{}, err
	}

	if data.OffsetAccountID == nil {
		return primary, nil
	}

	mirror := core.Transaction{
		AccountID: offsetAcc.ID,
		Information: core.TransactionInformation{
			Amount:     amount.Neg(),
			Reference:  data.Reference,
			Date:       data.Date,
			CategoryID: data.CategoryID,
		},
		OffsetTransactionID:    &primary.ID,
		ScheduledTransactionID: cloneID(data.ScheduledTransactionID),
		CreatedAt:              at,
		UpdatedAt:              at,
	}
	if err := tx.CreateTransaction(ctx, &mirror); err != nil {
		return core.Transaction{}, err
	}
	primary.OffsetTransactionID = &mirror.ID
	if err := tx.UpdateTransaction(ctx, primary); err != nil {
		return core.Transaction{}, err
	}
	offsetAcc.Balance = offsetAcc.Balance.Add(mirror.Information.Amount)
	offsetAcc.UpdatedAt = at
	if err := tx.UpdateAccount(ctx, &offsetAcc); err != nil {
		return core.Transaction{}, err
	}
	return primary, nil
}

// UpdateTransaction replaces amount, reference, date and category. The
// account moves by the rounded difference; a linked entry gets the negated
// amount and its account moves by the opposite difference.
func (s *TransactionService) UpdateTransaction(ctx context.Context, user core.User, id int64, upd core.TransactionUpdate) (core.Transaction, error) {
	if err := upd.Validate(); err != nil {
		return core.Transaction{}, err
	}

	var updated core.Transaction
	err := s.runner.run(ctx, "update_transaction", func(tx storage.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		acc, err := ownedAccount(ctx, tx, user, t.AccountID)
		if err != nil {
			return err
		}
		if _, err := visibleCategory(ctx, tx, user, upd.CategoryID); err != nil {
			return err
		}

		now := s.opts.Now()
		amount := core.RoundAmount(upd.Amount)
		delta := amount.Sub(t.Information.Amount)

		t.Information.Amount = amount
		t.Information.Reference = upd.Reference
		t.Information.Date = upd.Date
		t.Information.CategoryID = upd.CategoryID
		t.UpdatedAt = now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		acc.Balance = acc.Balance.Add(delta)
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, &acc); err != nil {
			return err
		}

		if t.OffsetTransactionID != nil {
			mirror, err := tx.GetTransaction(ctx, *t.OffsetTransactionID)
			if err != nil {
				return err
			}
			offsetAcc, err := ownedAccount(ctx, tx, user, mirror.AccountID)
			if err != nil {
				return err
			}
			mirror.Information.Amount = amount.Neg()
			mirror.Information.Reference = upd.Reference
			mirror.Information.Date = upd.Date
			mirror.Information.CategoryID = upd.CategoryID
			mirror.UpdatedAt = now
			if err := tx.UpdateTransaction(ctx, mirror); err != nil {
				return err
			}
			offsetAcc.Balance = offsetAcc.Balance.Sub(delta)
			offsetAcc.UpdatedAt = now
			if err := tx.UpdateAccount(ctx, &offsetAcc); err != nil {
				return err
			}
		}
		updated = t
		return nil
	})
	s.opts.Metrics.RecordLedgerOp("update_transaction", outcome(err))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction updated", log.NewFields().
		WithComponent(log.ComponentLedger).
		WithUser(user.ID).
		WithTransaction(updated.ID, updated.AccountID, core.FormatAmount(updated.Information.Amount)).
		ToSlice()...)
	return updated, nil
}

// DeleteTransaction removes the entry and its linked entry, reversing their
// effect on both balances.
func (s *TransactionService) DeleteTransaction(ctx context.Context, user core.User, id int64) error {
	err := s.runner.run(ctx, "delete_transaction", func(tx storage.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		acc, err := ownedAccount(ctx, tx, user, t.AccountID)
		if err != nil {
			return err
		}
		now := s.opts.Now()

		if t.OffsetTransactionID != nil {
			mirror, err := tx.GetTransaction(ctx, *t.OffsetTransactionID)
			if err != nil {
				return err
			}
			offsetAcc, err := ownedAccount(ctx, tx, user, mirror.AccountID)
			if err != nil {
				return err
			}
			if err := tx.DeleteTransaction(ctx, mirror.ID); err != nil {
				return err
			}
			offsetAcc.Balance = offsetAcc.Balance.Sub(mirror.Information.Amount)
			offsetAcc.UpdatedAt = now
			if err := tx.UpdateAccount(ctx, &offsetAcc); err != nil {
				return err
			}
		}

		if err := tx.DeleteTransaction(ctx, t.ID); err != nil {
			return err
		}
		acc.Balance = acc.Balance.Sub(t.Information.Amount)
		acc.UpdatedAt = now
		return tx.UpdateAccount(ctx, &acc)
	})
	s.opts.Metrics.RecordLedgerOp("delete_transaction", outcome(err))
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldComponent, log.ComponentLedger,
		log.FieldUserID, user.ID.String(),
		log.FieldTransactionID, id)
	return nil
}

func (s *TransactionService) GetTransaction(ctx context.Context, user core.User, id int64) (core.Transaction, error) {
	var t core.Transaction
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		if t, err = tx.GetTransaction(ctx, id); err != nil {
			return err
		}
		_, err = ownedAccount(ctx, tx, user, t.AccountID)
		return err
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// ListTransactions returns the account's entries whose date lies within the
// optional inclusive bounds.
func (s *TransactionService) ListTransactions(ctx context.Context, user core.User, accountID int64, from, to *time.Time) ([]core.Transaction, error) {
	var out []core.Transaction
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := ownedAccount(ctx, tx, user, accountID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListTransactions(ctx, storage.TransactionFilter{AccountID: accountID, From: from, To: to})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions of account %d: %w", accountID, err)
	}
	return out, nil
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
