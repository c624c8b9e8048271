package services

import (
	"context"
	"fmt"
	"log/slog"

	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/storage"
)

// ScheduledService manages the schedules the recurring expander turns into
// ledger entries.
type ScheduledService struct {
	store  storage.Store
	runner unitRunner
	opts   Options
}

func NewScheduledService(store storage.Store, opts Options) *ScheduledService {
	opts = opts.withDefaults()
	return &ScheduledService{store: store, runner: newUnitRunner(store, opts), opts: opts}
}

func (s *ScheduledService) CreateScheduled(ctx context.Context, user core.User, data core.ScheduledTransactionData) (core.ScheduledTransaction, error) {
	if err := data.Validate(); err != nil {
		return core.ScheduledTransaction{}, err
	}

	var created core.ScheduledTransaction
	err := s.runner.run(ctx, "create_scheduled", func(tx storage.Tx) error {
		if _, err := ownedAccount(ctx, tx, user, data.AccountID); err != nil {
			return err
		}
		if data.OffsetAccountID != nil {
			if _, err := ownedAccount(ctx, tx, user, *data.OffsetAccountID); err != nil {
				return err
			}
		}
		if _, err := visibleCategory(ctx, tx, user, data.CategoryID); err != nil {
			return err
		}
		now := s.opts.Now()
		created = core.ScheduledTransaction{
			AccountID: data.AccountID,
			Information: core.TransactionInformation{
				Amount:     core.RoundAmount(data.Amount),
				Reference:  data.Reference,
				Date:       data.DateStart,
				CategoryID: data.CategoryID,
			},
			Frequency:       data.Frequency,
			DateStart:       data.DateStart,
			DateEnd:         data.DateEnd,
			IsActive:        true,
			OffsetAccountID: cloneID(data.OffsetAccountID),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		return tx.CreateScheduled(ctx, &created)
	})
	s.opts.Metrics.RecordLedgerOp("create_scheduled", outcome(err))
	if err != nil {
		return core.ScheduledTransaction{}, fmt.Errorf("create scheduled transaction: %w", err)
	}

	slog.InfoContext(ctx, "Scheduled transaction created",
		log.FieldComponent, log.ComponentScheduler,
		log.FieldUserID, user.ID.String(),
		log.FieldScheduledID, created.ID,
		log.FieldAccountID, created.AccountID,
		log.FieldFrequency, string(created.Frequency))
	return created, nil
}

func (s *ScheduledService) GetScheduled(ctx context.Context, user core.User, id int64) (core.ScheduledTransaction, error) {
	var sc core.ScheduledTransaction
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		if sc, err = tx.GetScheduled(ctx, id); err != nil {
			return err
		}
		_, err = ownedAccount(ctx, tx, user, sc.AccountID)
		return err
	})
	if err != nil {
		return core.ScheduledTransaction{}, fmt.Errorf("get scheduled transaction %d: %w", id, err)
	}
	return sc, nil
}

func (s *ScheduledService) ListScheduled(ctx context.Context, user core.User, accountID int64) ([]core.ScheduledTransaction, error) {
	var out []core.ScheduledTransaction
	err := s.store.InTx(ctx, func(tx storage.Tx) error {
		if _, err := ownedAccount(ctx, tx, user, accountID); err != nil {
			return err
		}
		var err error
		out, err = tx.ListScheduled(ctx, storage.ScheduledFilter{AccountID: accountID})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list scheduled transactions of account %d: %w", accountID, err)
	}
	return out, nil
}

// UpdateScheduled applies a partial update. Entries already materialized
// are left untouched.
func (s *ScheduledService) UpdateScheduled(ctx context.Context, user core.User, id int64, upd core.ScheduledTransactionUpdate) (core.ScheduledTransaction, error) {
	var updated core.ScheduledTransaction
	err := s.runner.run(ctx, "update_scheduled", func(tx storage.Tx) error {
		sc, err := tx.GetScheduled(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedAccount(ctx, tx, user, sc.AccountID); err != nil {
			return err
		}
		if err := upd.Apply(&sc); err != nil {
			return err
		}
		if sc.OffsetAccountID != nil {
			if _, err := ownedAccount(ctx, tx, user, *sc.OffsetAccountID); err != nil {
				return err
			}
		}
		if _, err := visibleCategory(ctx, tx, user, sc.Information.CategoryID); err != nil {
			return err
		}
		sc.UpdatedAt = s.opts.Now()
		if err := tx.UpdateScheduled(ctx, sc); err != nil {
			return err
		}
		updated = sc
		return nil
	})
	s.opts.Metrics.RecordLedgerOp("update_scheduled", outcome(err))
	if err != nil {
		return core.ScheduledTransaction{}, fmt.Errorf("update scheduled transaction %d: %w", id, err)
	}
	return updated, nil
}

// DeleteScheduled removes the schedule. Entries it produced stay on the
// ledger without a schedule reference.
func (s *ScheduledService) DeleteScheduled(ctx context.Context, user core.User, id int64) error {
	err := s.runner.run(ctx, "delete_scheduled", func(tx storage.Tx) error {
		sc, err := tx.GetScheduled(ctx, id)
		if err != nil {
			return err
		}
		if _, err := ownedAccount(ctx, tx, user, sc.AccountID); err != nil {
			return err
		}
		if err := tx.DetachScheduled(ctx, id); err != nil {
			return err
		}
		return tx.DeleteScheduled(ctx, id)
	})
	s.opts.Metrics.RecordLedgerOp("delete_scheduled", outcome(err))
	if err != nil {
		return fmt.Errorf("delete scheduled transaction %d: %w", id, err)
	}

	slog.InfoContext(ctx, "Scheduled transaction deleted",
		log.FieldComponent, log.ComponentScheduler,
		log.FieldUserID, user.ID.String(),
		log.FieldScheduledID, id)
	return nil
}
