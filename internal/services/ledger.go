// Package services holds the ledger use cases: account management, the
// transaction engine that keeps balances consistent, schedule management,
// the recurring expander and the CSV importer.
//
// Every mutation runs inside one storage.Store atomic unit. Account writes
// are compare-and-swap on the account version; a lost swap rolls the whole
// unit back and the unit is replayed from scratch.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/metrics"
	"pecuny/internal/storage"
)

// DefaultMaxRetries is used when a service is built with a negative retry
// budget.
const DefaultMaxRetries = 3

// Options carries the collaborators shared by the ledger services.
type Options struct {
	// MaxRetries is how many times a unit is replayed after a version
	// conflict before ErrConcurrentModification is returned.
	MaxRetries int
	Metrics    metrics.Recorder
	// Now is the clock used for CreatedAt and UpdatedAt stamps.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NoOp{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// unitRunner replays atomic units that lost an account version race.
type unitRunner struct {
	store      storage.Store
	maxRetries int
	metrics    metrics.Recorder
}

func newUnitRunner(store storage.Store, opts Options) unitRunner {
	return unitRunner{store: store, maxRetries: opts.MaxRetries, metrics: opts.Metrics}
}

// run executes fn in one atomic unit. fn must not keep state between calls
// since it may run more than once.
func (r unitRunner) run(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	for attempt := 0; ; attempt++ {
		err := r.store.InTx(ctx, fn)
		if err == nil || !errors.Is(err, storage.ErrConflict) {
			return err
		}
		if attempt >= r.maxRetries {
			slog.WarnContext(ctx, "Giving up after version conflicts",
				log.FieldOperation, op,
				log.FieldAttempt, attempt+1,
				log.FieldError, err)
			return fmt.Errorf("%s: %w", op, core.ErrConcurrentModification)
		}
		r.metrics.RecordConflictRetry(op)
		slog.DebugContext(ctx, "Retrying after version conflict",
			log.FieldOperation, op,
			log.FieldAttempt, attempt+1)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// ownedAccount loads an account and checks that user owns it.
func ownedAccount(ctx context.Context, tx storage.Tx, user core.User, id int64) (core.Account, error) {
	acc, err := tx.GetAccount(ctx, id)
	if err != nil {
		return acc, err
	}
	if !acc.OwnedBy(user) {
		return acc, core.AccessDenied(user, "account", id)
	}
	return acc, nil
}

// visibleCategory loads a category usable by user. Categories scoped to
// another user are reported as missing.
func visibleCategory(ctx context.Context, tx storage.Tx, user core.User, id int64) (core.Category, error) {
	cat, err := tx.GetCategory(ctx, id)
	if err != nil {
		return cat, err
	}
	if !cat.VisibleTo(user) {
		return cat, core.NotFound("category", id)
	}
	return cat, nil
}

func outcome(err error) string {
	if err != nil {
		return metrics.OutcomeError
	}
	return metrics.OutcomeOK
}
