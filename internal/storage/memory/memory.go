package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"pecuny/internal/core"
	"pecuny/internal/storage"
)

// Store keeps the ledger in process memory. Each InTx works on a private
// copy of the committed state which replaces it when fn succeeds, so a
// failed unit leaves no trace. Units run one at a time.
type Store struct {
	mu    sync.Mutex
	state *state
}

type state struct {
	seq          int64
	accounts     map[int64]core.Account
	sections     map[int64]core.Section
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	scheduled    map[int64]core.ScheduledTransaction
}

// New returns a store seeded with the default sections and categories.
func New() *Store {
	return NewWithTaxonomy(Sections(), Categories())
}

func NewWithTaxonomy(sections []core.Section, categories []core.Category) *Store {
	st := &state{
		seq:          1000,
		accounts:     map[int64]core.Account{},
		sections:     map[int64]core.Section{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
		scheduled:    map[int64]core.ScheduledTransaction{},
	}
	for _, s := range sections {
		st.sections[s.ID] = s
	}
	for _, c := range categories {
		st.categories[c.ID] = cloneCategory(c)
	}
	return &Store{state: st}
}

// InTx implements storage.Store.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

// AddCategory registers a category outside of a transaction, e.g. a user
// scoped one in tests.
func (s *Store) AddCategory(c core.Category) core.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.state.nextID()
	}
	s.state.categories[c.ID] = cloneCategory(c)
	return c
}

func (st *state) clone() *state {
	return &state{
		seq:          st.seq,
		accounts:     maps.Clone(st.accounts),
		sections:     maps.Clone(st.sections),
		categories:   maps.Clone(st.categories),
		transactions: maps.Clone(st.transactions),
		scheduled:    maps.Clone(st.scheduled),
	}
}

func (st *state) nextID() int64 {
	st.seq++
	return st.seq
}

type memTx struct {
	st *state
}

func (t *memTx) GetAccount(_ context.Context, id int64) (core.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return core.Account{}, core.NotFound("account", id)
	}
	return a, nil
}

func (t *memTx) ListAccounts(_ context.Context, userID uuid.UUID) ([]core.Account, error) {
	var out []core.Account
	for _, a := range t.st.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b core.Account) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *memTx) CreateAccount(_ context.Context, a *core.Account) error {
	stamp(&a.CreatedAt, &a.UpdatedAt)
	if a.Version == 0 {
		a.Version = 1
	}
	a.ID = t.st.nextID()
	t.st.accounts[a.ID] = *a
	return nil
}

func (t *memTx) UpdateAccount(_ context.Context, a *core.Account) error {
	stored, ok := t.st.accounts[a.ID]
	if !ok {
		return core.NotFound("account", a.ID)
	}
	if stored.Version != a.Version {
		return fmt.Errorf("account %d version %d: %w", a.ID, a.Version, storage.ErrConflict)
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	a.Version++
	a.CreatedAt = stored.CreatedAt
	t.st.accounts[a.ID] = *a
	return nil
}

func (t *memTx) DeleteAccount(_ context.Context, id int64) error {
	if _, ok := t.st.accounts[id]; !ok {
		return core.NotFound("account", id)
	}
	for _, tr := range t.st.transactions {
		if tr.AccountID == id {
			return fmt.Errorf("delete account %d: transaction %d still references it", id, tr.ID)
		}
	}
	for _, s := range t.st.scheduled {
		if s.AccountID == id {
			return fmt.Errorf("delete account %d: scheduled transaction %d still references it", id, s.ID)
		}
		if s.OffsetAccountID != nil && *s.OffsetAccountID == id {
			s.OffsetAccountID = nil
			t.st.scheduled[s.ID] = s
		}
	}
	delete(t.st.accounts, id)
	return nil
}

func (t *memTx) GetSection(_ context.Context, id int64) (core.Section, error) {
	s, ok := t.st.sections[id]
	if !ok {
		return core.Section{}, core.NotFound("section", id)
	}
	return s, nil
}

func (t *memTx) ListSections(_ context.Context) ([]core.Section, error) {
	out := make([]core.Section, 0, len(t.st.sections))
	for _, s := range t.st.sections {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b core.Section) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *memTx) GetCategory(_ context.Context, id int64) (core.Category, error) {
	c, ok := t.st.categories[id]
	if !ok {
		return core.Category{}, core.NotFound("category", id)
	}
	return cloneCategory(c), nil
}

func (t *memTx) ListCategories(_ context.Context, sectionID int64) ([]core.Category, error) {
	var out []core.Category
	for _, c := range t.st.categories {
		if c.SectionID == sectionID {
			out = append(out, cloneCategory(c))
		}
	}
	slices.SortFunc(out, func(a, b core.Category) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *memTx) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return cloneTransaction(tr), nil
}

func (t *memTx) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, tr := range t.st.transactions {
		if f.Match(tr) {
			out = append(out, cloneTransaction(tr))
		}
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := a.Information.Date.Compare(b.Information.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (t *memTx) CreateTransaction(_ context.Context, tr *core.Transaction) error {
	if err := t.checkReferences(tr.AccountID, tr.Information.CategoryID); err != nil {
		return err
	}
	stamp(&tr.CreatedAt, &tr.UpdatedAt)
	tr.ID = t.st.nextID()
	tr.Information.ID = t.st.nextID()
	t.st.transactions[tr.ID] = cloneTransaction(*tr)
	return nil
}

func (t *memTx) UpdateTransaction(_ context.Context, tr core.Transaction) error {
	stored, ok := t.st.transactions[tr.ID]
	if !ok {
		return core.NotFound("transaction", tr.ID)
	}
	if err := t.checkReferences(tr.AccountID, tr.Information.CategoryID); err != nil {
		return err
	}
	if tr.UpdatedAt.IsZero() {
		tr.UpdatedAt = time.Now()
	}
	tr.CreatedAt = stored.CreatedAt
	tr.Information.ID = stored.Information.ID
	t.st.transactions[tr.ID] = cloneTransaction(tr)
	return nil
}

func (t *memTx) DeleteTransaction(_ context.Context, id int64) error {
	if _, ok := t.st.transactions[id]; !ok {
		return core.NotFound("transaction", id)
	}
	delete(t.st.transactions, id)
	for _, other := range t.st.transactions {
		if other.OffsetTransactionID != nil && *other.OffsetTransactionID == id {
			other.OffsetTransactionID = nil
			t.st.transactions[other.ID] = other
		}
	}
	return nil
}

func (t *memTx) LastMaterialization(_ context.Context, scheduledID int64) (time.Time, bool, error) {
	var (
		last  time.Time
		found bool
	)
	for _, tr := range t.st.transactions {
		if tr.ScheduledTransactionID == nil || *tr.ScheduledTransactionID != scheduledID {
			continue
		}
		if !found || tr.CreatedAt.After(last) {
			last, found = tr.CreatedAt, true
		}
	}
	return last, found, nil
}

func (t *memTx) DetachScheduled(_ context.Context, scheduledID int64) error {
	for _, tr := range t.st.transactions {
		if tr.ScheduledTransactionID != nil && *tr.ScheduledTransactionID == scheduledID {
			tr.ScheduledTransactionID = nil
			t.st.transactions[tr.ID] = tr
		}
	}
	return nil
}

func (t *memTx) GetScheduled(_ context.Context, id int64) (core.ScheduledTransaction, error) {
	s, ok := t.st.scheduled[id]
	if !ok {
		return core.ScheduledTransaction{}, core.NotFound("scheduled transaction", id)
	}
	return cloneScheduled(s), nil
}

func (t *memTx) ListScheduled(_ context.Context, f storage.ScheduledFilter) ([]core.ScheduledTransaction, error) {
	var out []core.ScheduledTransaction
	for _, s := range t.st.scheduled {
		if f.Match(s) {
			out = append(out, cloneScheduled(s))
		}
	}
	slices.SortFunc(out, func(a, b core.ScheduledTransaction) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *memTx) CreateScheduled(_ context.Context, s *core.ScheduledTransaction) error {
	if err := t.checkReferences(s.AccountID, s.Information.CategoryID); err != nil {
		return err
	}
	stamp(&s.CreatedAt, &s.UpdatedAt)
	s.ID = t.st.nextID()
	s.Information.ID = t.st.nextID()
	t.st.scheduled[s.ID] = cloneScheduled(*s)
	return nil
}

func (t *memTx) UpdateScheduled(_ context.Context, s core.ScheduledTransaction) error {
	stored, ok := t.st.scheduled[s.ID]
	if !ok {
		return core.NotFound("scheduled transaction", s.ID)
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	s.CreatedAt = stored.CreatedAt
	s.Information.ID = stored.Information.ID
	t.st.scheduled[s.ID] = cloneScheduled(s)
	return nil
}

func (t *memTx) DeleteScheduled(_ context.Context, id int64) error {
	if _, ok := t.st.scheduled[id]; !ok {
		return core.NotFound("scheduled transaction", id)
	}
	delete(t.st.scheduled, id)
	return t.DetachScheduled(context.Background(), id)
}

// checkReferences mirrors the foreign keys of the SQL schema.
func (t *memTx) checkReferences(accountID, categoryID int64) error {
	if _, ok := t.st.accounts[accountID]; !ok {
		return core.NotFound("account", accountID)
	}
	if _, ok := t.st.categories[categoryID]; !ok {
		return core.NotFound("category", categoryID)
	}
	return nil
}

func stamp(createdAt, updatedAt *time.Time) {
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

func cloneID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneCategory(c core.Category) core.Category {
	if c.UserID != nil {
		id := *c.UserID
		c.UserID = &id
	}
	return c
}

func cloneTransaction(tr core.Transaction) core.Transaction {
	tr.OffsetTransactionID = cloneID(tr.OffsetTransactionID)
	tr.ScheduledTransactionID = cloneID(tr.ScheduledTransactionID)
	return tr
}

func cloneScheduled(s core.ScheduledTransaction) core.ScheduledTransaction {
	s.OffsetAccountID = cloneID(s.OffsetAccountID)
	if s.DateEnd != nil {
		end := *s.DateEnd
		s.DateEnd = &end
	}
	return s
}
