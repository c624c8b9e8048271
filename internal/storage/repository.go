package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pecuny/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; concurrent InTx calls queue on the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InTx implements Store.
func (r *SQLiteRepository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&sqlTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Accounts

const accountColumns = `id, user_id, label, description, balance, version, created_at, updated_at`

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a                    core.Account
		userID, balance      string
		createdAt, updatedAt string
	)
	if err := row.Scan(&a.ID, &userID, &a.Label, &a.Description, &balance, &a.Version, &createdAt, &updatedAt); err != nil {
		return a, err
	}
	var err error
	if a.UserID, err = uuid.Parse(userID); err != nil {
		return a, fmt.Errorf("parse account user id: %w", err)
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return a, fmt.Errorf("parse account balance: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return a, err
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return a, err
	}
	return a, nil
}

func (t *sqlTx) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, core.NotFound("account", id)
	}
	if err != nil {
		return a, fmt.Errorf("get account %d: %w", id, err)
	}
	return a, nil
}

func (t *sqlTx) ListAccounts(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY id`, userID.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (t *sqlTx) CreateAccount(ctx context.Context, a *core.Account) error {
	stampCreated(&a.CreatedAt, &a.UpdatedAt)
	if a.Version == 0 {
		a.Version = 1
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id, label, description, balance, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.UserID.String(), a.Label, a.Description, formatDecimal(a.Balance), a.Version,
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateAccount(ctx context.Context, a *core.Account) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET label = ?, description = ?, balance = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		a.Label, a.Description, formatDecimal(a.Balance), formatTime(a.UpdatedAt), a.ID, a.Version)
	if err != nil {
		return fmt.Errorf("update account %d: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account %d: %w", a.ID, err)
	}
	if n == 0 {
		if _, err := t.GetAccount(ctx, a.ID); err != nil {
			return err
		}
		return fmt.Errorf("account %d version %d: %w", a.ID, a.Version, ErrConflict)
	}
	a.Version++
	return nil
}

func (t *sqlTx) DeleteAccount(ctx context.Context, id int64) error {
	return t.deleteByID(ctx, "accounts", "account", id)
}

// Reference data

func (t *sqlTx) GetSection(ctx context.Context, id int64) (core.Section, error) {
	var s core.Section
	err := t.tx.QueryRowContext(ctx, `SELECT id, label FROM sections WHERE id = ?`, id).Scan(&s.ID, &s.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return s, core.NotFound("section", id)
	}
	if err != nil {
		return s, fmt.Errorf("get section %d: %w", id, err)
	}
	return s, nil
}

func (t *sqlTx) ListSections(ctx context.Context) ([]core.Section, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, label FROM sections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var sections []core.Section
	for rows.Next() {
		var s core.Section
		if err := rows.Scan(&s.ID, &s.Label); err != nil {
			return nil, fmt.Errorf("scan section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c      core.Category
		userID sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Label, &c.SectionID, &userID); err != nil {
		return c, err
	}
	if userID.Valid {
		id, err := uuid.Parse(userID.String)
		if err != nil {
			return c, fmt.Errorf("parse category user id: %w", err)
		}
		c.UserID = &id
	}
	return c, nil
}

func (t *sqlTx) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT id, label, section_id, user_id FROM categories WHERE id = ?`, id)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return c, core.NotFound("category", id)
	}
	if err != nil {
		return c, fmt.Errorf("get category %d: %w", id, err)
	}
	return c, nil
}

func (t *sqlTx) ListCategories(ctx context.Context, sectionID int64) ([]core.Category, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, label, section_id, user_id FROM categories WHERE section_id = ? ORDER BY id`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Transaction information rows are shared by transactions and schedules.

func (t *sqlTx) insertInformation(ctx context.Context, info *core.TransactionInformation) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions_information (amount, reference, date, category_id) VALUES (?, ?, ?, ?)`,
		formatDecimal(info.Amount), info.Reference, formatTime(info.Date), info.CategoryID)
	if err != nil {
		return fmt.Errorf("create transaction information: %w", err)
	}
	if info.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create transaction information: %w", err)
	}
	return nil
}

func (t *sqlTx) updateInformation(ctx context.Context, info core.TransactionInformation) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transactions_information SET amount = ?, reference = ?, date = ?, category_id = ? WHERE id = ?`,
		formatDecimal(info.Amount), info.Reference, formatTime(info.Date), info.CategoryID, info.ID)
	if err != nil {
		return fmt.Errorf("update transaction information %d: %w", info.ID, err)
	}
	return nil
}

func (t *sqlTx) deleteInformation(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM transactions_information WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete transaction information %d: %w", id, err)
	}
	return nil
}

// Transactions

const transactionSelect = `SELECT t.id, t.account_id, t.offset_transaction_id, t.scheduled_transaction_id,
	t.created_at, t.updated_at, i.id, i.amount, i.reference, i.date, i.category_id
	FROM transactions t JOIN transactions_information i ON i.id = t.information_id`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tr                   core.Transaction
		offsetID, schedID    sql.NullInt64
		createdAt, updatedAt string
		amount, date         string
	)
	err := row.Scan(&tr.ID, &tr.AccountID, &offsetID, &schedID, &createdAt, &updatedAt,
		&tr.Information.ID, &amount, &tr.Information.Reference, &date, &tr.Information.CategoryID)
	if err != nil {
		return tr, err
	}
	tr.OffsetTransactionID = nullableID(offsetID)
	tr.ScheduledTransactionID = nullableID(schedID)
	if tr.Information.Amount, err = decimal.NewFromString(amount); err != nil {
		return tr, fmt.Errorf("parse amount: %w", err)
	}
	if tr.Information.Date, err = parseTime(date); err != nil {
		return tr, err
	}
	if tr.CreatedAt, err = parseTime(createdAt); err != nil {
		return tr, err
	}
	if tr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return tr, err
	}
	return tr, nil
}

func (t *sqlTx) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tr, err := scanTransaction(t.tx.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return tr, core.NotFound("transaction", id)
	}
	if err != nil {
		return tr, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return tr, nil
}

func (t *sqlTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where = append(where, "t.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.ScheduledTransactionID != 0 {
		where = append(where, "t.scheduled_transaction_id = ?")
		args = append(args, f.ScheduledTransactionID)
	}
	if f.From != nil {
		where = append(where, "i.date >= ?")
		args = append(args, formatTime(*f.From))
	}
	if f.To != nil {
		where = append(where, "i.date <= ?")
		args = append(args, formatTime(*f.To))
	}

	query := transactionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY i.date, t.id"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		tr, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, tr)
	}
	return transactions, rows.Err()
}

func (t *sqlTx) CreateTransaction(ctx context.Context, tr *core.Transaction) error {
	stampCreated(&tr.CreatedAt, &tr.UpdatedAt)
	if err := t.insertInformation(ctx, &tr.Information); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (account_id, information_id, offset_transaction_id, scheduled_transaction_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tr.AccountID, tr.Information.ID, nullInt(tr.OffsetTransactionID), nullInt(tr.ScheduledTransactionID),
		formatTime(tr.CreatedAt), formatTime(tr.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	if tr.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateTransaction(ctx context.Context, tr core.Transaction) error {
	if tr.UpdatedAt.IsZero() {
		tr.UpdatedAt = time.Now()
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET account_id = ?, offset_transaction_id = ?, scheduled_transaction_id = ?, updated_at = ?
		 WHERE id = ?`,
		tr.AccountID, nullInt(tr.OffsetTransactionID), nullInt(tr.ScheduledTransactionID), formatTime(tr.UpdatedAt), tr.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", tr.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("transaction", tr.ID)
	}
	return t.updateInformation(ctx, tr.Information)
}

func (t *sqlTx) DeleteTransaction(ctx context.Context, id int64) error {
	var infoID int64
	err := t.tx.QueryRowContext(ctx, `SELECT information_id FROM transactions WHERE id = ?`, id).Scan(&infoID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound("transaction", id)
	}
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if err := t.deleteByID(ctx, "transactions", "transaction", id); err != nil {
		return err
	}
	return t.deleteInformation(ctx, infoID)
}

func (t *sqlTx) LastMaterialization(ctx context.Context, scheduledID int64) (time.Time, bool, error) {
	var last sql.NullString
	err := t.tx.QueryRowContext(ctx,
		`SELECT MAX(created_at) FROM transactions WHERE scheduled_transaction_id = ?`, scheduledID).Scan(&last)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last materialization of schedule %d: %w", scheduledID, err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	ts, err := parseTime(last.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

func (t *sqlTx) DetachScheduled(ctx context.Context, scheduledID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE transactions SET scheduled_transaction_id = NULL WHERE scheduled_transaction_id = ?`, scheduledID)
	if err != nil {
		return fmt.Errorf("detach transactions of schedule %d: %w", scheduledID, err)
	}
	return nil
}

// Scheduled transactions

const scheduledSelect = `SELECT s.id, s.account_id, s.frequency, s.date_start, s.date_end, s.is_active,
	s.offset_account_id, s.created_at, s.updated_at, i.id, i.amount, i.reference, i.date, i.category_id
	FROM transactions_scheduled s JOIN transactions_information i ON i.id = s.information_id`

func scanScheduled(row rowScanner) (core.ScheduledTransaction, error) {
	var (
		s                    core.ScheduledTransaction
		frequency, dateStart string
		dateEnd              sql.NullString
		offsetID             sql.NullInt64
		createdAt, updatedAt string
		amount, date         string
	)
	err := row.Scan(&s.ID, &s.AccountID, &frequency, &dateStart, &dateEnd, &s.IsActive, &offsetID,
		&createdAt, &updatedAt, &s.Information.ID, &amount, &s.Information.Reference, &date, &s.Information.CategoryID)
	if err != nil {
		return s, err
	}
	s.Frequency = core.Frequency(frequency)
	s.OffsetAccountID = nullableID(offsetID)
	if s.DateStart, err = parseTime(dateStart); err != nil {
		return s, err
	}
	if dateEnd.Valid {
		end, err := parseTime(dateEnd.String)
		if err != nil {
			return s, err
		}
		s.DateEnd = &end
	}
	if s.Information.Amount, err = decimal.NewFromString(amount); err != nil {
		return s, fmt.Errorf("parse amount: %w", err)
	}
	if s.Information.Date, err = parseTime(date); err != nil {
		return s, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return s, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return s, err
	}
	return s, nil
}

func (t *sqlTx) GetScheduled(ctx context.Context, id int64) (core.ScheduledTransaction, error) {
	s, err := scanScheduled(t.tx.QueryRowContext(ctx, scheduledSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, core.NotFound("scheduled transaction", id)
	}
	if err != nil {
		return s, fmt.Errorf("get scheduled transaction %d: %w", id, err)
	}
	return s, nil
}

func (t *sqlTx) ListScheduled(ctx context.Context, f ScheduledFilter) ([]core.ScheduledTransaction, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where = append(where, "s.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.OffsetAccountID != 0 {
		where = append(where, "s.offset_account_id = ?")
		args = append(args, f.OffsetAccountID)
	}
	if f.ActiveOnly {
		where = append(where, "s.is_active = 1")
	}

	query := scheduledSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.id"

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scheduled transactions: %w", err)
	}
	defer rows.Close()

	var schedules []core.ScheduledTransaction
	for rows.Next() {
		s, err := scanScheduled(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scheduled transaction: %w", err)
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

func (t *sqlTx) CreateScheduled(ctx context.Context, s *core.ScheduledTransaction) error {
	stampCreated(&s.CreatedAt, &s.UpdatedAt)
	if err := t.insertInformation(ctx, &s.Information); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions_scheduled
		 (account_id, information_id, frequency, date_start, date_end, is_active, offset_account_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.AccountID, s.Information.ID, string(s.Frequency), formatTime(s.DateStart), nullTime(s.DateEnd),
		s.IsActive, nullInt(s.OffsetAccountID), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create scheduled transaction: %w", err)
	}
	if s.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create scheduled transaction: %w", err)
	}
	return nil
}

func (t *sqlTx) UpdateScheduled(ctx context.Context, s core.ScheduledTransaction) error {
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE transactions_scheduled SET frequency = ?, date_start = ?, date_end = ?, is_active = ?,
		 offset_account_id = ?, updated_at = ? WHERE id = ?`,
		string(s.Frequency), formatTime(s.DateStart), nullTime(s.DateEnd), s.IsActive,
		nullInt(s.OffsetAccountID), formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("update scheduled transaction %d: %w", s.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound("scheduled transaction", s.ID)
	}
	return t.updateInformation(ctx, s.Information)
}

func (t *sqlTx) DeleteScheduled(ctx context.Context, id int64) error {
	var infoID int64
	err := t.tx.QueryRowContext(ctx, `SELECT information_id FROM transactions_scheduled WHERE id = ?`, id).Scan(&infoID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.NotFound("scheduled transaction", id)
	}
	if err != nil {
		return fmt.Errorf("delete scheduled transaction %d: %w", id, err)
	}
	if err := t.deleteByID(ctx, "transactions_scheduled", "scheduled transaction", id); err != nil {
		return err
	}
	return t.deleteInformation(ctx, infoID)
}

func (t *sqlTx) deleteByID(ctx context.Context, table, kind string, id int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFound(kind, id)
	}
	return nil
}

func stampCreated(createdAt, updatedAt *time.Time) {
	if createdAt.IsZero() {
		*createdAt = time.Now()
	}
	if updatedAt.IsZero() {
		*updatedAt = *createdAt
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return t, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func formatDecimal(d decimal.Decimal) string {
	return d.StringFixed(core.AmountPlaces)
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*p), Valid: true}
}

func nullableID(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}
