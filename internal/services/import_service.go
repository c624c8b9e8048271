package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"pecuny/internal/amqp"
	"pecuny/internal/core"
	"pecuny/internal/log"
	"pecuny/internal/metrics"
	"pecuny/internal/storage"
)

const (
	colDate          = "date"
	colReference     = "reference"
	colAmount        = "amount"
	colSection       = "section"
	colCategory      = "category"
	colOffsetAccount = "offset_account_id"

	reportTimeout = 10 * time.Second
)

var requiredColumns = []string{colDate, colReference, colAmount, colSection, colCategory}

// File-level import failures.
var (
	ErrEmptyFile       = errors.New("import file is empty")
	ErrInvalidEncoding = errors.New("import file is not valid UTF-8")
	ErrMissingColumns  = errors.New("import file misses required columns")
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReportPublisher delivers the outcome of an import to its owner.
type ReportPublisher interface {
	PublishImportReport(ctx context.Context, msg *amqp.ImportReportMessage) error
}

// ImportRecord holds the raw fields of one CSV row.
type ImportRecord struct {
	Date          string
	Reference     string
	Amount        string
	Section       string
	Category      string
	OffsetAccount string
}

// RowResult is the outcome of one CSV row. Exactly one of Transaction and
// Reason is meaningful, as told by OK.
type RowResult struct {
	// Row counts data rows from 1; Line is the physical line in the file.
	Row         int
	Line        int
	OK          bool
	Transaction core.Transaction
	Reason      string
	Record      ImportRecord
}

// ImportResult summarizes a whole file.
type ImportResult struct {
	AccountID int64
	Total     int
	Succeeded int
	Rows      []RowResult
}

// Failures returns the rejected rows in file order.
func (r ImportResult) Failures() []RowResult {
	var out []RowResult
	for _, row := range r.Rows {
		if !row.OK {
			out = append(out, row)
		}
	}
	return out
}

// ImportService books semicolon separated CSV files onto one account. Each
// row is its own atomic unit, so a bad row never affects the others.
type ImportService struct {
	store        storage.Store
	transactions *TransactionService
	taxonomy     *TaxonomyService
	publisher    ReportPublisher
	metrics      metrics.Recorder
}

// NewImportService builds the importer. publisher may be nil, in which case
// reports are only logged.
func NewImportService(store storage.Store, transactions *TransactionService, taxonomy *TaxonomyService, publisher ReportPublisher, opts Options) *ImportService {
	opts = opts.withDefaults()
	return &ImportService{
		store:        store,
		transactions: transactions,
		taxonomy:     taxonomy,
		publisher:    publisher,
		metrics:      opts.Metrics,
	}
}

// Import reads the whole file and books every valid row. The returned error
// is reserved for problems with the file itself or the target account; row
// problems are reported in the result.
func (s *ImportService) Import(ctx context.Context, user core.User, accountID int64, r io.Reader) (ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read import file: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return ImportResult{}, ErrEmptyFile
	}
	if !utf8.Valid(data) {
		return ImportResult{}, ErrInvalidEncoding
	}

	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		_, err := ownedAccount(ctx, tx, user, accountID)
		return err
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import into account %d: %w", accountID, err)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return ImportResult{}, fmt.Errorf("read header: %w", err)
	}
	columns, err := headerIndex(header)
	if err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{AccountID: accountID}
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		var res RowResult
		if err != nil {
			res = RowResult{Row: row, Reason: fmt.Sprintf("malformed row: %v", err)}
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				res.Line = perr.StartLine
			}
		} else {
			line, _ := reader.FieldPos(0)
			res = s.importRow(ctx, user, accountID, row, line, columns.record(fields))
		}

		result.Total++
		if res.OK {
			result.Succeeded++
			s.metrics.RecordImportRow(metrics.OutcomeOK)
		} else {
			s.metrics.RecordImportRow(metrics.OutcomeError)
			slog.WarnContext(ctx, "Import row rejected", log.NewFields().
				WithComponent(log.ComponentImporter).
				WithUser(user.ID).
				WithRow(res.Row, res.Line).
				ToSlice()...)
		}
		result.Rows = append(result.Rows, res)
	}

	slog.InfoContext(ctx, "Import finished",
		log.FieldComponent, log.ComponentImporter,
		log.FieldUserID, user.ID.String(),
		log.FieldAccountID, accountID,
		"total", result.Total,
		"imported", result.Succeeded,
		"failed", result.Total-result.Succeeded)

	s.report(ctx, user, result)
	return result, nil
}

func (s *ImportService) importRow(ctx context.Context, user core.User, accountID int64, row, line int, rec ImportRecord) RowResult {
	res := RowResult{Row: row, Line: line, Record: rec}

	date, err := core.ParseDate(rec.Date)
	if err != nil {
		res.Reason = err.Error()
		return res
	}
	section, err := s.taxonomy.ResolveSection(ctx, rec.Section)
	if err != nil {
		res.Reason = lookupReason(err)
		return res
	}
	category, err := s.taxonomy.ResolveCategory(ctx, user, section.ID, rec.Category)
	if err != nil {
		res.Reason = lookupReason(err)
		return res
	}
	amount, err := core.ParseAmount(rec.Amount)
	if err != nil {
		res.Reason = fmt.Sprintf("invalid amount on line %d: %q", line, rec.Amount)
		return res
	}

	data := core.TransactionData{
		AccountID:  accountID,
		Amount:     amount,
		Reference:  rec.Reference,
		Date:       date,
		CategoryID: category.ID,
	}
	if raw := strings.TrimSpace(rec.OffsetAccount); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			res.Reason = fmt.Sprintf("invalid offset account on line %d: %q", line, rec.OffsetAccount)
			return res
		}
		data.OffsetAccountID = &id
	}

	t, err := s.transactions.CreateTransaction(ctx, user, data)
	if err != nil {
		res.Reason = createReason(err)
		slog.DebugContext(ctx, "Import row not booked",
			log.FieldComponent, log.ComponentImporter,
			log.FieldLine, line,
			log.FieldError, err)
		return res
	}
	res.OK = true
	res.Transaction = t
	return res
}

// report hands the summary to the publisher without letting its failure
// reach the caller.
func (s *ImportService) report(ctx context.Context, user core.User, result ImportResult) {
	failures := result.Failures()
	failed := make([]amqp.FailedRow, 0, len(failures))
	for _, f := range failures {
		failed = append(failed, amqp.FailedRow{
			Row:       f.Row,
			Line:      f.Line,
			Reason:    f.Reason,
			Date:      f.Record.Date,
			Reference: f.Record.Reference,
			Amount:    f.Record.Amount,
			Section:   f.Record.Section,
			Category:  f.Record.Category,
			Offset:    f.Record.OffsetAccount,
		})
	}
	msg := amqp.NewImportReportMessage(user.ID, result.AccountID, result.Total, result.Succeeded, failed)

	if s.publisher == nil {
		slog.InfoContext(ctx, "No report publisher configured, skipping import report",
			log.FieldComponent, log.ComponentImporter,
			log.FieldMessageID, msg.MessageID.String())
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()
	if err := s.publisher.PublishImportReport(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish import report",
			log.FieldComponent, log.ComponentImporter,
			log.FieldMessageID, msg.MessageID.String(),
			log.FieldError, err)
	}
}

// lookupReason keeps "Section X not found" style messages and hides the
// rest behind a generic text.
func lookupReason(err error) string {
	var ref *core.ReferenceError
	if errors.As(err, &ref) {
		return ref.Error()
	}
	return "failed to resolve section or category"
}

func createReason(err error) string {
	var ve *core.ValidationError
	switch {
	case core.IsAccessDenied(err), core.IsNotFound(err):
		return err.Error()
	case errors.As(err, &ve):
		return ve.Error()
	default:
		return "failed to create transaction"
	}
}

type columnIndex map[string]int

func headerIndex(header []string) (columnIndex, error) {
	idx := make(columnIndex, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return idx, nil
}

func (c columnIndex) record(fields []string) ImportRecord {
	get := func(col string) string {
		i, ok := c[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}
	return ImportRecord{
		Date:          get(colDate),
		Reference:     get(colReference),
		Amount:        get(colAmount),
		Section:       get(colSection),
		Category:      get(colCategory),
		OffsetAccount: get(colOffsetAccount),
	}
}
