package log

import "github.com/google/uuid"

// Common field names for structured logging
const (
	FieldComponent     = "component"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldUserID        = "user_id"
	FieldAccountID     = "account_id"
	FieldOffsetAccount = "offset_account_id"
	FieldTransactionID = "transaction_id"
	FieldOffsetID      = "offset_transaction_id"
	FieldScheduledID   = "scheduled_id"
	FieldFrequency     = "frequency"
	FieldAmount        = "amount"
	FieldBalance       = "balance"
	FieldAttempt       = "attempt"
	FieldRow           = "row"
	FieldLine          = "line"
	FieldReason        = "reason"
	FieldDuration      = "duration_ms"
	FieldMessageID     = "message_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentLedger    = "ledger"
	ComponentAccounts  = "accounts"
	ComponentScheduler = "scheduler"
	ComponentImporter  = "importer"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentMetrics   = "metrics"
)

// Operations defines standard operation names
const (
	OpCreate      = "create"
	OpUpdate      = "update"
	OpDelete      = "delete"
	OpMaterialize = "materialize"
	OpImport      = "import"
	OpPublish     = "publish"
	OpConsume     = "consume"
	OpStartup     = "startup"
	OpShutdown    = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

func NewFields() LogFields {
	return make(LogFields)
}

func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

func (f LogFields) WithUser(id uuid.UUID) LogFields {
	f[FieldUserID] = id.String()
	return f
}

// WithTransaction adds the ids and the formatted amount of a ledger entry.
func (f LogFields) WithTransaction(transactionID, accountID int64, amount string) LogFields {
	f[FieldTransactionID] = transactionID
	f[FieldAccountID] = accountID
	f[FieldAmount] = amount
	return f
}

// WithRow adds the position of an imported CSV row.
func (f LogFields) WithRow(row, line int) LogFields {
	f[FieldRow] = row
	f[FieldLine] = line
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
