package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FailedRow is one CSV row the importer could not book. The raw fields are
// kept as read so the user can fix and resubmit them.
type FailedRow struct {
	Row       int    `json:"row"`
	Line      int    `json:"line"`
	Reason    string `json:"reason"`
	Date      string `json:"date"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Section   string `json:"section"`
	Category  string `json:"category"`
	Offset    string `json:"offset_account_id,omitempty"`
}

// ImportReportMessage tells the owner of an import how it went.
type ImportReportMessage struct {
	MessageID uuid.UUID   `json:"message_id"`
	UserID    uuid.UUID   `json:"user_id"`
	AccountID int64       `json:"account_id"`
	TotalRows int         `json:"total_rows"`
	Imported  int         `json:"imported"`
	Failed    []FailedRow `json:"failed"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewImportReportMessage stamps a report with a fresh id and the current
// time.
func NewImportReportMessage(userID uuid.UUID, accountID int64, total, imported int, failed []FailedRow) *ImportReportMessage {
	if failed == nil {
		failed = []FailedRow{}
	}
	return &ImportReportMessage{
		MessageID: uuid.New(),
		UserID:    userID,
		AccountID: accountID,
		TotalRows: total,
		Imported:  imported,
		Failed:    failed,
		Timestamp: time.Now(),
	}
}

// HasFailures reports whether any row was rejected.
func (m *ImportReportMessage) HasFailures() bool {
	return len(m.Failed) > 0
}

// ToJSON converts the message to JSON bytes
func (m *ImportReportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportReportMessageFromJSON(data []byte) (*ImportReportMessage, error) {
	var msg ImportReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
