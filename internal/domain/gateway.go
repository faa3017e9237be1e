package domain

import (
	"context"
)

// ValueRange is one batch-read result: rows of cell values, in the shape the
// spreadsheet API returns them.
type ValueRange struct {
	Values [][]string
}

// FirstValue returns the top-left cell of the range, or "" when the gateway
// returned an empty range for a missing cell.
func (v ValueRange) FirstValue() string {
	if len(v.Values) == 0 || len(v.Values[0]) == 0 {
		return ""
	}
	return v.Values[0][0]
}

// SpreadsheetGateway is the transport abstraction over the spreadsheet API.
type SpreadsheetGateway interface {
	// ReadBatch fetches the given references in one call. The result list
	// preserves input order.
	ReadBatch(ctx context.Context, spreadsheetID string, refs []SpreadsheetReference) ([]ValueRange, error)

	Write(ctx context.Context, spreadsheetID string, ref SpreadsheetReference, value string) error

	// WriteBatch writes values[i] to refs[i]; both slices must have equal
	// length.
	WriteBatch(ctx context.Context, spreadsheetID string, refs []SpreadsheetReference, values []string) error

	// SearchColumn linearly scans a column for the first cell equal to value
	// and returns its cell reference (1-based row), or nil when absent.
	SearchColumn(ctx context.Context, spreadsheetID string, column SpreadsheetReference, value string) (*SpreadsheetReference, error)
}

// SendStatus is the gateway's verdict on a single send or draft operation.
type SendStatus string

const (
	SendStatusSuccess SendStatus = "SUCCESS"
	SendStatusFailure SendStatus = "FAILURE"
)

// SendResult is what the mail gateway reports back for a send or draft.
type SendResult struct {
	Status       SendStatus
	ThreadID     *string
	ErrorMessage *string
}

// MailGateway is the transport abstraction over the mail provider.
type MailGateway interface {
	// Send dispatches the email, threading it into threadID when non-nil.
	Send(ctx context.Context, email *Email, threadID *string) (*SendResult, error)

	// SaveDraft stores the email as a draft instead of sending it.
	SaveDraft(ctx context.Context, email *Email, threadID *string) (*SendResult, error)

	// HasReplies reports whether the thread contains strictly more messages
	// than expectedMessageCount (the initial plus prior follow-ups).
	HasReplies(ctx context.Context, threadID string, expectedMessageCount int) (bool, error)
}
