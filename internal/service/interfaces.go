// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// Storage defines the contract for our persistence layer. Every
// status-changing method is a single atomic conditional write: it succeeds
// only when the record is in the expected status, and reports a conflict
// naming expected vs actual otherwise. That conditional write is the sole
// concurrency control point for the approval state machine, so handlers in
// independent processes can race safely on the same record.
type Storage interface {
	// InsertRecord inserts the record if no record with its ID exists yet.
	// It reports whether a row was actually inserted; false means the
	// message is already known and ingestion should be skipped.
	InsertRecord(ctx context.Context, record *model.Record) (bool, error)

	GetRecord(ctx context.Context, userID, recordID string) (*model.Record, error)
	ListByStatus(ctx context.Context, userID string, status model.Status) ([]model.Record, error)

	// SaveAnalysis writes pipeline output and moves fetched -> analyzed.
	SaveAnalysis(ctx context.Context, userID, recordID string, analysis model.Analysis) error
	// MarkPending moves analyzed -> pending_approval.
	MarkPending(ctx context.Context, userID, recordID string) error

	// ClaimForSend moves pending_approval -> sending and stamps decided_at.
	// Exactly one concurrent caller wins the claim; the winner receives the
	// record as it was claimed.
	ClaimForSend(ctx context.Context, userID, recordID string) (*model.Record, error)
	// CompleteSend moves sending -> sent, recording the text that went out.
	CompleteSend(ctx context.Context, userID, recordID, sentText string) error
	// FailSend moves sending -> failed_send.
	FailSend(ctx context.Context, userID, recordID string) error

	// RejectRecord moves pending_approval -> rejected and stamps decided_at.
	RejectRecord(ctx context.Context, userID, recordID string) error
	// SaveEdit sets the edited response while the record is pending_approval.
	SaveEdit(ctx context.Context, userID, recordID, text string) error
	// RetryFailedSend moves failed_send -> pending_approval so a fresh
	// approval can attempt the send again.
	RetryFailedSend(ctx context.Context, userID, recordID string) error

	// Stats computes the aggregate snapshot for a user from the record set.
	Stats(ctx context.Context, userID string) (*model.StatsSnapshot, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Reply is an outbound reply handed to the mail provider.
type Reply struct {
	To       string
	Subject  string
	Body     string
	ThreadID string
}

// MailProvider defines the contract for the external mail service.
type MailProvider interface {
	FetchUnread(ctx context.Context, userID string, max int) ([]model.RawMessage, error)
	// SendReply transmits the reply and returns the provider's receipt ID.
	SendReply(ctx context.Context, userID string, reply Reply) (string, error)
	// MarkRead is best-effort; a failure never reverts a successful send.
	MarkRead(ctx context.Context, userID, providerMessageID string) error
}

// DecisionAction is a reviewer's verdict on a pending record.
type DecisionAction string

// Supported decision actions.
const (
	ActionApprove DecisionAction = "approve"
	ActionReject  DecisionAction = "reject"
)

// Decision is one (record, action) pair in a batch request.
type Decision struct {
	RecordID string
	Action   DecisionAction
}

// DecisionResult is the per-item outcome of a batch decision.
type DecisionResult struct {
	RecordID string
	Action   DecisionAction
	Error    string
	Success  bool
}

// BatchResult reports the aggregate outcome of a batch decision. Items are
// applied independently, so partial success is the normal case.
type BatchResult struct {
	Results    []DecisionResult
	Total      int
	Successful int
	Failed     int
}

// SendOutcome describes a completed approval send.
type SendOutcome struct {
	SentAt    time.Time
	RecordID  string
	ReceiptID string
	Text      string
}

// ProcessSummary reports the outcome of one process-new-mail run.
type ProcessSummary struct {
	Fetched       int
	Skipped       int
	SkippedSender int
	Pending       int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
