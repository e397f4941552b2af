// Package engine implements the triage engine that drives records from
// ingestion through analysis to a human decision and the resulting send.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/mailtext"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

// Analyzer produces a complete analysis for one record. It never fails; a
// degraded analysis carries fallback defaults and zero confidence instead.
type Analyzer interface {
	Analyze(ctx context.Context, rec *model.Record) model.Analysis
}

// TriageEngine orchestrates ingestion, analysis, and the approval lifecycle.
type TriageEngine struct {
	storage     service.Storage
	provider    service.MailProvider
	analyzer    Analyzer
	logger      *slog.Logger
	skipSenders []string
	fetchLimit  int
	sendTimeout time.Duration
	retryOpts   service.RetryOptions
}

// Config holds configuration options for the triage engine.
type Config struct {
	// SkipSenders lists sender prefixes that are never ingested.
	SkipSenders []string
	FetchLimit  int
	SendTimeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		SkipSenders: []string{"no-reply@", "noreply@", "notifications@", "do-not-reply@"},
		FetchLimit:  50,
		SendTimeout: 30 * time.Second,
	}
}

// New creates a triage engine with the default configuration.
func New(storage service.Storage, provider service.MailProvider, analyzer Analyzer, logger *slog.Logger) *TriageEngine {
	return NewWithConfig(storage, provider, analyzer, logger, DefaultConfig())
}

// NewWithConfig creates a triage engine with custom configuration.
func NewWithConfig(storage service.Storage, provider service.MailProvider, analyzer Analyzer, logger *slog.Logger, config Config) *TriageEngine {
	if logger == nil {
		logger = slog.Default()
	}
	if config.FetchLimit <= 0 {
		config.FetchLimit = DefaultConfig().FetchLimit
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultConfig().SendTimeout
	}
	return &TriageEngine{
		storage:     storage,
		provider:    provider,
		analyzer:    analyzer,
		logger:      logger,
		skipSenders: config.SkipSenders,
		fetchLimit:  config.FetchLimit,
		sendTimeout: config.SendTimeout,
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// ProcessNew fetches unread messages, ingests the ones not seen before, runs
// the analysis pipeline on each, and surfaces them for approval. A failure on
// one message never stops the rest of the run.
func (e *TriageEngine) ProcessNew(ctx context.Context, userID string) (*service.ProcessSummary, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID cannot be empty", common.ErrValidation)
	}

	var messages []model.RawMessage
	err := common.WithRetry(ctx, func() error {
		var fetchErr error
		messages, fetchErr = e.provider.FetchUnread(ctx, userID, e.fetchLimit)
		return fetchErr
	}, e.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching unread messages: %v", common.ErrUpstream, err)
	}

	summary := &service.ProcessSummary{Fetched: len(messages)}
	e.logger.Info("fetched unread messages", "user_id", userID, "count", len(messages))

	for _, msg := range messages {
		if e.shouldSkipSender(msg.Sender) {
			summary.SkippedSender++
			e.logger.Debug("skipping automated sender", "sender", msg.Sender)
			continue
		}

		if err := e.ingestOne(ctx, userID, msg, summary); err != nil {
			e.logger.Error("failed to process message",
				"user_id", userID,
				"provider_message_id", msg.ProviderMessageID,
				"error", err)
		}
	}

	return summary, nil
}

// ingestOne creates the record, runs the pipeline, and moves the record to
// pending_approval. Re-ingestion of a known message is a skip, not an error.
func (e *TriageEngine) ingestOne(ctx context.Context, userID string, msg model.RawMessage, summary *service.ProcessSummary) error {
	body := mailtext.Clean(msg.Body)
	rec := &model.Record{
		ID:                model.RecordID(userID, msg.ProviderMessageID),
		UserID:            userID,
		ProviderMessageID: msg.ProviderMessageID,
		ThreadID:          msg.ThreadID,
		Subject:           msg.Subject,
		Sender:            msg.Sender,
		BodyFull:          body,
		BodyPreview:       mailtext.Preview(body),
		Status:            model.StatusFetched,
		CreatedAt:         time.Now(),
	}

	inserted, err := e.storage.InsertRecord(ctx, rec)
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	if !inserted {
		summary.Skipped++
		return nil
	}

	analysis := e.analyzer.Analyze(ctx, rec)
	if err := e.storage.SaveAnalysis(ctx, userID, rec.ID, analysis); err != nil {
		return fmt.Errorf("saving analysis: %w", err)
	}
	if err := e.storage.MarkPending(ctx, userID, rec.ID); err != nil {
		return fmt.Errorf("marking pending: %w", err)
	}

	summary.Pending++
	e.logger.Info("message ready for review",
		"record_id", rec.ID,
		"category", analysis.Category,
		"priority", analysis.Priority,
		"confidence", analysis.Confidence)
	return nil
}

func (e *TriageEngine) shouldSkipSender(sender string) bool {
	lower := strings.ToLower(sender)
	for _, prefix := range e.skipSenders {
		if strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// Pending lists a user's records awaiting a decision.
func (e *TriageEngine) Pending(ctx context.Context, userID string) ([]model.Record, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID cannot be empty", common.ErrValidation)
	}
	return e.storage.ListByStatus(ctx, userID, model.StatusPendingApproval)
}

// Stats returns the aggregate snapshot for a user.
func (e *TriageEngine) Stats(ctx context.Context, userID string) (*model.StatsSnapshot, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID cannot be empty", common.ErrValidation)
	}
	return e.storage.Stats(ctx, userID)
}
