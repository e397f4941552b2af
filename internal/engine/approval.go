package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/mailtext"
	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

// Approve claims a pending record and performs the send. The claim is an
// atomic conditional transition out of pending_approval, so concurrent
// approvals of the same record produce exactly one send; every loser gets a
// conflict error naming the status it found. Send text precedence is
// override, then the reviewer's edit, then the pipeline draft.
func (e *TriageEngine) Approve(ctx context.Context, userID, recordID, override string) (*service.SendOutcome, error) {
	if err := validateDecisionInput(userID, recordID); err != nil {
		return nil, err
	}

	rec, err := e.storage.ClaimForSend(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}

	text := override
	if text == "" {
		text = rec.ResponseText()
	}
	if text == "" {
		// A claimed record with nothing to send cannot proceed; release it
		// to failed_send so a retry can resurface it after an edit.
		if failErr := e.storage.FailSend(ctx, userID, recordID); failErr != nil {
			e.logger.Error("failed to release empty-text claim", "record_id", recordID, "error", failErr)
		}
		return nil, fmt.Errorf("%w: record %s has no response text", common.ErrValidation, recordID)
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	receiptID, sendErr := e.provider.SendReply(sendCtx, userID, service.Reply{
		To:       rec.Sender,
		Subject:  mailtext.ReplySubject(rec.Subject),
		Body:     text,
		ThreadID: rec.ThreadID,
	})
	if sendErr != nil {
		if failErr := e.storage.FailSend(ctx, userID, recordID); failErr != nil {
			e.logger.Error("failed to record send failure", "record_id", recordID, "error", failErr)
		}
		return nil, fmt.Errorf("%w: sending reply for record %s: %v", common.ErrUpstream, recordID, sendErr)
	}

	if err := e.storage.CompleteSend(ctx, userID, recordID, text); err != nil {
		return nil, fmt.Errorf("recording completed send: %w", err)
	}

	if err := e.provider.MarkRead(ctx, userID, rec.ProviderMessageID); err != nil {
		e.logger.Warn("failed to mark source message read",
			"record_id", recordID,
			"provider_message_id", rec.ProviderMessageID,
			"error", err)
	}

	e.logger.Info("reply sent", "record_id", recordID, "receipt_id", receiptID)
	return &service.SendOutcome{
		SentAt:    time.Now(),
		RecordID:  recordID,
		ReceiptID: receiptID,
		Text:      text,
	}, nil
}

// Reject declines a pending record. Terminal; the record is kept for history.
func (e *TriageEngine) Reject(ctx context.Context, userID, recordID string) error {
	if err := validateDecisionInput(userID, recordID); err != nil {
		return err
	}
	if err := e.storage.RejectRecord(ctx, userID, recordID); err != nil {
		return err
	}
	e.logger.Info("record rejected", "record_id", recordID)
	return nil
}

// SaveEdit stores a reviewer's replacement response text. Editing is not a
// decision; the record stays pending and the edit wins over the draft at
// send time.
func (e *TriageEngine) SaveEdit(ctx context.Context, userID, recordID, text string) error {
	if err := validateDecisionInput(userID, recordID); err != nil {
		return err
	}
	if text == "" {
		return fmt.Errorf("%w: edited text cannot be empty", common.ErrValidation)
	}
	return e.storage.SaveEdit(ctx, userID, recordID, text)
}

// Retry resurfaces a failed send for a fresh approval. It is the only way
// out of failed_send and requires an explicit user action.
func (e *TriageEngine) Retry(ctx context.Context, userID, recordID string) error {
	if err := validateDecisionInput(userID, recordID); err != nil {
		return err
	}
	if err := e.storage.RetryFailedSend(ctx, userID, recordID); err != nil {
		return err
	}
	e.logger.Info("failed send resurfaced for review", "record_id", recordID)
	return nil
}

// BatchDecide applies a list of approve/reject decisions independently. One
// item's failure never aborts the others; the result reports the outcome of
// every item in input order.
func (e *TriageEngine) BatchDecide(ctx context.Context, userID string, decisions []service.Decision) (*service.BatchResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID cannot be empty", common.ErrValidation)
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("%w: batch contains no decisions", common.ErrValidation)
	}

	result := &service.BatchResult{
		Results: make([]service.DecisionResult, 0, len(decisions)),
		Total:   len(decisions),
	}

	for _, decision := range decisions {
		itemResult := service.DecisionResult{
			RecordID: decision.RecordID,
			Action:   decision.Action,
		}

		var err error
		switch decision.Action {
		case service.ActionApprove:
			_, err = e.Approve(ctx, userID, decision.RecordID, "")
		case service.ActionReject:
			err = e.Reject(ctx, userID, decision.RecordID)
		default:
			err = fmt.Errorf("%w: unknown action %q", common.ErrValidation, decision.Action)
		}

		if err != nil {
			itemResult.Error = err.Error()
			result.Failed++
		} else {
			itemResult.Success = true
			result.Successful++
		}
		result.Results = append(result.Results, itemResult)
	}

	e.logger.Info("batch decision applied",
		"user_id", userID,
		"total", result.Total,
		"successful", result.Successful,
		"failed", result.Failed)
	return result, nil
}

func validateDecisionInput(userID, recordID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", common.ErrValidation)
	}
	if recordID == "" {
		return fmt.Errorf("%w: record ID cannot be empty", common.ErrValidation)
	}
	return nil
}
