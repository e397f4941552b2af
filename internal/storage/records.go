package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// InsertRecord inserts the record if no record with its ID already exists.
// The ID is derived from (user, provider message id), so replaying a fetch
// inserts nothing and reports false.
func (s *SQLiteStorage) InsertRecord(ctx context.Context, record *model.Record) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateRecord(record); err != nil {
		return false, err
	}

	keyPoints, err := marshalList(record.KeyPoints)
	if err != nil {
		return false, err
	}
	fallbacks, err := marshalList(record.FallbackReasons)
	if err != nil {
		return false, err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO records (
			id, user_id, provider_message_id, thread_id, subject, sender,
			body_full, body_preview, category, sentiment, priority, confidence,
			tone, key_points, fallback_reasons, draft_response, edited_response,
			response_sent, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.UserID,
		record.ProviderMessageID,
		record.ThreadID,
		record.Subject,
		record.Sender,
		record.BodyFull,
		record.BodyPreview,
		string(record.Category),
		string(record.Sentiment),
		record.Priority,
		record.Confidence,
		record.Tone,
		keyPoints,
		fallbacks,
		record.DraftResponse,
		record.EditedResponse,
		record.ResponseSent,
		string(record.Status),
		createdAt,
	)
	if err != nil {
		return false, fmt.Errorf("%w: failed to insert record: %v", common.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: failed to check insert result: %v", common.ErrPersistence, err)
	}
	return rows > 0, nil
}

// GetRecord returns the record with the given ID, scoped to the user.
func (s *SQLiteStorage) GetRecord(ctx context.Context, userID, recordID string) (*model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectRecordColumns+` WHERE id = ? AND user_id = ?`, recordID, userID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", common.ErrNotFound, recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load record: %v", common.ErrPersistence, err)
	}
	return record, nil
}

// ListByStatus returns all of a user's records in the given status, oldest first.
func (s *SQLiteStorage) ListByStatus(ctx context.Context, userID string, status model.Status) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", common.ErrValidation, status)
	}

	rows, err := s.db.QueryContext(ctx,
		selectRecordColumns+` WHERE user_id = ? AND status = ? ORDER BY created_at ASC`,
		userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list records: %v", common.ErrPersistence, err)
	}
	defer func() { _ = rows.Close() }()

	records := []model.Record{}
	for rows.Next() {
		record, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("%w: failed to scan record: %v", common.ErrPersistence, scanErr)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate records: %v", common.ErrPersistence, err)
	}
	return records, nil
}

// SaveAnalysis writes pipeline output onto the record and moves it from
// fetched to analyzed in one conditional write.
func (s *SQLiteStorage) SaveAnalysis(ctx context.Context, userID, recordID string, analysis model.Analysis) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAnalysis(&analysis); err != nil {
		return err
	}

	keyPoints, err := marshalList(analysis.KeyPoints)
	if err != nil {
		return err
	}
	fallbacks, err := marshalList(analysis.FallbackReasons)
	if err != nil {
		return err
	}

	return s.transition(ctx, userID, recordID, model.StatusFetched, model.StatusAnalyzed, `
		UPDATE records
		SET status = ?, category = ?, sentiment = ?, priority = ?, confidence = ?,
		    tone = ?, key_points = ?, fallback_reasons = ?, draft_response = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusAnalyzed),
		string(analysis.Category),
		string(analysis.Sentiment),
		analysis.Priority,
		analysis.Confidence,
		analysis.Tone,
		keyPoints,
		fallbacks,
		analysis.Draft,
		recordID,
		userID,
		string(model.StatusFetched),
	)
}

// MarkPending moves analyzed -> pending_approval.
func (s *SQLiteStorage) MarkPending(ctx context.Context, userID, recordID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, userID, recordID, model.StatusAnalyzed, model.StatusPendingApproval, `
		UPDATE records SET status = ? WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusPendingApproval), recordID, userID, string(model.StatusAnalyzed),
	)
}

// ClaimForSend moves pending_approval -> sending and stamps decided_at.
// The conditional write guarantees at most one concurrent caller wins; the
// winner gets back the record as claimed so the send uses exactly the text
// that was approved.
func (s *SQLiteStorage) ClaimForSend(ctx context.Context, userID, recordID string) (*model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	err := s.transition(ctx, userID, recordID, model.StatusPendingApproval, model.StatusSending, `
		UPDATE records SET status = ?, decided_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusSending), time.Now().UTC(), recordID, userID, string(model.StatusPendingApproval),
	)
	if err != nil {
		return nil, err
	}
	return s.GetRecord(ctx, userID, recordID)
}

// CompleteSend moves sending -> sent, recording what actually went out.
func (s *SQLiteStorage) CompleteSend(ctx context.Context, userID, recordID, sentText string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, userID, recordID, model.StatusSending, model.StatusSent, `
		UPDATE records SET status = ?, response_sent = ?, sent_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusSent), sentText, time.Now().UTC(), recordID, userID, string(model.StatusSending),
	)
}

// FailSend moves sending -> failed_send.
func (s *SQLiteStorage) FailSend(ctx context.Context, userID, recordID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, userID, recordID, model.StatusSending, model.StatusFailedSend, `
		UPDATE records SET status = ? WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusFailedSend), recordID, userID, string(model.StatusSending),
	)
}

// RejectRecord moves pending_approval -> rejected and stamps decided_at.
func (s *SQLiteStorage) RejectRecord(ctx context.Context, userID, recordID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, userID, recordID, model.StatusPendingApproval, model.StatusRejected, `
		UPDATE records SET status = ?, decided_at = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusRejected), time.Now().UTC(), recordID, userID, string(model.StatusPendingApproval),
	)
}

// SaveEdit stores an edited response. It is not a decision: the status stays
// pending_approval, and the write is conditional on that status so an edit
// can never land on a record that has already been decided.
func (s *SQLiteStorage) SaveEdit(ctx context.Context, userID, recordID, text string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(text, "text"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE records SET edited_response = ?
		WHERE id = ? AND user_id = ? AND status = ?
	`, text, recordID, userID, string(model.StatusPendingApproval))
	if err != nil {
		return fmt.Errorf("%w: failed to save edit: %v", common.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check edit result: %v", common.ErrPersistence, err)
	}
	if rows == 0 {
		return s.conflictFor(ctx, userID, recordID, model.StatusPendingApproval)
	}
	return nil
}

// RetryFailedSend moves failed_send -> pending_approval, clearing the
// decision stamp so the record surfaces for review again.
func (s *SQLiteStorage) RetryFailedSend(ctx context.Context, userID, recordID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.transition(ctx, userID, recordID, model.StatusFailedSend, model.StatusPendingApproval, `
		UPDATE records SET status = ?, decided_at = NULL
		WHERE id = ? AND user_id = ? AND status = ?
	`,
		string(model.StatusPendingApproval), recordID, userID, string(model.StatusFailedSend),
	)
}

// transition executes a conditional status update and records it in the
// decision history. A zero-row update is resolved into not-found or a
// conflict naming the expected vs actual status.
func (s *SQLiteStorage) transition(ctx context.Context, userID, recordID string, from, to model.Status, query string, args ...any) error {
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to update record status: %v", common.ErrPersistence, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check update result: %v", common.ErrPersistence, err)
	}
	if rows == 0 {
		return s.conflictFor(ctx, userID, recordID, from)
	}

	// Audit trail; the state machine does not depend on it.
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_history (record_id, user_id, from_status, to_status)
		VALUES (?, ?, ?, ?)
	`, recordID, userID, string(from), string(to)); err != nil {
		return fmt.Errorf("%w: failed to record decision history: %v", common.ErrPersistence, err)
	}
	return nil
}

// conflictFor turns a zero-row conditional update into the right error.
func (s *SQLiteStorage) conflictFor(ctx context.Context, userID, recordID string, expected model.Status) error {
	var actual string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM records WHERE id = ? AND user_id = ?`, recordID, userID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: record %s", common.ErrNotFound, recordID)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to resolve conflict status: %v", common.ErrPersistence, err)
	}
	return common.NewStatusConflict(recordID, expected, model.Status(actual))
}

const selectRecordColumns = `
	SELECT id, user_id, provider_message_id, thread_id, subject, sender,
	       body_full, body_preview, category, sentiment, priority, confidence,
	       tone, key_points, fallback_reasons, draft_response, edited_response,
	       response_sent, status, created_at, decided_at, sent_at
	FROM records`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var r model.Record
	var threadID, subject, sender, bodyFull, bodyPreview sql.NullString
	var category, sentiment, tone sql.NullString
	var keyPoints, fallbacks sql.NullString
	var draft, edited, responseSent sql.NullString
	var priority sql.NullInt64
	var confidence sql.NullFloat64
	var status string
	var decidedAt, sentAt sql.NullTime

	err := row.Scan(
		&r.ID,
		&r.UserID,
		&r.ProviderMessageID,
		&threadID,
		&subject,
		&sender,
		&bodyFull,
		&bodyPreview,
		&category,
		&sentiment,
		&priority,
		&confidence,
		&tone,
		&keyPoints,
		&fallbacks,
		&draft,
		&edited,
		&responseSent,
		&status,
		&r.CreatedAt,
		&decidedAt,
		&sentAt,
	)
	if err != nil {
		return nil, err
	}

	r.ThreadID = threadID.String
	r.Subject = subject.String
	r.Sender = sender.String
	r.BodyFull = bodyFull.String
	r.BodyPreview = bodyPreview.String
	r.Category = model.Category(category.String)
	r.Sentiment = model.Sentiment(sentiment.String)
	r.Priority = int(priority.Int64)
	r.Confidence = confidence.Float64
	r.Tone = tone.String
	r.DraftResponse = draft.String
	r.EditedResponse = edited.String
	r.ResponseSent = responseSent.String
	r.Status = model.Status(status)

	if decidedAt.Valid {
		t := decidedAt.Time
		r.DecidedAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		r.SentAt = &t
	}

	if r.KeyPoints, err = unmarshalList(keyPoints.String); err != nil {
		return nil, err
	}
	if r.FallbackReasons, err = unmarshalList(fallbacks.String); err != nil {
		return nil, err
	}
	return &r, nil
}

func marshalList(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("%w: failed to marshal list: %v", common.ErrPersistence, err)
	}
	return string(data), nil
}

func unmarshalList(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal list: %v", common.ErrPersistence, err)
	}
	return values, nil
}
