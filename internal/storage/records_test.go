package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Veraticus/the-mail-must-flow/internal/common"
	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create a freshly fetched record.
func newTestRecord(userID, providerMessageID string) *model.Record {
	body := "Hello, could you send over the Q3 numbers?\n\nThanks,\nJane"
	return &model.Record{
		ID:                model.RecordID(userID, providerMessageID),
		UserID:            userID,
		ProviderMessageID: providerMessageID,
		ThreadID:          "thread-1",
		Subject:           "Q3 numbers",
		Sender:            "jane@example.com",
		BodyFull:          body,
		BodyPreview:       body[:20],
		Status:            model.StatusFetched,
	}
}

func testAnalysis() model.Analysis {
	return model.Analysis{
		Category:   model.CategoryWork,
		Sentiment:  model.SentimentNeutral,
		Priority:   4,
		Confidence: 0.85,
		Tone:       "formal",
		KeyPoints:  []string{"requests Q3 numbers"},
		Draft:      "Hi Jane,\n\nAttached are the Q3 numbers.\n\nBest,\nSam",
	}
}

// advanceToPending walks a record through the pipeline transitions.
func advanceToPending(t *testing.T, store *SQLiteStorage, userID, recordID string) {
	t.Helper()
	ctx := context.Background()
	if err := store.SaveAnalysis(ctx, userID, recordID, testAnalysis()); err != nil {
		t.Fatalf("Failed to save analysis: %v", err)
	}
	if err := store.MarkPending(ctx, userID, recordID); err != nil {
		t.Fatalf("Failed to mark pending: %v", err)
	}
}

func TestSQLiteStorage_InsertRecord_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")

	inserted, err := store.InsertRecord(ctx, record)
	if err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to report inserted=true")
	}

	// Same message again, even with different content
	dup := newTestRecord("user-1", "msg-1")
	dup.Subject = "Different subject"
	inserted, err = store.InsertRecord(ctx, dup)
	if err != nil {
		t.Fatalf("Failed to re-insert record: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate insert to report inserted=false")
	}

	// Same provider message for a different user is a new record
	other := newTestRecord("user-2", "msg-1")
	inserted, err = store.InsertRecord(ctx, other)
	if err != nil {
		t.Fatalf("Failed to insert record for second user: %v", err)
	}
	if !inserted {
		t.Error("Expected insert for second user to report inserted=true")
	}

	got, err := store.GetRecord(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.Subject != "Q3 numbers" {
		t.Errorf("Duplicate insert must not overwrite: subject = %q", got.Subject)
	}
}

func TestSQLiteStorage_InsertRecord_Validation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	bad := newTestRecord("user-1", "msg-1")
	bad.BodyPreview = "not a prefix of the body"

	if _, err := store.InsertRecord(ctx, bad); !errors.Is(err, common.ErrValidation) {
		t.Errorf("Expected validation error for non-prefix preview, got %v", err)
	}
}

func TestSQLiteStorage_GetRecord_UserScoped(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	if _, err := store.GetRecord(ctx, "user-2", record.ID); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("Expected not-found for other user, got %v", err)
	}
}

func TestSQLiteStorage_SaveAnalysis_RoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}

	analysis := testAnalysis()
	if err := store.SaveAnalysis(ctx, "user-1", record.ID, analysis); err != nil {
		t.Fatalf("Failed to save analysis: %v", err)
	}

	got, err := store.GetRecord(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.Status != model.StatusAnalyzed {
		t.Errorf("Expected status analyzed, got %s", got.Status)
	}
	if got.Category != analysis.Category || got.Sentiment != analysis.Sentiment {
		t.Errorf("Analysis fields not persisted: %+v", got)
	}
	if got.Priority != 4 || got.Confidence != 0.85 {
		t.Errorf("Priority/confidence not persisted: %d %f", got.Priority, got.Confidence)
	}
	if len(got.KeyPoints) != 1 || got.KeyPoints[0] != "requests Q3 numbers" {
		t.Errorf("Key points not persisted: %v", got.KeyPoints)
	}
	if got.DraftResponse != analysis.Draft {
		t.Errorf("Draft not persisted: %q", got.DraftResponse)
	}

	// A second save must conflict: analysis is written once.
	if err := store.SaveAnalysis(ctx, "user-1", record.ID, analysis); !errors.Is(err, common.ErrConflict) {
		t.Errorf("Expected conflict on second analysis save, got %v", err)
	}
}

func TestSQLiteStorage_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*testing.T, *SQLiteStorage, string, string)
		operation func(*SQLiteStorage, context.Context, string, string) error
		wantErr   error
	}{
		{
			name:  "reject requires pending approval",
			setup: func(_ *testing.T, _ *SQLiteStorage, _, _ string) {},
			operation: func(s *SQLiteStorage, ctx context.Context, userID, recordID string) error {
				return s.RejectRecord(ctx, userID, recordID)
			},
			wantErr: common.ErrConflict,
		},
		{
			name: "reject from pending succeeds",
			setup: func(t *testing.T, s *SQLiteStorage, userID, recordID string) {
				advanceToPending(t, s, userID, recordID)
			},
			operation: func(s *SQLiteStorage, ctx context.Context, userID, recordID string) error {
				return s.RejectRecord(ctx, userID, recordID)
			},
		},
		{
			name: "claim from pending succeeds",
			setup: func(t *testing.T, s *SQLiteStorage, userID, recordID string) {
				advanceToPending(t, s, userID, recordID)
			},
			operation: func(s *SQLiteStorage, ctx context.Context, userID, recordID string) error {
				_, err := s.ClaimForSend(ctx, userID, recordID)
				return err
			},
		},
		{
			name: "claim after reject conflicts",
			setup: func(t *testing.T, s *SQLiteStorage, userID, recordID string) {
				advanceToPending(t, s, userID, recordID)
				if err := s.RejectRecord(context.Background(), userID, recordID); err != nil {
					t.Fatalf("Failed to reject: %v", err)
				}
			},
			operation: func(s *SQLiteStorage, ctx context.Context, userID, recordID string) error {
				_, err := s.ClaimForSend(ctx, userID, recordID)
				return err
			},
			wantErr: common.ErrConflict,
		},
		{
			name: "complete send requires claim",
			setup: func(t *testing.T, s *SQLiteStorage, userID, recordID string) {
				advanceToPending(t, s, userID, recordID)
			},
			operation: func(s *SQLiteStorage, ctx context.Context, userID, recordID string) error {
				return s.CompleteSend(ctx, userID, recordID, "text")
			},
			wantErr: common.ErrConflict,
		},
		{
			name: "retry requires failed send",
			setup: func(t *testing.T, s *SQLiteStorage, userID, recordID string) {
				advanceToPending(t, s, userID, recordID)
			},
			operation: func(s *SQLiteStorage, ctx context.Context, userID, recordID string) error {
				return s.RetryFailedSend(ctx, userID, recordID)
			},
			wantErr: common.ErrConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, cleanup := createTestStorage(t)
			defer cleanup()
			ctx := context.Background()

			record := newTestRecord("user-1", "msg-1")
			if _, err := store.InsertRecord(ctx, record); err != nil {
				t.Fatalf("Failed to insert record: %v", err)
			}
			tt.setup(t, store, "user-1", record.ID)

			err := tt.operation(store, ctx, "user-1", record.ID)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteStorage_ConflictNamesStatuses(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	advanceToPending(t, store, "user-1", record.ID)
	if err := store.RejectRecord(ctx, "user-1", record.ID); err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}

	err := store.RejectRecord(ctx, "user-1", record.ID)
	var conflict *common.StatusConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected StatusConflictError, got %v", err)
	}
	if conflict.Expected != model.StatusPendingApproval || conflict.Actual != model.StatusRejected {
		t.Errorf("Conflict should name expected vs actual, got %+v", conflict)
	}
}

func TestSQLiteStorage_ClaimForSend_SingleWinner(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	advanceToPending(t, store, "user-1", record.ID)

	const racers = 8
	var wg sync.WaitGroup
	results := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, results[idx] = store.ClaimForSend(ctx, "user-1", record.ID)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range results {
		if err == nil {
			winners++
		} else if !errors.Is(err, common.ErrConflict) {
			t.Errorf("Loser should see a conflict, got %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly 1 claim winner, got %d", winners)
	}
}

func TestSQLiteStorage_SaveEdit(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	advanceToPending(t, store, "user-1", record.ID)

	if err := store.SaveEdit(ctx, "user-1", record.ID, "Edited reply"); err != nil {
		t.Fatalf("Failed to save edit: %v", err)
	}

	got, err := store.GetRecord(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.EditedResponse != "Edited reply" {
		t.Errorf("Edited response not saved: %q", got.EditedResponse)
	}
	if got.Status != model.StatusPendingApproval {
		t.Errorf("SaveEdit must not change status, got %s", got.Status)
	}
	if got.DecidedAt != nil {
		t.Error("SaveEdit must not count as a decision")
	}

	// Once decided, edits conflict.
	if err := store.RejectRecord(ctx, "user-1", record.ID); err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}
	if err := store.SaveEdit(ctx, "user-1", record.ID, "Too late"); !errors.Is(err, common.ErrConflict) {
		t.Errorf("Expected conflict editing a decided record, got %v", err)
	}
}

func TestSQLiteStorage_SendLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	advanceToPending(t, store, "user-1", record.ID)

	claimed, err := store.ClaimForSend(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if claimed.Status != model.StatusSending {
		t.Errorf("Expected sending status after claim, got %s", claimed.Status)
	}
	if claimed.DecidedAt == nil {
		t.Error("Claim must stamp decided_at")
	}

	if err := store.CompleteSend(ctx, "user-1", record.ID, "final text"); err != nil {
		t.Fatalf("Failed to complete send: %v", err)
	}

	got, err := store.GetRecord(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.Status != model.StatusSent {
		t.Errorf("Expected sent, got %s", got.Status)
	}
	if got.SentAt == nil {
		t.Error("CompleteSend must stamp sent_at")
	}
	if got.ResponseSent != "final text" {
		t.Errorf("Sent text not recorded: %q", got.ResponseSent)
	}
}

func TestSQLiteStorage_FailAndRetry(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	record := newTestRecord("user-1", "msg-1")
	if _, err := store.InsertRecord(ctx, record); err != nil {
		t.Fatalf("Failed to insert record: %v", err)
	}
	advanceToPending(t, store, "user-1", record.ID)

	if _, err := store.ClaimForSend(ctx, "user-1", record.ID); err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if err := store.FailSend(ctx, "user-1", record.ID); err != nil {
		t.Fatalf("Failed to fail send: %v", err)
	}

	got, err := store.GetRecord(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.Status != model.StatusFailedSend {
		t.Errorf("Expected failed_send, got %s", got.Status)
	}

	if err := store.RetryFailedSend(ctx, "user-1", record.ID); err != nil {
		t.Fatalf("Failed to retry: %v", err)
	}
	got, err = store.GetRecord(ctx, "user-1", record.ID)
	if err != nil {
		t.Fatalf("Failed to get record: %v", err)
	}
	if got.Status != model.StatusPendingApproval {
		t.Errorf("Expected pending_approval after retry, got %s", got.Status)
	}
	if got.DecidedAt != nil {
		t.Error("Retry must clear decided_at")
	}
}

func TestSQLiteStorage_ListByStatus(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		record := newTestRecord("user-1", fmt.Sprintf("msg-%d", i))
		if _, err := store.InsertRecord(ctx, record); err != nil {
			t.Fatalf("Failed to insert record %d: %v", i, err)
		}
		if i < 2 {
			advanceToPending(t, store, "user-1", record.ID)
		}
	}
	// Another user's record must never leak in.
	other := newTestRecord("user-2", "msg-0")
	if _, err := store.InsertRecord(ctx, other); err != nil {
		t.Fatalf("Failed to insert other user's record: %v", err)
	}
	advanceToPending(t, store, "user-2", other.ID)

	pending, err := store.ListByStatus(ctx, "user-1", model.StatusPendingApproval)
	if err != nil {
		t.Fatalf("Failed to list pending: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("Expected 2 pending records, got %d", len(pending))
	}
	for _, r := range pending {
		if r.UserID != "user-1" {
			t.Errorf("List leaked record for %s", r.UserID)
		}
	}
}
