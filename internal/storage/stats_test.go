package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

func TestSQLiteStorage_Stats(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	// Three pending, one sent, one rejected, one failed.
	ids := make([]string, 6)
	for i := 0; i < 6; i++ {
		record := newTestRecord("user-1", fmt.Sprintf("msg-%d", i))
		if _, err := store.InsertRecord(ctx, record); err != nil {
			t.Fatalf("Failed to insert record %d: %v", i, err)
		}
		advanceToPending(t, store, "user-1", record.ID)
		ids[i] = record.ID
	}

	if _, err := store.ClaimForSend(ctx, "user-1", ids[3]); err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if err := store.CompleteSend(ctx, "user-1", ids[3], "sent text"); err != nil {
		t.Fatalf("Failed to complete send: %v", err)
	}
	if err := store.RejectRecord(ctx, "user-1", ids[4]); err != nil {
		t.Fatalf("Failed to reject: %v", err)
	}
	if _, err := store.ClaimForSend(ctx, "user-1", ids[5]); err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if err := store.FailSend(ctx, "user-1", ids[5]); err != nil {
		t.Fatalf("Failed to fail send: %v", err)
	}

	// Another user's records must not count.
	other := newTestRecord("user-2", "msg-0")
	if _, err := store.InsertRecord(ctx, other); err != nil {
		t.Fatalf("Failed to insert other user's record: %v", err)
	}

	stats, err := store.Stats(ctx, "user-1")
	if err != nil {
		t.Fatalf("Failed to compute stats: %v", err)
	}

	if stats.TotalProcessed != 6 {
		t.Errorf("Expected total 6, got %d", stats.TotalProcessed)
	}
	if stats.PendingApprovals != 3 {
		t.Errorf("Expected 3 pending, got %d", stats.PendingApprovals)
	}
	if stats.ByStatus[model.StatusSent] != 1 ||
		stats.ByStatus[model.StatusRejected] != 1 ||
		stats.ByStatus[model.StatusFailedSend] != 1 {
		t.Errorf("Unexpected status counts: %v", stats.ByStatus)
	}

	// The sum rule: status counts always add up to the total.
	sum := 0
	for _, count := range stats.ByStatus {
		sum += count
	}
	if sum != stats.TotalProcessed {
		t.Errorf("Status counts sum to %d, total is %d", sum, stats.TotalProcessed)
	}

	if stats.ByCategory[model.CategoryWork] != 6 {
		t.Errorf("Expected 6 work records, got %d", stats.ByCategory[model.CategoryWork])
	}
	if stats.ProcessedToday != 6 {
		t.Errorf("Expected 6 processed today, got %d", stats.ProcessedToday)
	}
}

func TestSQLiteStorage_Stats_EmptyUser(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	stats, err := store.Stats(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Failed to compute stats: %v", err)
	}
	if stats.TotalProcessed != 0 || stats.PendingApprovals != 0 || stats.ProcessedToday != 0 {
		t.Errorf("Expected zeroed stats, got %+v", stats)
	}
	if len(stats.ByStatus) != 0 || len(stats.ByCategory) != 0 {
		t.Errorf("Expected empty maps, got %+v", stats)
	}
}
