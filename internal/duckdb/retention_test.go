package duckdb

import (
	"context"
	"testing"
	"time"
)

func TestDeleteBeforeRemovesExpiredRows(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	insertTestLogs(t, store, []*LogEntry{
		{Timestamp: now.Add(-72 * time.Hour), Severity: "INFO", Message: "old"},
		{Timestamp: now, Severity: "INFO", Message: "fresh"},
	})

	deleted, err := store.DeleteBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	count, err := store.TotalLogCount(context.Background())
	if err != nil {
		t.Fatalf("TotalLogCount: %v", err)
	}
	if count != 1 {
		t.Errorf("remaining logs = %d, want 1", count)
	}
}

func TestNewRetentionCleanerDisabled(t *testing.T) {
	store := newTestStore(t)
	if rc := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 0}); rc != nil {
		rc.Stop()
		t.Error("cleaner created with retention disabled")
	}
}

func TestRetentionCleanerStartupCleanup(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	insertTestLogs(t, store, []*LogEntry{
		{Timestamp: now.AddDate(0, 0, -40), Severity: "INFO", Message: "ancient"},
		{Timestamp: now, Severity: "INFO", Message: "fresh"},
	})

	rc := NewRetentionCleaner(store, RetentionConfig{RetentionDays: 30})
	if rc == nil {
		t.Fatal("cleaner not created")
	}
	defer rc.Stop()

	count, err := store.TotalLogCount(context.Background())
	if err != nil {
		t.Fatalf("TotalLogCount: %v", err)
	}
	if count != 1 {
		t.Errorf("logs after startup cleanup = %d, want 1", count)
	}
}
