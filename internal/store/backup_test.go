package store

import (
	"context"
	"testing"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
)

func TestBackupCreate(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))

	b, err := bs.Create(context.Background(), "e2d-20240101.json.enc", "backups/e2d-20240101.json.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if b.Status != model.BackupStatusPending {
		t.Errorf("status = %q, want %q", b.Status, model.BackupStatusPending)
	}
}

func TestBackupUpdateStatus(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()

	b, _ := bs.Create(ctx, "test.json.enc", "backups/test.json.enc")
	if err := bs.UpdateStatus(ctx, b.ID, model.BackupStatusFailed, "upload failed"); err != nil {
		t.Fatalf("update status: %v", err)
	}

	got, _ := bs.GetByID(ctx, b.ID)
	if got.Status != model.BackupStatusFailed {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusFailed)
	}
	if got.ErrorMessage != "upload failed" {
		t.Errorf("error_message = %q, want %q", got.ErrorMessage, "upload failed")
	}
}

func TestBackupUpdateCompleted(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()

	b, _ := bs.Create(ctx, "test.json.enc", "backups/test.json.enc")
	if err := bs.UpdateCompleted(ctx, b.ID, 2048, 37); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, _ := bs.GetByID(ctx, b.ID)
	if got.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want %q", got.Status, model.BackupStatusCompleted)
	}
	if got.SizeBytes != 2048 || got.Records != 37 {
		t.Errorf("size/records = %d/%d, want 2048/37", got.SizeBytes, got.Records)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}

	latest, _ := bs.LatestCompleted(ctx)
	if latest == nil || latest.ID != b.ID {
		t.Errorf("latest = %+v, want backup %d", latest, b.ID)
	}
}

func TestBackupListOrderAndLimit(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()

	bs.Create(ctx, "first.json.enc", "backups/first.json.enc")
	bs.Create(ctx, "second.json.enc", "backups/second.json.enc")
	bs.Create(ctx, "third.json.enc", "backups/third.json.enc")

	all, err := bs.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	if all[0].Filename != "third.json.enc" {
		t.Errorf("first entry = %q, want %q", all[0].Filename, "third.json.enc")
	}

	limited, _ := bs.List(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("len = %d, want 2", len(limited))
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	bs := NewBackupStore(setupTestDB(t))
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	bs.now = func() time.Time { return start }
	bs.Create(ctx, "old.json.enc", "backups/old.json.enc")
	bs.now = func() time.Time { return start.AddDate(0, 0, 40) }
	bs.Create(ctx, "new.json.enc", "backups/new.json.enc")
	cutoff := start.AddDate(0, 0, 30)

	keys, err := bs.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 1 || keys[0] != "backups/old.json.enc" {
		t.Fatalf("deleted keys = %v, want [backups/old.json.enc]", keys)
	}

	remaining, _ := bs.List(ctx, 10)
	if len(remaining) != 1 || remaining[0].Filename != "new.json.enc" {
		t.Errorf("remaining = %+v, want only new.json.enc", remaining)
	}
}
