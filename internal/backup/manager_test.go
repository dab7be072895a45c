package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

// mockS3Client implements s3Client for testing.
type mockS3Client struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3Client) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

var testS3 = S3Config{Bucket: "test", AccessKey: "key", SecretKey: "secret", Region: "auto"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) (*Manager, *mockS3Client) {
	t.Helper()
	db := setupTestDB(t)
	seed(t, db)
	m := NewManager(Config{S3: testS3, Logger: quietLogger(), RetentionDays: 30},
		db, store.NewBackupStore(db), store.NewSettingsStore(db), nil)
	mock := newMockS3()
	m.client = mock
	return m, mock
}

func TestManagerStateLifecycle(t *testing.T) {
	m := NewManager(Config{Logger: quietLogger()}, nil, nil, nil, nil)
	if m.Status().State != StateDisabled {
		t.Errorf("state = %q, want %q", m.Status().State, StateDisabled)
	}
	if m.Enabled() {
		t.Error("manager without S3 should be disabled")
	}
	if _, err := m.RunNow(context.Background(), ""); !errors.Is(err, ErrDisabled) {
		t.Errorf("run err = %v, want ErrDisabled", err)
	}

	m2 := NewManager(Config{S3: testS3, Logger: quietLogger()}, nil, nil, nil, nil)
	if m2.Status().State != StateIdle {
		t.Errorf("state = %q, want %q", m2.Status().State, StateIdle)
	}
}

func TestManagerStatusCallback(t *testing.T) {
	var received []Status
	var mu sync.Mutex
	cb := func(s Status) {
		mu.Lock()
		received = append(received, s)
		mu.Unlock()
	}

	m := NewManager(Config{S3: testS3, Logger: quietLogger()}, nil, nil, nil, cb)
	m.setStatus(Status{State: StateRunning, InProgress: true})
	m.setStatus(Status{State: StateIdle})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 {
		t.Fatalf("received %d callbacks, want 2", len(received))
	}
	if received[0].State != StateRunning || received[1].State != StateIdle {
		t.Errorf("states = %q, %q", received[0].State, received[1].State)
	}
}

func TestManagerStopSafety(t *testing.T) {
	m := NewManager(Config{S3: testS3, Logger: quietLogger()}, nil, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	m.Stop()
	m.Stop()

	disabled := NewManager(Config{Logger: quietLogger()}, nil, nil, nil, nil)
	disabled.Start(context.Background())
	disabled.Stop()
}

func TestRunNowEncrypted(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()

	b, err := m.RunNow(ctx, "s3cret")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	if b.Status != model.BackupStatusCompleted {
		t.Errorf("status = %q, want completed", b.Status)
	}
	if b.Records == 0 || b.SizeBytes == 0 {
		t.Errorf("records/size = %d/%d, want non-zero", b.Records, b.SizeBytes)
	}

	data, ok := mock.objects[b.S3Key]
	if !ok {
		t.Fatalf("object %q not uploaded", b.S3Key)
	}
	if bytes.Contains(data, []byte(`"version"`)) {
		t.Error("uploaded object should be encrypted")
	}
	if m.Status().LastBackup == nil {
		t.Error("expected last backup time")
	}
}

func TestRunNowUploadFailure(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()
	mock.putErr = errors.New("bucket unreachable")

	if _, err := m.RunNow(ctx, ""); err == nil {
		t.Fatal("expected upload error")
	}
	if m.Status().State != StateError {
		t.Errorf("state = %q, want %q", m.Status().State, StateError)
	}
	list, _ := m.backupStore.List(ctx, 10)
	if len(list) != 1 || list[0].Status != model.BackupStatusFailed {
		t.Errorf("backups = %+v, want one failed", list)
	}
}

func TestRestore(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	events := store.NewEventStore(m.db)

	b, err := m.RunNow(ctx, "s3cret")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}

	list, _ := events.List(ctx)
	if err := events.Delete(ctx, list[0].ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	if _, err := m.Restore(ctx, b.ID, ""); !errors.Is(err, ErrPassphrase) {
		t.Errorf("restore without passphrase err = %v, want ErrPassphrase", err)
	}
	if _, err := m.Restore(ctx, b.ID, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("restore with wrong passphrase err = %v, want ErrDecrypt", err)
	}

	doc, err := m.Restore(ctx, b.ID, "s3cret")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if doc.Counts["events"] != 1 {
		t.Errorf("document events = %d, want 1", doc.Counts["events"])
	}
	list, _ = events.List(ctx)
	if len(list) != 1 || list[0].Title != "Tournoi" {
		t.Errorf("events after restore = %+v", list)
	}

	if _, err := m.Restore(ctx, 999, ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("restore missing err = %v, want ErrNotFound", err)
	}
}

func TestDownloadPlain(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	b, err := m.RunNow(ctx, "")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}
	body, record, err := m.Download(ctx, b.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()

	doc, err := Decode(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Records() != record.Records {
		t.Errorf("records = %d, want %d", doc.Records(), record.Records)
	}
}

func TestCleanup(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()

	old, _ := m.RunNow(ctx, "")
	old2 := old.ID
	m.db.Exec(`UPDATE backups SET created_at = ? WHERE id = ?`, time.Now().UTC().AddDate(0, 0, -40), old2)
	recent, _ := m.RunNow(ctx, "x")
	if recent == nil || mock.count() != 2 {
		t.Fatalf("objects = %d, want 2", mock.count())
	}

	if err := m.Cleanup(ctx, 30); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if mock.count() != 1 {
		t.Errorf("objects = %d, want 1", mock.count())
	}
	if _, ok := mock.objects[recent.S3Key]; !ok {
		t.Error("recent backup should be kept")
	}
	got, _ := m.backupStore.GetByID(ctx, old2)
	if got != nil {
		t.Error("old backup record should be deleted")
	}
}

func TestCheckScheduleRunsOncePerSlot(t *testing.T) {
	m, mock := newTestManager(t)
	ctx := context.Background()

	now := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	m.checkSchedule(ctx, now)
	if mock.count() != 0 {
		t.Fatalf("backup ran while disabled")
	}

	if err := m.settingsStore.SetGroup(ctx, "backup", map[string]string{"backup_enabled": "true", "backup_schedule_hour": "3"}); err != nil {
		t.Fatalf("enable backups: %v", err)
	}
	m.checkSchedule(ctx, now.Add(-time.Hour))
	if mock.count() != 0 {
		t.Fatalf("backup ran outside its hour")
	}

	m.checkSchedule(ctx, now)
	m.checkSchedule(ctx, now.Add(time.Minute))
	if mock.count() != 1 {
		t.Errorf("objects = %d, want 1", mock.count())
	}
}

func TestStartResumesFromLatestBackup(t *testing.T) {
	m, _ := newTestManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := m.RunNow(ctx, "")
	if err != nil {
		t.Fatalf("run now: %v", err)
	}

	m.mu.Lock()
	m.status.LastBackup = nil
	m.mu.Unlock()

	m.Start(ctx)
	defer m.Stop()

	st := m.Status()
	if st.LastBackup == nil || !st.LastBackup.Equal(*b.CompletedAt) {
		t.Errorf("last backup = %v, want %v", st.LastBackup, b.CompletedAt)
	}
	m.mu.RLock()
	slot := m.lastScheduled
	m.mu.RUnlock()
	if slot != b.CompletedAt.UTC().Format(slotLayout) {
		t.Errorf("last slot = %q", slot)
	}
}
