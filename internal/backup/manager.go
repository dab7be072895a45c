package backup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

var (
	ErrDisabled   = errors.New("backup storage not configured")
	ErrNotFound   = errors.New("backup not found")
	ErrPassphrase = errors.New("backup is encrypted: passphrase required")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration. Passphrase encrypts scheduled
// backups; the schedule settings stored in the database override the hour
// and retention given here.
type Config struct {
	S3            S3Config
	Passphrase    string
	ScheduleHour  int
	RetentionDays int
	Logger        *slog.Logger
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Error      string     `json:"error,omitempty"`
	InProgress bool       `json:"in_progress"`
}

// StatusCallback is called whenever the backup state changes.
type StatusCallback func(Status)

// Manager stores backup documents in S3-compatible storage.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	status   Status
	callback StatusCallback
	logger   *slog.Logger

	db            *sql.DB
	backupStore   *store.BackupStore
	settingsStore *store.SettingsStore
	client        s3Client

	lastScheduled string

	cancel context.CancelFunc
	done   chan struct{}
}

func NewManager(cfg Config, db *sql.DB, bs *store.BackupStore, ss *store.SettingsStore, callback StatusCallback) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		cfg:           cfg,
		db:            db,
		backupStore:   bs,
		settingsStore: ss,
		callback:      callback,
		logger:        logger.With("component", "backup"),
		status:        Status{State: StateDisabled},
	}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
		m.status.State = StateIdle
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether S3 storage is configured.
func (m *Manager) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Start begins the scheduled backup loop. It is a no-op when disabled.
func (m *Manager) Start(ctx context.Context) {
	// A restart inside the scheduled hour must not upload a second copy.
	var last *model.Backup
	if m.Enabled() && m.backupStore != nil {
		var err error
		if last, err = m.backupStore.LatestCompleted(ctx); err != nil {
			m.logger.Warn("read latest backup", "error", err)
		}
	}

	m.mu.Lock()
	if last != nil && last.CompletedAt != nil {
		m.status.LastBackup = last.CompletedAt
		m.lastScheduled = last.CompletedAt.UTC().Format(slotLayout)
	}
	if m.status.State == StateDisabled {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				m.checkSchedule(ctx, t.UTC())
			}
		}
	}()
}

// Stop ends the scheduled loop and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if s.LastBackup == nil {
		s.LastBackup = m.status.LastBackup
	}
	m.status = s
	m.mu.Unlock()
	if m.callback != nil {
		m.callback(s)
	}
}

type schedule struct {
	enabled       bool
	hour          int
	retentionDays int
}

func (m *Manager) schedule(ctx context.Context) (schedule, error) {
	sc := schedule{hour: m.cfg.ScheduleHour, retentionDays: m.cfg.RetentionDays}
	settings, err := m.settingsStore.GetGroup(ctx, "backup")
	if err != nil {
		return sc, err
	}
	sc.enabled = settings["backup_enabled"] == "true"
	if h, err := strconv.Atoi(settings["backup_schedule_hour"]); err == nil && h >= 0 && h < 24 {
		sc.hour = h
	}
	if d, err := strconv.Atoi(settings["backup_retention_days"]); err == nil && d > 0 {
		sc.retentionDays = d
	}
	if sc.retentionDays <= 0 {
		sc.retentionDays = 30
	}
	return sc, nil
}

const slotLayout = "2006-01-02T15"

// checkSchedule runs at most one backup per scheduled hour.
func (m *Manager) checkSchedule(ctx context.Context, now time.Time) {
	sc, err := m.schedule(ctx)
	if err != nil {
		m.logger.Error("read backup settings", "error", err)
		return
	}
	if !sc.enabled || now.Hour() != sc.hour {
		return
	}
	slot := now.Format(slotLayout)
	if m.lastScheduled == slot {
		return
	}
	m.lastScheduled = slot

	if _, err := m.RunNow(ctx, m.cfg.Passphrase); err != nil {
		m.logger.Error("scheduled backup failed", "error", err)
	}
	if err := m.Cleanup(ctx, sc.retentionDays); err != nil {
		m.logger.Error("backup cleanup failed", "error", err)
	}
}

// RunNow exports the database, encrypts it when a passphrase is given and
// uploads it.
func (m *Manager) RunNow(ctx context.Context, passphrase string) (*model.Backup, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, ErrDisabled
	}

	m.setStatus(Status{State: StateRunning, InProgress: true})

	filename := "e2d-" + time.Now().UTC().Format("2006-01-02T150405.000Z") + ".json"
	if passphrase != "" {
		filename += ".enc"
	}
	s3Key := "backups/" + filename

	record, err := m.backupStore.Create(ctx, filename, s3Key)
	if err != nil {
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	fail := func(step string, err error) (*model.Backup, error) {
		m.backupStore.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error())
		m.setStatus(Status{State: StateError, Error: err.Error()})
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	doc, err := Export(ctx, m.db)
	if err != nil {
		return fail("export", err)
	}
	payload, err := doc.Marshal()
	if err != nil {
		return fail("encode", err)
	}
	if passphrase != "" {
		if payload, err = Encrypt(payload, passphrase); err != nil {
			return fail("encrypt", err)
		}
	}

	m.backupStore.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, "")
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(s3Key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
	})
	if err != nil {
		return fail("upload to s3", err)
	}

	if err := m.backupStore.UpdateCompleted(ctx, record.ID, int64(len(payload)), doc.Records()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	m.setStatus(Status{State: StateIdle, LastBackup: &now})
	m.logger.Info("backup completed", "id", record.ID, "key", s3Key, "records", doc.Records())

	return m.backupStore.GetByID(ctx, record.ID)
}

func (m *Manager) fetch(ctx context.Context, backupID int64) (*model.Backup, io.ReadCloser, error) {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil, nil, ErrDisabled
	}

	record, err := m.backupStore.GetByID(ctx, backupID)
	if err != nil {
		return nil, nil, fmt.Errorf("get backup: %w", err)
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return nil, nil, ErrNotFound
	}

	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("download from s3: %w", err)
	}
	return record, result.Body, nil
}

// Download streams a stored backup as it is in the bucket.
func (m *Manager) Download(ctx context.Context, backupID int64) (io.ReadCloser, *model.Backup, error) {
	record, body, err := m.fetch(ctx, backupID)
	if err != nil {
		return nil, nil, err
	}
	return body, record, nil
}

// Restore downloads a backup and imports it over the current data.
func (m *Manager) Restore(ctx context.Context, backupID int64, passphrase string) (*Document, error) {
	_, body, err := m.fetch(ctx, backupID)
	if err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}

	if IsEncrypted(payload) {
		if passphrase == "" {
			return nil, ErrPassphrase
		}
		if payload, err = Decrypt(payload, passphrase); err != nil {
			return nil, err
		}
	}

	doc, err := Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	if err := Import(ctx, m.db, doc); err != nil {
		return nil, err
	}
	m.logger.Info("backup restored", "id", backupID, "records", doc.Records())
	return doc, nil
}

// Cleanup deletes backups older than the retention period, records first.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) error {
	m.mu.RLock()
	client := m.client
	bucket := m.cfg.S3.Bucket
	m.mu.RUnlock()

	if client == nil {
		return nil
	}

	before := time.Now().UTC().AddDate(0, 0, -retentionDays)
	keys, err := m.backupStore.DeleteOlderThan(ctx, before)
	if err != nil {
		return fmt.Errorf("delete old backups: %w", err)
	}

	for _, key := range keys {
		if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete s3 object", "key", key, "error", err)
		}
	}
	return nil
}
