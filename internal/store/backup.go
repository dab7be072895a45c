package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
)

// BackupStore records uploads to object storage. The documents themselves
// live in the bucket; a row only tracks where and how the run went.
type BackupStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const backupCols = `id, filename, s3_key, size_bytes, records, status, error_message, started_at, completed_at, created_at, updated_at`

func scanBackup(scanner interface{ Scan(...any) error }) (*model.Backup, error) {
	var (
		b                      model.Backup
		errMsg                 sql.NullString
		startedAt, completedAt sql.NullTime
	)
	if err := scanner.Scan(&b.ID, &b.Filename, &b.S3Key, &b.SizeBytes, &b.Records, &b.Status, &errMsg,
		&startedAt, &completedAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.ErrorMessage = errMsg.String
	if startedAt.Valid {
		b.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		b.CompletedAt = &completedAt.Time
	}
	return &b, nil
}

func (s *BackupStore) one(ctx context.Context, what, query string, args ...any) (*model.Backup, error) {
	b, err := scanBackup(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	return b, nil
}

// Create opens a pending record for an upload about to start.
func (s *BackupStore) Create(ctx context.Context, filename, s3Key string) (*model.Backup, error) {
	now := s.now()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO backups (filename, s3_key, status, started_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`,
		filename, s3Key, model.BackupStatusPending, now, now, now,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create backup: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *BackupStore) GetByID(ctx context.Context, id int64) (*model.Backup, error) {
	return s.one(ctx, fmt.Sprintf("get backup %d", id), `SELECT `+backupCols+` FROM backups WHERE id = ?`, id)
}

// LatestCompleted is the most recent successful upload, or nil.
func (s *BackupStore) LatestCompleted(ctx context.Context) (*model.Backup, error) {
	return s.one(ctx, "latest completed backup",
		`SELECT `+backupCols+` FROM backups WHERE status = ? ORDER BY completed_at DESC, id DESC LIMIT 1`,
		model.BackupStatusCompleted,
	)
}

// List returns the newest limit records.
func (s *BackupStore) List(ctx context.Context, limit int) ([]model.Backup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+backupCols+` FROM backups ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	defer rows.Close()

	backups := []model.Backup{}
	for rows.Next() {
		b, err := scanBackup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup: %w", err)
		}
		backups = append(backups, *b)
	}
	return backups, rows.Err()
}

// UpdateStatus moves a run to status. errorMsg is cleared when empty.
func (s *BackupStore) UpdateStatus(ctx context.Context, id int64, status model.BackupStatus, errorMsg string) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		status, nullString(errorMsg), s.now(), id,
	); err != nil {
		return fmt.Errorf("update backup %d status: %w", id, err)
	}
	return nil
}

// UpdateCompleted marks a run successful with its payload size and the
// number of rows it holds.
func (s *BackupStore) UpdateCompleted(ctx context.Context, id, sizeBytes, records int64) error {
	now := s.now()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE backups SET status = ?, size_bytes = ?, records = ?, error_message = NULL, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		model.BackupStatusCompleted, sizeBytes, records, now, now, id,
	); err != nil {
		return fmt.Errorf("complete backup %d: %w", id, err)
	}
	return nil
}

// DeleteOlderThan drops records created before cutoff and returns their
// object keys so the caller can remove the files.
func (s *BackupStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM backups WHERE created_at < ? RETURNING s3_key`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("delete old backups: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan s3 key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
