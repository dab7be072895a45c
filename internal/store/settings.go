package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// SettingGroups lists the keys each settings screen may edit.
var SettingGroups = map[string][]string{
	"association": {"association_name", "association_currency", "default_loan_rate"},
	"backup":      {"backup_enabled", "backup_schedule_hour", "backup_retention_days"},
}

var ErrUnknownGroup = errors.New("unknown settings group")

// SettingsStore is a key/value table of association preferences.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// GetOr returns the value of key, or fallback when it is unset.
func (s *SettingsStore) GetOr(ctx context.Context, key, fallback string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fallback, nil
	case err != nil:
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

// Float reads a numeric setting. Unset or unparsable values give fallback;
// the second result is false in the unparsable case.
func (s *SettingsStore) Float(ctx context.Context, key string, fallback float64) (float64, bool, error) {
	raw, err := s.GetOr(ctx, key, "")
	if err != nil || raw == "" {
		return fallback, true, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback, false, nil
	}
	return v, true, nil
}

// GetGroup returns the stored values of a group. Unset keys are omitted.
func (s *SettingsStore) GetGroup(ctx context.Context, group string) (map[string]string, error) {
	keys, ok := SettingGroups[group]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownGroup, group)
	}
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM settings WHERE key IN (?`+strings.Repeat(", ?", len(keys)-1)+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s settings: %w", group, err)
	}
	defer rows.Close()

	values := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		values[k] = v
	}
	return values, rows.Err()
}

// SetGroup writes values atomically. Keys outside the group are rejected
// before anything is written.
func (s *SettingsStore) SetGroup(ctx context.Context, group string, values map[string]string) error {
	keys, ok := SettingGroups[group]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownGroup, group)
	}
	for k := range values {
		if !slices.Contains(keys, k) {
			return fmt.Errorf("setting %q is not part of group %q", k, group)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare setting upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for k, v := range values {
		if _, err := stmt.ExecContext(ctx, k, v, now); err != nil {
			return fmt.Errorf("set setting %q: %w", k, err)
		}
	}
	return tx.Commit()
}
