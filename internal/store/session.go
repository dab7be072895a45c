package store

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
)

// SessionStore keeps login sessions. Only a SHA-256 digest of each token
// is stored, so a leaked database does not hand out live cookies.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Create opens a session for userID lasting ttl. The returned Token is the
// only copy of the cookie value.
func (s *SessionStore) Create(ctx context.Context, userID int64, ttl time.Duration) (*model.Session, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	sess := &model.Session{
		Token:     base64.RawURLEncoding.EncodeToString(raw),
		UserID:    userID,
		CreatedAt: s.now(),
	}
	sess.ExpiresAt = sess.CreatedAt.Add(ttl)

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		hashToken(sess.Token), userID, sess.ExpiresAt, sess.CreatedAt,
	).Scan(&sess.ID)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetByToken resolves a cookie value. Unknown and expired tokens give nil.
func (s *SessionStore) GetByToken(ctx context.Context, token string) (*model.Session, error) {
	if token == "" {
		return nil, nil
	}
	sess := model.Session{Token: token}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, expires_at, created_at FROM sessions WHERE token = ? AND expires_at > ?`,
		hashToken(token), s.now(),
	).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session by token: %w", err)
	}
	return &sess, nil
}

func (s *SessionStore) exec(ctx context.Context, what, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return res.RowsAffected()
}

func (s *SessionStore) Delete(ctx context.Context, id int64) error {
	_, err := s.exec(ctx, "delete session", `DELETE FROM sessions WHERE id = ?`, id)
	return err
}

// DeleteExpired returns how many sessions were purged.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	return s.exec(ctx, "delete expired sessions", `DELETE FROM sessions WHERE expires_at <= ?`, s.now())
}

func (s *SessionStore) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, "delete sessions by user", `DELETE FROM sessions WHERE user_id = ?`, userID)
	return err
}

// DeleteOthers signs userID out everywhere except session keepID.
func (s *SessionStore) DeleteOthers(ctx context.Context, userID, keepID int64) (int64, error) {
	return s.exec(ctx, "delete other sessions", `DELETE FROM sessions WHERE user_id = ? AND id != ?`, userID, keepID)
}
