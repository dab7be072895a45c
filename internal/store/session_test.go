package store

import (
	"context"
	"testing"
	"time"
)

func setupSessionTestDB(t *testing.T) (*SessionStore, int64) {
	t.Helper()
	db := setupTestDB(t)
	roleID := adminRoleID(t, NewRoleStore(db))
	u, err := NewUserStore(db).Create(context.Background(), "alice@example.com", "Alice", "password1", roleID)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return NewSessionStore(db), u.ID
}

func TestSessionCreateStoresDigest(t *testing.T) {
	ss, uid := setupSessionTestDB(t)

	sess, err := ss.Create(context.Background(), uid, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 43 { // 32 bytes, unpadded base64url
		t.Errorf("token length = %d, want 43", len(sess.Token))
	}
	if sess.ID == 0 || sess.UserID != uid {
		t.Errorf("session = %+v", sess)
	}

	var stored string
	ss.db.QueryRow(`SELECT token FROM sessions WHERE id = ?`, sess.ID).Scan(&stored)
	if stored == sess.Token || stored != hashToken(sess.Token) {
		t.Errorf("stored token = %q, want the digest of the cookie value", stored)
	}
}

func TestSessionGetByToken(t *testing.T) {
	ss, uid := setupSessionTestDB(t)
	ctx := context.Background()

	created, _ := ss.Create(ctx, uid, time.Hour)
	sess, err := ss.GetByToken(ctx, created.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if sess == nil || sess.ID != created.ID || sess.UserID != uid {
		t.Fatalf("session = %+v, want id %d", sess, created.ID)
	}

	for _, token := range []string{"nonexistent", "", hashToken(created.Token)} {
		got, err := ss.GetByToken(ctx, token)
		if err != nil || got != nil {
			t.Errorf("GetByToken(%q) = %+v, %v; want nil", token, got, err)
		}
	}
}

func TestSessionExpired(t *testing.T) {
	ss, uid := setupSessionTestDB(t)
	ctx := context.Background()

	expired, _ := ss.Create(ctx, uid, time.Hour)
	ss.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	ss.Create(ctx, uid, time.Hour)

	if sess, _ := ss.GetByToken(ctx, expired.Token); sess != nil {
		t.Error("expected expired session to be hidden")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
}

func TestSessionDeleteOthers(t *testing.T) {
	ss, uid := setupSessionTestDB(t)
	ctx := context.Background()

	keep, _ := ss.Create(ctx, uid, time.Hour)
	other, _ := ss.Create(ctx, uid, time.Hour)

	n, err := ss.DeleteOthers(ctx, uid, keep.ID)
	if err != nil || n != 1 {
		t.Fatalf("delete others = %d, %v; want 1", n, err)
	}
	if sess, _ := ss.GetByToken(ctx, keep.Token); sess == nil {
		t.Error("kept session should survive")
	}
	if sess, _ := ss.GetByToken(ctx, other.Token); sess != nil {
		t.Error("other session should be gone")
	}

	if err := ss.DeleteByUserID(ctx, uid); err != nil {
		t.Fatalf("delete by user id: %v", err)
	}
	var count int
	ss.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE user_id = ?`, uid).Scan(&count)
	if count != 0 {
		t.Errorf("expected 0 sessions, got %d", count)
	}
}
