package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
)

func setupPushTestDB(t *testing.T) (*PushStore, int64, int64) {
	t.Helper()
	db := setupTestDB(t)
	ctx := context.Background()
	rs := NewRoleStore(db)
	us := NewUserStore(db)

	admin, err := us.Create(ctx, "admin@example.com", "Admin", "password1", adminRoleID(t, rs))
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	coach, _ := rs.GetByName(ctx, "responsable_sportif")
	sport, err := us.Create(ctx, "coach@example.com", "Coach", "password1", coach.ID)
	if err != nil {
		t.Fatalf("create coach: %v", err)
	}
	return NewPushStore(db), admin.ID, sport.ID
}

func TestCreateSubscriptionUpsert(t *testing.T) {
	ps, admin, _ := setupPushTestDB(t)
	ctx := context.Background()

	sub1, err := ps.CreateSubscription(ctx, admin, "https://push.example.com/sub1", "key1", "auth1", "Device A")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	sub2, err := ps.CreateSubscription(ctx, admin, "https://push.example.com/sub1", "key2", "auth2", "Device B")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if sub2.ID != sub1.ID {
		t.Errorf("expected same ID on upsert, got %d != %d", sub2.ID, sub1.ID)
	}
	if sub2.P256dhKey != "key2" {
		t.Errorf("p256dh = %q, want %q", sub2.P256dhKey, "key2")
	}
}

func TestListByPermission(t *testing.T) {
	ps, admin, coach := setupPushTestDB(t)
	ctx := context.Background()

	ps.CreateSubscription(ctx, admin, "https://push.example.com/admin", "k", "a", "")
	ps.CreateSubscription(ctx, coach, "https://push.example.com/coach", "k", "a", "")

	subs, err := ps.ListByPermission(ctx, model.PermMembersWrite)
	if err != nil {
		t.Fatalf("list by permission: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != admin {
		t.Errorf("subs = %+v, want only the admin subscription", subs)
	}

	sport, _ := ps.ListByPermission(ctx, model.PermSportWrite)
	if len(sport) != 2 {
		t.Errorf("sport subs = %d, want 2", len(sport))
	}
}

func TestDeleteSubscription(t *testing.T) {
	ps, admin, coach := setupPushTestDB(t)
	ctx := context.Background()

	sub, _ := ps.CreateSubscription(ctx, admin, "https://push.example.com/admin", "k", "a", "")

	// Another user cannot delete it
	if err := ps.DeleteSubscription(ctx, sub.ID, coach); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("delete by other user err = %v, want sql.ErrNoRows", err)
	}
	subs, _ := ps.ListByUser(ctx, admin)
	if len(subs) != 1 {
		t.Fatalf("subs = %d, want 1", len(subs))
	}

	ps.DeleteByEndpoint(ctx, "https://push.example.com/admin")
	subs, _ = ps.ListByUser(ctx, admin)
	if len(subs) != 0 {
		t.Errorf("subs = %d, want 0", len(subs))
	}
}

func TestListByPermissionAdminGrant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	role, err := NewRoleStore(db).Create(ctx, "superviseur", "", []string{model.PermAdmin})
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	u, err := NewUserStore(db).Create(ctx, "sup@example.com", "Sup", "password1", role.ID)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	ps := NewPushStore(db)
	ps.CreateSubscription(ctx, u.ID, "https://push.example.com/sup", "k", "a", "")

	subs, err := ps.ListByPermission(ctx, model.PermFinanceWrite)
	if err != nil {
		t.Fatalf("list by permission: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != u.ID {
		t.Errorf("subs = %+v, want the admin-only role's device", subs)
	}
}
