package push

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/e2dconnect/e2d/internal/database"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// setupSubscribers registers a treasurer and a coach, each with one device.
func setupSubscribers(t *testing.T) (*sql.DB, *store.PushStore) {
	t.Helper()
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	roles := store.NewRoleStore(db)
	users := store.NewUserStore(db)
	ps := store.NewPushStore(db)

	for _, u := range []struct{ email, role, endpoint string }{
		{"tresorier@example.com", "tresorier", "https://push.example.com/treasurer"},
		{"coach@example.com", "responsable_sportif", "https://push.example.com/coach"},
	} {
		r, err := roles.GetByName(ctx, u.role)
		if err != nil || r == nil {
			t.Fatalf("get role %s: %v", u.role, err)
		}
		user, err := users.Create(ctx, u.email, u.role, "password1", r.ID)
		if err != nil {
			t.Fatalf("create user: %v", err)
		}
		if _, err := ps.CreateSubscription(ctx, user.ID, u.endpoint, testP256dh, testAuth, ""); err != nil {
			t.Fatalf("create subscription: %v", err)
		}
	}
	return db, ps
}

func TestNotifyPermissionTargetsRole(t *testing.T) {
	_, ps := setupSubscribers(t)
	client := &fakeClient{}
	n := NewNotifier(newTestService(t, client), ps, discard)

	sent := n.NotifyPermission(context.Background(), model.PermFinanceWrite, Payload{Title: "x"})
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(client.hits) != 1 || client.hits[0] != "https://push.example.com/treasurer" {
		t.Errorf("hits = %v, want only the treasurer", client.hits)
	}

	sent = n.NotifyPermission(context.Background(), model.PermMembersRead, Payload{Title: "x"})
	if sent != 2 {
		t.Errorf("members:read sent = %d, want 2", sent)
	}
}

func TestNotifyPermissionPrunesExpired(t *testing.T) {
	_, ps := setupSubscribers(t)
	client := &fakeClient{status: map[string]int{"https://push.example.com/coach": http.StatusGone}}
	n := NewNotifier(newTestService(t, client), ps, discard)
	ctx := context.Background()

	if sent := n.NotifyPermission(ctx, model.PermSportWrite, Payload{Title: "x"}); sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
	subs, _ := ps.ListByPermission(ctx, model.PermSportWrite)
	if len(subs) != 0 {
		t.Errorf("remaining sport subs = %d, want 0", len(subs))
	}
}

func TestNotifyPermissionDisabled(t *testing.T) {
	_, ps := setupSubscribers(t)
	n := NewNotifier(NewService("", "", ""), ps, discard)
	if sent := n.NotifyPermission(context.Background(), model.PermMembersRead, Payload{}); sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
	var nilNotifier *Notifier
	if sent := nilNotifier.NotifyPermission(context.Background(), model.PermMembersRead, Payload{}); sent != 0 {
		t.Errorf("nil notifier sent = %d", sent)
	}
}
