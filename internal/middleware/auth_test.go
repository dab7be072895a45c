package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/database"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

type authStores struct {
	sessions *store.SessionStore
	users    *store.UserStore
	roles    *store.RoleStore
}

func setupAuthStores(t *testing.T) authStores {
	t.Helper()
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return authStores{
		sessions: store.NewSessionStore(db),
		users:    store.NewUserStore(db),
		roles:    store.NewRoleStore(db),
	}
}

func (s authStores) handler(t *testing.T, reached *auth.AuthContext) http.Handler {
	return RequireAuth(s.sessions, s.users, s.roles)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			t.Fatal("expected AuthContext in request context")
		}
		if reached != nil {
			*reached = ac
		}
		w.WriteHeader(http.StatusOK)
	}))
}

func (s authStores) login(t *testing.T, roleName string) (*model.User, *model.Session) {
	t.Helper()
	ctx := context.Background()
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil || role == nil {
		t.Fatalf("role %q: %v", roleName, err)
	}
	u, err := s.users.Create(ctx, roleName+"@example.com", "Test", "password1", role.ID)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := s.sessions.Create(ctx, u.ID, time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return u, sess
}

func TestRequireAuthNoToken(t *testing.T) {
	s := setupAuthStores(t)
	rec := httptest.NewRecorder()
	s.handler(t, nil).ServeHTTP(rec, httptest.NewRequest("GET", "/api/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	s := setupAuthStores(t)
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "invalid-token"})
	rec := httptest.NewRecorder()
	s.handler(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidCookie(t *testing.T) {
	s := setupAuthStores(t)
	u, sess := s.login(t, "tresorier")

	var got auth.AuthContext
	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	s.handler(t, &got).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != u.ID || got.SessionID != sess.ID {
		t.Errorf("auth context = %+v", got)
	}
	if got.Role != "tresorier" {
		t.Errorf("Role = %q, want tresorier", got.Role)
	}
	if !got.Can(model.PermFinanceWrite) || got.Can(model.PermMembersWrite) {
		t.Errorf("permissions = %v", got.Permissions)
	}
}

func TestRequireAuthBearer(t *testing.T) {
	s := setupAuthStores(t)
	_, sess := s.login(t, "secretaire")

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec := httptest.NewRecorder()
	s.handler(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireAuthInactiveUser(t *testing.T) {
	s := setupAuthStores(t)
	u, sess := s.login(t, "secretaire")
	if _, err := s.users.Update(context.Background(), u.ID, u.Email, u.Name, u.RoleID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	s.handler(t, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequirePermission(t *testing.T) {
	tests := []struct {
		name  string
		perms []string
		want  int
	}{
		{"granted", []string{model.PermSportWrite}, http.StatusOK},
		{"admin", []string{model.PermAdmin}, http.StatusOK},
		{"missing", []string{model.PermSportRead}, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := auth.WithAuth(context.Background(), auth.AuthContext{Permissions: tt.perms})
			req := httptest.NewRequest("POST", "/api/matches", nil).WithContext(ctx)
			rec := httptest.NewRecorder()

			RequirePermission(model.PermSportWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
