package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/model"

	ws "github.com/coder/websocket"
)

var treasurer = auth.AuthContext{UserID: 2, Permissions: []string{model.PermFinanceRead, model.PermMembersRead}}

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, ac auth.AuthContext) *Client {
	return &Client{
		hub:  hub,
		auth: ac,
		send: make(chan []byte, sendBufferSize),
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var got Message
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return got, true
	case <-time.After(50 * time.Millisecond):
		return Message{}, false
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c1 := mockClient(hub, treasurer)
	c2 := mockClient(hub, treasurer)

	hub.Register(c1)
	hub.Register(c2)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)
	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}
}

func TestBroadcastFiltersByPermission(t *testing.T) {
	hub := NewHub(slog.Default())
	admin := mockClient(hub, auth.AuthContext{UserID: 1, Permissions: []string{model.PermAdmin}})
	tres := mockClient(hub, treasurer)
	coach := mockClient(hub, auth.AuthContext{UserID: 3, Permissions: []string{model.PermSportRead}})
	for _, c := range []*Client{admin, tres, coach} {
		hub.Register(c)
	}

	hub.Notify(EntityLoan, ActionCreated, 42)

	for _, c := range []*Client{admin, tres} {
		got, ok := receive(t, c)
		if !ok {
			t.Fatalf("user %d: no message", c.auth.UserID)
		}
		if got.Type != "loan_created" || got.Entity != EntityLoan || got.ID != 42 {
			t.Errorf("user %d: got %+v", c.auth.UserID, got)
		}
	}
	if got, ok := receive(t, coach); ok {
		t.Errorf("coach received %+v", got)
	}

	hub.Notify(EntityBackup, ActionCreated, 1)
	if _, ok := receive(t, admin); !ok {
		t.Error("admin missed backup notification")
	}
	if _, ok := receive(t, tres); ok {
		t.Error("treasurer received admin-only notification")
	}
}

func TestMessagePermission(t *testing.T) {
	tests := []struct {
		entity string
		want   string
	}{
		{EntityMember, model.PermMembersRead},
		{EntityContribution, model.PermFinanceRead},
		{EntityMatch, model.PermSportRead},
		{EntityMeeting, model.PermMeetingsRead},
		{EntityUser, model.PermAdmin},
		{"unknown", model.PermAdmin},
	}
	for _, tt := range tests {
		if got := NewMessage(tt.entity, ActionUpdated, 1).Permission(); got != tt.want {
			t.Errorf("%s: permission = %q, want %q", tt.entity, got, tt.want)
		}
	}
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, treasurer)
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.Notify(EntityMember, ActionUpdated, int64(i))
	}
	// dropped, must not block
	hub.Notify(EntityMember, ActionUpdated, 999)

	if got := len(c.send); got != sendBufferSize {
		t.Errorf("buffered = %d, want %d", got, sendBufferSize)
	}
	hub.Unregister(c)
}

func TestBroadcastNilHub(t *testing.T) {
	var hub *Hub
	hub.Notify(EntityMember, ActionCreated, 1)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, treasurer)
			hub.Register(c)
			hub.Notify(EntitySaving, ActionCreated, 0)
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestHandlerDeliversMessages(t *testing.T) {
	hub := NewHub(slog.Default())
	withAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), treasurer)))
		})
	}
	srv := httptest.NewServer(withAuth(Handler(hub, nil, slog.Default())))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Notify(EntityContribution, ActionCreated, 7)

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "contribution_created" || got.ID != 7 {
		t.Errorf("got %+v", got)
	}
}

func TestHandlerRequiresAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler(NewHub(nil), nil, nil)(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestHandlerAnswersPing(t *testing.T) {
	hub := NewHub(slog.Default())
	withAuth := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), treasurer)))
		})
	}
	srv := httptest.NewServer(withAuth(Handler(hub, nil, slog.Default())))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"hello"}`)); err != nil {
		t.Fatalf("write hello: %v", err)
	}
	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"type":"pong"}` {
		t.Errorf("got %s, want pong", data)
	}
}
