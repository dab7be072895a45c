package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/store"
)

// SessionCookieName is the cookie holding the session token.
const SessionCookieName = "e2d_session"

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// SessionToken returns the token from the session cookie or, failing that,
// from an "Authorization: Bearer" header.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// RequireAuth validates the session and populates AuthContext with the
// user's role permissions. Inactive users are rejected.
func RequireAuth(sessions *store.SessionStore, users *store.UserStore, roles *store.RoleStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			ctx := r.Context()
			sess, err := sessions.GetByToken(ctx, token)
			if err != nil || sess == nil {
				writeError(w, http.StatusUnauthorized, "session expired")
				return
			}

			user, err := users.GetByID(ctx, sess.UserID)
			if err != nil || user == nil || !user.Active {
				writeError(w, http.StatusUnauthorized, "account disabled")
				return
			}

			perms, err := roles.Permissions(ctx, user.RoleID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to load permissions")
				return
			}

			ac := auth.AuthContext{
				UserID:      user.ID,
				Email:       user.Email,
				Name:        user.Name,
				Role:        user.RoleName,
				Permissions: perms,
				SessionID:   sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(ctx, ac)))
		})
	}
}

// RequirePermission rejects requests whose user does not hold perm.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.Can(r.Context(), perm) {
				writeError(w, http.StatusForbidden, "permission denied: "+perm)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
