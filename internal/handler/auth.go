package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/middleware"
	"github.com/e2dconnect/e2d/internal/store"
)

type AuthHandler struct {
	users        *store.UserStore
	sessions     *store.SessionStore
	sessionTTL   time.Duration
	secureCookie bool
	logger       *slog.Logger
}

func NewAuthHandler(us *store.UserStore, ss *store.SessionStore, ttl time.Duration, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{users: us, sessions: ss, sessionTTL: ttl, secureCookie: secure, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /login. Unknown emails, disabled accounts and wrong
// passwords all get the same 401.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	email := store.NormalizeEmail(req.Email)

	user, err := h.users.Authenticate(r.Context(), email, req.Password)
	if err != nil {
		writeStoreError(w, h.logger, "failed to authenticate", err)
		return
	}
	if user == nil {
		h.logger.Info("login refused", "email", email, "ip", middleware.RealIP(r))
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessions.Create(r.Context(), user.ID, h.sessionTTL)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create session", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.secureCookie || r.TLS != nil,
	})
	h.logger.Info("login", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "expires_at": sess.ExpiresAt})
}

// Logout handles POST /logout. It succeeds whether or not a session exists.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		if sess, err := h.sessions.GetByToken(r.Context(), token); err == nil && sess != nil {
			if err := h.sessions.Delete(r.Context(), sess.ID); err != nil {
				h.logger.Error("delete session", "error", err)
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// Me handles GET /api/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:          ac.UserID,
		Email:       ac.Email,
		Name:        ac.Name,
		Role:        ac.Role,
		Permissions: nonNil(ac.Permissions),
	})
}

type passwordRequest struct {
	Current string `json:"current_password" validate:"required"`
	New     string `json:"new_password" validate:"required,min=8,max=72"`
}

// ChangePassword handles PUT /api/me/password. Every session of the user
// is closed, so the client has to log in again.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req passwordRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.users.Authenticate(r.Context(), ac.Email, req.Current)
	if err != nil {
		writeStoreError(w, h.logger, "failed to check password", err)
		return
	}
	if user == nil {
		writeError(w, http.StatusForbidden, "current password is incorrect")
		return
	}
	if err := h.users.SetPassword(r.Context(), ac.UserID, req.New); err != nil {
		writeStoreError(w, h.logger, "failed to change password", err)
		return
	}
	// The caller stays signed in; every other device must log in again.
	if _, err := h.sessions.DeleteOthers(r.Context(), ac.UserID, ac.SessionID); err != nil {
		h.logger.Error("close sessions after password change", "user_id", ac.UserID, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}
