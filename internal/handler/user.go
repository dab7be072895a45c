package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

// UserHandler administers back-office accounts and their roles.
type UserHandler struct {
	users    *store.UserStore
	roles    *store.RoleStore
	sessions *store.SessionStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewUserHandler(us *store.UserStore, rs *store.RoleStore, ss *store.SessionStore, hub *websocket.Hub, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: us, roles: rs, sessions: ss, hub: hub, logger: logger}
}

// --- Users ---

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Name     string `json:"name" validate:"notblank,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	RoleID   int64  `json:"role_id" validate:"required,gt=0"`
}

type updateUserRequest struct {
	Email    string `json:"email" validate:"required,email,max=200"`
	Name     string `json:"name" validate:"notblank,max=100"`
	RoleID   int64  `json:"role_id" validate:"required,gt=0"`
	Active   *bool  `json:"active"`
	Password string `json:"password" validate:"omitempty,min=8,max=72"`
}

func (h *UserHandler) roleExists(w http.ResponseWriter, r *http.Request, id int64) bool {
	role, err := h.roles.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get role", err)
		return false
	}
	if role == nil {
		return check(w, validate.Field("role_id", "rôle introuvable"))
	}
	return true
}

// emailTaken writes a 409 when another account already uses email.
func (h *UserHandler) emailTaken(w http.ResponseWriter, r *http.Request, email string, self int64) bool {
	u, err := h.users.GetByEmail(r.Context(), email)
	if err != nil {
		writeStoreError(w, h.logger, "failed to check email", err)
		return true
	}
	if u != nil && u.ID != self {
		writeError(w, http.StatusConflict, "email already in use")
		return true
	}
	return false
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to list users", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(users))
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decode(w, r, &req) {
		return
	}
	email := store.NormalizeEmail(req.Email)
	if !h.roleExists(w, r, req.RoleID) || h.emailTaken(w, r, email, 0) {
		return
	}
	u, err := h.users.Create(r.Context(), email, strings.TrimSpace(req.Name), req.Password, req.RoleID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create user", err)
		return
	}
	h.hub.Notify(websocket.EntityUser, websocket.ActionCreated, u.ID)
	writeJSON(w, http.StatusCreated, u)
}

// UpdateUser handles PUT /api/users/{id}. Disabling an account or
// resetting its password closes its sessions. Users cannot disable
// themselves.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get user", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	var req updateUserRequest
	if !decode(w, r, &req) {
		return
	}
	active := existing.Active
	if req.Active != nil {
		active = *req.Active
	}
	if !active && id == auth.UserID(r.Context()) {
		writeError(w, http.StatusConflict, "you cannot disable your own account")
		return
	}
	email := store.NormalizeEmail(req.Email)
	if !h.roleExists(w, r, req.RoleID) || h.emailTaken(w, r, email, id) {
		return
	}

	u, err := h.users.Update(r.Context(), id, email, strings.TrimSpace(req.Name), req.RoleID, active)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update user", err)
		return
	}
	if req.Password != "" {
		if err := h.users.SetPassword(r.Context(), id, req.Password); err != nil {
			writeStoreError(w, h.logger, "failed to set password", err)
			return
		}
	}
	if !active || req.Password != "" {
		if err := h.sessions.DeleteByUserID(r.Context(), id); err != nil {
			h.logger.Error("close user sessions", "user_id", id, "error", err)
		}
	}
	h.hub.Notify(websocket.EntityUser, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, u)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if id == auth.UserID(r.Context()) {
		writeError(w, http.StatusConflict, "you cannot delete your own account")
		return
	}
	if err := h.sessions.DeleteByUserID(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to close user sessions", err)
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete user", err)
		return
	}
	h.hub.Notify(websocket.EntityUser, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Roles ---

type roleRequest struct {
	Name        string   `json:"name" validate:"notblank,max=50"`
	Description string   `json:"description" validate:"max=300"`
	Permissions []string `json:"permissions" validate:"required,min=1"`
}

func (req roleRequest) permissions() ([]string, error) {
	out := make([]string, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		if !slices.Contains(model.AllPermissions, p) {
			return nil, validate.Field("permissions", "permission inconnue: "+p)
		}
		if !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Permissions handles GET /api/permissions.
func (h *UserHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.AllPermissions)
}

func (h *UserHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to list roles", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(roles))
}

func (h *UserHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	perms, err := req.permissions()
	if !check(w, err) {
		return
	}
	role, err := h.roles.Create(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Description), perms)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create role", err)
		return
	}
	h.hub.Notify(websocket.EntityRole, websocket.ActionCreated, role.ID)
	writeJSON(w, http.StatusCreated, role)
}

func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !decode(w, r, &req) {
		return
	}
	perms, err := req.permissions()
	if !check(w, err) {
		return
	}
	existing, err := h.roles.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get role", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "role not found")
		return
	}
	role, err := h.roles.Update(r.Context(), id, strings.TrimSpace(req.Name), strings.TrimSpace(req.Description), perms)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update role", err)
		return
	}
	h.hub.Notify(websocket.EntityRole, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, role)
}

// DeleteRole handles DELETE /api/roles/{id}. Roles still held by a user
// are refused with 409.
func (h *UserHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.roles.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete role", err)
		return
	}
	h.hub.Notify(websocket.EntityRole, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
