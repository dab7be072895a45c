package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type MemberHandler struct {
	store  *store.MemberStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewMemberHandler(s *store.MemberStore, hub *websocket.Hub, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{store: s, hub: hub, logger: logger}
}

type memberRequest struct {
	FirstName string      `json:"first_name" validate:"notblank,max=100"`
	LastName  string      `json:"last_name" validate:"notblank,max=100"`
	Email     string      `json:"email" validate:"omitempty,email"`
	Phone     string      `json:"phone" validate:"omitempty,max=30"`
	Status    string      `json:"status" validate:"omitempty,oneof=actif inactif suspendu"`
	E2D       bool        `json:"e2d"`
	Phoenix   bool        `json:"phoenix"`
	JoinedOn  *model.Date `json:"joined_on"`
}

func (req memberRequest) member() model.Member {
	return model.Member{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Status:    req.Status,
		E2D:       req.E2D,
		Phoenix:   req.Phoenix,
		JoinedOn:  req.JoinedOn,
	}
}

// List handles GET /api/members?status=&team=&q=
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	members, err := h.store.List(r.Context(), store.MemberFilter{
		Status: q.Get("status"),
		Team:   q.Get("team"),
		Search: strings.TrimSpace(q.Get("q")),
	})
	if err != nil {
		writeStoreError(w, h.logger, "failed to list members", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(members))
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	m := req.member()
	if !h.checkEmail(w, r, m.Email, 0) {
		return
	}

	created, err := h.store.Create(r.Context(), m)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create member", err)
		return
	}
	h.hub.Notify(websocket.EntityMember, websocket.ActionCreated, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get member", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	var req memberRequest
	if !decode(w, r, &req) {
		return
	}
	m := req.member()
	if m.Status == "" {
		m.Status = existing.Status
	}
	if !h.checkEmail(w, r, m.Email, id) {
		return
	}

	updated, err := h.store.Update(r.Context(), id, m)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update member", err)
		return
	}
	h.hub.Notify(websocket.EntityMember, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, updated)
}

func (h *MemberHandler) checkEmail(w http.ResponseWriter, r *http.Request, email string, excludeID int64) bool {
	exists, err := h.store.EmailExists(r.Context(), email, excludeID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to check email", err)
		return false
	}
	if exists {
		writeError(w, http.StatusConflict, "a member with that email already exists")
		return false
	}
	return true
}

// Delete refuses members with history; they should be set inactive.
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusConflict, "member has financial or sport history; set status to inactif instead")
			return
		}
		writeStoreError(w, h.logger, "failed to delete member", err)
		return
	}
	h.hub.Notify(websocket.EntityMember, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// memberExists writes a 400 naming field when the referenced member is missing.
func memberExists(w http.ResponseWriter, r *http.Request, members *store.MemberStore, logger *slog.Logger, id int64) bool {
	m, err := members.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, logger, "failed to get member", err)
		return false
	}
	if m == nil {
		return check(w, validate.Field("member_id", "membre introuvable"))
	}
	return true
}
