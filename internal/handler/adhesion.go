package handler

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/e2dconnect/e2d/internal/email"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/websocket"
)

const defaultAssociationName = "E2D"

type AdhesionHandler struct {
	store    *store.AdhesionStore
	settings *store.SettingsStore
	email    *email.Client
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewAdhesionHandler(as *store.AdhesionStore, ss *store.SettingsStore, ec *email.Client, hub *websocket.Hub, logger *slog.Logger) *AdhesionHandler {
	return &AdhesionHandler{store: as, settings: ss, email: ec, hub: hub, logger: logger}
}

// associationName reads the display name used in mails and documents.
func associationName(ctx context.Context, settings *store.SettingsStore) string {
	if settings == nil {
		return defaultAssociationName
	}
	name, err := settings.GetOr(ctx, "association_name", defaultAssociationName)
	if err != nil || name == "" {
		return defaultAssociationName
	}
	return name
}

// List handles GET /api/adhesions?status=.
func (h *AdhesionHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list adhesion requests", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// Accept handles PUT /api/adhesions/{id}/accept: the member is created
// from the request and linked to it.
func (h *AdhesionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	memberID, err := h.store.Accept(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no pending adhesion request with this id")
		return
	}
	if err != nil {
		writeStoreError(w, h.logger, "failed to accept adhesion request", err)
		return
	}
	h.hub.Notify(websocket.EntityMember, websocket.ActionCreated, memberID)
	h.decided(w, r, id, true)
}

// Reject handles PUT /api/adhesions/{id}/reject.
func (h *AdhesionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.store.Reject(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "no pending adhesion request with this id")
		return
	}
	if err != nil {
		writeStoreError(w, h.logger, "failed to reject adhesion request", err)
		return
	}
	h.decided(w, r, id, false)
}

// decided answers with the updated request and mails the applicant. A
// mail failure is logged only; the decision stands.
func (h *AdhesionHandler) decided(w http.ResponseWriter, r *http.Request, id int64, accepted bool) {
	a, err := h.store.GetByID(r.Context(), id)
	if err != nil || a == nil {
		writeStoreError(w, h.logger, "failed to reload adhesion request", errors.Join(err, sql.ErrNoRows))
		return
	}
	h.hub.Notify(websocket.EntityAdhesion, websocket.ActionUpdated, id)
	h.mailDecision(r.Context(), *a, accepted)
	writeJSON(w, http.StatusOK, a)
}

func (h *AdhesionHandler) mailDecision(ctx context.Context, a model.AdhesionRequest, accepted bool) {
	if h.email == nil || !h.email.Configured() || a.Email == "" {
		return
	}
	if err := h.email.SendAdhesionDecision(ctx, a, accepted, associationName(ctx, h.settings)); err != nil {
		h.logger.Warn("adhesion decision mail", "adhesion_id", a.ID, "error", err)
	}
}

func (h *AdhesionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete adhesion request", err)
		return
	}
	h.hub.Notify(websocket.EntityAdhesion, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
