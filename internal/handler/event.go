package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type EventHandler struct {
	store  *store.EventStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewEventHandler(s *store.EventStore, hub *websocket.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{store: s, hub: hub, logger: logger}
}

type eventRequest struct {
	Title       string    `json:"title" validate:"notblank,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	Location    string    `json:"location" validate:"max=200"`
	Public      bool      `json:"public"`
}

func (req eventRequest) model() model.Event {
	return model.Event{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		StartsAt:    req.StartsAt,
		Location:    strings.TrimSpace(req.Location),
		Public:      req.Public,
	}
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to list events", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.store.Create(r.Context(), req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to create event", err)
		return
	}
	h.hub.Notify(websocket.EntityEvent, websocket.ActionCreated, e.ID)
	writeJSON(w, http.StatusCreated, e)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req eventRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.store.Update(r.Context(), id, req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to update event", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	h.hub.Notify(websocket.EntityEvent, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, e)
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete event", err)
		return
	}
	h.hub.Notify(websocket.EntityEvent, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
