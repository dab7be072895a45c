package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type ExerciseHandler struct {
	store  *store.ExerciseStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewExerciseHandler(s *store.ExerciseStore, hub *websocket.Hub, logger *slog.Logger) *ExerciseHandler {
	return &ExerciseHandler{store: s, hub: hub, logger: logger}
}

type exerciseRequest struct {
	Name    string     `json:"name" validate:"notblank,max=100"`
	StartOn model.Date `json:"start_on" validate:"required"`
	EndOn   model.Date `json:"end_on" validate:"required"`
}

func (req exerciseRequest) validate() error {
	if !req.EndOn.After(req.StartOn.Time) {
		return validate.Field("end_on", "end_on doit être postérieure à start_on")
	}
	return nil
}

func (h *ExerciseHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.List(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to list exercises", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

// Active handles GET /api/exercises/active.
func (h *ExerciseHandler) Active(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Active(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to get active exercise", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "no active exercise")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ExerciseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req exerciseRequest
	if !decode(w, r, &req) || !check(w, req.validate()) {
		return
	}
	e, err := h.store.Create(r.Context(), strings.TrimSpace(req.Name), req.StartOn, req.EndOn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create exercise", err)
		return
	}
	h.hub.Notify(websocket.EntityExercise, websocket.ActionCreated, e.ID)
	writeJSON(w, http.StatusCreated, e)
}

func (h *ExerciseHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req exerciseRequest
	if !decode(w, r, &req) || !check(w, req.validate()) {
		return
	}
	e, err := h.store.Update(r.Context(), id, strings.TrimSpace(req.Name), req.StartOn, req.EndOn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update exercise", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "exercise not found")
		return
	}
	h.hub.Notify(websocket.EntityExercise, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, e)
}

// Activate handles PUT /api/exercises/{id}/activate. The previously
// active exercise is deactivated.
func (h *ExerciseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Activate(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "exercise not found")
			return
		}
		writeStoreError(w, h.logger, "failed to activate exercise", err)
		return
	}
	e, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get exercise", err)
		return
	}
	h.hub.Notify(websocket.EntityExercise, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, e)
}

func (h *ExerciseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrInUse) {
			writeError(w, http.StatusConflict, "exercise has contributions, savings or loans")
			return
		}
		writeStoreError(w, h.logger, "failed to delete exercise", err)
		return
	}
	h.hub.Notify(websocket.EntityExercise, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
