package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type SavingHandler struct {
	store     *store.SavingStore
	members   *store.MemberStore
	exercises *store.ExerciseStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewSavingHandler(ss *store.SavingStore, ms *store.MemberStore, es *store.ExerciseStore, hub *websocket.Hub, logger *slog.Logger) *SavingHandler {
	return &SavingHandler{store: ss, members: ms, exercises: es, hub: hub, logger: logger}
}

type savingRequest struct {
	MemberID    int64      `json:"member_id" validate:"required,gt=0"`
	ExerciseID  *int64     `json:"exercise_id" validate:"omitempty,gt=0"`
	MeetingID   *int64     `json:"meeting_id" validate:"omitempty,gt=0"`
	Amount      int64      `json:"amount" validate:"required,gt=0"`
	DepositedOn model.Date `json:"deposited_on" validate:"required"`
	Notes       string     `json:"notes" validate:"max=500"`
}

func (h *SavingHandler) saving(w http.ResponseWriter, r *http.Request, req savingRequest) (model.Saving, bool) {
	sv := model.Saving{
		MemberID:    req.MemberID,
		ExerciseID:  req.ExerciseID,
		MeetingID:   req.MeetingID,
		Amount:      req.Amount,
		DepositedOn: req.DepositedOn,
		Notes:       strings.TrimSpace(req.Notes),
	}
	if !memberExists(w, r, h.members, h.logger, sv.MemberID) {
		return sv, false
	}
	if sv.ExerciseID == nil {
		id, err := activeExerciseID(r.Context(), h.exercises)
		if err != nil {
			writeStoreError(w, h.logger, "failed to get active exercise", err)
			return sv, false
		}
		sv.ExerciseID = id
	}
	return sv, true
}

func (h *SavingHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list savings", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *SavingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req savingRequest
	if !decode(w, r, &req) {
		return
	}
	sv, ok := h.saving(w, r, req)
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), sv)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create saving", err)
		return
	}
	h.hub.Notify(websocket.EntitySaving, websocket.ActionCreated, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *SavingHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get saving", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "saving not found")
		return
	}
	var req savingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ExerciseID == nil {
		req.ExerciseID = existing.ExerciseID
	}
	sv, ok := h.saving(w, r, req)
	if !ok {
		return
	}
	updated, err := h.store.Update(r.Context(), id, sv)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update saving", err)
		return
	}
	h.hub.Notify(websocket.EntitySaving, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, updated)
}

func (h *SavingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete saving", err)
		return
	}
	h.hub.Notify(websocket.EntitySaving, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
