package handler

import (
	"log/slog"
	"net/http"

	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/websocket"
)

// DonationHandler manages recorded donation intents. Donations are
// created through the public form.
type DonationHandler struct {
	store  *store.DonationStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewDonationHandler(s *store.DonationStore, hub *websocket.Hub, logger *slog.Logger) *DonationHandler {
	return &DonationHandler{store: s, hub: hub, logger: logger}
}

func (h *DonationHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list donations", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

type donationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=intention recue"`
}

// SetStatus handles PUT /api/donations/{id}/status, used by the treasurer
// once the money has actually arrived.
func (h *DonationHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req donationStatusRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.store.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update donation", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "donation not found")
		return
	}
	h.hub.Notify(websocket.EntityDonation, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, d)
}

func (h *DonationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete donation", err)
		return
	}
	h.hub.Notify(websocket.EntityDonation, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}
