package handler

import (
	"log/slog"
	"net/http"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/push"
	"github.com/e2dconnect/e2d/internal/store"
)

type PushHandler struct {
	store   *store.PushStore
	service *push.Service
	logger  *slog.Logger
}

func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{store: ps, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint" validate:"required,url,max=2000"`
	P256dh     string `json:"p256dh" validate:"required,max=200"`
	Auth       string `json:"auth" validate:"required,max=100"`
	DeviceName string `json:"device_name" validate:"max=100"`
}

// Subscribe handles POST /api/push/subscribe. Re-subscribing an endpoint
// moves it to the calling user.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	var req subscribeRequest
	if !decode(w, r, &req) {
		return
	}
	sub, err := h.store.CreateSubscription(r.Context(), auth.UserID(r.Context()), req.Endpoint, req.P256dh, req.Auth, req.DeviceName)
	if err != nil {
		writeStoreError(w, h.logger, "failed to save subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}. Only the
// owner's subscriptions are affected.
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteSubscription(r.Context(), id, auth.UserID(r.Context())); err != nil {
		writeStoreError(w, h.logger, "failed to delete subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSubscriptions handles GET /api/push/subscriptions.
func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.store.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

// VAPIDKey handles GET /api/push/vapid-key.
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Test handles POST /api/push/test and sends a notification to every
// device of the calling user.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push notifications are not configured")
		return
	}
	subs, err := h.store.ListByUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		writeStoreError(w, h.logger, "failed to list subscriptions", err)
		return
	}

	payload := push.Payload{
		Title: "Notification de test",
		Body:  "Les notifications fonctionnent.",
		URL:   "/parametres",
		Tag:   "test",
	}
	d := h.service.SendAll(r.Context(), subs, payload)
	for _, sub := range d.Expired {
		if err := h.store.DeleteByEndpoint(r.Context(), sub.Endpoint); err != nil {
			h.logger.Error("delete expired subscription", "error", err)
		}
	}
	for id, err := range d.Failed {
		h.logger.Warn("test push send", "subscription_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": d.Sent, "expired": len(d.Expired)})
}
