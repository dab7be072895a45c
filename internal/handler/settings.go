package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/e2dconnect/e2d/internal/auth"
	"github.com/e2dconnect/e2d/internal/email"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type SettingsHandler struct {
	store  *store.SettingsStore
	email  *email.Client
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, ec *email.Client, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{store: ss, email: ec, hub: hub, logger: logger}
}

func (h *SettingsHandler) group(w http.ResponseWriter, r *http.Request) (string, bool) {
	group := r.PathValue("group")
	if _, ok := store.SettingGroups[group]; !ok {
		writeError(w, http.StatusNotFound, "unknown settings group")
		return "", false
	}
	return group, true
}

// Get handles GET /api/settings/{group}.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, ok := h.group(w, r)
	if !ok {
		return
	}
	values, err := h.store.GetGroup(r.Context(), group)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

// Update handles PUT /api/settings/{group} with a flat object of string
// values. Only the keys present are written.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	group, ok := h.group(w, r)
	if !ok {
		return
	}
	var req map[string]string
	if !decodeJSON(w, r, &req) {
		return
	}
	if !check(w, validateSettings(group, req)) {
		return
	}
	if err := h.store.SetGroup(r.Context(), group, req); err != nil {
		writeStoreError(w, h.logger, "failed to save settings", err)
		return
	}
	h.hub.Notify(websocket.EntitySettings, websocket.ActionUpdated, 0)

	values, err := h.store.GetGroup(r.Context(), group)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func validateSettings(group string, values map[string]string) error {
	allowed := make(map[string]bool)
	for _, k := range store.SettingGroups[group] {
		allowed[k] = true
	}

	for key, value := range values {
		if !allowed[key] {
			return validate.Field(key, fmt.Sprintf("paramètre inconnu pour le groupe %s", group))
		}
		value = strings.TrimSpace(value)
		values[key] = value

		switch key {
		case "association_name":
			if value == "" || len(value) > 100 {
				return validate.Field(key, "association_name doit contenir 1 à 100 caractères")
			}
		case "association_currency":
			if len(value) < 1 || len(value) > 10 {
				return validate.Field(key, "association_currency doit contenir 1 à 10 caractères")
			}
		case "default_loan_rate":
			n, err := strconv.ParseFloat(value, 64)
			if err != nil || n < 0 || n > 100 {
				return validate.Field(key, "default_loan_rate doit être compris entre 0 et 100")
			}
		case "backup_enabled":
			if value != "true" && value != "false" {
				return validate.Field(key, `backup_enabled doit valoir "true" ou "false"`)
			}
		case "backup_schedule_hour":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 || n > 23 {
				return validate.Field(key, "backup_schedule_hour doit être compris entre 0 et 23")
			}
		case "backup_retention_days":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 3650 {
				return validate.Field(key, "backup_retention_days doit être compris entre 1 et 3650")
			}
		}
	}
	return nil
}

type testEmailRequest struct {
	To string `json:"to" validate:"omitempty,email"`
}

// TestEmail handles POST /api/email/test. Without a recipient the mail
// goes to the calling user.
func (h *SettingsHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	var req testEmailRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	to := req.To
	if to == "" {
		ac, _ := auth.FromContext(r.Context())
		to = ac.Email
	}
	if to == "" {
		check(w, validate.Field("to", "destinataire requis"))
		return
	}

	err := h.email.SendTest(r.Context(), to, associationName(r.Context(), h.store))
	if errors.Is(err, email.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "email is not configured")
		return
	}
	if err != nil {
		h.logger.Warn("test email", "to", to, "error", err)
		writeError(w, http.StatusBadGateway, "failed to send test email: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sent_to": to})
}
