package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/e2dconnect/e2d/internal/email"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/push"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/websocket"
)

const publicEventsLimit = 20

// PublicHandler serves the unauthenticated site: upcoming events, headline
// figures and the adhesion and donation forms.
type PublicHandler struct {
	events    *store.EventStore
	members   *store.MemberStore
	sport     *store.SportStore
	adhesions *store.AdhesionStore
	donations *store.DonationStore
	settings  *store.SettingsStore
	email     *email.Client
	notifier  *push.Notifier
	hub       *websocket.Hub
	logger    *slog.Logger
}

type PublicStores struct {
	Events    *store.EventStore
	Members   *store.MemberStore
	Sport     *store.SportStore
	Adhesions *store.AdhesionStore
	Donations *store.DonationStore
	Settings  *store.SettingsStore
}

func NewPublicHandler(s PublicStores, ec *email.Client, notifier *push.Notifier, hub *websocket.Hub, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{
		events:    s.Events,
		members:   s.Members,
		sport:     s.Sport,
		adhesions: s.Adhesions,
		donations: s.Donations,
		settings:  s.Settings,
		email:     ec,
		notifier:  notifier,
		hub:       hub,
		logger:    logger,
	}
}

// Events handles GET /public/events.
func (h *PublicHandler) Events(w http.ResponseWriter, r *http.Request) {
	events, err := h.events.ListUpcomingPublic(r.Context(), time.Now(), publicEventsLimit)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list events", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(events))
}

type teamStat struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type publicStats struct {
	Association   string     `json:"association"`
	ActiveMembers int        `json:"active_members"`
	Teams         []teamStat `json:"teams"`
	MatchesPlayed int        `json:"matches_played"`
}

// Stats handles GET /public/stats.
func (h *PublicHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.members.Counts(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to count members", err)
		return
	}
	matches, err := h.sport.CountMatches(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to count matches", err)
		return
	}
	writeJSON(w, http.StatusOK, publicStats{
		Association:   associationName(r.Context(), h.settings),
		ActiveMembers: counts.Active,
		Teams: []teamStat{
			{Name: model.TeamE2D, Members: counts.E2D},
			{Name: model.TeamPhoenix, Members: counts.Phoenix},
		},
		MatchesPlayed: matches,
	})
}

type adhesionRequest struct {
	FirstName string `json:"first_name" validate:"notblank,max=100"`
	LastName  string `json:"last_name" validate:"notblank,max=100"`
	Email     string `json:"email" validate:"required,email,max=200"`
	Phone     string `json:"phone" validate:"max=30"`
	Team      string `json:"team" validate:"omitempty,oneof=e2d phoenix"`
	Message   string `json:"message" validate:"max=2000"`
}

// SubmitAdhesion handles POST /public/adhesions. Administrators holding
// members:write get a push notification and the applicant a receipt mail;
// neither failure affects the response.
func (h *PublicHandler) SubmitAdhesion(w http.ResponseWriter, r *http.Request) {
	var req adhesionRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.adhesions.Create(r.Context(), model.AdhesionRequest{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Team:      req.Team,
		Message:   strings.TrimSpace(req.Message),
	})
	if err != nil {
		writeStoreError(w, h.logger, "failed to record adhesion request", err)
		return
	}
	h.hub.Notify(websocket.EntityAdhesion, websocket.ActionCreated, a.ID)

	h.notifier.NotifyPermission(r.Context(), model.PermMembersWrite, push.Payload{
		Title: "Nouvelle demande d'adhésion",
		Body:  a.FirstName + " " + a.LastName,
		URL:   "/adhesions",
		Tag:   "adhesion",
	})
	if h.email != nil && h.email.Configured() {
		if err := h.email.SendAdhesionReceived(r.Context(), *a, associationName(r.Context(), h.settings)); err != nil {
			h.logger.Warn("adhesion receipt mail", "adhesion_id", a.ID, "error", err)
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": a.ID, "status": a.Status})
}

type donationRequest struct {
	DonorName  string `json:"donor_name" validate:"notblank,max=200"`
	DonorEmail string `json:"donor_email" validate:"omitempty,email,max=200"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Method     string `json:"method" validate:"required,oneof=especes mobile_money virement carte"`
	Message    string `json:"message" validate:"max=2000"`
}

// SubmitDonation handles POST /public/donations. Only the intent is
// recorded; the returned reference identifies the gift when the money
// arrives.
func (h *PublicHandler) SubmitDonation(w http.ResponseWriter, r *http.Request) {
	var req donationRequest
	if !decode(w, r, &req) {
		return
	}
	d, err := h.donations.Create(r.Context(), model.Donation{
		DonorName:  strings.TrimSpace(req.DonorName),
		DonorEmail: strings.ToLower(strings.TrimSpace(req.DonorEmail)),
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  uuid.NewString(),
		Message:    strings.TrimSpace(req.Message),
	})
	if err != nil {
		writeStoreError(w, h.logger, "failed to record donation", err)
		return
	}
	h.hub.Notify(websocket.EntityDonation, websocket.ActionCreated, d.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"reference": d.Reference, "status": d.Status, "amount": d.Amount})
}
