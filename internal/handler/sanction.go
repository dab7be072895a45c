package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/sanction"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type SanctionHandler struct {
	store   *store.SanctionStore
	members *store.MemberStore
	syncer  *sanction.Syncer
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewSanctionHandler(ss *store.SanctionStore, ms *store.MemberStore, syncer *sanction.Syncer, hub *websocket.Hub, logger *slog.Logger) *SanctionHandler {
	return &SanctionHandler{store: ss, members: ms, syncer: syncer, hub: hub, logger: logger}
}

// --- Types ---

type sanctionTypeRequest struct {
	Name      string `json:"name" validate:"notblank,max=100"`
	Amount    int64  `json:"amount" validate:"gte=0"`
	Context   string `json:"context" validate:"required,oneof=sport reunion"`
	CardColor string `json:"card_color" validate:"omitempty,oneof=jaune rouge"`
}

func (req sanctionTypeRequest) model() (model.SanctionType, error) {
	if req.CardColor != "" && req.Context != model.ContextSport {
		return model.SanctionType{}, validate.Field("card_color", "card_color n'est permis que pour le contexte sport")
	}
	return model.SanctionType{
		Name:      strings.TrimSpace(req.Name),
		Amount:    req.Amount,
		Context:   req.Context,
		CardColor: req.CardColor,
	}, nil
}

func (h *SanctionHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListTypes(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to list sanction types", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(types))
}

func (h *SanctionHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	var req sanctionTypeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := req.model()
	if !check(w, err) {
		return
	}
	created, err := h.store.CreateType(r.Context(), t)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create sanction type", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *SanctionHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req sanctionTypeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := req.model()
	if !check(w, err) {
		return
	}
	updated, err := h.store.UpdateType(r.Context(), id, t)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update sanction type", err)
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "sanction type not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *SanctionHandler) DeleteType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteType(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete sanction type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sanctions ---

type sanctionRequest struct {
	MemberID  int64      `json:"member_id" validate:"required,gt=0"`
	TypeID    *int64     `json:"type_id" validate:"omitempty,gt=0"`
	Amount    int64      `json:"amount" validate:"gte=0"`
	Reason    string     `json:"reason" validate:"max=300"`
	Context   string     `json:"context" validate:"omitempty,oneof=sport reunion"`
	IssuedOn  model.Date `json:"issued_on" validate:"required"`
	MeetingID *int64     `json:"meeting_id" validate:"omitempty,gt=0"`
}

// sanction fills amount, context and reason from the type when omitted.
func (h *SanctionHandler) sanction(w http.ResponseWriter, r *http.Request, req sanctionRequest) (model.Sanction, bool) {
	sn := model.Sanction{
		MemberID:  req.MemberID,
		TypeID:    req.TypeID,
		Amount:    req.Amount,
		Reason:    strings.TrimSpace(req.Reason),
		Context:   req.Context,
		IssuedOn:  req.IssuedOn,
		MeetingID: req.MeetingID,
	}
	if !memberExists(w, r, h.members, h.logger, sn.MemberID) {
		return sn, false
	}
	if sn.TypeID != nil {
		t, err := h.store.GetType(r.Context(), *sn.TypeID)
		if err != nil {
			writeStoreError(w, h.logger, "failed to get sanction type", err)
			return sn, false
		}
		if t == nil {
			return sn, check(w, validate.Field("type_id", "type de sanction introuvable"))
		}
		if sn.Amount == 0 {
			sn.Amount = t.Amount
		}
		if sn.Context == "" {
			sn.Context = t.Context
		}
		if sn.Reason == "" {
			sn.Reason = t.Name
		}
	}
	if sn.Amount <= 0 {
		return sn, check(w, validate.Field("amount", "amount doit être supérieur à 0"))
	}
	if sn.Context == "" {
		sn.Context = model.ContextMeeting
	}
	return sn, true
}

func (h *SanctionHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list sanctions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *SanctionHandler) getSanction(w http.ResponseWriter, r *http.Request) (*model.Sanction, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	sn, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get sanction", err)
		return nil, false
	}
	if sn == nil {
		writeError(w, http.StatusNotFound, "sanction not found")
		return nil, false
	}
	return sn, true
}

func (h *SanctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req sanctionRequest
	if !decode(w, r, &req) {
		return
	}
	sn, ok := h.sanction(w, r, req)
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), sn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create sanction", err)
		return
	}
	h.hub.Notify(websocket.EntitySanction, websocket.ActionCreated, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *SanctionHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.getSanction(w, r)
	if !ok {
		return
	}
	var req sanctionRequest
	if !decode(w, r, &req) {
		return
	}
	sn, ok := h.sanction(w, r, req)
	if !ok {
		return
	}
	sn.Status = existing.Status
	sn.PaidOn = existing.PaidOn
	updated, err := h.store.Update(r.Context(), existing.ID, sn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update sanction", err)
		return
	}
	h.hub.Notify(websocket.EntitySanction, websocket.ActionUpdated, existing.ID)
	writeJSON(w, http.StatusOK, updated)
}

type paySanctionRequest struct {
	PaidOn *model.Date `json:"paid_on"`
}

// Pay handles PUT /api/sanctions/{id}/pay. paid_on defaults to today.
func (h *SanctionHandler) Pay(w http.ResponseWriter, r *http.Request) {
	sn, ok := h.getSanction(w, r)
	if !ok {
		return
	}
	var req paySanctionRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if sn.Status != model.SanctionUnpaid {
		writeError(w, http.StatusConflict, "only unpaid sanctions can be paid")
		return
	}
	paidOn := model.Today()
	if req.PaidOn != nil {
		paidOn = *req.PaidOn
	}
	updated, err := h.store.MarkPaid(r.Context(), sn.ID, paidOn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to mark sanction paid", err)
		return
	}
	h.hub.Notify(websocket.EntitySanction, websocket.ActionUpdated, sn.ID)
	writeJSON(w, http.StatusOK, updated)
}

// Cancel handles PUT /api/sanctions/{id}/cancel.
func (h *SanctionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sn, ok := h.getSanction(w, r)
	if !ok {
		return
	}
	if sn.Status == model.SanctionCancelled {
		writeError(w, http.StatusConflict, "sanction is already cancelled")
		return
	}
	updated, err := h.store.Cancel(r.Context(), sn.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to cancel sanction", err)
		return
	}
	h.hub.Notify(websocket.EntitySanction, websocket.ActionUpdated, sn.ID)
	writeJSON(w, http.StatusOK, updated)
}

func (h *SanctionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete sanction", err)
		return
	}
	h.hub.Notify(websocket.EntitySanction, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// Sync handles POST /api/sanctions/sync and returns the run report.
func (h *SanctionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.syncer.Run(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to sync sanctions", err)
		return
	}
	if report.Created > 0 {
		h.hub.Notify(websocket.EntitySanction, websocket.ActionCreated, 0)
	}
	writeJSON(w, http.StatusOK, report)
}
