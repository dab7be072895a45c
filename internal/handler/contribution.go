package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/e2dconnect/e2d/internal/finance"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

const (
	forecastHistoryMonths = 12
	defaultForecastMonths = 3
	maxForecastMonths     = 24
)

type ContributionHandler struct {
	store     *store.ContributionStore
	members   *store.MemberStore
	exercises *store.ExerciseStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewContributionHandler(cs *store.ContributionStore, ms *store.MemberStore, es *store.ExerciseStore, hub *websocket.Hub, logger *slog.Logger) *ContributionHandler {
	return &ContributionHandler{store: cs, members: ms, exercises: es, hub: hub, logger: logger}
}

// --- Types ---

type contributionTypeRequest struct {
	Name          string `json:"name" validate:"notblank,max=100"`
	DefaultAmount int64  `json:"default_amount" validate:"gte=0"`
	Frequency     string `json:"frequency" validate:"required,oneof=mensuelle annuelle ponctuelle"`
	Mandatory     bool   `json:"mandatory"`
}

func (req contributionTypeRequest) model() model.ContributionType {
	return model.ContributionType{
		Name:          strings.TrimSpace(req.Name),
		DefaultAmount: req.DefaultAmount,
		Frequency:     req.Frequency,
		Mandatory:     req.Mandatory,
	}
}

func (h *ContributionHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.store.ListTypes(r.Context())
	if err != nil {
		writeStoreError(w, h.logger, "failed to list contribution types", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(types))
}

func (h *ContributionHandler) CreateType(w http.ResponseWriter, r *http.Request) {
	var req contributionTypeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.store.CreateType(r.Context(), req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to create contribution type", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *ContributionHandler) UpdateType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req contributionTypeRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.store.UpdateType(r.Context(), id, req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to update contribution type", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "contribution type not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *ContributionHandler) DeleteType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteType(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete contribution type", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Contributions ---

type contributionRequest struct {
	MemberID   int64      `json:"member_id" validate:"required,gt=0"`
	TypeID     int64      `json:"type_id" validate:"required,gt=0"`
	ExerciseID *int64     `json:"exercise_id" validate:"omitempty,gt=0"`
	Amount     int64      `json:"amount" validate:"gte=0"`
	PaidOn     model.Date `json:"paid_on" validate:"required"`
	Status     string     `json:"status" validate:"omitempty,oneof=payee en_attente"`
	Notes      string     `json:"notes" validate:"max=500"`
}

func (h *ContributionHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list contributions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *ContributionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	c, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get contribution", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "contribution not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// resolve checks references and fills defaults: the type's amount when
// none is given and the active exercise when none is named.
func (h *ContributionHandler) resolve(w http.ResponseWriter, r *http.Request, req contributionRequest) (model.Contribution, bool) {
	c := model.Contribution{
		MemberID:   req.MemberID,
		TypeID:     req.TypeID,
		ExerciseID: req.ExerciseID,
		Amount:     req.Amount,
		PaidOn:     req.PaidOn,
		Status:     req.Status,
		Notes:      strings.TrimSpace(req.Notes),
	}
	if !memberExists(w, r, h.members, h.logger, c.MemberID) {
		return c, false
	}
	t, err := h.store.GetType(r.Context(), c.TypeID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get contribution type", err)
		return c, false
	}
	if t == nil {
		return c, check(w, validate.Field("type_id", "type de cotisation introuvable"))
	}
	if c.Amount == 0 {
		c.Amount = t.DefaultAmount
	}
	if c.Amount <= 0 {
		return c, check(w, validate.Field("amount", "amount doit être supérieur à 0"))
	}
	if c.ExerciseID == nil {
		id, err := activeExerciseID(r.Context(), h.exercises)
		if err != nil {
			writeStoreError(w, h.logger, "failed to get active exercise", err)
			return c, false
		}
		c.ExerciseID = id
	}
	return c, true
}

func (h *ContributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req contributionRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok := h.resolve(w, r, req)
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), c)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create contribution", err)
		return
	}
	h.hub.Notify(websocket.EntityContribution, websocket.ActionCreated, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

func (h *ContributionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	existing, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get contribution", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "contribution not found")
		return
	}
	var req contributionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ExerciseID == nil {
		req.ExerciseID = existing.ExerciseID
	}
	if req.Status == "" {
		req.Status = existing.Status
	}
	c, ok := h.resolve(w, r, req)
	if !ok {
		return
	}
	updated, err := h.store.Update(r.Context(), id, c)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update contribution", err)
		return
	}
	h.hub.Notify(websocket.EntityContribution, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, updated)
}

func (h *ContributionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete contribution", err)
		return
	}
	h.hub.Notify(websocket.EntityContribution, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

type forecastResponse struct {
	History  []model.MonthlyTotal `json:"history"`
	Months   []string             `json:"months"`
	Forecast finance.Forecast     `json:"forecast"`
}

// Forecast handles GET /api/contributions/forecast?months=N. History covers
// the twelve complete months before the current one and the forecast starts
// with the current month; months without paid contributions count as zero.
func (h *ContributionHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	horizon := defaultForecastMonths
	if s := r.URL.Query().Get("months"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > maxForecastMonths {
			check(w, validate.Field("months", "months doit être compris entre 1 et 24"))
			return
		}
		horizon = n
	}

	resp, err := buildForecast(r.Context(), h.store, time.Now().UTC(), horizon)
	if err != nil {
		writeStoreError(w, h.logger, "failed to compute forecast", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func buildForecast(ctx context.Context, cs *store.ContributionStore, now time.Time, horizon int) (forecastResponse, error) {
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	first := current.AddDate(0, -forecastHistoryMonths, 0)
	from, to := model.NewDate(first), model.NewDate(current.AddDate(0, 0, -1))
	totals, err := cs.MonthlyTotals(ctx, store.Filter{From: &from, To: &to})
	if err != nil {
		return forecastResponse{}, err
	}
	byMonth := make(map[string]int64, len(totals))
	for _, t := range totals {
		byMonth[t.Month] = t.Total
	}

	resp := forecastResponse{
		History: make([]model.MonthlyTotal, 0, forecastHistoryMonths),
		Months:  make([]string, 0, horizon),
	}
	values := make([]int64, 0, forecastHistoryMonths)
	for i := 0; i < forecastHistoryMonths; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		resp.History = append(resp.History, model.MonthlyTotal{Month: month, Total: byMonth[month]})
		values = append(values, byMonth[month])
	}
	for k := 1; k <= horizon; k++ {
		resp.Months = append(resp.Months, current.AddDate(0, k-1, 0).Format("2006-01"))
	}
	resp.Forecast = finance.Project(values, horizon)
	return resp, nil
}

func activeExerciseID(ctx context.Context, es *store.ExerciseStore) (*int64, error) {
	e, err := es.Active(ctx)
	if err != nil || e == nil {
		return nil, err
	}
	id := e.ID
	return &id, nil
}
