package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/e2dconnect/e2d/internal/finance"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/sanction"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

type SportHandler struct {
	store   *store.SportStore
	members *store.MemberStore
	syncer  *sanction.Syncer
	hub     *websocket.Hub
	logger  *slog.Logger
}

func NewSportHandler(ss *store.SportStore, ms *store.MemberStore, syncer *sanction.Syncer, hub *websocket.Hub, logger *slog.Logger) *SportHandler {
	return &SportHandler{store: ss, members: ms, syncer: syncer, hub: hub, logger: logger}
}

// --- Matches ---

type matchRequest struct {
	Team         string     `json:"team" validate:"required,oneof=e2d phoenix"`
	Opponent     string     `json:"opponent" validate:"notblank,max=100"`
	PlayedOn     model.Date `json:"played_on" validate:"required"`
	Location     string     `json:"location" validate:"max=200"`
	Home         bool       `json:"home"`
	GoalsFor     int        `json:"goals_for" validate:"gte=0"`
	GoalsAgainst int        `json:"goals_against" validate:"gte=0"`
	Competition  string     `json:"competition" validate:"max=100"`
}

func (req matchRequest) model() model.Match {
	return model.Match{
		Team:         req.Team,
		Opponent:     strings.TrimSpace(req.Opponent),
		PlayedOn:     req.PlayedOn,
		Location:     strings.TrimSpace(req.Location),
		Home:         req.Home,
		GoalsFor:     req.GoalsFor,
		GoalsAgainst: req.GoalsAgainst,
		Competition:  strings.TrimSpace(req.Competition),
	}
}

func (h *SportHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.ListMatches(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list matches", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *SportHandler) getMatch(w http.ResponseWriter, r *http.Request) (*model.Match, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	m, err := h.store.GetMatch(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get match", err)
		return nil, false
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "match not found")
		return nil, false
	}
	return m, true
}

type matchView struct {
	model.Match
	Result string            `json:"result"`
	Cards  []model.MatchCard `json:"cards"`
}

func (h *SportHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	m, ok := h.getMatch(w, r)
	if !ok {
		return
	}
	cards, err := h.store.ListCards(r.Context(), m.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list cards", err)
		return
	}
	writeJSON(w, http.StatusOK, matchView{Match: *m, Result: m.Result(), Cards: nonNil(cards)})
}

func (h *SportHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.store.CreateMatch(r.Context(), req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to create match", err)
		return
	}
	h.hub.Notify(websocket.EntityMatch, websocket.ActionCreated, m.ID)
	writeJSON(w, http.StatusCreated, m)
}

func (h *SportHandler) UpdateMatch(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.getMatch(w, r)
	if !ok {
		return
	}
	var req matchRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := h.store.UpdateMatch(r.Context(), existing.ID, req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to update match", err)
		return
	}
	h.hub.Notify(websocket.EntityMatch, websocket.ActionUpdated, existing.ID)
	writeJSON(w, http.StatusOK, m)
}

// DeleteMatch removes the match and its cards. Sanctions already issued
// for those cards are kept.
func (h *SportHandler) DeleteMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteMatch(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete match", err)
		return
	}
	h.hub.Notify(websocket.EntityMatch, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Cards ---

type cardRequest struct {
	MemberID int64  `json:"member_id" validate:"required,gt=0"`
	Color    string `json:"color" validate:"required,oneof=jaune rouge"`
	Minute   int    `json:"minute" validate:"gte=0,lte=130"`
}

type cardResponse struct {
	Card *model.MatchCard `json:"card"`
	Sync *sanction.Report `json:"sync,omitempty"`
}

// AddCard handles POST /api/matches/{id}/cards. The sanction sync runs
// right after so the card's fine appears immediately; a sync failure is
// logged and reported but does not undo the card.
func (h *SportHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	m, ok := h.getMatch(w, r)
	if !ok {
		return
	}
	var req cardRequest
	if !decode(w, r, &req) {
		return
	}
	if !memberExists(w, r, h.members, h.logger, req.MemberID) {
		return
	}

	card, err := h.store.AddCard(r.Context(), model.MatchCard{MatchID: m.ID, MemberID: req.MemberID, Color: req.Color, Minute: req.Minute})
	if err != nil {
		writeStoreError(w, h.logger, "failed to add card", err)
		return
	}
	h.hub.Notify(websocket.EntityMatch, websocket.ActionUpdated, m.ID)

	resp := cardResponse{Card: card}
	if h.syncer != nil {
		report, err := h.syncer.Run(r.Context())
		if err != nil {
			h.logger.Error("sanction sync after card", "card_id", card.ID, "error", err)
		} else {
			resp.Sync = &report
			if report.Created > 0 {
				h.hub.Notify(websocket.EntitySanction, websocket.ActionCreated, 0)
			}
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *SportHandler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteCard(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete card", err)
		return
	}
	h.hub.Notify(websocket.EntityMatch, websocket.ActionUpdated, 0)
	w.WriteHeader(http.StatusNoContent)
}

// --- Transactions ---

type transactionRequest struct {
	Team       string     `json:"team" validate:"required,oneof=e2d phoenix"`
	Kind       string     `json:"kind" validate:"required,oneof=recette depense"`
	Amount     int64      `json:"amount" validate:"required,gt=0"`
	Label      string     `json:"label" validate:"notblank,max=200"`
	OccurredOn model.Date `json:"occurred_on" validate:"required"`
}

func (req transactionRequest) model() model.SportTransaction {
	return model.SportTransaction{
		Team:       req.Team,
		Kind:       req.Kind,
		Amount:     req.Amount,
		Label:      strings.TrimSpace(req.Label),
		OccurredOn: req.OccurredOn,
	}
}

func (h *SportHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	list, err := h.store.ListTransactions(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(list))
}

func (h *SportHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.store.CreateTransaction(r.Context(), req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to create transaction", err)
		return
	}
	h.hub.Notify(websocket.EntitySport, websocket.ActionCreated, t.ID)
	writeJSON(w, http.StatusCreated, t)
}

func (h *SportHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req transactionRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := h.store.UpdateTransaction(r.Context(), id, req.model())
	if err != nil {
		writeStoreError(w, h.logger, "failed to update transaction", err)
		return
	}
	if t == nil {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	h.hub.Notify(websocket.EntitySport, websocket.ActionUpdated, id)
	writeJSON(w, http.StatusOK, t)
}

func (h *SportHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteTransaction(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete transaction", err)
		return
	}
	h.hub.Notify(websocket.EntitySport, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

// --- Stats ---

type SportStats struct {
	Team         string         `json:"team,omitempty"`
	Matches      int            `json:"matches"`
	Wins         int            `json:"wins"`
	Draws        int            `json:"draws"`
	Losses       int            `json:"losses"`
	GoalsFor     int            `json:"goals_for"`
	GoalsAgainst int            `json:"goals_against"`
	WinRate      float64        `json:"win_rate"`
	YellowCards  int            `json:"yellow_cards"`
	RedCards     int            `json:"red_cards"`
	Receipts     int64          `json:"receipts"`
	Expenses     int64          `json:"expenses"`
	Budget       finance.Budget `json:"budget"`
}

// Stats handles GET /api/sport/stats?team=. Only matches played up to
// today count. The budget compares the current calendar month with the
// previous one.
func (h *SportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team")
	if team != "" && team != model.TeamE2D && team != model.TeamPhoenix {
		check(w, validate.Field("team", "team doit être e2d ou phoenix"))
		return
	}
	stats, err := sportStats(r.Context(), h.store, team, time.Now().UTC())
	if err != nil {
		writeStoreError(w, h.logger, "failed to compute sport stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func sportStats(ctx context.Context, ss *store.SportStore, team string, now time.Time) (SportStats, error) {
	st := SportStats{Team: team}
	// Scheduled fixtures are stored 0-0 until played.
	today := model.NewDate(now)
	matches, err := ss.ListMatches(ctx, store.Filter{Team: team, To: &today})
	if err != nil {
		return st, err
	}
	for _, m := range matches {
		st.Matches++
		st.GoalsFor += m.GoalsFor
		st.GoalsAgainst += m.GoalsAgainst
		switch m.Result() {
		case "victoire":
			st.Wins++
		case "defaite":
			st.Losses++
		default:
			st.Draws++
		}
	}
	st.WinRate = finance.Round2(finance.Percent(float64(st.Wins), float64(st.Matches)))

	if st.YellowCards, st.RedCards, err = ss.CardCounts(ctx, team); err != nil {
		return st, err
	}
	all := store.Filter{Team: team}
	if st.Receipts, err = ss.SumTransactions(ctx, all, model.TransactionReceipt); err != nil {
		return st, err
	}
	if st.Expenses, err = ss.SumTransactions(ctx, all, model.TransactionExpense); err != nil {
		return st, err
	}

	cur, prev := monthRanges(now)
	var periods [2]finance.Period
	for i, rng := range [2]store.Filter{cur, prev} {
		rng.Team = team
		if periods[i].Income, err = ss.SumTransactions(ctx, rng, model.TransactionReceipt); err != nil {
			return st, err
		}
		if periods[i].Expenses, err = ss.SumTransactions(ctx, rng, model.TransactionExpense); err != nil {
			return st, err
		}
	}
	st.Budget = finance.Analyze(periods[0], periods[1])
	return st, nil
}

// monthRanges returns filters covering the month of now and the month
// before it.
func monthRanges(now time.Time) (current, previous store.Filter) {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	curFrom, curTo := model.NewDate(first), model.NewDate(first.AddDate(0, 1, -1))
	prevFrom, prevTo := model.NewDate(first.AddDate(0, -1, 0)), model.NewDate(first.AddDate(0, 0, -1))
	return store.Filter{From: &curFrom, To: &curTo}, store.Filter{From: &prevFrom, To: &prevTo}
}
