package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/e2dconnect/e2d/internal/finance"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
	"github.com/e2dconnect/e2d/internal/validate"
	"github.com/e2dconnect/e2d/internal/websocket"
)

const defaultLoanRate = 5.0

type LoanHandler struct {
	store     *store.LoanStore
	members   *store.MemberStore
	exercises *store.ExerciseStore
	settings  *store.SettingsStore
	hub       *websocket.Hub
	logger    *slog.Logger
}

func NewLoanHandler(ls *store.LoanStore, ms *store.MemberStore, es *store.ExerciseStore, ss *store.SettingsStore, hub *websocket.Hub, logger *slog.Logger) *LoanHandler {
	return &LoanHandler{store: ls, members: ms, exercises: es, settings: ss, hub: hub, logger: logger}
}

// loanView is a loan with what is owed on it.
type loanView struct {
	model.Loan
	Summary  finance.LoanSummary `json:"summary"`
	Payments []model.LoanPayment `json:"payments,omitempty"`
}

func viewLoan(l model.Loan) loanView {
	return loanView{Loan: l, Summary: finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid)}
}

type loanRequest struct {
	MemberID     int64       `json:"member_id" validate:"required,gt=0"`
	ExerciseID   *int64      `json:"exercise_id" validate:"omitempty,gt=0"`
	Amount       int64       `json:"amount" validate:"required,gt=0"`
	InterestRate *float64    `json:"interest_rate" validate:"omitempty,gte=0,lte=100"`
	IssuedOn     model.Date  `json:"issued_on" validate:"required"`
	DueOn        *model.Date `json:"due_on"`
	Notes        string      `json:"notes" validate:"max=500"`
}

func (h *LoanHandler) loan(w http.ResponseWriter, r *http.Request, req loanRequest) (model.Loan, bool) {
	l := model.Loan{
		MemberID:   req.MemberID,
		ExerciseID: req.ExerciseID,
		Amount:     req.Amount,
		IssuedOn:   req.IssuedOn,
		DueOn:      req.DueOn,
		Notes:      strings.TrimSpace(req.Notes),
	}
	if l.DueOn != nil && l.DueOn.Before(l.IssuedOn.Time) {
		return l, check(w, validate.Field("due_on", "due_on doit être postérieure à issued_on"))
	}
	if !memberExists(w, r, h.members, h.logger, l.MemberID) {
		return l, false
	}

	if req.InterestRate != nil {
		l.InterestRate = *req.InterestRate
	} else {
		rate, ok, err := h.settings.Float(r.Context(), "default_loan_rate", defaultLoanRate)
		if err != nil {
			writeStoreError(w, h.logger, "failed to read default loan rate", err)
			return l, false
		}
		if !ok {
			h.logger.Warn("invalid default_loan_rate setting, using fallback", "fallback", defaultLoanRate)
		}
		l.InterestRate = rate
	}

	if l.ExerciseID == nil {
		id, err := activeExerciseID(r.Context(), h.exercises)
		if err != nil {
			writeStoreError(w, h.logger, "failed to get active exercise", err)
			return l, false
		}
		l.ExerciseID = id
	}
	return l, true
}

func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := listFilter(r)
	if !check(w, err) {
		return
	}
	loans, err := h.store.List(r.Context(), f)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list loans", err)
		return
	}
	views := make([]loanView, 0, len(loans))
	for _, l := range loans {
		views = append(views, viewLoan(l))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *LoanHandler) getLoan(w http.ResponseWriter, r *http.Request) (*model.Loan, bool) {
	id, ok := pathID(w, r)
	if !ok {
		return nil, false
	}
	l, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get loan", err)
		return nil, false
	}
	if l == nil {
		writeError(w, http.StatusNotFound, "loan not found")
		return nil, false
	}
	return l, true
}

// Get returns the loan with its summary and repayments.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, ok := h.getLoan(w, r)
	if !ok {
		return
	}
	payments, err := h.store.ListPayments(r.Context(), l.ID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to list payments", err)
		return
	}
	v := viewLoan(*l)
	v.Payments = nonNil(payments)
	writeJSON(w, http.StatusOK, v)
}

func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if !decode(w, r, &req) {
		return
	}
	l, ok := h.loan(w, r, req)
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), l)
	if err != nil {
		writeStoreError(w, h.logger, "failed to create loan", err)
		return
	}
	h.hub.Notify(websocket.EntityLoan, websocket.ActionCreated, created.ID)
	writeJSON(w, http.StatusCreated, viewLoan(*created))
}

func (h *LoanHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.getLoan(w, r)
	if !ok {
		return
	}
	var req loanRequest
	if !decode(w, r, &req) {
		return
	}
	if req.InterestRate == nil {
		req.InterestRate = &existing.InterestRate
	}
	if req.ExerciseID == nil {
		req.ExerciseID = existing.ExerciseID
	}
	l, ok := h.loan(w, r, req)
	if !ok {
		return
	}
	l.Reconductions = existing.Reconductions
	l.Status = existing.Status
	l.Paid = existing.Paid
	l.Status = statusAfter(l)

	updated, err := h.store.Update(r.Context(), existing.ID, l)
	if err != nil {
		writeStoreError(w, h.logger, "failed to update loan", err)
		return
	}
	h.hub.Notify(websocket.EntityLoan, websocket.ActionUpdated, existing.ID)
	writeJSON(w, http.StatusOK, viewLoan(*updated))
}

// statusAfter derives the status once amounts or payments changed: a
// settled loan is repaid, a loan with money still owed is never repaid.
func statusAfter(l model.Loan) string {
	sum := finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid)
	switch {
	case sum.Settled():
		return model.LoanRepaid
	case l.Status == model.LoanRepaid:
		return model.LoanOngoing
	default:
		return l.Status
	}
}

func (h *LoanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		writeStoreError(w, h.logger, "failed to delete loan", err)
		return
	}
	h.hub.Notify(websocket.EntityLoan, websocket.ActionDeleted, id)
	w.WriteHeader(http.StatusNoContent)
}

type paymentRequest struct {
	Amount int64      `json:"amount" validate:"required,gt=0"`
	PaidOn model.Date `json:"paid_on" validate:"required"`
}

// AddPayment handles POST /api/loans/{id}/payments. A payment may not
// exceed the remaining balance; the loan is marked repaid once settled.
func (h *LoanHandler) AddPayment(w http.ResponseWriter, r *http.Request) {
	l, ok := h.getLoan(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !decode(w, r, &req) {
		return
	}
	sum := finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid)
	if l.Status == model.LoanRepaid || sum.Remaining == 0 {
		writeError(w, http.StatusConflict, "loan is already repaid")
		return
	}
	if req.Amount > sum.Remaining {
		check(w, validate.Field("amount", "amount dépasse le reste à payer ("+strconv.FormatInt(sum.Remaining, 10)+")"))
		return
	}

	p, err := h.store.AddPayment(r.Context(), l.ID, req.Amount, req.PaidOn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to record payment", err)
		return
	}
	l.Paid += req.Amount
	if status := statusAfter(*l); status != l.Status {
		if err := h.store.SetStatus(r.Context(), l.ID, status); err != nil {
			writeStoreError(w, h.logger, "failed to update loan status", err)
			return
		}
	}
	h.hub.Notify(websocket.EntityLoan, websocket.ActionUpdated, l.ID)
	writeJSON(w, http.StatusCreated, p)
}

type renewRequest struct {
	DueOn *model.Date `json:"due_on"`
}

// Renew handles POST /api/loans/{id}/renew: one more interest period and
// optionally a new due date.
func (h *LoanHandler) Renew(w http.ResponseWriter, r *http.Request) {
	l, ok := h.getLoan(w, r)
	if !ok {
		return
	}
	var req renewRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	if l.Status == model.LoanRepaid {
		writeError(w, http.StatusConflict, "a repaid loan cannot be renewed")
		return
	}
	renewed, err := h.store.Renew(r.Context(), l.ID, req.DueOn)
	if err != nil {
		writeStoreError(w, h.logger, "failed to renew loan", err)
		return
	}
	h.hub.Notify(websocket.EntityLoan, websocket.ActionUpdated, l.ID)
	writeJSON(w, http.StatusOK, viewLoan(*renewed))
}
