package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/e2dconnect/e2d/internal/export"
	"github.com/e2dconnect/e2d/internal/finance"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/e2dconnect/e2d/internal/store"
)

// Stores bundles the stores the aggregate views read from.
type Stores struct {
	Members       *store.MemberStore
	Exercises     *store.ExerciseStore
	Contributions *store.ContributionStore
	Savings       *store.SavingStore
	Loans         *store.LoanStore
	Sanctions     *store.SanctionStore
	Meetings      *store.MeetingStore
	Sport         *store.SportStore
	Donations     *store.DonationStore
	Adhesions     *store.AdhesionStore
	Settings      *store.SettingsStore
}

// DashboardHandler serves the read-and-aggregate views: the bureau
// dashboard, member statements, exercise reports and the workbook export.
type DashboardHandler struct {
	s      Stores
	logger *slog.Logger
	now    func() time.Time
}

func NewDashboardHandler(s Stores, logger *slog.Logger) *DashboardHandler {
	return &DashboardHandler{s: s, logger: logger, now: time.Now}
}

type exerciseTotals struct {
	Exercise      *model.Exercise `json:"exercise"`
	Contributions int64           `json:"contributions"`
	Savings       int64           `json:"savings"`
}

type Dashboard struct {
	Members           model.MemberCounts `json:"members"`
	Active            exerciseTotals     `json:"active_exercise"`
	LoansOutstanding  int64              `json:"loans_outstanding"`
	LoansOpen         int                `json:"loans_open"`
	UnpaidSanctions   int64              `json:"unpaid_sanctions"`
	PendingAdhesions  int                `json:"pending_adhesions"`
	DonationsReceived int64              `json:"donations_received"`
	Budget            finance.Budget     `json:"budget"`
}

// Dashboard handles GET /api/dashboard.
func (h *DashboardHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.dashboard(r.Context(), h.now().UTC())
	if err != nil {
		writeStoreError(w, h.logger, "failed to build dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *DashboardHandler) dashboard(ctx context.Context, now time.Time) (Dashboard, error) {
	var d Dashboard
	var err error
	if d.Members, err = h.s.Members.Counts(ctx); err != nil {
		return d, err
	}

	if d.Active.Exercise, err = h.s.Exercises.Active(ctx); err != nil {
		return d, err
	}
	if d.Active.Exercise != nil {
		f := store.Filter{ExerciseID: d.Active.Exercise.ID}
		paid := f
		paid.Status = model.ContributionPaid
		if d.Active.Contributions, err = h.s.Contributions.Sum(ctx, paid); err != nil {
			return d, err
		}
		if d.Active.Savings, err = h.s.Savings.Sum(ctx, f); err != nil {
			return d, err
		}
	}

	loans, err := h.s.Loans.List(ctx, store.Filter{})
	if err != nil {
		return d, err
	}
	for _, l := range loans {
		if l.Status == model.LoanRepaid {
			continue
		}
		d.LoansOpen++
		d.LoansOutstanding += finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid).Remaining
	}

	if d.UnpaidSanctions, err = h.s.Sanctions.Sum(ctx, store.Filter{Status: model.SanctionUnpaid}); err != nil {
		return d, err
	}
	if d.PendingAdhesions, err = h.s.Adhesions.CountPending(ctx); err != nil {
		return d, err
	}
	if d.DonationsReceived, err = h.s.Donations.Sum(ctx, store.Filter{Status: model.DonationReceived}); err != nil {
		return d, err
	}

	cur, prev := monthRanges(now)
	current, err := h.period(ctx, cur)
	if err != nil {
		return d, err
	}
	previous, err := h.period(ctx, prev)
	if err != nil {
		return d, err
	}
	d.Budget = finance.Analyze(current, previous)
	return d, nil
}

// period sums the association's income and expenses over a date range.
// Income is paid contributions, received donations and sport receipts;
// expenses are sport expenses and loans issued.
func (h *DashboardHandler) period(ctx context.Context, rng store.Filter) (finance.Period, error) {
	var p finance.Period

	contrib := rng
	contrib.Status = model.ContributionPaid
	dues, err := h.s.Contributions.Sum(ctx, contrib)
	if err != nil {
		return p, err
	}
	donated := rng
	donated.Status = model.DonationReceived
	gifts, err := h.s.Donations.Sum(ctx, donated)
	if err != nil {
		return p, err
	}
	receipts, err := h.s.Sport.SumTransactions(ctx, rng, model.TransactionReceipt)
	if err != nil {
		return p, err
	}
	spent, err := h.s.Sport.SumTransactions(ctx, rng, model.TransactionExpense)
	if err != nil {
		return p, err
	}
	lent, err := h.s.Loans.SumIssued(ctx, rng)
	if err != nil {
		return p, err
	}

	p.Income = finance.Sum(dues, gifts, receipts)
	p.Expenses = finance.Sum(spent, lent)
	return p, nil
}

// exerciseParam resolves ?exercise_id=, falling back to the active
// exercise. It returns nil when neither exists.
func (h *DashboardHandler) exerciseParam(w http.ResponseWriter, r *http.Request) (*model.Exercise, bool) {
	id, err := queryInt(r.URL.Query().Get("exercise_id"), "exercise_id")
	if !check(w, err) {
		return nil, false
	}
	var e *model.Exercise
	if id != 0 {
		e, err = h.s.Exercises.GetByID(r.Context(), id)
		if err == nil && e == nil {
			writeError(w, http.StatusNotFound, "exercise not found")
			return nil, false
		}
	} else {
		e, err = h.s.Exercises.Active(r.Context())
	}
	if err != nil {
		writeStoreError(w, h.logger, "failed to get exercise", err)
		return nil, false
	}
	return e, true
}

// interestPot is the interest owed on the loans of an exercise.
func interestPot(loans []model.Loan) int64 {
	return finance.SumBy(loans, func(l model.Loan) int64 {
		return finance.Interest(l.Amount, l.InterestRate, l.Reconductions)
	})
}

func (h *DashboardHandler) statement(ctx context.Context, m model.Member, e *model.Exercise) (export.Statement, error) {
	loans, err := h.s.Loans.List(ctx, store.Filter{MemberID: m.ID})
	if err != nil {
		return export.Statement{}, err
	}
	unpaid, err := h.s.Sanctions.List(ctx, store.Filter{MemberID: m.ID, Status: model.SanctionUnpaid})
	if err != nil {
		return export.Statement{}, err
	}
	st := export.NewStatement(m, loans, unpaid)
	st.Exercise = e

	own := store.Filter{MemberID: m.ID}
	if e != nil {
		own.ExerciseID = e.ID
	}
	paid := own
	paid.Status = model.ContributionPaid
	if st.Contributions, err = h.s.Contributions.Sum(ctx, paid); err != nil {
		return st, err
	}
	if st.Savings, err = h.s.Savings.Sum(ctx, own); err != nil {
		return st, err
	}

	present, total, err := h.s.Meetings.AttendanceRate(ctx, m.ID)
	if err != nil {
		return st, err
	}
	st.SetAttendance(present, total)

	if e != nil {
		all := store.Filter{ExerciseID: e.ID}
		totalSavings, err := h.s.Savings.Sum(ctx, all)
		if err != nil {
			return st, err
		}
		exLoans, err := h.s.Loans.List(ctx, all)
		if err != nil {
			return st, err
		}
		st.ProjectedPayout = finance.Payout(st.Savings, totalSavings, interestPot(exLoans))
	}
	return st, nil
}

// Statement handles GET /api/members/{id}/statement. With ?format=pdf the
// statement is rendered as a PDF document.
func (h *DashboardHandler) Statement(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	m, err := h.s.Members.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get member", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	e, ok := h.exerciseParam(w, r)
	if !ok {
		return
	}
	st, err := h.statement(r.Context(), *m, e)
	if err != nil {
		writeStoreError(w, h.logger, "failed to build statement", err)
		return
	}

	if r.URL.Query().Get("format") != "pdf" {
		writeJSON(w, http.StatusOK, st)
		return
	}
	var buf bytes.Buffer
	if err := export.StatementPDF(&buf, st, associationName(r.Context(), h.s.Settings)); err != nil {
		h.logger.Error("render statement pdf", "member_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render statement")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="releve-%d.pdf"`, id))
	w.Write(buf.Bytes())
}

type payoutShare struct {
	finance.Share
	Name string `json:"name"`
}

type ExerciseReport struct {
	Exercise         model.Exercise `json:"exercise"`
	Contributions    int64          `json:"contributions"`
	Savings          int64          `json:"savings"`
	LoansIssued      int64          `json:"loans_issued"`
	LoansRepaid      int64          `json:"loans_repaid"`
	LoansOutstanding int64          `json:"loans_outstanding"`
	InterestPot      int64          `json:"interest_pot"`
	Shares           []payoutShare  `json:"shares"`
}

// Report handles GET /api/exercises/{id}/report: the exercise totals and
// how the interest pot is split between savers.
func (h *DashboardHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := h.s.Exercises.GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.logger, "failed to get exercise", err)
		return
	}
	if e == nil {
		writeError(w, http.StatusNotFound, "exercise not found")
		return
	}
	rep, err := h.report(r.Context(), *e)
	if err != nil {
		writeStoreError(w, h.logger, "failed to build exercise report", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *DashboardHandler) report(ctx context.Context, e model.Exercise) (ExerciseReport, error) {
	rep := ExerciseReport{Exercise: e, Shares: []payoutShare{}}
	f := store.Filter{ExerciseID: e.ID}
	paid := f
	paid.Status = model.ContributionPaid

	var err error
	if rep.Contributions, err = h.s.Contributions.Sum(ctx, paid); err != nil {
		return rep, err
	}
	if rep.Savings, err = h.s.Savings.Sum(ctx, f); err != nil {
		return rep, err
	}
	loans, err := h.s.Loans.List(ctx, f)
	if err != nil {
		return rep, err
	}
	for _, l := range loans {
		sum := finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid)
		rep.LoansIssued += l.Amount
		rep.LoansRepaid += sum.Paid
		rep.LoansOutstanding += sum.Remaining
	}
	rep.InterestPot = interestPot(loans)

	savers, err := h.s.Savings.TotalsByMember(ctx, f)
	if err != nil {
		return rep, err
	}
	members, err := h.s.Members.List(ctx, store.MemberFilter{})
	if err != nil {
		return rep, err
	}
	names := make(map[int64]string, len(members))
	for _, m := range members {
		names[m.ID] = m.FullName()
	}
	for _, sh := range finance.Distribute(savers, rep.InterestPot) {
		rep.Shares = append(rep.Shares, payoutShare{Share: sh, Name: names[sh.MemberID]})
	}
	return rep, nil
}

// Export handles GET /api/export: an Excel workbook of members,
// contributions, loans and sanctions, optionally limited to ?exercise_id=.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	exerciseID, err := queryInt(r.URL.Query().Get("exercise_id"), "exercise_id")
	if !check(w, err) {
		return
	}
	d, err := h.workbookData(r.Context(), exerciseID)
	if err != nil {
		writeStoreError(w, h.logger, "failed to load export data", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, d); err != nil {
		h.logger.Error("write workbook", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build workbook")
		return
	}
	name := "e2d-" + h.now().Format("2006-01-02") + ".xlsx"
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Write(buf.Bytes())
}

func (h *DashboardHandler) workbookData(ctx context.Context, exerciseID int64) (export.Data, error) {
	var d export.Data
	var err error
	if d.Members, err = h.s.Members.List(ctx, store.MemberFilter{}); err != nil {
		return d, err
	}
	f := store.Filter{ExerciseID: exerciseID}
	if d.Contributions, err = h.s.Contributions.List(ctx, f); err != nil {
		return d, err
	}
	if d.Loans, err = h.s.Loans.List(ctx, f); err != nil {
		return d, err
	}
	if d.Sanctions, err = h.s.Sanctions.List(ctx, store.Filter{}); err != nil {
		return d, err
	}
	return d, nil
}
