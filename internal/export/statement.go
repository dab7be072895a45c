package export

import (
	"fmt"
	"io"

	"github.com/e2dconnect/e2d/internal/finance"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/go-pdf/fpdf"
)

type LoanLine struct {
	Loan    model.Loan          `json:"loan"`
	Summary finance.LoanSummary `json:"summary"`
}

type Attendance struct {
	Present int     `json:"present"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

// Statement is one member's financial position, optionally scoped to an
// exercise.
type Statement struct {
	Member          model.Member     `json:"member"`
	Exercise        *model.Exercise  `json:"exercise,omitempty"`
	GeneratedOn     model.Date       `json:"generated_on"`
	Contributions   int64            `json:"contributions_total"`
	Savings         int64            `json:"savings_total"`
	Loans           []LoanLine       `json:"loans"`
	Outstanding     int64            `json:"loans_outstanding"`
	UnpaidSanctions []model.Sanction `json:"unpaid_sanctions"`
	UnpaidTotal     int64            `json:"unpaid_sanctions_total"`
	ProjectedPayout int64            `json:"projected_payout"`
	Attendance      Attendance       `json:"attendance"`
}

// NewStatement fills the derived totals from the raw rows.
func NewStatement(m model.Member, loans []model.Loan, unpaid []model.Sanction) Statement {
	st := Statement{
		Member:          m,
		GeneratedOn:     model.Today(),
		Loans:           make([]LoanLine, 0, len(loans)),
		UnpaidSanctions: unpaid,
	}
	if st.UnpaidSanctions == nil {
		st.UnpaidSanctions = []model.Sanction{}
	}
	for _, l := range loans {
		sum := finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid)
		st.Loans = append(st.Loans, LoanLine{Loan: l, Summary: sum})
		st.Outstanding += sum.Remaining
	}
	st.UnpaidTotal = finance.SumBy(unpaid, func(s model.Sanction) int64 { return s.Amount })
	return st
}

// SetAttendance records the attendance counts and derived rate.
func (st *Statement) SetAttendance(present, total int) {
	st.Attendance = Attendance{
		Present: present,
		Total:   total,
		Rate:    finance.Round2(finance.Percent(float64(present), float64(total))),
	}
}

// StatementPDF renders st as an A4 PDF.
func StatementPDF(w io.Writer, st Statement, association string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(tr("Relevé "+st.Member.FullName()), false)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(association), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, tr("Relevé de compte du "+st.GeneratedOn.String()), "", 1, "L", false, 0, "")
	if st.Exercise != nil {
		pdf.CellFormat(0, 7, tr("Exercice "+st.Exercise.Name), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, tr, "Membre")
	line(pdf, tr, "Nom", st.Member.FullName())
	line(pdf, tr, "Statut", st.Member.Status)
	if st.Member.Email != "" {
		line(pdf, tr, "Email", st.Member.Email)
	}
	if st.Member.JoinedOn != nil {
		line(pdf, tr, "Adhésion", st.Member.JoinedOn.String())
	}
	line(pdf, tr, "Présence aux réunions",
		fmt.Sprintf("%d / %d (%s)", st.Attendance.Present, st.Attendance.Total, Percent(st.Attendance.Rate)))

	section(pdf, tr, "Synthèse")
	line(pdf, tr, "Cotisations versées", Amount(st.Contributions))
	line(pdf, tr, "Épargne", Amount(st.Savings))
	line(pdf, tr, "Reste à rembourser", Amount(st.Outstanding))
	line(pdf, tr, "Sanctions impayées", Amount(st.UnpaidTotal))
	line(pdf, tr, "Part d'intérêts projetée", Amount(st.ProjectedPayout))

	if len(st.Loans) > 0 {
		section(pdf, tr, "Prêts")
		table(pdf, tr,
			[]string{"Octroyé le", "Montant", "Intérêts", "Payé", "Reste"},
			[]float64{35, 36, 36, 36, 37},
			func(add func(...string)) {
				for _, l := range st.Loans {
					add(l.Loan.IssuedOn.String(), Amount(l.Summary.Principal), Amount(l.Summary.Interest),
						Amount(l.Summary.Paid), Amount(l.Summary.Remaining))
				}
			})
	}

	if len(st.UnpaidSanctions) > 0 {
		section(pdf, tr, "Sanctions impayées")
		table(pdf, tr,
			[]string{"Date", "Motif", "Montant"},
			[]float64{35, 110, 35},
			func(add func(...string)) {
				for _, s := range st.UnpaidSanctions {
					add(s.IssuedOn.String(), s.Reason, Amount(s.Amount))
				}
			})
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	return nil
}

func section(pdf *fpdf.Fpdf, tr func(string) string, title string) {
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, tr(title), "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.Ln(1)
}

func line(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.CellFormat(70, 6, tr(label), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
}

func table(pdf *fpdf.Fpdf, tr func(string) string, headers []string, widths []float64, rows func(add func(...string))) {
	pdf.SetFillColor(221, 235, 247)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 7, tr(h), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	rows(func(cells ...string) {
		for i, c := range cells {
			align := "R"
			if i == 0 || headers[i] == "Motif" {
				align = "L"
			}
			pdf.CellFormat(widths[i], 6, tr(c), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	})
}
