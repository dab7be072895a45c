package export

import (
	"fmt"
	"io"

	"github.com/e2dconnect/e2d/internal/finance"
	"github.com/e2dconnect/e2d/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	SheetMembers       = "Membres"
	SheetContributions = "Cotisations"
	SheetLoans         = "Prets"
	SheetSanctions     = "Sanctions"
)

// Data is everything a workbook export contains.
type Data struct {
	Members       []model.Member
	Contributions []model.Contribution
	Loans         []model.Loan
	Sanctions     []model.Sanction
}

func (d Data) names() map[int64]string {
	names := make(map[int64]string, len(d.Members))
	for _, m := range d.Members {
		names[m.ID] = m.FullName()
	}
	return names
}

type sheet struct {
	name    string
	headers []string
	rows    [][]any
	// money lists the columns holding FCFA amounts, e.g. "C".
	money []string
}

// Workbook builds one sheet per dataset with a bold header row. Amounts are
// written as numbers.
func Workbook(d Data) (*excelize.File, error) {
	names := d.names()
	sheets := []sheet{
		membersSheet(d.Members),
		contributionsSheet(d.Contributions, names),
		loansSheet(d.Loans, names),
		sanctionsSheet(d.Sanctions, names),
	}

	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("money style: %w", err)
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, fmt.Errorf("new sheet %s: %w", s.name, err)
		}
		if err := writeSheet(f, s, header, money); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle, moneyStyle int) error {
	headers := make([]any, len(s.headers))
	for i, h := range s.headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(s.name, "A1", &headers); err != nil {
		return fmt.Errorf("write %s header: %w", s.name, err)
	}
	if err := f.SetRowStyle(s.name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", s.name, err)
	}
	for i, row := range s.rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", s.name, i+1, err)
		}
	}
	for _, col := range s.money {
		if err := f.SetColStyle(s.name, col, moneyStyle); err != nil {
			return fmt.Errorf("style %s column %s: %w", s.name, col, err)
		}
	}
	last, _ := excelize.ColumnNumberToName(len(s.headers))
	return f.SetColWidth(s.name, "A", last, 18)
}

func dateCell(d *model.Date) any {
	if d == nil {
		return ""
	}
	return d.String()
}

func membersSheet(members []model.Member) sheet {
	s := sheet{
		name:    SheetMembers,
		headers: []string{"ID", "Nom", "Prénom", "Email", "Téléphone", "Statut", "E2D", "Phoenix", "Adhésion"},
	}
	for _, m := range members {
		s.rows = append(s.rows, []any{
			m.ID, m.LastName, m.FirstName, m.Email, m.Phone, m.Status, yesNo(m.E2D), yesNo(m.Phoenix), dateCell(m.JoinedOn),
		})
	}
	return s
}

func contributionsSheet(list []model.Contribution, names map[int64]string) sheet {
	s := sheet{
		name:    SheetContributions,
		headers: []string{"ID", "Membre", "Montant", "Date", "Statut", "Notes"},
		money:   []string{"C"},
	}
	for _, c := range list {
		s.rows = append(s.rows, []any{c.ID, names[c.MemberID], c.Amount, c.PaidOn.String(), c.Status, c.Notes})
	}
	return s
}

func loansSheet(list []model.Loan, names map[int64]string) sheet {
	s := sheet{
		name: SheetLoans,
		headers: []string{"ID", "Membre", "Montant", "Taux (%)", "Reconductions", "Intérêts",
			"Total dû", "Payé", "Reste", "Octroyé le", "Échéance", "Statut"},
		money: []string{"C", "F", "G", "H", "I"},
	}
	for _, l := range list {
		sum := finance.SummarizeLoan(l.Amount, l.InterestRate, l.Reconductions, l.Paid)
		s.rows = append(s.rows, []any{
			l.ID, names[l.MemberID], l.Amount, l.InterestRate, l.Reconductions, sum.Interest,
			sum.TotalDue, sum.Paid, sum.Remaining, l.IssuedOn.String(), dateCell(l.DueOn), l.Status,
		})
	}
	return s
}

func sanctionsSheet(list []model.Sanction, names map[int64]string) sheet {
	s := sheet{
		name:    SheetSanctions,
		headers: []string{"ID", "Membre", "Montant", "Motif", "Contexte", "Statut", "Date", "Payée le"},
		money:   []string{"C"},
	}
	for _, sn := range list {
		s.rows = append(s.rows, []any{
			sn.ID, names[sn.MemberID], sn.Amount, sn.Reason, sn.Context, sn.Status, sn.IssuedOn.String(), dateCell(sn.PaidOn),
		})
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "oui"
	}
	return "non"
}

// WriteWorkbook builds the workbook and writes it as .xlsx.
func WriteWorkbook(w io.Writer, d Data) error {
	f, err := Workbook(d)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
