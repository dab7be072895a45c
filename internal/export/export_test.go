package export

import (
	"bytes"
	"testing"

	"github.com/e2dconnect/e2d/internal/model"
	"github.com/xuri/excelize/v2"
)

func mustDate(t *testing.T, s string) model.Date {
	t.Helper()
	d, err := model.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return d
}

func TestAmount(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 FCFA"},
		{500, "500 FCFA"},
		{1234567, "1 234 567 FCFA"},
	}
	for _, tt := range tests {
		if got := Amount(tt.in); got != tt.want {
			t.Errorf("Amount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(12.5); got != "12,5 %" {
		t.Errorf("Percent(12.5) = %q, want %q", got, "12,5 %")
	}
}

func sampleData(t *testing.T) Data {
	due := mustDate(t, "2024-09-01")
	return Data{
		Members: []model.Member{
			{ID: 1, FirstName: "Awa", LastName: "Ngono", Status: model.MemberActive, E2D: true},
			{ID: 2, FirstName: "Paul", LastName: "Mbarga", Status: model.MemberActive, Phoenix: true},
		},
		Contributions: []model.Contribution{
			{ID: 1, MemberID: 1, Amount: 5000, PaidOn: mustDate(t, "2024-01-05"), Status: model.ContributionPaid},
		},
		Loans: []model.Loan{
			{ID: 1, MemberID: 2, Amount: 100000, InterestRate: 5, Reconductions: 1, Paid: 30000,
				IssuedOn: mustDate(t, "2024-03-01"), DueOn: &due, Status: model.LoanOngoing},
		},
		Sanctions: []model.Sanction{
			{ID: 1, MemberID: 2, Amount: 500, Reason: "Carton jaune", Context: model.ContextSport,
				Status: model.SanctionUnpaid, IssuedOn: mustDate(t, "2024-04-13")},
		},
	}
}

func TestWorkbookSheets(t *testing.T) {
	f, err := Workbook(sampleData(t))
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer f.Close()

	want := []string{SheetMembers, SheetContributions, SheetLoans, SheetSanctions}
	got := f.GetSheetList()
	if len(got) != len(want) {
		t.Fatalf("sheets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sheet %d = %q, want %q", i, got[i], want[i])
		}
	}

	rows, err := f.GetRows(SheetMembers)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("member rows = %d, want header + 2", len(rows))
	}
	if rows[0][1] != "Nom" || rows[2][1] != "Mbarga" {
		t.Errorf("member rows = %v", rows)
	}
}

func TestWorkbookLoanSummary(t *testing.T) {
	f, err := Workbook(sampleData(t))
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	defer f.Close()

	raw := excelize.Options{RawCellValue: true}
	cells := map[string]string{
		"B2": "Paul Mbarga",
		"C2": "100000",
		"F2": "10000", // 100000 * 5% * (1 + 1)
		"G2": "110000",
		"H2": "30000",
		"I2": "80000",
		"K2": "2024-09-01",
	}
	for cell, want := range cells {
		got, err := f.GetCellValue(SheetLoans, cell, raw)
		if err != nil {
			t.Fatalf("get %s: %v", cell, err)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", cell, got, want)
		}
	}

	typ, err := f.GetCellType(SheetContributions, "C2")
	if err != nil {
		t.Fatalf("cell type: %v", err)
	}
	if typ == excelize.CellTypeSharedString || typ == excelize.CellTypeInlineString {
		t.Error("amounts should be stored as numbers")
	}
}

func TestWriteWorkbook(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWorkbook(&buf, Data{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	// xlsx files are zip archives
	if !bytes.HasPrefix(buf.Bytes(), []byte("PK")) {
		t.Error("output is not a zip archive")
	}
}

func TestNewStatement(t *testing.T) {
	d := sampleData(t)
	st := NewStatement(d.Members[1], d.Loans, d.Sanctions)
	st.SetAttendance(3, 4)

	if st.Outstanding != 80000 {
		t.Errorf("outstanding = %d, want 80000", st.Outstanding)
	}
	if st.UnpaidTotal != 500 {
		t.Errorf("unpaid = %d, want 500", st.UnpaidTotal)
	}
	if st.Attendance.Rate != 75 {
		t.Errorf("attendance rate = %v, want 75", st.Attendance.Rate)
	}

	empty := NewStatement(d.Members[0], nil, nil)
	if empty.UnpaidSanctions == nil || empty.Loans == nil {
		t.Error("empty statement should have non-nil slices")
	}
	empty.SetAttendance(0, 0)
	if empty.Attendance.Rate != 0 {
		t.Errorf("rate with no meetings = %v, want 0", empty.Attendance.Rate)
	}
}

func TestStatementPDF(t *testing.T) {
	d := sampleData(t)
	st := NewStatement(d.Members[1], d.Loans, d.Sanctions)
	st.Contributions = 60000
	st.Savings = 150000
	st.ProjectedPayout = 4200
	st.Exercise = &model.Exercise{Name: "2024"}

	var buf bytes.Buffer
	if err := StatementPDF(&buf, st, "E2D Connect"); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Error("output is not a PDF")
	}
}
