package finance

// Interest is the interest due on a loan: the rate applies once for the
// initial period and once more for each renewal.
func Interest(amount int64, rate float64, reconductions int) int64 {
	if amount <= 0 || rate <= 0 {
		return 0
	}
	if reconductions < 0 {
		reconductions = 0
	}
	return Round(float64(amount) * (rate / 100) * float64(1+reconductions))
}

type LoanSummary struct {
	Principal int64   `json:"principal"`
	Interest  int64   `json:"interest"`
	TotalDue  int64   `json:"total_due"`
	Paid      int64   `json:"paid"`
	Remaining int64   `json:"remaining"`
	Progress  float64 `json:"progress"`
}

// SummarizeLoan computes what is owed on a loan given what was repaid.
func SummarizeLoan(amount int64, rate float64, reconductions int, paid int64) LoanSummary {
	interest := Interest(amount, rate, reconductions)
	due := amount + interest
	remaining := due - paid
	if remaining < 0 {
		remaining = 0
	}
	progress := Percent(float64(paid), float64(due))
	if progress > 100 {
		progress = 100
	}
	return LoanSummary{
		Principal: amount,
		Interest:  interest,
		TotalDue:  due,
		Paid:      paid,
		Remaining: remaining,
		Progress:  Round2(progress),
	}
}

// Settled reports whether the loan is fully repaid.
func (s LoanSummary) Settled() bool {
	return s.TotalDue > 0 && s.Remaining == 0
}
