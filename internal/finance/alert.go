package finance

type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	AlertIncomeDrop      = "income_drop"
	AlertIncomeDecline   = "income_decline"
	AlertExpenseIncrease = "expense_increase"
	AlertExpenseRatio    = "expense_ratio"
)

// Thresholds, in percent.
const (
	IncomeDropThreshold      = -20.0
	IncomeDeclineThreshold   = -10.0
	ExpenseIncreaseThreshold = 15.0
	ExpenseRatioThreshold    = 80.0
)

type Alert struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Value    float64  `json:"value"`
}

// Period is the income and expenses of one budget period.
type Period struct {
	Income   int64 `json:"income"`
	Expenses int64 `json:"expenses"`
}

type Budget struct {
	Current          Period  `json:"current"`
	Previous         Period  `json:"previous"`
	Balance          int64   `json:"balance"`
	IncomeVariation  float64 `json:"income_variation"`
	ExpenseVariation float64 `json:"expense_variation"`
	ExpenseRatio     float64 `json:"expense_ratio"`
	Alerts           []Alert `json:"alerts"`
}

// Analyze compares the current period with the previous one and raises
// alerts on falling income, rising expenses or a high expense ratio.
func Analyze(current, previous Period) Budget {
	b := Budget{
		Current:          current,
		Previous:         previous,
		Balance:          current.Income - current.Expenses,
		IncomeVariation:  Round2(Variation(float64(current.Income), float64(previous.Income))),
		ExpenseVariation: Round2(Variation(float64(current.Expenses), float64(previous.Expenses))),
		ExpenseRatio:     Round2(Percent(float64(current.Expenses), float64(current.Income))),
		Alerts:           []Alert{},
	}

	switch {
	case b.IncomeVariation <= IncomeDropThreshold:
		b.Alerts = append(b.Alerts, Alert{Code: AlertIncomeDrop, Severity: SeverityCritical, Value: b.IncomeVariation})
	case b.IncomeVariation <= IncomeDeclineThreshold:
		b.Alerts = append(b.Alerts, Alert{Code: AlertIncomeDecline, Severity: SeverityWarning, Value: b.IncomeVariation})
	}
	if b.ExpenseVariation >= ExpenseIncreaseThreshold {
		b.Alerts = append(b.Alerts, Alert{Code: AlertExpenseIncrease, Severity: SeverityWarning, Value: b.ExpenseVariation})
	}
	if b.ExpenseRatio > ExpenseRatioThreshold {
		b.Alerts = append(b.Alerts, Alert{Code: AlertExpenseRatio, Severity: SeverityWarning, Value: b.ExpenseRatio})
	}
	return b
}
