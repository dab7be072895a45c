// Package finance holds the display-time arithmetic of the dashboards:
// totals, ratios, loan interest, savings payouts, budget alerts and the
// contribution forecast. Every function is pure.
package finance

import "math"

// Sum adds amounts.
func Sum(amounts ...int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}

// SumBy adds f(row) over rows.
func SumBy[T any](rows []T, f func(T) int64) int64 {
	var total int64
	for _, r := range rows {
		total += f(r)
	}
	return total
}

// Percent returns part/whole*100, or 0 when whole is 0.
func Percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// Ratio returns part/whole, or 0 when whole is 0.
func Ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole
}

// Variation returns the percent change from previous to current, or 0
// when previous is 0.
func Variation(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// Round rounds half away from zero to a whole amount.
func Round(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int64(math.Round(v))
}

// Round2 rounds a percentage to two decimals for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
