// Package export renders association data as Excel workbooks and PDF
// statements.
package export

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer = message.NewPrinter(language.French)
	// Core PDF fonts have no narrow no-break space.
	spaces = strings.NewReplacer("\u202f", " ", "\u00a0", " ")
)

// Amount formats a FCFA amount with French digit grouping, e.g. "1 234 567 FCFA".
func Amount(n int64) string {
	return spaces.Replace(printer.Sprintf("%d FCFA", n))
}

// Percent formats v with one decimal and a French decimal comma, e.g. "12,5 %".
func Percent(v float64) string {
	return spaces.Replace(printer.Sprintf("%.1f %%", v))
}
