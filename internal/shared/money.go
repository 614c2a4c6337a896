package shared

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.LatinAmericanSpanish)

// FormatAmount renders a monetary amount with es-419 digit grouping and the
// quetzal symbol, matching what the mobile and admin clients display.
func FormatAmount(v float64) string {
	return moneyPrinter.Sprintf("Q%v", number.Decimal(v,
		number.MinFractionDigits(2),
		number.MaxFractionDigits(2),
	))
}
