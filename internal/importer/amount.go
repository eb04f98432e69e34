package importer

import (
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount accepts plain decimals ("1234.56") as well as grouped
// amounts in either convention ("1.234,56", "1,234.56"). The rightmost
// separator is taken as the decimal point.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	if lastComma > lastDot {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	return decimal.NewFromString(s)
}
