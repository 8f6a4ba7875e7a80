package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount indicates input text could not be parsed as a monetary amount.
var ErrInvalidAmount = errors.New("invalid amount")

// Epsilon is the tolerance used for every monetary comparison in the engine.
// Derived totals accumulate rounding from per-line 2-decimal arithmetic, so
// balance/over/under decisions never use exact equality.
var Epsilon = decimal.RequireFromString("0.01")

// ParseAmount parses user-entered currency text. Currency symbols, thousands
// separators and surrounding whitespace are stripped. Empty input yields zero.
func ParseAmount(text string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return decimal.Zero, nil
	}
	// Accounting-style negatives: (1,234.56)
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		cleaned = "-" + cleaned[1:len(cleaned)-1]
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// FormatAmount renders an amount in fixed 2-decimal currency format.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ApproxEqual reports whether two amounts are equal within Epsilon.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// GreaterWithTolerance reports whether a exceeds b by at least Epsilon.
// Used for over-allocation and overage decisions.
func GreaterWithTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).GreaterThanOrEqual(Epsilon)
}
