// Package money holds the locale-aware amount parsing shared by every parser stage.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference still treated as "the totals agree"
var Tolerance = decimal.RequireFromString("0.01")

// ErrEmptyAmount is returned for blank input
var ErrEmptyAmount = errors.New("empty amount")

// ParseLocaleDecimal parses amounts written with either comma or dot as the
// decimal separator ("0,88", "12.50", "1.234,56", "1,234.56").
// When both separators appear, the last one is the decimal point and the other
// is a thousands separator. A single separator is always a decimal point.
func ParseLocaleDecimal(s string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.NewReplacer("€", "", "EUR", "", "eur", "", " ", "", "\u00a0", "").Replace(cleaned)
	if cleaned == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	lastComma := strings.LastIndex(cleaned, ",")
	lastDot := strings.LastIndex(cleaned, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") > 1 {
			return decimal.Zero, fmt.Errorf("ambiguous amount %q", s)
		}
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// MustParse is ParseLocaleDecimal for literals known to be valid
func MustParse(s string) decimal.Decimal {
	d, err := ParseLocaleDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Round2 rounds to cents
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether a and b differ by at most Tolerance
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// Ptr returns a pointer to a copy of d
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
