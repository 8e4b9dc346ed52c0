package parser

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/receipt-reconciler/internal/money"
)

var (
	// "TOTAL (€) 12,30", "TOTAL € 12,30", "TOTAL EUR 12,30"
	reTotalCurrency = regexp.MustCompile(`(?i)(^|[^\p{L}])total\s*(\(\s*(€|eur)\s*\)|€|eur([^\p{L}]|$))`)
	// "TOTAL 12,30", "TOTAL A PAGAR: 12,30"
	reTotalLeading = regexp.MustCompile(`(?i)^total([^\p{L}]|$)`)
	reAmount       = regexp.MustCompile(`\d+(?:[.,]\d{3})*[.,]\d{2}`)
)

// detectTotal returns the total printed on the receipt. Lines with a currency
// marker are preferred; otherwise the first line starting with TOTAL counts.
// The first amount after the marker is taken.
func detectTotal(lines []string) *decimal.Decimal {
	if d := firstTotal(lines, reTotalCurrency); d != nil {
		return d
	}
	return firstTotal(lines, reTotalLeading)
}

func firstTotal(lines []string, marker *regexp.Regexp) *decimal.Decimal {
	for _, l := range lines {
		loc := marker.FindStringIndex(l)
		if loc == nil {
			continue
		}
		amount := reAmount.FindString(l[loc[1]:])
		if amount == "" {
			continue
		}
		d, err := money.ParseLocaleDecimal(amount)
		if err != nil {
			log.Debug().Err(err).Str("text", l).Msg("total amount unreadable")
			continue
		}
		return &d
	}
	return nil
}
