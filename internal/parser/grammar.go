package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/facturaIA/receipt-reconciler/internal/models"
	"github.com/facturaIA/receipt-reconciler/internal/money"
)

// lineKind tags which grammar produced a parsedLine
type lineKind int

const (
	kindUnmatched lineKind = iota
	kindWeighted
	kindDualPrice
	kindSinglePrice
)

func (k lineKind) String() string {
	switch k {
	case kindWeighted:
		return "weighted"
	case kindDualPrice:
		return "dual_price"
	case kindSinglePrice:
		return "single_price"
	default:
		return "unmatched"
	}
}

// span identifies the physical text a candidate was read from
type span struct {
	line   int // index in the normalized input
	offset int // byte offset inside the (joined) line
	end    int
}

// parsedLine is one product candidate. Fields beyond kind and span are only
// meaningful for the matched kinds.
type parsedLine struct {
	kind lineKind
	span span
	raw  string

	name      string
	quantity  int
	weight    decimal.Decimal // weighted only
	unitPrice decimal.Decimal
	total     decimal.Decimal
}

// Product name charset: letters, digits and the punctuation receipts use
// inside names ("ACEITE OLIVA 0,4L", "QUESO 1/2").
const nameChars = `[\p{L}0-9 %.,/\-]`

var (
	reWeighted = regexp.MustCompile(`^(\d+)\s*(` + nameChars + `+?)\s*(\d+[.,]\d{1,3})\s*(?i:kg)\s*(\d+[.,]\d{2})\s*€/(?i:kg)\s*(\d+[.,]\d{2})`)
	reDual     = regexp.MustCompile(`^(\d+)\s*(` + nameChars + `+?)\s*(\d{1,4}[.,]\d{2})\s+(\d{1,4}[.,]\d{2})`)
	reSingle   = regexp.MustCompile(`^(\d+)\s*(` + nameChars + `+?)\s*(\d{1,4}[.,]\d{2})`)

	reKgMention    = regexp.MustCompile(`(?i)kg`)
	reLeadingPunct = regexp.MustCompile(`^[,\s]+`)
	reLeadingQty   = regexp.MustCompile(`^\d+\s*`)
	reTrailingAmt  = regexp.MustCompile(`\s*\d+[.,]\d{2}$`)
	rePriceInName  = regexp.MustCompile(`\d[.,]\d{2}`)
	reSpaces       = regexp.MustCompile(`\s+`)
)

const maxQuantity = 999

var maxPrice = decimal.NewFromInt(500)

// grammar turns one regexp match into a candidate, or reports false
type grammar struct {
	kind  lineKind
	re    *regexp.Regexp
	build func(m []string) (parsedLine, bool)
}

var (
	weightedGrammar = grammar{kind: kindWeighted, re: reWeighted, build: buildWeighted}
	dualGrammar     = grammar{kind: kindDualPrice, re: reDual, build: buildDual}
	singleGrammar   = grammar{kind: kindSinglePrice, re: reSingle, build: buildSingle}

	// Lines mentioning kg belong to weighed goods and may not be read as flat prices
	weighedOnly = []grammar{weightedGrammar}
	allGrammars = []grammar{weightedGrammar, dualGrammar, singleGrammar}
)

// scanLine walks a joined line left to right. At every candidate position the
// grammars are tried in priority order; the first that yields a valid
// candidate consumes its span and scanning resumes right after it. A span is
// therefore read by at most one grammar.
func scanLine(l sourceLine) []parsedLine {
	grammars := allGrammars
	if reKgMention.MatchString(l.text) {
		grammars = weighedOnly
	}

	var out []parsedLine
	text := l.text
	pos := nextStart(text, 0, true)
	for pos >= 0 && pos < len(text) {
		cand, ok := tryGrammars(grammars, text[pos:])
		if !ok {
			pos = nextStart(text, pos+1, false)
			continue
		}
		cand.span = span{line: l.index, offset: pos, end: pos + len(cand.raw)}
		out = append(out, cand)
		pos = nextStart(text, cand.span.end, true)
	}

	if len(out) == 0 {
		out = append(out, parsedLine{kind: kindUnmatched, span: span{line: l.index, end: len(text)}, raw: text})
	}
	return out
}

// tryGrammars returns the first grammar match anchored at the start of s
func tryGrammars(grammars []grammar, s string) (parsedLine, bool) {
	for _, g := range grammars {
		m := g.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		cand, ok := g.build(m)
		if !ok {
			log.Debug().Str("grammar", g.kind.String()).Str("text", m[0]).Msg("candidate rejected")
			continue
		}
		cand.kind = g.kind
		cand.raw = m[0]
		return cand, true
	}
	return parsedLine{}, false
}

// nextStart finds the next position where a quantity may begin: a digit at
// the start of the text or after whitespace. Right after a consumed span a
// digit may follow immediately, since products are often glued together.
func nextStart(s string, from int, afterMatch bool) int {
	for i := from; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			continue
		}
		if i == 0 || (afterMatch && i == from) || s[i-1] == ' ' {
			return i
		}
	}
	return -1
}

func buildWeighted(m []string) (parsedLine, bool) {
	qty, ok := parseQuantity(m[1])
	if !ok {
		return parsedLine{}, false
	}
	name, ok := cleanName(m[2])
	if !ok {
		return parsedLine{}, false
	}
	weight, err1 := money.ParseLocaleDecimal(m[3])
	perKilo, err2 := money.ParseLocaleDecimal(m[4])
	total, err3 := money.ParseLocaleDecimal(m[5])
	if err1 != nil || err2 != nil || err3 != nil || !weight.IsPositive() {
		return parsedLine{}, false
	}
	if !priceInRange(total) || !priceInRange(perKilo) {
		return parsedLine{}, false
	}
	return parsedLine{name: name, quantity: qty, weight: weight, unitPrice: perKilo, total: total}, true
}

func buildDual(m []string) (parsedLine, bool) {
	qty, ok := parseQuantity(m[1])
	if !ok {
		return parsedLine{}, false
	}
	name, ok := cleanName(m[2])
	if !ok {
		return parsedLine{}, false
	}
	unit, err1 := money.ParseLocaleDecimal(m[3])
	total, err2 := money.ParseLocaleDecimal(m[4])
	if err1 != nil || err2 != nil || !priceInRange(unit) || !priceInRange(total) {
		return parsedLine{}, false
	}
	return parsedLine{name: name, quantity: qty, unitPrice: unit, total: total}, true
}

func buildSingle(m []string) (parsedLine, bool) {
	qty, ok := parseQuantity(m[1])
	if !ok {
		return parsedLine{}, false
	}
	name, ok := cleanName(m[2])
	if !ok {
		return parsedLine{}, false
	}
	price, err := money.ParseLocaleDecimal(m[3])
	if err != nil {
		return parsedLine{}, false
	}
	total := price.Mul(decimal.NewFromInt(int64(qty)))
	if !priceInRange(price) || !priceInRange(total) {
		return parsedLine{}, false
	}
	return parsedLine{name: name, quantity: qty, unitPrice: price, total: total}, true
}

func parseQuantity(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxQuantity {
		return 0, false
	}
	return n, true
}

func priceInRange(d decimal.Decimal) bool {
	return d.IsPositive() && d.LessThan(maxPrice)
}

// cleanName strips stray separators, leading quantities and a repeated
// trailing amount, then checks the name bounds. A name that still carries a
// price, has no letters or is a noise keyword is rejected.
func cleanName(raw string) (string, bool) {
	n := reLeadingPunct.ReplaceAllString(raw, "")
	n = reLeadingQty.ReplaceAllString(n, "")
	n = reTrailingAmt.ReplaceAllString(n, "")
	n = strings.TrimSpace(reSpaces.ReplaceAllString(n, " "))
	n = strings.TrimRight(n, " ,.-/")

	if l := utf8.RuneCountInString(n); l < models.MinNameLength || l > models.MaxNameLength {
		return "", false
	}
	if rePriceInName.MatchString(n) || !strings.ContainsFunc(n, unicode.IsLetter) || isNoise(n) {
		return "", false
	}
	return n, true
}
