package parser

import (
	"regexp"
	"strings"
)

// noiseWords never describe a product. Matched as whole words so "OLIVA"
// survives the "iva" entry.
var noiseWords = []string{
	"total", "subtotal", "iva", "i.v.a", "i v a", "base imponible", "imponible",
	"pago", "tarjeta", "bancaria", "efectivo", "cambio", "entregado", "devolución",
	"importe", "descuento", "recargo", "redondeo", "cajero", "caja", "cuota",
}

var (
	reNoise       = buildNoisePattern(noiseWords)
	reHeader      = regexp.MustCompile(`(?i)descrip`)
	reBlockEnd    = regexp.MustCompile(`(?i)(^|[^\p{L}])total([^\p{L}]|$)`)
	reWeightShape = regexp.MustCompile(`(?i)^\d+[.,]\d+\s*kg.*€`)
)

func buildNoisePattern(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(^|[^\p{L}])(` + strings.Join(quoted, "|") + `)([^\p{L}]|$)`)
}

// isNoise reports whether s mentions a payment, tax or summary keyword
func isNoise(s string) bool {
	return reNoise.MatchString(s)
}

// sourceLine is a product-block line together with its position in the input
type sourceLine struct {
	index int
	text  string
}

// productBlock returns the lines between the column header and the first
// total line, minus noise. Without a header the block starts at the top.
func productBlock(lines []string) []sourceLine {
	start := 0
	for i, l := range lines {
		if reHeader.MatchString(l) {
			start = i + 1
			break
		}
	}

	var block []sourceLine
	for i := start; i < len(lines); i++ {
		l := lines[i]
		if reBlockEnd.MatchString(l) {
			break
		}
		if isNoise(l) {
			log.Debug().Int("line", i).Str("text", l).Msg("noise line dropped")
			continue
		}
		block = append(block, sourceLine{index: i, text: l})
	}
	return block
}

// joinWeightLines merges a line with the following one when the latter only
// carries the weight part of a weighed product ("0,350 kg 2,50 €/kg 0,88").
func joinWeightLines(block []sourceLine) []sourceLine {
	joined := make([]sourceLine, 0, len(block))
	for i := 0; i < len(block); i++ {
		cur := block[i]
		if i+1 < len(block) && reWeightShape.MatchString(block[i+1].text) && !reWeightShape.MatchString(cur.text) {
			cur.text = cur.text + " " + block[i+1].text
			i++
		}
		joined = append(joined, cur)
	}
	return joined
}
