// Package ocr cleans the text handed over by the PDF/OCR collaborator before
// any parsing happens. Extraction itself lives outside this service.
package ocr

import (
	"regexp"
	"strings"
)

var (
	reCRLF       = regexp.MustCompile(`\r\n?`)
	reTabs       = regexp.MustCompile(`[\t\f\v]+`)
	reMultiSpace = regexp.MustCompile(` {2,}`)
	reMultiBlank = regexp.MustCompile(`\n{3,}`)
	rePerKilo    = regexp.MustCompile(`(?i)€\s*/\s*kg`)
	reKilo       = regexp.MustCompile(`(?i)(\d)\s*kg`)
)

// NormalizeText collapses noisy whitespace and unifies the spellings the
// parser depends on ("€ / KG" becomes "€/kg", "0,350KG" becomes "0,350 kg").
// Line breaks are kept; runs of blank lines collapse to one.
func NormalizeText(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToValidUTF8(s, "")
	s = reCRLF.ReplaceAllString(s, "\n")
	s = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\u200b", "").Replace(s)
	s = reTabs.ReplaceAllString(s, " ")
	s = reMultiSpace.ReplaceAllString(s, " ")
	s = rePerKilo.ReplaceAllString(s, "€/kg")
	s = reKilo.ReplaceAllString(s, "$1 kg")
	s = reMultiBlank.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Lines splits normalized text into non-empty lines
func Lines(s string) []string {
	raw := strings.Split(NormalizeText(s), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
