package ocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "crlf and tabs", input: "1 PAN\t0,85\r\n2 LECHE  1,10 2,20\r\n", want: "1 PAN 0,85\n2 LECHE 1,10 2,20"},
		{name: "non breaking space", input: "TOTAL (€) 12,30", want: "TOTAL (€) 12,30"},
		{name: "per kilo spelling", input: "0,350 KG 2,50 € / KG 0,88", want: "0,350 kg 2,50 €/kg 0,88"},
		{name: "glued kilo", input: "0,350kg2,50 €/kg0,88", want: "0,350 kg2,50 €/kg0,88"},
		{name: "blank lines", input: "a\n\n\n\nb", want: "a\n\nb"},
		{name: "trims lines", input: "   1 PAN 0,85   \n  ", want: "1 PAN 0,85"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeText(tc.input))
		})
	}
}

func TestLines(t *testing.T) {
	lines := Lines("MERCADONA\r\n\r\n\r\n1 PAN 0,85\n   \nTOTAL (€) 0,85")
	assert.Equal(t, []string{"MERCADONA", "1 PAN 0,85", "TOTAL (€) 0,85"}, lines)
	assert.Empty(t, Lines(""))
}
