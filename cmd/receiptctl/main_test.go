package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

const ticket = `Descripción P. Unit Importe
1 LECHE ENTERA 1,10
2 PAN DE MOLDE 1,25 2,50
TOTAL (€) 3,60`

func TestRun_Stdin(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	err := run([]string{
		"-config", filepath.Join(dir, "none.yaml"),
		"-local-only",
		"-declared", "4,00",
	}, strings.NewReader(ticket), &out)
	require.NoError(t, err)

	var receipt models.FinalizedReceipt
	require.NoError(t, json.Unmarshal(out.Bytes(), &receipt))
	assert.Len(t, receipt.Items, 2)
	assert.Equal(t, "4.00", receipt.Total.StringFixed(2))
	assert.Equal(t, models.TotalFromDeclared, receipt.Validation.TotalSource)
	assert.True(t, models.SumItems(receipt.Items, true).Equal(receipt.Total))
}

func TestRun_FileNameAndXLSX(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "factura_4,00.txt")
	require.NoError(t, os.WriteFile(input, []byte(ticket), 0o644))
	xlsx := filepath.Join(dir, "out.xlsx")
	var out bytes.Buffer

	err := run([]string{"-config", filepath.Join(dir, "none.yaml"), "-local-only", "-xlsx", xlsx, input}, nil, &out)
	require.NoError(t, err)

	var receipt models.FinalizedReceipt
	require.NoError(t, json.Unmarshal(out.Bytes(), &receipt))
	assert.Equal(t, "4.00", receipt.Total.StringFixed(2))
	assert.Equal(t, models.TotalFromFilename, receipt.Validation.TotalSource)
	assert.FileExists(t, xlsx)
}

func TestRun_InvalidDeclared(t *testing.T) {
	err := run([]string{"-config", filepath.Join(t.TempDir(), "none.yaml"), "-local-only", "-declared", "abc"}, strings.NewReader(ticket), &bytes.Buffer{})
	assert.Error(t, err)
}
