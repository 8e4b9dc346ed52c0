package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

func TestClassifyProduct(t *testing.T) {
	testCases := []struct {
		name    string
		product string
		want    string
	}{
		{name: "fruit", product: "MANZANAS GOLDEN", want: "Frutas y Verduras"},
		{name: "accented fruit", product: "Plátano de Canarias", want: "Frutas y Verduras"},
		{name: "meat", product: "FILETE POLLO", want: "Carnes"},
		{name: "fish before salt", product: "SALMÓN AHUMADO", want: "Pescados y Mariscos"},
		{name: "dairy", product: "LECHE ENTERA", want: "Lácteos y Huevos"},
		{name: "bakery", product: "PAN DE MOLDE", want: "Panadería y Repostería"},
		{name: "toothpaste before pasta", product: "PASTA DENTAL BLANQUEANTE", want: "Higiene"},
		{name: "pasta", product: "PASTA FUSILLI", want: "Cereales y Legumbres"},
		{name: "oil", product: "ACEITE GIRASOL", want: "Condimentos y Salsas"},
		{name: "cleaning", product: "DETERGENTE ROPA", want: "Higiene"},
		{name: "shower gel", product: "GEL DUCHA", want: "Higiene"},
		{name: "frozen is not gel", product: "GUISANTES CONGELADOS", want: models.DefaultCategory},
		{name: "pets", product: "PIENSO PERRO", want: "Mascotas"},
		{name: "coffee", product: "CAFÉ MOLIDO", want: "Bebidas"},
		{name: "tea as a word", product: "TÉ VERDE", want: "Bebidas"},
		{name: "health", product: "IBUPROFENO 600", want: "Salud"},
		{name: "unknown", product: "XYZ 3000", want: models.DefaultCategory},
		{name: "empty", product: "   ", want: models.DefaultCategory},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyProduct(tc.product))
		})
	}
}

func TestClassifyProduct_Idempotent(t *testing.T) {
	for _, name := range []string{"MANZANAS", "queso curado", "", "??", "Gel de baño"} {
		first := ClassifyProduct(name)
		for i := 0; i < 3; i++ {
			assert.Equal(t, first, ClassifyProduct(name))
		}
	}
}

func TestCategoryLabels(t *testing.T) {
	labels := CategoryLabels()

	assert.Equal(t, "Higiene", labels[0])
	assert.Contains(t, labels, "Alimentación")
	assert.Equal(t, models.DefaultCategory, labels[len(labels)-1])

	seen := map[string]bool{}
	for _, l := range labels {
		assert.False(t, seen[l], "duplicate label %s", l)
		seen[l] = true
	}
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, "Higiene", NormalizeCategory("higiene", "CHAMPÚ"))
	assert.Equal(t, "Alimentación", NormalizeCategory("Alimentación", "PATATAS FRITAS"))
	assert.Equal(t, "Carnes", NormalizeCategory("Carniceria", "LOMO CERDO"))
	assert.Equal(t, "Lácteos y Huevos", NormalizeCategory("", "YOGUR NATURAL"))
}
