package services

import (
	"regexp"
	"strings"

	"github.com/facturaIA/receipt-reconciler/internal/models"
)

// categoryRule pairs a keyword pattern with the label it assigns
type categoryRule struct {
	label   string
	pattern *regexp.Regexp
}

func rule(label, pattern string) categoryRule {
	return categoryRule{label: label, pattern: regexp.MustCompile(pattern)}
}

// categoryRules is consulted top to bottom and the first match wins.
//
// Ordering contract: a rule must come before any later rule whose keywords it
// shares a substring with and that would otherwise capture its products.
// "pasta dental" sits above the cereals rule ("pasta"), fish sits above
// condiments so "salmón" is not taken by "sal", and so on. Patterns run on the
// lower-cased name.
var categoryRules = []categoryRule{
	rule("Higiene", `pasta dental|papel higi[eé]nico|servilleta|pañuelo|bastoncillo|algod[oó]n`),
	rule("Frutas y Verduras", `manzana|banana|pl[aá]tano|pera|naranja|lim[oó]n|fruta|verdura|tomate|lechuga|zanahoria|patata|cebolla`),
	rule("Carnes", `pollo|ternera|cerdo|cordero|carne|chuleta|bistec|solomillo|costilla|lomo|filete|hamburguesa`),
	rule("Pescados y Mariscos", `pescado|merluza|salm[oó]n|at[uú]n|bacalao|sardina|anchoa|trucha|marisco|gamba|langostino|calamar|pulpo`),
	rule("Lácteos y Huevos", `leche|queso|yogur|mantequilla|nata|huevo`),
	rule("Panadería y Repostería", `pan|boll[eo]|galleta|bizcocho|pastel|tarta|croissant`),
	rule("Cereales y Legumbres", `arroz|pasta|macarr[oó]n|espagueti|fideo|cusc[uú]s|lenteja|garbanzo|jud[ií]a|alubia`),
	rule("Condimentos y Salsas", `az[uú]car|sal|aceite|vinagre|especia|salsa|mayonesa|ketchup|mostaza`),
	rule("Higiene", `suavizante|detergente|limpiador|lej[ií]a|lavavajillas|jab[oó]n|desinfectante|multiusos|limpieza`),
	rule("Higiene", `champ[uú]|\bgel\b|desodorante|crema|loci[oó]n|maquillaje|afeitar|cuchilla|cepillo|dental|higiene`),
	rule("Mascotas", `gato|perro|mascota|pienso|arena de gatos`),
	rule("Bebidas", `caf[eé]|(^|\s)t[eé](\s|$)|infusi[oó]n|cacao|chocolate|agua|zumo|refresco|cerveza|vino`),
	rule("Hogar", `mueble|silla|mesa|sof[aá]|cama|colch[oó]n|almohada|hogar|cocina|baño`),
	rule("Electrónica", `electrodom[eé]stico|microondas|nevera|frigor[ií]fico|lavadora|secadora|horno|tostadora|batidora|licuadora|plancha`),
	rule("Ropa", `camisa|pantal[oó]n|falda|vestido|ropa|zapato|zapatilla|bota|calcet[ií]n|abrigo|chaqueta|jersey|sudadera`),
	rule("Transporte", `transporte|gasolina|di[eé]sel|combustible|billete|bus|metro|tren|taxi|uber`),
	rule("Ocio", `cine|teatro|concierto|espect[aá]culo|ocio|entrada|evento`),
	rule("Salud", `medicamento|paracetamol|ibuprofeno|aspirina|farmacia|salud|vitamina|suplemento`),
	rule("Educación", `libro|cuaderno|bol[ií]grafo|l[aá]piz|goma|mochila|educaci[oó]n|estudio|clase|escuela|universidad`),
}

// ClassifyProduct maps a product name to a category label. It never fails:
// names that match no rule get models.DefaultCategory.
func ClassifyProduct(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return models.DefaultCategory
	}
	for _, r := range categoryRules {
		if r.pattern.MatchString(n) {
			return r.label
		}
	}
	return models.DefaultCategory
}

// CategoryLabels lists every label the classifier can produce, in rule order
// without repeats, followed by the default label and "Alimentación", which the
// remote model is allowed to use as a generic grocery bucket.
func CategoryLabels() []string {
	seen := make(map[string]bool)
	var labels []string
	for _, r := range categoryRules {
		if !seen[r.label] {
			seen[r.label] = true
			labels = append(labels, r.label)
		}
	}
	for _, extra := range []string{"Alimentación", models.DefaultCategory} {
		if !seen[extra] {
			seen[extra] = true
			labels = append(labels, extra)
		}
	}
	return labels
}

// NormalizeCategory accepts a label proposed by an external source when it is
// part of the taxonomy (case-insensitive) and otherwise classifies the name.
func NormalizeCategory(label, name string) string {
	l := strings.TrimSpace(label)
	if l != "" {
		for _, known := range CategoryLabels() {
			if strings.EqualFold(known, l) {
				return known
			}
		}
	}
	return ClassifyProduct(name)
}
