package catalog

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/macrolens/grocer/internal/domain"
)

// OFFProduct is the subset of an Open Food Facts style record the catalog
// API may serve, extended with a shelf price.
type OFFProduct struct {
	Code          string         `json:"code"`
	ProductName   string         `json:"product_name"`
	ProductNameEn string         `json:"product_name_en"`
	GenericName   string         `json:"generic_name"`
	Quantity      string         `json:"quantity"`
	ServingSize   string         `json:"serving_size"`
	Categories    string         `json:"categories"`
	Price         any            `json:"price"`
	Nutriments    map[string]any `json:"nutriments"`
}

// Name returns the best available product name
func (p *OFFProduct) Name() string {
	if p.ProductName != "" {
		return p.ProductName
	}
	if p.ProductNameEn != "" {
		return p.ProductNameEn
	}
	return p.GenericName
}

// nutrimentSuffix selects per-100 g figures from the nutriments map.
const nutrimentSuffix = "_100g"

// MapOFFProduct converts an OFF style record into a raw catalog record. Only
// per-100 g nutriments are kept; the label keeps the OFF key so the
// normalizer's vocabulary does the nutrient mapping.
func MapOFFProduct(p *OFFProduct) domain.RawProduct {
	raw := domain.RawProduct{
		ID:             p.Code,
		Name:           p.Name(),
		Price:          formatAny(p.Price),
		PackageSize:    p.Quantity,
		ServingSize:    p.ServingSize,
		NutritionBasis: "per 100 g",
		Category:       p.Categories,
		Nutrition:      make(map[string]string),
	}

	for key, value := range p.Nutriments {
		if !strings.HasSuffix(key, nutrimentSuffix) {
			continue
		}
		label := strings.TrimSuffix(key, nutrimentSuffix)
		v, ok := extractFloat(value)
		if !ok {
			continue
		}
		raw.Nutrition[label] = strconv.FormatFloat(v, 'f', -1, 64) + " " + nutrimentUnit(label)
	}
	return raw
}

// nutrimentUnit returns the unit OFF reports a per-100 g nutriment in.
func nutrimentUnit(label string) string {
	switch {
	case strings.Contains(label, "kcal"):
		return "kcal"
	case strings.Contains(label, "kj"), label == "energy":
		return "kJ"
	default:
		return "g"
	}
}

// extractFloat coerces a nutriments value to float64.
func extractFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, false
		}
		return x, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func formatAny(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
