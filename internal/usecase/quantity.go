package usecase

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// kJ per kcal
const kilojoulesPerKcal = 4.184

// salt = sodium × 2.5
const saltPerSodium = 2.5

var (
	errNoNumber = errors.New("no numeric value")
	errBadUnit  = errors.New("unit not convertible")
)

// Package-level compiled regex patterns for quantity parsing
var (
	// quantityRegex matches an optional "<" bound, a number with either
	// decimal separator and thousands groups, and the word following it.
	// The word is kept whatever it is so unknown units can be rejected.
	quantityRegex = regexp.MustCompile(
		`(?i)(<|≤|less than|meno di|weniger als)?\s*(\d+(?:[.,]\d+)*)\s*(fl\.?\s*oz|[a-zµμ]+\.?)?(?:[^a-zµμ]|$)`,
	)

	// multipackRegex matches "6 x 125 g", "2×500ml", "4 pz x 100 g"
	multipackRegex = regexp.MustCompile(`(?i)^\s*(\d+)\s*(?:pz|pcs|pieces|st)?\s*[x×*]\s*(.+)$`)

	traceWords = []string{"trace", "tracce", "traces", "spuren", "trazas", "tr"}
)

// unitAliases maps spelled-out and abbreviated unit words, folded to
// lowercase without dots, onto canonical unit keys.
var unitAliases = map[string]string{
	"gr": "g", "grs": "g", "gram": "g", "grams": "g", "gramm": "g", "grammo": "g", "grammi": "g", "gramos": "g",
	"kgs": "kg", "kilo": "kg", "kili": "kg", "chilo": "kg", "chili": "kg", "kilogram": "kg", "kilograms": "kg",
	"kilogramm": "kg", "chilogrammo": "kg", "chilogrammi": "kg",
	"milligram": "mg", "milligrams": "mg", "milligrammi": "mg",
	"µg": "ug", "μg": "ug", "mcg": "ug", "microgrammi": "ug",
	"lt": "l", "ltr": "l", "litro": "l", "litri": "l", "liter": "l", "liters": "l", "litre": "l", "litres": "l",
	"mls": "ml", "millilitri": "ml", "milliliter": "ml", "milliliters": "ml", "millilitre": "ml", "millilitres": "ml",
	"centilitri": "cl", "decilitri": "dl",
	"ounce": "oz", "ounces": "oz",
	"lbs": "lb", "pound": "lb", "pounds": "lb",
	"floz": "fl oz",
	"cal": "kcal", "kcals": "kcal", "calorie": "kcal", "calories": "kcal", "kilocalorie": "kcal", "kilocalories": "kcal",
	"kilojoule": "kj", "kilojoules": "kj",
}

// gramsPerUnit converts a mass or volume unit to grams. Volumes assume a
// density of 1 g/ml.
var gramsPerUnit = map[string]float64{
	"g":     1,
	"mg":    0.001,
	"ug":    1e-6,
	"kg":    1000,
	"ml":    1,
	"cl":    10,
	"dl":    100,
	"l":     1000,
	"oz":    28.349523125,
	"fl oz": 29.5735295625,
	"lb":    453.59237,
}

// Quantity is a parsed number with its normalized unit ("" when absent).
type Quantity struct {
	Value float64
	Unit  string
	Bound bool // stated as "<x"
}

// ParseDecimal converts a number written with either decimal separator.
// When both separators appear the last one is the decimal mark; a lone comma
// is a decimal mark; repeated separators of one kind are thousands groups.
// A lone dot is always a decimal mark, also before exactly three digits:
// "1.500" is 1.5, never 1500. Package sizes such as "1.500 kg" depend on it,
// so catalogs writing "1.000 g" for a kilogram must use "1000 g" or "1 kg".
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, errNoNumber
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", s, errNoNumber)
	}
	return v, nil
}

// normalizeUnit maps unit spellings onto the keys of gramsPerUnit plus
// "kcal" and "kj". Unknown words are returned folded.
func normalizeUnit(u string) string {
	u = strings.ToLower(strings.TrimSpace(u))
	u = strings.ReplaceAll(u, ".", "")
	u = strings.Join(strings.Fields(u), " ")
	if alias, ok := unitAliases[u]; ok {
		return alias
	}
	return u
}

// isMassUnit reports whether u converts to grams.
func isMassUnit(u string) bool {
	_, ok := gramsPerUnit[u]
	return ok
}

// ParseQuantities extracts every number/unit pair from free text.
func ParseQuantities(s string) []Quantity {
	var out []Quantity
	for _, m := range quantityRegex.FindAllStringSubmatch(s+" ", -1) {
		v, err := ParseDecimal(m[2])
		if err != nil {
			continue
		}
		out = append(out, Quantity{
			Value: v,
			Unit:  normalizeUnit(m[3]),
			Bound: m[1] != "",
		})
	}
	return out
}

// ParseMass converts a package or serving size to grams. Multipacks
// ("6 x 125 g") multiply out. The first quantity with a mass or volume
// unit wins; a bare number is taken as grams only when no quantity in the
// text carries a unit. Piece counts ("6 pz", "12 uova") are errBadUnit.
func ParseMass(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errNoNumber
	}

	count := 1.0
	if m := multipackRegex.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			count = float64(n)
			s = m[2]
		}
	}

	qs := ParseQuantities(s)
	if len(qs) == 0 {
		return 0, fmt.Errorf("mass %q: %w", s, errNoNumber)
	}
	var unknown string
	for _, q := range qs {
		if isMassUnit(q.Unit) {
			return count * q.Value * gramsPerUnit[q.Unit], nil
		}
		if q.Unit != "" && unknown == "" {
			unknown = q.Unit
		}
	}
	if unknown != "" {
		return 0, fmt.Errorf("mass %q unit %q: %w", s, unknown, errBadUnit)
	}
	return count * qs[0].Value, nil
}

// ParsePrice extracts a price, ignoring currency symbols and codes.
func ParsePrice(s string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			return r
		}
		return ' '
	}, s)
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return 0, fmt.Errorf("price %q: %w", s, errNoNumber)
	}
	return ParseDecimal(fields[0])
}

// isTrace reports whether the label value states a trace amount.
func isTrace(s string) bool {
	f := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	if len(f) == 0 {
		return false
	}
	for _, w := range traceWords {
		if f[0] == w {
			return true
		}
	}
	return false
}

// ParseEnergy returns kcal from a label value such as "1046 kJ / 250 kcal".
// The kcal figure wins; a kJ-only value is converted; a bare number is kcal.
func ParseEnergy(s string) (float64, error) {
	if isTrace(s) {
		return 0, nil
	}
	qs := ParseQuantities(s)
	if len(qs) == 0 {
		return 0, fmt.Errorf("energy %q: %w", s, errNoNumber)
	}
	for _, q := range qs {
		if q.Unit == "kcal" {
			return q.Value, nil
		}
	}
	for _, q := range qs {
		if q.Unit == "kj" {
			return q.Value / kilojoulesPerKcal, nil
		}
	}
	for _, q := range qs {
		if q.Unit == "" {
			return q.Value, nil
		}
	}
	return 0, fmt.Errorf("energy %q: %w", s, errBadUnit)
}

// ParseNutrientMass returns grams from a label value such as "12,5 g",
// "350 mg" or "<0,5 g". Bounds are taken at their stated value.
func ParseNutrientMass(s string) (float64, error) {
	if isTrace(s) {
		return 0, nil
	}
	qs := ParseQuantities(s)
	if len(qs) == 0 {
		return 0, fmt.Errorf("amount %q: %w", s, errNoNumber)
	}
	q := qs[0]
	if q.Unit == "" {
		return q.Value, nil
	}
	g, ok := gramsPerUnit[q.Unit]
	if !ok {
		return 0, fmt.Errorf("amount %q unit %q: %w", s, q.Unit, errBadUnit)
	}
	return q.Value * g, nil
}
