package domain

import (
	"fmt"
	"strings"
)

// Nutrient is one entry of the canonical nutrient enumeration. Every product
// is normalized onto this set before optimization.
type Nutrient string

const (
	NutrientEnergy       Nutrient = "energy"        // kcal
	NutrientFat          Nutrient = "fat"           // grams
	NutrientSaturatedFat Nutrient = "saturated_fat" // grams
	NutrientCarbohydrate Nutrient = "carbohydrate"  // grams
	NutrientSugars       Nutrient = "sugars"        // grams
	NutrientFiber        Nutrient = "fiber"         // grams
	NutrientProtein      Nutrient = "protein"       // grams
	NutrientSalt         Nutrient = "salt"          // grams
)

// CanonicalNutrients lists the enumeration in a fixed order. Reports and
// constraint rows iterate in this order so output is deterministic.
var CanonicalNutrients = []Nutrient{
	NutrientEnergy,
	NutrientFat,
	NutrientSaturatedFat,
	NutrientCarbohydrate,
	NutrientSugars,
	NutrientFiber,
	NutrientProtein,
	NutrientSalt,
}

// Unit returns the canonical unit the nutrient is expressed in.
func (n Nutrient) Unit() string {
	if n == NutrientEnergy {
		return "kcal"
	}
	return "g"
}

// IsMass reports whether the nutrient is measured by mass.
func (n Nutrient) IsMass() bool {
	return n != NutrientEnergy
}

// Valid reports whether n belongs to the canonical enumeration.
func (n Nutrient) Valid() bool {
	for _, c := range CanonicalNutrients {
		if c == n {
			return true
		}
	}
	return false
}

// ParseNutrient resolves a configuration name to a canonical nutrient.
// Accepts the canonical name and a few spellings used in rule files.
func ParseNutrient(s string) (Nutrient, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "calories", "kcal", "energy_kcal":
		return NutrientEnergy, nil
	case "fibre":
		return NutrientFiber, nil
	case "carbohydrates", "carbs":
		return NutrientCarbohydrate, nil
	case "saturates", "saturated":
		return NutrientSaturatedFat, nil
	case "sugar":
		return NutrientSugars, nil
	case "proteins":
		return NutrientProtein, nil
	}
	n := Nutrient(key)
	if !n.Valid() {
		return "", fmt.Errorf("%w: unknown nutrient %q", ErrConfiguration, s)
	}
	return n, nil
}

// NutrientProfile maps canonical nutrients to amounts. A missing key means
// the amount is unknown, which is distinct from a stated zero.
type NutrientProfile map[Nutrient]float64

// Has reports whether the profile states a value for n.
func (p NutrientProfile) Has(n Nutrient) bool {
	_, ok := p[n]
	return ok
}

// Clone returns a copy of the profile.
func (p NutrientProfile) Clone() NutrientProfile {
	out := make(NutrientProfile, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
