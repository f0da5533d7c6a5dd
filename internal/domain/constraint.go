package domain

import (
	"fmt"
	"sort"
	"strings"
)

// RuleKind selects what a rule bounds.
type RuleKind string

const (
	RuleNutrient   RuleKind = "nutrient"    // aggregate nutrient amount
	RuleCategory   RuleKind = "category"    // aggregate quantity of tagged products
	RuleProductCap RuleKind = "product_cap" // quantity of each single product
	RuleBudget     RuleKind = "budget"      // total basket cost
)

// Direction is the side of a bound.
type Direction string

const (
	DirectionMin Direction = "min"
	DirectionMax Direction = "max"
)

// Category and product-cap thresholds are given in one of these units.
const (
	ThresholdGrams     = "g"
	ThresholdKilograms = "kg"
	ThresholdUnits     = "units" // reference-unit multiples
)

// Rule is one declarative constraint.
type Rule struct {
	Name       string    `json:"name,omitempty" yaml:"name" toml:"name"`
	Kind       RuleKind  `json:"kind" yaml:"kind" toml:"kind"`
	Nutrient   Nutrient  `json:"nutrient,omitempty" yaml:"nutrient" toml:"nutrient"`
	Categories []string  `json:"categories,omitempty" yaml:"categories" toml:"categories"`
	Product    string    `json:"product,omitempty" yaml:"product" toml:"product"`
	Direction  Direction `json:"direction" yaml:"direction" toml:"direction"`
	Threshold  float64   `json:"threshold" yaml:"threshold" toml:"threshold"`
	Unit       string    `json:"unit,omitempty" yaml:"unit" toml:"unit"`
}

// Label returns the rule name, or a generated one.
func (r Rule) Label() string {
	if r.Name != "" {
		return r.Name
	}
	switch r.Kind {
	case RuleNutrient:
		return fmt.Sprintf("%s_%s", r.Direction, r.Nutrient)
	case RuleCategory:
		return fmt.Sprintf("%s_%s", r.Direction, strings.Join(r.Categories, "+"))
	case RuleProductCap:
		if r.Product != "" {
			return fmt.Sprintf("%s_%s", r.Direction, r.Product)
		}
		if len(r.Categories) == 0 {
			return fmt.Sprintf("%s_each_product", r.Direction)
		}
		return fmt.Sprintf("%s_each_%s", r.Direction, strings.Join(r.Categories, "+"))
	case RuleBudget:
		return fmt.Sprintf("%s_cost", r.Direction)
	}
	return string(r.Kind)
}

// ThresholdInUnits converts a mass-based threshold to reference-unit
// multiples. Nutrient and budget thresholds are returned unchanged.
func (r Rule) ThresholdInUnits(ref ReferenceUnit) float64 {
	if r.Kind != RuleCategory && r.Kind != RuleProductCap {
		return r.Threshold
	}
	switch strings.ToLower(r.Unit) {
	case ThresholdGrams:
		return r.Threshold / ref.Grams
	case ThresholdKilograms:
		return r.Threshold * 1000 / ref.Grams
	default:
		return r.Threshold
	}
}

// ObjectiveSense selects the optimization direction.
type ObjectiveSense string

const (
	MinimizeCost     ObjectiveSense = "minimize_cost"
	MaximizeNutrient ObjectiveSense = "maximize_nutrient"
)

// Objective describes what the optimizer optimizes. The zero value means
// minimize total cost.
type Objective struct {
	Sense    ObjectiveSense `json:"sense,omitempty" yaml:"sense" toml:"sense"`
	Nutrient Nutrient       `json:"nutrient,omitempty" yaml:"nutrient" toml:"nutrient"`
}

// EffectiveSense returns the sense with the default applied.
func (o Objective) EffectiveSense() ObjectiveSense {
	if o.Sense == "" {
		return MinimizeCost
	}
	return o.Sense
}

// ConstraintSpec is the ordered rule set of one run.
type ConstraintSpec struct {
	Name      string    `json:"name,omitempty" yaml:"name" toml:"name"`
	Objective Objective `json:"objective" yaml:"objective" toml:"objective"`
	Rules     []Rule    `json:"rules" yaml:"rules" toml:"rules"`
}

// Canonicalize rewrites nutrient aliases ("calories", "fibre") in rules and
// objective to canonical names. Unknown names are left for Validate to
// report.
func (s *ConstraintSpec) Canonicalize() {
	for i := range s.Rules {
		r := &s.Rules[i]
		if r.Kind == RuleNutrient && r.Nutrient != "" && !r.Nutrient.Valid() {
			if n, err := ParseNutrient(string(r.Nutrient)); err == nil {
				r.Nutrient = n
			}
		}
	}
	if o := &s.Objective; o.Nutrient != "" && !o.Nutrient.Valid() {
		if n, err := ParseNutrient(string(o.Nutrient)); err == nil {
			o.Nutrient = n
		}
	}
}

// Clone returns a deep copy of the spec.
func (s *ConstraintSpec) Clone() *ConstraintSpec {
	out := *s
	out.Rules = make([]Rule, len(s.Rules))
	for i, r := range s.Rules {
		r.Categories = append([]string(nil), r.Categories...)
		out.Rules[i] = r
	}
	return &out
}

// Validate checks the rule set on its own: rule shape, thresholds and pairwise
// contradictions (min above max on the same target). Catalog-dependent checks
// happen in the model builder.
func (s *ConstraintSpec) Validate() error {
	var problems []string

	switch s.Objective.EffectiveSense() {
	case MinimizeCost:
	case MaximizeNutrient:
		if !s.Objective.Nutrient.Valid() {
			problems = append(problems, fmt.Sprintf("objective: unknown nutrient %q", s.Objective.Nutrient))
		}
	default:
		problems = append(problems, fmt.Sprintf("objective: unknown sense %q", s.Objective.Sense))
	}

	if len(s.Rules) == 0 && s.Objective.EffectiveSense() == MinimizeCost {
		problems = append(problems, "no rules: an empty basket is trivially optimal")
	}

	type bounds struct {
		min, max       float64
		hasMin, hasMax bool
	}
	seen := make(map[string]*bounds)
	var order []string

	for i, r := range s.Rules {
		prefix := fmt.Sprintf("rule %d (%s)", i, r.Label())
		if r.Direction != DirectionMin && r.Direction != DirectionMax {
			problems = append(problems, fmt.Sprintf("%s: direction must be min or max, got %q", prefix, r.Direction))
			continue
		}
		if r.Threshold < 0 {
			problems = append(problems, fmt.Sprintf("%s: negative threshold %g", prefix, r.Threshold))
			continue
		}
		switch r.Kind {
		case RuleNutrient:
			if !r.Nutrient.Valid() {
				problems = append(problems, fmt.Sprintf("%s: unknown nutrient %q", prefix, r.Nutrient))
				continue
			}
		case RuleCategory:
			if len(r.Categories) == 0 {
				problems = append(problems, fmt.Sprintf("%s: category rule without categories", prefix))
				continue
			}
		case RuleProductCap:
			if r.Direction != DirectionMax {
				problems = append(problems, fmt.Sprintf("%s: product caps must be max bounds", prefix))
				continue
			}
		case RuleBudget:
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown kind %q", prefix, r.Kind))
			continue
		}
		if r.Kind == RuleCategory || r.Kind == RuleProductCap {
			switch strings.ToLower(r.Unit) {
			case "", ThresholdGrams, ThresholdKilograms, ThresholdUnits:
			default:
				problems = append(problems, fmt.Sprintf("%s: unknown unit %q", prefix, r.Unit))
				continue
			}
		}

		key := r.targetKey()
		b, ok := seen[key]
		if !ok {
			b = &bounds{}
			seen[key] = b
			order = append(order, key)
		}
		// Normalize mass units so "200 g" and "0.2 kg" compare.
		t := r.ThresholdInUnits(ReferenceUnit{Grams: 1})
		if r.Direction == DirectionMin {
			if !b.hasMin || t > b.min {
				b.min = t
			}
			b.hasMin = true
		} else {
			if !b.hasMax || t < b.max {
				b.max = t
			}
			b.hasMax = true
		}
	}

	for _, key := range order {
		b := seen[key]
		if b.hasMin && b.hasMax && b.min > b.max {
			problems = append(problems, fmt.Sprintf("%s: minimum %g exceeds maximum %g", key, b.min, b.max))
		}
	}

	if len(problems) > 0 {
		return &ConfigurationError{Problems: problems}
	}
	return nil
}

// targetKey identifies what a rule bounds, so min and max rules on the same
// target can be compared.
func (r Rule) targetKey() string {
	switch r.Kind {
	case RuleNutrient:
		return "nutrient:" + string(r.Nutrient)
	case RuleCategory, RuleProductCap:
		cats := append([]string(nil), r.Categories...)
		sort.Strings(cats)
		basis := "mass"
		if strings.EqualFold(r.Unit, ThresholdUnits) || r.Unit == "" {
			basis = "units"
		}
		return string(r.Kind) + ":" + r.Product + ":" + strings.Join(cats, ",") + ":" + basis
	}
	return string(r.Kind)
}
