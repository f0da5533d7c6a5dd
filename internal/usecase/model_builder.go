package usecase

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/macrolens/grocer/internal/domain"
)

// Model is a linear program together with everything needed to read its
// solution back: the products behind each variable and the rules behind each
// row.
type Model struct {
	Program   *domain.LinearProgram
	Products  []domain.CanonicalProduct
	Spec      domain.ConstraintSpec
	Reference domain.ReferenceUnit
	Excluded  []domain.ExcludedProduct
}

// ModelBuilderConfig holds configuration for the model builder
type ModelBuilderConfig struct {
	EnableDebugLogging bool
}

// ModelBuilder translates a constraint spec over a canonical catalog into a
// linear program
type ModelBuilder struct {
	enableDebugLogging bool
}

// NewModelBuilder creates a model builder
func NewModelBuilder(config ModelBuilderConfig) *ModelBuilder {
	return &ModelBuilder{enableDebugLogging: config.EnableDebugLogging}
}

// Build produces one non-negative variable per product, the objective and one
// row per rule (one row per product for caps). Rules that cannot be met by
// construction are reported as a ConfigurationError before any solve.
func (b *ModelBuilder) Build(catalog *domain.Catalog, spec *domain.ConstraintSpec) (*Model, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: constraint spec is required", domain.ErrInvalidRequest)
	}
	if catalog == nil || len(catalog.Products) == 0 {
		return nil, domain.ErrEmptyCatalog
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := checkAgainstCatalog(catalog, spec); err != nil {
		return nil, err
	}

	products := catalog.Products
	n := len(products)
	program := &domain.LinearProgram{
		Variables: make([]string, n),
		Objective: make([]float64, n),
		Fixed:     make([]bool, n),
	}

	objective := spec.Objective
	for j := range products {
		p := &products[j]
		program.Variables[j] = p.ID
		switch objective.EffectiveSense() {
		case domain.MaximizeNutrient:
			v, _ := p.Amount(objective.Nutrient)
			program.Objective[j] = -v
		default:
			program.Objective[j] = p.PricePerUnit
		}
	}

	// A product that does not state a nutrient bounded from above could hide
	// any amount of it, so it is kept out of the basket.
	var excluded []domain.ExcludedProduct
	for _, r := range spec.Rules {
		if r.Kind != domain.RuleNutrient || r.Direction != domain.DirectionMax {
			continue
		}
		for j := range products {
			if program.Fixed[j] || products[j].Nutrients.Has(r.Nutrient) {
				continue
			}
			program.Fixed[j] = true
			excluded = append(excluded, domain.ExcludedProduct{ProductID: products[j].ID, Missing: r.Nutrient, Rule: r.Label()})
		}
	}

	for i, r := range spec.Rules {
		program.Constraints = append(program.Constraints, buildRows(i, r, products, referenceOf(catalog))...)
	}

	if b.enableDebugLogging {
		log.Printf("[MODEL] %d variables (%d excluded), %d rows from %d rules, objective=%s",
			n, len(excluded), len(program.Constraints), len(spec.Rules), objective.EffectiveSense())
	}

	return &Model{
		Program:   program,
		Products:  products,
		Spec:      *spec,
		Reference: referenceOf(catalog),
		Excluded:  excluded,
	}, nil
}

// buildRows converts one rule into its linear rows.
func buildRows(index int, r domain.Rule, products []domain.CanonicalProduct, ref domain.ReferenceUnit) []domain.LinearConstraint {
	op := domain.OpGreaterEqual
	if r.Direction == domain.DirectionMax {
		op = domain.OpLessEqual
	}
	n := len(products)

	switch r.Kind {
	case domain.RuleNutrient:
		coeffs := make([]float64, n)
		for j := range products {
			v, _ := products[j].Amount(r.Nutrient)
			coeffs[j] = v
		}
		return []domain.LinearConstraint{{Name: r.Label(), Coeffs: coeffs, Op: op, RHS: r.Threshold, RuleIndex: index}}

	case domain.RuleCategory:
		in := categorySet(r.Categories)
		coeffs := make([]float64, n)
		for j := range products {
			if in[products[j].Category] {
				coeffs[j] = 1
			}
		}
		return []domain.LinearConstraint{{Name: r.Label(), Coeffs: coeffs, Op: op, RHS: r.ThresholdInUnits(ref), RuleIndex: index}}

	case domain.RuleProductCap:
		in := categorySet(r.Categories)
		var rows []domain.LinearConstraint
		for j := range products {
			if r.Product != "" && products[j].ID != r.Product {
				continue
			}
			if len(in) > 0 && !in[products[j].Category] {
				continue
			}
			coeffs := make([]float64, n)
			coeffs[j] = 1
			rows = append(rows, domain.LinearConstraint{
				Name:      fmt.Sprintf("%s[%s]", r.Label(), products[j].ID),
				Coeffs:    coeffs,
				Op:        op,
				RHS:       r.ThresholdInUnits(ref),
				RuleIndex: index,
			})
		}
		return rows

	case domain.RuleBudget:
		coeffs := make([]float64, n)
		for j := range products {
			coeffs[j] = products[j].PricePerUnit
		}
		return []domain.LinearConstraint{{Name: r.Label(), Coeffs: coeffs, Op: op, RHS: r.Threshold, RuleIndex: index}}
	}
	return nil
}

// checkAgainstCatalog finds rules that are infeasible or meaningless by
// construction for this catalog: minimums on nutrients or categories no
// product carries, caps on products the catalog lacks, and quantity bounds
// that contradict each other once the reference unit is known.
func checkAgainstCatalog(catalog *domain.Catalog, spec *domain.ConstraintSpec) error {
	var problems []string
	categories := catalog.Categories()

	if spec.Objective.EffectiveSense() == domain.MaximizeNutrient && !catalog.HasNutrient(spec.Objective.Nutrient) {
		problems = append(problems, fmt.Sprintf("objective: no product states %s", spec.Objective.Nutrient))
	}

	ids := make(map[string]bool, len(catalog.Products))
	for i := range catalog.Products {
		ids[catalog.Products[i].ID] = true
	}

	for i, r := range spec.Rules {
		if r.Kind == domain.RuleProductCap && r.Product != "" && !ids[r.Product] {
			problems = append(problems, fmt.Sprintf("rule %d (%s): product %q is not in the catalog", i, r.Label(), r.Product))
		}
		if r.Direction != domain.DirectionMin || r.Threshold <= 0 {
			continue
		}
		switch r.Kind {
		case domain.RuleNutrient:
			if !catalog.HasNutrient(r.Nutrient) {
				problems = append(problems, fmt.Sprintf("rule %d (%s): no product states %s", i, r.Label(), r.Nutrient))
			}
		case domain.RuleCategory:
			found := false
			for _, c := range r.Categories {
				if categories[c] > 0 {
					found = true
					break
				}
			}
			if !found {
				problems = append(problems, fmt.Sprintf("rule %d (%s): no product tagged %v", i, r.Label(), r.Categories))
			}
		}
	}

	problems = append(problems, quantityContradictions(spec, referenceOf(catalog))...)

	if len(problems) > 0 {
		return &domain.ConfigurationError{Problems: problems}
	}
	return nil
}

// quantityContradictions compares minimum and maximum quantity bounds on the
// same categories or product after converting every threshold to reference
// units, so "min 5 kg" and "max 2 units" meet on one scale.
func quantityContradictions(spec *domain.ConstraintSpec, ref domain.ReferenceUnit) []string {
	type bounds struct {
		min, max       float64
		hasMin, hasMax bool
		minRule        string
		maxRule        string
	}
	seen := make(map[string]*bounds)
	var order []string

	for _, r := range spec.Rules {
		if r.Kind != domain.RuleCategory && r.Kind != domain.RuleProductCap {
			continue
		}
		cats := append([]string(nil), r.Categories...)
		sort.Strings(cats)
		key := string(r.Kind) + ":" + r.Product + ":" + strings.Join(cats, ",")
		b, ok := seen[key]
		if !ok {
			b = &bounds{}
			seen[key] = b
			order = append(order, key)
		}
		t := r.ThresholdInUnits(ref)
		if r.Direction == domain.DirectionMin {
			if !b.hasMin || t > b.min {
				b.min, b.minRule = t, r.Label()
			}
			b.hasMin = true
		} else {
			if !b.hasMax || t < b.max {
				b.max, b.maxRule = t, r.Label()
			}
			b.hasMax = true
		}
	}

	var problems []string
	for _, key := range order {
		b := seen[key]
		if b.hasMin && b.hasMax && b.min > b.max+1e-9 {
			problems = append(problems, fmt.Sprintf("%s requires at least %g reference units but %s allows at most %g",
				b.minRule, b.min, b.maxRule, b.max))
		}
	}
	return problems
}

func referenceOf(catalog *domain.Catalog) domain.ReferenceUnit {
	if catalog.ReferenceUnit.Grams <= 0 {
		return domain.DefaultReferenceUnit
	}
	return catalog.ReferenceUnit
}

func categorySet(categories []string) map[string]bool {
	set := make(map[string]bool, len(categories))
	for _, c := range categories {
		set[c] = true
	}
	return set
}
