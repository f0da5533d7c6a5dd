package usecase

import (
	"fmt"
	"log"
	"math"

	"github.com/macrolens/grocer/internal/domain"
)

// DefaultValidationTolerance is the relative tolerance bounds are checked with.
const DefaultValidationTolerance = 1e-6

// ValidatorConfig holds configuration for the result validator
type ValidatorConfig struct {
	Tolerance          float64
	EnableDebugLogging bool
}

// Validator re-checks a basket against the canonical products and rules
// without trusting anything the solver computed.
type Validator struct {
	tolerance          float64
	enableDebugLogging bool
}

// NewValidator creates a validator
func NewValidator(config ValidatorConfig) *Validator {
	if config.Tolerance <= 0 {
		config.Tolerance = DefaultValidationTolerance
	}
	return &Validator{tolerance: config.Tolerance, enableDebugLogging: config.EnableDebugLogging}
}

// Validate recomputes cost and every rule aggregate from the basket items and
// returns a ConsistencyError listing every violation.
func (v *Validator) Validate(model *Model, basket *domain.Basket) error {
	if basket == nil {
		return &domain.ConsistencyError{Violations: []domain.Violation{{Rule: "basket", Expected: "present"}}}
	}

	byID := make(map[string]*domain.CanonicalProduct, len(model.Products))
	fixed := make(map[string]bool)
	for j := range model.Products {
		byID[model.Products[j].ID] = &model.Products[j]
		if model.Program != nil && model.Program.IsFixed(j) {
			fixed[model.Products[j].ID] = true
		}
	}

	var violations []domain.Violation
	quantities := make(map[string]float64, len(basket.Items))
	var order []string
	var cost float64

	for _, it := range basket.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			violations = append(violations, domain.Violation{Rule: "unknown product " + it.ProductID, Actual: it.Quantity, Expected: "=", Bound: 0})
			continue
		}
		if it.Quantity < 0 {
			violations = append(violations, domain.Violation{Rule: "quantity " + it.ProductID, Actual: it.Quantity, Expected: ">=", Bound: 0})
		}
		if fixed[it.ProductID] && !v.within(it.Quantity, 0) {
			violations = append(violations, domain.Violation{Rule: "excluded " + it.ProductID, Actual: it.Quantity, Expected: "=", Bound: 0})
		}
		if _, seen := quantities[it.ProductID]; !seen {
			order = append(order, it.ProductID)
		}
		quantities[it.ProductID] += it.Quantity
		cost += it.Quantity * p.PricePerUnit
	}

	if !v.within(basket.TotalCost, cost) {
		violations = append(violations, domain.Violation{Rule: "total_cost", Actual: basket.TotalCost, Expected: "=", Bound: cost})
	}

	for _, r := range model.Spec.Rules {
		bound := r.ThresholdInUnits(model.Reference)
		if r.Kind == domain.RuleProductCap {
			in := categorySet(r.Categories)
			for _, id := range order {
				q, p := quantities[id], byID[id]
				if r.Product != "" && id != r.Product {
					continue
				}
				if len(in) > 0 && !in[p.Category] {
					continue
				}
				if viol, bad := v.check(fmt.Sprintf("%s[%s]", r.Label(), id), q, r.Direction, bound); bad {
					violations = append(violations, viol)
				}
			}
			continue
		}

		var actual float64
		switch r.Kind {
		case domain.RuleNutrient:
			for _, id := range order {
				amount, _ := byID[id].Amount(r.Nutrient)
				actual += amount * quantities[id]
			}
		case domain.RuleCategory:
			in := categorySet(r.Categories)
			for _, id := range order {
				if in[byID[id].Category] {
					actual += quantities[id]
				}
			}
		case domain.RuleBudget:
			actual = cost
		}
		if viol, bad := v.check(r.Label(), actual, r.Direction, bound); bad {
			violations = append(violations, viol)
		}
	}

	if len(violations) > 0 {
		log.Printf("[VALIDATE] basket rejected with %d violation(s)", len(violations))
		return &domain.ConsistencyError{Violations: violations}
	}
	if v.enableDebugLogging {
		log.Printf("[VALIDATE] basket accepted: %d items, cost=%.4f", len(basket.Items), cost)
	}
	return nil
}

func (v *Validator) check(rule string, actual float64, dir domain.Direction, bound float64) (domain.Violation, bool) {
	slack := v.slack(bound)
	switch dir {
	case domain.DirectionMin:
		if actual < bound-slack {
			return domain.Violation{Rule: rule, Actual: actual, Expected: ">=", Bound: bound}, true
		}
	case domain.DirectionMax:
		if actual > bound+slack {
			return domain.Violation{Rule: rule, Actual: actual, Expected: "<=", Bound: bound}, true
		}
	}
	return domain.Violation{}, false
}

func (v *Validator) within(got, want float64) bool {
	return math.Abs(got-want) <= v.slack(want)
}

// slack is the tolerance scaled by the magnitude of x, floored at 1.
func (v *Validator) slack(x float64) float64 {
	return v.tolerance * math.Max(1, math.Abs(x))
}
