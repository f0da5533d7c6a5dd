package usecase

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/grocer/internal/domain"
)

// testCatalog holds two products per 100 g: A (cost 1, 100 kcal, 10 g
// protein) and B (cost 2, 50 kcal, 20 g protein), plus a vegetable C that
// does not state its salt.
func testCatalog() *domain.Catalog {
	return &domain.Catalog{
		ReferenceUnit: domain.DefaultReferenceUnit,
		Products: []domain.CanonicalProduct{
			{ID: "A", Name: "Product A", PricePerUnit: 1, Category: "grain",
				Nutrients: domain.NutrientProfile{domain.NutrientEnergy: 100, domain.NutrientProtein: 10, domain.NutrientSalt: 0.1}},
			{ID: "B", Name: "Product B", PricePerUnit: 2, Category: "protein",
				Nutrients: domain.NutrientProfile{domain.NutrientEnergy: 50, domain.NutrientProtein: 20, domain.NutrientSalt: 0.5}},
			{ID: "C", Name: "Spinach", PricePerUnit: 0.8, Category: domain.CategoryVegetable,
				Nutrients: domain.NutrientProfile{domain.NutrientEnergy: 23, domain.NutrientProtein: 3}},
		},
	}
}

func nutrientRule(n domain.Nutrient, dir domain.Direction, threshold float64) domain.Rule {
	return domain.Rule{Kind: domain.RuleNutrient, Nutrient: n, Direction: dir, Threshold: threshold}
}

func TestModelBuilder_Rows(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 2000),
		{Kind: domain.RuleCategory, Categories: []string{domain.CategoryVegetable}, Direction: domain.DirectionMin, Threshold: 400, Unit: "g"},
		{Kind: domain.RuleProductCap, Categories: []string{"grain", "protein"}, Direction: domain.DirectionMax, Threshold: 0.5, Unit: "kg"},
		{Kind: domain.RuleProductCap, Product: "C", Direction: domain.DirectionMax, Threshold: 10},
		{Kind: domain.RuleBudget, Direction: domain.DirectionMax, Threshold: 50},
	}}

	model, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)
	require.NoError(t, err)

	p := model.Program
	assert.Equal(t, []string{"A", "B", "C"}, p.Variables)
	assert.Equal(t, []float64{1, 2, 0.8}, p.Objective)
	require.Len(t, p.Constraints, 6)

	assert.Equal(t, domain.LinearConstraint{Name: "min_energy", Coeffs: []float64{100, 50, 23}, Op: domain.OpGreaterEqual, RHS: 2000, RuleIndex: 0}, p.Constraints[0])
	// 400 g of vegetables is 4 reference units
	assert.Equal(t, domain.LinearConstraint{Name: "min_vegetable", Coeffs: []float64{0, 0, 1}, Op: domain.OpGreaterEqual, RHS: 4, RuleIndex: 1}, p.Constraints[1])
	// one cap row per product in the listed categories, 0.5 kg = 5 units
	assert.Equal(t, "max_each_grain+protein[A]", p.Constraints[2].Name)
	assert.Equal(t, []float64{1, 0, 0}, p.Constraints[2].Coeffs)
	assert.Equal(t, 5.0, p.Constraints[2].RHS)
	assert.Equal(t, "max_each_grain+protein[B]", p.Constraints[3].Name)
	assert.Equal(t, 2, p.Constraints[3].RuleIndex)
	assert.Equal(t, domain.LinearConstraint{Name: "max_C[C]", Coeffs: []float64{0, 0, 1}, Op: domain.OpLessEqual, RHS: 10, RuleIndex: 3}, p.Constraints[4])
	assert.Equal(t, domain.LinearConstraint{Name: "max_cost", Coeffs: []float64{1, 2, 0.8}, Op: domain.OpLessEqual, RHS: 50, RuleIndex: 4}, p.Constraints[5])

	assert.Empty(t, model.Excluded)
	assert.Equal(t, domain.DefaultReferenceUnit, model.Reference)
}

func TestModelBuilder_MaximizeObjective(t *testing.T) {
	spec := &domain.ConstraintSpec{
		Objective: domain.Objective{Sense: domain.MaximizeNutrient, Nutrient: domain.NutrientProtein},
		Rules:     []domain.Rule{{Kind: domain.RuleBudget, Direction: domain.DirectionMax, Threshold: 10}},
	}

	model, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)

	require.NoError(t, err)
	assert.Equal(t, []float64{-10, -20, -3}, model.Program.Objective)
}

func TestModelBuilder_MissingNutrientUnderMaxIsExcluded(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 2000),
		nutrientRule(domain.NutrientSalt, domain.DirectionMax, 5),
	}}

	model, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)

	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, true}, model.Program.Fixed)
	require.Len(t, model.Excluded, 1)
	assert.Equal(t, domain.ExcludedProduct{ProductID: "C", Missing: domain.NutrientSalt, Rule: "max_salt"}, model.Excluded[0])
}

func TestModelBuilder_MissingNutrientUnderMinContributesZero(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{nutrientRule(domain.NutrientSalt, domain.DirectionMin, 1)}}

	model, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)

	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5, 0}, model.Program.Constraints[0].Coeffs)
	assert.Empty(t, model.Excluded)
}

func TestModelBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		catalog *domain.Catalog
		spec    *domain.ConstraintSpec
		wantErr error
	}{
		{"nil spec", testCatalog(), nil, domain.ErrInvalidRequest},
		{"empty catalog", &domain.Catalog{}, &domain.ConstraintSpec{Rules: []domain.Rule{nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 1)}}, domain.ErrEmptyCatalog},
		{"empty rule set", testCatalog(), &domain.ConstraintSpec{}, domain.ErrConfiguration},
		{"min above max", testCatalog(), &domain.ConstraintSpec{Rules: []domain.Rule{
			nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 2500),
			nutrientRule(domain.NutrientEnergy, domain.DirectionMax, 2000),
		}}, domain.ErrConfiguration},
		{"negative threshold", testCatalog(), &domain.ConstraintSpec{Rules: []domain.Rule{
			nutrientRule(domain.NutrientEnergy, domain.DirectionMin, -1),
		}}, domain.ErrConfiguration},
		{"minimum on nutrient nobody states", testCatalog(), &domain.ConstraintSpec{Rules: []domain.Rule{
			nutrientRule(domain.NutrientFiber, domain.DirectionMin, 25),
		}}, domain.ErrConfiguration},
		{"minimum on empty category", testCatalog(), &domain.ConstraintSpec{Rules: []domain.Rule{
			{Kind: domain.RuleCategory, Categories: []string{"fruit"}, Direction: domain.DirectionMin, Threshold: 2},
		}}, domain.ErrConfiguration},
		{"cap on product missing from catalog", testCatalog(), &domain.ConstraintSpec{Rules: []domain.Rule{
			nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 100),
			{Kind: domain.RuleProductCap, Product: "ghost", Direction: domain.DirectionMax, Threshold: 1},
		}}, domain.ErrConfiguration},
		{"mass minimum above unit maximum", testCatalog(), &domain.ConstraintSpec{Rules: []domain.Rule{
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMin, Threshold: 5, Unit: "kg"},
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMax, Threshold: 2, Unit: "units"},
		}}, domain.ErrConfiguration},
		{"maximize nutrient nobody states", testCatalog(), &domain.ConstraintSpec{
			Objective: domain.Objective{Sense: domain.MaximizeNutrient, Nutrient: domain.NutrientFiber},
			Rules:     []domain.Rule{{Kind: domain.RuleBudget, Direction: domain.DirectionMax, Threshold: 10}},
		}, domain.ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModelBuilder(ModelBuilderConfig{}).Build(tt.catalog, tt.spec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestModelBuilder_ConfigurationErrorListsEveryProblem(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientFiber, domain.DirectionMin, 25),
		{Kind: domain.RuleCategory, Categories: []string{"fruit"}, Direction: domain.DirectionMin, Threshold: 2},
	}}

	_, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 2)
}

func TestModelBuilder_QuantityBoundsAcrossUnits(t *testing.T) {
	tests := []struct {
		name    string
		rules   []domain.Rule
		wantErr bool
	}{
		{"kg minimum above unit maximum", []domain.Rule{
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMin, Threshold: 5, Unit: "kg"},
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMax, Threshold: 2, Unit: "units"},
		}, true},
		{"unit minimum above gram maximum", []domain.Rule{
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMin, Threshold: 3},
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMax, Threshold: 250, Unit: "g"},
		}, true},
		{"compatible across units", []domain.Rule{
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMin, Threshold: 200, Unit: "g"},
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMax, Threshold: 2, Unit: "units"},
		}, false},
		{"different categories", []domain.Rule{
			{Kind: domain.RuleCategory, Categories: []string{"grain"}, Direction: domain.DirectionMin, Threshold: 5, Unit: "kg"},
			{Kind: domain.RuleCategory, Categories: []string{"protein"}, Direction: domain.DirectionMax, Threshold: 2, Unit: "units"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), &domain.ConstraintSpec{Rules: tt.rules})
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var cfgErr *domain.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Len(t, cfgErr.Problems, 1)
			assert.Contains(t, cfgErr.Problems[0], "reference units")
		})
	}
}

func TestModelBuilder_CapOnMissingProductIsReported(t *testing.T) {
	spec := &domain.ConstraintSpec{Rules: []domain.Rule{
		nutrientRule(domain.NutrientEnergy, domain.DirectionMin, 100),
		{Kind: domain.RuleProductCap, Product: "ghost", Direction: domain.DirectionMax, Threshold: 1},
	}}

	_, err := NewModelBuilder(ModelBuilderConfig{}).Build(testCatalog(), spec)

	var cfgErr *domain.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{`rule 1 (max_ghost): product "ghost" is not in the catalog`}, cfgErr.Problems)
}
