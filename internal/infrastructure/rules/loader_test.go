package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/grocer/internal/domain"
)

const yamlRules = `
spec:
  name: daily
  objective:
    sense: minimize_cost
  rules:
    - kind: nutrient
      nutrient: calories
      direction: min
      threshold: 2000
    - kind: nutrient
      nutrient: protein
      direction: min
      threshold: 60
    - kind: category
      categories: [vegetable]
      direction: min
      threshold: 400
      unit: g
    - kind: product_cap
      categories: [oil]
      direction: max
      threshold: 0.05
      unit: kg
taxonomy:
  rules:
    - tag: vegetable
      keywords: [verdur, vegetable]
    - tag: oil
      keywords: [olio]
`

const tomlRules = `
[spec]
name = "lean"

[spec.objective]
sense = "maximize_nutrient"
nutrient = "proteins"

[[spec.rules]]
kind = "budget"
direction = "max"
threshold = 10.0

[[spec.rules]]
kind = "nutrient"
nutrient = "fibre"
direction = "min"
threshold = 25.0
`

func TestParse_YAML(t *testing.T) {
	rs, err := Parse([]byte(yamlRules), ".yaml")

	require.NoError(t, err)
	assert.Equal(t, "daily", rs.Spec.Name)
	require.Len(t, rs.Spec.Rules, 4)
	assert.Equal(t, domain.NutrientEnergy, rs.Spec.Rules[0].Nutrient)
	assert.Equal(t, []string{"vegetable"}, rs.Spec.Rules[2].Categories)
	assert.Equal(t, "kg", rs.Spec.Rules[3].Unit)
	require.Len(t, rs.Taxonomy.Rules, 2)
	assert.Equal(t, "oil", rs.Taxonomy.Rules[1].Tag)
}

func TestParse_TOML(t *testing.T) {
	rs, err := Parse([]byte(tomlRules), "toml")

	require.NoError(t, err)
	assert.Equal(t, domain.MaximizeNutrient, rs.Spec.Objective.Sense)
	assert.Equal(t, domain.NutrientProtein, rs.Spec.Objective.Nutrient)
	require.Len(t, rs.Spec.Rules, 2)
	assert.Equal(t, domain.RuleBudget, rs.Spec.Rules[0].Kind)
	assert.Equal(t, 10.0, rs.Spec.Rules[0].Threshold)
	assert.Equal(t, domain.NutrientFiber, rs.Spec.Rules[1].Nutrient)
	// no taxonomy in the file
	assert.Equal(t, domain.DefaultTaxonomy, rs.Taxonomy)
}

func TestParse_JSON(t *testing.T) {
	data := `{"spec":{"rules":[{"kind":"nutrient","nutrient":"salt","direction":"max","threshold":5}]}}`

	rs, err := Parse([]byte(data), ".json")

	require.NoError(t, err)
	assert.Equal(t, domain.NutrientSalt, rs.Spec.Rules[0].Nutrient)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		ext  string
	}{
		{"unsupported format", "x", ".ini"},
		{"malformed yaml", "spec: [", ".yaml"},
		{"unknown nutrient", "spec:\n  rules:\n    - {kind: nutrient, nutrient: vitamin_c, direction: min, threshold: 1}\n", ".yaml"},
		{"contradictory bounds", "spec:\n  rules:\n    - {kind: nutrient, nutrient: fat, direction: min, threshold: 80}\n    - {kind: nutrient, nutrient: fat, direction: max, threshold: 50}\n", ".yaml"},
		{"empty rule set", "spec:\n  name: nothing\n", ".yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.ext)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yamlRules), 0o644))

	rs, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, path, rs.Source)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStaticProvider(t *testing.T) {
	p := NewStaticProvider(domain.RuleSet{Spec: domain.ConstraintSpec{Name: "fixed"}})

	assert.Equal(t, "fixed", p.Current().Spec.Name)
	assert.Equal(t, domain.DefaultTaxonomy, p.Current().Taxonomy)
}
