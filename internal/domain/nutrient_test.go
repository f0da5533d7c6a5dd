package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNutrient(t *testing.T) {
	tests := []struct {
		input   string
		want    Nutrient
		wantErr bool
	}{
		{"energy", NutrientEnergy, false},
		{" Calories ", NutrientEnergy, false},
		{"saturated-fat", NutrientSaturatedFat, false},
		{"Saturated Fat", NutrientSaturatedFat, false},
		{"fibre", NutrientFiber, false},
		{"carbs", NutrientCarbohydrate, false},
		{"sugar", NutrientSugars, false},
		{"salt", NutrientSalt, false},
		{"vitamin c", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNutrient(tt.input)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrConfiguration))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNutrient_Units(t *testing.T) {
	assert.Equal(t, "kcal", NutrientEnergy.Unit())
	assert.False(t, NutrientEnergy.IsMass())
	for _, n := range CanonicalNutrients[1:] {
		assert.Equal(t, "g", n.Unit(), n)
		assert.True(t, n.IsMass(), n)
	}
}

func TestNutrientProfile_Clone(t *testing.T) {
	p := NutrientProfile{NutrientProtein: 10}
	c := p.Clone()
	c[NutrientProtein] = 20

	assert.True(t, p.Has(NutrientProtein))
	assert.False(t, p.Has(NutrientSalt))
	assert.Equal(t, 10.0, p[NutrientProtein])
}
