package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/grocer/internal/domain"
)

func TestDecodeCSV_Semicolon(t *testing.T) {
	input := "id;name;price;package_size;nutrition_basis;category;Energia (kcal);Proteine\n" +
		"p1;Ceci lessati;1,29 €;400 g;per 100 g;Legumi;120;7,5\n" +
		"p2;Olio EVO;6,90;1 l;per 100 ml;Olio e condimenti;824;\n"

	products, err := DecodeCSV(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p1", products[0].ID)
	assert.Equal(t, "1,29 €", products[0].Price)
	assert.Equal(t, "400 g", products[0].PackageSize)
	assert.Equal(t, "Legumi", products[0].Category)
	assert.Equal(t, map[string]string{"Energia (kcal)": "120", "Proteine": "7,5"}, products[0].Nutrition)
	// empty cells are not labels
	assert.Equal(t, map[string]string{"Energia (kcal)": "824"}, products[1].Nutrition)
}

func TestDecodeCSV_CommaWithQuotes(t *testing.T) {
	input := "\ufeffcode,product_name,price,quantity,fat\n" +
		"x1,\"Bread, wholemeal\",2.10,\"6 x 50 g\",\"3,2 g\"\n"

	products, err := DecodeCSV(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "x1", products[0].ID)
	assert.Equal(t, "Bread, wholemeal", products[0].Name)
	assert.Equal(t, "6 x 50 g", products[0].PackageSize)
	assert.Equal(t, "3,2 g", products[0].Nutrition["fat"])
}

func TestDecodeCSV_Empty(t *testing.T) {
	products, err := DecodeCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantIDs []string
		wantErr bool
	}{
		{"array", `[{"id":"a"},{"id":"b"}]`, []string{"a", "b"}, false},
		{"wrapped", `{"products":[{"id":"c"}]}`, []string{"c"}, false},
		{"invalid", `{"products":`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			products, err := DecodeJSON([]byte(tt.input))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrCatalogSourceFailure)
				return
			}
			require.NoError(t, err)
			var ids []string
			for _, p := range products {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestFileSource_Products(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id":"a","price":"1"}]`), 0o644))
	csvPath := filepath.Join(dir, "catalog.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("id,price\nb,2\n"), 0o644))

	products, err := NewFileSource(jsonPath).Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", products[0].ID)

	products, err = NewFileSource(csvPath).Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", products[0].ID)

	_, err = NewFileSource(filepath.Join(dir, "missing.csv")).Products(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogSourceFailure)

	assert.Equal(t, "file:"+csvPath, NewFileSource(csvPath).Name())
}
