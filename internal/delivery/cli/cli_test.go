package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrolens/grocer/config"
	"github.com/macrolens/grocer/internal/app"
	"github.com/macrolens/grocer/internal/domain"
)

const testCatalog = "id,name,price,package_size,nutrition_basis,category,energy,protein\n" +
	"A,Product A,1,100 g,per 100 g,pantry,100 kcal,10 g\n" +
	"B,Product B,2,100 g,per 100 g,pantry,50 kcal,20 g\n" +
	"C,Broken,,100 g,per 100 g,pantry,50 kcal,20 g\n"

const testRules = `
spec:
  name: scenario
  rules:
    - kind: nutrient
      nutrient: energy
      direction: min
      threshold: 300
    - kind: nutrient
      nutrient: protein
      direction: min
      threshold: 40
`

const conflictingRules = `
spec:
  rules:
    - name: little_energy
      kind: nutrient
      nutrient: energy
      direction: max
      threshold: 500
    - name: much_protein
      kind: nutrient
      nutrient: protein
      direction: min
      threshold: 300
`

// fixture writes the catalog, rules and a config without cache or store
func fixture(t *testing.T, rules string) (catalogPath, rulesPath string) {
	t.Helper()
	dir := t.TempDir()
	catalogPath = filepath.Join(dir, "catalog.csv")
	rulesPath = filepath.Join(dir, "rules.yaml")
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o644))
	require.NoError(t, os.WriteFile(rulesPath, []byte(rules), 0o644))
	require.NoError(t, os.WriteFile(cfgPath, []byte("cache:\n  type: none\n"), 0o644))

	oldConfig := configPath
	configPath = cfgPath
	t.Cleanup(func() { configPath = oldConfig })
	return catalogPath, rulesPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	optimizeCatalog, optimizeRules, optimizeJSON, normalizeJSON = "", "", false, false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	SetVersion("test-version-1.0.0")
	defer func() { version = originalVersion }()

	out, err := execute(t, "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "grocer version test-version-1.0.0")
}

func TestSetVersion_IgnoresEmpty(t *testing.T) {
	originalVersion := version
	defer func() { version = originalVersion }()

	SetVersion("")
	assert.Equal(t, originalVersion, version)
}

func TestValidateRulesCmd(t *testing.T) {
	_, rulesPath := fixture(t, testRules)

	out, err := execute(t, "validate-rules", rulesPath)

	require.NoError(t, err)
	assert.Contains(t, out, "spec scenario")
	assert.Contains(t, out, "2 rules")
	assert.Contains(t, out, "min_energy")
}

func TestValidateRulesCmd_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("spec:\n  rules:\n    - kind: nutrient\n      nutrient: unobtainium\n      direction: min\n      threshold: 1\n"), 0o644))

	_, err := execute(t, "validate-rules", path)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestValidateRulesCmd_RequiresArg(t *testing.T) {
	_, err := execute(t, "validate-rules")
	assert.Error(t, err)
}

func TestOptimizeCmd_Table(t *testing.T) {
	catalogPath, rulesPath := fixture(t, testRules)

	out, err := execute(t, "optimize", "--catalog", catalogPath, "--rules", rulesPath)

	require.NoError(t, err)
	assert.Contains(t, out, "2/3 products usable")
	assert.Contains(t, out, "Total cost: 4.00")
}

func TestOptimizeCmd_JSON(t *testing.T) {
	catalogPath, rulesPath := fixture(t, testRules)

	out, err := execute(t, "optimize", "-c", catalogPath, "-r", rulesPath, "--json")

	require.NoError(t, err)
	var result domain.PlanResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotNil(t, result.Basket)
	assert.InDelta(t, 4.0, result.Basket.TotalCost, 1e-6)
	assert.Equal(t, "file:"+catalogPath, result.Report.CatalogSource)
}

func TestOptimizeCmd_Infeasible(t *testing.T) {
	catalogPath, rulesPath := fixture(t, conflictingRules)

	out, err := execute(t, "optimize", "--catalog", catalogPath, "--rules", rulesPath)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInfeasible)
	assert.Contains(t, out, "Conflicting rules:")
	assert.Contains(t, out, "little_energy")
	assert.Contains(t, out, "much_protein")
}

func TestOptimizeCmd_AppError(t *testing.T) {
	fixture(t, testRules)
	oldNewApp := newApp
	newApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return nil, assert.AnError
	}
	defer func() { newApp = oldNewApp }()

	_, err := execute(t, "optimize")

	assert.ErrorIs(t, err, assert.AnError)
}

func TestNormalizeCmd(t *testing.T) {
	catalogPath, _ := fixture(t, testRules)

	out, err := execute(t, "normalize", catalogPath)

	require.NoError(t, err)
	assert.Contains(t, out, "Processed:        3")
	assert.Contains(t, out, "Accepted:         2")
	assert.Contains(t, out, string(domain.DropMissingPrice))
}

func TestNormalizeCmd_NoSource(t *testing.T) {
	fixture(t, testRules)

	_, err := execute(t, "normalize")

	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
