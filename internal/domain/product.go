package domain

// RawProduct is a catalog record exactly as the sourcing collaborator
// delivered it. Nutrition labels, quantities and prices are free text.
type RawProduct struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Price          string            `json:"price"`                    // package price, e.g. "3,49 €"
	PackageSize    string            `json:"packageSize"`              // e.g. "500 g", "6 x 125 g"
	ServingSize    string            `json:"servingSize,omitempty"`    // e.g. "30 g"
	NutritionBasis string            `json:"nutritionBasis,omitempty"` // e.g. "per 100 g", "per serving"
	Nutrition      map[string]string `json:"nutrition,omitempty"`
	Category       string            `json:"category,omitempty"` // taxonomy path from the catalog
}

// UnitResolution records how a product's nutrition basis was determined.
type UnitResolution string

const (
	// ResolutionExplicitReference means the label stated a per-100 g/ml basis.
	ResolutionExplicitReference UnitResolution = "explicit_reference"
	// ResolutionExplicitServing means the label stated a per-serving basis and
	// the serving mass was parseable.
	ResolutionExplicitServing UnitResolution = "explicit_serving"
	// ResolutionExplicitPackage means the label stated a per-package basis.
	ResolutionExplicitPackage UnitResolution = "explicit_package"
	// ResolutionInferredReference means no usable basis was stated and the
	// values were plausible as per-100 g figures.
	ResolutionInferredReference UnitResolution = "inferred_reference"
	// ResolutionInferredPackage means no usable basis was stated and the
	// values only fit the declared package mass.
	ResolutionInferredPackage UnitResolution = "inferred_package"
	// ResolutionRejected means no basis could be determined.
	ResolutionRejected UnitResolution = "rejected"
)

// IsFallback reports whether the resolution did not come from an explicit label.
func (r UnitResolution) IsFallback() bool {
	return r == ResolutionInferredReference || r == ResolutionInferredPackage || r == ResolutionRejected
}

// Category tags used by compositional rules.
const (
	CategoryUncategorized = "uncategorized"
	CategoryVegetable     = "vegetable"
)

// ReferenceUnit is the common basis every price and nutrient figure of one
// run is expressed in.
type ReferenceUnit struct {
	Grams float64 `json:"grams"`
	Label string  `json:"label"`
}

// DefaultReferenceUnit is 100 g.
var DefaultReferenceUnit = ReferenceUnit{Grams: 100, Label: "100g"}

// CanonicalProduct is a product normalized onto the canonical nutrient set
// and the run's reference unit.
type CanonicalProduct struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	PricePerUnit   float64         `json:"pricePerUnit"`
	Nutrients      NutrientProfile `json:"nutrients"`
	Category       string          `json:"category"`
	SourceCategory string          `json:"sourceCategory,omitempty"`
	PackageGrams   float64         `json:"packageGrams"`
	Resolution     UnitResolution  `json:"resolution"`
}

// Amount returns the per-unit amount of n and whether it is known.
func (p *CanonicalProduct) Amount(n Nutrient) (float64, bool) {
	v, ok := p.Nutrients[n]
	return v, ok
}

// Catalog is the output of one normalization run.
type Catalog struct {
	ReferenceUnit ReferenceUnit       `json:"referenceUnit"`
	Products      []CanonicalProduct  `json:"products"`
	Stats         NormalizationReport `json:"stats"`
}

// Categories returns the distinct category tags present in the catalog.
func (c *Catalog) Categories() map[string]int {
	out := make(map[string]int)
	for _, p := range c.Products {
		out[p.Category]++
	}
	return out
}

// HasNutrient reports whether at least one product states n.
func (c *Catalog) HasNutrient(n Nutrient) bool {
	for i := range c.Products {
		if c.Products[i].Nutrients.Has(n) {
			return true
		}
	}
	return false
}

// TaxonomyRule tags a product with Tag when its folded category path (or,
// when MatchName is set, its name) contains any of Keywords.
type TaxonomyRule struct {
	Tag       string   `json:"tag" yaml:"tag" toml:"tag"`
	Keywords  []string `json:"keywords" yaml:"keywords" toml:"keywords"`
	MatchName bool     `json:"matchName,omitempty" yaml:"match_name" toml:"match_name"`
}

// Taxonomy is an ordered rule list. The first matching rule wins.
type Taxonomy struct {
	Rules []TaxonomyRule `json:"rules" yaml:"rules" toml:"rules"`
}

// DefaultTaxonomy is used when no taxonomy is configured. Keywords are
// folded (lowercase, no diacritics).
var DefaultTaxonomy = Taxonomy{
	Rules: []TaxonomyRule{
		{Tag: CategoryVegetable, Keywords: []string{"verdur", "vegetable", "insalat", "salad", "broccoli", "spinac", "pomodor", "tomato", "carot", "cavol", "minestron", "gemuse", "legume frais"}},
		{Tag: "fruit", Keywords: []string{"frutta", "fruit", "agrumi", "obst", "citrus"}},
		{Tag: "legume", Keywords: []string{"legum", "lenticch", "ceci", "beans", "fagiol", "pulses"}},
		{Tag: "oil", Keywords: []string{"olio", "oil", "condiment", "semi e condimenti"}},
		{Tag: "protein", Keywords: []string{"pollo", "tacchino", "pesce", "uova", "carne", "bovin", "salmon", "tonno", "meat", "fish", "poultry", "egg"}},
		{Tag: "dairy", Keywords: []string{"yogurt", "latte", "formagg", "latticin", "dairy", "cheese", "kefir", "milk"}},
		{Tag: "grain", Keywords: []string{"riso", "pasta", "cereal", "avena", "pane", "farina", "gallett", "rice", "bread", "oat", "grain"}},
	},
}
