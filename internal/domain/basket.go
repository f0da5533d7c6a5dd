package domain

import "time"

// BasketItem is one purchased product.
type BasketItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Quantity  float64 `json:"quantity"` // reference-unit multiples
	Grams     float64 `json:"grams"`
	Cost      float64 `json:"cost"`
}

// Basket is the optimizer's output. It is built once per successful solve and
// is not modified after validation.
type Basket struct {
	ReferenceUnit ReferenceUnit   `json:"referenceUnit"`
	Items         []BasketItem    `json:"items"`
	TotalCost     float64         `json:"totalCost"`
	Nutrients     NutrientProfile `json:"nutrients"`
	Objective     float64         `json:"objective"`
}

// Quantities returns product ID → quantity.
func (b *Basket) Quantities() map[string]float64 {
	out := make(map[string]float64, len(b.Items))
	for _, it := range b.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

// DropReason classifies why the normalizer rejected a record.
type DropReason string

const (
	DropMissingID       DropReason = "missing_id"
	DropMissingPrice    DropReason = "missing_price"
	DropMissingSize     DropReason = "missing_package_size"
	DropUnresolvedBasis DropReason = "unresolved_nutrition_basis"
	DropNoNutrition     DropReason = "no_nutrition"
	DropDuplicateID     DropReason = "duplicate_id"
)

// DroppedRecord is a rejected record with its reason.
type DroppedRecord struct {
	ProductID string     `json:"productId"`
	Reason    DropReason `json:"reason"`
	Detail    string     `json:"detail,omitempty"`
}

// NormalizationReport holds the normalizer's per-run counters.
type NormalizationReport struct {
	VocabularyVersion  string                    `json:"vocabularyVersion"`
	Processed          int                       `json:"processed"`
	Accepted           int                       `json:"accepted"`
	Dropped            []DroppedRecord           `json:"dropped,omitempty"`
	DropCounts         map[DropReason]int        `json:"dropCounts,omitempty"`
	FieldParseFailures int                       `json:"fieldParseFailures"`
	UnmappedFields     int                       `json:"unmappedFields"`
	UnitFallbacks      int                       `json:"unitFallbacks"`
	Resolutions        map[string]UnitResolution `json:"resolutions,omitempty"`
	Uncategorized      int                       `json:"uncategorized"`
}

// SolverStatus is the outcome of one solve.
type SolverStatus string

const (
	StatusOptimal    SolverStatus = "optimal"
	StatusInfeasible SolverStatus = "infeasible"
	StatusUnbounded  SolverStatus = "unbounded"
	StatusError      SolverStatus = "error"
)

// ExcludedProduct is a product fixed to zero by the model builder.
type ExcludedProduct struct {
	ProductID string   `json:"productId"`
	Missing   Nutrient `json:"missing"`
	Rule      string   `json:"rule"`
}

// Report is the diagnostic record of a run, returned next to the basket and
// also on failure.
type Report struct {
	RunID           string              `json:"runId"`
	StartedAt       time.Time           `json:"startedAt"`
	Duration        time.Duration       `json:"duration"`
	Normalization   NormalizationReport `json:"normalization"`
	Excluded        []ExcludedProduct   `json:"excluded,omitempty"`
	Variables       int                 `json:"variables"`
	Constraints     int                 `json:"constraints"`
	SolverStatus    SolverStatus        `json:"solverStatus,omitempty"`
	SolverAttempts  int                 `json:"solverAttempts"`
	ImplicatedRules []string            `json:"implicatedRules,omitempty"`
	Error           string              `json:"error,omitempty"`
	CatalogSource   string              `json:"catalogSource,omitempty"`
	CacheHit        bool                `json:"cacheHit"`
}

// PlanResult is the planner output: a validated basket (nil on failure) and
// the report.
type PlanResult struct {
	Basket *Basket `json:"basket,omitempty"`
	Report Report  `json:"report"`
}
