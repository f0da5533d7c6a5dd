package usecase

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/macrolens/grocer/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Plausibility limits used when the nutrition basis has to be inferred.
const (
	maxMacroGramsPer100g = 100.0
	maxKcalPer100g       = 900.0 // pure fat
	plausibilitySlack    = 1.02  // rounding on printed labels
)

// basis keywords, folded
var (
	servingBasisWords = []string{"serving", "porzione", "portion", "porcion", "portie", "serv"}
	packageBasisWords = []string{"package", "pack", "confezione", "packung", "emballage", "envase", "pkg", "container"}
)

// NormalizerConfig holds configuration for the catalog normalizer
type NormalizerConfig struct {
	ReferenceUnit       domain.ReferenceUnit
	Taxonomy            domain.Taxonomy
	Vocabulary          *domain.LabelVocabulary
	Workers             int
	EnableFuzzyMatching bool
	EnableDebugLogging  bool
}

// Normalizer converts raw catalog records into canonical products
type Normalizer struct {
	ref                domain.ReferenceUnit
	labels             *LabelMatcher
	tagger             *CategoryTagger
	workers            int
	enableDebugLogging bool
}

// NewNormalizer creates a normalizer with the given configuration
func NewNormalizer(config NormalizerConfig) *Normalizer {
	ref := config.ReferenceUnit
	if ref.Grams <= 0 {
		ref = domain.DefaultReferenceUnit
	}
	if ref.Label == "" {
		ref.Label = strconv.FormatFloat(ref.Grams, 'f', -1, 64) + "g"
	}

	taxonomy := config.Taxonomy
	if len(taxonomy.Rules) == 0 {
		taxonomy = domain.DefaultTaxonomy
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	return &Normalizer{
		ref: ref,
		labels: NewLabelMatcher(LabelMatcherConfig{
			Vocabulary:          config.Vocabulary,
			EnableFuzzyMatching: config.EnableFuzzyMatching,
			EnableDebugLogging:  config.EnableDebugLogging,
		}),
		tagger:             NewCategoryTagger(taxonomy),
		workers:            workers,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// ReferenceUnit returns the unit every output figure is expressed in.
func (n *Normalizer) ReferenceUnit() domain.ReferenceUnit {
	return n.ref
}

// WithTaxonomy returns a normalizer sharing this one's settings that tags
// categories with the given taxonomy.
func (n *Normalizer) WithTaxonomy(taxonomy domain.Taxonomy) *Normalizer {
	if len(taxonomy.Rules) == 0 {
		return n
	}
	clone := *n
	clone.tagger = NewCategoryTagger(taxonomy)
	return &clone
}

// VocabularyVersion returns the label vocabulary version in use.
func (n *Normalizer) VocabularyVersion() string {
	return n.labels.Version()
}

// recordOutcome is the result of normalizing one record.
type recordOutcome struct {
	product       *domain.CanonicalProduct
	drop          *domain.DataQualityError
	resolution    domain.UnitResolution
	parseFailures int
	unmapped      int
}

// Normalize converts raw records to canonical products. Records failing
// mandatory checks are dropped and reported; the output keeps input order.
func (n *Normalizer) Normalize(ctx context.Context, raws []domain.RawProduct) (*domain.Catalog, error) {
	outcomes := make([]recordOutcome, len(raws))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.workers)
	for i := range raws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = n.normalizeRecord(&raws[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats := domain.NormalizationReport{
		VocabularyVersion: n.labels.Version(),
		Processed:         len(raws),
		DropCounts:        make(map[domain.DropReason]int),
		Resolutions:       make(map[string]domain.UnitResolution),
	}
	products := make([]domain.CanonicalProduct, 0, len(raws))
	seen := make(map[string]bool, len(raws))

	for i, out := range outcomes {
		stats.FieldParseFailures += out.parseFailures
		stats.UnmappedFields += out.unmapped
		id := raws[i].ID
		if out.resolution != "" && id != "" {
			stats.Resolutions[id] = out.resolution
		}
		if out.resolution.IsFallback() {
			stats.UnitFallbacks++
		}

		drop := out.drop
		if drop == nil && seen[id] {
			drop = &domain.DataQualityError{ProductID: id, Reason: domain.DropDuplicateID, Detail: "identifier already used by an earlier record"}
		}
		if drop != nil {
			stats.Dropped = append(stats.Dropped, domain.DroppedRecord{ProductID: drop.ProductID, Reason: drop.Reason, Detail: drop.Detail})
			stats.DropCounts[drop.Reason]++
			if n.enableDebugLogging {
				log.Printf("[NORMALIZE] %v", drop)
			}
			continue
		}

		seen[id] = true
		if out.product.Category == domain.CategoryUncategorized {
			stats.Uncategorized++
		}
		products = append(products, *out.product)
	}
	stats.Accepted = len(products)

	log.Printf("[NORMALIZE] processed=%d accepted=%d dropped=%d fallbacks=%d parse_failures=%d unmapped=%d",
		stats.Processed, stats.Accepted, len(stats.Dropped), stats.UnitFallbacks, stats.FieldParseFailures, stats.UnmappedFields)

	return &domain.Catalog{
		ReferenceUnit: n.ref,
		Products:      products,
		Stats:         stats,
	}, nil
}

func (n *Normalizer) normalizeRecord(raw *domain.RawProduct) recordOutcome {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return recordOutcome{drop: &domain.DataQualityError{Reason: domain.DropMissingID, Detail: fmt.Sprintf("record %q has no identifier", raw.Name)}}
	}

	price, err := ParsePrice(raw.Price)
	if err != nil || price <= 0 || math.IsInf(price, 0) {
		return recordOutcome{drop: &domain.DataQualityError{ProductID: id, Field: "price", Reason: domain.DropMissingPrice, Detail: fmt.Sprintf("price %q absent or non-positive", raw.Price)}}
	}

	pkgGrams, err := ParseMass(raw.PackageSize)
	if err != nil || pkgGrams <= 0 || math.IsInf(pkgGrams, 0) {
		return recordOutcome{drop: &domain.DataQualityError{ProductID: id, Field: "packageSize", Reason: domain.DropMissingSize, Detail: fmt.Sprintf("package size %q absent or non-positive", raw.PackageSize)}}
	}

	out := recordOutcome{}
	values := n.reconcile(id, raw.Nutrition, &out)
	if len(values) == 0 {
		out.drop = &domain.DataQualityError{ProductID: id, Reason: domain.DropNoNutrition, Detail: "no recognizable nutrition field"}
		return out
	}

	basisGrams, resolution := n.resolveBasis(raw, pkgGrams, values)
	out.resolution = resolution
	if resolution == domain.ResolutionRejected {
		out.drop = &domain.DataQualityError{ProductID: id, Reason: domain.DropUnresolvedBasis, Detail: fmt.Sprintf("basis %q not usable and values implausible for package %q", raw.NutritionBasis, raw.PackageSize)}
		return out
	}

	scale := n.ref.Grams / basisGrams
	pricePerUnit := price * (n.ref.Grams / pkgGrams)
	nutrients := make(domain.NutrientProfile, len(values))
	for k, v := range values {
		nutrients[k] = v * scale
	}

	out.product = &domain.CanonicalProduct{
		ID:             id,
		Name:           strings.TrimSpace(raw.Name),
		PricePerUnit:   pricePerUnit,
		Nutrients:      nutrients,
		Category:       n.tagger.Tag(raw.Category, raw.Name),
		SourceCategory: raw.Category,
		PackageGrams:   pkgGrams,
		Resolution:     resolution,
	}
	return out
}

// reconcile maps label fields onto canonical nutrients and parses values.
// Fields are visited in sorted label order so duplicates resolve the same way
// on every run.
func (n *Normalizer) reconcile(id string, fields map[string]string, out *recordOutcome) domain.NutrientProfile {
	labels := make([]string, 0, len(fields))
	for label := range fields {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	values := make(domain.NutrientProfile)
	strength := make(map[domain.Nutrient]int)

	for _, label := range labels {
		raw := fields[label]
		match, ok := n.labels.Match(label)
		if !ok {
			out.unmapped++
			continue
		}

		v, rank, err := parseLabelValue(match, raw)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			out.parseFailures++
			if n.enableDebugLogging {
				log.Printf("[NORMALIZE] product %q field %q value %q dropped: %v", id, label, raw, err)
			}
			continue
		}

		score := match.Method*10 + rank
		if prev, exists := strength[match.Nutrient]; exists && prev >= score {
			continue
		}
		values[match.Nutrient] = v
		strength[match.Nutrient] = score
	}
	return values
}

// parseLabelValue converts a label value into the nutrient's canonical unit.
// The rank orders competing fields for the same nutrient (a kcal figure
// outranks a converted kJ figure).
func parseLabelValue(match LabelMatch, raw string) (float64, int, error) {
	if match.Nutrient == domain.NutrientEnergy {
		if isTrace(raw) {
			return 0, 2, nil
		}
		qs := ParseQuantities(raw)
		if len(qs) > 0 && qs[0].Unit == "" && len(qs) == 1 && match.UnitHint == "kj" {
			return qs[0].Value / kilojoulesPerKcal, 1, nil
		}
		v, err := ParseEnergy(raw)
		if err != nil {
			return 0, 0, err
		}
		rank := 2
		if !strings.Contains(strings.ToLower(raw), "kcal") && strings.Contains(strings.ToLower(raw), "kj") {
			rank = 1
		}
		return v, rank, nil
	}

	v, err := ParseNutrientMass(raw)
	if err != nil {
		return 0, 0, err
	}
	qs := ParseQuantities(raw)
	if len(qs) > 0 && qs[0].Unit == "" && match.UnitHint != "" {
		if g, ok := gramsPerUnit[match.UnitHint]; ok {
			v *= g
		}
	}
	if match.Sodium {
		return v * saltPerSodium, 1, nil
	}
	return v, 2, nil
}

// resolveBasis determines the mass the label values refer to, following the
// fallback order explicit unit → package-mass inference → rejection.
func (n *Normalizer) resolveBasis(raw *domain.RawProduct, pkgGrams float64, values domain.NutrientProfile) (float64, domain.UnitResolution) {
	basis := foldLabel(raw.NutritionBasis)

	if basis != "" {
		switch {
		case containsAny(basis, servingBasisWords):
			if g, err := ParseMass(raw.ServingSize); err == nil && g > 0 {
				return g, domain.ResolutionExplicitServing
			}
			if g, ok := embeddedMass(raw.NutritionBasis); ok {
				return g, domain.ResolutionExplicitServing
			}
		case containsAny(basis, packageBasisWords):
			return pkgGrams, domain.ResolutionExplicitPackage
		default:
			if g, ok := embeddedMass(raw.NutritionBasis); ok {
				return g, domain.ResolutionExplicitReference
			}
		}
	}

	macro := 0.0
	for _, k := range []domain.Nutrient{domain.NutrientFat, domain.NutrientCarbohydrate, domain.NutrientProtein, domain.NutrientFiber, domain.NutrientSalt} {
		macro += values[k]
	}
	energy := values[domain.NutrientEnergy]

	if macro <= maxMacroGramsPer100g*plausibilitySlack && energy <= maxKcalPer100g*plausibilitySlack {
		return 100, domain.ResolutionInferredReference
	}
	if macro <= pkgGrams*plausibilitySlack && energy <= maxKcalPer100g/100*pkgGrams*plausibilitySlack {
		return pkgGrams, domain.ResolutionInferredPackage
	}
	return 0, domain.ResolutionRejected
}

// embeddedMass reads a mass stated inside a basis label ("per 100 g",
// "per serving (30 g)").
func embeddedMass(s string) (float64, bool) {
	for _, q := range ParseQuantities(s) {
		if g, ok := gramsPerUnit[q.Unit]; ok && q.Value > 0 {
			return q.Value * g, true
		}
	}
	return 0, false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ToRawProduct renders a canonical product back into a raw record stated per
// reference unit. Normalizing the result reproduces the product.
func ToRawProduct(p domain.CanonicalProduct, ref domain.ReferenceUnit) domain.RawProduct {
	grams := strconv.FormatFloat(ref.Grams, 'f', -1, 64) + " g"
	nutrition := make(map[string]string, len(p.Nutrients))
	for k, v := range p.Nutrients {
		nutrition[string(k)] = strconv.FormatFloat(v, 'f', -1, 64) + " " + k.Unit()
	}
	return domain.RawProduct{
		ID:             p.ID,
		Name:           p.Name,
		Price:          strconv.FormatFloat(p.PricePerUnit, 'f', -1, 64),
		PackageSize:    grams,
		NutritionBasis: "per " + grams,
		Nutrition:      nutrition,
		Category:       p.SourceCategory,
	}
}
