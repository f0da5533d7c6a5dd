package usecase

import (
	"strings"

	"github.com/macrolens/grocer/internal/domain"
)

type compiledTaxonomyRule struct {
	tag       string
	keywords  []string
	matchName bool
}

// CategoryTagger assigns compositional tags from catalog taxonomy metadata.
// Rules come from configuration and are tried in order.
type CategoryTagger struct {
	rules []compiledTaxonomyRule
}

// NewCategoryTagger folds the taxonomy keywords once.
func NewCategoryTagger(taxonomy domain.Taxonomy) *CategoryTagger {
	rules := make([]compiledTaxonomyRule, 0, len(taxonomy.Rules))
	for _, r := range taxonomy.Rules {
		tag := strings.TrimSpace(r.Tag)
		if tag == "" {
			continue
		}
		var keywords []string
		for _, k := range r.Keywords {
			if f := foldLabel(k); f != "" {
				keywords = append(keywords, f)
			}
		}
		rules = append(rules, compiledTaxonomyRule{tag: tag, keywords: keywords, matchName: r.MatchName})
	}
	return &CategoryTagger{rules: rules}
}

// Tag returns the first matching tag, or domain.CategoryUncategorized.
func (t *CategoryTagger) Tag(categoryPath, productName string) string {
	path := foldLabel(categoryPath)
	name := foldLabel(productName)
	for _, r := range t.rules {
		for _, k := range r.keywords {
			if path != "" && strings.Contains(path, k) {
				return r.tag
			}
			if r.matchName && name != "" && strings.Contains(name, k) {
				return r.tag
			}
		}
	}
	return domain.CategoryUncategorized
}
