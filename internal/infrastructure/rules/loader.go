// Package rules loads constraint specs and taxonomies from YAML, TOML or
// JSON files and keeps them current while the process runs.
package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/macrolens/grocer/internal/domain"
)

// Load reads a rule file. The format follows the extension (.yaml, .yml,
// .toml, .json). An absent taxonomy falls back to the default one.
func Load(path string) (domain.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("reading rule file: %w", err)
	}
	rs, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return domain.RuleSet{}, fmt.Errorf("%s: %w", path, err)
	}
	rs.Source = path
	return rs, nil
}

// Parse decodes rule file content in the format named by ext and validates
// the constraint set on its own.
func Parse(data []byte, ext string) (domain.RuleSet, error) {
	var rs domain.RuleSet
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &rs); err != nil {
			return rs, fmt.Errorf("%w: yaml: %v", domain.ErrConfiguration, err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &rs); err != nil {
			return rs, fmt.Errorf("%w: toml: %v", domain.ErrConfiguration, err)
		}
	case "json":
		if err := json.Unmarshal(data, &rs); err != nil {
			return rs, fmt.Errorf("%w: json: %v", domain.ErrConfiguration, err)
		}
	default:
		return rs, fmt.Errorf("%w: unsupported rule file format %q", domain.ErrConfiguration, ext)
	}

	rs.Spec.Canonicalize()
	if len(rs.Taxonomy.Rules) == 0 {
		rs.Taxonomy = domain.DefaultTaxonomy
	}
	if err := rs.Spec.Validate(); err != nil {
		return rs, err
	}
	return rs, nil
}

// StaticProvider serves one rule set for the life of the process.
type StaticProvider struct {
	set domain.RuleSet
}

// NewStaticProvider wraps a fixed rule set
func NewStaticProvider(set domain.RuleSet) *StaticProvider {
	if len(set.Taxonomy.Rules) == 0 {
		set.Taxonomy = domain.DefaultTaxonomy
	}
	return &StaticProvider{set: set}
}

// Current returns the rule set
func (p *StaticProvider) Current() domain.RuleSet {
	return p.set
}
