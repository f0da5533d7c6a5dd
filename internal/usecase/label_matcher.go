package usecase

import (
	"log"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/macrolens/grocer/internal/domain"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Package-level compiled regex patterns for label folding
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// Match methods, strongest first. A nutrient stated by two labels keeps the
// value from the stronger method.
const (
	matchExact   = 3
	matchPattern = 2
	matchFuzzy   = 1
)

// foldLabel lowercases, strips diacritics and punctuation and collapses
// whitespace. "Proteínas (g)" becomes "proteinas g".
func foldLabel(s string) string {
	if s == "" {
		return ""
	}
	// transform.Chain is stateful, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.NewReplacer("ß", "ss", "µ", "u", "μ", "u", "æ", "ae", "œ", "oe").Replace(folded)
	folded = nonAlphanumericRegex.ReplaceAllString(folded, " ")
	folded = multipleSpacesRegex.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// LabelMatch is the reconciliation of one nutrition label.
type LabelMatch struct {
	Nutrient domain.Nutrient
	Method   int
	// Sodium is set when the label states sodium; the value converts to salt.
	Sodium bool
	// UnitHint is a unit named in the label itself ("energy kj", "sodium mg"),
	// applied when the value carries no unit.
	UnitHint string
}

// LabelMatcherConfig holds configuration for the label matcher
type LabelMatcherConfig struct {
	Vocabulary          *domain.LabelVocabulary
	EnableFuzzyMatching bool
	FuzzyEditDistance   int
	EnableDebugLogging  bool
}

// LabelMatcher maps heterogeneous label vocabularies onto canonical nutrients
type LabelMatcher struct {
	vocab               *domain.LabelVocabulary
	exactKeys           []string
	enableFuzzyMatching bool
	fuzzyEditDistance   int
	enableDebugLogging  bool
}

// NewLabelMatcher creates a label matcher over the given vocabulary
func NewLabelMatcher(config LabelMatcherConfig) *LabelMatcher {
	vocab := config.Vocabulary
	if vocab == nil {
		vocab = &domain.DefaultVocabulary
	}

	fuzzyDist := config.FuzzyEditDistance
	if fuzzyDist <= 0 {
		fuzzyDist = 1 // Default edit distance of 1
	}

	keys := make([]string, 0, len(vocab.Exact))
	for k := range vocab.Exact {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &LabelMatcher{
		vocab:               vocab,
		exactKeys:           keys,
		enableFuzzyMatching: config.EnableFuzzyMatching,
		fuzzyEditDistance:   fuzzyDist,
		enableDebugLogging:  config.EnableDebugLogging,
	}
}

// Version returns the vocabulary version.
func (m *LabelMatcher) Version() string {
	return m.vocab.Version
}

// Match reconciles a raw label. The second result is false for labels that
// are ignored or unknown.
func (m *LabelMatcher) Match(label string) (LabelMatch, bool) {
	folded := foldLabel(label)
	if folded == "" {
		return LabelMatch{}, false
	}

	padded := " " + folded + " "
	for _, ignore := range m.vocab.Ignore {
		if strings.Contains(padded, " "+ignore) {
			return LabelMatch{}, false
		}
	}

	tokens := strings.Fields(folded)
	match := LabelMatch{UnitHint: unitHint(tokens)}
	for _, t := range tokens {
		if m.vocab.SodiumLabels[t] {
			match.Sodium = true
		}
	}

	// Labels often carry their unit ("fat g", "energia kcal"); try without it too.
	candidates := []string{folded}
	if match.UnitHint != "" {
		candidates = append(candidates, strings.Join(stripUnitTokens(tokens), " "))
	}

	for _, c := range candidates {
		if n, ok := m.vocab.Exact[c]; ok {
			match.Nutrient, match.Method = n, matchExact
			return match, true
		}
	}

	for _, p := range m.vocab.Patterns {
		if p.Pattern.MatchString(folded) {
			match.Nutrient, match.Method = p.Nutrient, matchPattern
			return match, true
		}
	}

	if m.enableFuzzyMatching {
		if n, ok := m.fuzzyLookup(candidates[len(candidates)-1]); ok {
			if m.enableDebugLogging {
				log.Printf("[LABELS] Fuzzy match %q → %s", label, n)
			}
			match.Nutrient, match.Method = n, matchFuzzy
			return match, true
		}
	}

	if m.enableDebugLogging {
		log.Printf("[LABELS] Unrecognized label %q (folded %q)", label, folded)
	}
	return LabelMatch{}, false
}

// fuzzyLookup finds the closest exact key within the edit distance threshold.
// Keys are scanned in sorted order so ties resolve deterministically.
func (m *LabelMatcher) fuzzyLookup(folded string) (domain.Nutrient, bool) {
	best := -1
	var bestKey string
	for _, key := range m.exactKeys {
		if !fuzzyTokenMatch(folded, key, m.fuzzyEditDistance) {
			continue
		}
		d := levenshteinDistance(folded, key)
		if best < 0 || d < best {
			best, bestKey = d, key
		}
	}
	if best < 0 {
		return "", false
	}
	return m.vocab.Exact[bestKey], true
}

var labelUnitTokens = map[string]string{
	"kcal": "kcal", "kj": "kj", "g": "g", "gr": "g", "mg": "mg", "ug": "ug", "mcg": "ug",
}

// unitHint returns the unit a label names, if any. kcal wins over kJ when a
// label names both.
func unitHint(tokens []string) string {
	for _, t := range tokens {
		if t == "kcal" {
			return "kcal"
		}
	}
	for _, t := range tokens {
		if u, ok := labelUnitTokens[t]; ok {
			return u
		}
	}
	return ""
}

func stripUnitTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := labelUnitTokens[t]; ok {
			continue
		}
		if t == "per" || t == "100" || t == "100g" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// fuzzyTokenMatch checks if two tokens are similar within the edit distance threshold
func fuzzyTokenMatch(token1, token2 string, threshold int) bool {
	if token1 == token2 {
		return true
	}

	// Only apply fuzzy matching to tokens > 4 chars to avoid false positives
	if len(token1) < 5 || len(token2) < 5 {
		return false
	}

	lenDiff := len(token1) - len(token2)
	if lenDiff < 0 {
		lenDiff = -lenDiff
	}
	if lenDiff > threshold {
		return false
	}

	return levenshteinDistance(token1, token2) <= threshold
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Two rows instead of the full matrix
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}
