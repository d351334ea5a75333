package search

import "github.com/hbollon/go-edlib"

// fuzzyMatcher scores string similarity with Jaro-Winkler, used as the
// Search Engine's fallback when an exact AND-match over the inverted
// index returns nothing: the query may be a near-miss on a path or
// symbol name (typo, partial name) rather than absent from the corpus.
type fuzzyMatcher struct {
	threshold float64
}

func newFuzzyMatcher(threshold float64) fuzzyMatcher {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.75
	}
	return fuzzyMatcher{threshold: threshold}
}

// similarity returns the Jaro-Winkler similarity of a and b in [0,1].
func (f fuzzyMatcher) similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}
	score, err := edlib.StringsSimilarity(a, b, edlib.JaroWinkler)
	if err != nil {
		return 0.0
	}
	return float64(score)
}

// matches reports whether a and b are similar enough to treat as a
// fuzzy hit.
func (f fuzzyMatcher) matches(a, b string) bool {
	return f.similarity(a, b) >= f.threshold
}
