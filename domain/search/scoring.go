package search

import "strings"

// ScoringMethod names how a candidate batch was ranked.
type ScoringMethod string

// Scoring methods. Fallback means the rescoring service was unreachable
// and similarity alone ordered the results.
const (
	ScoringMiniCOT  ScoringMethod = "mini-cot"
	ScoringFallback ScoringMethod = "fallback"
)

// DefaultVectorWeight is the share of the combined score taken by vector
// similarity; the rest comes from reasoning relevance.
const DefaultVectorWeight = 0.4

// Attribution values beyond the conversational roles.
const (
	AttributionUserCode  = "user-code"
	AttributionGenerated = "generated"
	AttributionUnknown   = "unknown"
)

// CombinedScore blends vector similarity with reasoning relevance.
// vectorWeight outside (0,1] falls back to DefaultVectorWeight.
func CombinedScore(similarity, relevance, vectorWeight float64) float64 {
	if vectorWeight <= 0 || vectorWeight > 1 {
		vectorWeight = DefaultVectorWeight
	}
	return vectorWeight*similarity + (1-vectorWeight)*relevance
}

// Attribute resolves who a candidate came from: the explicit role when
// set, else a role:* tag, else the user-code/generated tag family, else
// unknown.
func Attribute(role string, tags []string) string {
	if role != "" {
		return strings.ToLower(role)
	}
	for _, tag := range tags {
		if len(tag) > len("role:") && strings.EqualFold(tag[:len("role:")], "role:") {
			return strings.ToLower(tag[len("role:"):])
		}
	}
	for _, tag := range tags {
		lowered := strings.ToLower(tag)
		switch {
		case strings.Contains(lowered, AttributionUserCode):
			return AttributionUserCode
		case strings.Contains(lowered, AttributionGenerated):
			return AttributionGenerated
		}
	}
	return AttributionUnknown
}

// CountAttributions tallies attribution values for the scoring report.
func CountAttributions(attributions []string) map[string]int {
	counts := make(map[string]int, len(attributions))
	for _, a := range attributions {
		counts[a]++
	}
	return counts
}

// stopwords excluded from extracted keywords.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {},
	"you": {}, "are": {}, "was": {}, "were": {}, "have": {}, "has": {},
	"had": {}, "not": {}, "but": {}, "can": {}, "all": {}, "its": {},
	"from": {}, "they": {}, "will": {}, "would": {}, "there": {},
	"their": {}, "then": {}, "them": {}, "been": {}, "into": {},
	"your": {}, "our": {}, "out": {}, "use": {}, "used": {}, "using": {},
	"what": {}, "when": {}, "where": {}, "how": {}, "why": {},
}

// Keywords extracts up to max distinct lowercase terms from content,
// dropping words shorter than three characters and common stopwords.
// Order follows first appearance.
func Keywords(content string, max int) []string {
	if max <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var keywords []string

	words := strings.FieldsFunc(strings.ToLower(content), func(r rune) bool {
		return !isWordRune(r)
	})
	for _, word := range words {
		if len(word) < 3 {
			continue
		}
		if _, stop := stopwords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
		if len(keywords) == max {
			break
		}
	}
	return keywords
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_'
}
