// Package similarity computes composite similarity scores between entities,
// used by the deduplication engine to find candidate duplicate pairs.
package similarity

import (
	"regexp"
	"strings"

	"github.com/noemakb/noema/ontology"
)

// Component weights. Name dominates because extraction produces noisy
// descriptions but stable names.
const (
	nameWeight        = 0.5
	descriptionWeight = 0.3
	keywordWeight     = 0.2
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

// Breakdown holds the composite score and its components, all in [0,1].
type Breakdown struct {
	Total       float64 `json:"total"`
	Name        float64 `json:"name"`
	Description float64 `json:"desc"`
	Keywords    float64 `json:"keywords"`
}

// Score computes the similarity between two entities. Pure and symmetric:
// Score(a, b) == Score(b, a).
func Score(a, b *ontology.Entity) Breakdown {
	name := lcsRatio(strings.ToLower(a.Name), strings.ToLower(b.Name))
	desc := jaccard(tokenize(a.Description), tokenize(b.Description))
	kw := jaccard(lowerSet(a.Keywords), lowerSet(b.Keywords))

	return Breakdown{
		Total:       name*nameWeight + desc*descriptionWeight + kw*keywordWeight,
		Name:        name,
		Description: desc,
		Keywords:    kw,
	}
}

// lcsRatio is the longest-common-subsequence similarity ratio:
// 2*LCS(a,b) / (len(a)+len(b)). Returns 1.0 for two empty strings.
func lcsRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra)+len(rb) == 0 {
		return 1.0
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0.0
	}

	// Single-row DP over the shorter string.
	if len(rb) < len(ra) {
		ra, rb = rb, ra
	}
	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := 1; i <= len(rb); i++ {
		for j := 1; j <= len(ra); j++ {
			if rb[i-1] == ra[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	lcs := prev[len(ra)]

	return 2.0 * float64(lcs) / float64(len(ra)+len(rb))
}

// jaccard is the Jaccard index of two sets. Defined as 0.0 when either set
// is empty so that two entities with no descriptions never look identical.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		tokens[w] = struct{}{}
	}
	return tokens
}

func lowerSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = struct{}{}
	}
	return set
}
