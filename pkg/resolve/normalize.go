// Package resolve decides whether an extracted entity is a new node or a
// duplicate of an existing one, using a two-stage strategy: deterministic
// name similarity first, an optional LLM disambiguation pass second.
package resolve

import (
	"regexp"
	"strings"
)

// fuzzyKeep drops everything outside letters, digits, CJK ideographs, and
// spaces before fuzzy comparison.
var fuzzyKeep = regexp.MustCompile(`[^a-z0-9\x{4e00}-\x{9fff} ]`)

// Normalize lowercases a name, collapses internal whitespace, and trims.
func Normalize(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeFuzzy applies Normalize and then strips punctuation and special
// characters, keeping latin letters, digits, CJK ideographs, and spaces.
func NormalizeFuzzy(name string) string {
	normalized := fuzzyKeep.ReplaceAllString(Normalize(name), " ")
	return strings.Join(strings.Fields(normalized), " ")
}

// SeqRatio scores two strings by their longest common subsequence:
// 2*LCS / (len(a)+len(b)) over runes. Either side empty scores 0.
func SeqRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
		for j := range curr {
			curr[j] = 0
		}
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

// TokenJaccard scores two strings by set-Jaccard over whitespace-split
// tokens. Two empty strings score 1; one empty side scores 0.
func TokenJaccard(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}
