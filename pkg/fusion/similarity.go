package fusion

import (
	"strings"
	"unicode/utf8"

	"github.com/knograph/knograph/pkg/common"
)

// levenshtein computes the edit distance between two strings, by rune.
func levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := 0; j <= len(rb); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minOf(
				prev[j]+1,
				curr[j-1]+1,
				prev[j-1]+cost,
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

func minOf(vals ...int) int {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// editSimilarity is 1 - distance/maxLen, case-insensitive, in [0,1].
func editSimilarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if a == b {
		return 1.0
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// namesAndAliases returns the entity's name plus all aliases.
func namesAndAliases(e common.Entity) []string {
	out := make([]string, 0, 1+len(e.Aliases))
	out = append(out, e.Name)
	out = append(out, e.Aliases...)
	return out
}

// exactSimilarity is 1 when the names match directly, through an alias, or
// after normalization; otherwise 0.
func exactSimilarity(a, b common.Entity) float64 {
	if a.Name == b.Name {
		return 1.0
	}
	for _, alias := range a.Aliases {
		if alias == b.Name {
			return 1.0
		}
	}
	for _, alias := range b.Aliases {
		if alias == a.Name {
			return 1.0
		}
	}
	if normalizeName(a.Name) == normalizeName(b.Name) {
		return 1.0
	}
	return 0.0
}

// fuzzySimilarity is the maximum edit similarity over every (name or alias)
// pair across both entities.
func fuzzySimilarity(a, b common.Entity) float64 {
	best := 0.0
	for _, na := range namesAndAliases(a) {
		for _, nb := range namesAndAliases(b) {
			if s := editSimilarity(na, nb); s > best {
				best = s
			}
		}
	}
	return best
}

// jaccard over two string sets. Both empty yields 0, matching the contract
// that missing context carries no signal.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	set := make(map[string]bool, len(a))
	for _, w := range a {
		set[w] = true
	}
	inter := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, w := range b {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}
