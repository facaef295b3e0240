package usecase

import (
	"cmp"
	"slices"

	"golang.org/x/text/unicode/norm"
)

// similarity returns 1 - dist/maxLen over NFD-decomposed runes, in [0, 1].
// Decomposition turns each Hangul syllable into two or three jamo, so a
// single misread syllable costs one or two edits instead of a whole character.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	ra := []rune(norm.NFD.String(a))
	rb := []rune(norm.NFD.String(b))

	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshteinDistance(ra, rb))/float64(longest)
}

// levenshteinDistance calculates the edit distance between two rune slices
func levenshteinDistance(r1, r2 []rune) int {
	m := len(r1)
	n := len(r2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Use two rows instead of full matrix for space efficiency
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

// scoredName is a candidate key with its similarity to a query
type scoredName struct {
	name  string
	score float64
}

// bestMatch returns the most similar candidate whose score is at least cutoff.
// Ties keep the earlier candidate.
func bestMatch(query string, candidates []string, cutoff float64) (scoredName, bool) {
	best := scoredName{score: -1}
	for _, c := range candidates {
		if s := similarity(query, c); s > best.score {
			best = scoredName{name: c, score: s}
		}
	}
	if best.score < cutoff {
		return scoredName{}, false
	}
	return best, true
}

// closeMatches returns up to n candidates scoring at least cutoff, best first.
// Equal scores keep candidate order.
func closeMatches(query string, candidates []string, n int, cutoff float64) []scoredName {
	var hits []scoredName
	for _, c := range candidates {
		if s := similarity(query, c); s >= cutoff {
			hits = append(hits, scoredName{name: c, score: s})
		}
	}
	slices.SortStableFunc(hits, func(a, b scoredName) int {
		return cmp.Compare(b.score, a.score)
	})
	if len(hits) > n {
		hits = hits[:n]
	}
	return hits
}
