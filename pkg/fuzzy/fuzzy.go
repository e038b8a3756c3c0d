package fuzzy

import "strings"

// LevenshteinDistance calculates the edit distance between two strings
// This measures how many single-character edits (insertions, deletions, or substitutions)
// are required to change one string into another
func LevenshteinDistance(s1, s2 string) int {
	s1 = Normalize(s1)
	s2 = Normalize(s2)

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

	d := make([][]int, m+1)
	for i := range d {
		d[i] = make([]int, n+1)
	}

	for i := 0; i <= m; i++ {
		d[i][0] = i
	}
	for j := 0; j <= n; j++ {
		d[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			d[i][j] = min3(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
		}
	}

	return d[m][n]
}

// Normalize lowercases a string and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	return strings.Join(strings.Fields(s), " ")
}

// NameSimilarity scores how likely two display names refer to the same person.
// Returns a value in [0, 1]. Token order is ignored so "Doe, Jane" matches
// "Jane Doe".
func NameSimilarity(a, b string) float64 {
	a = Normalize(strings.ReplaceAll(a, ",", " "))
	b = Normalize(strings.ReplaceAll(b, ",", " "))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	sortTokens(aTokens)
	sortTokens(bTokens)

	aSorted := strings.Join(aTokens, " ")
	bSorted := strings.Join(bTokens, " ")
	if aSorted == bSorted {
		return 1
	}

	dist := LevenshteinDistance(aSorted, bSorted)
	longer := len(aSorted)
	if len(bSorted) > longer {
		longer = len(bSorted)
	}
	if longer == 0 {
		return 0
	}

	score := 1 - float64(dist)/float64(longer)
	if score < 0 {
		score = 0
	}

	// Shared-token bonus: "jane" vs "jane doe" should rank well even though
	// the raw edit distance is large relative to length.
	if shared := sharedTokenRatio(aTokens, bTokens); shared > score {
		score = shared
	}

	return score
}

// MatchesHint reports whether a secondary identity hint (phone digits or a
// handle) matches exactly after normalization.
func MatchesHint(a, b string) bool {
	a = normalizeHint(a)
	b = normalizeHint(b)
	return a != "" && a == b
}

func normalizeHint(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "@")
	// Strip common phone punctuation so "+1 (555) 010-2000" == "15550102000".
	var b strings.Builder
	for _, r := range s {
		switch r {
		case ' ', '-', '(', ')', '.', '+':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func sharedTokenRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	shared := 0
	for _, t := range b {
		if set[t] {
			shared++
		}
	}
	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	return float64(shared) / float64(smaller)
}

func sortTokens(tokens []string) {
	for i := 1; i < len(tokens); i++ {
		for j := i; j > 0 && tokens[j] < tokens[j-1]; j-- {
			tokens[j], tokens[j-1] = tokens[j-1], tokens[j]
		}
	}
}

func min3(a, b, c int) int {
	if a < b {
		if a < c {
			return a
		}
		return c
	}
	if b < c {
		return b
	}
	return c
}
