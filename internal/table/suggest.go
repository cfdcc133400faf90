package table

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinSuggestionScore is the lowest confidence reported by SuggestColumns.
const MinSuggestionScore = 0.6

// Suggestion is a header column that probably means a missing required column.
type Suggestion struct {
	Wanted    string  // required column name
	Candidate string  // column found in the header
	Score     float64 // confidence in [0, 1]
}

// SuggestColumns ranks header columns against each wanted name.
// Comparison ignores case, accents, spacing and punctuation.
// Results are ordered by wanted order, then score descending, then candidate name.
func SuggestColumns(header, wanted []string) []Suggestion {
	var out []Suggestion
	for _, w := range wanted {
		fw := foldKey(w)
		var group []Suggestion
		for _, h := range header {
			score := similarity(fw, foldKey(h))
			if score >= MinSuggestionScore {
				group = append(group, Suggestion{Wanted: w, Candidate: h, Score: score})
			}
		}
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Score != group[j].Score {
				return group[i].Score > group[j].Score
			}
			return group[i].Candidate < group[j].Candidate
		})
		out = append(out, group...)
	}
	return out
}

// foldKey lowercases s and strips accents and everything that is not a letter or digit.
func foldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	score := 1 - float64(levenshtein(ra, rb))/float64(longest)
	if strings.Contains(a, b) || strings.Contains(b, a) {
		shortest := len(ra) + len(rb) - longest
		contained := 0.7 + 0.3*float64(shortest)/float64(longest)
		if contained > score {
			score = contained
		}
	}
	return score
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
