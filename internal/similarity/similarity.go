// Package similarity scores and ranks names against a free-text query.
//
// Scoring tiers, applied to the lowercased and trimmed query and name:
//
//	exact match        1000
//	name has prefix     500
//	name contains       250
//	otherwise           Similarity(query, name) * 100
//
// Rank drops anything scoring at or below Threshold.
package similarity

import (
	"cmp"
	"slices"
	"strings"
)

// Threshold is the score an item must exceed to be kept by Rank.
const Threshold = 60.0

const (
	scoreExact    = 1000.0
	scorePrefix   = 500.0
	scoreContains = 250.0
)

// Distance returns the Levenshtein edit distance between a and b,
// counted in runes. Comparison is case-sensitive.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	// Two rolling rows instead of the full matrix.
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(rb)]
}

// Similarity returns 1 - Distance/len(longer), in [0, 1].
// Two empty strings are identical.
func Similarity(a, b string) float64 {
	longer, shorter := a, b
	if runeLen(shorter) > runeLen(longer) {
		longer, shorter = shorter, longer
	}
	n := runeLen(longer)
	if n == 0 {
		return 1.0
	}
	return 1.0 - float64(Distance(longer, shorter))/float64(n)
}

// Score rates how well name matches query. An empty query scores 0.
func Score(query, name string) float64 {
	q := normalize(query)
	if q == "" {
		return 0
	}
	n := normalize(name)

	switch {
	case n == q:
		return scoreExact
	case strings.HasPrefix(n, q):
		return scorePrefix
	case strings.Contains(n, q):
		return scoreContains
	default:
		return Similarity(q, n) * 100
	}
}

// Scored pairs an item with its relevance score.
type Scored[T any] struct {
	Item  T
	Score float64
}

// RankScored scores every item by nameOf(item), drops those at or below
// Threshold and returns the rest sorted by descending score.
// Ties keep their input order.
func RankScored[T any](query string, items []T, nameOf func(T) string) []Scored[T] {
	ranked := make([]Scored[T], 0, len(items))
	for _, item := range items {
		s := Score(query, nameOf(item))
		if s <= Threshold {
			continue
		}
		ranked = append(ranked, Scored[T]{Item: item, Score: s})
	}

	slices.SortStableFunc(ranked, func(a, b Scored[T]) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return ranked
}

// Rank is RankScored without the scores.
func Rank[T any](query string, items []T, nameOf func(T) string) []T {
	scored := RankScored(query, items, nameOf)
	out := make([]T, len(scored))
	for i, s := range scored {
		out[i] = s.Item
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func runeLen(s string) int {
	return len([]rune(s))
}
