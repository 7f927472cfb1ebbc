package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// CandidateIDs returns up to limit ids of tags that plausibly match q,
// best first. level 0 means any level.
//
// Each query token is matched as a term, a prefix, a substring and a
// fuzzy term on both names. Final ranking happens elsewhere; this only
// narrows the candidate set.
func (s *TagIndex) CandidateIDs(ctx context.Context, q string, level domain.TagLevel, limit int) ([]string, error) {
	tokens := strings.Fields(strings.ToLower(q))
	if len(tokens) == 0 || limit <= 0 {
		return []string{}, nil
	}

	var textQueries []query.Query
	for _, field := range []string{"name", "name_lv"} {
		match := bleve.NewMatchQuery(q)
		match.SetField(field)
		match.SetBoost(3.0)
		textQueries = append(textQueries, match)

		for _, tok := range tokens {
			prefix := bleve.NewPrefixQuery(tok)
			prefix.SetField(field)
			prefix.SetBoost(2.0)
			textQueries = append(textQueries, prefix)

			if inner := stripWildcards(tok); inner != "" {
				contains := bleve.NewWildcardQuery("*" + inner + "*")
				contains.SetField(field)
				contains.SetBoost(1.0)
				textQueries = append(textQueries, contains)
			}

			if fuzziness := fuzzinessFor(tok); fuzziness > 0 {
				fuzzy := bleve.NewFuzzyQuery(tok)
				fuzzy.SetField(field)
				fuzzy.SetFuzziness(fuzziness)
				fuzzy.SetBoost(0.8)
				textQueries = append(textQueries, fuzzy)
			}
		}
	}

	var searchQuery query.Query = bleve.NewDisjunctionQuery(textQueries...)
	if level != 0 {
		levelQuery := bleve.NewTermQuery(strconv.Itoa(int(level)))
		levelQuery.SetField("level")
		searchQuery = bleve.NewConjunctionQuery(searchQuery, levelQuery)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})

	s.mu.RLock()
	defer s.mu.RUnlock()

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// fuzzinessFor scales the allowed edit distance with token length.
// Short tokens would match almost anything.
func fuzzinessFor(tok string) int {
	switch n := len([]rune(tok)); {
	case n >= 7:
		return 2
	case n >= 4:
		return 1
	default:
		return 0
	}
}

// stripWildcards drops wildcard metacharacters the user typed.
func stripWildcards(s string) string {
	return strings.NewReplacer("*", "", "?", "").Replace(s)
}
