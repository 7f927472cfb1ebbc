package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/metrics"
	"github.com/kopa-app/kopa-server/internal/similarity"
	"github.com/kopa-app/kopa-server/internal/store"
	"github.com/kopa-app/kopa-server/internal/taxonomy"
)

// SearchService provides fuzzy tag search with breadcrumb paths.
type SearchService struct {
	store  store.Store
	index  TagIndex
	limits config.TaxonomyConfig
	logger *slog.Logger
}

// NewSearchService creates a new search service. index may be nil, in which
// case candidates always come from the store.
func NewSearchService(s store.Store, index TagIndex, limits config.TaxonomyConfig, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:  s,
		index:  index,
		limits: limits,
		logger: logger,
	}
}

// SearchRequest holds the parameters of a tag search.
type SearchRequest struct {
	Query string          `json:"q"`
	Level domain.TagLevel `json:"level,omitempty"` // 0 searches every level
	Limit int             `json:"limit,omitempty"`
}

// SearchResult is one ranked tag with its breadcrumb.
type SearchResult struct {
	Tag   *domain.Tag   `json:"tag"`
	Path  taxonomy.Path `json:"path"`
	Score float64       `json:"score"`
}

// SearchResponse contains ranked results and the number of candidates
// that were considered.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
	Query   string         `json:"query"`
}

// Search ranks ACTIVE tags against the query. Validation happens before
// any storage access.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if utf8.RuneCountInString(query) < s.limits.SearchMinQueryLength {
		return nil, domainerrors.ValidationWithDetails("query too short",
			map[string]string{"q": fmt.Sprintf("must be at least %d characters", s.limits.SearchMinQueryLength)})
	}
	if req.Level != 0 && !req.Level.Valid() {
		return nil, domainerrors.ValidationWithDetails("invalid level",
			map[string]string{"level": "must be 1, 2 or 3"})
	}

	limit := s.clampLimit(req.Limit)
	candidateLimit := min(max(limit*10, limit), s.limits.SearchMaxCandidates)

	candidates, source, err := s.candidates(ctx, query, req.Level, candidateLimit)
	if err != nil {
		return nil, err
	}

	ranked := similarity.RankScored(query, candidates, bestName(query))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	top := make([]*domain.Tag, len(ranked))
	for i, r := range ranked {
		top[i] = r.Item
	}
	chain, err := loadChain(ctx, s.store, top)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = SearchResult{
			Tag:   r.Item,
			Path:  chain.ResolvePath(r.Item),
			Score: r.Score,
		}
	}

	metrics.RecordSearch(source, time.Since(start))
	s.logger.Debug("tag search",
		"query", query,
		"level", int(req.Level),
		"source", source,
		"candidates", len(candidates),
		"results", len(results),
	)

	return &SearchResponse{
		Results: results,
		Total:   len(candidates),
		Query:   query,
	}, nil
}

// candidates returns at most limit ACTIVE tags that may match query.
// Index hits come first. The bleve fuzzy query stops at two edits while the
// ranker accepts more, so the set is topped up from a store scan.
func (s *SearchService) candidates(ctx context.Context, query string, level domain.TagLevel, limit int) ([]*domain.Tag, string, error) {
	var tags []*domain.Tag
	source := metrics.SourceStore

	if s.index != nil && s.limits.SearchIndexEnabled {
		ids, err := s.index.CandidateIDs(ctx, query, level, limit)
		switch {
		case err != nil:
			metrics.RecordSearchIndexFailure()
			s.logger.Warn("search index failed, using store", "query", query, "error", err)
		case len(ids) > 0:
			tags, err = s.store.FindTags(ctx, store.TagFilter{
				IDs:    ids,
				Level:  level,
				Status: domain.TagStatusActive,
			})
			if err != nil {
				return nil, "", storageErr(err, "failed to load tags")
			}
			source = metrics.SourceIndex
		}
	}

	if len(tags) >= limit {
		return tags[:limit], source, nil
	}

	scanned, err := s.store.FindTags(ctx, store.TagFilter{
		Level:    level,
		Status:   domain.TagStatusActive,
		NameHint: query,
		Limit:    limit,
	})
	if err != nil {
		return nil, "", storageErr(err, "failed to search tags")
	}
	return mergeCandidates(tags, scanned, limit), source, nil
}

// mergeCandidates appends the extra tags not already in base, up to limit.
func mergeCandidates(base, extra []*domain.Tag, limit int) []*domain.Tag {
	seen := make(map[string]struct{}, len(base))
	for _, t := range base {
		seen[t.ID] = struct{}{}
	}
	for _, t := range extra {
		if len(base) >= limit {
			break
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		base = append(base, t)
	}
	return base
}

func (s *SearchService) clampLimit(limit int) int {
	if limit <= 0 {
		return s.limits.SearchDefaultLimit
	}
	return min(limit, s.limits.SearchMaxLimit)
}

// RebuildIndex reindexes every ACTIVE tag.
func (s *SearchService) RebuildIndex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, domainerrors.InvalidState("search index is disabled")
	}

	tags, err := s.store.FindTags(ctx, store.TagFilter{Status: domain.TagStatusActive})
	if err != nil {
		return 0, storageErr(err, "failed to load tags")
	}

	if err := s.index.Rebuild(tags); err != nil {
		return 0, domainerrors.Internal("failed to rebuild search index").WithCause(err)
	}

	s.logger.Info("search index rebuilt", "tags", len(tags))
	return len(tags), nil
}

// bestName picks whichever of the English and Latvian names scores higher,
// so either language finds the tag.
func bestName(query string) func(*domain.Tag) string {
	return func(t *domain.Tag) string {
		if t.NameLv != "" && similarity.Score(query, t.NameLv) > similarity.Score(query, t.Name) {
			return t.NameLv
		}
		return t.Name
	}
}
