package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/search"
	"github.com/kopa-app/kopa-server/internal/store"
)

// untouchableStore fails the test on any storage access.
type untouchableStore struct {
	store.Store
	t *testing.T
}

func (u untouchableStore) FindTags(context.Context, store.TagFilter) ([]*domain.Tag, error) {
	u.t.Fatal("store must not be accessed")
	return nil, nil
}

func (u untouchableStore) FindTagParents(context.Context, store.TagParentFilter) ([]*domain.TagParent, error) {
	u.t.Fatal("store must not be accessed")
	return nil, nil
}

// stubIndex returns fixed candidates or a fixed error.
type stubIndex struct {
	ids   []string
	err   error
	calls int
}

func (s *stubIndex) CandidateIDs(context.Context, string, domain.TagLevel, int) ([]string, error) {
	s.calls++
	return s.ids, s.err
}

func (s *stubIndex) IndexTag(*domain.Tag) error        { return nil }
func (s *stubIndex) Rebuild(tags []*domain.Tag) error { return s.err }

func seedSearchTags(t *testing.T, f *fixture) {
	t.Helper()
	chess := testTag("chess", domain.LevelSpecific, "games", "Chess")
	chess.NameLv = "Šahs"
	for _, tag := range []*domain.Tag{
		testTag("baseball", domain.LevelSpecific, "ball-games", "Baseball"),
		chess,
	} {
		require.NoError(t, f.store.CreateTag(f.ctx, tag))
	}
}

func resultIDs(resp *SearchResponse) []string {
	ids := make([]string, len(resp.Results))
	for i, r := range resp.Results {
		ids[i] = r.Tag.ID
	}
	return ids
}

func TestSearch_ShortQueryRejectedWithoutStoreAccess(t *testing.T) {
	svc := NewSearchService(untouchableStore{t: t}, nil, config.DefaultTaxonomy(), nil)

	for _, q := range []string{"", "a", "  b  ", "š"} {
		_, err := svc.Search(context.Background(), SearchRequest{Query: q})
		requireCode(t, err, domainerrors.CodeValidation)
	}
}

func TestSearch_InvalidLevel(t *testing.T) {
	f := newFixture(t)

	_, err := f.search.Search(f.ctx, SearchRequest{Query: "ball", Level: 4})
	requireCode(t, err, domainerrors.CodeValidation)
}

func TestSearch_BasketballExample(t *testing.T) {
	f := newFixture(t)
	seedSearchTags(t, f)

	resp, err := f.search.Search(f.ctx, SearchRequest{Query: "basketball", Level: domain.LevelSpecific})
	require.NoError(t, err)

	assert.Equal(t, []string{"basketball", "baseball"}, resultIDs(resp))
	assert.Equal(t, "basketball", resp.Query)
	assert.Equal(t, 3, resp.Total)

	top := resp.Results[0]
	assert.Equal(t, "Sports > Ball Games > Basketball", top.Path.Display)
	assert.Equal(t, "Sports", top.Path.Category)
	assert.Equal(t, "Ball Games", top.Path.Domain)
	assert.Equal(t, "orange", top.Path.ColorKey)
	assert.Greater(t, top.Score, resp.Results[1].Score)
}

func TestSearch_MatchesLatvianName(t *testing.T) {
	f := newFixture(t)
	seedSearchTags(t, f)

	resp, err := f.search.Search(f.ctx, SearchRequest{Query: "šahs"})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "chess", resp.Results[0].Tag.ID)
	assert.Equal(t, "Culture > Games > Chess", resp.Results[0].Path.Display)
}

func TestSearch_AllLevels(t *testing.T) {
	f := newFixture(t)

	resp, err := f.search.Search(f.ctx, SearchRequest{Query: "sports"})
	require.NoError(t, err)

	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "sports", resp.Results[0].Tag.ID)
	assert.Equal(t, "Sports", resp.Results[0].Path.Display)
}

func TestSearch_SkipsInactiveTags(t *testing.T) {
	f := newFixture(t)

	_, err := f.taxonomy.SetStatus(f.ctx, "basketball", domain.TagStatusInactive)
	require.NoError(t, err)

	resp, err := f.search.Search(f.ctx, SearchRequest{Query: "basketball"})
	require.NoError(t, err)
	assert.NotContains(t, resultIDs(resp), "basketball")
}

func TestSearch_Limits(t *testing.T) {
	f := newFixture(t)
	for i := range 8 {
		tag := testTag(fmt.Sprintf("yoga-%d", i), domain.LevelSpecific, "fitness", fmt.Sprintf("Yoga %d", i))
		require.NoError(t, f.store.CreateTag(f.ctx, tag))
	}

	resp, err := f.search.Search(f.ctx, SearchRequest{Query: "yoga"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, f.limits.SearchDefaultLimit)

	resp, err = f.search.Search(f.ctx, SearchRequest{Query: "yoga", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)

	resp, err = f.search.Search(f.ctx, SearchRequest{Query: "yoga", Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 8)
}

func TestSearch_UsesIndexCandidates(t *testing.T) {
	f := newFixture(t)
	seedSearchTags(t, f)

	idx := &stubIndex{ids: []string{"baseball", "basketball"}}
	svc := NewSearchService(f.store, idx, f.limits, f.logger)

	resp, err := svc.Search(f.ctx, SearchRequest{Query: "basketball", Level: domain.LevelSpecific})
	require.NoError(t, err)

	assert.Equal(t, 1, idx.calls)
	assert.Equal(t, []string{"basketball", "baseball"}, resultIDs(resp))
	// Index hits are topped up from the store without duplicates.
	assert.Equal(t, 3, resp.Total)
}

func TestSearch_TopsUpIndexHitsFromStore(t *testing.T) {
	f := newFixture(t)
	seedSearchTags(t, f)

	idx := &stubIndex{ids: []string{"baseball"}}
	svc := NewSearchService(f.store, idx, f.limits, f.logger)

	resp, err := svc.Search(f.ctx, SearchRequest{Query: "basketball"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "basketball", resp.Results[0].Tag.ID)
	assert.Contains(t, resultIDs(resp), "baseball")
}

func TestSearch_FallsBackToStore(t *testing.T) {
	tests := []struct {
		name string
		idx  *stubIndex
	}{
		{"index error", &stubIndex{err: errors.New("index corrupted")}},
		{"no candidates", &stubIndex{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := NewSearchService(f.store, tt.idx, f.limits, f.logger)

			resp, err := svc.Search(f.ctx, SearchRequest{Query: "basketball"})
			require.NoError(t, err)
			assert.Equal(t, 1, tt.idx.calls)
			assert.Contains(t, resultIDs(resp), "basketball")
		})
	}
}

func TestSearch_WithBleveIndex(t *testing.T) {
	f := newFixture(t)
	seedSearchTags(t, f)

	idx, err := search.NewTagIndex(search.Options{DataPath: t.TempDir(), Logger: f.logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() }) //nolint:errcheck // Test cleanup

	svc := NewSearchService(f.store, idx, f.limits, f.logger)
	count, err := svc.RebuildIndex(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, count)

	// A typo still finds the tag through the fuzzy index query.
	resp, err := svc.Search(f.ctx, SearchRequest{Query: "basketbal", Level: domain.LevelSpecific})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "basketball", resp.Results[0].Tag.ID)
	assert.Equal(t, "Sports > Ball Games > Basketball", resp.Results[0].Path.Display)
}

func TestSearch_WithBleveIndexKeepsDistantFuzzyMatches(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.CreateTag(f.ctx, testTag("baskitboot", domain.LevelSpecific, "ball-games", "Baskitboot")))

	idx, err := search.NewTagIndex(search.Options{DataPath: t.TempDir(), Logger: f.logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() }) //nolint:errcheck // Test cleanup

	svc := NewSearchService(f.store, idx, f.limits, f.logger)
	_, err = svc.RebuildIndex(f.ctx)
	require.NoError(t, err)

	// "baskitbool" is one edit from Baskitboot, which the index finds, and
	// three edits from Basketball, which only the store scan supplies.
	resp, err := svc.Search(f.ctx, SearchRequest{Query: "baskitbool", Level: domain.LevelSpecific})
	require.NoError(t, err)

	ids := resultIDs(resp)
	require.NotEmpty(t, ids)
	assert.Equal(t, "baskitboot", ids[0])
	assert.Contains(t, ids, "basketball")
}

func TestSearch_StoreFailureIsStorageError(t *testing.T) {
	tests := []struct {
		name string
		idx  TagIndex
	}{
		{"no index", nil},
		{"index failed", &stubIndex{err: errors.New("index corrupted")}},
		{"index hits", &stubIndex{ids: []string{"basketball"}}},
		{"index empty", &stubIndex{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			svc := NewSearchService(&failingStore{Store: f.store, failOn: "FindTags"}, tt.idx, f.limits, f.logger)

			resp, err := svc.Search(f.ctx, SearchRequest{Query: "basketball"})
			domainErr := requireCode(t, err, domainerrors.CodeStorage)
			assert.ErrorIs(t, domainErr, errInjected)
			assert.Nil(t, resp)
		})
	}
}

func TestRebuildIndex_StoreFailureIsStorageError(t *testing.T) {
	f := newFixture(t)
	svc := NewSearchService(&failingStore{Store: f.store, failOn: "FindTags"}, &stubIndex{}, f.limits, f.logger)

	_, err := svc.RebuildIndex(f.ctx)
	requireCode(t, err, domainerrors.CodeStorage)
}

func TestRebuildIndex_Disabled(t *testing.T) {
	f := newFixture(t)

	_, err := f.search.RebuildIndex(f.ctx)
	requireCode(t, err, domainerrors.CodeInvalidState)
}
