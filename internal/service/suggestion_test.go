package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
)

func streetball() CreateSuggestionRequest {
	return CreateSuggestionRequest{
		NameEn:       "Streetball",
		NameLv:       "Ielu basketbols",
		ParentTagIDs: []string{"ball-games", "fitness"},
	}
}

func (f *fixture) suggest(t *testing.T, req CreateSuggestionRequest) *domain.TagSuggestion {
	t.Helper()
	sug, err := f.suggestions.Create(f.ctx, "user-1", req)
	require.NoError(t, err)
	return sug
}

func TestCreateSuggestion_Success(t *testing.T) {
	f := newFixture(t)

	sug := f.suggest(t, streetball())

	assert.Equal(t, domain.SuggestionPending, sug.Status)
	assert.Equal(t, domain.LevelSpecific, sug.Level)
	assert.Equal(t, []string{"ball-games", "fitness"}, sug.ParentTagIDs)
	assert.Equal(t, 1, f.pendingCount(t, "user-1"))

	stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, "Streetball", stored.NameEn)

	assert.Len(t, f.events.ofType(sse.EventSuggestionCreated), 1)
}

func TestCreateSuggestion_Unauthorized(t *testing.T) {
	f := newFixture(t)

	_, err := f.suggestions.Create(f.ctx, "", streetball())
	requireCode(t, err, domainerrors.CodeUnauthorized)

	_, err = f.suggestions.Create(f.ctx, "ghost", streetball())
	requireCode(t, err, domainerrors.CodeUnauthorized)
}

func TestCreateSuggestion_SixthSubmissionExceedsQuota(t *testing.T) {
	f := newFixture(t)

	for i := range 5 {
		f.suggest(t, CreateSuggestionRequest{
			NameEn:       fmt.Sprintf("Sport %d", i),
			NameLv:       fmt.Sprintf("Sports %d", i),
			ParentTagIDs: []string{"ball-games"},
		})
	}
	require.Equal(t, 5, f.pendingCount(t, "user-1"))

	_, err := f.suggestions.Create(f.ctx, "user-1", streetball())
	domainErr := requireCode(t, err, domainerrors.CodeQuotaExceeded)
	assert.Equal(t, 429, domainErr.HTTPStatus())
	assert.Equal(t, 5, f.pendingCount(t, "user-1"))
}

func TestCreateSuggestion_QuotaCheckedBeforeFields(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetPendingCount(f.ctx, "user-1", 5))

	_, err := f.suggestions.Create(f.ctx, "user-1", CreateSuggestionRequest{})
	requireCode(t, err, domainerrors.CodeQuotaExceeded)
}

func TestCreateSuggestion_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		req   CreateSuggestionRequest
		field string
	}{
		{"missing english name", CreateSuggestionRequest{NameLv: "X", ParentTagIDs: []string{"ball-games"}}, "name_en"},
		{"blank latvian name", CreateSuggestionRequest{NameEn: "X", NameLv: "  ", ParentTagIDs: []string{"ball-games"}}, "name_lv"},
		{"no parents", CreateSuggestionRequest{NameEn: "X", NameLv: "X"}, "parent_tag_ids"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.suggestions.Create(f.ctx, "user-1", tt.req)
			domainErr := requireCode(t, err, domainerrors.CodeValidation)
			details, ok := domainErr.Details.(map[string]string)
			require.True(t, ok)
			assert.Contains(t, details, tt.field)
		})
	}
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))
}

func TestCreateSuggestion_DuplicateActiveTag(t *testing.T) {
	f := newFixture(t)

	req := streetball()
	req.NameEn = "BASKETBALL"

	_, err := f.suggestions.Create(f.ctx, "user-1", req)
	domainErr := requireCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, map[string]string{"existing_tag_id": "basketball"}, domainErr.Details)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))
}

func TestCreateSuggestion_DuplicatePending(t *testing.T) {
	f := newFixture(t)
	first := f.suggest(t, streetball())

	req := CreateSuggestionRequest{
		NameEn:       "Street basketball",
		NameLv:       "ielu BASKETBOLS",
		ParentTagIDs: []string{"ball-games"},
	}
	_, err := f.suggestions.Create(f.ctx, "user-1", req)
	domainErr := requireCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, map[string]string{"existing_suggestion_id": first.ID}, domainErr.Details)
	assert.Equal(t, 1, f.pendingCount(t, "user-1"))
}

func TestCreateSuggestion_InvalidParents(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		parents []string
	}{
		{"category", []string{"sports"}},
		{"level 3", []string{"basketball"}},
		{"unknown", []string{"ball-games", "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := streetball()
			req.ParentTagIDs = tt.parents
			_, err := f.suggestions.Create(f.ctx, "user-1", req)
			requireCode(t, err, domainerrors.CodeValidation)
		})
	}

	inactive, err := f.store.GetTag(f.ctx, "fitness")
	require.NoError(t, err)
	inactive.Status = domain.TagStatusInactive
	require.NoError(t, f.store.UpdateTag(f.ctx, inactive))

	_, err = f.suggestions.Create(f.ctx, "user-1", streetball())
	requireCode(t, err, domainerrors.CodeValidation)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))
}

func TestCreateSuggestion_RollsBackCounterWhenInsertFails(t *testing.T) {
	f := newFixture(t)
	f.wire(&failingStore{Store: f.store, failOn: "CreateSuggestion"})

	_, err := f.suggestions.Create(f.ctx, "user-1", streetball())
	requireCode(t, err, domainerrors.CodeStorage)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))
}

func TestResolve_Approve(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	result, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{
		Action:         domain.ActionApprove,
		ModeratorNotes: "Welcome aboard",
	})
	require.NoError(t, err)

	// Exactly one new level-3 tag under the first parent.
	tag := result.Tag
	require.NotNil(t, tag)
	assert.Equal(t, "Streetball", tag.Name)
	assert.Equal(t, "Ielu basketbols", tag.NameLv)
	assert.Equal(t, "streetball", tag.Slug)
	assert.Equal(t, domain.LevelSpecific, tag.Level)
	assert.Equal(t, "ball-games", tag.ParentID)

	links, err := f.store.FindTagParents(f.ctx, store.TagParentFilter{TagIDs: []string{tag.ID}})
	require.NoError(t, err)
	require.Len(t, links, 1, "secondary parents are not wired on approval")
	assert.True(t, links[0].IsPrimary)
	assert.Equal(t, "Sports", links[0].L1Category)

	stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApproved, stored.Status)
	assert.Equal(t, "mod-1", stored.ModeratorID)
	assert.Equal(t, "Welcome aboard", stored.ModeratorNotes)
	assert.Equal(t, tag.ID, stored.CreatedTagID)
	assert.NotNil(t, stored.ModeratedAt)

	assert.Equal(t, 0, f.pendingCount(t, "user-1"))

	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationSuggestionApproved, notes[0].Type)
	assert.Equal(t, "/tags/"+tag.ID, notes[0].Link)

	pushed := f.events.ofType(sse.EventNotification)
	require.Len(t, pushed, 1)
	assert.Equal(t, "user-1", pushed[0].UserID)
	assert.Len(t, f.events.ofType(sse.EventTagCreated), 1)
	assert.Len(t, f.events.ofType(sse.EventSuggestionResolved), 1)
}

func TestResolve_ApproveIsAtomic(t *testing.T) {
	for _, failOn := range []string{"DecrementPendingCount", "CreateNotification"} {
		t.Run(failOn, func(t *testing.T) {
			f := newFixture(t)
			sug := f.suggest(t, streetball())
			f.wire(&failingStore{Store: f.store, failOn: failOn})

			_, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionApprove})
			requireCode(t, err, domainerrors.CodeStorage)

			stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.SuggestionPending, stored.Status)
			assert.Empty(t, stored.CreatedTagID)

			_, err = f.store.FindActiveTagByName(f.ctx, "Streetball")
			assert.ErrorIs(t, err, store.ErrNotFound)

			assert.Equal(t, 1, f.pendingCount(t, "user-1"))

			notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
			require.NoError(t, err)
			assert.Empty(t, notes)
			assert.Empty(t, f.events.ofType(sse.EventNotification))
		})
	}
}

func TestResolve_SecondResolutionFails(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	_, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionApprove})
	require.NoError(t, err)

	_, err = f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionDeny})
	requireCode(t, err, domainerrors.CodeInvalidState)

	stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApproved, stored.Status)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))

	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestResolve_Deny(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	result, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{
		Action:         domain.ActionDeny,
		ModeratorNotes: "Too niche",
	})
	require.NoError(t, err)
	assert.Nil(t, result.Tag)
	assert.Equal(t, domain.SuggestionDenied, result.Suggestion.Status)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))

	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationSuggestionDenied, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Too niche")

	_, err = f.store.FindActiveTagByName(f.ctx, "Streetball")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestResolve_Merge(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	_, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionMerge})
	requireCode(t, err, domainerrors.CodeValidation)

	_, err = f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{
		Action:          domain.ActionMerge,
		MergedIntoTagID: "missing",
	})
	requireCode(t, err, domainerrors.CodeValidation)
	assert.Equal(t, 1, f.pendingCount(t, "user-1"))

	result, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{
		Action:          domain.ActionMerge,
		MergedIntoTagID: "basketball",
	})
	require.NoError(t, err)
	assert.Equal(t, "basketball", result.Tag.ID)

	stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionMerged, stored.Status)
	assert.Equal(t, "basketball", stored.MergedIntoID)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))

	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationSuggestionMerged, notes[0].Type)
	assert.Contains(t, notes[0].Message, "Basketball")
}

func TestResolve_Errors(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	_, err := f.suggestions.Resolve(f.ctx, "mod-1", "missing", ResolveRequest{Action: domain.ActionDeny})
	requireCode(t, err, domainerrors.CodeNotFound)

	_, err = f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: "archive"})
	requireCode(t, err, domainerrors.CodeValidation)

	_, err = f.suggestions.Resolve(f.ctx, "", sug.ID, ResolveRequest{Action: domain.ActionDeny})
	requireCode(t, err, domainerrors.CodeUnauthorized)
}

func TestResolve_ApproveRejectsNameTakenSinceSubmission(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	_, err := f.taxonomy.CreateTag(f.ctx, CreateTagRequest{
		Name:     "Streetball",
		Level:    domain.LevelSpecific,
		ParentID: "ball-games",
	})
	require.NoError(t, err)

	_, err = f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionApprove})
	requireCode(t, err, domainerrors.CodeDuplicate)

	stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPending())
}

func TestResolve_ApproveRejectsParentDeactivatedSinceSubmission(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	_, err := f.taxonomy.SetStatus(f.ctx, "ball-games", domain.TagStatusInactive)
	require.NoError(t, err)

	_, err = f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionApprove})
	requireCode(t, err, domainerrors.CodeValidation)

	stored, err := f.store.GetSuggestion(f.ctx, sug.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsPending())
	assert.Equal(t, 1, f.pendingCount(t, "user-1"))

	// Deny and merge do not create a tag, so they still go through.
	_, err = f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionDeny})
	require.NoError(t, err)
}

func TestResolve_CounterAlreadyZeroStillResolves(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())
	require.NoError(t, f.store.SetPendingCount(f.ctx, "user-1", 0))

	result, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionDeny})
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionDenied, result.Suggestion.Status)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))

	fixes, err := f.suggestions.ReconcilePendingCounts(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, fixes)
}

func TestResolve_PushFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())
	f.events.drop = true

	_, err := f.suggestions.Resolve(f.ctx, "mod-1", sug.ID, ResolveRequest{Action: domain.ActionDeny})
	require.NoError(t, err)

	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, notes, 1, "notification is persisted even when the push fails")
}

func TestResolve_ConcurrentResolutionsApplyOnce(t *testing.T) {
	f := newFixture(t)
	sug := f.suggest(t, streetball())

	const workers = 4
	errs := make(chan error, workers)
	for range workers {
		go func() {
			_, err := f.suggestions.Resolve(context.Background(), "mod-1", sug.ID, ResolveRequest{Action: domain.ActionDeny})
			errs <- err
		}()
	}

	succeeded := 0
	for range workers {
		if err := <-errs; err == nil {
			succeeded++
		} else {
			requireCode(t, err, domainerrors.CodeInvalidState)
		}
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.pendingCount(t, "user-1"))
	notes, err := f.store.ListNotifications(f.ctx, store.NotificationFilter{UserID: "user-1"})
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func TestPendingCountAndLists(t *testing.T) {
	f := newFixture(t)
	first := f.suggest(t, streetball())
	f.suggest(t, CreateSuggestionRequest{NameEn: "Padel", NameLv: "Padels", ParentTagIDs: []string{"ball-games"}})

	count, err := f.suggestions.PendingCount(f.ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, &PendingCount{Count: 2, Max: 5}, count)

	_, err = f.suggestions.Resolve(f.ctx, "mod-1", first.ID, ResolveRequest{Action: domain.ActionDeny})
	require.NoError(t, err)

	mine, err := f.suggestions.ListMine(f.ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	page, err := f.suggestions.List(f.ctx, ListSuggestionsRequest{Status: domain.SuggestionPending})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, defaultSuggestionPageSize, page.Limit)
	require.Len(t, page.Suggestions, 1)
	assert.Equal(t, "Padel", page.Suggestions[0].NameEn)

	_, err = f.suggestions.List(f.ctx, ListSuggestionsRequest{Status: "LOST"})
	requireCode(t, err, domainerrors.CodeValidation)
}

func TestReconcilePendingCounts(t *testing.T) {
	f := newFixture(t)
	f.suggest(t, streetball())
	require.NoError(t, f.store.SetPendingCount(f.ctx, "user-1", 4))
	require.NoError(t, f.store.SetPendingCount(f.ctx, "mod-1", 2))

	fixes, err := f.suggestions.ReconcilePendingCounts(f.ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []PendingCountFix{
		{UserID: "user-1", Was: 4, Now: 1},
		{UserID: "mod-1", Was: 2, Now: 0},
	}, fixes)

	assert.Equal(t, 1, f.pendingCount(t, "user-1"))
	assert.Equal(t, 0, f.pendingCount(t, "mod-1"))

	again, err := f.suggestions.ReconcilePendingCounts(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}
