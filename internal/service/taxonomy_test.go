package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
)

func TestTree(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.SetGroupTags(f.ctx, "group-1", []string{"basketball"}))
	require.NoError(t, f.store.SetEventTags(f.ctx, "event-1", []string{"basketball", "fitness"}))

	tree, err := f.taxonomy.Tree(f.ctx)
	require.NoError(t, err)

	require.Len(t, tree, 2)
	assert.Equal(t, "Culture", tree[0].Name)
	sports := tree[1]
	assert.Equal(t, "Sports", sports.Name)
	assert.Equal(t, 1, sports.TotalGroups)
	assert.Equal(t, 2, sports.TotalEvents)

	require.Len(t, sports.Children, 2)
	ballGames := sports.Children[0]
	assert.Equal(t, "Ball Games", ballGames.Name)
	require.Len(t, ballGames.Children, 1)
	assert.Equal(t, 1, ballGames.Children[0].GroupCount)
}

func TestTree_OmitsInactive(t *testing.T) {
	f := newFixture(t)

	_, err := f.taxonomy.SetStatus(f.ctx, "ball-games", domain.TagStatusInactive)
	require.NoError(t, err)

	tree, err := f.taxonomy.Tree(f.ctx)
	require.NoError(t, err)

	for _, n := range tree[1].Children {
		assert.NotEqual(t, "ball-games", n.ID)
	}
}

func TestGetTag(t *testing.T) {
	f := newFixture(t)

	detail, err := f.taxonomy.GetTag(f.ctx, "basketball")
	require.NoError(t, err)
	assert.Equal(t, "Basketball", detail.Tag.Name)
	require.Len(t, detail.Parents, 1)
	assert.Equal(t, "ball-games", detail.Parents[0].ParentID)
	assert.Equal(t, "Sports > Ball Games > Basketball", detail.Path.Display)

	_, err = f.taxonomy.GetTag(f.ctx, "missing")
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestCreateTag(t *testing.T) {
	f := newFixture(t)

	tag, err := f.taxonomy.CreateTag(f.ctx, CreateTagRequest{
		Name:     "  Volleyball ",
		NameLv:   "Volejbols",
		Level:    domain.LevelSpecific,
		ParentID: "ball-games",
	})
	require.NoError(t, err)
	assert.Equal(t, "Volleyball", tag.Name)
	assert.Equal(t, "volleyball", tag.Slug)
	assert.True(t, tag.IsActive())

	links, err := f.store.FindTagParents(f.ctx, store.TagParentFilter{TagIDs: []string{tag.ID}, PrimaryOnly: true})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "ball-games", links[0].ParentID)

	assert.Len(t, f.events.ofType(sse.EventTagCreated), 1)
}

func TestCreateTag_HierarchyRules(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  CreateTagRequest
	}{
		{"category with parent", CreateTagRequest{Name: "Arts", Level: domain.LevelCategory, ParentID: "sports"}},
		{"domain without parent", CreateTagRequest{Name: "Water", Level: domain.LevelDomain}},
		{"domain under domain", CreateTagRequest{Name: "Water", Level: domain.LevelDomain, ParentID: "fitness"}},
		{"tag under category", CreateTagRequest{Name: "Rowing", Level: domain.LevelSpecific, ParentID: "sports"}},
		{"unknown parent", CreateTagRequest{Name: "Rowing", Level: domain.LevelSpecific, ParentID: "missing"}},
		{"bad level", CreateTagRequest{Name: "Rowing", Level: 4, ParentID: "fitness"}},
		{"blank name", CreateTagRequest{Name: " ", Level: domain.LevelCategory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.taxonomy.CreateTag(f.ctx, tt.req)
			requireCode(t, err, domainerrors.CodeValidation)
		})
	}
}

func TestCreateTag_DuplicateName(t *testing.T) {
	f := newFixture(t)

	_, err := f.taxonomy.CreateTag(f.ctx, CreateTagRequest{
		Name:     "basketball",
		Level:    domain.LevelSpecific,
		ParentID: "fitness",
	})
	domainErr := requireCode(t, err, domainerrors.CodeDuplicate)
	assert.Equal(t, map[string]string{"existing_tag_id": "basketball"}, domainErr.Details)
}

func TestCreateTag_SlugCollisionGetsSuffix(t *testing.T) {
	f := newFixture(t)

	old := testTag("hiking-old", domain.LevelSpecific, "fitness", "Hiking")
	old.Slug = "hiking"
	old.Status = domain.TagStatusInactive
	require.NoError(t, f.store.CreateTag(f.ctx, old))

	tag, err := f.taxonomy.CreateTag(f.ctx, CreateTagRequest{
		Name:     "Hiking",
		Level:    domain.LevelSpecific,
		ParentID: "fitness",
	})
	require.NoError(t, err)
	assert.Equal(t, "hiking-2", tag.Slug)
}

func TestUpdateTag(t *testing.T) {
	f := newFixture(t)

	name := "Basketball 3x3"
	color := "amber"
	tag, err := f.taxonomy.UpdateTag(f.ctx, "basketball", UpdateTagRequest{Name: &name, ColorKey: &color})
	require.NoError(t, err)
	assert.Equal(t, "Basketball 3x3", tag.Name)
	assert.Equal(t, "basketball", tag.Slug, "slug never changes")

	stored, err := f.store.GetTag(f.ctx, "basketball")
	require.NoError(t, err)
	assert.Equal(t, "amber", stored.ColorKey)
	assert.Len(t, f.events.ofType(sse.EventTagUpdated), 1)

	taken := "Fitness"
	_, err = f.taxonomy.UpdateTag(f.ctx, "basketball", UpdateTagRequest{Name: &taken})
	requireCode(t, err, domainerrors.CodeDuplicate)

	bad := domain.TagStatus("ARCHIVED")
	_, err = f.taxonomy.UpdateTag(f.ctx, "basketball", UpdateTagRequest{Status: &bad})
	requireCode(t, err, domainerrors.CodeValidation)

	_, err = f.taxonomy.UpdateTag(f.ctx, "missing", UpdateTagRequest{Name: &name})
	requireCode(t, err, domainerrors.CodeNotFound)
}

func TestSetStatus_ReactivationChecksName(t *testing.T) {
	f := newFixture(t)

	_, err := f.taxonomy.SetStatus(f.ctx, "basketball", domain.TagStatusInactive)
	require.NoError(t, err)

	_, err = f.taxonomy.CreateTag(f.ctx, CreateTagRequest{
		Name:     "Basketball",
		Level:    domain.LevelSpecific,
		ParentID: "fitness",
	})
	require.NoError(t, err)

	_, err = f.taxonomy.SetStatus(f.ctx, "basketball", domain.TagStatusActive)
	requireCode(t, err, domainerrors.CodeDuplicate)
}

func TestAddParent(t *testing.T) {
	f := newFixture(t)

	link, err := f.taxonomy.AddParent(f.ctx, "basketball", "fitness")
	require.NoError(t, err)
	assert.False(t, link.IsPrimary)
	assert.Equal(t, "Sports", link.L1Category)

	_, err = f.taxonomy.AddParent(f.ctx, "basketball", "fitness")
	requireCode(t, err, domainerrors.CodeDuplicate)

	_, err = f.taxonomy.AddParent(f.ctx, "basketball", "ball-games")
	requireCode(t, err, domainerrors.CodeDuplicate)

	_, err = f.taxonomy.AddParent(f.ctx, "ball-games", "fitness")
	requireCode(t, err, domainerrors.CodeValidation)

	_, err = f.taxonomy.AddParent(f.ctx, "basketball", "sports")
	requireCode(t, err, domainerrors.CodeValidation)

	_, err = f.taxonomy.AddParent(f.ctx, "missing", "fitness")
	requireCode(t, err, domainerrors.CodeNotFound)

	// The tree still follows the primary edge only.
	tree, err := f.taxonomy.Tree(f.ctx)
	require.NoError(t, err)
	for _, domainNode := range tree[1].Children {
		if domainNode.ID == "fitness" {
			assert.Empty(t, domainNode.Children)
		}
	}
}
