package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/store"
)

func TestCreateAndGetTag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tag := makeTestTag("sports", domain.LevelCategory, "", "Sports")
	tag.NameLv = "Sports"
	tag.ColorKey = "orange"
	tag.Icon = "trophy"
	tag.Description = "Everything that gets you moving."

	if err := s.CreateTag(ctx, tag); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	got, err := s.GetTag(ctx, "sports")
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}

	if got.Name != "Sports" || got.Level != domain.LevelCategory || got.ParentID != "" {
		t.Errorf("unexpected tag: %+v", got)
	}
	if got.ColorKey != "orange" || got.Icon != "trophy" || got.Description != tag.Description {
		t.Errorf("display fields did not round-trip: %+v", got)
	}
	if got.Status != domain.TagStatusActive {
		t.Errorf("Status: got %q", got.Status)
	}
	// Timestamps should round-trip through RFC3339Nano.
	if got.CreatedAt.Unix() != tag.CreatedAt.Unix() {
		t.Errorf("CreatedAt: got %v, want %v", got.CreatedAt, tag.CreatedAt)
	}
}

func TestGetTag_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTag(context.Background(), "nope")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTag_DuplicateSlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateTag(ctx, makeTestTag("sports", domain.LevelCategory, "", "Sports")); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	dup := makeTestTag("other", domain.LevelCategory, "", "Sport")
	dup.Slug = "sports"
	if err := s.CreateTag(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestCreateTag_UnknownParent(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateTag(context.Background(), makeTestTag("ball-games", domain.LevelDomain, "missing", "Ball Games"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTag_WritesPrimaryLinkWithCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	links, err := s.FindTagParents(ctx, store.TagParentFilter{TagIDs: []string{"basketball", "ball-games"}})
	if err != nil {
		t.Fatalf("FindTagParents: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}

	byTag := map[string]*domain.TagParent{}
	for _, l := range links {
		byTag[l.TagID] = l
	}

	bb := byTag["basketball"]
	if bb == nil || !bb.IsPrimary || bb.ParentID != "ball-games" {
		t.Fatalf("unexpected basketball link: %+v", bb)
	}
	if bb.L1Category != "Sports" || bb.L1ColorKey != "orange" {
		t.Errorf("basketball link category: got %q/%q", bb.L1Category, bb.L1ColorKey)
	}
	if bb.Parent == nil || bb.Parent.Name != "Ball Games" {
		t.Errorf("parent not resolved: %+v", bb.Parent)
	}

	bg := byTag["ball-games"]
	if bg == nil || bg.L1Category != "Sports" {
		t.Errorf("ball-games link category: %+v", bg)
	}
}

func TestAddTagParent_SecondaryAndDuplicates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	if err := s.CreateTag(ctx, makeTestTag("fitness", domain.LevelDomain, "sports", "Fitness")); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	secondary := &domain.TagParent{ID: "tp-2", TagID: "basketball", ParentID: "fitness", CreatedAt: time.Now()}
	if err := s.AddTagParent(ctx, secondary); err != nil {
		t.Fatalf("AddTagParent: %v", err)
	}
	if secondary.L1Category != "Sports" {
		t.Errorf("L1Category: got %q", secondary.L1Category)
	}

	dup := &domain.TagParent{ID: "tp-3", TagID: "basketball", ParentID: "fitness", CreatedAt: time.Now()}
	if err := s.AddTagParent(ctx, dup); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for duplicate link, got %v", err)
	}

	// A second primary link for the same tag violates the partial unique index.
	secondPrimary := &domain.TagParent{ID: "tp-4", TagID: "ball-games", ParentID: "fitness", IsPrimary: true, CreatedAt: time.Now()}
	if err := s.AddTagParent(ctx, secondPrimary); !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists for second primary, got %v", err)
	}

	primaryOnly, err := s.FindTagParents(ctx, store.TagParentFilter{TagIDs: []string{"basketball"}, PrimaryOnly: true})
	if err != nil {
		t.Fatalf("FindTagParents: %v", err)
	}
	if len(primaryOnly) != 1 || primaryOnly[0].ParentID != "ball-games" {
		t.Errorf("expected only the primary link, got %+v", primaryOnly)
	}

	all, err := s.FindTagParents(ctx, store.TagParentFilter{TagIDs: []string{"basketball"}})
	if err != nil {
		t.Fatalf("FindTagParents: %v", err)
	}
	if len(all) != 2 || !all[0].IsPrimary {
		t.Errorf("expected primary first among 2 links, got %+v", all)
	}
}

func TestFindTags_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	inactive := makeTestTag("baseball", domain.LevelSpecific, "ball-games", "Baseball")
	inactive.Status = domain.TagStatusInactive
	if err := s.CreateTag(ctx, inactive); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	level3, err := s.FindTags(ctx, store.TagFilter{Level: domain.LevelSpecific, Status: domain.TagStatusActive})
	if err != nil {
		t.Fatalf("FindTags: %v", err)
	}
	if len(level3) != 1 || level3[0].ID != "basketball" {
		t.Errorf("expected only active basketball, got %+v", level3)
	}

	byParent, err := s.FindTags(ctx, store.TagFilter{ParentID: "ball-games"})
	if err != nil {
		t.Fatalf("FindTags: %v", err)
	}
	if len(byParent) != 2 {
		t.Errorf("expected 2 children of ball-games, got %d", len(byParent))
	}

	byIDs, err := s.FindTags(ctx, store.TagFilter{IDs: []string{"sports", "basketball", "missing"}})
	if err != nil {
		t.Fatalf("FindTags: %v", err)
	}
	if len(byIDs) != 2 {
		t.Errorf("expected 2 tags by id, got %d", len(byIDs))
	}
}

func TestFindTags_NameHintOrdersMatchesFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	for _, tag := range []*domain.Tag{
		makeTestTag("archery", domain.LevelSpecific, "ball-games", "Archery"),
		makeTestTag("volleyball", domain.LevelSpecific, "ball-games", "Volleyball"),
	} {
		if err := s.CreateTag(ctx, tag); err != nil {
			t.Fatalf("CreateTag: %v", err)
		}
	}

	got, err := s.FindTags(ctx, store.TagFilter{Level: domain.LevelSpecific, NameHint: "BALL", Limit: 2})
	if err != nil {
		t.Fatalf("FindTags: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 tags, got %d", len(got))
	}
	if got[0].ID != "basketball" || got[1].ID != "volleyball" {
		t.Errorf("expected substring matches first, got %s, %s", got[0].ID, got[1].ID)
	}
}

func TestFindActiveTagByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	chess := makeTestTag("chess", domain.LevelSpecific, "ball-games", "Chess")
	chess.NameLv = "Šahs"
	if err := s.CreateTag(ctx, chess); err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	tests := []struct {
		name  string
		names []string
		want  string
	}{
		{"english case-insensitive", []string{"BASKETBALL"}, "basketball"},
		{"latvian folded", []string{"", "ŠAHS"}, "chess"},
		{"no match", []string{"Curling"}, ""},
		{"only empty", []string{"", "  "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindActiveTagByName(ctx, tt.names...)
			if tt.want == "" {
				if !errors.Is(err, store.ErrNotFound) {
					t.Errorf("expected ErrNotFound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindActiveTagByName: %v", err)
			}
			if got.ID != tt.want {
				t.Errorf("got %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestFindActiveTagByName_IgnoresInactive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	tag, err := s.GetTag(ctx, "basketball")
	if err != nil {
		t.Fatalf("GetTag: %v", err)
	}
	tag.Status = domain.TagStatusInactive
	tag.Touch()
	if err := s.UpdateTag(ctx, tag); err != nil {
		t.Fatalf("UpdateTag: %v", err)
	}

	if _, err := s.FindActiveTagByName(ctx, "Basketball"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for inactive tag, got %v", err)
	}
}

func TestUpdateTag_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.UpdateTag(context.Background(), makeTestTag("ghost", domain.LevelCategory, "", "Ghost"))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTagUsage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	if err := s.SetGroupTags(ctx, "group-1", []string{"basketball", "sports"}); err != nil {
		t.Fatalf("SetGroupTags: %v", err)
	}
	if err := s.SetGroupTags(ctx, "group-2", []string{"basketball"}); err != nil {
		t.Fatalf("SetGroupTags: %v", err)
	}
	if err := s.SetEventTags(ctx, "event-1", []string{"basketball", "basketball"}); err != nil {
		t.Fatalf("SetEventTags: %v", err)
	}

	// Replacing a group's tags drops the old links.
	if err := s.SetGroupTags(ctx, "group-1", []string{"basketball"}); err != nil {
		t.Fatalf("SetGroupTags: %v", err)
	}

	usage, err := s.TagUsage(ctx)
	if err != nil {
		t.Fatalf("TagUsage: %v", err)
	}

	if got := usage["basketball"]; got.Groups != 2 || got.Events != 1 {
		t.Errorf("basketball usage: %+v", got)
	}
	if _, ok := usage["sports"]; ok {
		t.Errorf("sports should have no usage after replacement")
	}
}
