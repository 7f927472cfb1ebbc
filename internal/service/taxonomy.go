package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/id"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
	"github.com/kopa-app/kopa-server/internal/taxonomy"
	"github.com/kopa-app/kopa-server/internal/validation"
)

// maxSlugAttempts bounds the numeric suffixes tried when a slug is taken.
const maxSlugAttempts = 5

// TaxonomyService serves the category tree and moderator tag management.
type TaxonomyService struct {
	store     store.Store
	index     TagIndex
	events    EventEmitter
	validator *validation.Validator
	logger    *slog.Logger
}

// NewTaxonomyService creates a new taxonomy service. index may be nil.
func NewTaxonomyService(s store.Store, index TagIndex, events EventEmitter, v *validation.Validator, logger *slog.Logger) *TaxonomyService {
	return &TaxonomyService{
		store:     s,
		index:     index,
		events:    emitterOrNop(events),
		validator: v,
		logger:    logger,
	}
}

// Tree returns the ACTIVE taxonomy as a forest of category nodes with
// group and event counts.
func (s *TaxonomyService) Tree(ctx context.Context) ([]*taxonomy.Node, error) {
	tags, err := s.store.FindTags(ctx, store.TagFilter{Status: domain.TagStatusActive})
	if err != nil {
		return nil, storageErr(err, "failed to load tags")
	}

	usage, err := s.store.TagUsage(ctx)
	if err != nil {
		return nil, storageErr(err, "failed to load tag usage")
	}

	return taxonomy.BuildTree(tags, usage), nil
}

// TagDetail is a tag with its parent links and breadcrumb.
type TagDetail struct {
	Tag     *domain.Tag         `json:"tag"`
	Parents []*domain.TagParent `json:"parents"`
	Path    taxonomy.Path       `json:"path"`
}

// GetTag returns a tag with all of its parent links.
func (s *TaxonomyService) GetTag(ctx context.Context, tagID string) (*TagDetail, error) {
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("tag %s not found", tagID)
		}
		return nil, storageErr(err, "failed to load tag")
	}

	parents, err := s.store.FindTagParents(ctx, store.TagParentFilter{TagIDs: []string{tagID}})
	if err != nil {
		return nil, storageErr(err, "failed to load tag parents")
	}

	chain, err := loadChain(ctx, s.store, []*domain.Tag{tag})
	if err != nil {
		return nil, err
	}

	return &TagDetail{Tag: tag, Parents: parents, Path: chain.ResolvePath(tag)}, nil
}

// CreateTagRequest contains the fields of a moderator-created tag.
type CreateTagRequest struct {
	Name        string          `json:"name" validate:"notblank,max=100"`
	NameLv      string          `json:"name_lv,omitempty" validate:"max=100"`
	Level       domain.TagLevel `json:"level" validate:"min=1,max=3"`
	ParentID    string          `json:"parent_id,omitempty"`
	ColorKey    string          `json:"color_key,omitempty" validate:"max=32"`
	Icon        string          `json:"icon,omitempty" validate:"max=64"`
	Description string          `json:"description,omitempty" validate:"max=500"`
}

// CreateTag adds a tag to the taxonomy. Categories have no parent; every
// other level hangs under an ACTIVE tag exactly one level up.
func (s *TaxonomyService) CreateTag(ctx context.Context, req CreateTagRequest) (*domain.Tag, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.NameLv = strings.TrimSpace(req.NameLv)
	req.ParentID = strings.TrimSpace(req.ParentID)

	if req.Level == domain.LevelCategory && req.ParentID != "" {
		return nil, domainerrors.ValidationWithDetails("categories cannot have a parent",
			map[string]string{"parent_id": "must be empty for level 1"})
	}
	if req.Level > domain.LevelCategory {
		if req.ParentID == "" {
			return nil, domainerrors.ValidationWithDetails("parent is required",
				map[string]string{"parent_id": "is required"})
		}
		if _, err := s.requireParent(ctx, req.ParentID, req.Level-1); err != nil {
			return nil, err
		}
	}

	if err := s.ensureNameFree(ctx, "", req.Name, req.NameLv); err != nil {
		return nil, err
	}

	baseSlug := taxonomy.Slugify(req.Name)
	if baseSlug == "" {
		return nil, domainerrors.ValidationWithDetails("name has no usable characters",
			map[string]string{"name": "must contain letters or digits"})
	}

	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, fmt.Errorf("generate tag ID: %w", err)
	}

	tag := &domain.Tag{
		ID:          tagID,
		Name:        req.Name,
		NameLv:      req.NameLv,
		Level:       req.Level,
		ParentID:    req.ParentID,
		Status:      domain.TagStatusActive,
		ColorKey:    req.ColorKey,
		Icon:        req.Icon,
		Description: req.Description,
	}
	tag.InitTimestamps()

	if err := createWithUniqueSlug(ctx, s.store, tag, baseSlug); err != nil {
		return nil, err
	}

	s.afterTagChange(tag, true)

	s.logger.Info("tag created",
		"tag_id", tag.ID,
		"name", tag.Name,
		"level", int(tag.Level),
		"parent_id", tag.ParentID,
	)

	return tag, nil
}

// UpdateTagRequest changes display fields or status. Nil fields are kept.
type UpdateTagRequest struct {
	Name        *string           `json:"name,omitempty" validate:"omitnil,notblank,max=100"`
	NameLv      *string           `json:"name_lv,omitempty" validate:"omitnil,max=100"`
	ColorKey    *string           `json:"color_key,omitempty" validate:"omitnil,max=32"`
	Icon        *string           `json:"icon,omitempty" validate:"omitnil,max=64"`
	Description *string           `json:"description,omitempty" validate:"omitnil,max=500"`
	Status      *domain.TagStatus `json:"status,omitempty"`
}

// UpdateTag applies a partial update. The slug and the hierarchy position
// never change.
func (s *TaxonomyService) UpdateTag(ctx context.Context, tagID string, req UpdateTagRequest) (*domain.Tag, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, domainerrors.ValidationWithDetails("invalid status",
			map[string]string{"status": "must be one of: ACTIVE INACTIVE"})
	}

	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("tag %s not found", tagID)
		}
		return nil, storageErr(err, "failed to load tag")
	}

	if req.Name != nil {
		tag.Name = strings.TrimSpace(*req.Name)
	}
	if req.NameLv != nil {
		tag.NameLv = strings.TrimSpace(*req.NameLv)
	}
	if req.ColorKey != nil {
		tag.ColorKey = *req.ColorKey
	}
	if req.Icon != nil {
		tag.Icon = *req.Icon
	}
	if req.Description != nil {
		tag.Description = *req.Description
	}
	if req.Status != nil {
		tag.Status = *req.Status
	}

	if (req.Name != nil || req.NameLv != nil || req.Status != nil) && tag.IsActive() {
		if err := s.ensureNameFree(ctx, tag.ID, tag.Name, tag.NameLv); err != nil {
			return nil, err
		}
	}

	tag.Touch()
	if err := s.store.UpdateTag(ctx, tag); err != nil {
		return nil, storageErr(err, "failed to update tag")
	}

	s.afterTagChange(tag, false)
	s.logger.Info("tag updated", "tag_id", tag.ID, "status", string(tag.Status))

	return tag, nil
}

// SetStatus activates or deactivates a tag.
func (s *TaxonomyService) SetStatus(ctx context.Context, tagID string, status domain.TagStatus) (*domain.Tag, error) {
	return s.UpdateTag(ctx, tagID, UpdateTagRequest{Status: &status})
}

// AddParent links a level-3 tag to an additional level-2 parent.
// Secondary links carry metadata only; the tree keeps using the primary edge.
func (s *TaxonomyService) AddParent(ctx context.Context, tagID, parentID string) (*domain.TagParent, error) {
	tag, err := s.store.GetTag(ctx, tagID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("tag %s not found", tagID)
		}
		return nil, storageErr(err, "failed to load tag")
	}
	if tag.Level != domain.LevelSpecific {
		return nil, domainerrors.Validation("only level 3 tags can have additional parents")
	}
	if parentID == tag.ParentID {
		return nil, domainerrors.Duplicate("tag already has this parent")
	}
	if _, err := s.requireParent(ctx, parentID, domain.LevelDomain); err != nil {
		return nil, err
	}

	linkID, err := id.Generate(id.PrefixTagParent)
	if err != nil {
		return nil, fmt.Errorf("generate link ID: %w", err)
	}
	link := &domain.TagParent{
		ID:        linkID,
		TagID:     tag.ID,
		ParentID:  parentID,
		IsPrimary: false,
		CreatedAt: time.Now(),
	}

	if err := s.store.AddTagParent(ctx, link); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.Duplicate("tag already has this parent")
		}
		return nil, storageErr(err, "failed to add tag parent")
	}

	s.logger.Info("secondary parent added", "tag_id", tag.ID, "parent_id", parentID)
	return link, nil
}

// requireParent loads parentID and checks it is ACTIVE at the given level.
func (s *TaxonomyService) requireParent(ctx context.Context, parentID string, level domain.TagLevel) (*domain.Tag, error) {
	parent, err := s.store.GetTag(ctx, parentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.ValidationWithDetails("unknown parent",
				map[string]string{"parent_id": "does not name an existing tag"})
		}
		return nil, storageErr(err, "failed to load parent tag")
	}
	if !parent.IsActive() || parent.Level != level {
		return nil, domainerrors.ValidationWithDetails("invalid parent",
			map[string]string{"parent_id": fmt.Sprintf("must be an active level %d tag", level)})
	}
	return parent, nil
}

// ensureNameFree rejects names already used by another ACTIVE tag.
func (s *TaxonomyService) ensureNameFree(ctx context.Context, selfID string, names ...string) error {
	existing, err := s.store.FindActiveTagByName(ctx, names...)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return storageErr(err, "failed to check tag names")
	case existing.ID == selfID:
		return nil
	}
	return domainerrors.Duplicatef("tag %q already exists", existing.Name).
		WithDetails(map[string]string{"existing_tag_id": existing.ID})
}

// afterTagChange keeps the search index and live clients current.
// Both are best-effort.
func (s *TaxonomyService) afterTagChange(tag *domain.Tag, created bool) {
	if s.index != nil {
		if err := s.index.IndexTag(tag); err != nil {
			s.logger.Warn("failed to index tag", "tag_id", tag.ID, "error", err)
		}
	}
	if created {
		s.events.Emit(sse.NewTagCreatedEvent(tag))
	} else {
		s.events.Emit(sse.NewTagUpdatedEvent(tag))
	}
}

// createWithUniqueSlug inserts tag, appending -2, -3, ... to baseSlug
// while the slug is taken.
func createWithUniqueSlug(ctx context.Context, st store.Store, tag *domain.Tag, baseSlug string) error {
	if baseSlug == "" {
		baseSlug = strings.ToLower(tag.ID)
	}
	for attempt := 1; attempt <= maxSlugAttempts; attempt++ {
		tag.Slug = baseSlug
		if attempt > 1 {
			tag.Slug = fmt.Sprintf("%s-%d", baseSlug, attempt)
		}

		err := st.CreateTag(ctx, tag)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrAlreadyExists):
			continue
		case errors.Is(err, store.ErrNotFound):
			return domainerrors.ValidationWithDetails("unknown parent",
				map[string]string{"parent_id": "does not name an existing tag"})
		default:
			return storageErr(err, "failed to create tag")
		}
	}
	return domainerrors.Duplicatef("slug %q is taken", baseSlug)
}

// loadChain fetches the primary links and ancestors needed to resolve the
// paths of tags. Each round climbs one level.
func loadChain(ctx context.Context, st store.Store, tags []*domain.Tag) (taxonomy.Chain, error) {
	known := make(map[string]*domain.Tag, len(tags))
	for _, t := range tags {
		known[t.ID] = t
	}

	var links []*domain.TagParent
	frontier := tags
	for round := 0; round < 2 && len(frontier) > 0; round++ {
		var ids []string
		for _, t := range frontier {
			if t.Level > domain.LevelCategory {
				ids = append(ids, t.ID)
			}
		}
		if len(ids) == 0 {
			break
		}

		found, err := st.FindTagParents(ctx, store.TagParentFilter{TagIDs: ids, PrimaryOnly: true})
		if err != nil {
			return taxonomy.Chain{}, storageErr(err, "failed to load tag parents")
		}
		links = append(links, found...)

		linked := make(map[string]bool, len(found))
		var next []*domain.Tag
		for _, l := range found {
			linked[l.TagID] = true
			if l.Parent != nil && known[l.Parent.ID] == nil {
				known[l.Parent.ID] = l.Parent
				next = append(next, l.Parent)
			}
		}

		// Tags without a link row fall back to the legacy parent pointer.
		var missing []string
		for _, t := range frontier {
			if !linked[t.ID] && t.ParentID != "" && known[t.ParentID] == nil {
				missing = append(missing, t.ParentID)
			}
		}
		if len(missing) > 0 {
			parents, err := st.FindTags(ctx, store.TagFilter{IDs: missing})
			if err != nil {
				return taxonomy.Chain{}, storageErr(err, "failed to load parent tags")
			}
			for _, p := range parents {
				known[p.ID] = p
				next = append(next, p)
			}
		}

		frontier = next
	}

	all := make([]*domain.Tag, 0, len(known))
	for _, t := range known {
		all = append(all, t)
	}
	return taxonomy.NewChain(all, links), nil
}
