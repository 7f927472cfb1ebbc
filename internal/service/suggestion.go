package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/id"
	"github.com/kopa-app/kopa-server/internal/metrics"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
	"github.com/kopa-app/kopa-server/internal/taxonomy"
	"github.com/kopa-app/kopa-server/internal/validation"
)

// Moderation queue paging.
const (
	defaultSuggestionPageSize = 20
	maxSuggestionPageSize     = 100
)

// Rejection reasons recorded in metrics.
const (
	rejectQuota          = "quota"
	rejectValidation     = "validation"
	rejectDuplicateTag   = "duplicate_tag"
	rejectDuplicatePend  = "duplicate_suggestion"
	rejectInvalidParents = "invalid_parent"
)

// SuggestionService runs the tag suggestion workflow: members propose
// level-3 tags and moderators approve, deny or merge them.
type SuggestionService struct {
	store         store.Store
	index         TagIndex
	events        EventEmitter
	notifications *NotificationService
	validator     *validation.Validator
	maxPending    int
	logger        *slog.Logger
}

// NewSuggestionService creates a new suggestion service. index may be nil.
func NewSuggestionService(
	s store.Store,
	index TagIndex,
	events EventEmitter,
	notifications *NotificationService,
	v *validation.Validator,
	limits config.TaxonomyConfig,
	logger *slog.Logger,
) *SuggestionService {
	return &SuggestionService{
		store:         s,
		index:         index,
		events:        emitterOrNop(events),
		notifications: notifications,
		validator:     v,
		maxPending:    limits.MaxPendingSuggestions,
		logger:        logger,
	}
}

// CreateSuggestionRequest is a member's proposal for a new level-3 tag.
// The first parent becomes the primary parent on approval.
type CreateSuggestionRequest struct {
	NameEn       string   `json:"name_en" validate:"notblank,max=100"`
	NameLv       string   `json:"name_lv" validate:"notblank,max=100"`
	ParentTagIDs []string `json:"parent_tag_ids" validate:"min=1,max=5,unique,dive,notblank"`
}

// Create records a PENDING suggestion for submitterID.
//
// Checks run in a fixed order and stop at the first failure: the submitter,
// the quota, the request fields, existing tags, pending suggestions and
// finally the parents. The counter increment is guarded again inside the
// transaction, so concurrent submissions cannot exceed the quota.
func (s *SuggestionService) Create(ctx context.Context, submitterID string, req CreateSuggestionRequest) (*domain.TagSuggestion, error) {
	if submitterID == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}

	user, err := s.store.GetUser(ctx, submitterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("unknown user")
		}
		return nil, storageErr(err, "failed to load user")
	}

	if user.PendingSuggestionCount >= s.maxPending {
		metrics.RecordSuggestionRejected(rejectQuota)
		return nil, s.quotaError()
	}

	if err := s.validator.Validate(req); err != nil {
		metrics.RecordSuggestionRejected(rejectValidation)
		return nil, err
	}

	nameEn := strings.TrimSpace(req.NameEn)
	nameLv := strings.TrimSpace(req.NameLv)
	parentIDs := make([]string, len(req.ParentTagIDs))
	for i, p := range req.ParentTagIDs {
		parentIDs[i] = strings.TrimSpace(p)
	}

	existing, err := s.store.FindActiveTagByName(ctx, nameEn, nameLv)
	switch {
	case err == nil:
		metrics.RecordSuggestionRejected(rejectDuplicateTag)
		return nil, domainerrors.Duplicatef("tag %q already exists", existing.Name).
			WithDetails(map[string]string{"existing_tag_id": existing.ID})
	case !errors.Is(err, store.ErrNotFound):
		return nil, storageErr(err, "failed to check tag names")
	}

	pending, err := s.store.FindPendingSuggestionByName(ctx, nameEn, nameLv)
	switch {
	case err == nil:
		metrics.RecordSuggestionRejected(rejectDuplicatePend)
		return nil, domainerrors.Duplicatef("%q has already been suggested", pending.NameEn).
			WithDetails(map[string]string{"existing_suggestion_id": pending.ID})
	case !errors.Is(err, store.ErrNotFound):
		return nil, storageErr(err, "failed to check pending suggestions")
	}

	if err := s.checkParents(ctx, parentIDs); err != nil {
		metrics.RecordSuggestionRejected(rejectInvalidParents)
		return nil, err
	}

	suggestionID, err := id.Generate(id.PrefixSuggestion)
	if err != nil {
		return nil, fmt.Errorf("generate suggestion ID: %w", err)
	}
	now := time.Now()
	suggestion := &domain.TagSuggestion{
		ID:           suggestionID,
		NameEn:       nameEn,
		NameLv:       nameLv,
		Level:        domain.LevelSpecific,
		ParentTagIDs: parentIDs,
		SubmitterID:  submitterID,
		Status:       domain.SuggestionPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.store.RunAtomic(ctx, func(tx store.Store) error {
		if err := tx.IncrementPendingCount(ctx, submitterID, s.maxPending); err != nil {
			if errors.Is(err, store.ErrQuotaExceeded) {
				metrics.RecordSuggestionRejected(rejectQuota)
				return s.quotaError()
			}
			return storageErr(err, "failed to reserve suggestion quota")
		}
		if err := tx.CreateSuggestion(ctx, suggestion); err != nil {
			return storageErr(err, "failed to create suggestion")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSuggestionCreated()
	s.events.Emit(sse.NewSuggestionCreatedEvent(suggestion))

	s.logger.Info("tag suggestion created",
		"suggestion_id", suggestion.ID,
		"submitter_id", submitterID,
		"name_en", nameEn,
		"parents", len(parentIDs),
	)

	return suggestion, nil
}

func (s *SuggestionService) quotaError() error {
	return domainerrors.QuotaExceeded(
		fmt.Sprintf("you can have at most %d pending suggestions", s.maxPending)).
		WithDetails(map[string]int{"max": s.maxPending})
}

// checkParents requires every id to name an ACTIVE level-2 tag.
func (s *SuggestionService) checkParents(ctx context.Context, parentIDs []string) error {
	parents, err := s.store.FindTags(ctx, store.TagFilter{IDs: parentIDs})
	if err != nil {
		return storageErr(err, "failed to load parent tags")
	}

	byID := make(map[string]*domain.Tag, len(parents))
	for _, p := range parents {
		byID[p.ID] = p
	}

	details := make(map[string]string)
	for i, pid := range parentIDs {
		p, ok := byID[pid]
		if !ok || !p.IsActive() || p.Level != domain.LevelDomain {
			details[fmt.Sprintf("parent_tag_ids[%d]", i)] = "must be an active level 2 tag"
		}
	}
	if len(details) > 0 {
		return domainerrors.ValidationWithDetails("invalid parent tags", details)
	}
	return nil
}

// ResolveRequest is a moderator decision on a suggestion.
type ResolveRequest struct {
	Action          domain.ModerationAction `json:"action" validate:"required,oneof=approve deny merge"`
	ModeratorNotes  string                  `json:"moderator_notes,omitempty" validate:"max=1000"`
	MergedIntoTagID string                  `json:"merged_into_tag_id,omitempty" validate:"required_if=Action merge"`
}

// ResolveResult reports the outcome of a resolution.
type ResolveResult struct {
	Suggestion   *domain.TagSuggestion `json:"suggestion"`
	Tag          *domain.Tag           `json:"tag,omitempty"` // created or merged-into tag
	Notification *domain.Notification  `json:"-"`
}

// Resolve moves a PENDING suggestion to APPROVED, DENIED or MERGED.
//
// The suggestion write, the counter decrement, the notification row and,
// for approvals, the new tag commit together or not at all. The suggestion
// write is a compare-and-set, so a concurrent resolution fails with
// INVALID_STATE. The notification is pushed to live clients after commit.
func (s *SuggestionService) Resolve(ctx context.Context, moderatorID, suggestionID string, req ResolveRequest) (*ResolveResult, error) {
	if moderatorID == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	req.MergedIntoTagID = strings.TrimSpace(req.MergedIntoTagID)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	status, _ := req.Action.ResultStatus()

	suggestion, err := s.store.GetSuggestion(ctx, suggestionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.NotFoundf("suggestion %s not found", suggestionID)
		}
		return nil, storageErr(err, "failed to load suggestion")
	}
	if !suggestion.IsPending() {
		return nil, domainerrors.InvalidStatef("suggestion is already %s", strings.ToLower(string(suggestion.Status)))
	}

	var target *domain.Tag
	if req.Action == domain.ActionMerge {
		target, err = s.store.GetTag(ctx, req.MergedIntoTagID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.ValidationWithDetails("unknown merge target",
					map[string]string{"merged_into_tag_id": "does not name an existing tag"})
			}
			return nil, storageErr(err, "failed to load merge target")
		}
	}

	res := domain.Resolution{
		Status:         status,
		ModeratorID:    moderatorID,
		ModeratorNotes: strings.TrimSpace(req.ModeratorNotes),
		ModeratedAt:    time.Now(),
	}
	if target != nil {
		res.MergedIntoID = target.ID
	}

	result := &ResolveResult{Suggestion: suggestion, Tag: target}

	err = s.store.RunAtomic(ctx, func(tx store.Store) error {
		if req.Action == domain.ActionApprove {
			tag, err := s.newTagFromSuggestion(ctx, tx, suggestion)
			if err != nil {
				return err
			}
			if err := createWithUniqueSlug(ctx, tx, tag, taxonomy.Slugify(tag.Name)); err != nil {
				return err
			}
			res.CreatedTagID = tag.ID
			result.Tag = tag
		}

		if err := tx.ResolveSuggestion(ctx, suggestion.ID, res); err != nil {
			switch {
			case errors.Is(err, store.ErrNotPending):
				return domainerrors.InvalidState("suggestion was already resolved")
			case errors.Is(err, store.ErrNotFound):
				return domainerrors.NotFoundf("suggestion %s not found", suggestion.ID)
			}
			return storageErr(err, "failed to resolve suggestion")
		}

		decremented, err := tx.DecrementPendingCount(ctx, suggestion.SubmitterID)
		if err != nil {
			return storageErr(err, "failed to release suggestion quota")
		}
		if !decremented {
			metrics.RecordPendingCountDrift()
			s.logger.Warn("pending count already zero, counter needs reconcile",
				"user_id", suggestion.SubmitterID,
				"suggestion_id", suggestion.ID,
			)
		}

		n, err := s.newNotification(suggestion, req.Action, res, result.Tag)
		if err != nil {
			return err
		}
		if err := tx.CreateNotification(ctx, n); err != nil {
			return storageErr(err, "failed to create notification")
		}
		result.Notification = n
		return nil
	})
	if err != nil {
		return nil, err
	}

	applyResolution(suggestion, res)
	s.afterResolve(ctx, result, req.Action)

	s.logger.Info("tag suggestion resolved",
		"suggestion_id", suggestion.ID,
		"action", string(req.Action),
		"moderator_id", moderatorID,
		"created_tag_id", res.CreatedTagID,
		"merged_into_tag_id", res.MergedIntoID,
	)

	return result, nil
}

// newTagFromSuggestion builds the level-3 tag an approval creates, under
// the first requested parent. The parent must still be an ACTIVE level-2
// tag and the name must still be free.
func (s *SuggestionService) newTagFromSuggestion(ctx context.Context, tx store.Store, sug *domain.TagSuggestion) (*domain.Tag, error) {
	parentID := sug.PrimaryParentID()
	parent, err := tx.GetTag(ctx, parentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Validationf("parent tag %s no longer exists", parentID)
		}
		return nil, storageErr(err, "failed to load parent tag")
	}
	if !parent.IsActive() || parent.Level != domain.LevelDomain {
		return nil, domainerrors.Validationf("parent tag %s is not an active level 2 tag", parentID)
	}

	existing, err := tx.FindActiveTagByName(ctx, sug.NameEn, sug.NameLv)
	switch {
	case err == nil:
		return nil, domainerrors.Duplicatef("tag %q already exists", existing.Name).
			WithDetails(map[string]string{"existing_tag_id": existing.ID})
	case !errors.Is(err, store.ErrNotFound):
		return nil, storageErr(err, "failed to check tag names")
	}

	tagID, err := id.Generate(id.PrefixTag)
	if err != nil {
		return nil, fmt.Errorf("generate tag ID: %w", err)
	}
	tag := &domain.Tag{
		ID:       tagID,
		Name:     sug.NameEn,
		NameLv:   sug.NameLv,
		Level:    domain.LevelSpecific,
		ParentID: parentID,
		Status:   domain.TagStatusActive,
	}
	tag.InitTimestamps()
	return tag, nil
}

func (s *SuggestionService) newNotification(sug *domain.TagSuggestion, action domain.ModerationAction, res domain.Resolution, tag *domain.Tag) (*domain.Notification, error) {
	notificationID, err := id.Generate(id.PrefixNotification)
	if err != nil {
		return nil, fmt.Errorf("generate notification ID: %w", err)
	}

	n := &domain.Notification{
		ID:        notificationID,
		UserID:    sug.SubmitterID,
		CreatedAt: res.ModeratedAt,
	}

	switch action {
	case domain.ActionApprove:
		n.Type = domain.NotificationSuggestionApproved
		n.Title = "Tag suggestion approved"
		n.Message = fmt.Sprintf("Your suggestion %q is now a tag.", sug.NameEn)
		n.Link = "/tags/" + tag.ID
	case domain.ActionDeny:
		n.Type = domain.NotificationSuggestionDenied
		n.Title = "Tag suggestion denied"
		n.Message = fmt.Sprintf("Your suggestion %q was not accepted.", sug.NameEn)
		if res.ModeratorNotes != "" {
			n.Message += " Reason: " + res.ModeratorNotes
		}
	case domain.ActionMerge:
		n.Type = domain.NotificationSuggestionMerged
		n.Title = "Tag suggestion merged"
		n.Message = fmt.Sprintf("Your suggestion %q was merged into %q.", sug.NameEn, tag.Name)
		n.Link = "/tags/" + tag.ID
	}
	return n, nil
}

// afterResolve runs the best-effort side effects of a committed resolution.
func (s *SuggestionService) afterResolve(ctx context.Context, result *ResolveResult, action domain.ModerationAction) {
	if result.Notification != nil && s.notifications != nil {
		s.notifications.Deliver(ctx, result.Notification)
	}

	if action == domain.ActionApprove && result.Tag != nil {
		if s.index != nil {
			if err := s.index.IndexTag(result.Tag); err != nil {
				s.logger.Warn("failed to index approved tag", "tag_id", result.Tag.ID, "error", err)
			}
		}
		s.events.Emit(sse.NewTagCreatedEvent(result.Tag))
	}

	s.events.Emit(sse.NewSuggestionResolvedEvent(result.Suggestion))
	metrics.RecordSuggestionResolved(string(action))
}

func applyResolution(sug *domain.TagSuggestion, res domain.Resolution) {
	at := res.ModeratedAt
	sug.Status = res.Status
	sug.ModeratorID = res.ModeratorID
	sug.ModeratorNotes = res.ModeratorNotes
	sug.MergedIntoID = res.MergedIntoID
	sug.CreatedTagID = res.CreatedTagID
	sug.ModeratedAt = &at
	sug.UpdatedAt = at
}

// PendingCount is a user's pending suggestion count and the quota.
type PendingCount struct {
	Count int `json:"count"`
	Max   int `json:"max"`
}

// PendingCount returns how many suggestions userID has waiting for review.
func (s *SuggestionService) PendingCount(ctx context.Context, userID string) (*PendingCount, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("unknown user")
		}
		return nil, storageErr(err, "failed to load user")
	}
	return &PendingCount{Count: user.PendingSuggestionCount, Max: s.maxPending}, nil
}

// ListMine returns every suggestion userID has made, newest first.
func (s *SuggestionService) ListMine(ctx context.Context, userID string) ([]*domain.TagSuggestion, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	list, _, err := s.store.FindSuggestions(ctx, store.SuggestionFilter{SubmitterID: userID})
	if err != nil {
		return nil, storageErr(err, "failed to list suggestions")
	}
	return list, nil
}

// ListSuggestionsRequest pages through the moderation queue.
type ListSuggestionsRequest struct {
	Status domain.SuggestionStatus `json:"status,omitempty"`
	Limit  int                     `json:"limit,omitempty" validate:"gte=0"`
	Offset int                     `json:"offset,omitempty" validate:"gte=0"`
}

// SuggestionPage is one page of the moderation queue.
type SuggestionPage struct {
	Suggestions []*domain.TagSuggestion `json:"suggestions"`
	Total       int                     `json:"total"`
	Limit       int                     `json:"limit"`
	Offset      int                     `json:"offset"`
}

// List returns suggestions for moderators, optionally filtered by status.
func (s *SuggestionService) List(ctx context.Context, req ListSuggestionsRequest) (*SuggestionPage, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.Status != "" && !req.Status.Valid() {
		return nil, domainerrors.ValidationWithDetails("invalid status",
			map[string]string{"status": "must be one of: PENDING APPROVED DENIED MERGED"})
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultSuggestionPageSize
	}
	limit = min(limit, maxSuggestionPageSize)

	list, total, err := s.store.FindSuggestions(ctx, store.SuggestionFilter{
		Status: req.Status,
		Limit:  limit,
		Offset: req.Offset,
	})
	if err != nil {
		return nil, storageErr(err, "failed to list suggestions")
	}

	return &SuggestionPage{
		Suggestions: list,
		Total:       total,
		Limit:       limit,
		Offset:      req.Offset,
	}, nil
}

// PendingCountFix records one corrected counter.
type PendingCountFix struct {
	UserID string `json:"user_id"`
	Was    int    `json:"was"`
	Now    int    `json:"now"`
}

// ReconcilePendingCounts recomputes every user's pending counter from the
// PENDING suggestion rows and returns the users whose counter was wrong.
func (s *SuggestionService) ReconcilePendingCounts(ctx context.Context) ([]PendingCountFix, error) {
	fixes := []PendingCountFix{}

	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return storageErr(err, "failed to list users")
		}
		actual, err := tx.CountPendingByUser(ctx)
		if err != nil {
			return storageErr(err, "failed to count pending suggestions")
		}

		for _, u := range users {
			want := actual[u.ID]
			if u.PendingSuggestionCount == want {
				continue
			}
			if err := tx.SetPendingCount(ctx, u.ID, want); err != nil {
				return storageErr(err, "failed to set pending count")
			}
			fixes = append(fixes, PendingCountFix{UserID: u.ID, Was: u.PendingSuggestionCount, Now: want})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(fixes) > 0 {
		s.logger.Warn("pending suggestion counters corrected", "users", len(fixes))
	}
	return fixes, nil
}
