package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/service"
)

func (s *Server) registerSuggestionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "suggestTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/tags/suggest",
		Summary:       "Suggest tag",
		Description:   "Submits a new level 3 tag for moderator review. Each user may have a limited number of pending suggestions.",
		Tags:          []string{"Suggestions"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleSuggestTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPendingSuggestionCount",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/suggest/count",
		Summary:     "Pending suggestion count",
		Description: "Returns how many of the caller's suggestions await review and the allowed maximum",
		Tags:        []string{"Suggestions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetPendingSuggestionCount)

	huma.Register(s.api, huma.Operation{
		OperationID: "listMySuggestions",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/suggest/mine",
		Summary:     "My suggestions",
		Description: "Returns the caller's suggestions, newest first",
		Tags:        []string{"Suggestions"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListMySuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminListSuggestions",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/tag-suggestions",
		Summary:     "Review queue",
		Description: "Lists suggestions for review, optionally filtered by status. Moderator only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminListSuggestions)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminResolveSuggestion",
		Method:      http.MethodPatch,
		Path:        "/api/v1/admin/tag-suggestions/{id}",
		Summary:     "Resolve suggestion",
		Description: "Approves, denies or merges a pending suggestion and notifies the submitter. Moderator only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminResolveSuggestion)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminReconcileSuggestionCounts",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/tag-suggestions/reconcile",
		Summary:     "Reconcile pending counts",
		Description: "Recomputes every user's pending suggestion count from the suggestions table. Admin only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminReconcileSuggestionCounts)
}

// === DTOs ===

// SuggestTagBody is the request body for suggesting a tag.
type SuggestTagBody struct {
	NameEn       string   `json:"name_en" required:"false" doc:"English name"`
	NameLv       string   `json:"name_lv" required:"false" doc:"Latvian name"`
	ParentTagIDs []string `json:"parent_tag_ids" required:"false" doc:"Level 2 parents; the first becomes the primary parent"`
}

// SuggestTagInput wraps the suggest request for Huma.
type SuggestTagInput struct {
	Body SuggestTagBody
}

// SuggestionOutput wraps a suggestion for Huma.
type SuggestionOutput struct {
	Body *domain.TagSuggestion
}

// PendingCountOutput wraps the pending count for Huma.
type PendingCountOutput struct {
	Body *service.PendingCount
}

// SuggestionListResponse contains a list of suggestions.
type SuggestionListResponse struct {
	Suggestions []*domain.TagSuggestion `json:"suggestions" doc:"Suggestions, newest first"`
}

// SuggestionListOutput wraps a suggestion list for Huma.
type SuggestionListOutput struct {
	Body SuggestionListResponse
}

// ListSuggestionsInput contains parameters for the review queue.
type ListSuggestionsInput struct {
	Status string `query:"status" doc:"PENDING, APPROVED, DENIED or MERGED; empty lists all"`
	Limit  int    `query:"limit" minimum:"0" doc:"Page size (default 20, max 100)"`
	Offset int    `query:"offset" minimum:"0" doc:"Rows to skip"`
}

// SuggestionPageOutput wraps a page of suggestions for Huma.
type SuggestionPageOutput struct {
	Body *service.SuggestionPage
}

// ResolveSuggestionBody is the request body for resolving a suggestion.
type ResolveSuggestionBody struct {
	Action          string `json:"action" required:"false" doc:"approve, deny or merge"`
	ModeratorNotes  string `json:"moderator_notes,omitempty" doc:"Shown to the submitter"`
	MergedIntoTagID string `json:"merged_into_tag_id,omitempty" doc:"Existing tag, required for merge"`
}

// ResolveSuggestionInput wraps the resolve request for Huma.
type ResolveSuggestionInput struct {
	ID   string `path:"id" doc:"Suggestion ID"`
	Body ResolveSuggestionBody
}

// ResolveSuggestionOutput wraps the resolution result for Huma.
type ResolveSuggestionOutput struct {
	Body *service.ResolveResult
}

// ReconcileResponse lists the users whose counters were corrected.
type ReconcileResponse struct {
	Fixed []service.PendingCountFix `json:"fixed" doc:"Users whose pending count changed"`
}

// ReconcileOutput wraps the reconcile response for Huma.
type ReconcileOutput struct {
	Body ReconcileResponse
}

// === Handlers ===

func (s *Server) handleSuggestTag(ctx context.Context, input *SuggestTagInput) (*SuggestionOutput, error) {
	claims, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	sug, err := s.services.Suggestion.Create(ctx, claims.UserID, service.CreateSuggestionRequest{
		NameEn:       input.Body.NameEn,
		NameLv:       input.Body.NameLv,
		ParentTagIDs: input.Body.ParentTagIDs,
	})
	if err != nil {
		return nil, err
	}
	return &SuggestionOutput{Body: sug}, nil
}

func (s *Server) handleGetPendingSuggestionCount(ctx context.Context, _ *struct{}) (*PendingCountOutput, error) {
	claims, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	count, err := s.services.Suggestion.PendingCount(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return &PendingCountOutput{Body: count}, nil
}

func (s *Server) handleListMySuggestions(ctx context.Context, _ *struct{}) (*SuggestionListOutput, error) {
	claims, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Suggestion.ListMine(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return &SuggestionListOutput{Body: SuggestionListResponse{Suggestions: list}}, nil
}

func (s *Server) handleAdminListSuggestions(ctx context.Context, input *ListSuggestionsInput) (*SuggestionPageOutput, error) {
	if _, err := RequireModerator(ctx); err != nil {
		return nil, err
	}

	page, err := s.services.Suggestion.List(ctx, service.ListSuggestionsRequest{
		Status: domain.SuggestionStatus(input.Status),
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &SuggestionPageOutput{Body: page}, nil
}

func (s *Server) handleAdminResolveSuggestion(ctx context.Context, input *ResolveSuggestionInput) (*ResolveSuggestionOutput, error) {
	claims, err := RequireModerator(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.services.Suggestion.Resolve(ctx, claims.UserID, input.ID, service.ResolveRequest{
		Action:          domain.ModerationAction(input.Body.Action),
		ModeratorNotes:  input.Body.ModeratorNotes,
		MergedIntoTagID: input.Body.MergedIntoTagID,
	})
	if err != nil {
		return nil, err
	}
	return &ResolveSuggestionOutput{Body: result}, nil
}

func (s *Server) handleAdminReconcileSuggestionCounts(ctx context.Context, _ *struct{}) (*ReconcileOutput, error) {
	claims, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	fixed, err := s.services.Suggestion.ReconcilePendingCounts(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("pending suggestion counts reconciled", "fixed", len(fixed), "by", claims.UserID)
	return &ReconcileOutput{Body: ReconcileResponse{Fixed: fixed}}, nil
}
