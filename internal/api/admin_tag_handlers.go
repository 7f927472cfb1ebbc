package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/service"
)

func (s *Server) registerAdminTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "adminCreateTag",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/tags",
		Summary:       "Create tag",
		Description:   "Creates a tag directly. Level 1 tags have no parent; deeper tags need an active parent one level up. Moderator only.",
		Tags:          []string{"Admin"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleAdminCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminUpdateTag",
		Method:      http.MethodPatch,
		Path:        "/api/v1/admin/tags/{id}",
		Summary:     "Update tag",
		Description: "Renames, restyles, deactivates or reactivates a tag. Moderator only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminUpdateTag)

	huma.Register(s.api, huma.Operation{
		OperationID:   "adminAddTagParent",
		Method:        http.MethodPost,
		Path:          "/api/v1/admin/tags/{id}/parents",
		Summary:       "Add secondary parent",
		Description:   "Links a level 3 tag under an additional level 2 domain. Moderator only.",
		Tags:          []string{"Admin"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleAdminAddTagParent)

	huma.Register(s.api, huma.Operation{
		OperationID: "adminRebuildSearchIndex",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/search/rebuild",
		Summary:     "Rebuild search index",
		Description: "Reindexes every active tag. Admin only.",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleAdminRebuildSearchIndex)
}

// === DTOs ===

// CreateTagBody is the request body for creating a tag.
type CreateTagBody struct {
	Name        string `json:"name" required:"false" doc:"English name"`
	NameLv      string `json:"name_lv,omitempty" doc:"Latvian name"`
	Level       int    `json:"level" required:"false" doc:"1 category, 2 domain, 3 specific"`
	ParentID    string `json:"parent_id,omitempty" doc:"Primary parent, required for levels 2 and 3"`
	ColorKey    string `json:"color_key,omitempty" doc:"Palette key, used on categories"`
	Icon        string `json:"icon,omitempty" doc:"Icon key"`
	Description string `json:"description,omitempty" doc:"Short description"`
}

// CreateTagInput wraps the create tag request for Huma.
type CreateTagInput struct {
	Body CreateTagBody
}

// TagOutput wraps a tag for Huma.
type TagOutput struct {
	Body *domain.Tag
}

// UpdateTagBody is the request body for updating a tag. Omitted fields are
// left unchanged.
type UpdateTagBody struct {
	Name        *string `json:"name,omitempty" doc:"English name"`
	NameLv      *string `json:"name_lv,omitempty" doc:"Latvian name"`
	ColorKey    *string `json:"color_key,omitempty" doc:"Palette key"`
	Icon        *string `json:"icon,omitempty" doc:"Icon key"`
	Description *string `json:"description,omitempty" doc:"Short description"`
	Status      *string `json:"status,omitempty" enum:"ACTIVE,INACTIVE" doc:"ACTIVE or INACTIVE"`
}

// UpdateTagInput wraps the update tag request for Huma.
type UpdateTagInput struct {
	ID   string `path:"id" doc:"Tag ID"`
	Body UpdateTagBody
}

// AddTagParentBody is the request body for linking a secondary parent.
type AddTagParentBody struct {
	ParentID string `json:"parent_id" required:"false" doc:"Level 2 tag to link under"`
}

// AddTagParentInput wraps the add parent request for Huma.
type AddTagParentInput struct {
	ID   string `path:"id" doc:"Level 3 tag ID"`
	Body AddTagParentBody
}

// TagParentOutput wraps a parent link for Huma.
type TagParentOutput struct {
	Body *domain.TagParent
}

// RebuildIndexResponse reports how many tags were indexed.
type RebuildIndexResponse struct {
	Indexed int `json:"indexed" doc:"Active tags written to the index"`
}

// RebuildIndexOutput wraps the rebuild response for Huma.
type RebuildIndexOutput struct {
	Body RebuildIndexResponse
}

// === Handlers ===

func (s *Server) handleAdminCreateTag(ctx context.Context, input *CreateTagInput) (*TagOutput, error) {
	if _, err := RequireModerator(ctx); err != nil {
		return nil, err
	}

	tag, err := s.services.Taxonomy.CreateTag(ctx, service.CreateTagRequest{
		Name:        input.Body.Name,
		NameLv:      input.Body.NameLv,
		Level:       domain.TagLevel(input.Body.Level),
		ParentID:    input.Body.ParentID,
		ColorKey:    input.Body.ColorKey,
		Icon:        input.Body.Icon,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: tag}, nil
}

func (s *Server) handleAdminUpdateTag(ctx context.Context, input *UpdateTagInput) (*TagOutput, error) {
	if _, err := RequireModerator(ctx); err != nil {
		return nil, err
	}

	req := service.UpdateTagRequest{
		Name:        input.Body.Name,
		NameLv:      input.Body.NameLv,
		ColorKey:    input.Body.ColorKey,
		Icon:        input.Body.Icon,
		Description: input.Body.Description,
	}
	if input.Body.Status != nil {
		status := domain.TagStatus(*input.Body.Status)
		req.Status = &status
	}

	tag, err := s.services.Taxonomy.UpdateTag(ctx, input.ID, req)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: tag}, nil
}

func (s *Server) handleAdminAddTagParent(ctx context.Context, input *AddTagParentInput) (*TagParentOutput, error) {
	if _, err := RequireModerator(ctx); err != nil {
		return nil, err
	}

	link, err := s.services.Taxonomy.AddParent(ctx, input.ID, input.Body.ParentID)
	if err != nil {
		return nil, err
	}
	return &TagParentOutput{Body: link}, nil
}

func (s *Server) handleAdminRebuildSearchIndex(ctx context.Context, _ *struct{}) (*RebuildIndexOutput, error) {
	claims, err := RequireAdmin(ctx)
	if err != nil {
		return nil, err
	}

	n, err := s.services.Search.RebuildIndex(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("search index rebuilt", "tags", n, "by", claims.UserID)
	return &RebuildIndexOutput{Body: RebuildIndexResponse{Indexed: n}}, nil
}
