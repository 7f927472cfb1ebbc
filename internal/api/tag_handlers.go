package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/service"
	"github.com/kopa-app/kopa-server/internal/taxonomy"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/search",
		Summary:     "Search tags",
		Description: "Fuzzy search over English and Latvian tag names. Each result carries its category path and score.",
		Tags:        []string{"Tags"},
	}, s.handleSearchTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagTree",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/tree",
		Summary:     "Tag tree",
		Description: "Returns the active taxonomy as a three-level tree with usage counts",
		Tags:        []string{"Tags"},
	}, s.handleGetTagTree)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Description: "Returns a tag with its parent links and category path",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)
}

// === DTOs ===

// SearchTagsInput contains parameters for searching tags.
type SearchTagsInput struct {
	Query string `query:"q" doc:"Search text, at least 2 characters"`
	Level int    `query:"level" minimum:"0" maximum:"3" doc:"Restrict to one level (1-3); 0 searches all"`
	Limit int    `query:"limit" minimum:"0" doc:"Maximum results (default 5, capped at 50)"`
}

// SearchTagsOutput wraps the search response for Huma.
type SearchTagsOutput struct {
	Body *service.SearchResponse
}

// TagTreeResponse contains the category roots.
type TagTreeResponse struct {
	Categories []*taxonomy.Node `json:"categories" doc:"Level 1 categories with nested domains and tags"`
}

// TagTreeOutput wraps the tree response for Huma.
type TagTreeOutput struct {
	Body TagTreeResponse
}

// GetTagInput contains parameters for getting a tag.
type GetTagInput struct {
	ID string `path:"id" doc:"Tag ID"`
}

// TagDetailOutput wraps a tag with its links for Huma.
type TagDetailOutput struct {
	Body *service.TagDetail
}

// === Handlers ===

func (s *Server) handleSearchTags(ctx context.Context, input *SearchTagsInput) (*SearchTagsOutput, error) {
	resp, err := s.services.Search.Search(ctx, service.SearchRequest{
		Query: input.Query,
		Level: domain.TagLevel(input.Level),
		Limit: input.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &SearchTagsOutput{Body: resp}, nil
}

func (s *Server) handleGetTagTree(ctx context.Context, _ *struct{}) (*TagTreeOutput, error) {
	roots, err := s.services.Taxonomy.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return &TagTreeOutput{Body: TagTreeResponse{Categories: roots}}, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *GetTagInput) (*TagDetailOutput, error) {
	detail, err := s.services.Taxonomy.GetTag(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &TagDetailOutput{Body: detail}, nil
}
