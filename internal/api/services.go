package api

import (
	"github.com/kopa-app/kopa-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth         *service.AuthService
	Taxonomy     *service.TaxonomyService
	Search       *service.SearchService
	Suggestion   *service.SuggestionService
	Notification *service.NotificationService
}

// IndexStats reports on the search index for health checks.
// *search.TagIndex satisfies it.
type IndexStats interface {
	DocumentCount() (uint64, error)
}
