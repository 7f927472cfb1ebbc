package providers

import (
	"github.com/samber/do/v2"

	"github.com/kopa-app/kopa-server/internal/auth"
	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/logger"
	"github.com/kopa-app/kopa-server/internal/service"
	"github.com/kopa-app/kopa-server/internal/validation"
)

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideAuthService provides the authentication service.
func ProvideAuthService(i do.Injector) (*service.AuthService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tokenService := do.MustInvoke[*auth.TokenService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAuthService(storeHandle.Store, tokenService, v, log.Logger), nil
}

// ProvideTaxonomyService provides the tag tree and tag management service.
func ProvideTaxonomyService(i do.Injector) (*service.TaxonomyService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTaxonomyService(storeHandle.Store, indexHandle.TagIndex(), sseHandle.Manager, v, log.Logger), nil
}

// ProvideNotificationService provides the in-app notification service.
func ProvideNotificationService(i do.Injector) (*service.NotificationService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNotificationService(storeHandle.Store, sseHandle.Manager, log.Logger), nil
}

// ProvideSuggestionService provides the suggestion moderation service.
func ProvideSuggestionService(i do.Injector) (*service.SuggestionService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	notifications := do.MustInvoke[*service.NotificationService](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSuggestionService(
		storeHandle.Store,
		indexHandle.TagIndex(),
		sseHandle.Manager,
		notifications,
		v,
		cfg.Taxonomy,
		log.Logger,
	), nil
}
