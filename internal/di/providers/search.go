package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/kopa-app/kopa-server/internal/api"
	"github.com/kopa-app/kopa-server/internal/config"
	"github.com/kopa-app/kopa-server/internal/domain"
	"github.com/kopa-app/kopa-server/internal/logger"
	"github.com/kopa-app/kopa-server/internal/search"
	"github.com/kopa-app/kopa-server/internal/service"
	"github.com/kopa-app/kopa-server/internal/store"
)

// SearchIndexHandle wraps the tag index with shutdown capability.
// Index is nil when the index is disabled; search then scans the store.
type SearchIndexHandle struct {
	Index *search.TagIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.Index == nil {
		return nil
	}
	return h.Index.Close()
}

// TagIndex returns the index for service wiring, or an untyped nil when disabled.
func (h *SearchIndexHandle) TagIndex() service.TagIndex {
	if h.Index == nil {
		return nil
	}
	return h.Index
}

// Stats returns the index for health reporting, or an untyped nil when disabled.
func (h *SearchIndexHandle) Stats() api.IndexStats {
	if h.Index == nil {
		return nil
	}
	return h.Index
}

// ProvideSearchIndex provides the Bleve tag index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Taxonomy.SearchIndexEnabled {
		log.Info("Search index disabled, tag search scans the store")
		return &SearchIndexHandle{}, nil
	}

	index, err := search.NewTagIndex(search.Options{
		DataPath: cfg.Data.IndexPath(),
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ProvideSearchService provides the hierarchical tag search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(storeHandle.Store, indexHandle.TagIndex(), cfg.Taxonomy, log.Logger), nil
}

// TriggerSearchReindexIfNeeded rebuilds the index in the background when it
// is empty but the store already holds active tags.
// Should be called after all services are wired.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	if indexHandle.Index == nil {
		return
	}

	searchService := do.MustInvoke[*service.SearchService](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.Index.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	tags, err := storeHandle.FindTags(ctx, store.TagFilter{Status: domain.TagStatusActive, Limit: 1})
	if err != nil || len(tags) == 0 {
		return
	}

	log.Info("Search index is empty but tags exist, triggering initial reindex")

	go func() {
		count, err := searchService.RebuildIndex(context.Background())
		if err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		log.Info("Initial search reindex completed", "documents", count)
	}()
}
