package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// TagIndex wraps a Bleve index of active tags.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type TagIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the tag index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr text if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup removes and recreates the index.
const mappingVersion = "1"

// NewTagIndex creates or opens the tag index under opts.DataPath.
// A corrupted index or one with an outdated mapping is removed and recreated;
// callers repopulate it with Rebuild.
func NewTagIndex(opts Options) (*TagIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "tags.bleve")
	versionPath := filepath.Join(opts.DataPath, "tags.version")

	var (
		index        bleve.Index
		err          error
		needsRebuild bool
	)

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("tag index has no version file, will rebuild", "new_version", mappingVersion)
			needsRebuild = true
		case string(existingVersion) != mappingVersion:
			logger.Info("tag index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing tag index, will recreate", "path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); writeErr != nil {
			logger.Warn("failed to write tag index version file", "error", writeErr)
		}
		logger.Info("created new tag index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing tag index", "path", indexPath)
	}

	return &TagIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *TagIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexTag adds or replaces a tag. Inactive tags are removed instead,
// so the index only ever holds searchable tags.
func (s *TagIndex) IndexTag(t *domain.Tag) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !t.IsActive() {
		return s.index.Delete(t.ID)
	}
	return s.index.Index(t.ID, NewTagDocument(t).ToMap())
}

// IndexTags indexes active tags in batches.
func (s *TagIndex) IndexTags(tags []*domain.Tag) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexTagsLocked(tags)
}

func (s *TagIndex) indexTagsLocked(tags []*domain.Tag) error {
	const batchSize = 500

	for i := 0; i < len(tags); i += batchSize {
		end := min(i+batchSize, len(tags))

		batch := s.index.NewBatch()
		for _, t := range tags[i:end] {
			if !t.IsActive() {
				batch.Delete(t.ID)
				continue
			}
			if err := batch.Index(t.ID, NewTagDocument(t).ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", t.ID, err)
			}
		}

		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}

	return nil
}

// DeleteTag removes a tag from the index.
func (s *TagIndex) DeleteTag(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed tags.
func (s *TagIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and repopulates it from tags.
// It holds the exclusive lock for the whole operation, so searches
// wait rather than see a half-built index.
func (s *TagIndex) Rebuild(tags []*domain.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}

	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	if err := s.indexTagsLocked(tags); err != nil {
		return err
	}

	s.logger.Info("rebuilt tag index", "path", s.path, "tags", len(tags))
	return nil
}
