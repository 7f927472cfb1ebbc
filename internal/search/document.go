// Package search maintains a Bleve index of active tags that supplies
// type-ahead candidates for the taxonomy search.
package search

import (
	"strconv"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// TagDocument is the indexed form of a tag.
type TagDocument struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NameLv string `json:"name_lv,omitempty"`
	Slug   string `json:"slug"`
	Level  string `json:"level"` // Keyword so a level filter is an exact term match
}

// NewTagDocument converts a tag into its index document.
func NewTagDocument(t *domain.Tag) *TagDocument {
	return &TagDocument{
		ID:     t.ID,
		Name:   t.Name,
		NameLv: t.NameLv,
		Slug:   t.Slug,
		Level:  strconv.Itoa(int(t.Level)),
	}
}

// ToMap converts the document to a map for Bleve indexing.
// Field names must match the mapping.
func (d *TagDocument) ToMap() map[string]any {
	return map[string]any{
		"id":      d.ID,
		"name":    d.Name,
		"name_lv": d.NameLv,
		"slug":    d.Slug,
		"level":   d.Level,
	}
}
