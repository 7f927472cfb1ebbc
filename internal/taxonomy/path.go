package taxonomy

import (
	"strings"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// PathSeparator joins the segments of Path.Display.
const PathSeparator = " > "

// Path is the category > domain > tag breadcrumb of a tag.
// Segments that cannot be resolved are left empty.
type Path struct {
	Category string `json:"category,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Tag      string `json:"tag,omitempty"`
	ColorKey string `json:"color_key,omitempty"`
	Display  string `json:"display"`
}

// Chain holds the tags and primary links a path walk may visit.
type Chain struct {
	// Tags by id. Parents reachable only through the legacy ParentID
	// pointer must be present here.
	Tags map[string]*domain.Tag
	// Primary link by child tag id.
	Primary map[string]*domain.TagParent
}

// NewChain indexes tags and primary links for ResolvePath.
// Parents embedded in the links are indexed too.
func NewChain(tags []*domain.Tag, links []*domain.TagParent) Chain {
	c := Chain{
		Tags:    make(map[string]*domain.Tag, len(tags)),
		Primary: make(map[string]*domain.TagParent, len(links)),
	}
	for _, t := range tags {
		c.Tags[t.ID] = t
	}
	for _, l := range links {
		if !l.IsPrimary {
			continue
		}
		c.Primary[l.TagID] = l
		if l.Parent != nil {
			if _, ok := c.Tags[l.Parent.ID]; !ok {
				c.Tags[l.Parent.ID] = l.Parent
			}
		}
	}
	return c
}

// parent follows the primary link of t, then the legacy ParentID pointer.
func (c Chain) parent(t *domain.Tag) *domain.Tag {
	if link, ok := c.Primary[t.ID]; ok {
		if link.Parent != nil {
			return link.Parent
		}
		if p, ok := c.Tags[link.ParentID]; ok {
			return p
		}
	}
	if t.ParentID != "" {
		return c.Tags[t.ParentID]
	}
	return nil
}

// denormalizedL1 returns the first level-1 name and color copied onto a
// primary link of the given tags.
func (c Chain) denormalizedL1(tags ...*domain.Tag) (string, string) {
	for _, t := range tags {
		if t == nil {
			continue
		}
		if link, ok := c.Primary[t.ID]; ok && link.L1Category != "" {
			return link.L1Category, link.L1ColorKey
		}
	}
	return "", ""
}

// ResolvePath reconstructs the breadcrumb for t.
//
// The level-1 ancestor comes from the relational chain when it resolves,
// otherwise from the category fields denormalized onto the primary links.
func (c Chain) ResolvePath(t *domain.Tag) Path {
	var p Path

	switch t.Level {
	case domain.LevelCategory:
		p.Category = t.Name
		p.ColorKey = t.ColorKey

	case domain.LevelDomain:
		p.Domain = t.Name
		c.fillCategory(&p, t, t)

	default:
		p.Tag = t.Name
		l2 := c.parent(t)
		if l2 != nil {
			p.Domain = l2.Name
		}
		c.fillCategory(&p, l2, t)
	}

	p.Display = joinSegments(p.Category, p.Domain, p.Tag)
	return p
}

// fillCategory resolves the category of a level-2 tag. leaf is the tag the
// path was requested for; its own link may carry the denormalized fields.
func (c Chain) fillCategory(p *Path, l2, leaf *domain.Tag) {
	if l2 != nil {
		if l1 := c.parent(l2); l1 != nil && l1.Level == domain.LevelCategory {
			p.Category = l1.Name
			p.ColorKey = l1.ColorKey
			if p.ColorKey == "" {
				_, p.ColorKey = c.denormalizedL1(l2, leaf)
			}
			return
		}
	}
	p.Category, p.ColorKey = c.denormalizedL1(l2, leaf)
}

func joinSegments(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, PathSeparator)
}
