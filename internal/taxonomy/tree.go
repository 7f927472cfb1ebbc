package taxonomy

import (
	"cmp"
	"slices"
	"strings"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// Node is one tag in the category tree.
// Children is never nil so clients can render empty branches uniformly.
type Node struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	NameLv      string          `json:"name_lv,omitempty"`
	Slug        string          `json:"slug"`
	Level       domain.TagLevel `json:"level"`
	ColorKey    string          `json:"color_key,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Description string          `json:"description,omitempty"`
	GroupCount  int             `json:"group_count"`  // Groups tagged with this tag directly
	EventCount  int             `json:"event_count"`  // Events tagged with this tag directly
	TotalGroups int             `json:"total_groups"` // This tag plus all descendants
	TotalEvents int             `json:"total_events"`
	Children    []*Node         `json:"children"`
}

// BuildTree assembles flat tags into the category > domain > tag tree.
//
// Only the primary edge (Tag.ParentID) is walked. A tag whose parent is
// missing from the input, or is not exactly one level above it, is left
// out together with everything beneath it. Siblings are sorted by name.
func BuildTree(tags []*domain.Tag, usage map[string]domain.TagUsage) []*Node {
	childrenOf := make(map[string][]*domain.Tag)
	var roots []*domain.Tag

	for _, t := range tags {
		if t.Level == domain.LevelCategory {
			roots = append(roots, t)
			continue
		}
		if t.ParentID != "" {
			childrenOf[t.ParentID] = append(childrenOf[t.ParentID], t)
		}
	}

	var build func(t *domain.Tag) *Node
	build = func(t *domain.Tag) *Node {
		n := newNode(t, usage[t.ID])
		for _, child := range sortTags(childrenOf[t.ID]) {
			if child.Level != t.Level+1 {
				continue
			}
			c := build(child)
			n.TotalGroups += c.TotalGroups
			n.TotalEvents += c.TotalEvents
			n.Children = append(n.Children, c)
		}
		return n
	}

	tree := make([]*Node, 0, len(roots))
	for _, r := range sortTags(roots) {
		tree = append(tree, build(r))
	}
	return tree
}

func newNode(t *domain.Tag, u domain.TagUsage) *Node {
	return &Node{
		ID:          t.ID,
		Name:        t.Name,
		NameLv:      t.NameLv,
		Slug:        t.Slug,
		Level:       t.Level,
		ColorKey:    t.ColorKey,
		Icon:        t.Icon,
		Description: t.Description,
		GroupCount:  u.Groups,
		EventCount:  u.Events,
		TotalGroups: u.Groups,
		TotalEvents: u.Events,
		Children:    []*Node{},
	}
}

// sortTags returns tags ordered by case-insensitive name, then id.
func sortTags(tags []*domain.Tag) []*domain.Tag {
	sorted := slices.Clone(tags)
	slices.SortFunc(sorted, func(a, b *domain.Tag) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return sorted
}

// Walk visits every node depth-first, parents before children.
func Walk(nodes []*Node, fn func(n *Node)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}
