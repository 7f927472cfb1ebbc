package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// TagLevel is the depth of a tag in the taxonomy.
// 1 = category, 2 = domain, 3 = specific tag.
type TagLevel int

const (
	LevelCategory TagLevel = 1
	LevelDomain   TagLevel = 2
	LevelSpecific TagLevel = 3
)

// Valid reports whether the level is one of the three taxonomy levels.
func (l TagLevel) Valid() bool {
	return l >= LevelCategory && l <= LevelSpecific
}

// TagStatus controls whether a tag is visible to users.
// Tags are never hard-deleted; deactivation hides them.
type TagStatus string

const (
	TagStatusActive   TagStatus = "ACTIVE"
	TagStatusInactive TagStatus = "INACTIVE"
)

// Valid reports whether s is a known tag status.
func (s TagStatus) Valid() bool {
	return s == TagStatusActive || s == TagStatusInactive
}

// Tag is a node of the three-level community taxonomy.
// ParentID is the primary edge: it is empty for categories and always
// matches the tag's primary TagParent row.
type Tag struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`              // Canonical English name: "Basketball"
	NameLv      string    `json:"name_lv,omitempty"` // Latvian name
	Slug        string    `json:"slug"`
	Level       TagLevel  `json:"level"`
	ParentID    string    `json:"parent_id,omitempty"`
	Status      TagStatus `json:"status"`
	ColorKey    string    `json:"color_key,omitempty"` // Opaque palette key, set on categories
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsActive returns true if the tag is visible to users.
func (t *Tag) IsActive() bool {
	return t.Status == TagStatusActive
}

// IsRoot returns true if this tag is a top-level category.
func (t *Tag) IsRoot() bool {
	return t.Level == LevelCategory
}

// Touch updates the UpdatedAt timestamp.
func (t *Tag) Touch() {
	t.UpdatedAt = time.Now()
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
func (t *Tag) InitTimestamps() {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// NameKey is the case-folded form used to match names across languages.
// "Šahs" and "ŠAHS " share a key.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// SameName compares tag names the way duplicate detection does.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}

// TagParent links a tag to one of its parents. Each tag has at most one
// primary link; additional links are secondary and only used as metadata.
// L1Category and L1ColorKey are copied from the level-1 ancestor so search
// can render a path even when the chain is incomplete.
type TagParent struct {
	ID         string    `json:"id"`
	TagID      string    `json:"tag_id"`
	ParentID   string    `json:"parent_id"`
	IsPrimary  bool      `json:"is_primary"`
	L1Category string    `json:"l1_category,omitempty"`
	L1ColorKey string    `json:"l1_color_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`

	// Parent is the resolved parent tag, populated by store lookups.
	Parent *Tag `json:"parent,omitempty"`
}

// TagUsage holds how many groups and events reference a tag directly.
type TagUsage struct {
	Groups int `json:"groups"`
	Events int `json:"events"`
}
