// Package store defines the persistence interface for the Kopa taxonomy.
package store

import (
	"context"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// Store defines the interface for all persistence operations.
//
// Methods called on the Store passed into RunAtomic run inside that
// transaction. Everything else runs in autocommit mode.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// RunAtomic runs fn in a single transaction. The transaction commits
	// when fn returns nil and rolls back otherwise. Nested calls join the
	// outer transaction.
	RunAtomic(ctx context.Context, fn func(tx Store) error) error

	// Tags
	GetTag(ctx context.Context, id string) (*domain.Tag, error)
	FindTags(ctx context.Context, filter TagFilter) ([]*domain.Tag, error)
	// FindActiveTagByName returns an ACTIVE tag whose English or Latvian
	// name matches any of names, compared by domain.NameKey.
	FindActiveTagByName(ctx context.Context, names ...string) (*domain.Tag, error)
	// CreateTag inserts the tag and, when it has a parent, its primary
	// TagParent row with the category fields copied from the level-1 ancestor.
	CreateTag(ctx context.Context, tag *domain.Tag) error
	UpdateTag(ctx context.Context, tag *domain.Tag) error

	// Tag parents
	FindTagParents(ctx context.Context, filter TagParentFilter) ([]*domain.TagParent, error)
	AddTagParent(ctx context.Context, link *domain.TagParent) error

	// Tag usage by groups and events
	TagUsage(ctx context.Context) (map[string]domain.TagUsage, error)
	SetGroupTags(ctx context.Context, groupID string, tagIDs []string) error
	SetEventTags(ctx context.Context, eventID string, tagIDs []string) error

	// Suggestions
	GetSuggestion(ctx context.Context, id string) (*domain.TagSuggestion, error)
	FindSuggestions(ctx context.Context, filter SuggestionFilter) ([]*domain.TagSuggestion, int, error)
	FindPendingSuggestionByName(ctx context.Context, names ...string) (*domain.TagSuggestion, error)
	CreateSuggestion(ctx context.Context, s *domain.TagSuggestion) error
	// ResolveSuggestion moves a PENDING suggestion to a terminal status.
	// Returns ErrNotPending if it is no longer pending.
	ResolveSuggestion(ctx context.Context, id string, res domain.Resolution) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// Pending suggestion counters. Always single guarded UPDATEs.
	// IncrementPendingCount returns ErrQuotaExceeded when the count is
	// already at max.
	IncrementPendingCount(ctx context.Context, userID string, max int) error
	// DecrementPendingCount reports false when the count was already zero.
	DecrementPendingCount(ctx context.Context, userID string) (bool, error)
	CountPendingByUser(ctx context.Context) (map[string]int, error)
	SetPendingCount(ctx context.Context, userID string, count int) error

	// Notifications
	CreateNotification(ctx context.Context, n *domain.Notification) error
	ListNotifications(ctx context.Context, filter NotificationFilter) ([]*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string, at time.Time) error
}

// TagFilter narrows FindTags. Zero fields do not filter.
type TagFilter struct {
	IDs      []string
	Level    domain.TagLevel
	ParentID string
	Status   domain.TagStatus
	// NameHint orders tags whose name contains the hint first.
	// It does not exclude other tags.
	NameHint string
	Limit    int
}

// TagParentFilter narrows FindTagParents.
type TagParentFilter struct {
	TagIDs      []string
	ParentID    string
	PrimaryOnly bool
}

// SuggestionFilter narrows FindSuggestions. Results are newest first.
type SuggestionFilter struct {
	Status      domain.SuggestionStatus
	SubmitterID string
	Limit       int
	Offset      int
}

// NotificationFilter narrows ListNotifications. Results are newest first.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}
