package domain

import "time"

// NotificationType identifies what a notification is about.
type NotificationType string

const (
	NotificationSuggestionApproved NotificationType = "tag_suggestion_approved"
	NotificationSuggestionDenied   NotificationType = "tag_suggestion_denied"
	NotificationSuggestionMerged   NotificationType = "tag_suggestion_merged"
)

// Notification is a message addressed to a single user.
// Rows are written in the same transaction as the change they describe
// and pushed to live clients after commit.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	ReadAt    *time.Time       `json:"read_at,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// IsRead returns true once the user has acknowledged the notification.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}
