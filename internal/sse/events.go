// Package sse implements Server-Sent Events for pushing notifications and
// taxonomy changes to connected clients.
package sse

import (
	"time"

	"github.com/google/uuid"

	"github.com/kopa-app/kopa-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventNotification delivers a persisted notification to its recipient.
	EventNotification EventType = "notification.created"

	// EventTagCreated is broadcast when a tag enters the taxonomy.
	EventTagCreated EventType = "tag.created"
	// EventTagUpdated is broadcast when a tag changes or is deactivated.
	EventTagUpdated EventType = "tag.updated"

	// EventSuggestionCreated tells moderators the review queue grew.
	// Only sent to moderators.
	EventSuggestionCreated EventType = "suggestion.created"
	// EventSuggestionResolved tells moderators an entry left the queue.
	// Only sent to moderators.
	EventSuggestionResolved EventType = "suggestion.resolved"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	ID        string    `json:"id"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user. Empty means every client.
	UserID string `json:"-"`
}

// NotificationEventData is the data payload for notification events.
type NotificationEventData struct {
	Notification *domain.Notification `json:"notification"`
}

// TagEventData is the data payload for tag events.
type TagEventData struct {
	Tag *domain.Tag `json:"tag"`
}

// SuggestionEventData is the data payload for suggestion queue events.
type SuggestionEventData struct {
	Suggestion *domain.TagSuggestion `json:"suggestion"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

func newEvent(t EventType, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// NewNotificationEvent creates an event addressed to the notification's recipient.
func NewNotificationEvent(n *domain.Notification) Event {
	e := newEvent(EventNotification, NotificationEventData{Notification: n})
	e.UserID = n.UserID
	return e
}

// NewTagCreatedEvent creates a tag.created event.
func NewTagCreatedEvent(t *domain.Tag) Event {
	return newEvent(EventTagCreated, TagEventData{Tag: t})
}

// NewTagUpdatedEvent creates a tag.updated event.
func NewTagUpdatedEvent(t *domain.Tag) Event {
	return newEvent(EventTagUpdated, TagEventData{Tag: t})
}

// NewSuggestionCreatedEvent creates a suggestion.created event.
func NewSuggestionCreatedEvent(s *domain.TagSuggestion) Event {
	return newEvent(EventSuggestionCreated, SuggestionEventData{Suggestion: s})
}

// NewSuggestionResolvedEvent creates a suggestion.resolved event.
func NewSuggestionResolvedEvent(s *domain.TagSuggestion) Event {
	return newEvent(EventSuggestionResolved, SuggestionEventData{Suggestion: s})
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, HeartbeatEventData{ServerTime: time.Now()})
}
