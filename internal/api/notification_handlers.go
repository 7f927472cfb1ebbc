package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/kopa-app/kopa-server/internal/domain"
)

func (s *Server) registerNotificationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listNotifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/notifications",
		Summary:     "List notifications",
		Description: "Returns the caller's notifications, newest first. Live delivery uses /api/v1/notifications/stream.",
		Tags:        []string{"Notifications"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListNotifications)

	huma.Register(s.api, huma.Operation{
		OperationID:   "markNotificationRead",
		Method:        http.MethodPost,
		Path:          "/api/v1/notifications/{id}/read",
		Summary:       "Mark notification read",
		Tags:          []string{"Notifications"},
		DefaultStatus: http.StatusNoContent,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleMarkNotificationRead)
}

// ListNotificationsInput contains parameters for listing notifications.
type ListNotificationsInput struct {
	UnreadOnly bool `query:"unread" doc:"Only unread notifications"`
	Limit      int  `query:"limit" minimum:"0" doc:"Maximum notifications (default 50, max 200)"`
}

// NotificationListResponse contains a list of notifications.
type NotificationListResponse struct {
	Notifications []*domain.Notification `json:"notifications" doc:"Notifications, newest first"`
}

// NotificationListOutput wraps the notification list for Huma.
type NotificationListOutput struct {
	Body NotificationListResponse
}

// MarkNotificationReadInput contains parameters for marking a notification read.
type MarkNotificationReadInput struct {
	ID string `path:"id" doc:"Notification ID"`
}

func (s *Server) handleListNotifications(ctx context.Context, input *ListNotificationsInput) (*NotificationListOutput, error) {
	claims, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	list, err := s.services.Notification.List(ctx, claims.UserID, input.UnreadOnly, input.Limit)
	if err != nil {
		return nil, err
	}
	return &NotificationListOutput{Body: NotificationListResponse{Notifications: list}}, nil
}

func (s *Server) handleMarkNotificationRead(ctx context.Context, input *MarkNotificationReadInput) (*struct{}, error) {
	claims, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Notification.MarkRead(ctx, claims.UserID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}
