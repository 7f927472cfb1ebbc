package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kopa-app/kopa-server/internal/domain"
	domainerrors "github.com/kopa-app/kopa-server/internal/errors"
	"github.com/kopa-app/kopa-server/internal/metrics"
	"github.com/kopa-app/kopa-server/internal/sse"
	"github.com/kopa-app/kopa-server/internal/store"
)

// Notification list bounds.
const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationService delivers and lists user notifications.
type NotificationService struct {
	store  store.Store
	events EventEmitter
	logger *slog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(s store.Store, events EventEmitter, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		store:  s,
		events: emitterOrNop(events),
		logger: logger,
	}
}

// Deliver pushes a persisted notification to the recipient's live streams.
// Delivery is best-effort: a full event buffer is logged and counted,
// never returned.
func (s *NotificationService) Deliver(_ context.Context, n *domain.Notification) {
	if s.events.Emit(sse.NewNotificationEvent(n)) {
		return
	}
	metrics.RecordNotificationPushFailure()
	s.logger.Warn("failed to push notification",
		"notification_id", n.ID,
		"user_id", n.UserID,
		"type", string(n.Type),
	)
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	if userID == "" {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	limit = min(limit, maxNotificationLimit)

	list, err := s.store.ListNotifications(ctx, store.NotificationFilter{
		UserID:     userID,
		UnreadOnly: unreadOnly,
		Limit:      limit,
	})
	if err != nil {
		return nil, storageErr(err, "failed to list notifications")
	}
	return list, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if userID == "" {
		return domainerrors.Unauthorized("authentication required")
	}
	if err := s.store.MarkNotificationRead(ctx, userID, notificationID, time.Now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domainerrors.NotFoundf("notification %s not found", notificationID)
		}
		return storageErr(err, "failed to mark notification read")
	}
	return nil
}
