package notification

import (
	"context"
	"time"

	"go-letters/internal/workflow"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Dispatcher is the fire-and-forget sink the workflow hands notifications to.
type Dispatcher interface {
	Dispatch(ctx context.Context, userIDs []string, title, message string, metadata map[string]any)
}

type NotificationService interface {
	Dispatcher
	Notify(ctx context.Context, userIDs []string, notifType NotificationType, title, message string, metadata map[string]any) error
	GetUserNotifications(ctx context.Context, userID string, page, limit int64) ([]Notification, int64, error)
	GetUnreadCount(ctx context.Context, userID string) (int64, error)
	MarkAsRead(ctx context.Context, id string, userID string) error
	MarkAllAsRead(ctx context.Context, userID string) error
}

type NotificationServiceImpl struct {
	repo   NotificationRepository
	hub    *Hub
	logger *zap.Logger
}

func NewNotificationService(repo NotificationRepository, hub *Hub, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		repo:   repo,
		hub:    hub,
		logger: logger,
	}
}

// Dispatch never fails; delivery problems are logged.
func (s *NotificationServiceImpl) Dispatch(ctx context.Context, userIDs []string, title, message string, metadata map[string]any) {
	if err := s.Notify(ctx, userIDs, NotificationTypeTask, title, message, metadata); err != nil {
		s.logger.Error("failed to dispatch notification",
			zap.Strings("recipients", userIDs),
			zap.String("title", title),
			zap.Error(err))
	}
}

func (s *NotificationServiceImpl) Notify(ctx context.Context, userIDs []string, notifType NotificationType, title, message string, metadata map[string]any) error {
	now := time.Now()
	link := ""
	if id, ok := metadata["document_id"].(string); ok {
		link = "/documents/" + id
	}

	seen := map[string]bool{}
	var batch []*Notification
	for _, userID := range userIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true
		batch = append(batch, &Notification{
			ID:        primitive.NewObjectID(),
			UserID:    userID,
			Title:     title,
			Message:   message,
			Type:      notifType,
			Link:      link,
			Metadata:  metadata,
			CreatedAt: now,
		})
	}
	if len(batch) == 0 {
		return nil
	}

	if err := s.repo.CreateMany(ctx, batch); err != nil {
		return err
	}
	for _, n := range batch {
		s.hub.Publish(n.UserID, n)
	}
	return nil
}

func (s *NotificationServiceImpl) GetUserNotifications(ctx context.Context, userID string, page, limit int64) ([]Notification, int64, error) {
	items, total, err := s.repo.GetByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		items = []Notification{}
	}
	return items, total, nil
}

func (s *NotificationServiceImpl) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.GetUnreadCount(ctx, userID)
}

func (s *NotificationServiceImpl) MarkAsRead(ctx context.Context, id string, userID string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return workflow.NewNotFoundError("notification", id)
	}
	found, err := s.repo.MarkAsRead(ctx, objID, userID)
	if err != nil {
		return err
	}
	if !found {
		return workflow.NewNotFoundError("notification", id)
	}
	return nil
}

func (s *NotificationServiceImpl) MarkAllAsRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}
