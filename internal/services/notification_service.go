package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/models"
	"github.com/taskhive/taskhive/internal/realtime"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
	"github.com/taskhive/taskhive/pkg/metrics"
)

// CreateNotificationInput defines attributes required to persist a notification.
type CreateNotificationInput struct {
	UserID   string
	ListID   string
	Type     models.NotificationType
	Title    string
	Message  string
	Metadata map[string]any
}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Limit  int
	Offset int
}

// NotificationService manages user in-app notifications and pushes each
// created record to the recipient's personal channel.
type NotificationService struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewNotificationService constructs a NotificationService. The hub may be nil
// in tests that do not exercise realtime delivery.
func NewNotificationService(db *gorm.DB, hub *realtime.Hub) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, hub: hub}, nil
}

// Create registers a new notification and publishes it to the recipient.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*models.Notification, error) {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}
	if input.Type == "" {
		input.Type = models.NotificationUpdate
	}

	notification := models.Notification{
		UserID:  userID,
		ListID:  input.ListID,
		Type:    input.Type,
		Title:   strings.TrimSpace(input.Title),
		Message: strings.TrimSpace(input.Message),
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("notification service: marshal metadata: %w", err)
		}
		notification.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return nil, translateDBError(err, "create notification")
	}

	metrics.NotificationsFannedOut.WithLabelValues(string(notification.Type)).Inc()
	s.publish(userID, "notification-created", &notification)
	return &notification, nil
}

// ListForUser returns notifications for the supplied user ordered by recency.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]models.Notification, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	offset := input.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, translateDBError(err, "list notifications")
	}

	return rows, nil
}

// UnreadCount returns the number of unread notifications for the user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		return 0, translateDBError(err, "count unread notifications")
	}
	return count, nil
}

// MarkRead sets the notification read flag for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (*models.Notification, error) {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	var notification models.Notification
	if err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		First(&notification).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, translateDBError(err, "load notification")
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&notification).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return nil, translateDBError(err, "mark notification read")
	}

	notification.IsRead = true
	notification.ReadAt = &now

	s.publish(userID, "notification-read", &notification)
	return &notification, nil
}

// MarkAllRead marks all notifications for the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": now,
		}).Error; err != nil {
		return translateDBError(err, "mark all notifications read")
	}

	s.publish(userID, "notification-read-all", nil)
	return nil
}

// Delete removes a notification owned by the supplied user.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID string) error {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return translateDBError(result.Error, "delete notification")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	s.publish(userID, "notification-deleted", map[string]string{"id": notificationID})
	return nil
}

// DeleteReadOlderThan removes read notifications created before the cutoff.
// Used by the retention policy.
func (s *NotificationService) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).
		Where("is_read = ? AND created_at < ?", true, cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, translateDBError(result.Error, "prune notifications")
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) publish(userID, event string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToUser(userID, realtime.Event{Event: event, Data: data})
}
