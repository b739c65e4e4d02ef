package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/models"
)

// RecordActivityInput describes one append-only audit entry.
type RecordActivityInput struct {
	ListID      string
	UserID      string
	Action      string
	Description string
	TaskID      string
	Metadata    map[string]any
}

// ActivityService appends and reads the per-list audit log. Entries are never
// mutated; they disappear only when their list is deleted.
type ActivityService struct {
	db *gorm.DB
}

// NewActivityService constructs an ActivityService.
func NewActivityService(db *gorm.DB) (*ActivityService, error) {
	if db == nil {
		return nil, errors.New("activity service: db is required")
	}
	return &ActivityService{db: db}, nil
}

// Record persists one activity entry.
func (s *ActivityService) Record(ctx context.Context, input RecordActivityInput) (*models.Activity, error) {
	ctx, cancel := writeContext(ctx)
	defer cancel()

	if input.ListID == "" || input.UserID == "" || input.Action == "" {
		return nil, errors.New("activity service: list id, user id and action are required")
	}

	activity := models.Activity{
		ListID:      input.ListID,
		UserID:      input.UserID,
		Action:      input.Action,
		Description: input.Description,
		TaskID:      input.TaskID,
	}

	if input.Metadata != nil {
		data, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("activity service: marshal metadata: %w", err)
		}
		activity.Metadata = datatypes.JSON(data)
	}

	if err := s.db.WithContext(ctx).Create(&activity).Error; err != nil {
		return nil, translateDBError(err, "record activity")
	}

	return &activity, nil
}

// ListForList returns the newest activity entries for a list.
func (s *ActivityService) ListForList(ctx context.Context, listID string, limit, offset int) ([]models.Activity, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []models.Activity
	if err := s.db.WithContext(ctx).
		Where("list_id = ?", listID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error; err != nil {
		return nil, translateDBError(err, "list activities")
	}

	return rows, nil
}
