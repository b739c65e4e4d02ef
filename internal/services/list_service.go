package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/models"
	"github.com/taskhive/taskhive/internal/realtime"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
)

// CreateListInput describes a new list.
type CreateListInput struct {
	Name        string `json:"name" binding:"required,max=200"`
	Description string `json:"description" binding:"max=2000"`
}

// UpdateListInput carries a rename/describe mutation. Nil fields are untouched.
type UpdateListInput struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

// ListDTO is the API shape of a list including the derived membership view.
type ListDTO struct {
	*models.List
	MemberIDs []string               `json:"member_ids"`
	Roles     map[string]models.Role `json:"roles"`
}

// ListService owns list lifecycle and membership. Every mutation follows the
// same pipeline: authorize, persist, then best-effort activity, notification
// and realtime side effects.
type ListService struct {
	db            *gorm.DB
	activities    *ActivityService
	notifications *NotificationService
	users         *UserService
	hub           *realtime.Hub
	log           *zap.Logger
}

// NewListService constructs a ListService.
func NewListService(db *gorm.DB, activities *ActivityService, notifications *NotificationService, users *UserService, hub *realtime.Hub) (*ListService, error) {
	if db == nil {
		return nil, errors.New("list service: db is required")
	}
	if activities == nil || notifications == nil || users == nil {
		return nil, errors.New("list service: activity, notification and user services are required")
	}
	return &ListService{
		db:            db,
		activities:    activities,
		notifications: notifications,
		users:         users,
		hub:           hub,
		log:           pipelineLogger("lists"),
	}, nil
}

// Create persists a new list with the creator as its sole owner-member.
func (s *ListService) Create(ctx context.Context, actorUID string, input CreateListInput) (*ListDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidation("list name is required")
	}

	list := models.List{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		OwnerID:     actorUID,
	}

	wctx, cancel := writeContext(ctx)
	defer cancel()

	err := s.db.WithContext(wctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&list).Error; err != nil {
			return err
		}
		return tx.Create(&models.ListMember{
			ListID: list.ID,
			UserID: actorUID,
			Role:   models.RoleOwner,
		}).Error
	})
	if err != nil {
		return nil, translateDBError(err, "create list")
	}

	list.Members = []models.ListMember{{ListID: list.ID, UserID: actorUID, Role: models.RoleOwner}}
	dto := toListDTO(&list)

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      list.ID,
				UserID:      actorUID,
				Action:      "list_created",
				Description: fmt.Sprintf("%s created list %q", s.users.DisplayName(ctx, actorUID), list.Name),
			})
			return err
		}},
		{"welcome notification", func(ctx context.Context) error {
			content := composeNotification(models.NotificationWelcome, "", "", list.Name)
			_, err := s.notifications.Create(ctx, CreateNotificationInput{
				UserID:  actorUID,
				ListID:  list.ID,
				Type:    models.NotificationWelcome,
				Title:   content.Title,
				Message: content.Message,
			})
			return err
		}},
		{"realtime", func(ctx context.Context) error {
			s.publishToUser(actorUID, "list-created", list.ID, dto)
			return nil
		}},
	})

	return dto, nil
}

// ListForUser returns all lists the user belongs to, newest first.
func (s *ListService) ListForUser(ctx context.Context, uid string) ([]ListDTO, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var lists []models.List
	if err := s.db.WithContext(ctx).
		Preload("Members").
		Joins("JOIN list_members ON list_members.list_id = lists.id AND list_members.user_id = ?", uid).
		Order("lists.created_at DESC").
		Find(&lists).Error; err != nil {
		return nil, translateDBError(err, "list lists")
	}

	dtos := make([]ListDTO, 0, len(lists))
	for i := range lists {
		dtos = append(dtos, *toListDTO(&lists[i]))
	}
	return dtos, nil
}

// Get loads a list for a member. Non-members are denied, unknown ids are not found.
func (s *ListService) Get(ctx context.Context, uid, listID string) (*ListDTO, error) {
	list, err := s.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, uid, authz.CapView); err != nil {
		return nil, err
	}
	return toListDTO(list), nil
}

// Update renames or re-describes a list. Requires the renameList capability.
func (s *ListService) Update(ctx context.Context, actorUID, listID string, input UpdateListInput) (*ListDTO, error) {
	list, err := s.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapRenameList); err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidation("list name cannot be empty")
		}
		updates["name"] = name
		list.Name = name
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
		list.Description = strings.TrimSpace(*input.Description)
	}
	if len(updates) == 0 {
		return toListDTO(list), nil
	}

	wctx, cancel := writeContext(ctx)
	if err := s.db.WithContext(wctx).Model(&models.List{}).Where("id = ?", listID).Updates(updates).Error; err != nil {
		cancel()
		return nil, translateDBError(err, "update list")
	}
	cancel()

	dto := toListDTO(list)
	actorName := s.users.DisplayName(ctx, actorUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      list.ID,
				UserID:      actorUID,
				Action:      "list_updated",
				Description: fmt.Sprintf("%s updated list %q", actorName, list.Name),
				Metadata:    map[string]any{"list_name": list.Name},
			})
			return err
		}},
		{"notifications", func(ctx context.Context) error {
			return s.notifyMembers(ctx, list, actorUID, models.NotificationListUpdated, "", nil)
		}},
		{"realtime", func(ctx context.Context) error {
			s.publishToList(list.ID, "list-updated", dto)
			return nil
		}},
	})

	return dto, nil
}

// Delete removes a list and everything scoped to it. Only the owner may
// delete; tasks, activities, notifications, invitations and membership rows
// go in the same transaction, so nothing is orphaned.
func (s *ListService) Delete(ctx context.Context, actorUID, listID string) error {
	list, err := s.loadList(ctx, listID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(list, actorUID, authz.CapDeleteList); err != nil {
		return err
	}

	memberIDs := list.MemberIDs()

	wctx, cancel := writeContext(ctx)
	defer cancel()

	err = s.db.WithContext(wctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&models.Task{},
			&models.Activity{},
			&models.Notification{},
			&models.PendingInvitation{},
			&models.ListMember{},
		} {
			if err := tx.Where("list_id = ?", listID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", listID).Delete(&models.List{}).Error
	})
	if err != nil {
		return translateDBError(err, "delete list")
	}

	actorName := s.users.DisplayName(ctx, actorUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"notifications", func(ctx context.Context) error {
			var firstErr error
			for _, uid := range excludeUID(memberIDs, actorUID) {
				_, err := s.notifications.Create(ctx, CreateNotificationInput{
					UserID:  uid,
					Type:    models.NotificationUpdate,
					Title:   "List Deleted",
					Message: fmt.Sprintf("%s deleted the list %q", actorName, list.Name),
					Metadata: map[string]any{
						"actor_user_id": actorUID,
						"actor_name":    actorName,
					},
				})
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		}},
		{"realtime", func(ctx context.Context) error {
			s.publishToList(listID, "list-deleted", map[string]string{"list_id": listID})
			return nil
		}},
	})

	return nil
}

// RemoveMember drops a member from the list. Owners may remove anyone but
// themselves; any member may leave on their own.
func (s *ListService) RemoveMember(ctx context.Context, actorUID, listID, memberUID string) error {
	list, err := s.loadList(ctx, listID)
	if err != nil {
		return err
	}

	if _, ok := list.RoleOf(memberUID); !ok {
		return apperrors.ErrNotFound.WithMessage("User is not a member of this list")
	}

	selfLeave := actorUID == memberUID
	if !selfLeave {
		if role, _ := list.RoleOf(actorUID); role != models.RoleOwner {
			return apperrors.ErrAccessDenied
		}
	}
	if memberUID == list.OwnerID {
		return apperrors.NewValidation("the owner cannot be removed from their own list")
	}

	wctx, cancel := writeContext(ctx)
	if err := s.db.WithContext(wctx).
		Where("list_id = ? AND user_id = ?", listID, memberUID).
		Delete(&models.ListMember{}).Error; err != nil {
		cancel()
		return translateDBError(err, "remove member")
	}
	cancel()

	actorName := s.users.DisplayName(ctx, actorUID)
	memberName := s.users.DisplayName(ctx, memberUID)
	remaining := excludeUID(list.MemberIDs(), memberUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			description := fmt.Sprintf("%s removed %s from the list", actorName, memberName)
			if selfLeave {
				description = fmt.Sprintf("%s left the list", memberName)
			}
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      listID,
				UserID:      actorUID,
				Action:      "member_removed",
				Description: description,
				Metadata:    map[string]any{"member_uid": memberUID},
			})
			return err
		}},
		{"notifications", func(ctx context.Context) error {
			content := composeNotification(models.NotificationMemberRemoved, actorName, memberName, list.Name)
			var firstErr error
			for _, uid := range excludeUID(remaining, actorUID) {
				_, err := s.notifications.Create(ctx, CreateNotificationInput{
					UserID:   uid,
					ListID:   listID,
					Type:     models.NotificationMemberRemoved,
					Title:    content.Title,
					Message:  content.Message,
					Metadata: map[string]any{"member_uid": memberUID, "actor_user_id": actorUID},
				})
				if err != nil && firstErr == nil {
					firstErr = err
				}
			}
			return firstErr
		}},
		{"realtime", func(ctx context.Context) error {
			s.publishToList(listID, "member-removed", map[string]string{
				"list_id":    listID,
				"member_uid": memberUID,
			})
			return nil
		}},
	})

	return nil
}

// IsMember reports whether the user currently belongs to the list. Used to
// authorize realtime list-room joins.
func (s *ListService) IsMember(ctx context.Context, uid, listID string) bool {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.ListMember{}).
		Where("list_id = ? AND user_id = ?", listID, uid).
		Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

// loadList fetches a list with its membership rows.
func (s *ListService) loadList(ctx context.Context, listID string) (*models.List, error) {
	ctx, cancel := readContext(ctx)
	defer cancel()

	var list models.List
	if err := s.db.WithContext(ctx).
		Preload("Members").
		Where("id = ?", listID).
		First(&list).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("List not found")
		}
		return nil, translateDBError(err, "load list")
	}
	return &list, nil
}

// notifyMembers fans a notification out to every current member except the
// actor. Failures for one recipient do not stop the rest.
func (s *ListService) notifyMembers(ctx context.Context, list *models.List, actorUID string, tag models.NotificationType, subject string, metadata map[string]any) error {
	actorName := s.users.DisplayName(ctx, actorUID)
	content := composeNotification(tag, actorName, subject, list.Name)

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["actor_user_id"] = actorUID
	metadata["actor_name"] = actorName

	var firstErr error
	for _, uid := range excludeUID(list.MemberIDs(), actorUID) {
		_, err := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:   uid,
			ListID:   list.ID,
			Type:     tag,
			Title:    content.Title,
			Message:  content.Message,
			Metadata: metadata,
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *ListService) publishToList(listID, event string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToList(listID, realtime.Event{Event: event, ListID: listID, Data: data})
}

func (s *ListService) publishToUser(uid, event, listID string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToUser(uid, realtime.Event{Event: event, ListID: listID, Data: data})
}

func toListDTO(list *models.List) *ListDTO {
	return &ListDTO{
		List:      list,
		MemberIDs: list.MemberIDs(),
		Roles:     list.Roles(),
	}
}
