package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/taskhive/taskhive/internal/authz"
	"github.com/taskhive/taskhive/internal/models"
	"github.com/taskhive/taskhive/internal/realtime"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
)

// CreateTaskInput describes a new task within a list.
type CreateTaskInput struct {
	Title       string     `json:"title" binding:"required,max=300"`
	Description string     `json:"description" binding:"max=5000"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
	AssignedTo  string     `json:"assigned_to"`
}

// UpdateTaskInput carries a partial task mutation. Nil fields are untouched.
type UpdateTaskInput struct {
	Title       *string    `json:"title" binding:"omitempty,max=300"`
	Description *string    `json:"description" binding:"omitempty,max=5000"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	Deadline    *time.Time `json:"deadline"`
	ClearDue    bool       `json:"clear_deadline"`
	AssignedTo  *string    `json:"assigned_to"`
	Done        *bool      `json:"done"`
}

// TaskService owns task lifecycle within lists. Status is the source of truth
// for completion; the legacy done flag is derived from it on every write.
type TaskService struct {
	db            *gorm.DB
	lists         *ListService
	activities    *ActivityService
	notifications *NotificationService
	users         *UserService
	hub           *realtime.Hub
	log           *zap.Logger
}

// NewTaskService constructs a TaskService.
func NewTaskService(db *gorm.DB, lists *ListService, activities *ActivityService, notifications *NotificationService, users *UserService, hub *realtime.Hub) (*TaskService, error) {
	if db == nil {
		return nil, errors.New("task service: db is required")
	}
	if lists == nil || activities == nil || notifications == nil || users == nil {
		return nil, errors.New("task service: list, activity, notification and user services are required")
	}
	return &TaskService{
		db:            db,
		lists:         lists,
		activities:    activities,
		notifications: notifications,
		users:         users,
		hub:           hub,
		log:           pipelineLogger("tasks"),
	}, nil
}

// Create adds a task to a list. Requires the editTasks capability.
func (s *TaskService) Create(ctx context.Context, actorUID, listID string, input CreateTaskInput) (*models.Task, error) {
	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapEditTasks); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidation("task title is required")
	}

	status := models.TaskStatusPending
	if input.Status != "" {
		status = models.TaskStatus(input.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("invalid status %q", input.Status))
		}
	}
	priority := models.TaskPriorityMedium
	if input.Priority != "" {
		priority = models.TaskPriority(input.Priority)
		if !priority.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("invalid priority %q", input.Priority))
		}
	}
	if input.AssignedTo != "" {
		if _, ok := list.RoleOf(input.AssignedTo); !ok {
			return nil, apperrors.NewValidation("assignee must be a member of the list")
		}
	}

	task := models.Task{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      status,
		Priority:    priority,
		Deadline:    input.Deadline,
		ListID:      listID,
		AssignedTo:  input.AssignedTo,
		CreatedBy:   actorUID,
		Done:        status == models.TaskStatusCompleted,
	}

	wctx, cancel := writeContext(ctx)
	if err := s.db.WithContext(wctx).Create(&task).Error; err != nil {
		cancel()
		return nil, translateDBError(err, "create task")
	}
	cancel()

	actorName := s.users.DisplayName(ctx, actorUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      listID,
				UserID:      actorUID,
				Action:      "task_created",
				Description: fmt.Sprintf("%s created task %q", actorName, task.Title),
				TaskID:      task.ID,
			})
			return err
		}},
		{"notifications", func(ctx context.Context) error {
			return s.fanOut(ctx, list, actorUID, models.NotificationTaskCreated, &task, actorName)
		}},
		{"realtime", func(ctx context.Context) error {
			s.publish(listID, "task-created", &task)
			return nil
		}},
	})

	return &task, nil
}

// Get loads a single task for a member of its list.
func (s *TaskService) Get(ctx context.Context, actorUID, listID, taskID string) (*models.Task, error) {
	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapView); err != nil {
		return nil, err
	}
	return s.loadTask(ctx, listID, taskID)
}

// ListForList returns the tasks of a list, newest first.
func (s *TaskService) ListForList(ctx context.Context, actorUID, listID string) ([]models.Task, error) {
	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapView); err != nil {
		return nil, err
	}

	rctx, cancel := readContext(ctx)
	defer cancel()

	var tasks []models.Task
	if err := s.db.WithContext(rctx).
		Where("list_id = ?", listID).
		Order("created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, translateDBError(err, "list tasks")
	}
	return tasks, nil
}

// Update applies a partial mutation to a task. Status and the done flag are
// reconciled before persisting so they can never disagree.
func (s *TaskService) Update(ctx context.Context, actorUID, listID, taskID string, input UpdateTaskInput) (*models.Task, error) {
	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(list, actorUID, authz.CapEditTasks); err != nil {
		return nil, err
	}

	task, err := s.loadTask(ctx, listID, taskID)
	if err != nil {
		return nil, err
	}

	wasCompleted := task.Status == models.TaskStatusCompleted
	previousAssignee := task.AssignedTo
	updates := map[string]any{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidation("task title cannot be empty")
		}
		task.Title = title
		updates["title"] = title
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
		updates["description"] = task.Description
	}
	if input.Priority != nil {
		priority := models.TaskPriority(*input.Priority)
		if !priority.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("invalid priority %q", *input.Priority))
		}
		task.Priority = priority
		updates["priority"] = priority
	}
	if input.Deadline != nil {
		task.Deadline = input.Deadline
		updates["deadline"] = input.Deadline
	} else if input.ClearDue {
		task.Deadline = nil
		updates["deadline"] = gorm.Expr("NULL")
	}
	if input.AssignedTo != nil {
		assignee := *input.AssignedTo
		if assignee != "" {
			if _, ok := list.RoleOf(assignee); !ok {
				return nil, apperrors.NewValidation("assignee must be a member of the list")
			}
		}
		task.AssignedTo = assignee
		updates["assigned_to"] = assignee
	}

	// Reconcile completion. An explicit status wins over the done flag.
	if input.Status != nil {
		status := models.TaskStatus(*input.Status)
		if !status.Valid() {
			return nil, apperrors.NewValidation(fmt.Sprintf("invalid status %q", *input.Status))
		}
		task.Status = status
	} else if input.Done != nil {
		if *input.Done {
			task.Status = models.TaskStatusCompleted
		} else if task.Status == models.TaskStatusCompleted {
			task.Status = models.TaskStatusPending
		}
	}
	task.Done = task.Status == models.TaskStatusCompleted
	if input.Status != nil || input.Done != nil {
		updates["status"] = task.Status
		updates["done"] = task.Done
	}

	if len(updates) == 0 {
		return task, nil
	}

	wctx, cancel := writeContext(ctx)
	if err := s.db.WithContext(wctx).Model(&models.Task{}).
		Where("id = ? AND list_id = ?", taskID, listID).
		Updates(updates).Error; err != nil {
		cancel()
		return nil, translateDBError(err, "update task")
	}
	cancel()

	actorName := s.users.DisplayName(ctx, actorUID)
	completedNow := !wasCompleted && task.Status == models.TaskStatusCompleted
	assignedNow := input.AssignedTo != nil && task.AssignedTo != "" && task.AssignedTo != previousAssignee

	tag := models.NotificationTaskUpdated
	action := "task_updated"
	description := fmt.Sprintf("%s updated task %q", actorName, task.Title)
	if completedNow {
		tag = models.NotificationTaskCompleted
		action = "task_completed"
		description = fmt.Sprintf("%s completed task %q", actorName, task.Title)
	}

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      listID,
				UserID:      actorUID,
				Action:      action,
				Description: description,
				TaskID:      task.ID,
			})
			return err
		}},
		{"notifications", func(ctx context.Context) error {
			if assignedNow {
				return s.fanOutWithAssignee(ctx, list, actorUID, tag, task, actorName)
			}
			return s.fanOut(ctx, list, actorUID, tag, task, actorName)
		}},
		{"realtime", func(ctx context.Context) error {
			s.publish(listID, "task-updated", task)
			return nil
		}},
	})

	return task, nil
}

// Delete removes a task from its list.
func (s *TaskService) Delete(ctx context.Context, actorUID, listID, taskID string) error {
	list, err := s.lists.loadList(ctx, listID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(list, actorUID, authz.CapEditTasks); err != nil {
		return err
	}

	task, err := s.loadTask(ctx, listID, taskID)
	if err != nil {
		return err
	}

	wctx, cancel := writeContext(ctx)
	result := s.db.WithContext(wctx).
		Where("id = ? AND list_id = ?", taskID, listID).
		Delete(&models.Task{})
	cancel()
	if result.Error != nil {
		return translateDBError(result.Error, "delete task")
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound.WithMessage("Task not found")
	}

	actorName := s.users.DisplayName(ctx, actorUID)

	runSideEffects(ctx, s.log, []sideEffect{
		{"activity", func(ctx context.Context) error {
			_, err := s.activities.Record(ctx, RecordActivityInput{
				ListID:      listID,
				UserID:      actorUID,
				Action:      "task_deleted",
				Description: fmt.Sprintf("%s deleted task %q", actorName, task.Title),
				TaskID:      task.ID,
			})
			return err
		}},
		{"notifications", func(ctx context.Context) error {
			return s.fanOut(ctx, list, actorUID, models.NotificationTaskDeleted, task, actorName)
		}},
		{"realtime", func(ctx context.Context) error {
			s.publish(listID, "task-deleted", map[string]string{"id": taskID, "list_id": listID})
			return nil
		}},
	})

	return nil
}

func (s *TaskService) loadTask(ctx context.Context, listID, taskID string) (*models.Task, error) {
	rctx, cancel := readContext(ctx)
	defer cancel()

	var task models.Task
	if err := s.db.WithContext(rctx).
		Where("id = ? AND list_id = ?", taskID, listID).
		First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound.WithMessage("Task not found")
		}
		return nil, translateDBError(err, "load task")
	}
	return &task, nil
}

// fanOut notifies every list member except the actor about a task change.
func (s *TaskService) fanOut(ctx context.Context, list *models.List, actorUID string, tag models.NotificationType, task *models.Task, actorName string) error {
	content := composeNotification(tag, actorName, task.Title, list.Name)
	return s.deliver(ctx, list, actorUID, tag, task, content, nil)
}

// fanOutWithAssignee delivers the ordinary copy to everyone except the actor
// and the assignee, and the distinguished assignment copy to the assignee.
func (s *TaskService) fanOutWithAssignee(ctx context.Context, list *models.List, actorUID string, tag models.NotificationType, task *models.Task, actorName string) error {
	content := composeNotification(tag, actorName, task.Title, list.Name)
	err := s.deliver(ctx, list, actorUID, tag, task, content, func(uid string) bool {
		return uid == task.AssignedTo
	})

	if task.AssignedTo != actorUID {
		assigneeContent := composeAssigneeNotification(actorName, task.Title, list.Name)
		_, createErr := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  task.AssignedTo,
			ListID:  list.ID,
			Type:    models.NotificationTaskAssigned,
			Title:   assigneeContent.Title,
			Message: assigneeContent.Message,
			Metadata: map[string]any{
				"task_id":       task.ID,
				"actor_user_id": actorUID,
			},
		})
		if createErr != nil && err == nil {
			err = createErr
		}
	}
	return err
}

func (s *TaskService) deliver(ctx context.Context, list *models.List, actorUID string, tag models.NotificationType, task *models.Task, content notificationContent, skip func(uid string) bool) error {
	var firstErr error
	for _, uid := range excludeUID(list.MemberIDs(), actorUID) {
		if skip != nil && skip(uid) {
			continue
		}
		_, err := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  uid,
			ListID:  list.ID,
			Type:    tag,
			Title:   content.Title,
			Message: content.Message,
			Metadata: map[string]any{
				"task_id":       task.ID,
				"actor_user_id": actorUID,
			},
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *TaskService) publish(listID, event string, data any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastToList(listID, realtime.Event{Event: event, ListID: listID, Data: data})
}
