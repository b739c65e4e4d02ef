package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/internal/models"
	apperrors "github.com/taskhive/taskhive/pkg/errors"
)

func TestTaskServiceCreateDefaults(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tc-owner", "tc-owner@example.com", "Owner")
	list := mustCreateList(t, env, "tc-owner", "Chores")

	task, err := env.tasks.Create(context.Background(), "tc-owner", list.ID, CreateTaskInput{Title: "Sweep"})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusPending, task.Status)
	require.Equal(t, models.TaskPriorityMedium, task.Priority)
	require.False(t, task.Done)
	require.Equal(t, "tc-owner", task.CreatedBy)

	_, err = env.tasks.Create(context.Background(), "tc-owner", list.ID, CreateTaskInput{
		Title:  "Bad",
		Status: "NotAStatus",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = env.tasks.Create(context.Background(), "tc-owner", list.ID, CreateTaskInput{
		Title:      "Orphan assignee",
		AssignedTo: "tc-stranger",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestTaskServiceStatusAndDoneStayCoupled(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "td-owner", "td-owner@example.com", "Owner")
	list := mustCreateList(t, env, "td-owner", "Coupling")

	task, err := env.tasks.Create(context.Background(), "td-owner", list.ID, CreateTaskInput{Title: "Laundry"})
	require.NoError(t, err)

	// done=true pulls status to Completed.
	done := true
	task, err = env.tasks.Update(context.Background(), "td-owner", list.ID, task.ID, UpdateTaskInput{Done: &done})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, task.Status)
	require.True(t, task.Done)

	// Moving status away from Completed clears done.
	status := string(models.TaskStatusInProgress)
	task, err = env.tasks.Update(context.Background(), "td-owner", list.ID, task.ID, UpdateTaskInput{Status: &status})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusInProgress, task.Status)
	require.False(t, task.Done)

	// An explicit status wins over a conflicting done flag.
	status = string(models.TaskStatusCompleted)
	falseDone := false
	task, err = env.tasks.Update(context.Background(), "td-owner", list.ID, task.ID, UpdateTaskInput{
		Status: &status,
		Done:   &falseDone,
	})
	require.NoError(t, err)
	require.Equal(t, models.TaskStatusCompleted, task.Status)
	require.True(t, task.Done)

	// The persisted row agrees with the returned value.
	var stored models.Task
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&stored).Error)
	require.Equal(t, models.TaskStatusCompleted, stored.Status)
	require.True(t, stored.Done)
}

func TestTaskServiceViewerCannotMutate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tv-owner", "tv-owner@example.com", "Owner")
	env.seedUser(t, "tv-viewer", "tv-viewer@example.com", "Viewer")
	list := mustCreateList(t, env, "tv-owner", "ReadOnly")
	env.addMember(t, list.ID, "tv-viewer", models.RoleViewer)

	task, err := env.tasks.Create(context.Background(), "tv-owner", list.ID, CreateTaskInput{Title: "Untouchable"})
	require.NoError(t, err)

	_, err = env.tasks.Create(context.Background(), "tv-viewer", list.ID, CreateTaskInput{Title: "Nope"})
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)

	title := "Hacked"
	_, err = env.tasks.Update(context.Background(), "tv-viewer", list.ID, task.ID, UpdateTaskInput{Title: &title})
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)

	err = env.tasks.Delete(context.Background(), "tv-viewer", list.ID, task.ID)
	require.ErrorIs(t, err, apperrors.ErrAccessDenied)

	// Denied mutations changed nothing.
	stored, err := env.tasks.Get(context.Background(), "tv-viewer", list.ID, task.ID)
	require.NoError(t, err)
	require.Equal(t, "Untouchable", stored.Title)

	tasks, err := env.tasks.ListForList(context.Background(), "tv-viewer", list.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
}

func TestTaskServiceFanOutExcludesActor(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tf-a", "tf-a@example.com", "Ana")
	env.seedUser(t, "tf-b", "tf-b@example.com", "Ben")
	env.seedUser(t, "tf-c", "tf-c@example.com", "Cas")
	list := mustCreateList(t, env, "tf-a", "Team")
	env.addMember(t, list.ID, "tf-b", models.RoleEditor)
	env.addMember(t, list.ID, "tf-c", models.RoleViewer)

	_, err := env.tasks.Create(context.Background(), "tf-a", list.ID, CreateTaskInput{Title: "Fan out"})
	require.NoError(t, err)

	for _, uid := range []string{"tf-b", "tf-c"} {
		rows := env.notificationsFor(t, uid)
		require.Len(t, rows, 1, "member %s should hear about the task", uid)
		require.Equal(t, models.NotificationTaskCreated, rows[0].Type)
	}
	for _, row := range env.notificationsFor(t, "tf-a") {
		require.NotEqual(t, models.NotificationTaskCreated, row.Type)
	}
}

func TestTaskServiceAssignmentDistinguishesAssignee(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ta-a", "ta-a@example.com", "Ana")
	env.seedUser(t, "ta-b", "ta-b@example.com", "Ben")
	env.seedUser(t, "ta-c", "ta-c@example.com", "Cas")
	list := mustCreateList(t, env, "ta-a", "Assignments")
	env.addMember(t, list.ID, "ta-b", models.RoleEditor)
	env.addMember(t, list.ID, "ta-c", models.RoleEditor)

	task, err := env.tasks.Create(context.Background(), "ta-a", list.ID, CreateTaskInput{Title: "Ship it"})
	require.NoError(t, err)

	assignee := "ta-b"
	_, err = env.tasks.Update(context.Background(), "ta-a", list.ID, task.ID, UpdateTaskInput{AssignedTo: &assignee})
	require.NoError(t, err)

	benRows := env.notificationsFor(t, "ta-b")
	var assigned, updated int
	for _, row := range benRows {
		switch row.Type {
		case models.NotificationTaskAssigned:
			assigned++
		case models.NotificationTaskUpdated:
			updated++
		}
	}
	require.Equal(t, 1, assigned, "assignee gets the distinguished message")
	require.Zero(t, updated, "assignee does not also get the generic copy")

	casRows := env.notificationsFor(t, "ta-c")
	var casUpdated int
	for _, row := range casRows {
		if row.Type == models.NotificationTaskUpdated {
			casUpdated++
		}
	}
	require.Equal(t, 1, casUpdated)
}

func TestTaskServiceCompletionTagsActivity(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tp-owner", "tp-owner@example.com", "Owner")
	list := mustCreateList(t, env, "tp-owner", "Completion")

	task, err := env.tasks.Create(context.Background(), "tp-owner", list.ID, CreateTaskInput{Title: "Finish line"})
	require.NoError(t, err)

	status := string(models.TaskStatusCompleted)
	_, err = env.tasks.Update(context.Background(), "tp-owner", list.ID, task.ID, UpdateTaskInput{Status: &status})
	require.NoError(t, err)

	var activities []models.Activity
	require.NoError(t, env.db.Where("list_id = ? AND task_id = ?", list.ID, task.ID).Find(&activities).Error)

	actions := make([]string, 0, len(activities))
	for _, a := range activities {
		actions = append(actions, a.Action)
	}
	require.Contains(t, actions, "task_created")
	require.Contains(t, actions, "task_completed")
	require.NotContains(t, actions, "task_updated")
}

func TestTaskServiceDeadlineUpdates(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tl-owner", "tl-owner@example.com", "Owner")
	list := mustCreateList(t, env, "tl-owner", "Deadlines")

	due := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	task, err := env.tasks.Create(context.Background(), "tl-owner", list.ID, CreateTaskInput{
		Title:    "Dated",
		Deadline: &due,
	})
	require.NoError(t, err)
	require.NotNil(t, task.Deadline)

	task, err = env.tasks.Update(context.Background(), "tl-owner", list.ID, task.ID, UpdateTaskInput{ClearDue: true})
	require.NoError(t, err)
	require.Nil(t, task.Deadline)

	var stored models.Task
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&stored).Error)
	require.Nil(t, stored.Deadline)
}

func TestTaskServiceDeleteRemovesTask(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "tx-owner", "tx-owner@example.com", "Owner")
	list := mustCreateList(t, env, "tx-owner", "Deletion")

	task, err := env.tasks.Create(context.Background(), "tx-owner", list.ID, CreateTaskInput{Title: "Ephemeral"})
	require.NoError(t, err)

	require.NoError(t, env.tasks.Delete(context.Background(), "tx-owner", list.ID, task.ID))

	_, err = env.tasks.Get(context.Background(), "tx-owner", list.ID, task.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = env.tasks.Delete(context.Background(), "tx-owner", list.ID, task.ID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
