package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/taskhive/taskhive/internal/models"
)

type testEnv struct {
	db            *gorm.DB
	users         *UserService
	activities    *ActivityService
	notifications *NotificationService
	lists         *ListService
	tasks         *TaskService
	invitations   *InvitationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.List{},
		&models.ListMember{},
		&models.Task{},
		&models.Activity{},
		&models.Notification{},
		&models.PendingInvitation{},
	))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	users, err := NewUserService(db)
	require.NoError(t, err)
	activities, err := NewActivityService(db)
	require.NoError(t, err)
	notifications, err := NewNotificationService(db, nil)
	require.NoError(t, err)
	lists, err := NewListService(db, activities, notifications, users, nil)
	require.NoError(t, err)
	tasks, err := NewTaskService(db, lists, activities, notifications, users, nil)
	require.NoError(t, err)
	invitations, err := NewInvitationService(db, lists, activities, notifications, users, nil, nil, "http://localhost:8000")
	require.NoError(t, err)

	return &testEnv{
		db:            db,
		users:         users,
		activities:    activities,
		notifications: notifications,
		lists:         lists,
		tasks:         tasks,
		invitations:   invitations,
	}
}

func (e *testEnv) seedUser(t *testing.T, uid, email, name string) *models.User {
	t.Helper()

	user := &models.User{
		UID:         uid,
		Email:       email,
		DisplayName: name,
		Provider:    "google",
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) addMember(t *testing.T, listID, uid string, role models.Role) {
	t.Helper()

	require.NoError(t, e.db.Create(&models.ListMember{
		ListID: listID,
		UserID: uid,
		Role:   role,
	}).Error)
}

func (e *testEnv) notificationsFor(t *testing.T, uid string) []models.Notification {
	t.Helper()

	var rows []models.Notification
	require.NoError(t, e.db.Where("user_id = ?", uid).Order("created_at ASC").Find(&rows).Error)
	return rows
}

func mustCreateList(t *testing.T, e *testEnv, ownerUID, name string) *ListDTO {
	t.Helper()

	dto, err := e.lists.Create(context.Background(), ownerUID, CreateListInput{Name: name})
	require.NoError(t, err)
	return dto
}
