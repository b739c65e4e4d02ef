package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType enumerates the closed set of notification kinds.
type NotificationType string

const (
	NotificationInvite             NotificationType = "invite"
	NotificationWelcome            NotificationType = "welcome"
	NotificationUpdate             NotificationType = "update"
	NotificationTaskCreated        NotificationType = "task_created"
	NotificationTaskUpdated        NotificationType = "task_updated"
	NotificationTaskCompleted      NotificationType = "task_completed"
	NotificationTaskDeleted        NotificationType = "task_deleted"
	NotificationTaskAssigned       NotificationType = "task_assigned"
	NotificationListUpdated        NotificationType = "list_updated"
	NotificationMemberAdded        NotificationType = "member_added"
	NotificationMemberRemoved      NotificationType = "member_removed"
	NotificationInvitationAccepted NotificationType = "invitation_accepted"
	NotificationInvitationDeclined NotificationType = "invitation_declined"
	NotificationInvitationReceived NotificationType = "invitation_received"
)

// Notification represents an in-app notification for a user.
type Notification struct {
	BaseModel

	UserID  string           `gorm:"not null;index" json:"user_id"`
	Title   string           `gorm:"type:varchar(255);not null" json:"title"`
	Message string           `gorm:"type:text" json:"message"`
	ListID  string           `gorm:"index" json:"list_id,omitempty"`
	Type    NotificationType `gorm:"type:varchar(32);not null;default:'update'" json:"type"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`
}
