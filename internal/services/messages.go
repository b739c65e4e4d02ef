package services

import (
	"fmt"

	"github.com/taskhive/taskhive/internal/models"
)

// notificationContent is the rendered title/message pair for one recipient.
type notificationContent struct {
	Title   string
	Message string
}

// composeNotification renders the notification copy for an action tag. It is
// total over the closed tag set; unrecognized tags fall back to a generic
// "{actor} updated {list}" message instead of failing.
func composeNotification(tag models.NotificationType, actor, subject, listName string) notificationContent {
	switch tag {
	case models.NotificationTaskCreated:
		return notificationContent{
			Title:   "New Task Created",
			Message: fmt.Sprintf("%s created %q in %q", actor, subject, listName),
		}
	case models.NotificationTaskUpdated:
		return notificationContent{
			Title:   "Task Updated",
			Message: fmt.Sprintf("%s updated %q in %q", actor, subject, listName),
		}
	case models.NotificationTaskCompleted:
		return notificationContent{
			Title:   "Task Completed",
			Message: fmt.Sprintf("%s completed %q in %q", actor, subject, listName),
		}
	case models.NotificationTaskDeleted:
		return notificationContent{
			Title:   "Task Deleted",
			Message: fmt.Sprintf("%s deleted %q from %q", actor, subject, listName),
		}
	case models.NotificationListUpdated:
		return notificationContent{
			Title:   "List Updated",
			Message: fmt.Sprintf("%s updated the list %q", actor, listName),
		}
	case models.NotificationMemberAdded:
		return notificationContent{
			Title:   "New Member",
			Message: fmt.Sprintf("%s joined %q", subject, listName),
		}
	case models.NotificationMemberRemoved:
		return notificationContent{
			Title:   "Member Removed",
			Message: fmt.Sprintf("%s removed %s from %q", actor, subject, listName),
		}
	case models.NotificationInvitationAccepted:
		return notificationContent{
			Title:   "Invitation Accepted",
			Message: fmt.Sprintf("%s accepted the invitation to %q", subject, listName),
		}
	case models.NotificationInvitationDeclined:
		return notificationContent{
			Title:   "Invitation Declined",
			Message: fmt.Sprintf("The invitation for %s to %q was declined", subject, listName),
		}
	case models.NotificationInvite:
		return notificationContent{
			Title:   "Member Invited",
			Message: fmt.Sprintf("%s invited %s to join %q", actor, subject, listName),
		}
	case models.NotificationInvitationReceived:
		return notificationContent{
			Title:   "You're Invited",
			Message: fmt.Sprintf("%s invited you to join %q", actor, listName),
		}
	case models.NotificationWelcome:
		return notificationContent{
			Title:   "List Created",
			Message: fmt.Sprintf("You created the list %q", listName),
		}
	default:
		return notificationContent{
			Title:   "List Activity",
			Message: fmt.Sprintf("%s updated %q", actor, listName),
		}
	}
}

// composeAssigneeNotification renders the distinguished message an assignee
// receives instead of the ordinary fan-out copy.
func composeAssigneeNotification(actor, subject, listName string) notificationContent {
	return notificationContent{
		Title:   "Task Assigned to You",
		Message: fmt.Sprintf("%s assigned %q to you in %q", actor, subject, listName),
	}
}
