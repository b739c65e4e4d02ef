package models

import "time"

// InvitationTTL is how long an invitation stays acceptable after creation.
const InvitationTTL = 7 * 24 * time.Hour

// PendingInvitation is an email-addressed offer to join a list with a given
// role. The invitee may not have an account yet, so the record targets an
// email rather than a uid; identity binding happens at accept time. At most
// one pending invitation exists per (email, list) pair.
type PendingInvitation struct {
	BaseModel

	Email     string    `gorm:"not null;uniqueIndex:idx_invitations_email_list" json:"email"`
	ListID    string    `gorm:"not null;uniqueIndex:idx_invitations_email_list" json:"list_id"`
	ListName  string    `json:"list_name"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	InvitedBy string    `gorm:"not null" json:"invited_by"`
	InvitedAt time.Time `gorm:"not null;index" json:"invited_at"`
}

// IsExpired reports whether the invitation window has elapsed. Expiry is
// evaluated lazily on access; nothing sweeps the table eagerly.
func (i *PendingInvitation) IsExpired(now time.Time) bool {
	return !now.Before(i.InvitedAt.Add(InvitationTTL))
}
