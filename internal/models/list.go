package models

import "time"

// Role scopes a user's capabilities on a single list.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Valid reports whether the role is one of the closed set.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleViewer:
		return true
	}
	return false
}

// List is a shared to-do list. Membership and per-member roles live in
// ListMember rows so that a member always has exactly one role.
type List struct {
	BaseModel

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	OwnerID     string `gorm:"not null;index" json:"owner_id"`

	Members []ListMember `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"-"`
}

// ListMember binds a user to a list with a single role. One row carries both
// membership and the role grant, so the two can never drift apart.
type ListMember struct {
	ListID    string    `gorm:"primaryKey" json:"list_id"`
	UserID    string    `gorm:"primaryKey;index" json:"user_id"`
	Role      Role      `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// MemberIDs returns the UIDs of all members, preload order preserved.
func (l *List) MemberIDs() []string {
	ids := make([]string, 0, len(l.Members))
	for _, m := range l.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// RoleOf returns the member's role, or false when the user is not a member.
func (l *List) RoleOf(uid string) (Role, bool) {
	for _, m := range l.Members {
		if m.UserID == uid {
			return m.Role, true
		}
	}
	return "", false
}

// Roles returns the uid to role mapping for API payloads.
func (l *List) Roles() map[string]Role {
	roles := make(map[string]Role, len(l.Members))
	for _, m := range l.Members {
		roles[m.UserID] = m.Role
	}
	return roles
}
