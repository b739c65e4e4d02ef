package models

import "time"

// User describes an authenticated account. The UID is the stable external
// identity (the provider subject for Google sign-ins) and never changes.
type User struct {
	UID         string `gorm:"primaryKey" json:"uid"`
	Email       string `gorm:"uniqueIndex;not null" json:"email"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
	Provider    string `gorm:"type:varchar(32);default:'google'" json:"provider"`

	LastLoginAt *time.Time `json:"last_login_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
