package models

import "gorm.io/datatypes"

// Activity is an append-only audit record of a mutation on a list. Rows are
// never updated; they are removed only when their list is deleted.
type Activity struct {
	BaseModel

	ListID      string         `gorm:"not null;index" json:"list_id"`
	UserID      string         `gorm:"not null;index" json:"user_id"`
	Action      string         `gorm:"type:varchar(64);not null" json:"action"`
	Description string         `gorm:"type:text" json:"description"`
	TaskID      string         `gorm:"index" json:"task_id,omitempty"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
}
