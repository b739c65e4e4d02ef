package models

import "time"

// TaskStatus enumerates task progress states.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "InProgress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

// Valid reports whether the status is one of the closed set.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

// TaskPriority enumerates task urgency levels.
type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

// Valid reports whether the priority is one of the closed set.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task belongs to exactly one list. Done mirrors Status for older clients;
// the task service keeps the two coupled (done=true iff status=Completed).
type Task struct {
	BaseModel

	Title       string       `gorm:"not null" json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `gorm:"type:varchar(16);default:'Pending';index" json:"status"`
	Priority    TaskPriority `gorm:"type:varchar(16);default:'Medium'" json:"priority"`
	Deadline    *time.Time   `json:"deadline"`

	ListID     string `gorm:"not null;index" json:"list_id"`
	AssignedTo string `gorm:"index" json:"assigned_to"`
	CreatedBy  string `gorm:"not null" json:"created_by"`

	Done bool `gorm:"default:false" json:"done"`
}
