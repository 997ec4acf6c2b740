package model

import "time"

// Task statuses. Only pending tasks receive reminders; regeneration removes
// pending tasks and leaves the rest untouched.
const (
	TaskStatusPending     = "pending"
	TaskStatusCompleted   = "completed"
	TaskStatusSkipped     = "skipped"
	TaskStatusRescheduled = "rescheduled"
)

// Task is a single AI-planned item tied to a goal. ScheduledTime is an
// "HH:MM" string in the user's timezone; either scheduling field may be empty
// when the planner proposal could not be parsed.
type Task struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          uint   `gorm:"index"`
	GoalID          uint   `gorm:"index"`
	BatchID         string `gorm:"index"` // generation run that created the task
	Title           string
	Description     string
	ScheduledDate   *time.Time
	ScheduledTime   string
	DurationMinutes int    `gorm:"default:30"`
	Priority        int    `gorm:"default:3"` // 1-5
	Status          string `gorm:"index;default:pending"`
	AIReasoning     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
