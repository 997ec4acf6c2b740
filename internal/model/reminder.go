package model

import "time"

// Reminder statuses. pending is the only non-terminal state: a reminder moves
// to sent, failed or cancelled exactly once and never back.
const (
	ReminderStatusPending   = "pending"
	ReminderStatusSent      = "sent"
	ReminderStatusFailed    = "failed"
	ReminderStatusCancelled = "cancelled"
)

// Reminder is a one-shot notification derived from a scheduled task.
// ReminderTime is stored in UTC.
type Reminder struct {
	ID           uint      `gorm:"primaryKey"`
	UserID       uint      `gorm:"index"`
	TaskID       uint      `gorm:"index"`
	ReminderTime time.Time `gorm:"index"`
	Message      string
	Status       string `gorm:"index;default:pending"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
