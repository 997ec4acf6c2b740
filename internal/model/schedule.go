package model

import "time"

// RecurringBlock is a weekly-repeating busy interval. DayOfWeek is 0=Monday
// through 6=Sunday. Start and end are "HH:MM" strings within one day; blocks
// never wrap past midnight. Blocks are immutable: edits go through
// delete-and-recreate.
type RecurringBlock struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"index"`
	DayOfWeek     int  `gorm:"index"`
	StartTime     string
	EndTime       string
	ActivityLabel string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SpecialEvent is a one-off busy interval or all-day block on a specific
// date. For all-day events the start and end times are empty.
type SpecialEvent struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           uint      `gorm:"index"`
	EventDate        time.Time `gorm:"index"`
	IsAllDay         bool
	StartTime        string
	EndTime          string
	Title            string
	BlocksScheduling bool `gorm:"default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
