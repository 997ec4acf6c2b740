package model

import "time"

// User stores Telegram user metadata and planning preferences.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	FirstName  string
	LastName   string
	Username   string
	Timezone   string // IANA name, e.g. "Europe/Berlin"
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
