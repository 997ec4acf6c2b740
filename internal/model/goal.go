package model

import "time"

// Goal statuses. Active goals feed plan generation; the rest are kept for
// history and progress reports.
const (
	GoalStatusActive    = "active"
	GoalStatusCompleted = "completed"
	GoalStatusPaused    = "paused"
	GoalStatusCancelled = "cancelled"
)

// CanTransitionGoal reports whether a goal status change is allowed. Active
// goals can be completed, paused or cancelled; paused goals can only resume.
// Completed and cancelled are terminal.
func CanTransitionGoal(from, to string) bool {
	switch from {
	case GoalStatusActive:
		return to == GoalStatusCompleted || to == GoalStatusPaused || to == GoalStatusCancelled
	case GoalStatusPaused:
		return to == GoalStatusActive
	default:
		return false
	}
}

// QAPair is one clarifying question asked about a goal and the user's answer.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Goal is a long-term objective the planner breaks down into daily tasks.
type Goal struct {
	ID          uint `gorm:"primaryKey"`
	UserID      uint `gorm:"index"`
	Title       string
	Description string
	Category    string
	TargetDate  *time.Time
	Priority    int      `gorm:"default:3"` // 1-5
	Status      string   `gorm:"index;default:active"`
	QAHistory   []QAPair `gorm:"serializer:json"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tasks       []Task `gorm:"foreignKey:GoalID"`
}
