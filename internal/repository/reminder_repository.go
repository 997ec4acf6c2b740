package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

// ReminderRepository handles CRUD for reminders.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(db *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *model.Reminder) error {
	if err := r.db.WithContext(ctx).Create(reminder).Error; err != nil {
		return fmt.Errorf("create reminder: %w", err)
	}
	return nil
}

// ListDuePending returns pending reminders due before the given instant,
// earliest first, capped at limit.
func (r *ReminderRepository) ListDuePending(ctx context.Context, before time.Time, limit int) ([]model.Reminder, error) {
	var reminders []model.Reminder
	if err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_time <= ?", model.ReminderStatusPending, before).
		Order("reminder_time ASC").
		Limit(limit).
		Find(&reminders).Error; err != nil {
		return nil, err
	}
	return reminders, nil
}

// UpdateStatus moves a pending reminder to a terminal status. Reminders
// already out of pending are left alone: all terminal states are final.
func (r *ReminderRepository) UpdateStatus(ctx context.Context, reminderID uint, status string) error {
	result := r.db.WithContext(ctx).Model(&model.Reminder{}).
		Where("id = ? AND status = ?", reminderID, model.ReminderStatusPending).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update reminder status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
