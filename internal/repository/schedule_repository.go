package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

// ScheduleRepository handles the user's recurring weekly blocks.
type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

func (r *ScheduleRepository) Create(ctx context.Context, block *model.RecurringBlock) error {
	if err := r.db.WithContext(ctx).Create(block).Error; err != nil {
		return fmt.Errorf("create schedule block: %w", err)
	}
	return nil
}

// ListByUser returns all recurring blocks ordered by weekday then start time.
func (r *ScheduleRepository) ListByUser(ctx context.Context, userID uint) ([]model.RecurringBlock, error) {
	var blocks []model.RecurringBlock
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("day_of_week ASC, start_time ASC").
		Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *ScheduleRepository) Delete(ctx context.Context, userID, blockID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, blockID).
		Delete(&model.RecurringBlock{}).Error; err != nil {
		return fmt.Errorf("delete schedule block: %w", err)
	}
	return nil
}

// DeleteAll clears the weekly schedule so it can be set up from scratch.
// Blocks are immutable, so edits are always delete-and-recreate.
func (r *ScheduleRepository) DeleteAll(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Delete(&model.RecurringBlock{}).Error; err != nil {
		return fmt.Errorf("clear schedule: %w", err)
	}
	return nil
}
