package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

// GoalRepository handles CRUD for goals.
type GoalRepository struct {
	db *gorm.DB
}

func NewGoalRepository(db *gorm.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

func (r *GoalRepository) Create(ctx context.Context, goal *model.Goal) error {
	if err := r.db.WithContext(ctx).Create(goal).Error; err != nil {
		return fmt.Errorf("create goal: %w", err)
	}
	return nil
}

// ListByStatus returns the user's goals with the given status, newest first.
// An empty status returns all goals.
func (r *GoalRepository) ListByStatus(ctx context.Context, userID uint, status string) ([]model.Goal, error) {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var goals []model.Goal
	if err := query.Order("created_at DESC").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

func (r *GoalRepository) FindByID(ctx context.Context, userID, goalID uint) (*model.Goal, error) {
	var goal model.Goal
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, goalID).First(&goal).Error; err != nil {
		return nil, err
	}
	return &goal, nil
}

func (r *GoalRepository) UpdateStatus(ctx context.Context, userID, goalID uint, status string) error {
	result := r.db.WithContext(ctx).Model(&model.Goal{}).
		Where("user_id = ? AND id = ?", userID, goalID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update goal status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *GoalRepository) Delete(ctx context.Context, userID, goalID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, goalID).
		Delete(&model.Goal{}).Error; err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}
