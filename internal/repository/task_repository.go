package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

// TaskRepository handles CRUD for planned tasks.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// BulkCreate inserts tasks in one statement. The slice is updated in place
// with the assigned ids and returned; the returned set is what reminder
// derivation works from.
func (r *TaskRepository) BulkCreate(ctx context.Context, tasks []model.Task) ([]model.Task, error) {
	if len(tasks) == 0 {
		return nil, nil
	}
	if err := r.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		return nil, fmt.Errorf("bulk create tasks: %w", err)
	}
	return tasks, nil
}

func (r *TaskRepository) Get(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) FindByID(ctx context.Context, userID, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// ListForDate returns the user's tasks scheduled on the given calendar date,
// ordered by time of day with untimed tasks last.
func (r *TaskRepository) ListForDate(ctx context.Context, userID uint, date time.Time) ([]model.Task, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND scheduled_date >= ? AND scheduled_date < ?", userID, dayStart, dayEnd).
		Order("scheduled_time = '' ASC, scheduled_time ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// ListByDateRange returns tasks scheduled within [from, to).
func (r *TaskRepository) ListByDateRange(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND scheduled_date >= ? AND scheduled_date < ?", userID, from, to).
		Order("scheduled_date ASC, scheduled_time ASC").
		Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateStatus(ctx context.Context, userID, taskID uint, status string) error {
	result := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("user_id = ? AND id = ?", userID, taskID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("update task status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a single task. Its reminders stay behind and are cancelled
// as stale by the dispatch loop.
func (r *TaskRepository) Delete(ctx context.Context, userID, taskID uint) error {
	result := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, taskID).
		Delete(&model.Task{})
	if result.Error != nil {
		return fmt.Errorf("delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeletePending removes all of the user's pending tasks and reports how many
// were deleted. Completed, skipped and rescheduled tasks are untouched.
func (r *TaskRepository) DeletePending(ctx context.Context, userID uint) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, model.TaskStatusPending).
		Delete(&model.Task{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete pending tasks: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// CountByStatus returns a status -> count map over all of the user's tasks.
func (r *TaskRepository) CountByStatus(ctx context.Context, userID uint) (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Model(&model.Task{}).
		Select("status, count(*) as count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count tasks: %w", err)
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
