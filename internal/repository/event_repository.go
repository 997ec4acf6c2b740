package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

// EventRepository handles one-off special events.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Create(ctx context.Context, event *model.SpecialEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// ListInRange returns the user's events with dates in [from, to], soonest
// first.
func (r *EventRepository) ListInRange(ctx context.Context, userID uint, from, to time.Time) ([]model.SpecialEvent, error) {
	var events []model.SpecialEvent
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND event_date >= ? AND event_date <= ?", userID, from, to).
		Order("event_date ASC, start_time ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) ListByUser(ctx context.Context, userID uint) ([]model.SpecialEvent, error) {
	var events []model.SpecialEvent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("event_date ASC, start_time ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) Delete(ctx context.Context, userID, eventID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, eventID).
		Delete(&model.SpecialEvent{}).Error; err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}
