package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

// Dispatch tuning. The look-ahead keeps near-due reminders from slipping
// between ticks; the batch cap bounds one tick's work, anything beyond it
// waits for the next tick.
const (
	reminderLookAhead = 5 * time.Minute
	reminderBatchSize = 100
	dailySummaryHour  = 7
	maxSummaryTasks   = 10
)

// ReminderQueue is the slice of the reminder repository the dispatcher needs.
type ReminderQueue interface {
	ListDuePending(ctx context.Context, before time.Time, limit int) ([]model.Reminder, error)
	UpdateStatus(ctx context.Context, reminderID uint, status string) error
}

// TaskReader loads tasks for reminder reconciliation and summaries.
type TaskReader interface {
	Get(ctx context.Context, taskID uint) (*model.Task, error)
	ListForDate(ctx context.Context, userID uint, date time.Time) ([]model.Task, error)
	CountByStatus(ctx context.Context, userID uint) (map[string]int64, error)
}

// UserLister enumerates users for the summary jobs.
type UserLister interface {
	ListAll(ctx context.Context) ([]model.User, error)
}

// Notifier delivers messages to the user. Delivery failure is a boolean at
// this boundary, not an error: the dispatcher turns false into a terminal
// failed status with no retry.
type Notifier interface {
	SendReminder(ctx context.Context, userID uint, task model.Task) bool
	SendSummary(ctx context.Context, userID uint, tasks []model.Task, date time.Time) bool
	SendWeeklyStats(ctx context.Context, userID uint, counts map[string]int64) bool
}

// DispatchService runs the periodic reminder scan and the daily/weekly
// summary jobs. It owns every reminder status transition out of pending.
type DispatchService struct {
	reminders ReminderQueue
	tasks     TaskReader
	users     UserLister
	notifier  Notifier

	now func() time.Time
}

func NewDispatchService(reminders ReminderQueue, tasks TaskReader, users UserLister, notifier Notifier) *DispatchService {
	return &DispatchService{
		reminders: reminders,
		tasks:     tasks,
		users:     users,
		notifier:  notifier,
		now:       time.Now,
	}
}

// CheckAndSendReminders processes one batch of due reminders. A reminder
// whose task is gone or no longer pending is stale and gets cancelled
// without a delivery attempt. Per-reminder errors mark that reminder failed
// and never abort the batch.
func (s *DispatchService) CheckAndSendReminders(ctx context.Context) error {
	due, err := s.reminders.ListDuePending(ctx, s.now().Add(reminderLookAhead), reminderBatchSize)
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	log.Printf("[info] processing %d due reminders", len(due))

	for _, reminder := range due {
		s.processReminder(ctx, reminder)
	}
	return nil
}

func (s *DispatchService) processReminder(ctx context.Context, reminder model.Reminder) {
	task, err := s.tasks.Get(ctx, reminder.TaskID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		s.transition(ctx, reminder.ID, model.ReminderStatusCancelled)
		log.Printf("[info] cancelled reminder %d: task %d is gone", reminder.ID, reminder.TaskID)
		return
	case err != nil:
		log.Printf("[error] load task %d for reminder %d: %v", reminder.TaskID, reminder.ID, err)
		s.transition(ctx, reminder.ID, model.ReminderStatusFailed)
		return
	}

	if task.Status != model.TaskStatusPending {
		s.transition(ctx, reminder.ID, model.ReminderStatusCancelled)
		log.Printf("[info] cancelled reminder %d: task %d is %s", reminder.ID, task.ID, task.Status)
		return
	}

	if s.notifier.SendReminder(ctx, reminder.UserID, *task) {
		s.transition(ctx, reminder.ID, model.ReminderStatusSent)
	} else {
		s.transition(ctx, reminder.ID, model.ReminderStatusFailed)
	}
}

func (s *DispatchService) transition(ctx context.Context, reminderID uint, status string) {
	if err := s.reminders.UpdateStatus(ctx, reminderID, status); err != nil {
		log.Printf("[error] mark reminder %d %s: %v", reminderID, status, err)
	}
}

// SendDailySummaries sends each user their day's tasks when their local
// clock reads 7 AM. The job runs hourly so every timezone gets its turn.
func (s *DispatchService) SendDailySummaries(ctx context.Context) error {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	nowUTC := s.now().UTC()
	for _, user := range users {
		localNow := nowUTC.In(loadLocation(user.Timezone))
		if localNow.Hour() != dailySummaryHour {
			continue
		}

		today := time.Date(localNow.Year(), localNow.Month(), localNow.Day(), 0, 0, 0, 0, time.UTC)
		tasks, err := s.tasks.ListForDate(ctx, user.ID, today)
		if err != nil {
			log.Printf("[error] daily summary tasks for user %d: %v", user.ID, err)
			continue
		}
		if len(tasks) > maxSummaryTasks {
			tasks = tasks[:maxSummaryTasks]
		}
		if !s.notifier.SendSummary(ctx, user.ID, tasks, today) {
			log.Printf("[warn] daily summary delivery failed for user %d", user.ID)
		}
	}
	return nil
}

// SendWeeklySummaries sends every user their task statistics. Scheduled for
// Sunday evenings.
func (s *DispatchService) SendWeeklySummaries(ctx context.Context) error {
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	for _, user := range users {
		counts, err := s.tasks.CountByStatus(ctx, user.ID)
		if err != nil {
			log.Printf("[error] weekly stats for user %d: %v", user.ID, err)
			continue
		}
		if !s.notifier.SendWeeklyStats(ctx, user.ID, counts) {
			log.Printf("[warn] weekly summary delivery failed for user %d", user.ID)
		}
	}
	return nil
}
