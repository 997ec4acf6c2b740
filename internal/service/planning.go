package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"goal-planner/internal/ai"
	"goal-planner/internal/model"
	"goal-planner/internal/timeslot"
)

// Failure kinds returned by plan generation. no_goals and ai_failed are
// recoverable preconditions; exception wraps anything unexpected and carries
// the underlying message for operator debugging.
const (
	FailureNoGoals   = "no_goals"
	FailureAIFailed  = "ai_failed"
	FailureException = "exception"
)

// ErrPlanInProgress is reported when a plan generation for the same user is
// already running. A double /plan tap must not produce overlapping task sets.
var ErrPlanInProgress = errors.New("plan generation already in progress")

const (
	defaultTaskDuration = 30
	defaultTaskPriority = 3
	leadTimeOffset      = 15 * time.Minute
	dayBeforeOffset     = 24 * time.Hour
	highPriorityFloor   = 4
)

// PlanResult is the outcome of a plan generation run. On failure Kind holds
// one of the failure kinds above and Message a user-presentable explanation.
type PlanResult struct {
	Success          bool
	Kind             string
	Message          string
	TaskCount        int
	GoalsCount       int
	RemindersCreated int
	StartDate        time.Time
	EndDate          time.Time
}

// GoalStore is the slice of the goal repository the planner needs.
type GoalStore interface {
	ListByStatus(ctx context.Context, userID uint, status string) ([]model.Goal, error)
}

// TaskStore is the slice of the task repository the planner needs.
type TaskStore interface {
	BulkCreate(ctx context.Context, tasks []model.Task) ([]model.Task, error)
	DeletePending(ctx context.Context, userID uint) (int64, error)
	CountByStatus(ctx context.Context, userID uint) (map[string]int64, error)
	ListByDateRange(ctx context.Context, userID uint, from, to time.Time) ([]model.Task, error)
}

// ReminderStore persists derived reminders.
type ReminderStore interface {
	Create(ctx context.Context, reminder *model.Reminder) error
}

// ScheduleStore loads the recurring weekly schedule.
type ScheduleStore interface {
	ListByUser(ctx context.Context, userID uint) ([]model.RecurringBlock, error)
}

// EventStore loads one-off events in a date range.
type EventStore interface {
	ListInRange(ctx context.Context, userID uint, from, to time.Time) ([]model.SpecialEvent, error)
}

// Planner produces task proposals from the user's goals and availability.
type Planner interface {
	GenerateTasks(ctx context.Context, req ai.PlanRequest) ([]ai.TaskProposal, error)
}

// PlanningService orchestrates plan generation: it loads goals, schedule and
// events, asks the planner for a task breakdown, reconciles the proposals
// against real data, persists the tasks and derives their reminders.
type PlanningService struct {
	goals     GoalStore
	tasks     TaskStore
	reminders ReminderStore
	schedule  ScheduleStore
	events    EventStore
	planner   Planner

	now func() time.Time

	mu       sync.Mutex
	inFlight map[uint]bool
}

func NewPlanningService(goals GoalStore, tasks TaskStore, reminders ReminderStore, schedule ScheduleStore, events EventStore, planner Planner) *PlanningService {
	return &PlanningService{
		goals:     goals,
		tasks:     tasks,
		reminders: reminders,
		schedule:  schedule,
		events:    events,
		planner:   planner,
		now:       time.Now,
		inFlight:  make(map[uint]bool),
	}
}

// GeneratePlan builds a task plan covering [today, today+durationDays] for
// the user. Failures are values, not errors: the result's Kind/Message tell
// the caller what went wrong. Only one generation per user runs at a time;
// a concurrent call gets ErrPlanInProgress.
func (s *PlanningService) GeneratePlan(ctx context.Context, userID uint, durationDays int, timezone string) (PlanResult, error) {
	if err := s.acquire(userID); err != nil {
		return PlanResult{}, err
	}
	defer s.release(userID)
	return s.generate(ctx, userID, durationDays, timezone), nil
}

// RegeneratePlan deletes the user's pending tasks (completed, skipped and
// rescheduled stay) and generates a fresh plan under the same lock.
func (s *PlanningService) RegeneratePlan(ctx context.Context, userID uint, durationDays int, timezone string) (PlanResult, error) {
	if err := s.acquire(userID); err != nil {
		return PlanResult{}, err
	}
	defer s.release(userID)

	deleted, err := s.tasks.DeletePending(ctx, userID)
	if err != nil {
		return s.exception(fmt.Errorf("delete pending tasks: %w", err)), nil
	}
	log.Printf("[info] deleted %d pending tasks for user %d", deleted, userID)

	return s.generate(ctx, userID, durationDays, timezone), nil
}

func (s *PlanningService) acquire(userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[userID] {
		return ErrPlanInProgress
	}
	s.inFlight[userID] = true
	return nil
}

func (s *PlanningService) release(userID uint) {
	s.mu.Lock()
	delete(s.inFlight, userID)
	s.mu.Unlock()
}

func (s *PlanningService) generate(ctx context.Context, userID uint, durationDays int, timezone string) PlanResult {
	log.Printf("[info] generating plan for user %d", userID)

	goals, err := s.goals.ListByStatus(ctx, userID, model.GoalStatusActive)
	if err != nil {
		return s.exception(fmt.Errorf("load goals: %w", err))
	}
	if len(goals) == 0 {
		return PlanResult{
			Kind:    FailureNoGoals,
			Message: "You don't have any active goals. Create a goal first with /newgoal",
		}
	}

	loc := loadLocation(timezone)
	now := s.now().In(loc)
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(0, 0, durationDays)

	weekly, err := s.schedule.ListByUser(ctx, userID)
	if err != nil {
		return s.exception(fmt.Errorf("load schedule: %w", err))
	}
	events, err := s.events.ListInRange(ctx, userID, startDate, endDate)
	if err != nil {
		return s.exception(fmt.Errorf("load events: %w", err))
	}

	proposals, err := s.planner.GenerateTasks(ctx, ai.PlanRequest{
		Goals:     goals,
		Schedule:  weekly,
		Events:    events,
		Timezone:  timezone,
		StartDate: startDate,
		EndDate:   endDate,
	})
	// "no response" and "malformed response" are the same failure to us.
	if err != nil || len(proposals) == 0 {
		if err != nil {
			log.Printf("[warn] planner failed for user %d: %v", userID, err)
		}
		return PlanResult{
			Kind:    FailureAIFailed,
			Message: "AI failed to generate a plan. Please try again.",
		}
	}

	batchID := uuid.NewString()
	normalized := s.reconcile(userID, batchID, proposals, goals)

	saved, err := s.tasks.BulkCreate(ctx, normalized)
	if err != nil {
		return s.exception(fmt.Errorf("save tasks: %w", err))
	}
	log.Printf("[info] saved %d tasks for user %d (batch %s)", len(saved), userID, batchID)

	remindersCreated := s.createReminders(ctx, saved, loc)
	log.Printf("[info] created %d reminders for user %d", remindersCreated, userID)

	return PlanResult{
		Success:          true,
		TaskCount:        len(saved),
		GoalsCount:       len(goals),
		RemindersCreated: remindersCreated,
		StartDate:        startDate,
		EndDate:          endDate,
	}
}

// reconcile maps free-text proposals onto stored goals and valid field
// values. A proposal is never dropped for a bad field: unresolvable goals
// fall back, unparseable dates and times are left unset, and out-of-range
// numbers are clamped.
func (s *PlanningService) reconcile(userID uint, batchID string, proposals []ai.TaskProposal, goals []model.Goal) []model.Task {
	tasks := make([]model.Task, 0, len(proposals))
	for _, p := range proposals {
		task := model.Task{
			UserID:      userID,
			GoalID:      ResolveGoal(goals, p.GoalTitle),
			BatchID:     batchID,
			Title:       p.Title,
			Description: p.Description,
			Status:      model.TaskStatusPending,
			AIReasoning: p.Reasoning,
		}
		if task.Title == "" {
			task.Title = "Untitled task"
		}

		if p.ScheduledDate != "" {
			if d, err := time.Parse(timeslot.DateLayout, p.ScheduledDate); err == nil {
				task.ScheduledDate = &d
			} else {
				log.Printf("[warn] invalid date %q in proposal %q", p.ScheduledDate, p.Title)
			}
		}
		if p.ScheduledTime != "" {
			if t, err := timeslot.ParseTimeOfDay(p.ScheduledTime); err == nil {
				task.ScheduledTime = t.String()
			} else {
				log.Printf("[warn] invalid time %q in proposal %q", p.ScheduledTime, p.Title)
			}
		}

		task.DurationMinutes = p.DurationMinutes
		if task.DurationMinutes <= 0 {
			task.DurationMinutes = defaultTaskDuration
		}
		task.Priority = clampPriority(p.Priority)

		tasks = append(tasks, task)
	}
	return tasks
}

// ResolveGoal maps a proposal's free-text goal title to a stored goal id.
// The fallback order is deliberate and visible: exact title match, then
// substring match in either direction (case-insensitive), then the first
// goal. The heuristic is imprecise by nature, which is why it lives in one
// small function instead of being spread through the pipeline. goals must be
// non-empty.
func ResolveGoal(goals []model.Goal, title string) uint {
	for _, g := range goals {
		if g.Title == title {
			return g.ID
		}
	}
	lower := strings.ToLower(title)
	if lower != "" {
		for _, g := range goals {
			gl := strings.ToLower(g.Title)
			if strings.Contains(lower, gl) || strings.Contains(gl, lower) {
				return g.ID
			}
		}
	}
	return goals[0].ID
}

// createReminders derives reminder rows for every saved task that has both a
// date and a time: one at T-15m, plus one at T-24h for priority >= 4. Each is
// gated independently on still being in the future. Per-task failures are
// logged and skipped so one bad task never loses the rest of the plan's
// reminders.
func (s *PlanningService) createReminders(ctx context.Context, tasks []model.Task, loc *time.Location) int {
	created := 0
	now := s.now()

	for _, task := range tasks {
		if task.ScheduledDate == nil || task.ScheduledTime == "" {
			continue
		}
		tod, err := timeslot.ParseTimeOfDay(task.ScheduledTime)
		if err != nil {
			log.Printf("[warn] task %d has unparseable time %q", task.ID, task.ScheduledTime)
			continue
		}

		d := task.ScheduledDate
		instant := time.Date(d.Year(), d.Month(), d.Day(), tod.Hour(), int(tod)%60, 0, 0, loc).UTC()

		leadTime := instant.Add(-leadTimeOffset)
		if leadTime.After(now) {
			reminder := &model.Reminder{
				UserID:       task.UserID,
				TaskID:       task.ID,
				ReminderTime: leadTime,
				Message:      fmt.Sprintf("Reminder: %s", task.Title),
				Status:       model.ReminderStatusPending,
			}
			if err := s.reminders.Create(ctx, reminder); err != nil {
				log.Printf("[error] create reminder for task %d: %v", task.ID, err)
			} else {
				created++
			}
		}

		if task.Priority >= highPriorityFloor {
			dayBefore := instant.Add(-dayBeforeOffset)
			if dayBefore.After(now) {
				reminder := &model.Reminder{
					UserID:       task.UserID,
					TaskID:       task.ID,
					ReminderTime: dayBefore,
					Message:      fmt.Sprintf("Tomorrow: %s", task.Title),
					Status:       model.ReminderStatusPending,
				}
				if err := s.reminders.Create(ctx, reminder); err != nil {
					log.Printf("[error] create day-before reminder for task %d: %v", task.ID, err)
				} else {
					created++
				}
			}
		}
	}
	return created
}

// PlanSummary reports the user's task counts by status and how many tasks
// are coming up in the next week.
type PlanSummary struct {
	Counts        map[string]int64
	UpcomingCount int
	TotalTasks    int64
}

func (s *PlanningService) Summary(ctx context.Context, userID uint) (PlanSummary, error) {
	counts, err := s.tasks.CountByStatus(ctx, userID)
	if err != nil {
		return PlanSummary{}, fmt.Errorf("task statistics: %w", err)
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	upcoming, err := s.tasks.ListByDateRange(ctx, userID, today, today.AddDate(0, 0, 7))
	if err != nil {
		return PlanSummary{}, fmt.Errorf("upcoming tasks: %w", err)
	}

	summary := PlanSummary{Counts: counts, UpcomingCount: len(upcoming)}
	for _, c := range counts {
		summary.TotalTasks += c
	}
	return summary, nil
}

func (s *PlanningService) exception(err error) PlanResult {
	log.Printf("[error] plan generation: %v", err)
	return PlanResult{
		Kind:    FailureException,
		Message: fmt.Sprintf("An error occurred: %s", err),
	}
}

func clampPriority(p int) int {
	switch {
	case p == 0:
		return defaultTaskPriority
	case p < 1:
		return 1
	case p > 5:
		return 5
	default:
		return p
	}
}

func loadLocation(timezone string) *time.Location {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		log.Printf("[warn] invalid timezone %q, using UTC", timezone)
		return time.UTC
	}
	return loc
}
