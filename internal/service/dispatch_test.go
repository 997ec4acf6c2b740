package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"goal-planner/internal/model"
)

type fakeReminderQueue struct {
	due         []model.Reminder
	listErr     error
	transitions map[uint]string
}

func newFakeReminderQueue(due ...model.Reminder) *fakeReminderQueue {
	return &fakeReminderQueue{due: due, transitions: make(map[uint]string)}
}

func (f *fakeReminderQueue) ListDuePending(_ context.Context, before time.Time, limit int) ([]model.Reminder, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []model.Reminder
	for _, r := range f.due {
		if !r.ReminderTime.After(before) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReminderQueue) UpdateStatus(_ context.Context, id uint, status string) error {
	f.transitions[id] = status
	return nil
}

type fakeTaskReader struct {
	tasks   map[uint]model.Task
	getErr  map[uint]error
	forDate []model.Task
	counts  map[string]int64
}

func (f *fakeTaskReader) Get(_ context.Context, id uint) (*model.Task, error) {
	if err, ok := f.getErr[id]; ok {
		return nil, err
	}
	task, ok := f.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &task, nil
}

func (f *fakeTaskReader) ListForDate(context.Context, uint, time.Time) ([]model.Task, error) {
	return f.forDate, nil
}

func (f *fakeTaskReader) CountByStatus(context.Context, uint) (map[string]int64, error) {
	return f.counts, nil
}

type fakeUserLister struct{ users []model.User }

func (f *fakeUserLister) ListAll(context.Context) ([]model.User, error) { return f.users, nil }

type sentReminder struct {
	userID uint
	task   model.Task
}

type fakeNotifier struct {
	reminderOK bool
	summaryOK  bool
	reminders  []sentReminder
	summaries  []uint
	weeklies   []uint
}

func (f *fakeNotifier) SendReminder(_ context.Context, userID uint, task model.Task) bool {
	f.reminders = append(f.reminders, sentReminder{userID, task})
	return f.reminderOK
}

func (f *fakeNotifier) SendSummary(_ context.Context, userID uint, _ []model.Task, _ time.Time) bool {
	f.summaries = append(f.summaries, userID)
	return f.summaryOK
}

func (f *fakeNotifier) SendWeeklyStats(_ context.Context, userID uint, _ map[string]int64) bool {
	f.weeklies = append(f.weeklies, userID)
	return true
}

var dispatchNow = time.Date(2025, 6, 2, 7, 30, 0, 0, time.UTC)

func newDispatchFixture(queue *fakeReminderQueue, tasks *fakeTaskReader, users *fakeUserLister, notifier *fakeNotifier) *DispatchService {
	svc := NewDispatchService(queue, tasks, users, notifier)
	svc.now = func() time.Time { return dispatchNow }
	return svc
}

func dueReminder(id, taskID uint, offset time.Duration) model.Reminder {
	return model.Reminder{
		ID:           id,
		UserID:       1,
		TaskID:       taskID,
		ReminderTime: dispatchNow.Add(offset),
		Status:       model.ReminderStatusPending,
	}
}

func TestCheckAndSendReminders_Delivers(t *testing.T) {
	queue := newFakeReminderQueue(dueReminder(1, 10, -time.Minute))
	tasks := &fakeTaskReader{tasks: map[uint]model.Task{
		10: {ID: 10, UserID: 1, Title: "Run", Status: model.TaskStatusPending},
	}}
	notifier := &fakeNotifier{reminderOK: true}
	svc := newDispatchFixture(queue, tasks, &fakeUserLister{}, notifier)

	if err := svc.CheckAndSendReminders(context.Background()); err != nil {
		t.Fatalf("CheckAndSendReminders: %v", err)
	}
	if len(notifier.reminders) != 1 || notifier.reminders[0].task.ID != 10 {
		t.Fatalf("sent = %+v", notifier.reminders)
	}
	if queue.transitions[1] != model.ReminderStatusSent {
		t.Fatalf("transition = %q, want sent", queue.transitions[1])
	}
}

func TestCheckAndSendReminders_DeliveryFailureIsTerminal(t *testing.T) {
	queue := newFakeReminderQueue(dueReminder(1, 10, 0))
	tasks := &fakeTaskReader{tasks: map[uint]model.Task{
		10: {ID: 10, Status: model.TaskStatusPending},
	}}
	svc := newDispatchFixture(queue, tasks, &fakeUserLister{}, &fakeNotifier{reminderOK: false})

	if err := svc.CheckAndSendReminders(context.Background()); err != nil {
		t.Fatalf("CheckAndSendReminders: %v", err)
	}
	if queue.transitions[1] != model.ReminderStatusFailed {
		t.Fatalf("transition = %q, want failed", queue.transitions[1])
	}
}

func TestCheckAndSendReminders_StaleCancelled(t *testing.T) {
	queue := newFakeReminderQueue(
		dueReminder(1, 10, -time.Minute), // task completed
		dueReminder(2, 11, -time.Minute), // task deleted
	)
	tasks := &fakeTaskReader{tasks: map[uint]model.Task{
		10: {ID: 10, Status: model.TaskStatusCompleted},
	}}
	notifier := &fakeNotifier{reminderOK: true}
	svc := newDispatchFixture(queue, tasks, &fakeUserLister{}, notifier)

	if err := svc.CheckAndSendReminders(context.Background()); err != nil {
		t.Fatalf("CheckAndSendReminders: %v", err)
	}
	if len(notifier.reminders) != 0 {
		t.Fatalf("stale reminders must never be delivered, sent %+v", notifier.reminders)
	}
	if queue.transitions[1] != model.ReminderStatusCancelled || queue.transitions[2] != model.ReminderStatusCancelled {
		t.Fatalf("transitions = %+v, want both cancelled", queue.transitions)
	}
}

func TestCheckAndSendReminders_PerItemErrorDoesNotAbortBatch(t *testing.T) {
	queue := newFakeReminderQueue(
		dueReminder(1, 10, 0),
		dueReminder(2, 11, 0), // task load blows up
		dueReminder(3, 12, 0),
	)
	tasks := &fakeTaskReader{
		tasks: map[uint]model.Task{
			10: {ID: 10, Status: model.TaskStatusPending},
			12: {ID: 12, Status: model.TaskStatusPending},
		},
		getErr: map[uint]error{11: errors.New("connection reset")},
	}
	notifier := &fakeNotifier{reminderOK: true}
	svc := newDispatchFixture(queue, tasks, &fakeUserLister{}, notifier)

	if err := svc.CheckAndSendReminders(context.Background()); err != nil {
		t.Fatalf("CheckAndSendReminders: %v", err)
	}
	if queue.transitions[2] != model.ReminderStatusFailed {
		t.Fatalf("erroring reminder = %q, want failed", queue.transitions[2])
	}
	if queue.transitions[1] != model.ReminderStatusSent || queue.transitions[3] != model.ReminderStatusSent {
		t.Fatalf("transitions = %+v, the rest of the batch must still send", queue.transitions)
	}
}

func TestCheckAndSendReminders_LookAheadWindow(t *testing.T) {
	queue := newFakeReminderQueue(
		dueReminder(1, 10, 4*time.Minute),  // inside the 5-minute look-ahead
		dueReminder(2, 10, 20*time.Minute), // not due yet
	)
	tasks := &fakeTaskReader{tasks: map[uint]model.Task{
		10: {ID: 10, Status: model.TaskStatusPending},
	}}
	notifier := &fakeNotifier{reminderOK: true}
	svc := newDispatchFixture(queue, tasks, &fakeUserLister{}, notifier)

	if err := svc.CheckAndSendReminders(context.Background()); err != nil {
		t.Fatalf("CheckAndSendReminders: %v", err)
	}
	if len(notifier.reminders) != 1 {
		t.Fatalf("sent %d reminders, want only the near-due one", len(notifier.reminders))
	}
	if _, touched := queue.transitions[2]; touched {
		t.Fatal("future reminder must stay pending for a later tick")
	}
}

func TestSendDailySummaries_LocalSevenAMOnly(t *testing.T) {
	// 07:30 UTC: the UTC user is in their 7 o'clock hour, the Berlin user
	// (09:30 local) is not.
	users := &fakeUserLister{users: []model.User{
		{ID: 1, Timezone: "UTC"},
		{ID: 2, Timezone: "Europe/Berlin"},
	}}
	tasks := &fakeTaskReader{forDate: []model.Task{{Title: "Run"}}}
	notifier := &fakeNotifier{summaryOK: true}
	svc := newDispatchFixture(newFakeReminderQueue(), tasks, users, notifier)

	if err := svc.SendDailySummaries(context.Background()); err != nil {
		t.Fatalf("SendDailySummaries: %v", err)
	}
	if len(notifier.summaries) != 1 || notifier.summaries[0] != 1 {
		t.Fatalf("summaries sent to %v, want [1]", notifier.summaries)
	}
}

func TestSendWeeklySummaries_AllUsers(t *testing.T) {
	users := &fakeUserLister{users: []model.User{{ID: 1}, {ID: 2}}}
	tasks := &fakeTaskReader{counts: map[string]int64{model.TaskStatusCompleted: 2}}
	notifier := &fakeNotifier{}
	svc := newDispatchFixture(newFakeReminderQueue(), tasks, users, notifier)

	if err := svc.SendWeeklySummaries(context.Background()); err != nil {
		t.Fatalf("SendWeeklySummaries: %v", err)
	}
	if len(notifier.weeklies) != 2 {
		t.Fatalf("weekly summaries sent to %v, want both users", notifier.weeklies)
	}
}
