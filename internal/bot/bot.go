package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"goal-planner/internal/ai"
	"goal-planner/internal/config"
	"goal-planner/internal/model"
	"goal-planner/internal/repository"
	"goal-planner/internal/service"
	"goal-planner/internal/timeslot"
)

const (
	cbGoalCompletePrefix  = "goal_complete:"
	cbGoalPausePrefix     = "goal_pause:"
	cbGoalResumePrefix    = "goal_resume:"
	cbGoalCancelPrefix    = "goal_cancel:"
	cbGoalDeletePrefix    = "goal_delete:"
	cbGoalDeleteYesPrefix = "goal_delete_yes:"
	cbGoalDeleteKeep      = "goal_delete_no"
	cbTaskDonePrefix      = "task_done:"
	cbTaskSkipPrefix      = "task_skip:"
	cbTaskDeletePrefix    = "task_delete:"
	cbBlockDeletePrefix   = "block_delete:"
	cbEventDeletePrefix   = "event_delete:"
)

const (
	btnSkip = "skip"
	btnYes  = "yes"
	btnNo   = "no"
)

const (
	menuLabelNewGoal = "🎯 New goal"
	menuLabelGoals   = "📋 My goals"
	menuLabelToday   = "📆 Today"
	menuLabelHelp    = "ℹ️ Help"
)

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// Bot aggregates the Telegram API with the planning services. It also
// implements service.Notifier: reminder and summary delivery go through the
// same API client.
type Bot struct {
	api          *tgbotapi.BotAPI
	userRepo     *repository.UserRepository
	goalRepo     *repository.GoalRepository
	taskRepo     *repository.TaskRepository
	scheduleRepo *repository.ScheduleRepository
	eventRepo    *repository.EventRepository
	planningSvc  *service.PlanningService
	aiClient     AIAssistant
	config       *config.Config

	mu            sync.Mutex
	conversations map[int64]*conversationState
}

// AIAssistant is the slice of the AI client used during goal setup.
type AIAssistant interface {
	ClarifyGoal(ctx context.Context, title, description string, previous []model.QAPair) (ai.Clarification, error)
	AnalyzeCategory(ctx context.Context, title, description string) string
}

func New(token string, userRepo *repository.UserRepository, goalRepo *repository.GoalRepository, taskRepo *repository.TaskRepository, scheduleRepo *repository.ScheduleRepository, eventRepo *repository.EventRepository, planningSvc *service.PlanningService, aiClient AIAssistant, cfg *config.Config) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		goalRepo:      goalRepo,
		taskRepo:      taskRepo,
		scheduleRepo:  scheduleRepo,
		eventRepo:     eventRepo,
		planningSvc:   planningSvc,
		aiClient:      aiClient,
		config:        cfg,
		conversations: make(map[int64]*conversationState),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[error] panic in update handler: %v", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.userRepo.UpsertFromTelegram(ctx, msg.From.ID, msg.From.FirstName, msg.From.LastName, msg.From.UserName, b.config.DefaultTimezone)
	if err != nil {
		log.Printf("[error] upsert user %d: %v", msg.From.ID, err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}

	if b.continueConversation(ctx, msg, user) {
		return
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelNewGoal:
		b.startGoalConversation(msg.Chat.ID)
	case menuLabelGoals:
		b.sendGoalList(ctx, msg.Chat.ID, user)
	case menuLabelToday:
		b.sendToday(ctx, msg.Chat.ID, user)
	case menuLabelHelp:
		b.reply(msg.Chat.ID, helpText)
	default:
		b.reply(msg.Chat.ID, "I didn't understand that. Send /help to see what I can do.")
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewGoal),
			tgbotapi.NewKeyboardButton(menuLabelGoals),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *model.User) {
	// Any command interrupts an in-progress conversation.
	if msg.Command() != "cancel" {
		b.clearConversation(msg.Chat.ID)
	}

	switch msg.Command() {
	case "start":
		reply := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
			"Hi %s! I'm your goal planning assistant.\n\n"+
				"Tell me your goals and your weekly schedule, and I'll build a daily task plan around your free time.\n\n"+
				"Start with /newgoal, then /schedule, then /plan.\nSend /help for the full command list.",
			html.EscapeString(user.FirstName)))
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyMarkup = mainMenuKeyboard()
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("[error] send start message: %v", err)
		}
	case "help":
		b.reply(msg.Chat.ID, helpText)
	case "cancel":
		b.clearConversation(msg.Chat.ID)
		b.reply(msg.Chat.ID, "Okay, cancelled.")
	case "newgoal":
		b.startGoalConversation(msg.Chat.ID)
	case "goals":
		b.sendGoalList(ctx, msg.Chat.ID, user)
	case "schedule":
		b.startScheduleConversation(msg.Chat.ID)
	case "myschedule":
		b.sendSchedule(ctx, msg.Chat.ID, user)
	case "clearschedule":
		if err := b.scheduleRepo.DeleteAll(ctx, user.ID); err != nil {
			log.Printf("[error] clear schedule for user %d: %v", user.ID, err)
			b.reply(msg.Chat.ID, "Couldn't clear your schedule, try again later.")
			return
		}
		b.reply(msg.Chat.ID, "Weekly schedule cleared. Use /schedule to set it up again.")
	case "newevent":
		b.startEventConversation(msg.Chat.ID)
	case "events":
		b.sendEventList(ctx, msg.Chat.ID, user)
	case "timezone":
		b.handleTimezone(ctx, msg, user)
	case "free":
		b.sendFreeTime(ctx, msg, user)
	case "plan":
		b.runPlan(ctx, msg.Chat.ID, user, false)
	case "replan":
		b.runPlan(ctx, msg.Chat.ID, user, true)
	case "today":
		b.sendToday(ctx, msg.Chat.ID, user)
	case "week":
		b.sendWeek(ctx, msg.Chat.ID, user)
	case "progress":
		b.sendProgress(ctx, msg.Chat.ID, user)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Send /help for the list.")
	}
}

const helpText = `<b>Goals</b>
/newgoal — create a goal (I'll ask a few questions)
/goals — list goals with quick actions

<b>Availability</b>
/schedule — add a recurring weekly busy block
/myschedule — show your weekly schedule
/clearschedule — remove all weekly blocks
/newevent — add a one-off event
/events — list upcoming events
/free — free time today, or /free 2025-07-01
/timezone — set your timezone, e.g. /timezone Europe/Berlin

<b>Planning</b>
/plan — generate a task plan from your goals
/replan — discard pending tasks and plan again
/today — today's tasks
/week — this week's tasks at a glance
/progress — plan statistics

/cancel — abort the current dialog`

func (b *Bot) handleTimezone(ctx context.Context, msg *tgbotapi.Message, user *model.User) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		b.reply(msg.Chat.ID, fmt.Sprintf("Your timezone is <b>%s</b>.\nChange it with /timezone Area/City, e.g. /timezone Europe/Berlin.", html.EscapeString(user.Timezone)))
		return
	}
	if _, err := time.LoadLocation(arg); err != nil {
		b.reply(msg.Chat.ID, "That doesn't look like a valid IANA timezone. Try something like Europe/Berlin or America/New_York.")
		return
	}
	if err := b.userRepo.SetTimezone(ctx, user.ID, arg); err != nil {
		log.Printf("[error] set timezone for user %d: %v", user.ID, err)
		b.reply(msg.Chat.ID, "Couldn't save your timezone, try again later.")
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Timezone set to <b>%s</b>.", html.EscapeString(arg)))
}

func (b *Bot) runPlan(ctx context.Context, chatID int64, user *model.User, regenerate bool) {
	b.reply(chatID, "Working on your plan, this can take a minute...")

	var result service.PlanResult
	var err error
	if regenerate {
		result, err = b.planningSvc.RegeneratePlan(ctx, user.ID, b.config.PlanDurationDays, user.Timezone)
	} else {
		result, err = b.planningSvc.GeneratePlan(ctx, user.ID, b.config.PlanDurationDays, user.Timezone)
	}

	if errors.Is(err, service.ErrPlanInProgress) {
		b.reply(chatID, "I'm already building a plan for you, hold on.")
		return
	}
	if err != nil {
		log.Printf("[error] plan for user %d: %v", user.ID, err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	if !result.Success {
		b.reply(chatID, html.EscapeString(result.Message))
		return
	}

	b.reply(chatID, fmt.Sprintf(
		"✅ Plan ready!\n\n📋 %d tasks across %d goals\n🗓 %s — %s\n⏰ %d reminders scheduled\n\nSee /today for what's up first.",
		result.TaskCount, result.GoalsCount,
		result.StartDate.Format(timeslot.DateLayout), result.EndDate.Format(timeslot.DateLayout),
		result.RemindersCreated))
}

func (b *Bot) sendGoalList(ctx context.Context, chatID int64, user *model.User) {
	goals, err := b.goalRepo.ListByStatus(ctx, user.ID, "")
	if err != nil {
		log.Printf("[error] list goals for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't load your goals, try again later.")
		return
	}
	if len(goals) == 0 {
		b.reply(chatID, "No goals yet. Create one with /newgoal.")
		return
	}

	for _, goal := range goals {
		reply := tgbotapi.NewMessage(chatID, formatGoal(goal))
		reply.ParseMode = tgbotapi.ModeHTML
		reply.ReplyMarkup = goalActionButtons(goal)
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("[error] send goal list: %v", err)
		}
	}
}

func formatGoal(goal model.Goal) string {
	icon := map[string]string{
		model.GoalStatusActive:    "🎯",
		model.GoalStatusCompleted: "✅",
		model.GoalStatusPaused:    "⏸",
		model.GoalStatusCancelled: "🚫",
	}[goal.Status]

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b> (%s)\n", icon, html.EscapeString(goal.Title), goal.Status)
	if goal.Category != "" {
		fmt.Fprintf(&sb, "📂 %s · priority %d\n", html.EscapeString(goal.Category), goal.Priority)
	} else {
		fmt.Fprintf(&sb, "priority %d\n", goal.Priority)
	}
	if goal.TargetDate != nil {
		fmt.Fprintf(&sb, "🗓 target %s\n", goal.TargetDate.Format(timeslot.DateLayout))
	}
	if goal.Description != "" {
		fmt.Fprintf(&sb, "📝 %s", html.EscapeString(goal.Description))
	}
	return strings.TrimSpace(sb.String())
}

func goalActionButtons(goal model.Goal) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatUint(uint64(goal.ID), 10)
	var rows [][]tgbotapi.InlineKeyboardButton
	switch goal.Status {
	case model.GoalStatusActive:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Complete", cbGoalCompletePrefix+id),
			tgbotapi.NewInlineKeyboardButtonData("⏸ Pause", cbGoalPausePrefix+id),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Cancel", cbGoalCancelPrefix+id),
		))
	case model.GoalStatusPaused:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Resume", cbGoalResumePrefix+id)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbGoalDeletePrefix+id)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) sendSchedule(ctx context.Context, chatID int64, user *model.User) {
	blocks, err := b.scheduleRepo.ListByUser(ctx, user.ID)
	if err != nil {
		log.Printf("[error] list schedule for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't load your schedule, try again later.")
		return
	}
	if len(blocks) == 0 {
		b.reply(chatID, "No weekly blocks yet. Add one with /schedule.")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗓 <b>Weekly schedule</b>\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, block := range blocks {
		fmt.Fprintf(&sb, "\n%s %s–%s — %s", dayNames[block.DayOfWeek], block.StartTime, block.EndTime, html.EscapeString(block.ActivityLabel))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %s %s–%s", dayNames[block.DayOfWeek][:3], block.StartTime, block.EndTime),
				cbBlockDeletePrefix+strconv.FormatUint(uint64(block.ID), 10)),
		))
	}

	reply := tgbotapi.NewMessage(chatID, sb.String())
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("[error] send schedule: %v", err)
	}
}

func (b *Bot) sendEventList(ctx context.Context, chatID int64, user *model.User) {
	events, err := b.eventRepo.ListByUser(ctx, user.ID)
	if err != nil {
		log.Printf("[error] list events for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't load your events, try again later.")
		return
	}
	if len(events) == 0 {
		b.reply(chatID, "No events. Add one with /newevent.")
		return
	}

	var sb strings.Builder
	sb.WriteString("📅 <b>Events</b>\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, ev := range events {
		when := ev.EventDate.Format(timeslot.DateLayout)
		if ev.IsAllDay {
			when += " (all day)"
		} else {
			when += fmt.Sprintf(" %s–%s", ev.StartTime, ev.EndTime)
		}
		fmt.Fprintf(&sb, "\n%s — %s", when, html.EscapeString(ev.Title))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🗑 %s", ev.EventDate.Format(timeslot.DateLayout)),
				cbEventDeletePrefix+strconv.FormatUint(uint64(ev.ID), 10)),
		))
	}

	reply := tgbotapi.NewMessage(chatID, sb.String())
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("[error] send events: %v", err)
	}
}

func (b *Bot) sendFreeTime(ctx context.Context, msg *tgbotapi.Message, user *model.User) {
	now := time.Now().In(userLocation(user))
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if arg := strings.TrimSpace(msg.CommandArguments()); arg != "" {
		parsed, err := parseUserDate(arg, now)
		if err != nil {
			b.reply(msg.Chat.ID, "I couldn't read that date. Send YYYY-MM-DD, or just /free for today.")
			return
		}
		date = parsed
	}

	blocks, err := b.scheduleRepo.ListByUser(ctx, user.ID)
	if err != nil {
		log.Printf("[error] list schedule for user %d: %v", user.ID, err)
		b.reply(msg.Chat.ID, "Couldn't load your schedule, try again later.")
		return
	}
	events, err := b.eventRepo.ListInRange(ctx, user.ID, date, date.AddDate(0, 0, 1))
	if err != nil {
		log.Printf("[error] list events for user %d: %v", user.ID, err)
		b.reply(msg.Chat.ID, "Couldn't load your events, try again later.")
		return
	}

	slots := timeslot.FreeSlots(date, timeslot.DefaultDayStart, timeslot.DefaultDayEnd, blocks, events, 15)
	if len(slots) == 0 {
		b.reply(msg.Chat.ID, fmt.Sprintf("No free time on %s — the whole day is blocked.", date.Format(timeslot.DateLayout)))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🕐 <b>Free time on %s (%s)</b>\n", date.Format(timeslot.DateLayout), dayNames[timeslot.Weekday(date)])
	for _, slot := range slots {
		fmt.Fprintf(&sb, "\n%s–%s (%d min)", slot.Start, slot.End, slot.DurationMinutes)
	}
	fmt.Fprintf(&sb, "\n\n%d minutes available in total.", timeslot.TotalAvailableMinutes(slots))
	if start, _, ok := timeslot.SelectSlot(slots, 30, timeslot.PreferAny); ok {
		fmt.Fprintf(&sb, " A 30-minute task fits at %s.", start)
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) sendToday(ctx context.Context, chatID int64, user *model.User) {
	now := time.Now().In(userLocation(user))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	tasks, err := b.taskRepo.ListForDate(ctx, user.ID, today)
	if err != nil {
		log.Printf("[error] today's tasks for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't load today's tasks, try again later.")
		return
	}
	if len(tasks) == 0 {
		b.reply(chatID, "Nothing scheduled for today. Generate a plan with /plan.")
		return
	}

	for _, task := range tasks {
		reply := tgbotapi.NewMessage(chatID, formatTask(task))
		reply.ParseMode = tgbotapi.ModeHTML
		if task.Status == model.TaskStatusPending {
			reply.ReplyMarkup = taskActionButtons(task.ID)
		}
		if _, err := b.api.Send(reply); err != nil {
			log.Printf("[error] send today: %v", err)
		}
	}
}

func (b *Bot) sendWeek(ctx context.Context, chatID int64, user *model.User) {
	now := time.Now().In(userLocation(user))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := today.AddDate(0, 0, -timeslot.Weekday(today))
	weekEnd := weekStart.AddDate(0, 0, 7)

	tasks, err := b.taskRepo.ListByDateRange(ctx, user.ID, weekStart, weekEnd)
	if err != nil {
		log.Printf("[error] week tasks for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't load this week's tasks, try again later.")
		return
	}
	if len(tasks) == 0 {
		b.reply(chatID, "No tasks scheduled for this week. Generate a plan with /plan.")
		return
	}

	var pending, completed int
	for _, task := range tasks {
		switch task.Status {
		case model.TaskStatusPending:
			pending++
		case model.TaskStatusCompleted:
			completed++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📆 <b>This week</b> (%s – %s)\n", weekStart.Format("Jan 2"), weekEnd.AddDate(0, 0, -1).Format("Jan 2"))
	fmt.Fprintf(&sb, "Total: %d | ✅ done: %d | 🔹 pending: %d\n", len(tasks), completed, pending)
	for _, task := range tasks {
		when := "any time"
		if task.ScheduledDate != nil {
			when = task.ScheduledDate.Format("Mon Jan 2")
			if task.ScheduledTime != "" {
				when += " " + task.ScheduledTime
			}
		}
		fmt.Fprintf(&sb, "\n%s %s — %s", taskIcon(task.Status), when, html.EscapeString(task.Title))
	}
	b.reply(chatID, sb.String())
}

func taskIcon(status string) string {
	return map[string]string{
		model.TaskStatusPending:     "🔹",
		model.TaskStatusCompleted:   "✅",
		model.TaskStatusSkipped:     "⏭",
		model.TaskStatusRescheduled: "🔁",
	}[status]
}

func formatTask(task model.Task) string {
	icon := taskIcon(task.Status)

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s <b>%s</b>\n", icon, html.EscapeString(task.Title))
	if task.ScheduledTime != "" {
		fmt.Fprintf(&sb, "🕐 %s · %d min\n", task.ScheduledTime, task.DurationMinutes)
	} else {
		fmt.Fprintf(&sb, "⏱ %d min\n", task.DurationMinutes)
	}
	if task.Description != "" {
		fmt.Fprintf(&sb, "📝 %s\n", html.EscapeString(task.Description))
	}
	if task.AIReasoning != "" {
		fmt.Fprintf(&sb, "💡 <i>%s</i>", html.EscapeString(task.AIReasoning))
	}
	return strings.TrimSpace(sb.String())
}

func taskActionButtons(taskID uint) tgbotapi.InlineKeyboardMarkup {
	id := strconv.FormatUint(uint64(taskID), 10)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✅ Done", cbTaskDonePrefix+id),
		tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", cbTaskSkipPrefix+id),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Delete", cbTaskDeletePrefix+id),
	))
}

func (b *Bot) sendProgress(ctx context.Context, chatID int64, user *model.User) {
	summary, err := b.planningSvc.Summary(ctx, user.ID)
	if err != nil {
		log.Printf("[error] summary for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't load your progress, try again later.")
		return
	}
	if summary.TotalTasks == 0 {
		b.reply(chatID, "No tasks yet. Generate a plan with /plan.")
		return
	}
	b.reply(chatID, formatStats(summary.Counts)+fmt.Sprintf("\n\n📆 %d tasks in the next 7 days", summary.UpcomingCount))
}

func formatStats(counts map[string]int64) string {
	var total int64
	for _, c := range counts {
		total += c
	}
	var sb strings.Builder
	sb.WriteString("📊 <b>Progress</b>\n")
	fmt.Fprintf(&sb, "\n✅ completed: %d", counts[model.TaskStatusCompleted])
	fmt.Fprintf(&sb, "\n🔹 pending: %d", counts[model.TaskStatusPending])
	fmt.Fprintf(&sb, "\n⏭ skipped: %d", counts[model.TaskStatusSkipped])
	if counts[model.TaskStatusRescheduled] > 0 {
		fmt.Fprintf(&sb, "\n🔁 rescheduled: %d", counts[model.TaskStatusRescheduled])
	}
	if total > 0 {
		fmt.Fprintf(&sb, "\n\n%d%% done", counts[model.TaskStatusCompleted]*100/total)
	}
	return sb.String()
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	user, err := b.userRepo.FindByTelegramID(ctx, cb.From.ID)
	if err != nil {
		log.Printf("[error] callback from unknown user %d: %v", cb.From.ID, err)
		return
	}
	chatID := cb.Message.Chat.ID
	data := cb.Data

	ack := func(text string) {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
			log.Printf("[error] answer callback: %v", err)
		}
	}

	switch {
	case strings.HasPrefix(data, cbTaskDonePrefix):
		b.finishTask(ctx, chatID, user, parseID(data, cbTaskDonePrefix), model.TaskStatusCompleted, ack)
	case strings.HasPrefix(data, cbTaskSkipPrefix):
		b.finishTask(ctx, chatID, user, parseID(data, cbTaskSkipPrefix), model.TaskStatusSkipped, ack)
	case strings.HasPrefix(data, cbTaskDeletePrefix):
		b.deleteTask(ctx, chatID, user, parseID(data, cbTaskDeletePrefix), ack)
	case strings.HasPrefix(data, cbGoalDeleteYesPrefix):
		b.deleteGoal(ctx, chatID, user, parseID(data, cbGoalDeleteYesPrefix), ack)
	case data == cbGoalDeleteKeep:
		ack("Kept")
	case strings.HasPrefix(data, cbGoalDeletePrefix):
		b.confirmGoalDelete(ctx, chatID, user, parseID(data, cbGoalDeletePrefix), ack)
	case strings.HasPrefix(data, cbGoalCompletePrefix):
		b.changeGoalStatus(ctx, chatID, user, parseID(data, cbGoalCompletePrefix), model.GoalStatusCompleted, ack)
	case strings.HasPrefix(data, cbGoalPausePrefix):
		b.changeGoalStatus(ctx, chatID, user, parseID(data, cbGoalPausePrefix), model.GoalStatusPaused, ack)
	case strings.HasPrefix(data, cbGoalResumePrefix):
		b.changeGoalStatus(ctx, chatID, user, parseID(data, cbGoalResumePrefix), model.GoalStatusActive, ack)
	case strings.HasPrefix(data, cbGoalCancelPrefix):
		b.changeGoalStatus(ctx, chatID, user, parseID(data, cbGoalCancelPrefix), model.GoalStatusCancelled, ack)
	case strings.HasPrefix(data, cbBlockDeletePrefix):
		if err := b.scheduleRepo.Delete(ctx, user.ID, parseID(data, cbBlockDeletePrefix)); err != nil {
			log.Printf("[error] delete block: %v", err)
			ack("Couldn't delete the block")
			return
		}
		ack("Block removed")
	case strings.HasPrefix(data, cbEventDeletePrefix):
		if err := b.eventRepo.Delete(ctx, user.ID, parseID(data, cbEventDeletePrefix)); err != nil {
			log.Printf("[error] delete event: %v", err)
			ack("Couldn't delete the event")
			return
		}
		ack("Event removed")
	default:
		ack("")
	}
}

func (b *Bot) finishTask(ctx context.Context, chatID int64, user *model.User, taskID uint, status string, ack func(string)) {
	task, err := b.taskRepo.FindByID(ctx, user.ID, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ack("This task no longer exists")
		return
	}
	if err != nil {
		log.Printf("[error] load task %d: %v", taskID, err)
		ack("Something went wrong")
		return
	}
	if task.Status != model.TaskStatusPending {
		ack("This task is already " + task.Status)
		return
	}

	if err := b.taskRepo.UpdateStatus(ctx, user.ID, taskID, status); err != nil {
		log.Printf("[error] update task %d: %v", taskID, err)
		ack("Something went wrong")
		return
	}

	if status == model.TaskStatusCompleted {
		ack("Nice work! ✅")
		b.reply(chatID, fmt.Sprintf("✅ Done: <b>%s</b>", html.EscapeString(task.Title)))
	} else {
		ack("Skipped")
		b.reply(chatID, fmt.Sprintf("⏭ Skipped: <b>%s</b>", html.EscapeString(task.Title)))
	}
}

// deleteTask removes a task outright, as opposed to completing or skipping
// it. Its reminders are left for the dispatch loop to cancel as stale.
func (b *Bot) deleteTask(ctx context.Context, chatID int64, user *model.User, taskID uint, ack func(string)) {
	task, err := b.taskRepo.FindByID(ctx, user.ID, taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ack("This task no longer exists")
		return
	}
	if err != nil {
		log.Printf("[error] load task %d: %v", taskID, err)
		ack("Something went wrong")
		return
	}

	if err := b.taskRepo.Delete(ctx, user.ID, taskID); err != nil {
		log.Printf("[error] delete task %d: %v", taskID, err)
		ack("Something went wrong")
		return
	}
	ack("Deleted")
	b.reply(chatID, fmt.Sprintf("🗑 Removed from your plan: <b>%s</b>", html.EscapeString(task.Title)))
}

// confirmGoalDelete asks before deleting: unlike a status change, deletion
// cannot be undone.
func (b *Bot) confirmGoalDelete(ctx context.Context, chatID int64, user *model.User, goalID uint, ack func(string)) {
	goal, err := b.goalRepo.FindByID(ctx, user.ID, goalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ack("This goal no longer exists")
		return
	}
	if err != nil {
		log.Printf("[error] load goal %d: %v", goalID, err)
		ack("Something went wrong")
		return
	}
	ack("")

	id := strconv.FormatUint(uint64(goalID), 10)
	reply := tgbotapi.NewMessage(chatID, fmt.Sprintf(
		"⚠️ Delete <b>%s</b>?\n\nThis cannot be undone.", html.EscapeString(goal.Title)))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Yes, delete", cbGoalDeleteYesPrefix+id),
		tgbotapi.NewInlineKeyboardButtonData("Keep it", cbGoalDeleteKeep),
	))
	if _, err := b.api.Send(reply); err != nil {
		log.Printf("[error] send delete confirmation: %v", err)
	}
}

func (b *Bot) deleteGoal(ctx context.Context, chatID int64, user *model.User, goalID uint, ack func(string)) {
	goal, err := b.goalRepo.FindByID(ctx, user.ID, goalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ack("This goal no longer exists")
		return
	}
	if err != nil {
		log.Printf("[error] load goal %d: %v", goalID, err)
		ack("Something went wrong")
		return
	}

	if err := b.goalRepo.Delete(ctx, user.ID, goalID); err != nil {
		log.Printf("[error] delete goal %d: %v", goalID, err)
		ack("Something went wrong")
		return
	}
	ack("Deleted")
	b.reply(chatID, fmt.Sprintf(
		"🗑 Goal <b>%s</b> deleted.\n\nView the rest with /goals, or create a new one with /newgoal.",
		html.EscapeString(goal.Title)))
}

func (b *Bot) changeGoalStatus(ctx context.Context, chatID int64, user *model.User, goalID uint, status string, ack func(string)) {
	goal, err := b.goalRepo.FindByID(ctx, user.ID, goalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ack("This goal no longer exists")
		return
	}
	if err != nil {
		log.Printf("[error] load goal %d: %v", goalID, err)
		ack("Something went wrong")
		return
	}
	if !model.CanTransitionGoal(goal.Status, status) {
		ack(fmt.Sprintf("A %s goal can't become %s", goal.Status, status))
		return
	}

	if err := b.goalRepo.UpdateStatus(ctx, user.ID, goalID, status); err != nil {
		log.Printf("[error] update goal %d: %v", goalID, err)
		ack("Something went wrong")
		return
	}
	ack("Updated")
	b.reply(chatID, fmt.Sprintf("Goal <b>%s</b> is now %s.", html.EscapeString(goal.Title), status))
}

func (b *Bot) reply(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[error] send message to %d: %v", chatID, err)
	}
}

func parseID(data, prefix string) uint {
	id, err := strconv.ParseUint(strings.TrimPrefix(data, prefix), 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}

func userLocation(user *model.User) *time.Location {
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
