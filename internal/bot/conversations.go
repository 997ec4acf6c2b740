package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"goal-planner/internal/model"
	"goal-planner/internal/timeslot"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageGoalTitle
	stageGoalDescription
	stageGoalClarify
	stageGoalTargetDate
	stageGoalPriority
	stageBlockDay
	stageBlockStart
	stageBlockEnd
	stageBlockLabel
	stageEventDate
	stageEventAllDay
	stageEventStart
	stageEventEnd
	stageEventTitle
)

// At most this many rounds of clarifying questions per goal.
const maxClarifyRounds = 3

type goalDraft struct {
	title            string
	description      string
	qa               []model.QAPair
	pendingQuestions []string
	rounds           int
	targetDate       *time.Time
	priority         int
}

type blockDraft struct {
	day   int
	start string
	end   string
}

type eventDraft struct {
	date     time.Time
	isAllDay bool
	start    string
	end      string
}

type conversationState struct {
	stage conversationStage
	goal  goalDraft
	block blockDraft
	event eventDraft
}

func (b *Bot) setConversation(chatID int64, state *conversationState) {
	b.mu.Lock()
	b.conversations[chatID] = state
	b.mu.Unlock()
}

func (b *Bot) getConversation(chatID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) clearConversation(chatID int64) {
	b.mu.Lock()
	delete(b.conversations, chatID)
	b.mu.Unlock()
}

func (b *Bot) startGoalConversation(chatID int64) {
	b.setConversation(chatID, &conversationState{stage: stageGoalTitle})
	b.reply(chatID, "Let's set up a new goal. What do you want to achieve?\n\n<i>Short and concrete works best, e.g. \"Run a 10k\" or \"Learn conversational Spanish\".</i>")
}

func (b *Bot) startScheduleConversation(chatID int64) {
	b.setConversation(chatID, &conversationState{stage: stageBlockDay})
	b.reply(chatID, "Adding a weekly busy block. Which day?\n\n<i>Send a day name (Monday) or a number 0–6, where 0 is Monday.</i>")
}

func (b *Bot) startEventConversation(chatID int64) {
	b.setConversation(chatID, &conversationState{stage: stageEventDate})
	b.reply(chatID, "Adding a one-off event. Which date?\n\n<i>Send YYYY-MM-DD, or \"today\" / \"tomorrow\".</i>")
}

// continueConversation advances an in-progress dialog with the message text.
// Returns false when no dialog is active for the chat.
func (b *Bot) continueConversation(ctx context.Context, msg *tgbotapi.Message, user *model.User) bool {
	state := b.getConversation(msg.Chat.ID)
	if state == nil || state.stage == stageNone {
		return false
	}

	text := strings.TrimSpace(msg.Text)
	chatID := msg.Chat.ID

	switch state.stage {
	case stageGoalTitle:
		if text == "" {
			b.reply(chatID, "I need a title for the goal. Try again or /cancel.")
			return true
		}
		state.goal.title = text
		state.stage = stageGoalDescription
		b.reply(chatID, "Got it. Describe the goal in a sentence or two: where you are now and what done looks like.")

	case stageGoalDescription:
		state.goal.description = text
		b.askClarifyingQuestions(ctx, chatID, state)

	case stageGoalClarify:
		if len(state.goal.pendingQuestions) > 0 {
			question := state.goal.pendingQuestions[0]
			state.goal.pendingQuestions = state.goal.pendingQuestions[1:]
			state.goal.qa = append(state.goal.qa, model.QAPair{Question: question, Answer: text})
		}
		if len(state.goal.pendingQuestions) > 0 {
			b.reply(chatID, html.EscapeString(state.goal.pendingQuestions[0]))
			return true
		}
		state.goal.rounds++
		if state.goal.rounds >= maxClarifyRounds {
			b.askTargetDate(chatID, state)
			return true
		}
		b.askClarifyingQuestions(ctx, chatID, state)

	case stageGoalTargetDate:
		if !strings.EqualFold(text, btnSkip) {
			date, err := parseUserDate(text, time.Now())
			if err != nil {
				b.reply(chatID, "I couldn't read that date. Send YYYY-MM-DD or \"skip\".")
				return true
			}
			state.goal.targetDate = &date
		}
		state.stage = stageGoalPriority
		b.reply(chatID, "How important is this goal, 1 (nice to have) to 5 (top priority)?")

	case stageGoalPriority:
		priority, err := strconv.Atoi(text)
		if err != nil || priority < 1 || priority > 5 {
			b.reply(chatID, "Send a number from 1 to 5.")
			return true
		}
		state.goal.priority = priority
		b.finishGoal(ctx, chatID, user, state)

	case stageBlockDay:
		day, err := parseWeekday(text)
		if err != nil {
			b.reply(chatID, "I couldn't read that day. Send a name like Monday or a number 0–6.")
			return true
		}
		state.block.day = day
		state.stage = stageBlockStart
		b.reply(chatID, fmt.Sprintf("%s it is. When does the block start? (HH:MM)", dayNames[day]))

	case stageBlockStart:
		if _, err := timeslot.ParseTimeOfDay(text); err != nil {
			b.reply(chatID, "That's not a time I understand. Send HH:MM, e.g. 09:00.")
			return true
		}
		state.block.start = canonicalTime(text)
		state.stage = stageBlockEnd
		b.reply(chatID, "And when does it end? (HH:MM)")

	case stageBlockEnd:
		end, err := timeslot.ParseTimeOfDay(text)
		if err != nil {
			b.reply(chatID, "That's not a time I understand. Send HH:MM, e.g. 17:30.")
			return true
		}
		start, _ := timeslot.ParseTimeOfDay(state.block.start)
		// Blocks crossing midnight are not supported.
		if end <= start {
			b.reply(chatID, fmt.Sprintf("The end has to be after the start (%s), and blocks can't cross midnight. Try again.", state.block.start))
			return true
		}
		state.block.end = canonicalTime(text)
		state.stage = stageBlockLabel
		b.reply(chatID, "What is this time for? (e.g. work, school, gym)")

	case stageBlockLabel:
		if text == "" {
			b.reply(chatID, "Give the block a short label, e.g. work.")
			return true
		}
		b.finishBlock(ctx, chatID, user, state, text)

	case stageEventDate:
		date, err := parseUserDate(text, time.Now())
		if err != nil {
			b.reply(chatID, "I couldn't read that date. Send YYYY-MM-DD, or \"today\" / \"tomorrow\".")
			return true
		}
		state.event.date = date
		state.stage = stageEventAllDay
		b.reply(chatID, "Does it take the whole day? (yes/no)")

	case stageEventAllDay:
		switch strings.ToLower(text) {
		case btnYes:
			state.event.isAllDay = true
			state.stage = stageEventTitle
			b.reply(chatID, "What's the event called?")
		case btnNo:
			state.stage = stageEventStart
			b.reply(chatID, "When does it start? (HH:MM)")
		default:
			b.reply(chatID, "Just \"yes\" or \"no\", please.")
		}

	case stageEventStart:
		if _, err := timeslot.ParseTimeOfDay(text); err != nil {
			b.reply(chatID, "That's not a time I understand. Send HH:MM.")
			return true
		}
		state.event.start = canonicalTime(text)
		state.stage = stageEventEnd
		b.reply(chatID, "And when does it end? (HH:MM)")

	case stageEventEnd:
		end, err := timeslot.ParseTimeOfDay(text)
		if err != nil {
			b.reply(chatID, "That's not a time I understand. Send HH:MM.")
			return true
		}
		start, _ := timeslot.ParseTimeOfDay(state.event.start)
		if end <= start {
			b.reply(chatID, fmt.Sprintf("The end has to be after the start (%s). Try again.", state.event.start))
			return true
		}
		state.event.end = canonicalTime(text)
		state.stage = stageEventTitle
		b.reply(chatID, "What's the event called?")

	case stageEventTitle:
		if text == "" {
			b.reply(chatID, "The event needs a name.")
			return true
		}
		b.finishEvent(ctx, chatID, user, state, text)
	}

	return true
}

func (b *Bot) askClarifyingQuestions(ctx context.Context, chatID int64, state *conversationState) {
	clarification, err := b.aiClient.ClarifyGoal(ctx, state.goal.title, state.goal.description, state.goal.qa)
	if err != nil {
		log.Printf("[warn] clarify goal %q: %v", state.goal.title, err)
		b.askTargetDate(chatID, state)
		return
	}
	if clarification.IsComplete || len(clarification.Questions) == 0 {
		b.askTargetDate(chatID, state)
		return
	}

	state.goal.pendingQuestions = clarification.Questions
	state.stage = stageGoalClarify
	b.reply(chatID, "A couple of questions to make the plan sharper:\n\n"+html.EscapeString(clarification.Questions[0]))
}

func (b *Bot) askTargetDate(chatID int64, state *conversationState) {
	state.stage = stageGoalTargetDate
	b.reply(chatID, "By when do you want to reach it? Send YYYY-MM-DD, or \"skip\" if there's no deadline.")
}

func (b *Bot) finishGoal(ctx context.Context, chatID int64, user *model.User, state *conversationState) {
	category := b.aiClient.AnalyzeCategory(ctx, state.goal.title, state.goal.description)

	goal := model.Goal{
		UserID:      user.ID,
		Title:       state.goal.title,
		Description: state.goal.description,
		Category:    category,
		TargetDate:  state.goal.targetDate,
		Priority:    state.goal.priority,
		Status:      model.GoalStatusActive,
		QAHistory:   state.goal.qa,
	}
	if err := b.goalRepo.Create(ctx, &goal); err != nil {
		log.Printf("[error] create goal for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't save the goal, try again later.")
		b.clearConversation(chatID)
		return
	}

	b.clearConversation(chatID)
	b.reply(chatID, fmt.Sprintf(
		"🎯 Goal saved: <b>%s</b> (%s, priority %d)\n\nAdd your weekly schedule with /schedule so I know when you're free, then run /plan.",
		html.EscapeString(goal.Title), html.EscapeString(goal.Category), goal.Priority))
}

func (b *Bot) finishBlock(ctx context.Context, chatID int64, user *model.User, state *conversationState, label string) {
	block := model.RecurringBlock{
		UserID:        user.ID,
		DayOfWeek:     state.block.day,
		StartTime:     state.block.start,
		EndTime:       state.block.end,
		ActivityLabel: label,
	}
	if err := b.scheduleRepo.Create(ctx, &block); err != nil {
		log.Printf("[error] create block for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't save the block, try again later.")
		b.clearConversation(chatID)
		return
	}

	b.clearConversation(chatID)
	b.reply(chatID, fmt.Sprintf(
		"🗓 Blocked %s %s–%s for <b>%s</b>.\n\nAdd another with /schedule, or check /myschedule.",
		dayNames[block.DayOfWeek], block.StartTime, block.EndTime, html.EscapeString(label)))
}

func (b *Bot) finishEvent(ctx context.Context, chatID int64, user *model.User, state *conversationState, title string) {
	event := model.SpecialEvent{
		UserID:           user.ID,
		EventDate:        state.event.date,
		IsAllDay:         state.event.isAllDay,
		StartTime:        state.event.start,
		EndTime:          state.event.end,
		Title:            title,
		BlocksScheduling: true,
	}
	if err := b.eventRepo.Create(ctx, &event); err != nil {
		log.Printf("[error] create event for user %d: %v", user.ID, err)
		b.reply(chatID, "Couldn't save the event, try again later.")
		b.clearConversation(chatID)
		return
	}

	b.clearConversation(chatID)
	when := event.EventDate.Format(timeslot.DateLayout)
	if event.IsAllDay {
		when += " (all day)"
	} else {
		when += fmt.Sprintf(" %s–%s", event.StartTime, event.EndTime)
	}
	b.reply(chatID, fmt.Sprintf("📅 Event saved: <b>%s</b> on %s. I'll plan around it.", html.EscapeString(title), when))
}

func parseWeekday(text string) (int, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	if n, err := strconv.Atoi(text); err == nil {
		if n < 0 || n > 6 {
			return 0, fmt.Errorf("day %d out of range", n)
		}
		return n, nil
	}
	for i, name := range dayNames {
		lower := strings.ToLower(name)
		if text == lower || text == lower[:3] {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown day %q", text)
}

// parseUserDate reads YYYY-MM-DD plus the "today"/"tomorrow" shorthands.
func parseUserDate(text string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	case "tomorrow":
		d := now.AddDate(0, 0, 1)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse(timeslot.DateLayout, strings.TrimSpace(text))
}

// canonicalTime normalizes user time input to HH:MM.
func canonicalTime(text string) string {
	t, err := timeslot.ParseTimeOfDay(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	return t.String()
}
