package bot

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"goal-planner/internal/model"
)

// The Bot doubles as the dispatch loop's Notifier: reminders and summaries
// go out over the same Telegram client as command replies. Delivery failure
// is reported as false, never as an error, and the dispatcher decides what
// that means for the reminder's status.

// SendReminder delivers a task reminder with quick Done/Skip actions.
func (b *Bot) SendReminder(ctx context.Context, userID uint, task model.Task) bool {
	user, err := b.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Printf("[error] reminder for unknown user %d: %v", userID, err)
		return false
	}

	var sb strings.Builder
	sb.WriteString("⏰ <b>Task reminder</b>\n\n")
	fmt.Fprintf(&sb, "<b>%s</b>\n\n", html.EscapeString(task.Title))
	if task.ScheduledTime != "" {
		fmt.Fprintf(&sb, "🕐 Scheduled: %s\n", task.ScheduledTime)
	}
	fmt.Fprintf(&sb, "⏱ Duration: %d minutes\n", task.DurationMinutes)
	if task.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", html.EscapeString(task.Description))
	}
	if task.AIReasoning != "" {
		fmt.Fprintf(&sb, "\n💡 <i>%s</i>", html.EscapeString(task.AIReasoning))
	}

	msg := tgbotapi.NewMessage(user.TelegramID, strings.TrimSpace(sb.String()))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = taskActionButtons(task.ID)

	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[error] send reminder to user %d: %v", userID, err)
		return false
	}
	return true
}

// SendSummary delivers the morning overview of the day's tasks.
func (b *Bot) SendSummary(ctx context.Context, userID uint, tasks []model.Task, date time.Time) bool {
	user, err := b.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Printf("[error] summary for unknown user %d: %v", userID, err)
		return false
	}

	var sb strings.Builder
	sb.WriteString("🌅 <b>Good morning!</b>\n\n")
	if len(tasks) == 0 {
		sb.WriteString("You have no scheduled tasks for today. Enjoy your free time! 😊")
	} else {
		fmt.Fprintf(&sb, "Here's your plan for %s:\n", date.Format("Monday, January 2"))
		for i, task := range tasks {
			when := "any time"
			if task.ScheduledTime != "" {
				when = task.ScheduledTime
			}
			fmt.Fprintf(&sb, "\n%d. %s — <b>%s</b> (%d min)", i+1, when, html.EscapeString(task.Title), task.DurationMinutes)
		}
		sb.WriteString("\n\nSee /today for quick actions.")
	}

	msg := tgbotapi.NewMessage(user.TelegramID, sb.String())
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[error] send summary to user %d: %v", userID, err)
		return false
	}
	return true
}

// SendWeeklyStats delivers the Sunday progress report.
func (b *Bot) SendWeeklyStats(ctx context.Context, userID uint, counts map[string]int64) bool {
	var total int64
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		// Nothing to report; not a delivery failure.
		return true
	}

	user, err := b.userRepo.FindByID(ctx, userID)
	if err != nil {
		log.Printf("[error] weekly stats for unknown user %d: %v", userID, err)
		return false
	}

	msg := tgbotapi.NewMessage(user.TelegramID, "🗓 <b>Weekly review</b>\n\n"+formatStats(counts))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("[error] send weekly stats to user %d: %v", userID, err)
		return false
	}
	return true
}
