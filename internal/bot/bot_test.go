package bot

import (
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"goal-planner/internal/model"
)

func buttonData(markup tgbotapi.InlineKeyboardMarkup) []string {
	var data []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				data = append(data, *btn.CallbackData)
			}
		}
	}
	return data
}

func hasButton(markup tgbotapi.InlineKeyboardMarkup, want string) bool {
	for _, d := range buttonData(markup) {
		if d == want {
			return true
		}
	}
	return false
}

func TestGoalActionButtons_DeleteAlwaysOffered(t *testing.T) {
	statuses := []string{
		model.GoalStatusActive,
		model.GoalStatusPaused,
		model.GoalStatusCompleted,
		model.GoalStatusCancelled,
	}
	for _, status := range statuses {
		markup := goalActionButtons(model.Goal{ID: 42, Status: status})
		if !hasButton(markup, cbGoalDeletePrefix+"42") {
			t.Errorf("status %s: no delete button in %v", status, buttonData(markup))
		}
	}
}

func TestGoalActionButtons_StatusDependentActions(t *testing.T) {
	active := goalActionButtons(model.Goal{ID: 1, Status: model.GoalStatusActive})
	for _, want := range []string{cbGoalCompletePrefix + "1", cbGoalPausePrefix + "1", cbGoalCancelPrefix + "1"} {
		if !hasButton(active, want) {
			t.Errorf("active goal missing %q", want)
		}
	}

	paused := goalActionButtons(model.Goal{ID: 1, Status: model.GoalStatusPaused})
	if !hasButton(paused, cbGoalResumePrefix+"1") {
		t.Error("paused goal missing resume button")
	}
	if hasButton(paused, cbGoalCompletePrefix+"1") {
		t.Error("paused goal must not offer complete")
	}

	// Terminal statuses get the delete row and nothing else.
	done := goalActionButtons(model.Goal{ID: 1, Status: model.GoalStatusCompleted})
	if got := buttonData(done); len(got) != 1 || got[0] != cbGoalDeletePrefix+"1" {
		t.Errorf("completed goal buttons = %v, want only delete", got)
	}
}

func TestTaskActionButtons(t *testing.T) {
	markup := taskActionButtons(7)
	for _, want := range []string{cbTaskDonePrefix + "7", cbTaskSkipPrefix + "7", cbTaskDeletePrefix + "7"} {
		if !hasButton(markup, want) {
			t.Errorf("task buttons missing %q: %v", want, buttonData(markup))
		}
	}
}

func TestMainMenuKeyboard(t *testing.T) {
	kb := mainMenuKeyboard()
	if !kb.ResizeKeyboard {
		t.Error("menu keyboard should resize")
	}
	var labels []string
	for _, row := range kb.Keyboard {
		for _, btn := range row {
			labels = append(labels, btn.Text)
		}
	}
	want := []string{menuLabelNewGoal, menuLabelGoals, menuLabelToday, menuLabelHelp}
	if len(labels) != len(want) {
		t.Fatalf("menu labels = %v, want %v", labels, want)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Errorf("label[%d] = %q, want %q", i, labels[i], want[i])
		}
	}
}

func TestParseWeekday(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"monday", 0, false},
		{"Mon", 0, false},
		{"SUNDAY", 6, false},
		{"3", 3, false},
		{"7", 0, true},
		{"someday", 0, true},
	}
	for _, tc := range cases {
		got, err := parseWeekday(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseWeekday(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseWeekday(%q) = %d, %v, want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestParseUserDate(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 30, 0, 0, time.UTC)

	got, err := parseUserDate("today", now)
	if err != nil || !got.Equal(time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("today = %v, %v", got, err)
	}
	got, err = parseUserDate("Tomorrow", now)
	if err != nil || !got.Equal(time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("tomorrow = %v, %v", got, err)
	}
	got, err = parseUserDate("2025-07-01", now)
	if err != nil || got.Month() != time.July {
		t.Errorf("explicit date = %v, %v", got, err)
	}
	if _, err = parseUserDate("next friday", now); err == nil {
		t.Error("expected error for unsupported phrase")
	}
}
