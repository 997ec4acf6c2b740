package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"goal-planner/internal/model"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `[{"title":"x"}]`, `[{"title":"x"}]`},
		{"json fence", "Here you go:\n```json\n[{\"title\":\"x\"}]\n```\nEnjoy", `[{"title":"x"}]`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"whitespace", "  \n[1,2]\n ", "[1,2]"},
	}
	for _, tc := range cases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("%s: extractJSON = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", "test-model"), srv
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func TestGenerateTasks(t *testing.T) {
	var gotPrompt string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Authorization = %q", auth)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotPrompt = req.Messages[1].Content
		chatReply(t, w, "```json\n[{\"title\":\"Run 2km\",\"goal_title\":\"Get fit\",\"scheduled_date\":\"2025-06-02\",\"scheduled_time\":\"07:30\",\"duration_minutes\":30,\"priority\":4,\"reasoning\":\"morning energy\"}]\n```")
	})

	target := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	req := PlanRequest{
		Goals:     []model.Goal{{Title: "Get fit", Priority: 4, TargetDate: &target, Description: "5k in autumn"}},
		Schedule:  []model.RecurringBlock{{DayOfWeek: 0, StartTime: "09:00", EndTime: "17:00", ActivityLabel: "work"}},
		Events:    []model.SpecialEvent{{EventDate: time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC), Title: "dentist"}},
		Timezone:  "Europe/Berlin",
		StartDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC),
	}

	proposals, err := client.GenerateTasks(context.Background(), req)
	if err != nil {
		t.Fatalf("GenerateTasks: %v", err)
	}
	if len(proposals) != 1 || proposals[0].Title != "Run 2km" || proposals[0].Priority != 4 {
		t.Fatalf("proposals = %+v", proposals)
	}

	for _, want := range []string{"Get fit", "Mon: 09:00-17:00 (work)", "2025-06-05: dentist", "Europe/Berlin", "2025-06-02 to 2025-06-09"} {
		if !strings.Contains(gotPrompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gotPrompt)
		}
	}
}

func TestGenerateTasks_EmptyOrGarbage(t *testing.T) {
	for name, content := range map[string]string{
		"empty array": "[]",
		"not json":    "I could not come up with a plan, sorry.",
		"not a list":  `{"title":"one task"}`,
	} {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			chatReply(t, w, content)
		})
		if _, err := client.GenerateTasks(context.Background(), PlanRequest{}); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestGenerateTasks_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	if _, err := client.GenerateTasks(context.Background(), PlanRequest{}); err == nil {
		t.Fatal("expected error on HTTP 429")
	}
}

func TestClarifyGoal(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"questions":["How often can you train?","Any injuries?"],"is_complete":false,"reasoning":"need schedule info"}`)
	})

	result, err := client.ClarifyGoal(context.Background(), "Get fit", "run a 5k", nil)
	if err != nil {
		t.Fatalf("ClarifyGoal: %v", err)
	}
	if len(result.Questions) != 2 || result.IsComplete {
		t.Fatalf("result = %+v", result)
	}
}

func TestClarifyGoal_NonJSONDegradesToSingleQuestion(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "What distance do you want to run?")
	})

	result, err := client.ClarifyGoal(context.Background(), "Get fit", "", nil)
	if err != nil {
		t.Fatalf("ClarifyGoal: %v", err)
	}
	if len(result.Questions) != 1 || result.Questions[0] != "What distance do you want to run?" {
		t.Fatalf("result = %+v", result)
	}
	if result.IsComplete {
		t.Fatal("degraded response must not be complete")
	}
}

func TestAnalyzeCategory(t *testing.T) {
	cases := map[string]string{
		"Fitness":        "fitness", // case-normalized
		"education":      "education",
		"something else": "other",
	}
	for reply, want := range cases {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			chatReply(t, w, reply)
		})
		if got := client.AnalyzeCategory(context.Background(), "goal", "desc"); got != want {
			t.Errorf("AnalyzeCategory(reply=%q) = %q, want %q", reply, got, want)
		}
	}
}
