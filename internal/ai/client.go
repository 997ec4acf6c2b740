// Package ai talks to an OpenAI-compatible chat-completions endpoint
// (OpenRouter) for plan generation and goal clarification. Responses are
// best-effort: the model may return fewer tasks than asked for and may ignore
// scheduling constraints, so callers must reconcile the output against real
// data before trusting it.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"goal-planner/internal/model"
	"goal-planner/internal/timeslot"
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Client is an OpenRouter API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	modelName  string
}

func NewClient(baseURL, apiKey, modelName string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 90 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		modelName:  modelName,
	}
}

// TaskProposal is one task suggested by the model. goal_title is free text,
// not an id; dates and times are strings the model promised to format but
// may not have.
type TaskProposal struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	GoalTitle       string `json:"goal_title"`
	ScheduledDate   string `json:"scheduled_date"`
	ScheduledTime   string `json:"scheduled_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Priority        int    `json:"priority"`
	Reasoning       string `json:"reasoning"`
}

// PlanRequest carries everything the model needs to propose a schedule.
type PlanRequest struct {
	Goals     []model.Goal
	Schedule  []model.RecurringBlock
	Events    []model.SpecialEvent
	Timezone  string
	StartDate time.Time
	EndDate   time.Time
}

const planSystemPrompt = `You are an expert goal planning assistant. Create a structured daily task plan.

Rules:
1. Break down goals into small, actionable daily tasks
2. Distribute tasks evenly over the time period
3. Respect the user's schedule and avoid blocked times
4. Prioritize tasks by goal priority and deadline
5. Each task should take 15-60 minutes
6. Include reasoning for each task's timing

Return a JSON array of tasks with this structure:
[
    {
        "title": "Task title",
        "description": "What to do",
        "goal_title": "Related goal",
        "scheduled_date": "YYYY-MM-DD",
        "scheduled_time": "HH:MM",
        "duration_minutes": 30,
        "priority": 3,
        "reasoning": "Why scheduled at this time"
    }
]

Limit to maximum 50 tasks.`

// GenerateTasks asks the model for a task breakdown of the user's goals over
// the planning window. An empty or unparseable response is an error; the
// caller treats any error here as a failed plan.
func (c *Client) GenerateTasks(ctx context.Context, req PlanRequest) ([]TaskProposal, error) {
	userPrompt := buildPlanPrompt(req)

	content, err := c.complete(ctx, planSystemPrompt, userPrompt, 0.7, 4000)
	if err != nil {
		return nil, err
	}

	var proposals []TaskProposal
	if err := json.Unmarshal([]byte(extractJSON(content)), &proposals); err != nil {
		return nil, fmt.Errorf("parse plan response: %w", err)
	}
	if len(proposals) == 0 {
		return nil, fmt.Errorf("model returned an empty plan")
	}
	return proposals, nil
}

func buildPlanPrompt(req PlanRequest) string {
	var b strings.Builder
	b.WriteString("Create a daily task plan:\n\nGoals:\n")
	for _, g := range req.Goals {
		target := "Not set"
		if g.TargetDate != nil {
			target = g.TargetDate.Format(timeslot.DateLayout)
		}
		fmt.Fprintf(&b, "- %s (Priority: %d, Target: %s)\n  %s\n", g.Title, g.Priority, target, g.Description)
	}

	b.WriteString("\nWeekly Schedule (blocked times):\n")
	if len(req.Schedule) == 0 {
		b.WriteString("No recurring schedule blocks\n")
	}
	dayNames := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	for _, s := range req.Schedule {
		day := "?"
		if s.DayOfWeek >= 0 && s.DayOfWeek < len(dayNames) {
			day = dayNames[s.DayOfWeek]
		}
		fmt.Fprintf(&b, "- %s: %s-%s (%s)\n", day, s.StartTime, s.EndTime, s.ActivityLabel)
	}

	b.WriteString("\nSpecial Events:\n")
	if len(req.Events) == 0 {
		b.WriteString("No special events\n")
	}
	for _, e := range req.Events {
		fmt.Fprintf(&b, "- %s: %s\n", e.EventDate.Format(timeslot.DateLayout), e.Title)
	}

	fmt.Fprintf(&b, "\nPeriod: %s to %s\nTimezone: %s\n\nGenerate an optimized task schedule.",
		req.StartDate.Format(timeslot.DateLayout), req.EndDate.Format(timeslot.DateLayout), req.Timezone)
	return b.String()
}

// Clarification is the model's follow-up on a freshly described goal.
type Clarification struct {
	Questions  []string `json:"questions"`
	IsComplete bool     `json:"is_complete"`
	Reasoning  string   `json:"reasoning"`
}

const clarifySystemPrompt = `You are a helpful goal-planning assistant. Your job is to ask clarifying questions to better understand user's goals.

Rules:
1. Ask 2-3 specific, relevant questions that will help create an actionable plan
2. Focus on: timeline, measurable outcomes, current situation, obstacles, resources, motivation
3. Don't ask questions if the information was already provided
4. After 3-5 rounds of questions, or when you have enough info, mark as complete
5. Be concise and friendly

Return your response in this exact JSON format:
{
    "questions": ["question 1", "question 2"],
    "is_complete": false,
    "reasoning": "Why these questions help"
}`

// ClarifyGoal asks for follow-up questions about a goal. A response that is
// not valid JSON degrades to a single free-text question rather than failing
// the goal-setup flow.
func (c *Client) ClarifyGoal(ctx context.Context, title, description string, previous []model.QAPair) (Clarification, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal Title: %s\nGoal Description: %s", title, description)
	if len(previous) > 0 {
		b.WriteString("\n\nPrevious Q&A:\n")
		for _, qa := range previous {
			fmt.Fprintf(&b, "Q: %s\nA: %s\n", qa.Question, qa.Answer)
		}
	}
	b.WriteString("\n\nBased on the goal and any previous answers, generate clarifying questions or mark as complete if you have enough information.")

	content, err := c.complete(ctx, clarifySystemPrompt, b.String(), 0.7, 500)
	if err != nil {
		return Clarification{}, err
	}

	var result Clarification
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		return Clarification{
			Questions: []string{strings.TrimSpace(content)},
			Reasoning: "need more details about your goal",
		}, nil
	}
	return result, nil
}

var validCategories = map[string]bool{
	"fitness": true, "health": true, "education": true, "career": true,
	"finance": true, "relationships": true, "personal": true,
	"creative": true, "business": true, "other": true,
}

const categorySystemPrompt = `Analyze the goal and return ONLY ONE WORD from this list:
fitness, health, education, career, finance, relationships, personal, creative, business, other

Return only the single most appropriate category word, nothing else.`

// AnalyzeCategory classifies a goal into one of a fixed set of categories,
// defaulting to "other" on anything unexpected.
func (c *Client) AnalyzeCategory(ctx context.Context, title, description string) string {
	prompt := fmt.Sprintf("Goal: %s\nDescription: %s", title, description)
	content, err := c.complete(ctx, categorySystemPrompt, prompt, 0.3, 10)
	if err != nil {
		return "other"
	}
	category := strings.ToLower(strings.TrimSpace(content))
	if validCategories[category] {
		return category
	}
	return "other"
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.modelName,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat request failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// extractJSON unwraps the model's habit of fencing JSON in markdown code
// blocks.
func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	return content
}
