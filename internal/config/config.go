package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterBaseURL string
	DefaultTimezone   string
	ReminderInterval  time.Duration
	PlanDurationDays  int
}

// Load reads configuration from the environment, with a .env file picked up
// when present.
func Load() (Config, error) {
	// Missing .env is fine; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:     strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		OpenRouterAPIKey:  strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY")),
		OpenRouterModel:   strings.TrimSpace(os.Getenv("OPENROUTER_MODEL")),
		OpenRouterBaseURL: strings.TrimSpace(os.Getenv("OPENROUTER_BASE_URL")),
		DefaultTimezone:   strings.TrimSpace(os.Getenv("DEFAULT_TIMEZONE")),
		ReminderInterval:  parseSeconds(os.Getenv("REMINDER_CHECK_SECONDS")),
		PlanDurationDays:  parseInt(os.Getenv("PLAN_DURATION_DAYS")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "goal_planner.db"
	}
	if cfg.OpenRouterModel == "" {
		cfg.OpenRouterModel = "xiaomi/mimo-v2-flash:free"
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.ReminderInterval == 0 {
		cfg.ReminderInterval = time.Minute
	}
	if cfg.PlanDurationDays == 0 {
		cfg.PlanDurationDays = 30
	}

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.OpenRouterAPIKey == "" {
		return cfg, fmt.Errorf("OPENROUTER_API_KEY is required")
	}

	return cfg, nil
}

func parseSeconds(raw string) time.Duration {
	n := parseInt(raw)
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func parseInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
