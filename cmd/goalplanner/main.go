package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goal-planner/internal/ai"
	"goal-planner/internal/bot"
	"goal-planner/internal/config"
	"goal-planner/internal/repository"
	"goal-planner/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	goalRepo := repository.NewGoalRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	eventRepo := repository.NewEventRepository(db)

	aiClient := ai.NewClient(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	planningSvc := service.NewPlanningService(goalRepo, taskRepo, reminderRepo, scheduleRepo, eventRepo, aiClient)

	telegramBot, err := bot.New(cfg.TelegramToken, userRepo, goalRepo, taskRepo, scheduleRepo, eventRepo, planningSvc, aiClient, &cfg)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	dispatchSvc := service.NewDispatchService(reminderRepo, taskRepo, userRepo, telegramBot)

	// All jobs run on UTC; the dispatch service handles per-user timezones.
	scheduler := service.NewSchedulerService(time.UTC)

	if _, err := scheduler.ScheduleInterval(cfg.ReminderInterval, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := dispatchSvc.CheckAndSendReminders(jobCtx); err != nil {
			log.Printf("[error] reminder check: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule reminder check: %v", err)
	}

	if _, err := scheduler.ScheduleInterval(time.Hour, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := dispatchSvc.SendDailySummaries(jobCtx); err != nil {
			log.Printf("[error] daily summaries: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule daily summaries: %v", err)
	}

	if _, err := scheduler.ScheduleWeekly(time.Sunday, "20:00", func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := dispatchSvc.SendWeeklySummaries(jobCtx); err != nil {
			log.Printf("[error] weekly summaries: %v", err)
		}
	}); err != nil {
		log.Fatalf("schedule weekly summaries: %v", err)
	}

	scheduler.Start()
	defer scheduler.Stop()

	log.Println("Goal planner bot started.")
	if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("bot stopped with error: %v", err)
	}
	log.Println("Shutdown complete.")
}
