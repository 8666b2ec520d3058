package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/api/option"

	"taskledger/internal/bot"
	"taskledger/internal/config"
	"taskledger/internal/gcal"
	"taskledger/internal/llm"
	"taskledger/internal/mcpserver"
	"taskledger/internal/repository"
	"taskledger/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	docs, err := repository.OpenDocuments(cfg.StorageDSN, repository.Options{
		Token:    cfg.StorageToken,
		CacheTTL: cfg.CacheTTL,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	store, err := repository.NewStore(docs)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	taskSvc := service.NewTaskService(store, time.Now)
	questionSvc := service.NewQuestionService(store, time.Now)
	notificationSvc := service.NewNotificationService(store, time.Now)
	insightSvc := service.NewInsightService(store, time.Now)
	reminderSvc := service.NewReminderService(store)
	toolbox := service.NewToolbox(taskSvc, questionSvc, notificationSvc, insightSvc, reminderSvc, time.Now)

	var calendar service.CalendarClient
	if cfg.CalendarEnabled() {
		client, err := gcal.New(ctx, cfg.CalendarID, option.WithCredentialsFile(cfg.CalendarCredentialsFile))
		if err != nil {
			log.Fatalf("calendar: %v", err)
		}
		calendar = client
		log.Printf("[info] calendar sync enabled for %s", cfg.CalendarID)
	}
	reconciler := service.NewNotificationReconciler(store, calendar, service.ReconcilerOptions{
		TimeZone:      cfg.CalendarTimeZone,
		EventDuration: cfg.CalendarEventDuration,
	})

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		telegramBot, err = bot.New(cfg.TelegramToken, bot.Services{
			Tasks:         taskSvc,
			Questions:     questionSvc,
			Notifications: notificationSvc,
			Reminders:     reminderSvc,
		}, cfg.NotifyChatID, cfg.AllowFrom)
		if err != nil {
			log.Fatalf("bot: %v", err)
		}
	}

	deliveryOpts := service.DeliveryOptions{Channel: bot.Channel, Recipient: cfg.NotifyChatID}
	deliver := logDelivery
	if telegramBot != nil {
		deliver = telegramBot.Deliver
	} else {
		deliveryOpts = service.DeliveryOptions{Channel: "log", Recipient: "stderr"}
	}

	lock := service.NewProcessingLock()
	scheduler := service.NewReconciliationScheduler(reconciler, deliver, lock, deliveryOpts)
	defer scheduler.Stop()

	var chat llm.ChatModel
	if cfg.LLMEnabled() {
		model, err := llm.NewOpenAIModel(llm.OpenAIOptions{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.WorkerModel,
		})
		if err != nil {
			log.Fatalf("llm: %v", err)
		}
		chat = model
	}
	worker := service.NewWorkerAgent(store, scheduler, toolbox, reminderSvc, service.WorkerOptions{Model: chat})
	coordinator := service.NewCoordinator(lock, store, scheduler, worker)
	if telegramBot != nil {
		telegramBot.SetCoordinator(coordinator)
	}

	if err := coordinator.Startup(ctx); err != nil {
		log.Fatalf("startup: %v", err)
	}

	jobs := service.NewSchedulerService(time.Local, 10*time.Minute)
	if _, err := jobs.ScheduleInterval("worker cycle", cfg.WorkerInterval, coordinator.RunWorkerCycle); err != nil {
		log.Fatalf("schedule worker: %v", err)
	}
	if telegramBot != nil && cfg.DigestTime != "" {
		if _, err := jobs.ScheduleDaily("daily digest", cfg.DigestTime, telegramBot.SendDailyDigest); err != nil {
			log.Fatalf("schedule digest: %v", err)
		}
	}
	jobs.Start()
	defer jobs.Stop()

	log.Println("Task ledger started.")
	switch {
	case cfg.MCPStdio:
		s := mcpserver.NewServer(toolbox, coordinator)
		if err := mcpserver.Serve(ctx, s, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("mcp stopped with error: %v", err)
		}
	default:
		if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("bot stopped with error: %v", err)
		}
	}
	log.Println("Shutdown complete.")
}

func logDelivery(_ context.Context, channel, recipient, text string) error {
	log.Printf("[info] reminder via %s to %s: %s", channel, recipient, text)
	return nil
}
