package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/soil-monitor/internal/api"
	"github.com/abelzeko/soil-monitor/internal/config"
	"github.com/abelzeko/soil-monitor/internal/integration"
	"github.com/abelzeko/soil-monitor/internal/integration/openai"
	"github.com/abelzeko/soil-monitor/internal/repository"
	"github.com/abelzeko/soil-monitor/internal/scheduler"
	"github.com/abelzeko/soil-monitor/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()
	log.Println("Starting Soil Monitor server...")

	profile, err := cfg.PlantProfile()
	if err != nil {
		log.Fatalf("Failed to load plant profile: %v", err)
	}
	opts, err := cfg.MonitorOptions()
	if err != nil {
		log.Fatalf("Invalid monitor settings: %v", err)
	}

	monitor, err := integration.NewMonitor(integration.DefaultMonitorFactory(), cfg.SoilMonitor, opts)
	if err != nil {
		log.Fatalf("Failed to initialize soil monitor: %v", err)
	}
	defer monitor.Close()
	log.Printf("Using soil monitor %q with plant profile %q", monitor.Name(), profile.Name)

	repo, err := repository.NewSQLiteReadingRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	soil := usecases.NewSoilUseCase(monitor, repo, profile)
	health := usecases.NewHealthUseCase(monitor, integration.HostStats)

	hub := api.NewHub()
	soil.AddNotifier(hub)

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Printf("Telegram alerts disabled: %v", err)
		} else {
			soil.AddNotifier(integration.NewTelegramAlerter(bot, cfg.TelegramChatID, cfg.AlertMinInterval))
			log.Printf("Telegram alerts enabled for chat %d", cfg.TelegramChatID)
		}
	}

	if cfg.OpenAIKey != "" {
		interpreter, err := openai.NewOpenAIService(cfg.OpenAIKey)
		if err != nil {
			log.Printf("Free-text queries disabled: %v", err)
		} else {
			soil.SetInterpreter(interpreter)
		}
	}

	sched, err := scheduler.New(soil, scheduler.Config{
		SampleSchedule: cfg.SampleSchedule,
		PruneSchedule:  cfg.PruneSchedule,
		Retention:      cfg.Retention,
	})
	if err != nil {
		log.Fatalf("Failed to set up scheduler: %v", err)
	}
	sched.Start()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewHTTPServer(api.ServerConfig{
		Addr:        ":" + cfg.Port,
		CORSOrigins: cfg.CORSOrigins,
	}, soil, health, hub)
	if err := server.Run(ctx); err != nil {
		log.Errorf("Server stopped with error: %v", err)
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched.Stop(stopCtx)
	log.Println("Soil Monitor server stopped")
}
