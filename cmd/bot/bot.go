package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/abelzeko/soil-monitor/internal/api"
	"github.com/abelzeko/soil-monitor/internal/config"
	"github.com/abelzeko/soil-monitor/internal/integration"
	"github.com/abelzeko/soil-monitor/internal/integration/openai"
	"github.com/abelzeko/soil-monitor/internal/repository"
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
	log.Println("Starting Soil Monitor bot...")

	if cfg.TelegramToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

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

	// Initialize repository
	repo, err := repository.NewSQLiteReadingRepository(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize repository: %v", err)
	}
	defer repo.Close()

	soil := usecases.NewSoilUseCase(monitor, repo, profile)
	health := usecases.NewHealthUseCase(monitor, integration.HostStats)

	if cfg.OpenAIKey != "" {
		interpreter, err := openai.NewOpenAIService(cfg.OpenAIKey)
		if err != nil {
			log.Fatalf("Failed to initialize OpenAI service: %v", err)
		}
		soil.SetInterpreter(interpreter)
	} else {
		log.Println("OPENAI_API_KEY is not set, free-text questions get a help message")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatalf("Failed to initialize Telegram bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api.NewTelegramBot(botAPI, soil, health).Start(ctx)
}
