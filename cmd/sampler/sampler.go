package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/abelzeko/soil-monitor/internal/config"
	"github.com/abelzeko/soil-monitor/internal/integration"
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
	log.Println("Starting Soil Monitor sampler...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("Sampler failed: %v", err)
	}
}

// run samples once, then keeps sampling and pruning on schedule until ctx is cancelled
func run(ctx context.Context, cfg *config.Config) error {
	profile, err := cfg.PlantProfile()
	if err != nil {
		return fmt.Errorf("failed to load plant profile: %w", err)
	}
	opts, err := cfg.MonitorOptions()
	if err != nil {
		return err
	}

	monitor, err := integration.NewMonitor(integration.DefaultMonitorFactory(), cfg.SoilMonitor, opts)
	if err != nil {
		return fmt.Errorf("failed to initialize soil monitor: %w", err)
	}
	defer monitor.Close()

	repo, err := repository.NewSQLiteReadingRepository(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()

	soil := usecases.NewSoilUseCase(monitor, repo, profile)
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Printf("Telegram alerts disabled: %v", err)
		} else {
			soil.AddNotifier(integration.NewTelegramAlerter(bot, cfg.TelegramChatID, cfg.AlertMinInterval))
		}
	}

	sched, err := scheduler.New(soil, scheduler.Config{
		SampleSchedule: cfg.SampleSchedule,
		PruneSchedule:  cfg.PruneSchedule,
		Retention:      cfg.Retention,
	})
	if err != nil {
		return fmt.Errorf("failed to set up scheduler: %w", err)
	}

	sched.Start()
	log.Printf("Sampler has been scheduled with %s (monitor %s)", cfg.SampleSchedule, monitor.Name())

	<-ctx.Done()
	log.Println("Stopping sampler...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched.Stop(stopCtx)
	return nil
}
