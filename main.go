package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/abelzeko/soil-monitor/internal/config"
	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/abelzeko/soil-monitor/internal/integration"
	log "github.com/sirupsen/logrus"
)

// probe reads the configured soil monitor once and prints the result as JSON
type probe struct {
	Monitor string `json:"monitor"`
	entities.SoilStatus
	Breaches []entities.Breach `json:"breaches"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.ConfigureLogging()
	log.SetOutput(os.Stderr)

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	saturation, err := monitor.SoilSaturation(ctx)
	if err != nil {
		log.Fatalf("Failed to read soil saturation: %v", err)
	}
	temp, err := monitor.AirTemp(ctx)
	if err != nil {
		log.Fatalf("Failed to read air temperature: %v", err)
	}

	status := entities.SoilStatus{Saturation: saturation, Temp: temp}
	out := probe{
		Monitor:    monitor.Name(),
		SoilStatus: status,
		Breaches:   profile.Check(status),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("Failed to write reading: %v", err)
	}
}
