// Package usecases contains the application's business logic
package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/abelzeko/soil-monitor/internal/integration"
	"github.com/abelzeko/soil-monitor/internal/integration/openai"
	"github.com/abelzeko/soil-monitor/internal/metrics"
	"github.com/abelzeko/soil-monitor/internal/repository"
	log "github.com/sirupsen/logrus"
)

// History limits
const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Notifier receives every sampled reading
type Notifier interface {
	Notify(ctx context.Context, reading entities.Reading) error
}

// SoilUseCase handles business logic related to soil readings
type SoilUseCase struct {
	monitor     integration.SoilMonitor
	repo        repository.ReadingRepository
	profile     entities.PlantProfile
	notifiers   []Notifier
	interpreter openai.OpenAIService
	now         func() time.Time
}

// NewSoilUseCase creates a new soil use case
func NewSoilUseCase(monitor integration.SoilMonitor, repo repository.ReadingRepository, profile entities.PlantProfile) *SoilUseCase {
	return &SoilUseCase{
		monitor: monitor,
		repo:    repo,
		profile: profile,
		now:     time.Now,
	}
}

// AddNotifier registers a receiver for sampled readings. Call before sampling starts.
func (uc *SoilUseCase) AddNotifier(n Notifier) {
	uc.notifiers = append(uc.notifiers, n)
}

// SetInterpreter enables free-text queries
func (uc *SoilUseCase) SetInterpreter(interpreter openai.OpenAIService) {
	uc.interpreter = interpreter
}

// Profile returns the active plant profile
func (uc *SoilUseCase) Profile() entities.PlantProfile {
	return uc.profile
}

// MonitorName returns the name of the soil monitor in use
func (uc *SoilUseCase) MonitorName() string {
	return uc.monitor.Name()
}

// GetSoilStatus reads the soil monitor live
func (uc *SoilUseCase) GetSoilStatus(ctx context.Context) (entities.SoilStatus, error) {
	saturation, err := uc.monitor.SoilSaturation(ctx)
	if err != nil {
		return entities.SoilStatus{}, fmt.Errorf("failed to read soil saturation: %w", err)
	}
	temp, err := uc.monitor.AirTemp(ctx)
	if err != nil {
		return entities.SoilStatus{}, fmt.Errorf("failed to read air temperature: %w", err)
	}
	metrics.ObserveSoil(saturation, temp)
	return entities.SoilStatus{Saturation: saturation, Temp: temp}, nil
}

// SampleSoil takes a reading, checks it against the plant profile, stores it and notifies subscribers
func (uc *SoilUseCase) SampleSoil(ctx context.Context) (entities.Reading, error) {
	status, err := uc.GetSoilStatus(ctx)
	if err != nil {
		metrics.RecordSample(err)
		return entities.Reading{}, err
	}

	reading := entities.Reading{
		Monitor:    uc.monitor.Name(),
		Saturation: status.Saturation,
		Temp:       status.Temp,
		Timestamp:  uc.now(),
		Breaches:   uc.profile.Check(status),
	}

	batch := []entities.Reading{reading}
	if err := uc.repo.SaveReadings(batch); err != nil {
		metrics.RecordSample(err)
		return entities.Reading{}, fmt.Errorf("failed to save reading: %w", err)
	}
	// Report the reading as stored so ids and timestamps match the history endpoints.
	reading = batch[0]

	kinds := make([]string, 0, len(reading.Breaches))
	for _, b := range reading.Breaches {
		kinds = append(kinds, string(b.Kind))
	}
	metrics.RecordSample(nil, kinds...)

	if reading.Abnormal() {
		log.Printf("Reading crossed %d limits of profile %s: %s", len(kinds), uc.profile.Name, strings.Join(kinds, ", "))
	} else {
		log.Debugf("Sampled saturation=%d%% temp=%.1f", reading.Saturation, reading.Temp)
	}

	for _, n := range uc.notifiers {
		if err := n.Notify(ctx, reading); err != nil {
			log.Printf("Warning: failed to notify about reading: %v", err)
		}
	}
	return reading, nil
}

// GetLatestReading returns the most recent stored reading
func (uc *SoilUseCase) GetLatestReading() (entities.Reading, error) {
	return uc.repo.GetLatestReading()
}

// GetHistory returns stored readings since the given time, newest first
func (uc *SoilUseCase) GetHistory(since time.Time, limit int) ([]entities.Reading, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	readings, err := uc.repo.GetReadings(since, limit)
	if err != nil {
		return nil, err
	}
	if readings == nil {
		readings = []entities.Reading{}
	}
	return readings, nil
}

// GetLastUpdateTime returns when the last reading was stored
func (uc *SoilUseCase) GetLastUpdateTime() (time.Time, error) {
	return uc.repo.GetLastUpdateTime()
}

// CountAbnormal counts readings that crossed a limit since the given time
func (uc *SoilUseCase) CountAbnormal(since time.Time) (int, error) {
	return uc.repo.CountBreaches(since)
}

// PruneReadings deletes readings older than retention. A zero retention keeps everything.
func (uc *SoilUseCase) PruneReadings(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := uc.now().Add(-retention)
	removed, err := uc.repo.PruneBefore(cutoff)
	if err != nil {
		return 0, err
	}
	log.Printf("Pruned %d readings older than %s", removed, cutoff.Format(time.RFC3339))
	return removed, nil
}

// HandleNaturalLanguageQuery interprets a user's free-text query and returns a reply
func (uc *SoilUseCase) HandleNaturalLanguageQuery(ctx context.Context, query string) (string, error) {
	if uc.interpreter == nil {
		return "I don't understand. Use /help to see available commands.", nil
	}

	log.Printf("Interpreting natural language query: %s", query)
	agentResp, err := uc.interpreter.InterpretUserQuery(ctx, query, uc.profile.Name)
	if err != nil {
		log.Printf("Error interpreting user query via OpenAI: %v", err)
		return "Sorry, I'm having trouble understanding right now. Please try again later or use /help.", nil
	}

	log.Printf("Agent response: Command='%s', Message='%s'", agentResp.CommandName, agentResp.UserMessage)

	switch agentResp.CommandName {
	case openai.CommandGetSoilStatus:
		status, err := uc.GetSoilStatus(ctx)
		if err != nil {
			log.Printf("Error reading soil after agent interpretation: %v", err)
			return "Sorry, I couldn't read the soil monitor right now.", nil
		}
		return joinMessages(agentResp.UserMessage, uc.FormatSoilStatus(status)), nil
	case openai.CommandGetHistory:
		readings, err := uc.GetHistory(uc.now().Add(-24*time.Hour), 10)
		if err != nil {
			log.Printf("Error fetching history after agent interpretation: %v", err)
			return "Sorry, I couldn't fetch the recent readings right now.", nil
		}
		return joinMessages(agentResp.UserMessage, uc.FormatHistory(readings)), nil
	case openai.CommandGeneralQuery:
		return agentResp.UserMessage, nil
	default:
		log.Printf("Agent returned unexpected command: %s", agentResp.CommandName)
		return "I'm not sure how to respond to that. You can use /help for commands.", nil
	}
}

// FormatSoilStatus formats a live reading for display
func (uc *SoilUseCase) FormatSoilStatus(status entities.SoilStatus) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("🌱 Plant profile: %s\n", uc.profile.Name))
	result.WriteString(fmt.Sprintf("💧 Saturation: %d%%\n", status.Saturation))
	result.WriteString(fmt.Sprintf("🌡️ Air temperature: %.1f °C", status.Temp))
	if breaches := uc.profile.Check(status); len(breaches) > 0 {
		result.WriteString("\n\n⚠️ Outside the comfortable range:")
		for _, b := range breaches {
			result.WriteString("\n• " + string(b.Kind))
		}
	}
	return result.String()
}

// FormatSoilInfo formats a stored reading for display
func (uc *SoilUseCase) FormatSoilInfo(reading entities.Reading) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("📍 Monitor: %s\n", reading.Monitor))
	result.WriteString(fmt.Sprintf("💧 Saturation: %d%%\n", reading.Saturation))
	result.WriteString(fmt.Sprintf("🌡️ Air temperature: %.1f °C\n", reading.Temp))
	if reading.Abnormal() {
		kinds := make([]string, 0, len(reading.Breaches))
		for _, b := range reading.Breaches {
			kinds = append(kinds, string(b.Kind))
		}
		result.WriteString(fmt.Sprintf("⚠️ %s\n", strings.Join(kinds, ", ")))
	}
	result.WriteString(fmt.Sprintf("🕒 Taken: %s", reading.Timestamp.Local().Format("2006-01-02 15:04:05 MST")))
	return result.String()
}

// FormatHistory formats a list of stored readings for display
func (uc *SoilUseCase) FormatHistory(readings []entities.Reading) string {
	if len(readings) == 0 {
		return "No readings stored yet."
	}
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Last %d readings:\n", len(readings)))
	for _, r := range readings {
		marker := ""
		if r.Abnormal() {
			marker = " ⚠️"
		}
		result.WriteString(fmt.Sprintf("\n%s  💧 %d%%  🌡️ %.1f °C%s",
			r.Timestamp.Local().Format("01-02 15:04"), r.Saturation, r.Temp, marker))
	}
	return result.String()
}

// IsUnavailable reports whether err means the soil monitor hardware is not usable
func IsUnavailable(err error) bool {
	return errors.Is(err, integration.ErrMonitorUnavailable)
}

func joinMessages(first, second string) string {
	if first == "" {
		return second
	}
	return first + "\n\n" + second
}
