package integration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// MessageSender is the part of the Telegram API used to push messages
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter pushes abnormal readings to a Telegram chat
type TelegramAlerter struct {
	sender  MessageSender
	chatID  int64
	limiter *rate.Limiter
}

// NewTelegramAlerter creates an alerter sending at most one message per minInterval
func NewTelegramAlerter(sender MessageSender, chatID int64, minInterval time.Duration) *TelegramAlerter {
	return &TelegramAlerter{
		sender:  sender,
		chatID:  chatID,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Notify sends an alert if the reading crossed any limit
func (a *TelegramAlerter) Notify(ctx context.Context, reading entities.Reading) error {
	if !reading.Abnormal() {
		return nil
	}
	if !a.limiter.Allow() {
		log.Printf("Dropping alert for reading at %s: rate limited", reading.Timestamp.Format(time.RFC3339))
		return nil
	}

	msg := tgbotapi.NewMessage(a.chatID, FormatAlert(reading))
	if _, err := a.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send alert to chat %d: %w", a.chatID, err)
	}
	log.Printf("Sent alert with %d breaches to chat %d", len(reading.Breaches), a.chatID)
	return nil
}

// FormatAlert renders an abnormal reading for a chat message
func FormatAlert(reading entities.Reading) string {
	var b strings.Builder
	b.WriteString("⚠️ Soil conditions need attention\n\n")
	for _, breach := range reading.Breaches {
		b.WriteString(fmt.Sprintf("• %s\n", describeBreach(breach)))
	}
	b.WriteString(fmt.Sprintf("\n💧 Saturation: %d%%\n", reading.Saturation))
	b.WriteString(fmt.Sprintf("🌡️ Air temperature: %.1f °C\n", reading.Temp))
	b.WriteString(fmt.Sprintf("🕒 %s", reading.Timestamp.Format("2006-01-02 15:04:05 MST")))
	return b.String()
}

func describeBreach(b entities.Breach) string {
	switch b.Kind {
	case entities.BreachSaturationLow:
		return fmt.Sprintf("Soil too dry: %.0f%% (minimum %.0f%%)", b.Value, b.Limit)
	case entities.BreachSaturationHigh:
		return fmt.Sprintf("Soil too wet: %.0f%% (maximum %.0f%%)", b.Value, b.Limit)
	case entities.BreachTempLow:
		return fmt.Sprintf("Too cold: %.1f °C (minimum %.1f °C)", b.Value, b.Limit)
	case entities.BreachTempHigh:
		return fmt.Sprintf("Too hot: %.1f °C (maximum %.1f °C)", b.Value, b.Limit)
	}
	return b.String()
}
