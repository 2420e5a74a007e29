// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/soil-monitor/internal/repository"
	"github.com/abelzeko/soil-monitor/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryCount = 10
	maxHistoryCount     = 50
)

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot    *tgbotapi.BotAPI
	soil   *usecases.SoilUseCase
	health *usecases.HealthUseCase
}

// NewTelegramBot creates a new Telegram bot handler
func NewTelegramBot(bot *tgbotapi.BotAPI, soil *usecases.SoilUseCase, health *usecases.HealthUseCase) *TelegramBot {
	return &TelegramBot{
		bot:    bot,
		soil:   soil,
		health: health,
	}
}

// Start listens for and handles Telegram messages until ctx is cancelled
func (t *TelegramBot) Start(ctx context.Context) {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			log.Println("Bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}
			log.Printf("Received message from %s (ID: %d): %s",
				userName(update.Message), update.Message.Chat.ID, update.Message.Text)
			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage replies to a single Telegram message
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	msg := tgbotapi.NewMessage(message.Chat.ID, t.reply(ctx, message))

	log.Printf("Sending response to user %s", userName(message))
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// reply builds the response text for a message
func (t *TelegramBot) reply(ctx context.Context, message *tgbotapi.Message) string {
	if !message.IsCommand() {
		text, err := t.soil.HandleNaturalLanguageQuery(ctx, message.Text)
		if err != nil {
			log.Printf("Error handling free-text message: %v", err)
			return "I don't understand. Use /help to see available commands."
		}
		return text
	}

	switch message.Command() {
	case "start":
		return "Welcome to the Soil Monitor bot! Use /status to check on your plant or /help for more information."

	case "help":
		return "Available commands:\n" +
			"/start - Start the bot\n" +
			"/status - Read the soil monitor now\n" +
			"/latest - Show the last stored reading\n" +
			"/history [count] - Show recent readings\n" +
			"/health - Show service health\n" +
			"/help - Show this help message"

	case "status":
		status, err := t.soil.GetSoilStatus(ctx)
		if err != nil {
			log.Printf("Error reading soil monitor: %v", err)
			if usecases.IsUnavailable(err) {
				return "The soil monitor is not available right now."
			}
			return "Error reading the soil monitor. Please try again later."
		}
		return t.soil.FormatSoilStatus(status)

	case "latest":
		reading, err := t.soil.GetLatestReading()
		if errors.Is(err, repository.ErrNoReadings) {
			return "No readings stored yet."
		}
		if err != nil {
			log.Printf("Error fetching latest reading: %v", err)
			return "Error fetching readings. Please try again later."
		}
		return t.soil.FormatSoilInfo(reading)

	case "history":
		count := defaultHistoryCount
		if args := strings.TrimSpace(message.CommandArguments()); args != "" {
			n, err := strconv.Atoi(args)
			if err != nil || n <= 0 {
				return "Please give a positive number of readings. Example: /history 5"
			}
			count = min(n, maxHistoryCount)
		}
		readings, err := t.soil.GetHistory(time.Time{}, count)
		if err != nil {
			log.Printf("Error fetching history: %v", err)
			return "Error fetching readings. Please try again later."
		}
		return t.soil.FormatHistory(readings)

	case "health":
		h := t.health.GetHealth()
		return fmt.Sprintf("✅ Up for %s\n📟 Soil monitor: %s",
			(time.Duration(h.Uptime) * time.Second).String(), h.SoilMonitor)

	default:
		log.Printf("Received unknown command /%s from user %s", message.Command(), userName(message))
		return "Unknown command. Use /help to see available commands."
	}
}

func userName(message *tgbotapi.Message) string {
	if message.From == nil {
		return "unknown"
	}
	return message.From.UserName
}
