package api

import (
	"context"
	"testing"
	"time"

	"github.com/abelzeko/soil-monitor/internal/entities"
	"github.com/abelzeko/soil-monitor/internal/integration"
	"github.com/abelzeko/soil-monitor/internal/integration/openai"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInterpreter struct {
	resp *openai.AgentResponse
}

func (s *stubInterpreter) InterpretUserQuery(context.Context, string, string) (*openai.AgentResponse, error) {
	return s.resp, nil
}

func command(text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 42},
		From: &tgbotapi.User{UserName: "gardener"},
	}
	if len(text) > 0 && text[0] == '/' {
		end := len(text)
		for i, r := range text {
			if r == ' ' {
				end = i
				break
			}
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return msg
}

func newTestBot(t *testing.T, monitor integration.SoilMonitor) (*TelegramBot, *testEnv) {
	t.Helper()
	env := newTestEnv(t, monitor)
	return NewTelegramBot(nil, env.soil, env.server.health), env
}

func TestBotStaticCommands(t *testing.T) {
	bot, _ := newTestBot(t, &stubMonitor{})
	ctx := context.Background()

	assert.Contains(t, bot.reply(ctx, command("/start")), "Welcome to the Soil Monitor bot")
	assert.Contains(t, bot.reply(ctx, command("/help")), "/history [count]")
	assert.Contains(t, bot.reply(ctx, command("/water")), "Unknown command")
}

func TestBotStatus(t *testing.T) {
	bot, _ := newTestBot(t, &stubMonitor{saturation: 12, temp: 22.5})

	reply := bot.reply(context.Background(), command("/status"))
	assert.Contains(t, reply, "Saturation: 12%")
	assert.Contains(t, reply, "22.5 °C")
	assert.Contains(t, reply, "saturation_low")
}

func TestBotStatusUnavailable(t *testing.T) {
	bot, _ := newTestBot(t, &stubMonitor{err: integration.ErrMonitorUnavailable})

	assert.Equal(t, "The soil monitor is not available right now.", bot.reply(context.Background(), command("/status")))
}

func TestBotLatestAndHistory(t *testing.T) {
	bot, env := newTestBot(t, &stubMonitor{})
	ctx := context.Background()

	assert.Equal(t, "No readings stored yet.", bot.reply(ctx, command("/latest")))
	assert.Equal(t, "No readings stored yet.", bot.reply(ctx, command("/history")))

	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	var readings []entities.Reading
	for i := range 3 {
		readings = append(readings, entities.Reading{
			Monitor:    "Mocked Soil Monitor",
			Saturation: 40 + i,
			Temp:       20,
			Timestamp:  base.Add(time.Duration(i) * time.Hour),
		})
	}
	require.NoError(t, env.repo.SaveReadings(readings))

	assert.Contains(t, bot.reply(ctx, command("/latest")), "Saturation: 42%")
	assert.Contains(t, bot.reply(ctx, command("/history")), "Last 3 readings")
	assert.Contains(t, bot.reply(ctx, command("/history 2")), "Last 2 readings")
	assert.Contains(t, bot.reply(ctx, command("/history zero")), "positive number")
	assert.Contains(t, bot.reply(ctx, command("/history -4")), "positive number")
}

func TestBotHealth(t *testing.T) {
	bot, _ := newTestBot(t, &stubMonitor{})

	reply := bot.reply(context.Background(), command("/health"))
	assert.Contains(t, reply, "Up for")
	assert.Contains(t, reply, "Mocked Soil Monitor")
}

func TestBotFreeText(t *testing.T) {
	bot, env := newTestBot(t, &stubMonitor{saturation: 55, temp: 19})
	ctx := context.Background()

	assert.Contains(t, bot.reply(ctx, command("how is my fern?")), "/help")

	env.soil.SetInterpreter(&stubInterpreter{resp: &openai.AgentResponse{
		CommandName: openai.CommandGetSoilStatus,
		UserMessage: "Here is your fern:",
	}})
	reply := bot.reply(ctx, command("how is my fern?"))
	assert.Contains(t, reply, "Here is your fern:")
	assert.Contains(t, reply, "Saturation: 55%")
}

func TestUserName(t *testing.T) {
	assert.Equal(t, "gardener", userName(command("/start")))
	assert.Equal(t, "unknown", userName(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}))
}
