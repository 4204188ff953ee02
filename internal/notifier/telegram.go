package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"stretchbot/internal/alarms"
	"stretchbot/internal/domain"
	"stretchbot/internal/engine"
	"stretchbot/internal/eventbus"
)

// TelegramConfig configures the Telegram sink.
type TelegramConfig struct {
	Token      string
	ChatID     int64
	RatePerSec float64
}

// sender is the part of *tele.Bot the sink uses.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramSink posts reminder and alarm fires to one chat.
type TelegramSink struct {
	bot     sender
	chat    *tele.Chat
	limiter *rate.Limiter
}

func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: true,
		Client:  &http.Client{Timeout: 8 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegramSink(b, cfg), nil
}

func newTelegramSink(bot sender, cfg TelegramConfig) *TelegramSink {
	r := cfg.RatePerSec
	if r <= 0 {
		r = 1
	}
	burst := int(r)
	if burst < 1 {
		burst = 1
	}
	return &TelegramSink{
		bot:     bot,
		chat:    &tele.Chat{ID: cfg.ChatID},
		limiter: rate.NewLimiter(rate.Limit(r), burst),
	}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Handle(ctx context.Context, ev eventbus.Event) error {
	text := telegramText(ev)
	if text == "" {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := s.bot.Send(s.chat, text, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func telegramText(ev eventbus.Event) string {
	switch d := ev.Data.(type) {
	case engine.ReminderFired:
		return fmt.Sprintf("🧘 Time to stretch! Take a %ds break.", d.WaitSeconds)
	case alarms.Fire:
		if d.Kind == domain.KindInterval {
			return fmt.Sprintf("🔁 %s", d.Title)
		}
		return fmt.Sprintf("⏰ %s (%s)", d.Title, d.At.Format("15:04"))
	}
	return ""
}
