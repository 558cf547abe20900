package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/todobus/todobus/internal/config/channel"
	"github.com/todobus/todobus/internal/schema"
)

// Telegram sends a bot message to one chat. The bot is authenticated on
// first use so an unreachable API does not block startup.
type Telegram struct {
	cfg    *channel.TelegramConfig
	chatID int64

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

func NewTelegram(cfg *channel.TelegramConfig) (*Telegram, error) {
	chatID, err := parseChatID(cfg.ChatID)
	if err != nil {
		return nil, err
	}
	return &Telegram{cfg: cfg, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Notify(_ context.Context, item schema.Item) error {
	bot, err := t.client()
	if err != nil {
		return err
	}
	_, err = bot.Send(tgbotapi.NewMessage(t.chatID, text(item)))
	return err
}

func (t *Telegram) client() (*tgbotapi.BotAPI, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	endpoint := t.cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(t.cfg.Token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	t.bot = bot
	return bot, nil
}

func parseChatID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("telegram: invalid chatId %q", s)
	}
	return id, nil
}
