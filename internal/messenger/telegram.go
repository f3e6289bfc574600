// Package messenger delivers notification text to chat recipients.
package messenger

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type Format string

const (
	FormatPlain Format = ""
	FormatHTML  Format = "html"
)

// Message is one outbound chat message.
type Message struct {
	ChatID int64
	Text   string
	Format Format
}

// SendResult carries the provider-assigned message id.
type SendResult struct {
	MessageID string
}

// Telegram sends messages through the Bot API.
type Telegram struct {
	bot     *tgbotapi.BotAPI
	timeout time.Duration
	logger  zerolog.Logger
}

type TelegramOptions struct {
	Token string
	// APIEndpoint overrides the Bot API URL format, e.g. for a local Bot API server.
	APIEndpoint string
	Timeout     time.Duration
}

// NewTelegram validates the token with getMe before returning.
func NewTelegram(opts TelegramOptions, logger zerolog.Logger) (*Telegram, error) {
	token := strings.TrimSpace(opts.Token)
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	endpoint := strings.TrimSpace(opts.APIEndpoint)
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	logger.Info().
		Str("bot_username", bot.Self.UserName).
		Msg("telegram bot authorized")

	return &Telegram{
		bot:     bot,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Send delivers one message. The Bot API client is not context aware, so a
// cancelled ctx only prevents the call from starting.
func (t *Telegram) Send(ctx context.Context, msg Message) (SendResult, error) {
	if t == nil || t.bot == nil {
		return SendResult{}, fmt.Errorf("telegram sender is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return SendResult{}, err
	}
	if strings.TrimSpace(msg.Text) == "" {
		return SendResult{}, fmt.Errorf("message text is required")
	}

	out := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.Format == FormatHTML {
		out.ParseMode = tgbotapi.ModeHTML
	}
	out.DisableWebPagePreview = true

	sent, err := t.bot.Send(out)
	if err != nil {
		return SendResult{}, fmt.Errorf("telegram sendMessage chat_id=%d: %w", msg.ChatID, err)
	}
	return SendResult{MessageID: strconv.Itoa(sent.MessageID)}, nil
}

// Reply answers a bot command in plain text.
func (t *Telegram) Reply(ctx context.Context, chatID int64, text string) error {
	_, err := t.Send(ctx, Message{ChatID: chatID, Text: text})
	return err
}

func (t *Telegram) Username() string {
	if t == nil || t.bot == nil {
		return ""
	}
	return t.bot.Self.UserName
}
