package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"

	"horse.fit/portalerts/internal/db"
)

const replyTimeout = 10 * time.Second

const commandList = "/status - Check connection status\n" +
	"/settings - View notification settings\n" +
	"/help - Show this message"

const notLinkedText = "Not connected. Please connect from the PortAlerts app."

func (s *Server) handleTelegramWebhook(c echo.Context) error {
	if s.opts.WebhookSecret != "" {
		provided := c.Request().Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.opts.WebhookSecret)) != 1 {
			return failUnauthorized(c)
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(c.Request().Body).Decode(&update); err != nil {
		return fail(c, http.StatusBadRequest, "Invalid update payload", nil)
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return success(c, map[string]any{"handled": false})
	}
	command := commandName(msg)
	if command == "" {
		return success(c, map[string]any{"handled": false})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), replyTimeout)
	defer cancel()

	text, err := s.commandReply(ctx, command, msg.Chat.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("command", command).Int64("chat_id", msg.Chat.ID).Msg("bot command failed")
		return internalError(c, "Failed to handle command")
	}
	if text == "" {
		return success(c, map[string]any{"handled": false})
	}

	if s.replier == nil {
		s.logger.Warn().Str("command", command).Msg("bot command received without a configured bot token")
		return success(c, map[string]any{"handled": false})
	}
	if err := s.replier.Reply(ctx, msg.Chat.ID, text); err != nil {
		// Telegram retries non-2xx webhook responses, so a failed reply is only logged.
		s.logger.Error().Err(err).Str("command", command).Int64("chat_id", msg.Chat.ID).Msg("bot reply failed")
	}
	return success(c, map[string]any{"handled": true, "command": command})
}

// commandName returns the lower-cased command without the leading slash or @bot suffix.
func commandName(msg *tgbotapi.Message) string {
	if msg.IsCommand() {
		return strings.ToLower(msg.Command())
	}
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name)
}

func (s *Server) commandReply(ctx context.Context, command string, chatID int64) (string, error) {
	switch command {
	case "start":
		return "Welcome to PortAlerts!\n\n" +
			"To connect this bot to your account, open the PortAlerts app, " +
			"choose \"Connect Telegram\" and follow the instructions.\n\n" +
			"Available commands:\n" + commandList, nil
	case "help":
		return "PortAlerts Bot\n\n" +
			"I send you important crypto news and updates based on AI analysis.\n\n" +
			"Commands:\n" + commandList, nil
	case "status", "settings":
		sub, err := s.store.GetSubscriberByChatID(ctx, chatID)
		if err != nil {
			if db.IsNoRows(err) {
				return notLinkedText, nil
			}
			return "", fmt.Errorf("lookup subscriber chat_id=%d: %w", chatID, err)
		}
		if command == "status" {
			return statusText(sub), nil
		}
		return settingsText(sub), nil
	default:
		return "", nil
	}
}

func statusText(sub *db.SubscriberStatus) string {
	username := "User"
	if sub.TelegramUsername != nil && strings.TrimSpace(*sub.TelegramUsername) != "" {
		username = strings.TrimSpace(*sub.TelegramUsername)
	}
	state := "active"
	if !sub.Active {
		state = "paused"
	}
	return fmt.Sprintf(
		"Connection Status:\n\nConnected as @%s\nAlerts: %s\nMonitoring %d projects\nNotification threshold: %d/10",
		username, state, sub.ActiveSubscriptions, sub.DefaultThreshold,
	)
}

func settingsText(sub *db.SubscriberStatus) string {
	return fmt.Sprintf(
		"Notification Settings:\n\nNotification threshold: %d/10\nOnly receive alerts for posts with importance >= %d\n\nUpdate settings in the PortAlerts app.",
		sub.DefaultThreshold, sub.DefaultThreshold,
	)
}
