// Package notify delivers notification messages to external chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/smartdom/crm-api/internal/config"
	"go.uber.org/zap"
)

// ErrDisabled is returned by NewTelegramSender when the bot is not configured
var ErrDisabled = errors.New("telegram delivery is disabled")

// botAPI is the part of tgbotapi.BotAPI the sender uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender sends notification text to a Telegram chat
type TelegramSender struct {
	bot       botAPI
	publicURL string
	logger    *zap.Logger
}

// NewTelegramSender authorizes the bot token and returns a sender
func NewTelegramSender(cfg *config.Config, logger *zap.Logger) (*TelegramSender, error) {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return nil, ErrDisabled
	}

	timeout := time.Duration(cfg.Telegram.SendTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Telegram.BotToken, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))
	return newTelegramSender(bot, cfg.App.PublicURL, logger), nil
}

func newTelegramSender(bot botAPI, publicURL string, logger *zap.Logger) *TelegramSender {
	return &TelegramSender{
		bot:       bot,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// Send delivers message to chatID. link is an app-relative path and is rendered as an
// HTML anchor when a public URL is configured.
func (s *TelegramSender) Send(ctx context.Context, chatID, message, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatID, err)
	}

	msg := tgbotapi.NewMessage(id, FormatMessage(message, s.publicURL, link))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// FormatMessage escapes message for Telegram HTML mode and appends a link to the app
func FormatMessage(message, publicURL, link string) string {
	text := html.EscapeString(message)
	if publicURL == "" || link == "" {
		return text
	}
	href := strings.TrimRight(publicURL, "/") + "/" + strings.TrimLeft(link, "/")
	return fmt.Sprintf("%s\n\n<a href=\"%s\">Open</a>", text, html.EscapeString(href))
}
