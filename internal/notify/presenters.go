package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"timekeeper/internal/config"
	"timekeeper/internal/domain"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// LogPresenter writes presented notifications to the service log.
type LogPresenter struct {
	Logger *slog.Logger
}

// Name returns presenter key.
func (p LogPresenter) Name() string {
	return "log"
}

// Present logs head notification.
func (p LogPresenter) Present(_ context.Context, n domain.Notification) error {
	p.logger().Info("notification presented",
		"id", n.ID,
		"kind", n.Kind,
		"title", n.Title,
		"message", n.Message,
		"shape", n.Options.Shape,
		"blocking", n.Options.Blocking,
		"theme", n.Options.Theme,
	)
	return nil
}

// Close logs acknowledgment.
func (p LogPresenter) Close(_ context.Context, n domain.Notification, ack domain.Ack) error {
	p.logger().Debug("notification acknowledged", "id", n.ID, "choice", ack.Choice)
	return nil
}

func (p LogPresenter) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// TelegramPresenter mirrors presented notifications into one Telegram chat.
// Params: bot token, chat id, and API base URL.
// Returns: presenter that replies to its own message when the notification closes.
type TelegramPresenter struct {
	client  *tgbot.Bot
	chatID  any
	initErr error

	mu       sync.Mutex
	messages map[string]int
}

// NewTelegramPresenter creates Telegram presenter with bot client.
// Params: Telegram presenter config.
// Returns: initialized presenter; config errors surface on first send.
func NewTelegramPresenter(cfg config.TelegramPresenter) *TelegramPresenter {
	presenter := &TelegramPresenter{
		chatID:   normalizeChatID(cfg.ChatID),
		messages: make(map[string]int),
	}

	if strings.TrimSpace(cfg.BotToken) == "" {
		presenter.initErr = errors.New("telegram bot token is required")
		return presenter
	}
	if strings.TrimSpace(cfg.ChatID) == "" {
		presenter.initErr = errors.New("telegram chat_id is required")
		return presenter
	}

	options := []tgbot.Option{
		tgbot.WithSkipGetMe(),
		tgbot.WithServerURL(strings.TrimRight(cfg.APIBase, "/")),
	}
	botClient, err := tgbot.New(cfg.BotToken, options...)
	if err != nil {
		presenter.initErr = fmt.Errorf("init telegram bot: %w", err)
		return presenter
	}
	presenter.client = botClient
	return presenter
}

// Name returns presenter key.
func (p *TelegramPresenter) Name() string {
	return "telegram"
}

// Present posts notification title and message.
// Params: context and notification payload.
// Returns: transport or API error.
func (p *TelegramPresenter) Present(ctx context.Context, n domain.Notification) error {
	text := "<b>" + html.EscapeString(n.Title) + "</b>\n" + html.EscapeString(n.Message)
	sent, err := p.send(ctx, text, 0)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.messages[n.ID] = sent
	p.mu.Unlock()
	return nil
}

// Close replies to the presented message with the chosen control.
func (p *TelegramPresenter) Close(ctx context.Context, n domain.Notification, ack domain.Ack) error {
	p.mu.Lock()
	replyTo, ok := p.messages[n.ID]
	delete(p.messages, n.ID)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	_, err := p.send(ctx, "✅ "+html.EscapeString(closeLabel(n, ack.Choice)), replyTo)
	return err
}

func (p *TelegramPresenter) send(ctx context.Context, text string, replyTo int) (int, error) {
	if p.initErr != nil {
		return 0, p.initErr
	}
	if p.client == nil {
		return 0, errors.New("telegram client is not initialized")
	}

	request := &tgbot.SendMessageParams{
		ChatID:    p.chatID,
		Text:      text,
		ParseMode: tgmodels.ParseModeHTML,
	}
	if replyTo > 0 {
		request.ReplyParameters = &tgmodels.ReplyParameters{MessageID: replyTo}
	}

	sent, err := p.client.SendMessage(ctx, request)
	if err != nil {
		return 0, fmt.Errorf("telegram send: %w", err)
	}
	if sent == nil || sent.ID <= 0 {
		return 0, errors.New("telegram send returned empty message id")
	}
	return sent.ID, nil
}

func closeLabel(n domain.Notification, choice domain.Choice) string {
	switch choice {
	case domain.ChoiceConfirm:
		return n.Options.ConfirmLabel
	case domain.ChoiceCancel:
		return n.Options.CancelLabel
	default:
		return "Dismissed"
	}
}

// normalizeChatID converts numeric chat IDs to int64 and keeps non-numeric IDs as string.
func normalizeChatID(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if numeric, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return numeric
	}
	return trimmed
}
