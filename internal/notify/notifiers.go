package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cleanops/internal/domain"
	"cleanops/internal/models"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

var ErrNoChannel = errors.New("no notifier for channel")

// WebhookNotifier posts messages to an HTTP mail relay.
type WebhookNotifier struct {
	client *resty.Client
	url    string
}

type webhookPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func NewWebhookNotifier(url, token string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if token != "" {
		client.SetAuthToken(token)
	}
	return &WebhookNotifier{client: client, url: url}
}

func (n *WebhookNotifier) Send(ctx context.Context, recipient, subject, body string) error {
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{To: recipient, Subject: subject, Body: body}).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// TelegramSender is the subset of the bot API used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier delivers to employees by chat id.
type TelegramNotifier struct {
	bot TelegramSender
}

func NewTelegramNotifier(bot TelegramSender) *TelegramNotifier {
	return &TelegramNotifier{bot: bot}
}

// NewTelegramBot connects to the Bot API.
func NewTelegramBot(token string, debug bool) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}

func (n *TelegramNotifier) Send(_ context.Context, recipient, subject, body string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", recipient, err)
	}
	msg := tgbotapi.NewMessage(chatID, subject+"\n\n"+body)
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// LogNotifier writes messages to the log. Used when no transport is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	n.logger.Info().Str("recipient", recipient).Str("subject", subject).Int("body_len", len(body)).Msg("notification")
	return nil
}

// Router renders outbox rows and hands them to the notifier for their channel.
type Router struct {
	channels map[string]domain.Notifier
	fallback domain.Notifier
}

func NewRouter(fallback domain.Notifier) *Router {
	return &Router{channels: make(map[string]domain.Notifier), fallback: fallback}
}

func (r *Router) Register(channel string, n domain.Notifier) {
	r.channels[channel] = n
}

func (r *Router) Deliver(ctx context.Context, n *models.Notification) error {
	subject, body, err := Render(n.Template, n.Language, n.Data)
	if err != nil {
		return err
	}
	notifier, ok := r.channels[n.Channel]
	if !ok {
		notifier = r.fallback
	}
	if notifier == nil {
		return fmt.Errorf("%w: %s", ErrNoChannel, n.Channel)
	}
	return notifier.Send(ctx, n.Recipient, subject, body)
}
