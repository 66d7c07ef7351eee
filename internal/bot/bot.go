// Package bot is the Telegram front end for field employees. Employees share
// their live location, list the day's jobs, start and finish work and tick
// checklist items from the chat.
package bot

import (
	"context"
	"errors"
	"time"

	"cleanops/internal/database"
	"cleanops/internal/models"
	"cleanops/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TelegramAPI is the subset of *tgbotapi.BotAPI the bot needs.
type TelegramAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	StopReceivingUpdates()
}

type EmployeeDirectory interface {
	GetEmployeeByChatID(ctx context.Context, chatID int64) (*models.Employee, error)
}

// FieldService is the part of the booking lifecycle an employee drives.
type FieldService interface {
	ListEmployeeSchedule(ctx context.Context, actor models.Actor, employeeID int64, date string) ([]*models.Booking, error)
	StartWork(ctx context.Context, actor models.Actor, bookingID int64) (*models.Booking, error)
	CompleteWork(ctx context.Context, actor models.Actor, bookingID int64) (*service.CompletionResult, error)
	GetChecklist(ctx context.Context, actor models.Actor, bookingID int64) (*service.ChecklistView, error)
	ToggleChecklistItem(ctx context.Context, actor models.Actor, bookingID, completionID int64, completed bool) (*models.ChecklistCompletion, error)
}

type PingRecorder interface {
	RecordPing(ctx context.Context, employeeID int64, loc models.Location) error
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	RateLimit     int
	RateWindow    time.Duration
	UpdateTimeout time.Duration
}

type Bot struct {
	api       TelegramAPI
	employees EmployeeDirectory
	field     FieldService
	pings     PingRecorder
	limiter   RateLimiter
	opts      Options
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewBot(api TelegramAPI, employees EmployeeDirectory, field FieldService, pings PingRecorder, limiter RateLimiter, opts Options, logger *zerolog.Logger) *Bot {
	if opts.UpdateTimeout <= 0 {
		opts.UpdateTimeout = 30 * time.Second
	}
	if opts.RateLimit > 0 && opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Bot{
		api:       api,
		employees: employees,
		field:     field,
		pings:     pings,
		limiter:   limiter,
		opts:      opts,
		logger:    logger,
		now:       time.Now,
	}
}

// Start consumes updates until ctx is done or the channel closes.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info().Msg("telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("telegram bot stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

// Stop stops receiving Telegram updates.
func (b *Bot) Stop() {
	if b == nil || b.api == nil {
		return
	}
	b.api.StopReceivingUpdates()
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, b.opts.UpdateTimeout)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		chatID := updateChatID(update)
		if chatID == 0 {
			return
		}

		emp, err := b.employeeByChat(updateCtx, chatID)
		if err != nil {
			l.Error().Err(err).Int64("chat_id", chatID).Msg("employee lookup failed")
			return
		}
		if emp == nil {
			if update.Message != nil && update.Message.IsCommand() {
				b.sendMessage(chatID, text(models.LanguageEN, msgNotRegistered, chatID))
			}
			return
		}

		if msg := locationMessage(update); msg != nil {
			b.handleLocation(updateCtx, emp, msg)
			return
		}

		if !b.allow(updateCtx, emp) {
			b.sendMessage(chatID, text(emp.Language, msgSlowDown))
			return
		}

		switch {
		case update.CallbackQuery != nil:
			b.handleCallback(updateCtx, emp, update.CallbackQuery)
		case update.Message != nil && update.Message.IsCommand():
			b.handleCommand(updateCtx, emp, update.Message)
		case update.Message != nil:
			b.sendMessage(chatID, text(emp.Language, msgHelp))
		}
	})
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) allow(ctx context.Context, emp *models.Employee) bool {
	if b.limiter == nil || b.opts.RateLimit <= 0 {
		return true
	}
	allowed, err := b.limiter.CheckRateLimit(ctx, "bot:"+itoa(emp.ID), b.opts.RateLimit, b.opts.RateWindow)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("employee_id", emp.ID).Msg("rate limit check failed")
		return true
	}
	return allowed
}

func (b *Bot) employeeByChat(ctx context.Context, chatID int64) (*models.Employee, error) {
	e, err := b.employees.GetEmployeeByChatID(ctx, chatID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return e, err
}

func updateChatID(update tgbotapi.Update) int64 {
	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.EditedMessage != nil:
		return update.EditedMessage.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil:
		return update.CallbackQuery.Message.Chat.ID
	}
	return 0
}

// locationMessage returns the message carrying a location share. Live
// location updates arrive as edits of the original message.
func locationMessage(update tgbotapi.Update) *tgbotapi.Message {
	if update.Message != nil && update.Message.Location != nil {
		return update.Message
	}
	if update.EditedMessage != nil && update.EditedMessage.Location != nil {
		return update.EditedMessage
	}
	return nil
}

func actorFor(emp *models.Employee) models.Actor {
	return models.Actor{ID: emp.ID, Role: models.RoleEmployee}
}
