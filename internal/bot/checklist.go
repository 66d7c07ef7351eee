package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"cleanops/internal/models"
	"cleanops/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const toggleCallbackPrefix = "ck:"

func (b *Bot) sendChecklist(ctx context.Context, emp *models.Employee, chatID, bookingID int64) {
	view, err := b.field.GetChecklist(ctx, actorFor(emp), bookingID)
	if err != nil {
		b.replyError(ctx, emp, chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, checklistText(emp.Language, bookingID, view))
	if len(view.Items) > 0 {
		msg.ReplyMarkup = checklistKeyboard(emp.Language, bookingID, view)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}

func (b *Bot) handleCallback(ctx context.Context, emp *models.Employee, cb *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		zerolog.Ctx(ctx).Debug().Err(err).Msg("callback ack failed")
	}

	bookingID, completionID, completed, ok := parseToggle(cb.Data)
	if !ok || cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	actor := actorFor(emp)
	if _, err := b.field.ToggleChecklistItem(ctx, actor, bookingID, completionID, completed); err != nil {
		b.replyError(ctx, emp, chatID, err)
		return
	}
	view, err := b.field.GetChecklist(ctx, actor, bookingID)
	if err != nil {
		b.replyError(ctx, emp, chatID, err)
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, cb.Message.MessageID,
		checklistText(emp.Language, bookingID, view), checklistKeyboard(emp.Language, bookingID, view))
	if _, err := b.api.Send(edit); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("checklist refresh failed")
	}
}

func checklistText(lang string, bookingID int64, view *service.ChecklistView) string {
	p := view.Progress
	return text(lang, msgChecklistHeader, bookingID, p.Completed, p.Total, p.Percentage)
}

func checklistKeyboard(lang string, bookingID int64, view *service.ChecklistView) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(view.Items))
	for _, item := range view.Items {
		label := "⬜ " + item.Text(lang)
		if item.Completed {
			label = "✅ " + item.Text(lang)
		}
		if item.Required {
			label += " *"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, toggleData(bookingID, item.ID, !item.Completed)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func toggleData(bookingID, completionID int64, completed bool) string {
	state := "0"
	if completed {
		state = "1"
	}
	return fmt.Sprintf("%s%d:%d:%s", toggleCallbackPrefix, bookingID, completionID, state)
}

func parseToggle(data string) (bookingID, completionID int64, completed, ok bool) {
	if !strings.HasPrefix(data, toggleCallbackPrefix) {
		return 0, 0, false, false
	}
	parts := strings.Split(strings.TrimPrefix(data, toggleCallbackPrefix), ":")
	if len(parts) != 3 {
		return 0, 0, false, false
	}
	var err error
	if bookingID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, false, false
	}
	if completionID, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
		return 0, 0, false, false
	}
	switch parts[2] {
	case "1":
		completed = true
	case "0":
	default:
		return 0, 0, false, false
	}
	return bookingID, completionID, completed, true
}
