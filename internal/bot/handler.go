package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cleanops/internal/location"
	"cleanops/internal/models"
	"cleanops/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleCommand(ctx context.Context, emp *models.Employee, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "help":
		b.sendMessage(chatID, text(emp.Language, msgWelcome, emp.Name)+"\n\n"+text(emp.Language, msgHelp))
	case "today":
		b.handleToday(ctx, emp, chatID, args)
	case "begin":
		if id, ok := b.bookingArg(emp, chatID, args); ok {
			b.handleBegin(ctx, emp, chatID, id)
		}
	case "done":
		if id, ok := b.bookingArg(emp, chatID, args); ok {
			b.handleDone(ctx, emp, chatID, id)
		}
	case "checklist":
		if id, ok := b.bookingArg(emp, chatID, args); ok {
			b.sendChecklist(ctx, emp, chatID, id)
		}
	default:
		b.sendMessage(chatID, text(emp.Language, msgHelp))
	}
}

func (b *Bot) bookingArg(emp *models.Employee, chatID int64, args string) (int64, bool) {
	id, err := strconv.ParseInt(args, 10, 64)
	if err != nil || id <= 0 {
		b.sendMessage(chatID, text(emp.Language, msgNeedBookingID))
		return 0, false
	}
	return id, true
}

func (b *Bot) handleToday(ctx context.Context, emp *models.Employee, chatID int64, date string) {
	if date == "" {
		date = b.now().Format(models.DateLayout)
	}
	bookings, err := b.field.ListEmployeeSchedule(ctx, actorFor(emp), emp.ID, date)
	if err != nil {
		b.replyError(ctx, emp, chatID, err)
		return
	}
	if len(bookings) == 0 {
		b.sendMessage(chatID, text(emp.Language, msgNoJobs, date))
		return
	}

	var sb strings.Builder
	sb.WriteString(text(emp.Language, msgJobsHeader, date))
	for _, bk := range bookings {
		fmt.Fprintf(&sb, "\n#%d %s %s (%d min) %s", bk.ID, bk.ServiceTime, bk.ServiceType, bk.DurationMinutes, statusIcon(bk.Status))
		if bk.Address != "" {
			fmt.Fprintf(&sb, "\n   %s", bk.Address)
		}
	}
	b.sendMessage(chatID, sb.String())
}

func (b *Bot) handleBegin(ctx context.Context, emp *models.Employee, chatID, bookingID int64) {
	bk, err := b.field.StartWork(ctx, actorFor(emp), bookingID)
	if err != nil {
		b.replyError(ctx, emp, chatID, err)
		return
	}
	b.sendMessage(chatID, text(emp.Language, msgStarted, bk.ID))
	b.sendChecklist(ctx, emp, chatID, bk.ID)
}

func (b *Bot) handleDone(ctx context.Context, emp *models.Employee, chatID, bookingID int64) {
	res, err := b.field.CompleteWork(ctx, actorFor(emp), bookingID)
	if err != nil {
		b.replyError(ctx, emp, chatID, err)
		return
	}
	reply := text(emp.Language, msgCompleted, res.Booking.ID)
	for _, w := range res.Warnings {
		reply += "\n⚠️ " + w
	}
	b.sendMessage(chatID, reply)
}

func (b *Bot) handleLocation(ctx context.Context, emp *models.Employee, msg *tgbotapi.Message) {
	loc := models.Location{
		Latitude:  msg.Location.Latitude,
		Longitude: msg.Location.Longitude,
		Accuracy:  msg.Location.HorizontalAccuracy,
	}
	err := b.pings.RecordPing(ctx, emp.ID, loc)
	switch {
	case err == nil:
	case errors.Is(err, location.ErrRateLimited):
		return
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Int64("employee_id", emp.ID).Msg("location ping rejected")
		if msg.EditDate == 0 {
			b.sendMessage(msg.Chat.ID, text(emp.Language, msgLocationRejected))
		}
		return
	}
	// Only the first share of a live location gets an acknowledgement.
	if msg.EditDate == 0 {
		b.sendMessage(msg.Chat.ID, text(emp.Language, msgLocationSaved))
	}
}

func (b *Bot) replyError(ctx context.Context, emp *models.Employee, chatID int64, err error) {
	code := service.Code(err)
	if code == "internal" {
		zerolog.Ctx(ctx).Error().Err(err).Int64("employee_id", emp.ID).Msg("bot command failed")
	}
	b.sendMessage(chatID, errorText(emp.Language, code, err))
}

func (b *Bot) sendMessage(chatID int64, body string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, body)); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("telegram send failed")
	}
}

func statusIcon(status string) string {
	switch status {
	case models.StatusInProgress:
		return "🧹"
	case models.StatusCompleted:
		return "✅"
	case models.StatusCancelled:
		return "❌"
	default:
		return "📅"
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
