package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"cleanops/internal/database"
	"cleanops/internal/models"
	"cleanops/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	sent     []tgbotapi.Chattable
	requests int
}

func (f *fakeTelegram) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeTelegram) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeTelegram) StopReceivingUpdates() {}

func (f *fakeTelegram) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeDirectory struct {
	employees []*models.Employee
	err       error
}

func (f *fakeDirectory) GetEmployeeByChatID(_ context.Context, chatID int64) (*models.Employee, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, e := range f.employees {
		if e.Active && e.TelegramChatID == chatID {
			return e, nil
		}
	}
	return nil, fmt.Errorf("employee for chat %d: %w", chatID, database.ErrNotFound)
}

type toggleCall struct {
	bookingID, completionID int64
	completed               bool
}

type fakeField struct {
	schedule []*models.Booking
	startErr error
	toggles  []toggleCall
	view     *service.ChecklistView
}

func (f *fakeField) ListEmployeeSchedule(_ context.Context, _ models.Actor, _ int64, _ string) ([]*models.Booking, error) {
	return f.schedule, nil
}

func (f *fakeField) StartWork(_ context.Context, _ models.Actor, id int64) (*models.Booking, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.Booking{ID: id, Status: models.StatusInProgress}, nil
}

func (f *fakeField) CompleteWork(_ context.Context, _ models.Actor, id int64) (*service.CompletionResult, error) {
	return &service.CompletionResult{
		Booking:  &models.Booking{ID: id, Status: models.StatusCompleted},
		Warnings: []string{"no after photos were uploaded"},
	}, nil
}

func (f *fakeField) GetChecklist(context.Context, models.Actor, int64) (*service.ChecklistView, error) {
	return f.view, nil
}

func (f *fakeField) ToggleChecklistItem(_ context.Context, _ models.Actor, bookingID, completionID int64, completed bool) (*models.ChecklistCompletion, error) {
	f.toggles = append(f.toggles, toggleCall{bookingID, completionID, completed})
	return &models.ChecklistCompletion{ID: completionID, Completed: completed}, nil
}

type fakePings struct {
	mu    sync.Mutex
	pings []models.Location
	err   error
}

func (f *fakePings) RecordPing(_ context.Context, _ int64, loc models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pings = append(f.pings, loc)
	return nil
}

type denyLimiter struct{}

func (denyLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

const anaChat = 4242

func newTestBot(limiter RateLimiter) (*Bot, *fakeTelegram, *fakeField, *fakePings) {
	logger := zerolog.Nop()
	tg := &fakeTelegram{updates: make(chan tgbotapi.Update, 4)}
	field := &fakeField{view: &service.ChecklistView{
		Items: []*models.ChecklistCompletion{
			{ID: 11, TextEN: "Kitchen", Required: true},
			{ID: 12, TextEN: "Windows", Completed: true},
		},
		Progress: models.ChecklistProgress{Total: 2, Completed: 1, Percentage: 50},
	}}
	pings := &fakePings{}
	dir := &fakeDirectory{employees: []*models.Employee{{ID: 1, Name: "Ana", TelegramChatID: anaChat, Language: models.LanguageEN, Active: true}}}
	b := NewBot(tg, dir, field, pings, limiter, Options{RateLimit: 5}, &logger)
	b.now = func() time.Time { return time.Date(2030, 6, 10, 8, 0, 0, 0, time.UTC) }
	return b, tg, field, pings
}

func command(chatID int64, cmd string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     cmd,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(firstWord(cmd))}},
	}}
}

func firstWord(s string) string {
	for i, r := range s {
		if r == ' ' {
			return s[:i]
		}
	}
	return s
}

func TestUnknownChat(t *testing.T) {
	b, tg, _, _ := newTestBot(nil)
	b.processUpdate(context.Background(), command(1, "/today"))
	require.Len(t, tg.texts(), 1)
	assert.Contains(t, tg.texts()[0], "chat id 1")
}

func TestDirectoryFailureIsSilent(t *testing.T) {
	b, tg, _, _ := newTestBot(nil)
	b.employees = &fakeDirectory{err: fmt.Errorf("database is locked")}
	b.processUpdate(context.Background(), command(anaChat, "/today"))
	assert.Empty(t, tg.texts())
}

func TestToday(t *testing.T) {
	b, tg, field, _ := newTestBot(nil)
	field.schedule = []*models.Booking{{ID: 7, ServiceTime: "09:00", ServiceType: "deep_cleaning", DurationMinutes: 120, Address: "1 Main St", Status: models.StatusConfirmed}}

	b.processUpdate(context.Background(), command(anaChat, "/today"))
	require.Len(t, tg.texts(), 1)
	assert.Contains(t, tg.texts()[0], "2030-06-10")
	assert.Contains(t, tg.texts()[0], "#7 09:00 deep_cleaning")
	assert.Contains(t, tg.texts()[0], "1 Main St")
}

func TestBeginRequiresID(t *testing.T) {
	b, tg, _, _ := newTestBot(nil)
	b.processUpdate(context.Background(), command(anaChat, "/begin"))
	assert.Equal(t, []string{text(models.LanguageEN, msgNeedBookingID)}, tg.texts())
}

func TestBeginWithoutLocation(t *testing.T) {
	b, tg, field, _ := newTestBot(nil)
	field.startErr = fmt.Errorf("%w: no ping", service.ErrLocationUnavailable)

	b.processUpdate(context.Background(), command(anaChat, "/begin 7"))
	require.Len(t, tg.texts(), 1)
	assert.Contains(t, tg.texts()[0], "Share your live location")
}

func TestBeginSendsChecklist(t *testing.T) {
	b, tg, _, _ := newTestBot(nil)
	b.processUpdate(context.Background(), command(anaChat, "/begin 7"))

	texts := tg.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "#7 started")
	assert.Contains(t, texts[1], "1/2 done (50%)")

	msg, ok := tg.sent[1].(tgbotapi.MessageConfig)
	require.True(t, ok)
	kb, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, "⬜ Kitchen *", kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "ck:7:11:1", *kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "ck:7:12:0", *kb.InlineKeyboard[1][0].CallbackData)
}

func TestDoneShowsWarnings(t *testing.T) {
	b, tg, _, _ := newTestBot(nil)
	b.processUpdate(context.Background(), command(anaChat, "/done 7"))
	require.Len(t, tg.texts(), 1)
	assert.Contains(t, tg.texts()[0], "#7 completed")
	assert.Contains(t, tg.texts()[0], "no after photos")
}

func TestChecklistCallback(t *testing.T) {
	b, tg, field, _ := newTestBot(nil)
	update := tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb1",
		Data:    "ck:7:11:1",
		Message: &tgbotapi.Message{MessageID: 55, Chat: &tgbotapi.Chat{ID: anaChat}},
	}}

	b.processUpdate(context.Background(), update)
	assert.Equal(t, []toggleCall{{7, 11, true}}, field.toggles)
	assert.Equal(t, 1, tg.requests)
	require.Len(t, tg.sent, 1)
	edit, ok := tg.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 55, edit.MessageID)
}

func TestLocationShare(t *testing.T) {
	b, tg, _, pings := newTestBot(nil)
	loc := &tgbotapi.Location{Latitude: 40.4, Longitude: -3.7, HorizontalAccuracy: 12}

	b.processUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: anaChat}, Location: loc}})
	b.processUpdate(context.Background(), tgbotapi.Update{EditedMessage: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: anaChat}, Location: loc, EditDate: 1}})

	assert.Equal(t, []models.Location{{Latitude: 40.4, Longitude: -3.7, Accuracy: 12}, {Latitude: 40.4, Longitude: -3.7, Accuracy: 12}}, pings.pings)
	assert.Equal(t, []string{text(models.LanguageEN, msgLocationSaved)}, tg.texts(), "live updates are not acknowledged")
}

func TestRateLimited(t *testing.T) {
	b, tg, field, _ := newTestBot(denyLimiter{})
	b.processUpdate(context.Background(), command(anaChat, "/done 7"))
	assert.Equal(t, []string{text(models.LanguageEN, msgSlowDown)}, tg.texts())
	assert.Empty(t, field.toggles)
}

func TestStartStopsOnClosedChannel(t *testing.T) {
	b, tg, _, _ := newTestBot(nil)
	tg.updates <- command(anaChat, "/help")
	close(tg.updates)

	done := make(chan struct{})
	go func() {
		b.Start(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
	require.Len(t, tg.texts(), 1)
	assert.Contains(t, tg.texts()[0], "Hi Ana!")
}

func TestParseToggle(t *testing.T) {
	tests := []struct {
		data      string
		booking   int64
		item      int64
		completed bool
		ok        bool
	}{
		{"ck:7:11:1", 7, 11, true, true},
		{"ck:7:11:0", 7, 11, false, true},
		{"ck:7:11:2", 0, 0, false, false},
		{"ck:7:x:1", 0, 0, false, false},
		{"other", 0, 0, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			b, i, c, ok := parseToggle(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.booking, b)
			assert.Equal(t, tt.item, i)
			assert.Equal(t, tt.completed, c)
		})
	}
}

func TestErrorTextSpanish(t *testing.T) {
	msg := errorText(models.LanguageES, "not_found", nil)
	assert.Equal(t, "❌ Trabajo no encontrado.", msg)
	assert.Equal(t, errorMessages[models.LanguageEN]["internal"], errorText("fr", "weird", nil))
}
