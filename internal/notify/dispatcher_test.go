package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"cleanops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockOutbox struct {
	mock.Mock
}

func (m *mockOutbox) CreateNotification(ctx context.Context, n *models.Notification) (bool, error) {
	args := m.Called(ctx, n)
	if args.Bool(0) {
		n.ID = 77
	}
	return args.Bool(0), args.Error(1)
}

func (m *mockOutbox) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

func (m *mockOutbox) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *mockOutbox) UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, next *time.Time) error {
	args := m.Called(ctx, id, status, errMsg, next)
	return args.Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) Enqueue(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()

	t.Run("QueuesAndEnqueues", func(t *testing.T) {
		outbox, queue := new(mockOutbox), new(mockQueue)
		d := NewDispatcher(outbox, queue, models.LanguageES, &logger)

		n := &models.Notification{
			DedupKey:  DedupKey(models.TemplateQuoteApproved, 12),
			Recipient: "client@example.com",
			Template:  models.TemplateQuoteApproved,
		}
		outbox.On("CreateNotification", ctx, n).Return(true, nil).Once()
		queue.On("Enqueue", ctx, int64(77)).Return(nil).Once()

		require.NoError(t, d.Dispatch(ctx, n))
		assert.Equal(t, "quote_approved:12", n.DedupKey)
		assert.Equal(t, models.LanguageES, n.Language)
		assert.Equal(t, models.ChannelEmail, n.Channel)
		assert.Equal(t, models.NotificationPending, n.Status)
		outbox.AssertExpectations(t)
		queue.AssertExpectations(t)
	})

	t.Run("DuplicateIsNoop", func(t *testing.T) {
		outbox, queue := new(mockOutbox), new(mockQueue)
		d := NewDispatcher(outbox, queue, "", &logger)

		n := &models.Notification{DedupKey: "k", Recipient: "r", Template: models.TemplateQuoteRejected}
		outbox.On("CreateNotification", ctx, n).Return(false, nil).Once()

		require.NoError(t, d.Dispatch(ctx, n))
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})

	t.Run("EnqueueFailureIsTolerated", func(t *testing.T) {
		outbox, queue := new(mockOutbox), new(mockQueue)
		d := NewDispatcher(outbox, queue, "", &logger)

		n := &models.Notification{Recipient: "r", Template: models.TemplateQuoteRejected}
		outbox.On("CreateNotification", ctx, n).Return(true, nil).Once()
		queue.On("Enqueue", ctx, int64(77)).Return(errors.New("queue full")).Once()

		require.NoError(t, d.Dispatch(ctx, n))
		assert.Contains(t, n.DedupKey, "quote_rejected:")
	})

	t.Run("OutboxFailure", func(t *testing.T) {
		outbox := new(mockOutbox)
		d := NewDispatcher(outbox, nil, "", &logger)

		n := &models.Notification{Recipient: "r", Template: models.TemplateQuoteRejected}
		outbox.On("CreateNotification", ctx, n).Return(false, errors.New("disk full")).Once()
		assert.Error(t, d.Dispatch(ctx, n))
	})

	t.Run("Validation", func(t *testing.T) {
		d := NewDispatcher(new(mockOutbox), nil, "", &logger)
		assert.ErrorIs(t, d.Dispatch(ctx, &models.Notification{Template: models.TemplateQuoteRejected}), ErrNoRecipient)
		assert.Error(t, d.Dispatch(ctx, &models.Notification{Recipient: "r", Template: "bogus"}))
	})
}
