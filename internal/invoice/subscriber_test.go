package invoice

import (
	"context"
	"errors"
	"testing"

	"cleanops/internal/events"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockStore) GetQuote(ctx context.Context, id int64) (*models.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quote), args.Error(1)
}

func (m *mockStore) SetInvoiceRef(ctx context.Context, bookingID int64, ref string) error {
	return m.Called(ctx, bookingID, ref).Error(0)
}

type mockInvoicer struct {
	mock.Mock
}

func (m *mockInvoicer) Generate(ctx context.Context, b *models.Booking, q *models.Quote) (string, error) {
	args := m.Called(ctx, b, q)
	return args.String(0), args.Error(1)
}

func TestSubscriber(t *testing.T) {
	logger := zerolog.Nop()
	store, invoicer := new(mockStore), new(mockInvoicer)
	sub := NewSubscriber(store, invoicer, &logger)

	bus := events.NewEventBus(&logger)
	sub.Register(bus)

	b := &models.Booking{ID: 12, QuoteID: 4, Status: models.StatusCompleted}
	q := &models.Quote{ID: 4}
	store.On("GetBooking", mock.Anything, int64(12)).Return(b, nil).Once()
	store.On("GetQuote", mock.Anything, int64(4)).Return(q, nil).Once()
	invoicer.On("Generate", mock.Anything, b, q).Return("INV-000012.xlsx", nil).Once()
	store.On("SetInvoiceRef", mock.Anything, int64(12), "INV-000012.xlsx").Return(nil).Once()

	require.NoError(t, bus.PublishJSON(events.EventBookingCompleted, events.BookingEventPayload{BookingID: 12}))
	store.AssertExpectations(t)
	invoicer.AssertExpectations(t)
}

func TestSubscriber_SkipsInvoicedBooking(t *testing.T) {
	logger := zerolog.Nop()
	store, invoicer := new(mockStore), new(mockInvoicer)
	sub := NewSubscriber(store, invoicer, &logger)

	store.On("GetBooking", mock.Anything, int64(3)).Return(&models.Booking{ID: 3, InvoiceRef: "INV-000003.xlsx"}, nil).Once()

	event, err := events.NewJSONEvent(events.EventBookingCompleted, events.BookingEventPayload{BookingID: 3})
	require.NoError(t, err)
	assert.NoError(t, sub.Handle(&event))
	invoicer.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubscriber_Errors(t *testing.T) {
	logger := zerolog.Nop()
	store, invoicer := new(mockStore), new(mockInvoicer)
	sub := NewSubscriber(store, invoicer, &logger)

	assert.Error(t, sub.Handle(&events.Event{Type: events.EventBookingCompleted, Payload: []byte("{")}))

	store.On("GetBooking", mock.Anything, int64(5)).Return(nil, errors.New("gone")).Once()
	event, _ := events.NewJSONEvent(events.EventBookingCompleted, events.BookingEventPayload{BookingID: 5})
	assert.Error(t, sub.Handle(&event))
}
