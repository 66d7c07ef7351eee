package invoice

import (
	"context"
	"fmt"
	"time"

	"cleanops/internal/domain"
	"cleanops/internal/events"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
)

type store interface {
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetQuote(ctx context.Context, id int64) (*models.Quote, error)
	SetInvoiceRef(ctx context.Context, bookingID int64, ref string) error
}

// Subscriber generates an invoice whenever a booking completes.
type Subscriber struct {
	store    store
	invoicer domain.Invoicer
	timeout  time.Duration
	logger   *zerolog.Logger
}

func NewSubscriber(s store, invoicer domain.Invoicer, logger *zerolog.Logger) *Subscriber {
	return &Subscriber{store: s, invoicer: invoicer, timeout: 30 * time.Second, logger: logger}
}

// Register attaches the subscriber to the bus.
func (s *Subscriber) Register(bus *events.EventBus) {
	bus.Subscribe(events.EventBookingCompleted, s.Handle)
}

func (s *Subscriber) Handle(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	b, err := s.store.GetBooking(ctx, payload.BookingID)
	if err != nil {
		return err
	}
	if b.InvoiceRef != "" {
		return nil
	}
	q, err := s.store.GetQuote(ctx, b.QuoteID)
	if err != nil {
		return err
	}

	ref, err := s.invoicer.Generate(ctx, b, q)
	if err != nil {
		return fmt.Errorf("generate invoice for booking %d: %w", b.ID, err)
	}
	if err := s.store.SetInvoiceRef(ctx, b.ID, ref); err != nil {
		return err
	}
	s.logger.Debug().Int64("booking_id", b.ID).Str("invoice_ref", ref).Msg("invoice attached")
	return nil
}
