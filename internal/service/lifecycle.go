package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cleanops/internal/domain"
	"cleanops/internal/events"
	"cleanops/internal/metrics"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
)

type nowFunc func() time.Time

func systemNow() time.Time { return time.Now() }

// notifier wraps the outbox dispatcher and the event bus. Neither may fail a
// transition that has already been committed.
type notifier struct {
	dispatcher domain.Dispatcher
	events     domain.EventPublisher
	logger     *zerolog.Logger
}

// send queues msg. A failure is logged as ErrDeliveryFailed and returned so
// callers can report it, but the transition stays applied.
func (n notifier) send(ctx context.Context, msg *models.Notification) error {
	if n.dispatcher == nil {
		return nil
	}
	if err := n.dispatcher.Dispatch(ctx, msg); err != nil {
		err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		metrics.IncNotification(msg.Channel, "dispatch_failed")
		n.logger.Error().Err(err).
			Str("template", msg.Template).
			Str("recipient", msg.Recipient).
			Str("dedup_key", msg.DedupKey).
			Msg("notification dispatch failed")
		return err
	}
	return nil
}

func (n notifier) publish(eventType string, payload events.BookingEventPayload) {
	if n.events == nil {
		return
	}
	if err := n.events.PublishJSON(eventType, payload); err != nil {
		n.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", payload.BookingID).Msg("publish event error")
	}
}

func bookingPayload(b *models.Booking, actor models.Actor) events.BookingEventPayload {
	p := events.BookingEventPayload{
		QuoteID:     b.QuoteID,
		BookingID:   b.ID,
		RequesterID: b.RequesterID,
		ServiceType: b.ServiceType,
		ServiceDate: b.ServiceDate,
		ServiceTime: b.ServiceTime,
		Status:      b.Status,
		ChangedByID: actor.ID,
		ChangedBy:   actor.Role,
	}
	if b.EmployeeID != nil {
		p.EmployeeID = *b.EmployeeID
	}
	return p
}

func quotePayload(q *models.Quote, actor models.Actor) events.BookingEventPayload {
	return events.BookingEventPayload{
		QuoteID:     q.ID,
		RequesterID: q.RequesterID,
		ServiceType: q.ServiceType,
		Status:      q.Status,
		ChangedByID: actor.ID,
		ChangedBy:   actor.Role,
	}
}

func money(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

// observe records the outcome of a lifecycle operation.
func observe(op string, err error) {
	metrics.ObserveTransition(op, Code(err))
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(models.DateLayout, s)
}
