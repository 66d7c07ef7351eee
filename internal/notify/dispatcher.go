// Package notify queues and delivers lifecycle notifications.
package notify

import (
	"context"
	"errors"
	"fmt"

	"cleanops/internal/domain"
	"cleanops/internal/metrics"
	"cleanops/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrNoRecipient = errors.New("notification has no recipient")

// DedupKey identifies one notification per template and entity.
func DedupKey(template string, entityID int64) string {
	return fmt.Sprintf("%s:%d", template, entityID)
}

// Dispatcher persists notifications to the outbox and wakes the worker.
// A second dispatch with the same dedup key is a no-op.
type Dispatcher struct {
	outbox          domain.OutboxRepository
	queue           domain.OutboxQueue
	defaultLanguage string
	logger          *zerolog.Logger
}

func NewDispatcher(outbox domain.OutboxRepository, queue domain.OutboxQueue, defaultLanguage string, logger *zerolog.Logger) *Dispatcher {
	if defaultLanguage == "" {
		defaultLanguage = models.LanguageEN
	}
	return &Dispatcher{outbox: outbox, queue: queue, defaultLanguage: defaultLanguage, logger: logger}
}

func (d *Dispatcher) Dispatch(ctx context.Context, n *models.Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("%w: %s", ErrNoRecipient, n.Template)
	}
	if !HasTemplate(n.Template) {
		return fmt.Errorf("unknown template %q", n.Template)
	}
	if n.Language == "" {
		n.Language = d.defaultLanguage
	}
	if n.Channel == "" {
		n.Channel = models.ChannelEmail
	}
	if n.DedupKey == "" {
		n.DedupKey = n.Template + ":" + uuid.NewString()
	}
	n.Status = models.NotificationPending

	created, err := d.outbox.CreateNotification(ctx, n)
	if err != nil {
		return fmt.Errorf("queue notification: %w", err)
	}
	if !created {
		d.logger.Debug().Str("dedup_key", n.DedupKey).Msg("notification already queued")
		return nil
	}
	metrics.IncNotification(n.Channel, "queued")

	if d.queue != nil {
		if err := d.queue.Enqueue(ctx, n.ID); err != nil {
			// the worker poll picks the row up later
			d.logger.Warn().Err(err).Int64("notification_id", n.ID).Msg("enqueue failed")
		}
	}
	return nil
}
