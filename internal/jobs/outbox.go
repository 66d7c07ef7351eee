package jobs

import (
	"context"
	"fmt"
	"time"

	"cleanops/internal/metrics"
	"cleanops/internal/models"

	"github.com/rs/zerolog"
)

const OutboxSweepJobName = "outbox_sweep"

// OutboxStore is the maintenance surface of the notification outbox.
type OutboxStore interface {
	PurgeSentNotifications(ctx context.Context, cutoff time.Time) (int64, error)
	GetFailedNotifications(ctx context.Context) ([]models.Notification, error)
}

// OutboxSweepJob deletes delivered notifications older than retention and
// reports the dead-letter backlog.
type OutboxSweepJob struct {
	store     OutboxStore
	retention time.Duration
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewOutboxSweepJob(store OutboxStore, retention time.Duration, logger *zerolog.Logger) *OutboxSweepJob {
	return &OutboxSweepJob{store: store, retention: retention, logger: logger, now: time.Now}
}

func (j *OutboxSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().Add(-j.retention)
	purged, err := j.store.PurgeSentNotifications(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge outbox: %w", err)
	}

	failed, err := j.store.GetFailedNotifications(ctx)
	if err != nil {
		return fmt.Errorf("list failed notifications: %w", err)
	}
	metrics.SetOutboxFailed(len(failed))

	evt := j.logger.Info()
	if len(failed) > 0 {
		evt = j.logger.Warn()
	}
	evt.Int64("purged", purged).Int("failed", len(failed)).Time("cutoff", cutoff).Msg("outbox swept")
	return nil
}
