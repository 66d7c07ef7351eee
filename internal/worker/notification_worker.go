package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"cleanops/internal/domain"
	"cleanops/internal/metrics"
	"cleanops/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Deliverer sends one outbox row over its channel.
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

// NotificationWorker drains the notification outbox. Ids arrive through the
// in-memory queue or Redis; rows missed by both are found by polling.
type NotificationWorker struct {
	outbox        domain.OutboxRepository
	deliverer     Deliverer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan int64
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
	now           func() time.Time
}

// NewNotificationWorker builds a worker with sane defaults.
func NewNotificationWorker(
	outbox domain.OutboxRepository,
	deliverer Deliverer,
	redisClient *redis.Client,
	retry RetryPolicy,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *NotificationWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &NotificationWorker{
		outbox:        outbox,
		deliverer:     deliverer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan int64, 128),
		redisQueueKey: "notifications:queue",
		deadLetterKey: "notifications:deadletter",
		pollInterval:  pollInterval,
		batchSize:     20,
		logger:        logger,
		now:           time.Now,
	}
}

// Enqueue schedules a persisted notification for delivery.
func (w *NotificationWorker) Enqueue(ctx context.Context, notificationID int64) error {
	if notificationID == 0 {
		return errors.New("notification id is required")
	}

	if w.redis != nil {
		err := w.redis.LPush(ctx, w.redisQueueKey, strconv.FormatInt(notificationID, 10)).Err()
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
	}

	select {
	case w.queue <- notificationID:
	default:
		w.logger.Warn().Int64("notification_id", notificationID).Msg("memory queue full, left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if id, ok := w.tryLocalQueue(); ok {
			w.processByID(ctx, id)
			continue
		}

		if id, ok := w.tryRedis(ctx); ok {
			w.processByID(ctx, id)
			continue
		}

		if n := w.pollOnce(ctx); n == 0 {
			w.sleep(ctx)
		}
	}
}

// pollOnce processes a batch of due rows and returns how many it saw.
func (w *NotificationWorker) pollOnce(ctx context.Context) int {
	rows, err := w.outbox.GetPendingNotifications(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("fetch pending notifications")
		}
		return 0
	}
	for i := range rows {
		w.process(ctx, &rows[i])
	}
	return len(rows)
}

func (w *NotificationWorker) sleep(ctx context.Context) {
	t := time.NewTimer(w.pollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (w *NotificationWorker) tryLocalQueue() (int64, bool) {
	select {
	case id := <-w.queue:
		return id, true
	default:
		return 0, false
	}
}

func (w *NotificationWorker) tryRedis(ctx context.Context) (int64, bool) {
	if w.redis == nil {
		return 0, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("redis BRPOP failed")
		}
		return 0, false
	}
	if len(res) != 2 {
		return 0, false
	}
	id, err := strconv.ParseInt(res[1], 10, 64)
	if err != nil {
		w.logger.Error().Err(err).Str("value", res[1]).Msg("decode redis queue entry")
		return 0, false
	}
	return id, true
}

func (w *NotificationWorker) processByID(ctx context.Context, id int64) {
	n, err := w.outbox.GetNotification(ctx, id)
	if err != nil {
		w.logger.Error().Err(err).Int64("notification_id", id).Msg("load notification")
		return
	}
	switch n.Status {
	case models.NotificationSent, models.NotificationFailed:
		return
	case models.NotificationRetry:
		if n.NextRetryAt != nil && n.NextRetryAt.After(w.now()) {
			return
		}
	}
	w.process(ctx, n)
}

func (w *NotificationWorker) process(ctx context.Context, n *models.Notification) {
	if err := w.deliverer.Deliver(ctx, n); err != nil {
		w.retryOrFail(ctx, n, err)
		return
	}

	if err := w.outbox.UpdateNotificationStatus(ctx, n.ID, models.NotificationSent, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark notification sent")
	}
	metrics.IncNotification(n.Channel, models.NotificationSent)
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, n *models.Notification, cause error) {
	attempt := n.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failNotification(ctx, n, attempt, cause)
		return
	}

	next := w.now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.outbox.UpdateNotificationStatus(ctx, n.ID, models.NotificationRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark notification retry")
	}
	metrics.IncNotification(n.Channel, models.NotificationRetry)
	w.logger.Warn().
		Err(cause).
		Int64("notification_id", n.ID).
		Int("attempt", attempt).
		Time("next_retry_at", next).
		Msg("notification delivery will be retried")
}

func (w *NotificationWorker) failNotification(ctx context.Context, n *models.Notification, attempt int, cause error) {
	if err := w.outbox.UpdateNotificationStatus(ctx, n.ID, models.NotificationFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("mark notification failed")
	}
	metrics.IncNotification(n.Channel, models.NotificationFailed)
	w.logger.Error().
		Err(cause).
		Int64("notification_id", n.ID).
		Str("template", n.Template).
		Str("recipient", n.Recipient).
		Int("attempt", attempt).
		Msg("notification delivery failed")
	w.pushDeadLetter(ctx, n)
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, n *models.Notification) {
	if w.redis == nil {
		return
	}
	entry := fmt.Sprintf("%d:%s", n.ID, n.DedupKey)
	if err := w.redis.LPush(ctx, w.deadLetterKey, entry).Err(); err != nil {
		w.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("deadletter push")
	}
}
