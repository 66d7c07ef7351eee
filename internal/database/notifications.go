package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cleanops/internal/models"
)

const notificationColumns = `id, dedup_key, channel, recipient, template, language, data, status, retry_count, last_error, created_at, processed_at, next_retry_at`

// CreateNotification inserts an outbox row. A row with the same dedup key
// is left as is and created is false.
func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) (bool, error) {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return false, fmt.Errorf("encode notification data: %w", err)
	}
	if n.Status == "" {
		n.Status = models.NotificationPending
	}

	now := time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notifications (dedup_key, channel, recipient, template, language, data, status, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.DedupKey, n.Channel, n.Recipient, n.Template, n.Language, string(data), n.Status, now)
	if err != nil {
		return false, fmt.Errorf("failed to create notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	return true, nil
}

func (db *DB) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	list, err := scanNotifications(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return &list[0], nil
}

// GetPendingNotifications returns rows due for a delivery attempt.
func (db *DB) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at ASC, id ASC LIMIT ?`,
		models.NotificationPending, models.NotificationRetry, time.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending notifications: %w", err)
	}
	return scanNotifications(rows)
}

func (db *DB) GetFailedNotifications(ctx context.Context) ([]models.Notification, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+notificationColumns+` FROM notifications
		WHERE status = ? ORDER BY created_at DESC`, models.NotificationFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to get failed notifications: %w", err)
	}
	return scanNotifications(rows)
}

func (db *DB) UpdateNotificationStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []any
	now := time.Now()

	var lastError *string
	if errMsg != "" {
		lastError = &errMsg
	}

	switch status {
	case models.NotificationRetry:
		query = `UPDATE notifications SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	case models.NotificationSent, models.NotificationFailed:
		query = `UPDATE notifications SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, now, id}
	default:
		query = `UPDATE notifications SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []any{status, lastError, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}
	return nil
}

// PurgeSentNotifications deletes delivered rows processed before cutoff.
func (db *DB) PurgeSentNotifications(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM notifications WHERE status = ? AND processed_at < ?`,
		models.NotificationSent, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	return result.RowsAffected()
}

func scanNotifications(rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}) ([]models.Notification, error) {
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var data string
		if err := rows.Scan(&n.ID, &n.DedupKey, &n.Channel, &n.Recipient, &n.Template, &n.Language, &data,
			&n.Status, &n.RetryCount, &n.LastError, &n.CreatedAt, &n.ProcessedAt, &n.NextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
