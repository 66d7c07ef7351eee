package models

import "time"

// Notification is an outbox row awaiting delivery.
type Notification struct {
	ID          int64             `json:"id"`
	DedupKey    string            `json:"dedup_key"`
	Channel     string            `json:"channel"`
	Recipient   string            `json:"recipient"`
	Template    string            `json:"template"`
	Language    string            `json:"language"`
	Data        map[string]string `json:"data"`
	Status      string            `json:"status"`
	RetryCount  int               `json:"retry_count"`
	LastError   *string           `json:"last_error"`
	CreatedAt   time.Time         `json:"created_at"`
	ProcessedAt *time.Time        `json:"processed_at"`
	NextRetryAt *time.Time        `json:"next_retry_at"`
}
