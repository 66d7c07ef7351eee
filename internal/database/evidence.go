package database

import (
	"context"
	"fmt"
	"time"

	"cleanops/internal/models"
)

func (db *DB) CreateEvidence(ctx context.Context, e *models.Evidence) error {
	now := time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO booking_evidence (booking_id, phase, url, content_type, size, uploaded_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.BookingID, e.Phase, e.URL, e.ContentType, e.Size, e.UploadedBy, now)
	if err != nil {
		return fmt.Errorf("failed to create evidence: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

func (db *DB) ListEvidence(ctx context.Context, bookingID int64) ([]*models.Evidence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, phase, url, content_type, size, uploaded_by, created_at
		FROM booking_evidence WHERE booking_id = ? ORDER BY created_at, id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence: %w", err)
	}
	defer rows.Close()

	var out []*models.Evidence
	for rows.Next() {
		e := &models.Evidence{}
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Phase, &e.URL, &e.ContentType, &e.Size, &e.UploadedBy, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (db *DB) CountEvidence(ctx context.Context, bookingID int64, phase string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM booking_evidence WHERE booking_id = ? AND phase = ?`,
		bookingID, phase).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count evidence: %w", err)
	}
	return n, nil
}
