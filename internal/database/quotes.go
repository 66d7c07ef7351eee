package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cleanops/internal/models"
)

const quoteColumns = `id, requester_id, requester_name, requester_email, requester_phone, language,
	service_type, property_type, area, bedrooms, bathrooms, frequency, preferred_date, preferred_time,
	address, checklist_item_ids, price, status, client_notes, reviewed_by, created_at, updated_at, version`

func (db *DB) CreateQuote(ctx context.Context, q *models.Quote) error {
	itemIDs, err := json.Marshal(q.ChecklistItemIDs)
	if err != nil {
		return fmt.Errorf("encode checklist items: %w", err)
	}
	price, err := json.Marshal(q.Price)
	if err != nil {
		return fmt.Errorf("encode price: %w", err)
	}
	if q.Status == "" {
		q.Status = models.QuoteStatusPending
	}

	now := time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO quotes (
			requester_id, requester_name, requester_email, requester_phone, language,
			service_type, property_type, area, bedrooms, bathrooms, frequency, preferred_date, preferred_time,
			address, checklist_item_ids, price, total, status, client_notes, created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		q.RequesterID, q.RequesterName, q.RequesterEmail, q.RequesterPhone, q.Language,
		q.ServiceType, q.PropertyType, q.Area, nullableInt(q.Bedrooms), nullableInt(q.Bathrooms),
		q.Frequency, q.PreferredDate, q.PreferredTime, q.Address, string(itemIDs), string(price),
		q.Price.Total, q.Status, q.ClientNotes, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create quote: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	q.ID = id
	q.CreatedAt = now
	q.UpdatedAt = now
	q.Version = 1
	return nil
}

func (db *DB) GetQuote(ctx context.Context, id int64) (*models.Quote, error) {
	q, err := scanQuote(db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("quote %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	return q, nil
}

// ListQuotes returns quotes filtered by status (all when empty) and requester (all when 0).
func (db *DB) ListQuotes(ctx context.Context, status string, requesterID int64) ([]*models.Quote, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE (? = '' OR status = ?) AND (? = 0 OR requester_id = ?) ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, status, status, requesterID, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list quotes: %w", err)
	}
	defer rows.Close()

	var out []*models.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quote: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// RejectQuote moves a pending quote to rejected if it still has fromVersion.
func (db *DB) RejectQuote(ctx context.Context, id, fromVersion, reviewerID int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE quotes SET status = ?, reviewed_by = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = ?`,
		models.QuoteStatusRejected, reviewerID, time.Now(), id, fromVersion, models.QuoteStatusPending)
	if err != nil {
		return fmt.Errorf("failed to reject quote: %w", err)
	}
	return checkAffected(result)
}

// ApproveQuote approves a pending quote, creates its booking and snapshots the
// selected checklist items in one transaction.
func (db *DB) ApproveQuote(ctx context.Context, quoteID, fromVersion, reviewerID int64, booking *models.Booking, itemIDs []int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		result, err := tx.ExecContext(ctx, `
			UPDATE quotes SET status = ?, reviewed_by = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND status = ?`,
			models.QuoteStatusApproved, reviewerID, now, quoteID, fromVersion, models.QuoteStatusPending)
		if err != nil {
			return fmt.Errorf("failed to approve quote: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		booking.QuoteID = quoteID
		if booking.Status == "" {
			booking.Status = models.StatusConfirmed
		}
		result, err = tx.ExecContext(ctx, `
			INSERT INTO bookings (
				quote_id, requester_id, service_type, service_date, service_time, duration_minutes,
				employee_id, status, final_price, address, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, 1)`,
			booking.QuoteID, booking.RequesterID, booking.ServiceType, booking.ServiceDate, booking.ServiceTime,
			booking.DurationMinutes, booking.Status, booking.FinalPrice, booking.Address, now, now)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("booking for quote %d: %w", quoteID, ErrDuplicate)
			}
			return fmt.Errorf("failed to insert booking in tx: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}

		if _, err := initializeChecklist(ctx, tx, id, itemIDs); err != nil {
			return err
		}

		booking.ID = id
		booking.EmployeeID = nil
		booking.CreatedAt = now
		booking.UpdatedAt = now
		booking.Version = 1
		return nil
	})
}

func scanQuote(row rowScanner) (*models.Quote, error) {
	var q models.Quote
	var bedrooms, bathrooms sql.NullInt64
	var itemIDs, price string
	err := row.Scan(
		&q.ID, &q.RequesterID, &q.RequesterName, &q.RequesterEmail, &q.RequesterPhone, &q.Language,
		&q.ServiceType, &q.PropertyType, &q.Area, &bedrooms, &bathrooms, &q.Frequency, &q.PreferredDate, &q.PreferredTime,
		&q.Address, &itemIDs, &price, &q.Status, &q.ClientNotes, &q.ReviewedBy, &q.CreatedAt, &q.UpdatedAt, &q.Version,
	)
	if err != nil {
		return nil, err
	}
	q.Bedrooms = intPtr(bedrooms)
	q.Bathrooms = intPtr(bathrooms)
	if err := json.Unmarshal([]byte(itemIDs), &q.ChecklistItemIDs); err != nil {
		return nil, fmt.Errorf("decode checklist items: %w", err)
	}
	if err := json.Unmarshal([]byte(price), &q.Price); err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	return &q, nil
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
