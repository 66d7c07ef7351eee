package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanops/internal/models"
)

const completionColumns = `id, booking_id, item_id, text_en, text_es, required, sort_order, completed, completed_at, rating, notes`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// initializeChecklist copies the template items into completion rows.
// Rows that already exist are left untouched.
func initializeChecklist(ctx context.Context, ex execer, bookingID int64, itemIDs []int64) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(itemIDs)+1)
	args = append(args, bookingID)
	for _, id := range itemIDs {
		args = append(args, id)
	}

	result, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO booking_checklist (booking_id, item_id, text_en, text_es, required, sort_order)
		SELECT ?, id, text_en, text_es, required, sort_order FROM checklist_items
		WHERE id IN (`+placeholders(len(itemIDs))+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize checklist: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// InitializeChecklist is idempotent; it returns the number of rows created.
func (db *DB) InitializeChecklist(ctx context.Context, bookingID int64, itemIDs []int64) (int64, error) {
	return initializeChecklist(ctx, db, bookingID, itemIDs)
}

func (db *DB) GetBookingChecklist(ctx context.Context, bookingID int64) ([]*models.ChecklistCompletion, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+completionColumns+` FROM booking_checklist
		WHERE booking_id = ? ORDER BY sort_order, item_id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking checklist: %w", err)
	}
	defer rows.Close()

	var out []*models.ChecklistCompletion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist completion: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) GetChecklistCompletion(ctx context.Context, id int64) (*models.ChecklistCompletion, error) {
	c, err := scanCompletion(db.QueryRowContext(ctx, `SELECT `+completionColumns+` FROM booking_checklist WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("checklist completion %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist completion: %w", err)
	}
	return c, nil
}

// SetCompletionState stamps completed_at on a false->true change and clears it on true->false.
// Only rows of an in_progress booking change; other rows yield ErrConcurrentModification.
func (db *DB) SetCompletionState(ctx context.Context, id int64, completed bool, at time.Time) error {
	result, err := db.ExecContext(ctx, `
		UPDATE booking_checklist SET
			completed = ?,
			completed_at = CASE WHEN ? = 0 THEN NULL WHEN completed = 1 THEN completed_at ELSE ? END
		WHERE id = ? AND (SELECT status FROM bookings WHERE id = booking_checklist.booking_id) = ?`,
		completed, completed, at, id, models.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to update checklist completion: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows > 0 {
		return nil
	}
	if _, err := db.GetChecklistCompletion(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("checklist completion %d: %w", id, ErrConcurrentModification)
}

// RateCompletion stores a 1-5 rating. Notes are kept when nil.
func (db *DB) RateCompletion(ctx context.Context, id int64, rating int, notes *string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE booking_checklist SET rating = ?, notes = COALESCE(?, notes) WHERE id = ?`,
		rating, notes, id)
	if err != nil {
		return fmt.Errorf("failed to rate checklist completion: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("checklist completion %d: %w", id, ErrNotFound)
	}
	return nil
}

func (db *DB) GetChecklistCounts(ctx context.Context, bookingID int64) (models.ChecklistCounts, error) {
	var c models.ChecklistCounts
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN completed = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN required = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN required = 1 AND completed = 1 THEN 1 ELSE 0 END), 0)
		FROM booking_checklist WHERE booking_id = ?`, bookingID).Scan(
		&c.Total, &c.Completed, &c.RequiredTotal, &c.RequiredCompleted)
	if err != nil {
		return c, fmt.Errorf("failed to count checklist: %w", err)
	}
	return c, nil
}

func scanCompletion(row rowScanner) (*models.ChecklistCompletion, error) {
	var c models.ChecklistCompletion
	var completedAt sql.NullTime
	var rating sql.NullInt64
	if err := row.Scan(&c.ID, &c.BookingID, &c.ItemID, &c.TextEN, &c.TextES, &c.Required, &c.SortOrder,
		&c.Completed, &completedAt, &rating, &c.Notes); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	c.Rating = intPtr(rating)
	return &c, nil
}
