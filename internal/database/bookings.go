package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanops/internal/availability"
	"cleanops/internal/models"
)

const bookingColumns = `id, quote_id, requester_id, service_type, service_date, service_time, duration_minutes,
	employee_id, status, final_price, payment_completed, employee_notes, address,
	start_lat, start_lon, start_accuracy, end_lat, end_lon, end_accuracy,
	started_at, completed_at, invoice_ref, created_at, updated_at, version`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings filters by status and service date; empty values match everything.
func (db *DB) ListBookings(ctx context.Context, status, date string) ([]*models.Booking, error) {
	return queryBookings(ctx, db, `SELECT `+bookingColumns+` FROM bookings
		WHERE (? = '' OR status = ?) AND (? = '' OR service_date = ?)
		ORDER BY service_date, service_time, id`, status, status, date, date)
}

// ListEmployeeBookings returns every booking of the employee on date.
func (db *DB) ListEmployeeBookings(ctx context.Context, employeeID int64, date string) ([]*models.Booking, error) {
	return queryBookings(ctx, db, `SELECT `+bookingColumns+` FROM bookings
		WHERE employee_id = ? AND service_date = ?
		ORDER BY service_time, id`, employeeID, date)
}

// AssignEmployeeWithLock re-reads the employee's schedule inside the
// transaction and assigns only when no confirmed or in-progress booking
// overlaps. Concurrent calls for the same slot cannot both succeed.
func (db *DB) AssignEmployeeWithLock(ctx context.Context, bookingID, fromVersion, employeeID int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var date, start, status string
		var duration int
		var version int64
		err := tx.QueryRowContext(ctx,
			`SELECT service_date, service_time, duration_minutes, status, version FROM bookings WHERE id = ?`,
			bookingID).Scan(&date, &start, &duration, &status, &version)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to read booking in tx: %w", err)
		}
		if version != fromVersion || status != models.StatusConfirmed {
			return ErrConcurrentModification
		}

		existing, err := queryBookings(ctx, tx, `SELECT `+bookingColumns+` FROM bookings
			WHERE employee_id = ? AND service_date = ? AND id != ? AND status IN (?, ?)`,
			employeeID, date, bookingID, models.StatusConfirmed, models.StatusInProgress)
		if err != nil {
			return fmt.Errorf("failed to check schedule in tx: %w", err)
		}

		conflicts, err := availability.Conflicts(employeeID, date, start, duration, existing)
		if err != nil {
			return fmt.Errorf("failed to evaluate availability: %w", err)
		}
		if len(conflicts) > 0 {
			return fmt.Errorf("%w: conflicts with booking %d", ErrEmployeeBusy, conflicts[0].ID)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE bookings SET employee_id = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`, employeeID, time.Now(), bookingID, fromVersion)
		if err != nil {
			return fmt.Errorf("failed to assign employee: %w", err)
		}
		return checkAffected(result)
	})
}

func (db *DB) UnassignEmployee(ctx context.Context, bookingID, fromVersion int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET employee_id = NULL, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status IN (?, ?)`,
		time.Now(), bookingID, fromVersion, models.StatusConfirmed, models.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to unassign employee: %w", err)
	}
	return checkAffected(result)
}

func (db *DB) StartBooking(ctx context.Context, bookingID, fromVersion int64, loc models.Location, at time.Time) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, start_lat = ?, start_lon = ?, start_accuracy = ?, started_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = ? AND employee_id IS NOT NULL`,
		models.StatusInProgress, loc.Latitude, loc.Longitude, loc.Accuracy, at, at,
		bookingID, fromVersion, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to start booking: %w", err)
	}
	return checkAffected(result)
}

// CompleteBooking closes the booking and its originating quote together.
// The checklist is re-counted inside the transaction: with requiredOnly only
// required rows must be done, otherwise every row.
func (db *DB) CompleteBooking(ctx context.Context, bookingID, fromVersion int64, requiredOnly bool, loc models.Location, at time.Time) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var total, pending int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(SUM(CASE WHEN completed = 0 AND (required = 1 OR ? = 0) THEN 1 ELSE 0 END), 0)
			FROM booking_checklist WHERE booking_id = ?`, requiredOnly, bookingID).Scan(&total, &pending)
		if err != nil {
			return fmt.Errorf("failed to count checklist: %w", err)
		}
		if total == 0 || pending > 0 {
			return fmt.Errorf("booking %d: %d of %d items pending: %w", bookingID, pending, total, ErrChecklistIncomplete)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE bookings SET status = ?, end_lat = ?, end_lon = ?, end_accuracy = ?, completed_at = ?,
				version = version + 1, updated_at = ?
			WHERE id = ? AND version = ? AND status = ?`,
			models.StatusCompleted, loc.Latitude, loc.Longitude, loc.Accuracy, at, at,
			bookingID, fromVersion, models.StatusInProgress)
		if err != nil {
			return fmt.Errorf("failed to complete booking: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE quotes SET status = ?, version = version + 1, updated_at = ?
			WHERE id = (SELECT quote_id FROM bookings WHERE id = ?) AND status = ?`,
			models.QuoteStatusCompleted, at, bookingID, models.QuoteStatusApproved)
		if err != nil {
			return fmt.Errorf("failed to complete quote: %w", err)
		}
		return nil
	})
}

func (db *DB) CancelBooking(ctx context.Context, bookingID, fromVersion int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status IN (?, ?)`,
		models.StatusCancelled, time.Now(), bookingID, fromVersion, models.StatusConfirmed, models.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return checkAffected(result)
}

func (db *DB) MarkBookingPaid(ctx context.Context, bookingID, fromVersion int64) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET payment_completed = 1, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND status = ?`,
		time.Now(), bookingID, fromVersion, models.StatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to mark booking paid: %w", err)
	}
	return checkAffected(result)
}

func (db *DB) UpdateEmployeeNotes(ctx context.Context, bookingID, fromVersion int64, notes string) error {
	result, err := db.ExecContext(ctx, `
		UPDATE bookings SET employee_notes = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`, notes, time.Now(), bookingID, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update employee notes: %w", err)
	}
	return checkAffected(result)
}

// SetInvoiceRef stores the invoice document reference without bumping the version.
func (db *DB) SetInvoiceRef(ctx context.Context, bookingID int64, ref string) error {
	result, err := db.ExecContext(ctx, `UPDATE bookings SET invoice_ref = ?, updated_at = ? WHERE id = ?`,
		ref, time.Now(), bookingID)
	if err != nil {
		return fmt.Errorf("failed to set invoice ref: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("booking %d: %w", bookingID, ErrNotFound)
	}
	return nil
}

func queryBookings(ctx context.Context, q querier, query string, args ...any) ([]*models.Booking, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var employeeID sql.NullInt64
	var startLat, startLon, startAcc, endLat, endLon, endAcc sql.NullFloat64
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.QuoteID, &b.RequesterID, &b.ServiceType, &b.ServiceDate, &b.ServiceTime, &b.DurationMinutes,
		&employeeID, &b.Status, &b.FinalPrice, &b.PaymentCompleted, &b.EmployeeNotes, &b.Address,
		&startLat, &startLon, &startAcc, &endLat, &endLon, &endAcc,
		&startedAt, &completedAt, &b.InvoiceRef, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if employeeID.Valid {
		id := employeeID.Int64
		b.EmployeeID = &id
	}
	if startLat.Valid && startLon.Valid {
		b.StartLocation = &models.Location{Latitude: startLat.Float64, Longitude: startLon.Float64, Accuracy: startAcc.Float64}
	}
	if endLat.Valid && endLon.Valid {
		b.EndLocation = &models.Location{Latitude: endLat.Float64, Longitude: endLon.Float64, Accuracy: endAcc.Float64}
	}
	if startedAt.Valid {
		t := startedAt.Time
		b.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}
	return &b, nil
}
