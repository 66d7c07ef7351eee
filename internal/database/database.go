package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var (
	ErrNotFound               = errors.New("record not found")
	ErrConcurrentModification = errors.New("record was modified concurrently")
	ErrEmployeeBusy           = errors.New("employee has an overlapping booking")
	ErrDuplicate              = errors.New("record already exists")
	ErrChecklistIncomplete    = errors.New("checklist has incomplete items")
)

// DB wraps the sqlite handle. A single connection is kept open so that
// transactions run one at a time and check-then-write sequences are serialized.
type DB struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	if !strings.HasPrefix(path, ":memory:") {
		// create the database directory if missing
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: sqlDB, path: path, logger: logger}
	if err := db.createTables(context.Background()); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string {
	return db.path
}

func (db *DB) createTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS service_catalog (
            service_type TEXT PRIMARY KEY,
            name TEXT NOT NULL DEFAULT '',
            base_price REAL NOT NULL DEFAULT 0,
            price_per_area_unit REAL NOT NULL DEFAULT 0,
            default_duration_minutes INTEGER NOT NULL DEFAULT 0,
            active BOOLEAN NOT NULL DEFAULT 1,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS checklist_items (
            id INTEGER PRIMARY KEY,
            service_type TEXT NOT NULL,
            frequency TEXT NOT NULL DEFAULT '',
            text_en TEXT NOT NULL,
            text_es TEXT NOT NULL DEFAULT '',
            required BOOLEAN NOT NULL DEFAULT 0,
            sort_order INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS employees (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            email TEXT NOT NULL DEFAULT '',
            phone TEXT NOT NULL DEFAULT '',
            telegram_chat_id INTEGER NOT NULL DEFAULT 0,
            language TEXT NOT NULL DEFAULT 'en',
            hourly_rate REAL NOT NULL DEFAULT 0,
            skills TEXT NOT NULL DEFAULT '[]',
            active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS quotes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            requester_id INTEGER NOT NULL,
            requester_name TEXT NOT NULL DEFAULT '',
            requester_email TEXT NOT NULL DEFAULT '',
            requester_phone TEXT NOT NULL DEFAULT '',
            language TEXT NOT NULL DEFAULT 'en',
            service_type TEXT NOT NULL,
            property_type TEXT NOT NULL,
            area INTEGER NOT NULL CHECK (area > 0),
            bedrooms INTEGER,
            bathrooms INTEGER,
            frequency TEXT NOT NULL,
            preferred_date TEXT NOT NULL DEFAULT '',
            preferred_time TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            checklist_item_ids TEXT NOT NULL DEFAULT '[]',
            price TEXT NOT NULL,
            total REAL NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            client_notes TEXT NOT NULL DEFAULT '',
            reviewed_by INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            quote_id INTEGER NOT NULL UNIQUE REFERENCES quotes(id),
            requester_id INTEGER NOT NULL,
            service_type TEXT NOT NULL,
            service_date TEXT NOT NULL,
            service_time TEXT NOT NULL,
            duration_minutes INTEGER NOT NULL DEFAULT 120,
            employee_id INTEGER REFERENCES employees(id),
            status TEXT NOT NULL DEFAULT 'confirmed',
            final_price REAL NOT NULL DEFAULT 0,
            payment_completed BOOLEAN NOT NULL DEFAULT 0,
            employee_notes TEXT NOT NULL DEFAULT '',
            address TEXT NOT NULL DEFAULT '',
            start_lat REAL,
            start_lon REAL,
            start_accuracy REAL,
            end_lat REAL,
            end_lon REAL,
            end_accuracy REAL,
            started_at DATETIME,
            completed_at DATETIME,
            invoice_ref TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS booking_checklist (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            item_id INTEGER NOT NULL,
            text_en TEXT NOT NULL,
            text_es TEXT NOT NULL DEFAULT '',
            required BOOLEAN NOT NULL DEFAULT 0,
            sort_order INTEGER NOT NULL DEFAULT 0,
            completed BOOLEAN NOT NULL DEFAULT 0,
            completed_at DATETIME,
            rating INTEGER CHECK (rating IS NULL OR (rating BETWEEN 1 AND 5)),
            notes TEXT NOT NULL DEFAULT '',
            UNIQUE (booking_id, item_id)
        )`,
		`CREATE TABLE IF NOT EXISTS booking_evidence (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id),
            phase TEXT NOT NULL,
            url TEXT NOT NULL,
            content_type TEXT NOT NULL DEFAULT '',
            size INTEGER NOT NULL DEFAULT 0,
            uploaded_by INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            dedup_key TEXT NOT NULL UNIQUE,
            channel TEXT NOT NULL,
            recipient TEXT NOT NULL,
            template TEXT NOT NULL,
            language TEXT NOT NULL DEFAULT 'en',
            data TEXT NOT NULL DEFAULT '{}',
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME NOT NULL,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_checklist_items_service ON checklist_items(service_type)`,
		`CREATE INDEX IF NOT EXISTS idx_employees_chat ON employees(telegram_chat_id)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_status ON quotes(status)`,
		`CREATE INDEX IF NOT EXISTS idx_quotes_requester ON quotes(requester_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_employee_date ON bookings(employee_id, service_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_checklist_booking ON booking_checklist(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_evidence_booking ON booking_evidence(booking_id, phase)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status, next_retry_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// withTx runs fn inside a transaction and commits when it returns nil.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// checkAffected maps a zero-row conditional update to ErrConcurrentModification.
func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
