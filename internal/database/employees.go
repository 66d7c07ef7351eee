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

const employeeColumns = `id, name, email, phone, telegram_chat_id, language, hourly_rate, skills, active, created_at, updated_at`

func upsertEmployee(ctx context.Context, tx *sql.Tx, e *models.Employee, now time.Time) error {
	skills, err := json.Marshal(e.Skills)
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}
	if e.Language == "" {
		e.Language = models.LanguageEN
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO employees (id, name, email, phone, telegram_chat_id, language, hourly_rate, skills, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			phone = excluded.phone,
			telegram_chat_id = excluded.telegram_chat_id,
			language = excluded.language,
			hourly_rate = excluded.hourly_rate,
			skills = excluded.skills,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		e.ID, e.Name, e.Email, e.Phone, e.TelegramChatID, e.Language, e.HourlyRate, string(skills), e.Active, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert employee %d: %w", e.ID, err)
	}
	return nil
}

func (db *DB) CreateEmployee(ctx context.Context, e *models.Employee) error {
	skills, err := json.Marshal(e.Skills)
	if err != nil {
		return fmt.Errorf("encode skills: %w", err)
	}
	if e.Language == "" {
		e.Language = models.LanguageEN
	}
	now := time.Now()
	result, err := db.ExecContext(ctx, `
		INSERT INTO employees (name, email, phone, telegram_chat_id, language, hourly_rate, skills, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.Email, e.Phone, e.TelegramChatID, e.Language, e.HourlyRate, string(skills), e.Active, now, now)
	if err != nil {
		return fmt.Errorf("failed to create employee: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

func (db *DB) GetEmployee(ctx context.Context, id int64) (*models.Employee, error) {
	e, err := scanEmployee(db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	return e, nil
}

// GetEmployeeByChatID resolves an active employee from a linked Telegram chat.
func (db *DB) GetEmployeeByChatID(ctx context.Context, chatID int64) (*models.Employee, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("employee for chat %d: %w", chatID, ErrNotFound)
	}
	e, err := scanEmployee(db.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees
		WHERE telegram_chat_id = ? AND active = 1 ORDER BY id LIMIT 1`, chatID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("employee for chat %d: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee by chat: %w", err)
	}
	return e, nil
}

func (db *DB) ListEmployees(ctx context.Context, activeOnly bool) ([]*models.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var out []*models.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*models.Employee, error) {
	var e models.Employee
	var skills string
	if err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Phone, &e.TelegramChatID, &e.Language,
		&e.HourlyRate, &skills, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(skills), &e.Skills); err != nil {
		return nil, fmt.Errorf("decode skills: %w", err)
	}
	return &e, nil
}
