package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cleanops/internal/models"
)

// SyncCatalog upserts services, checklist templates and employees.
// Template edits never touch booking snapshots.
func (db *DB) SyncCatalog(ctx context.Context, catalog *models.Catalog) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now()
		for _, s := range catalog.Services {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO service_catalog (service_type, name, base_price, price_per_area_unit, default_duration_minutes, active, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(service_type) DO UPDATE SET
					name = excluded.name,
					base_price = excluded.base_price,
					price_per_area_unit = excluded.price_per_area_unit,
					default_duration_minutes = excluded.default_duration_minutes,
					active = excluded.active,
					updated_at = excluded.updated_at`,
				s.ServiceType, s.Name, s.BasePrice, s.PricePerAreaUnit, s.DefaultDurationMinutes, s.Active, now)
			if err != nil {
				return fmt.Errorf("failed to sync service %s: %w", s.ServiceType, err)
			}
		}

		for _, item := range catalog.ChecklistItems {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO checklist_items (id, service_type, frequency, text_en, text_es, required, sort_order)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					service_type = excluded.service_type,
					frequency = excluded.frequency,
					text_en = excluded.text_en,
					text_es = excluded.text_es,
					required = excluded.required,
					sort_order = excluded.sort_order`,
				item.ID, item.ServiceType, item.Frequency, item.TextEN, item.TextES, item.Required, item.SortOrder)
			if err != nil {
				return fmt.Errorf("failed to sync checklist item %d: %w", item.ID, err)
			}
		}

		for i := range catalog.Employees {
			if err := upsertEmployee(ctx, tx, &catalog.Employees[i], now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) GetServiceEntry(ctx context.Context, serviceType string) (*models.ServiceCatalogEntry, error) {
	var s models.ServiceCatalogEntry
	err := db.QueryRowContext(ctx, `
		SELECT service_type, name, base_price, price_per_area_unit, default_duration_minutes, active
		FROM service_catalog WHERE service_type = ?`, serviceType).Scan(
		&s.ServiceType, &s.Name, &s.BasePrice, &s.PricePerAreaUnit, &s.DefaultDurationMinutes, &s.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("service %s: %w", serviceType, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service entry: %w", err)
	}
	return &s, nil
}

func (db *DB) ListServices(ctx context.Context) ([]*models.ServiceCatalogEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT service_type, name, base_price, price_per_area_unit, default_duration_minutes, active
		FROM service_catalog WHERE active = 1 ORDER BY service_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	var out []*models.ServiceCatalogEntry
	for rows.Next() {
		s := &models.ServiceCatalogEntry{}
		if err := rows.Scan(&s.ServiceType, &s.Name, &s.BasePrice, &s.PricePerAreaUnit, &s.DefaultDurationMinutes, &s.Active); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetChecklistTemplate returns the items for a service type and frequency.
func (db *DB) GetChecklistTemplate(ctx context.Context, serviceType, frequency string) ([]*models.ChecklistItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, service_type, frequency, text_en, text_es, required, sort_order
		FROM checklist_items
		WHERE service_type = ? AND (frequency = '' OR frequency = ?)
		ORDER BY sort_order, id`, serviceType, frequency)
	if err != nil {
		return nil, fmt.Errorf("failed to get checklist template: %w", err)
	}
	defer rows.Close()

	var items []*models.ChecklistItem
	for rows.Next() {
		item := &models.ChecklistItem{}
		if err := rows.Scan(&item.ID, &item.ServiceType, &item.Frequency, &item.TextEN, &item.TextES, &item.Required, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
