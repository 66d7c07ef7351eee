package database

import (
	"context"
	"testing"
	"time"

	"cleanops/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCatalog() *models.Catalog {
	return &models.Catalog{
		Services: []models.ServiceCatalogEntry{
			{ServiceType: "deep_cleaning", Name: "Deep cleaning", BasePrice: 100, PricePerAreaUnit: 0.1, DefaultDurationMinutes: 180, Active: true},
			{ServiceType: "window_cleaning", Name: "Windows", BasePrice: 60, PricePerAreaUnit: 0.05, Active: true},
		},
		ChecklistItems: []models.ChecklistItem{
			{ID: 1, ServiceType: "deep_cleaning", TextEN: "Kitchen", TextES: "Cocina", Required: true, SortOrder: 1},
			{ID: 2, ServiceType: "deep_cleaning", TextEN: "Bathrooms", TextES: "Baños", Required: true, SortOrder: 2},
			{ID: 3, ServiceType: "deep_cleaning", TextEN: "Windows", TextES: "Ventanas", Required: false, SortOrder: 3},
			{ID: 4, ServiceType: "deep_cleaning", Frequency: models.FrequencyWeekly, TextEN: "Fridge", Required: false, SortOrder: 4},
		},
		Employees: []models.Employee{
			{ID: 1, Name: "Ana", Email: "ana@example.com", Skills: []string{"deep_cleaning"}, Active: true},
			{ID: 2, Name: "Luis", Email: "luis@example.com", Skills: []string{"window_cleaning"}, Active: true},
		},
	}
}

func seedCatalog(t *testing.T, db *DB) {
	t.Helper()
	require.NoError(t, db.SyncCatalog(context.Background(), testCatalog()))
}

// createBooking stores a quote and approves it into a confirmed booking.
func createBooking(t *testing.T, db *DB, date, start string, duration int) *models.Booking {
	t.Helper()
	ctx := context.Background()

	q := &models.Quote{
		RequesterID:      99,
		RequesterEmail:   "client@example.com",
		Language:         models.LanguageEN,
		ServiceType:      "deep_cleaning",
		PropertyType:     models.PropertyResidential,
		Area:             1000,
		Frequency:        models.FrequencyOnce,
		ChecklistItemIDs: []int64{1, 2, 3},
		Price:            models.PriceBreakdown{Subtotal: 200, Total: 200},
	}
	require.NoError(t, db.CreateQuote(ctx, q))

	b := &models.Booking{
		RequesterID:     q.RequesterID,
		ServiceType:     q.ServiceType,
		ServiceDate:     date,
		ServiceTime:     start,
		DurationMinutes: duration,
		FinalPrice:      q.Price.Total,
	}
	require.NoError(t, db.ApproveQuote(ctx, q.ID, q.Version, 1, b, q.ChecklistItemIDs))
	return b
}

// startBooking assigns employee 1 and moves b to in_progress.
func startBooking(t *testing.T, db *DB, b *models.Booking) *models.Booking {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, db.AssignEmployeeWithLock(ctx, b.ID, b.Version, 1))
	loc := models.Location{Latitude: 40.1, Longitude: -3.7, Accuracy: 12}
	require.NoError(t, db.StartBooking(ctx, b.ID, b.Version+1, loc, time.Now()))
	started, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	return started
}
